package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fd1az/futarchy-arbitrage/internal/asset"
)

var ErrEmptyPath = errors.New("pricing: empty path")

// Hop is one swap through one pool.
type Hop struct {
	Pool     Pool
	TokenIn  *asset.Asset
	TokenOut *asset.Asset
}

// Path is an ordered route where each hop's TokenOut is the next hop's TokenIn.
type Path []Hop

// NewPath validates hop chaining and pool membership.
func NewPath(hops ...Hop) (Path, error) {
	if len(hops) == 0 {
		return nil, ErrEmptyPath
	}
	for i, h := range hops {
		if h.Pool == nil {
			return nil, fmt.Errorf("pricing: hop %d has no pool", i)
		}
		tokens := h.Pool.Tokens()
		if indexOf(tokens, h.TokenIn) < 0 || indexOf(tokens, h.TokenOut) < 0 {
			return nil, fmt.Errorf("%w: hop %d %s→%s in %s", ErrTokenNotInPool, i, h.TokenIn, h.TokenOut, h.Pool.Address().Hex())
		}
		if i > 0 && !hops[i-1].TokenOut.Equals(h.TokenIn) {
			return nil, fmt.Errorf("pricing: hop %d starts with %s, previous hop ends with %s", i, h.TokenIn, hops[i-1].TokenOut)
		}
	}
	return Path(hops), nil
}

func (p Path) TokenIn() *asset.Asset {
	if len(p) == 0 {
		return nil
	}
	return p[0].TokenIn
}

func (p Path) TokenOut() *asset.Asset {
	if len(p) == 0 {
		return nil
	}
	return p[len(p)-1].TokenOut
}

// Reverse returns the path walked backwards.
func (p Path) Reverse() Path {
	out := make(Path, len(p))
	for i, h := range p {
		out[len(p)-1-i] = Hop{Pool: h.Pool, TokenIn: h.TokenOut, TokenOut: h.TokenIn}
	}
	return out
}

// Fee is the compounded fee fraction across hops: 1 − Π(1 − fee).
func (p Path) Fee() decimal.Decimal {
	kept := decimal.NewFromInt(1)
	for _, h := range p {
		kept = kept.Mul(decimal.NewFromInt(1).Sub(h.Pool.Fee()))
	}
	return decimal.NewFromInt(1).Sub(kept)
}

// QuoteOut chains exact-in quotes hop by hop.
func (p Path) QuoteOut(amountIn decimal.Decimal) (decimal.Decimal, error) {
	if len(p) == 0 {
		return decimal.Zero, ErrEmptyPath
	}
	amount := amountIn
	for i, h := range p {
		out, err := h.Pool.QuoteOut(h.TokenIn, h.TokenOut, amount)
		if err != nil {
			return decimal.Zero, fmt.Errorf("hop %d: %w", i, err)
		}
		amount = out
	}
	return amount, nil
}

// Swap chains exact-in swaps hop by hop, applying each to its pool.
func (p Path) Swap(amountIn decimal.Decimal) (decimal.Decimal, error) {
	if len(p) == 0 {
		return decimal.Zero, ErrEmptyPath
	}
	amount := amountIn
	for i, h := range p {
		out, err := h.Pool.Swap(h.TokenIn, h.TokenOut, amount)
		if err != nil {
			return decimal.Zero, fmt.Errorf("hop %d: %w", i, err)
		}
		amount = out
	}
	return amount, nil
}

// Depth returns the reserve of token in the first hop that touches it.
func (p Path) Depth(token *asset.Asset) decimal.Decimal {
	for _, h := range p {
		if h.TokenIn.Equals(token) || h.TokenOut.Equals(token) {
			return h.Pool.Depth(token)
		}
	}
	return decimal.Zero
}

// Pools returns the distinct pools of the path in order.
func (p Path) Pools() []Pool {
	seen := make(map[string]bool)
	var out []Pool
	for _, h := range p {
		key := h.Pool.Address().Hex()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, h.Pool)
	}
	return out
}

// WithPools rebinds the hops to the given pools by address. Hops whose pool
// is missing keep the original.
func (p Path) WithPools(pools map[string]Pool) Path {
	out := make(Path, len(p))
	for i, h := range p {
		if np, ok := pools[h.Pool.Address().Hex()]; ok {
			h.Pool = np
		}
		out[i] = h
	}
	return out
}

func (p Path) String() string {
	if len(p) == 0 {
		return "<empty>"
	}
	parts := []string{p[0].TokenIn.Symbol()}
	for _, h := range p {
		parts = append(parts, h.TokenOut.Symbol())
	}
	return strings.Join(parts, "→")
}
