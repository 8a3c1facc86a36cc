// Package domain contains the core domain types for the pricing context.
package domain

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/futarchy-arbitrage/internal/asset"
)

// Kind identifies the pricing model of a pool.
type Kind string

const (
	KindWeighted Kind = "weighted"
	KindTick     Kind = "tick"
)

// Venue identifies where a pool lives. Uniswap V3 and Algebra share the tick model
// but expose different state getters.
type Venue string

const (
	VenueBalancer Venue = "balancer"
	VenueUniswap  Venue = "uniswap_v3"
	VenueAlgebra  Venue = "algebra"
)

// Kind returns the pricing model used by the venue.
func (v Venue) Kind() Kind {
	if v == VenueBalancer {
		return KindWeighted
	}
	return KindTick
}

// Valid reports whether the venue is known.
func (v Venue) Valid() bool {
	switch v {
	case VenueBalancer, VenueUniswap, VenueAlgebra:
		return true
	default:
		return false
	}
}

var (
	ErrTokenNotInPool        = errors.New("pricing: token not in pool")
	ErrInsufficientLiquidity = errors.New("pricing: insufficient liquidity")
	ErrInvalidAmount         = errors.New("pricing: amount must be positive")
	ErrSameToken             = errors.New("pricing: tokenIn equals tokenOut")
)

// Pool is a liquidity pool that can price and quote swaps between its tokens.
// Amounts are human units of the respective token; implementations work on raw
// on-chain integers internally.
type Pool interface {
	Address() common.Address
	Kind() Kind
	Tokens() []*asset.Asset
	// Fee is the swap fee as a fraction of the input amount.
	Fee() decimal.Decimal
	// Price is the marginal price of base in units of quote.
	Price(base, quote *asset.Asset) (decimal.Decimal, error)
	// QuoteOut returns the output for an exact-in swap without changing state.
	QuoteOut(tokenIn, tokenOut *asset.Asset, amountIn decimal.Decimal) (decimal.Decimal, error)
	// Swap performs QuoteOut and applies the trade to the pool state.
	Swap(tokenIn, tokenOut *asset.Asset, amountIn decimal.Decimal) (decimal.Decimal, error)
	// Depth is the reserve (virtual for tick pools) of token held by the pool.
	Depth(token *asset.Asset) decimal.Decimal
	Clone() Pool
}

// PoolRef locates a pool without its state.
type PoolRef struct {
	Address common.Address
	Venue   Venue
}

func (r PoolRef) String() string {
	return fmt.Sprintf("%s:%s", r.Venue, r.Address.Hex())
}

// Orient reports whether a pool price read as token1-per-token0 has to be
// inverted to express the price of base. Orientation follows address order,
// never token labels.
func Orient(token0, token1, base common.Address) (invert bool, err error) {
	switch base {
	case token0:
		return false, nil
	case token1:
		return true, nil
	default:
		return false, fmt.Errorf("%w: %s not in (%s, %s)", ErrTokenNotInPool, base.Hex(), token0.Hex(), token1.Hex())
	}
}

// SortTokens returns the pair ordered the way AMM factories assign token0/token1.
func SortTokens(a, b *asset.Asset) (token0, token1 *asset.Asset) {
	if b.ID().Less(a.ID()) {
		return b, a
	}
	return a, b
}

// OtherToken returns the counterpart of base in a two-token pool.
func OtherToken(p Pool, base *asset.Asset) (*asset.Asset, error) {
	tokens := p.Tokens()
	if len(tokens) != 2 {
		return nil, fmt.Errorf("pricing: pool %s has %d tokens, quote token required", p.Address().Hex(), len(tokens))
	}
	switch {
	case tokens[0].Equals(base):
		return tokens[1], nil
	case tokens[1].Equals(base):
		return tokens[0], nil
	default:
		return nil, fmt.Errorf("%w: %s in %s", ErrTokenNotInPool, base, p.Address().Hex())
	}
}

func indexOf(tokens []*asset.Asset, token *asset.Asset) int {
	for i, t := range tokens {
		if t.Equals(token) {
			return i
		}
	}
	return -1
}
