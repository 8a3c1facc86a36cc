package domain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/futarchy-arbitrage/internal/asset"
)

// MaxInRatio is the largest share of the in-balance a weighted pool accepts per swap.
var MaxInRatio = decimal.RequireFromString("0.3")

const pricePrecision = 36

// WeightedToken is one leg of a weighted pool.
type WeightedToken struct {
	Asset   *asset.Asset
	Balance decimal.Decimal
	Weight  decimal.Decimal // normalized
	Rate    decimal.Decimal // rate provider value, 1 without a provider
}

// WeightedPool is a Balancer weighted pool. Balances are scaled by the token
// rate before any math, so prices are expressed in the underlying assets.
type WeightedPool struct {
	address common.Address
	tokens  []WeightedToken
	fee     decimal.Decimal
}

var _ Pool = (*WeightedPool)(nil)

// NewWeightedPool validates and builds a weighted pool.
func NewWeightedPool(address common.Address, tokens []WeightedToken, fee decimal.Decimal) (*WeightedPool, error) {
	if len(tokens) < 2 {
		return nil, fmt.Errorf("pricing: weighted pool %s needs at least 2 tokens", address.Hex())
	}
	if fee.IsNegative() || fee.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("pricing: weighted pool %s fee %s out of range", address.Hex(), fee)
	}

	legs := make([]WeightedToken, len(tokens))
	for i, t := range tokens {
		if t.Asset == nil {
			return nil, fmt.Errorf("pricing: weighted pool %s token %d is nil", address.Hex(), i)
		}
		if !t.Weight.IsPositive() {
			return nil, fmt.Errorf("pricing: weighted pool %s token %s has weight %s", address.Hex(), t.Asset, t.Weight)
		}
		if t.Balance.IsNegative() {
			return nil, fmt.Errorf("pricing: weighted pool %s token %s has negative balance", address.Hex(), t.Asset)
		}
		if t.Rate.IsZero() {
			t.Rate = decimal.NewFromInt(1)
		}
		legs[i] = t
	}

	return &WeightedPool{address: address, tokens: legs, fee: fee}, nil
}

func (p *WeightedPool) Address() common.Address { return p.address }

func (p *WeightedPool) Kind() Kind { return KindWeighted }

func (p *WeightedPool) Fee() decimal.Decimal { return p.fee }

func (p *WeightedPool) Tokens() []*asset.Asset {
	out := make([]*asset.Asset, len(p.tokens))
	for i, t := range p.tokens {
		out[i] = t.Asset
	}
	return out
}

// Legs returns a copy of the pool legs.
func (p *WeightedPool) Legs() []WeightedToken {
	return append([]WeightedToken(nil), p.tokens...)
}

// Price returns (Bq·rq/wq) / (Bb·rb/wb).
func (p *WeightedPool) Price(base, quote *asset.Asset) (decimal.Decimal, error) {
	b, q, err := p.legs(base, quote)
	if err != nil {
		return decimal.Zero, err
	}

	baseSide := b.Balance.Mul(b.Rate).Div(b.Weight)
	if baseSide.IsZero() {
		return decimal.Zero, fmt.Errorf("%w: %s has no %s", ErrInsufficientLiquidity, p.address.Hex(), base)
	}
	quoteSide := q.Balance.Mul(q.Rate).Div(q.Weight)

	return quoteSide.DivRound(baseSide, pricePrecision), nil
}

func (p *WeightedPool) QuoteOut(tokenIn, tokenOut *asset.Asset, amountIn decimal.Decimal) (decimal.Decimal, error) {
	_, out, err := p.quote(tokenIn, tokenOut, amountIn)
	return out, err
}

func (p *WeightedPool) Swap(tokenIn, tokenOut *asset.Asset, amountIn decimal.Decimal) (decimal.Decimal, error) {
	in, out, err := p.quote(tokenIn, tokenOut, amountIn)
	if err != nil {
		return decimal.Zero, err
	}

	i := indexOf(p.Tokens(), tokenIn)
	o := indexOf(p.Tokens(), tokenOut)
	p.tokens[i].Balance = p.tokens[i].Balance.Add(in)
	p.tokens[o].Balance = p.tokens[o].Balance.Sub(out)
	return out, nil
}

// Depth is in token units. Rates only scale balances for pricing; the max-in
// bound applies to the same raw balance, so Depth·MaxInRatio is the largest
// accepted input whatever the rate.
func (p *WeightedPool) Depth(token *asset.Asset) decimal.Decimal {
	i := indexOf(p.Tokens(), token)
	if i < 0 {
		return decimal.Zero
	}
	return p.tokens[i].Balance
}

func (p *WeightedPool) Clone() Pool {
	return &WeightedPool{address: p.address, tokens: p.Legs(), fee: p.fee}
}

// quote returns the truncated input actually consumed and the output.
//
// outGivenIn = Bo·(1 − (Bi / (Bi + Ai·(1−fee)))^(wi/wo)) in scaled units.
// Equal weights reduce to the constant product and stay exact.
func (p *WeightedPool) quote(tokenIn, tokenOut *asset.Asset, amountIn decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	in, out, err := p.legs(tokenIn, tokenOut)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	amountIn = amountIn.Truncate(int32(tokenIn.Decimals()))
	if !amountIn.IsPositive() {
		return decimal.Zero, decimal.Zero, ErrInvalidAmount
	}

	balIn := in.Balance.Mul(in.Rate)
	balOut := out.Balance.Mul(out.Rate)
	scaledIn := amountIn.Mul(in.Rate)

	if scaledIn.GreaterThan(balIn.Mul(MaxInRatio)) {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: %s in %s exceeds max in ratio", ErrInsufficientLiquidity, amountIn, tokenIn)
	}

	afterFee := scaledIn.Mul(decimal.NewFromInt(1).Sub(p.fee))

	var scaledOut decimal.Decimal
	if in.Weight.Equal(out.Weight) {
		scaledOut = balOut.Mul(afterFee).DivRound(balIn.Add(afterFee), pricePrecision)
	} else {
		ratio := balIn.DivRound(balIn.Add(afterFee), pricePrecision)
		factor, err := ratio.PowWithPrecision(in.Weight.DivRound(out.Weight, pricePrecision), pricePrecision)
		if err != nil {
			return decimal.Zero, decimal.Zero, fmt.Errorf("pricing: weighted power in %s: %w", p.address.Hex(), err)
		}
		scaledOut = balOut.Mul(decimal.NewFromInt(1).Sub(factor))
	}

	amountOut := scaledOut.DivRound(out.Rate, pricePrecision).Truncate(int32(tokenOut.Decimals()))
	if amountOut.IsNegative() {
		amountOut = decimal.Zero
	}
	if amountOut.GreaterThanOrEqual(out.Balance) {
		return decimal.Zero, decimal.Zero, fmt.Errorf("%w: %s drains %s", ErrInsufficientLiquidity, p.address.Hex(), tokenOut)
	}
	return amountIn, amountOut, nil
}

func (p *WeightedPool) legs(a, b *asset.Asset) (WeightedToken, WeightedToken, error) {
	if a.Equals(b) {
		return WeightedToken{}, WeightedToken{}, ErrSameToken
	}
	tokens := p.Tokens()
	i, j := indexOf(tokens, a), indexOf(tokens, b)
	if i < 0 || j < 0 {
		return WeightedToken{}, WeightedToken{}, fmt.Errorf("%w: %s/%s in %s", ErrTokenNotInPool, a, b, p.address.Hex())
	}
	return p.tokens[i], p.tokens[j], nil
}

// ScaleRaw converts a raw on-chain integer into human units.
func ScaleRaw(raw *big.Int, decimals uint8) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -int32(decimals))
}
