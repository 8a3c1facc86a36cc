package domain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/futarchy-arbitrage/internal/asset"
)

// FeeDenominator is the unit of tick-pool fees (pips, hundredths of a bip).
const FeeDenominator = 1_000_000

var (
	q96  = new(big.Int).Lsh(big.NewInt(1), 96)
	q192 = new(big.Int).Lsh(big.NewInt(1), 192)
)

// TickPool is a concentrated-liquidity pool (Uniswap V3, Algebra). Quotes use
// the active liquidity and do not cross initialized ticks.
type TickPool struct {
	address      common.Address
	token0       *asset.Asset
	token1       *asset.Asset
	sqrtPriceX96 *big.Int
	liquidity    *big.Int
	feePips      uint32
}

var _ Pool = (*TickPool)(nil)

// NewTickPool builds a tick pool from on-chain state. token0 must sort before token1.
func NewTickPool(address common.Address, token0, token1 *asset.Asset, sqrtPriceX96, liquidity *big.Int, feePips uint32) (*TickPool, error) {
	if token0 == nil || token1 == nil {
		return nil, fmt.Errorf("pricing: tick pool %s has nil token", address.Hex())
	}
	if !token0.ID().Less(token1.ID()) {
		return nil, fmt.Errorf("pricing: tick pool %s tokens not sorted (%s, %s)", address.Hex(), token0, token1)
	}
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return nil, fmt.Errorf("pricing: tick pool %s is not initialized", address.Hex())
	}
	if liquidity == nil || liquidity.Sign() < 0 {
		return nil, fmt.Errorf("pricing: tick pool %s has invalid liquidity", address.Hex())
	}
	if feePips >= FeeDenominator {
		return nil, fmt.Errorf("pricing: tick pool %s fee %d out of range", address.Hex(), feePips)
	}
	return &TickPool{
		address:      address,
		token0:       token0,
		token1:       token1,
		sqrtPriceX96: new(big.Int).Set(sqrtPriceX96),
		liquidity:    new(big.Int).Set(liquidity),
		feePips:      feePips,
	}, nil
}

func (p *TickPool) Address() common.Address { return p.address }

func (p *TickPool) Kind() Kind { return KindTick }

func (p *TickPool) Tokens() []*asset.Asset { return []*asset.Asset{p.token0, p.token1} }

func (p *TickPool) Fee() decimal.Decimal {
	return decimal.New(int64(p.feePips), -6)
}

// SqrtPriceX96 returns a copy of the current sqrt price.
func (p *TickPool) SqrtPriceX96() *big.Int { return new(big.Int).Set(p.sqrtPriceX96) }

// Liquidity returns a copy of the active liquidity.
func (p *TickPool) Liquidity() *big.Int { return new(big.Int).Set(p.liquidity) }

// Price returns sqrtP²/2^192 adjusted by 10^(dec0−dec1), inverted when base is token1.
func (p *TickPool) Price(base, quote *asset.Asset) (decimal.Decimal, error) {
	if base.Equals(quote) {
		return decimal.Zero, ErrSameToken
	}
	if _, err := OtherToken(p, quote); err != nil {
		return decimal.Zero, err
	}
	invert, err := Orient(p.token0.Address(), p.token1.Address(), base.Address())
	if err != nil {
		return decimal.Zero, err
	}

	sq := new(big.Int).Mul(p.sqrtPriceX96, p.sqrtPriceX96)
	shift := int32(p.token0.Decimals()) - int32(p.token1.Decimals())
	price0 := decimal.NewFromBigInt(sq, shift).DivRound(decimal.NewFromBigInt(q192, 0), pricePrecision)

	if !invert {
		return price0, nil
	}
	if price0.IsZero() {
		return decimal.Zero, fmt.Errorf("%w: %s price underflow", ErrInsufficientLiquidity, p.address.Hex())
	}
	return decimal.NewFromInt(1).DivRound(price0, pricePrecision), nil
}

func (p *TickPool) QuoteOut(tokenIn, tokenOut *asset.Asset, amountIn decimal.Decimal) (decimal.Decimal, error) {
	out, _, err := p.quote(tokenIn, tokenOut, amountIn)
	return out, err
}

func (p *TickPool) Swap(tokenIn, tokenOut *asset.Asset, amountIn decimal.Decimal) (decimal.Decimal, error) {
	out, next, err := p.quote(tokenIn, tokenOut, amountIn)
	if err != nil {
		return decimal.Zero, err
	}
	p.sqrtPriceX96 = next
	return out, nil
}

// Depth returns the virtual reserve: L/sqrtP for token0, L·sqrtP for token1.
func (p *TickPool) Depth(token *asset.Asset) decimal.Decimal {
	switch {
	case token.Equals(p.token0):
		raw := new(big.Int).Lsh(p.liquidity, 96)
		raw.Div(raw, p.sqrtPriceX96)
		return ScaleRaw(raw, p.token0.Decimals())
	case token.Equals(p.token1):
		raw := new(big.Int).Mul(p.liquidity, p.sqrtPriceX96)
		raw.Rsh(raw, 96)
		return ScaleRaw(raw, p.token1.Decimals())
	default:
		return decimal.Zero
	}
}

func (p *TickPool) Clone() Pool {
	c := *p
	c.sqrtPriceX96 = new(big.Int).Set(p.sqrtPriceX96)
	c.liquidity = new(big.Int).Set(p.liquidity)
	return &c
}

// quote returns the output and the sqrt price after the swap.
func (p *TickPool) quote(tokenIn, tokenOut *asset.Asset, amountIn decimal.Decimal) (decimal.Decimal, *big.Int, error) {
	if tokenIn.Equals(tokenOut) {
		return decimal.Zero, nil, ErrSameToken
	}
	zeroForOne := tokenIn.Equals(p.token0) && tokenOut.Equals(p.token1)
	if !zeroForOne && !(tokenIn.Equals(p.token1) && tokenOut.Equals(p.token0)) {
		return decimal.Zero, nil, fmt.Errorf("%w: %s/%s in %s", ErrTokenNotInPool, tokenIn, tokenOut, p.address.Hex())
	}

	raw := amountIn.Shift(int32(tokenIn.Decimals())).Floor().BigInt()
	if raw.Sign() <= 0 {
		return decimal.Zero, nil, ErrInvalidAmount
	}
	if p.liquidity.Sign() == 0 {
		return decimal.Zero, nil, fmt.Errorf("%w: %s has no active liquidity", ErrInsufficientLiquidity, p.address.Hex())
	}

	afterFee := new(big.Int).Mul(raw, big.NewInt(int64(FeeDenominator-p.feePips)))
	afterFee.Div(afterFee, big.NewInt(FeeDenominator))

	liqQ := new(big.Int).Lsh(p.liquidity, 96)
	sqrtP := p.sqrtPriceX96
	var next, out *big.Int

	if zeroForOne {
		// sqrtNext = L·sqrtP·Q96 / (L·Q96 + amountIn·sqrtP), rounded up
		num := new(big.Int).Mul(liqQ, sqrtP)
		den := new(big.Int).Mul(afterFee, sqrtP)
		den.Add(den, liqQ)
		next = divRoundUp(num, den)

		// out = L·(sqrtP − sqrtNext) / Q96
		out = new(big.Int).Sub(sqrtP, next)
		out.Mul(out, p.liquidity)
		out.Rsh(out, 96)
	} else {
		// sqrtNext = sqrtP + amountIn·Q96 / L
		step := new(big.Int).Lsh(afterFee, 96)
		step.Div(step, p.liquidity)
		next = new(big.Int).Add(sqrtP, step)

		// out = L·Q96·(sqrtNext − sqrtP) / sqrtNext / sqrtP
		out = new(big.Int).Sub(next, sqrtP)
		out.Mul(out, liqQ)
		out.Div(out, next)
		out.Div(out, sqrtP)
	}

	if next.Sign() <= 0 {
		return decimal.Zero, nil, fmt.Errorf("%w: %s price exhausted", ErrInsufficientLiquidity, p.address.Hex())
	}
	if out.Sign() < 0 {
		out.SetInt64(0)
	}
	return ScaleRaw(out, tokenOut.Decimals()), next, nil
}

func divRoundUp(num, den *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

// SqrtPriceX96FromPrice converts a token1-per-token0 price in human units into
// the on-chain sqrt price. It is the inverse of Price for the token0 base.
func SqrtPriceX96FromPrice(price decimal.Decimal, dec0, dec1 uint8) *big.Int {
	raw := price.Shift(int32(dec1) - int32(dec0))
	ratioX192 := raw.Mul(decimal.NewFromBigInt(q192, 0)).Floor().BigInt()
	return new(big.Int).Sqrt(ratioX192)
}
