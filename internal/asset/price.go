package asset

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// InversePrecision is the number of decimal places kept when inverting a price.
const InversePrecision = 36

// Price is the amount of quote asset paid for one unit of base asset,
// observed at a given block.
type Price struct {
	rate      decimal.Decimal
	base      *Asset
	quote     *Asset
	block     uint64
	timestamp time.Time
}

// NewPrice creates a new price.
func NewPrice(base, quote *Asset, rate decimal.Decimal, block uint64, timestamp time.Time) Price {
	if base == nil || quote == nil {
		panic("asset: nil base or quote in price")
	}
	if rate.IsNegative() {
		panic("asset: negative price rate")
	}
	return Price{rate: rate, base: base, quote: quote, block: block, timestamp: timestamp}
}

// Rate returns quote units per base unit.
func (p Price) Rate() decimal.Decimal {
	return p.rate
}

// Base returns the base asset.
func (p Price) Base() *Asset {
	return p.base
}

// Quote returns the quote asset.
func (p Price) Quote() *Asset {
	return p.quote
}

// Block returns the block the price was read at.
func (p Price) Block() uint64 {
	return p.block
}

// Timestamp returns when this price was observed.
func (p Price) Timestamp() time.Time {
	return p.timestamp
}

// Pair returns the pair symbol (e.g., "GNO/sDAI").
func (p Price) Pair() string {
	if p.base == nil || p.quote == nil {
		return "???/???"
	}
	return fmt.Sprintf("%s/%s", p.base.Symbol(), p.quote.Symbol())
}

// IsZero returns true if the price is zero.
func (p Price) IsZero() bool {
	return p.rate.IsZero()
}

// Invert returns the price of quote in base. A zero price inverts to zero.
func (p Price) Invert() Price {
	inv := decimal.Zero
	if !p.rate.IsZero() {
		inv = decimal.NewFromInt(1).DivRound(p.rate, InversePrecision)
	}
	return Price{rate: inv, base: p.quote, quote: p.base, block: p.block, timestamp: p.timestamp}
}

// Mul chains two prices: (A/B) × (B/C) = A/C.
func (p Price) Mul(next Price) (Price, error) {
	if !p.quote.Equals(next.base) {
		return Price{}, fmt.Errorf("%w: cannot chain %s with %s", ErrAssetMismatch, p.Pair(), next.Pair())
	}
	block := p.block
	if next.block > block {
		block = next.block
	}
	return Price{rate: p.rate.Mul(next.rate), base: p.base, quote: next.quote, block: block, timestamp: p.timestamp}, nil
}

// Convert converts an amount of the base asset into the quote asset.
func (p Price) Convert(amount Amount) (Amount, error) {
	if amount.Asset() == nil {
		return Amount{}, ErrNilAsset
	}
	if !amount.Asset().Equals(p.base) {
		return Amount{}, fmt.Errorf("%w: expected %s, got %s", ErrAssetMismatch, p.base.Symbol(), amount.Asset().Symbol())
	}
	return FromDecimal(p.quote, amount.ToDecimal().Mul(p.rate))
}

// String returns a human-readable representation.
func (p Price) String() string {
	return fmt.Sprintf("%s %s", p.rate.String(), p.Pair())
}
