package domain

import "github.com/shopspring/decimal"

var bpsFactor = decimal.NewFromInt(10000)

// Spread compares the conditional prices of the company token against spot,
// before fees.
type Spread struct {
	YesPrice  decimal.Decimal
	NoPrice   decimal.Decimal
	SpotPrice decimal.Decimal
	SplitBps  decimal.Decimal // (min(yes,no) − spot) / spot
	MergeBps  decimal.Decimal // (spot − max(yes,no)) / max(yes,no)
	Direction SpreadDirection
}

// SpreadDirection indicates which side of the market is mispriced.
type SpreadDirection string

const (
	SpreadConditionalRich  SpreadDirection = "CONDITIONAL_RICH"  // both outcomes above spot
	SpreadConditionalCheap SpreadDirection = "CONDITIONAL_CHEAP" // both outcomes below spot
	SpreadNone             SpreadDirection = "NONE"
)

// CalculateSpread computes the gross spread between conditional and spot prices.
func CalculateSpread(yes, no, spot decimal.Decimal) Spread {
	lo := decimal.Min(yes, no)
	hi := decimal.Max(yes, no)

	split := decimal.Zero
	if !spot.IsZero() {
		split = lo.Sub(spot).Div(spot).Mul(bpsFactor)
	}
	merge := decimal.Zero
	if !hi.IsZero() {
		merge = spot.Sub(hi).Div(hi).Mul(bpsFactor)
	}

	direction := SpreadNone
	switch {
	case split.IsPositive():
		direction = SpreadConditionalRich
	case merge.IsPositive():
		direction = SpreadConditionalCheap
	}

	return Spread{
		YesPrice:  yes,
		NoPrice:   no,
		SpotPrice: spot,
		SplitBps:  split,
		MergeBps:  merge,
		Direction: direction,
	}
}
