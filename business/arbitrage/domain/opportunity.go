package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	futarchyDomain "github.com/fd1az/futarchy-arbitrage/business/futarchy/domain"
	pricingDomain "github.com/fd1az/futarchy-arbitrage/business/pricing/domain"
	"github.com/fd1az/futarchy-arbitrage/internal/asset"
)

// LegQuotes are the expected outputs of each trade of an opportunity, used to
// derive slippage bounds at execution.
//
// SPOT_SPLIT: Spot is company bought with the loan, Yes/No are YES/NO currency
// received for the split company tokens.
// MERGE_SPOT: Yes/No are YES/NO company bought with the split currency, Spot is
// currency received for the merged company.
type LegQuotes struct {
	Spot   decimal.Decimal
	Yes    decimal.Decimal
	No     decimal.Decimal
	Merged decimal.Decimal
}

// Opportunity represents a detected arbitrage opportunity.
type Opportunity struct {
	ID        string
	Block     uint64
	Timestamp time.Time

	Proposal *futarchyDomain.Proposal
	// Market holds the pools the opportunity was priced on. Nil for marginal evaluations.
	Market *pricingDomain.Snapshot

	Direction    Direction
	BorrowToken  *asset.Asset
	BorrowAmount decimal.Decimal

	ExpectedProfit      decimal.Decimal
	MinGuaranteedReturn decimal.Decimal // min(yes leg, no leg) in borrow-token units
	RiskyResidual       decimal.Decimal // |yes leg − no leg| in borrow-token units
	Profit              ProfitResult
	Spread              pricingDomain.Spread
	Quotes              LegQuotes
}

// IsProfitable returns true if this opportunity has positive net profit.
func (o *Opportunity) IsProfitable() bool {
	return o != nil && o.Profit.IsProfitable
}

// ResidualToken is the outcome token the unmatched leg leaves behind, nil when legs match.
func (o *Opportunity) ResidualToken() *asset.Asset {
	if o == nil || o.Proposal == nil || o.Quotes.Yes.Equal(o.Quotes.No) {
		return nil
	}
	yesLonger := o.Quotes.Yes.GreaterThan(o.Quotes.No)
	switch {
	case o.Direction == DirectionSpotSplit && yesLonger:
		return o.Proposal.YesCurrency
	case o.Direction == DirectionSpotSplit:
		return o.Proposal.NoCurrency
	case yesLonger:
		return o.Proposal.YesCompany
	default:
		return o.Proposal.NoCompany
	}
}

func (o *Opportunity) String() string {
	if o == nil {
		return "<no opportunity>"
	}
	return fmt.Sprintf("%s borrow %s %s profit %s (guaranteed %s, residual %s)",
		o.Direction, o.BorrowAmount.StringFixed(4), o.BorrowToken.Symbol(),
		o.ExpectedProfit.StringFixed(6), o.MinGuaranteedReturn.StringFixed(6), o.RiskyResidual.StringFixed(6))
}
