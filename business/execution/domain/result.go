// Package domain contains the core domain types for the execution context.
package domain

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	arbDomain "github.com/fd1az/futarchy-arbitrage/business/arbitrage/domain"
	"github.com/fd1az/futarchy-arbitrage/internal/asset"
)

// Step is one stage of the borrow → trade → repay sequence.
type Step string

const (
	StepBorrow      Step = "BORROW"
	StepSplit       Step = "SPLIT"
	StepTrade       Step = "TRADE"
	StepMerge       Step = "MERGE"
	StepLiquidate   Step = "LIQUIDATE"
	StepRepay       Step = "REPAY"
	StepProfitCheck Step = "PROFIT_CHECK"
	StepSettle      Step = "SETTLE"
	// StepExecute marks an on-chain failure that names no particular stage.
	StepExecute Step = "EXECUTE"
)

// Mode names the backend that produced a result.
type Mode string

const (
	ModeSimulate Mode = "simulate"
	ModeContract Mode = "contract"
)

// StepRecord is one completed action of an execution.
type StepRecord struct {
	Step      Step
	TokenIn   *asset.Asset
	TokenOut  *asset.Asset
	AmountIn  decimal.Decimal
	AmountOut decimal.Decimal
}

func (r StepRecord) String() string {
	in, out := "-", "-"
	if r.TokenIn != nil {
		in = r.AmountIn.StringFixed(6) + " " + r.TokenIn.Symbol()
	}
	if r.TokenOut != nil {
		out = r.AmountOut.StringFixed(6) + " " + r.TokenOut.Symbol()
	}
	return fmt.Sprintf("%s %s → %s", r.Step, in, out)
}

// Leftovers are balances forwarded to the caller besides profit: the
// unmatched outcome tokens and any company collateral dust.
type Leftovers struct {
	YesCompany  decimal.Decimal
	NoCompany   decimal.Decimal
	YesCurrency decimal.Decimal
	NoCurrency  decimal.Decimal
	Company     decimal.Decimal
}

// IsZero reports whether nothing was left over.
func (l Leftovers) IsZero() bool {
	return l.YesCompany.IsZero() && l.NoCompany.IsZero() &&
		l.YesCurrency.IsZero() && l.NoCurrency.IsZero() && l.Company.IsZero()
}

// Result is the outcome of one execution attempt. A failed attempt carries
// zero profit and zero leftovers since nothing was settled.
type Result struct {
	OpportunityID string
	Proposal      common.Address
	Block         uint64
	Mode          Mode

	Direction    arbDomain.Direction
	BorrowToken  *asset.Asset
	BorrowAmount decimal.Decimal

	Success   bool
	Profit    decimal.Decimal
	Repaid    decimal.Decimal
	Leftovers Leftovers

	FailedStep Step
	Failure    string
	Trace      []StepRecord

	ExecutedAt time.Time
}

// NewResult starts a result for opp.
func NewResult(opp *arbDomain.Opportunity, mode Mode, now time.Time) *Result {
	r := &Result{
		Mode:       mode,
		ExecutedAt: now,
	}
	if opp == nil {
		return r
	}
	r.OpportunityID = opp.ID
	r.Block = opp.Block
	r.Direction = opp.Direction
	r.BorrowToken = opp.BorrowToken
	r.BorrowAmount = opp.BorrowAmount
	if opp.Proposal != nil {
		r.Proposal = opp.Proposal.Address
	}
	return r
}

// Record appends a completed step.
func (r *Result) Record(rec StepRecord) {
	r.Trace = append(r.Trace, rec)
}

// Fail marks the attempt aborted at step and clears anything settled.
func (r *Result) Fail(step Step, err error) *Result {
	r.Success = false
	r.Profit = decimal.Zero
	r.Repaid = decimal.Zero
	r.Leftovers = Leftovers{}
	r.FailedStep = step
	if err != nil {
		r.Failure = err.Error()
	}
	return r
}

func (r *Result) String() string {
	if r == nil {
		return "<no result>"
	}
	symbol := "?"
	if r.BorrowToken != nil {
		symbol = r.BorrowToken.Symbol()
	}
	if !r.Success {
		return fmt.Sprintf("%s %s %s %s failed at %s: %s",
			r.Mode, r.Direction, r.BorrowAmount.StringFixed(4), symbol, r.FailedStep, r.Failure)
	}
	return fmt.Sprintf("%s %s %s %s profit %s",
		r.Mode, r.Direction, r.BorrowAmount.StringFixed(4), symbol, r.Profit.StringFixed(6))
}
