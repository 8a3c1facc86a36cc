// Package infra contains infrastructure adapters for the arbitrage context.
package infra

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/fd1az/futarchy-arbitrage/business/arbitrage/app"
	"github.com/fd1az/futarchy-arbitrage/business/arbitrage/domain"
	execDomain "github.com/fd1az/futarchy-arbitrage/business/execution/domain"
)

var _ app.Reporter = (*ConsoleReporter)(nil)

const rule = "================================================================================"
const thin = "--------------------------------------------------------------------------------"

// ConsoleReporter implements Reporter for CLI output.
type ConsoleReporter struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsoleReporter creates a reporter writing to stdout.
func NewConsoleReporter() *ConsoleReporter {
	return NewConsoleReporterTo(os.Stdout)
}

// NewConsoleReporterTo creates a reporter writing to w.
func NewConsoleReporterTo(w io.Writer) *ConsoleReporter {
	return &ConsoleReporter{out: w}
}

// Start prints the banner.
func (r *ConsoleReporter) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, "Futarchy Arbitrage Started")
	fmt.Fprintln(r.out, "==========================")
	return nil
}

// Report outputs an arbitrage opportunity to the console.
func (r *ConsoleReporter) Report(opp *domain.Opportunity) {
	if opp == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintln(r.out, "")
	fmt.Fprintln(r.out, rule)
	fmt.Fprintln(r.out, "ARBITRAGE OPPORTUNITY DETECTED")
	fmt.Fprintln(r.out, rule)
	fmt.Fprintf(r.out, "ID:             %s\n", opp.ID)
	fmt.Fprintf(r.out, "Block:          #%d\n", opp.Block)
	fmt.Fprintf(r.out, "Timestamp:      %s\n", opp.Timestamp.Format(time.RFC3339))
	if opp.Proposal != nil {
		fmt.Fprintf(r.out, "Proposal:       %s\n", opp.Proposal.Address.Hex())
	}
	fmt.Fprintf(r.out, "Direction:      %s\n", string(opp.Direction))
	fmt.Fprintln(r.out, thin)
	fmt.Fprintln(r.out, "PRICES")
	fmt.Fprintf(r.out, "  YES:            %s\n", opp.Spread.YesPrice.StringFixed(6))
	fmt.Fprintf(r.out, "  NO:             %s\n", opp.Spread.NoPrice.StringFixed(6))
	fmt.Fprintf(r.out, "  Spot:           %s\n", opp.Spread.SpotPrice.StringFixed(6))
	fmt.Fprintf(r.out, "  Split spread:   %s bps\n", opp.Spread.SplitBps.StringFixed(2))
	fmt.Fprintf(r.out, "  Merge spread:   %s bps\n", opp.Spread.MergeBps.StringFixed(2))
	fmt.Fprintln(r.out, thin)
	fmt.Fprintln(r.out, "TRADE DETAILS")
	fmt.Fprintf(r.out, "  Borrow:         %s %s\n", opp.BorrowAmount.StringFixed(4), symbol(opp))
	fmt.Fprintf(r.out, "  Guaranteed:     %s\n", opp.MinGuaranteedReturn.StringFixed(6))
	if token := opp.ResidualToken(); token != nil {
		fmt.Fprintf(r.out, "  Residual:       %s (%s)\n", opp.RiskyResidual.StringFixed(6), token.Symbol())
	}
	fmt.Fprintln(r.out, thin)
	fmt.Fprintln(r.out, "PROFIT")
	fmt.Fprintf(r.out, "  Repayment:      %s\n", opp.Profit.Repayment.StringFixed(6))
	fmt.Fprintf(r.out, "  Gas:            %s\n", opp.Profit.GasCost.StringFixed(6))
	fmt.Fprintf(r.out, "  Net:            %s (%s%%)\n", opp.ExpectedProfit.StringFixed(6), opp.Profit.NetProfitPct.StringFixed(2))
	fmt.Fprintln(r.out, rule)
}

// ReportResult outputs an execution outcome.
func (r *ConsoleReporter) ReportResult(res *execDomain.Result) {
	if res == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if !res.Success {
		fmt.Fprintf(r.out, "[%s] ABORTED %s at %s: %s\n",
			res.Mode, res.OpportunityID, res.FailedStep, res.Failure)
		return
	}
	fmt.Fprintf(r.out, "[%s] SETTLED %s profit %s repaid %s\n",
		res.Mode, res.OpportunityID, res.Profit.StringFixed(6), res.Repaid.StringFixed(6))
	for _, step := range res.Trace {
		fmt.Fprintf(r.out, "  %s\n", step)
	}
	if !res.Leftovers.IsZero() {
		l := res.Leftovers
		fmt.Fprintf(r.out, "  leftovers: yesCompany=%s noCompany=%s yesCurrency=%s noCurrency=%s company=%s\n",
			l.YesCompany, l.NoCompany, l.YesCurrency, l.NoCurrency, l.Company)
	}
}

// ReportSummary outputs the accumulated totals.
func (r *ConsoleReporter) ReportSummary(s domain.Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintln(r.out, "")
	fmt.Fprintln(r.out, "SUMMARY")
	fmt.Fprintf(r.out, "  Attempts:       %d\n", s.Attempts)
	fmt.Fprintf(r.out, "  Successes:      %d\n", s.Successes)
	for _, p := range s.Profit {
		fmt.Fprintf(r.out, "  Profit:         %s %s\n", p.Total.StringFixed(6), p.Symbol)
	}

	reasons := make([]string, 0, len(s.Failures))
	for reason := range s.Failures {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		fmt.Fprintf(r.out, "  Failed:         %d %s\n", s.Failures[reason], reason)
	}
}

// Stop gracefully shuts down the console reporter.
func (r *ConsoleReporter) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, "")
	fmt.Fprintln(r.out, "Futarchy Arbitrage Stopped")
	return nil
}

func symbol(opp *domain.Opportunity) string {
	if opp.BorrowToken == nil {
		return "?"
	}
	return opp.BorrowToken.Symbol()
}
