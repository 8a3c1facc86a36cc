package postgres

import (
	"errors"
	"io/fs"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	arbDomain "github.com/fd1az/futarchy-arbitrage/business/arbitrage/domain"
	"github.com/fd1az/futarchy-arbitrage/business/execution/domain"
	"github.com/fd1az/futarchy-arbitrage/internal/asset"
)

func TestNewExecutionRow(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	opp := &arbDomain.Opportunity{
		ID:             "opp-7",
		Block:          99,
		Direction:      arbDomain.DirectionSpotSplit,
		BorrowToken:    asset.SDAI,
		BorrowAmount:   decimal.RequireFromString("250"),
		ExpectedProfit: decimal.RequireFromString("3.5"),
	}

	settled := domain.NewResult(opp, domain.ModeSimulate, at)
	settled.Proposal = common.HexToAddress("0xf1")
	settled.Success = true
	settled.Profit = decimal.RequireFromString("3.25")
	settled.Repaid = decimal.RequireFromString("250")
	settled.Leftovers.YesCurrency = decimal.RequireFromString("1.5")
	settled.Record(domain.StepRecord{Step: domain.StepBorrow, TokenOut: asset.SDAI, AmountOut: decimal.RequireFromString("250")})
	settled.Record(domain.StepRecord{Step: domain.StepTrade, TokenIn: asset.SDAI, AmountIn: decimal.RequireFromString("250"),
		TokenOut: asset.GNO, AmountOut: decimal.RequireFromString("2.4")})

	aborted := domain.NewResult(opp, domain.ModeContract, at).Fail(domain.StepRepay, errors.New("short"))

	tests := []struct {
		name        string
		res         *domain.Result
		wantMode    string
		wantSteps   int
		wantFailure bool
	}{
		{"settled", settled, "simulate", 2, false},
		{"aborted", aborted, "contract", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := newExecutionRow("id-1", opp, tt.res)

			if row.opportunityID != "opp-7" || row.block != 99 || row.mode != tt.wantMode {
				t.Errorf("row = %+v", row)
			}
			if row.direction != "SPOT_SPLIT" || row.borrowToken != "sDAI" || row.borrowAmount != "250" {
				t.Errorf("direction/token/amount = %s/%s/%s", row.direction, row.borrowToken, row.borrowAmount)
			}
			if row.expectedProfit != "3.5" {
				t.Errorf("expectedProfit = %s, want 3.5", row.expectedProfit)
			}
			if len(row.steps) != tt.wantSteps {
				t.Errorf("steps = %d, want %d", len(row.steps), tt.wantSteps)
			}
			if (row.failedStep != nil) != tt.wantFailure || (row.failure != nil) != tt.wantFailure {
				t.Errorf("failedStep = %v, failure = %v", row.failedStep, row.failure)
			}
			if got := len(row.args()); got != 20 {
				t.Errorf("args = %d, want 20 columns", got)
			}
		})
	}

	row := newExecutionRow("id-1", opp, settled)
	if row.profit != "3.25" || row.leftovers[2] != "1.5" || row.leftovers[0] != "0" {
		t.Errorf("profit = %s, leftovers = %v", row.profit, row.leftovers)
	}
	borrow := row.steps[0]
	if borrow.tokenIn != nil || borrow.tokenOut == nil || *borrow.tokenOut != "sDAI" || *borrow.amountOut != "250" {
		t.Errorf("borrow step = %+v", borrow)
	}
	if trade := row.steps[1]; trade.seq != 1 || *trade.tokenIn != "sDAI" || *trade.tokenOut != "GNO" {
		t.Errorf("trade step = %+v", trade)
	}

	if got := newExecutionRow("id-2", nil, aborted).expectedProfit; got != "0" {
		t.Errorf("expectedProfit without opportunity = %s, want 0", got)
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("no migrations embedded")
	}
}
