package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	arbDomain "github.com/fd1az/futarchy-arbitrage/business/arbitrage/domain"
	"github.com/fd1az/futarchy-arbitrage/internal/apperror"
	"github.com/fd1az/futarchy-arbitrage/internal/asset"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b0")
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestLedger(t *testing.T) {
	l := NewLedger()
	if err := l.Credit(alice, asset.SDAI, d("100")); err != nil {
		t.Fatalf("Credit: %v", err)
	}

	tests := []struct {
		name     string
		op       func() error
		wantCode apperror.Code
		wantA    string
		wantB    string
	}{
		{
			name:  "transfer",
			op:    func() error { return l.Transfer(alice, bob, asset.SDAI, d("40")) },
			wantA: "60",
			wantB: "40",
		},
		{
			name:     "overdraft",
			op:       func() error { return l.Debit(alice, asset.SDAI, d("60.000001")) },
			wantCode: apperror.CodeInvalidState,
			wantA:    "60",
			wantB:    "40",
		},
		{
			name:     "negative_credit",
			op:       func() error { return l.Credit(bob, asset.SDAI, d("-1")) },
			wantCode: apperror.CodeInvalidInput,
			wantA:    "60",
			wantB:    "40",
		},
		{
			name:  "drain",
			op:    func() error { return l.Debit(alice, asset.SDAI, d("60")) },
			wantA: "0",
			wantB: "40",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.op()
			switch {
			case tt.wantCode == "" && err != nil:
				t.Fatalf("unexpected error: %v", err)
			case tt.wantCode != "" && !apperror.HasCode(err, tt.wantCode):
				t.Fatalf("err = %v, want %s", err, tt.wantCode)
			}
			if got := l.Balance(alice, asset.SDAI); !got.Equal(d(tt.wantA)) {
				t.Errorf("alice = %s, want %s", got, tt.wantA)
			}
			if got := l.Balance(bob, asset.SDAI); !got.Equal(d(tt.wantB)) {
				t.Errorf("bob = %s, want %s", got, tt.wantB)
			}
		})
	}
}

func TestLedger_SnapshotRestore(t *testing.T) {
	l := NewLedger()
	_ = l.Credit(alice, asset.GNO, d("5"))
	before := l.Snapshot()

	_ = l.Credit(alice, asset.SDAI, d("100"))
	_ = l.Transfer(alice, bob, asset.GNO, d("2"))
	if l.Snapshot().Equal(before) {
		t.Fatal("snapshot did not observe changes")
	}

	l.Restore(before)
	if !l.Snapshot().Equal(before) {
		t.Error("restore did not bring back the snapshot")
	}
	if got := l.Balance(bob, asset.GNO); !got.IsZero() {
		t.Errorf("bob GNO = %s, want 0", got)
	}

	_ = l.Credit(bob, asset.GNO, d("1"))
	if got := before.balances[balanceKey{bob, asset.GNO.ID()}]; !got.IsZero() {
		t.Error("snapshot shares state with ledger")
	}
}

func TestResult_Fail(t *testing.T) {
	opp := &arbDomain.Opportunity{
		ID:           "opp-1",
		Direction:    arbDomain.DirectionSpotSplit,
		BorrowToken:  asset.SDAI,
		BorrowAmount: d("100"),
	}
	r := NewResult(opp, ModeSimulate, time.Time{})
	r.Success = true
	r.Profit = d("3")
	r.Leftovers.YesCurrency = d("1")

	r.Fail(StepRepay, errors.New("short"))
	if r.Success || !r.Profit.IsZero() || !r.Leftovers.IsZero() {
		t.Errorf("failed result kept settlement: %+v", r)
	}
	if r.FailedStep != StepRepay || r.Failure != "short" {
		t.Errorf("FailedStep = %s, Failure = %q", r.FailedStep, r.Failure)
	}
	if !r.BorrowAmount.Equal(d("100")) || r.OpportunityID != "opp-1" {
		t.Errorf("identity lost: %+v", r)
	}
}
