package domain

import (
	"fmt"
	"maps"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/futarchy-arbitrage/internal/apperror"
	"github.com/fd1az/futarchy-arbitrage/internal/asset"
)

// ResidualPolicy decides what happens to unmatched outcome tokens.
type ResidualPolicy string

const (
	// ResidualForward sends unmatched outcome tokens to the caller.
	ResidualForward ResidualPolicy = "forward"
	// ResidualLiquidate sells unmatched outcome tokens into the borrow token
	// where a route exists and forwards the rest.
	ResidualLiquidate ResidualPolicy = "liquidate"
)

// Valid reports whether p is a known policy.
func (p ResidualPolicy) Valid() bool {
	return p == ResidualForward || p == ResidualLiquidate
}

type balanceKey struct {
	account common.Address
	token   asset.AssetID
}

// Ledger tracks token balances per account for host-side execution.
type Ledger struct {
	mu       sync.RWMutex
	balances map[balanceKey]decimal.Decimal
}

// LedgerSnapshot is a point-in-time copy of a ledger.
type LedgerSnapshot struct {
	balances map[balanceKey]decimal.Decimal
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{balances: make(map[balanceKey]decimal.Decimal)}
}

// Balance returns the balance of token held by account.
func (l *Ledger) Balance(account common.Address, token *asset.Asset) decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[balanceKey{account, token.ID()}]
}

// Credit adds amount of token to account.
func (l *Ledger) Credit(account common.Address, token *asset.Asset, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext(fmt.Sprintf("negative credit %s %s", amount, token)))
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	k := balanceKey{account, token.ID()}
	l.balances[k] = l.balances[k].Add(amount)
	return nil
}

// Debit removes amount of token from account, failing when the balance is short.
func (l *Ledger) Debit(account common.Address, token *asset.Asset, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext(fmt.Sprintf("negative debit %s %s", amount, token)))
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	k := balanceKey{account, token.ID()}
	bal := l.balances[k]
	if bal.LessThan(amount) {
		return apperror.New(apperror.CodeInvalidState,
			apperror.WithContext(fmt.Sprintf("%s holds %s %s, needs %s", account.Hex(), bal, token.Symbol(), amount)))
	}
	next := bal.Sub(amount)
	if next.IsZero() {
		delete(l.balances, k)
	} else {
		l.balances[k] = next
	}
	return nil
}

// Transfer moves amount of token between accounts.
func (l *Ledger) Transfer(from, to common.Address, token *asset.Asset, amount decimal.Decimal) error {
	if err := l.Debit(from, token, amount); err != nil {
		return err
	}
	return l.Credit(to, token, amount)
}

// Snapshot copies every balance.
func (l *Ledger) Snapshot() LedgerSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return LedgerSnapshot{balances: maps.Clone(l.balances)}
}

// Restore replaces every balance with those of s.
func (l *Ledger) Restore(s LedgerSnapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances = maps.Clone(s.balances)
	if l.balances == nil {
		l.balances = make(map[balanceKey]decimal.Decimal)
	}
}

// Equal reports whether two snapshots hold the same balances.
func (s LedgerSnapshot) Equal(other LedgerSnapshot) bool {
	if len(s.balances) != len(other.balances) {
		return false
	}
	for k, v := range s.balances {
		if w, ok := other.balances[k]; !ok || !w.Equal(v) {
			return false
		}
	}
	return true
}
