package domain

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/fd1az/futarchy-arbitrage/internal/asset"
)

// ProfitAccumulator sums realized profit per token across execution attempts.
// It is owned by the scanning loop and passed explicitly; there is no global counter.
type ProfitAccumulator struct {
	mu        sync.Mutex
	profit    map[asset.AssetID]decimal.Decimal
	symbols   map[asset.AssetID]string
	attempts  int
	successes int
	failures  map[string]int
}

// NewProfitAccumulator creates an empty accumulator.
func NewProfitAccumulator() *ProfitAccumulator {
	return &ProfitAccumulator{
		profit:   make(map[asset.AssetID]decimal.Decimal),
		symbols:  make(map[asset.AssetID]string),
		failures: make(map[string]int),
	}
}

// RecordSuccess adds profit in token.
func (a *ProfitAccumulator) RecordSuccess(token *asset.Asset, profit decimal.Decimal) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.attempts++
	a.successes++
	a.profit[token.ID()] = a.profit[token.ID()].Add(profit)
	a.symbols[token.ID()] = token.Symbol()
}

// RecordFailure counts a failed attempt under reason.
func (a *ProfitAccumulator) RecordFailure(reason string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.attempts++
	a.failures[reason]++
}

// TokenProfit is the total realized in one token.
type TokenProfit struct {
	Symbol string
	Total  decimal.Decimal
}

// Summary is a point-in-time copy of the accumulator.
type Summary struct {
	Attempts  int
	Successes int
	Failures  map[string]int
	Profit    []TokenProfit // sorted by symbol
}

// Summary returns a copy safe to read without the lock.
func (a *ProfitAccumulator) Summary() Summary {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := Summary{
		Attempts:  a.attempts,
		Successes: a.successes,
		Failures:  make(map[string]int, len(a.failures)),
	}
	for k, v := range a.failures {
		s.Failures[k] = v
	}
	for id, total := range a.profit {
		s.Profit = append(s.Profit, TokenProfit{Symbol: a.symbols[id], Total: total})
	}
	sort.Slice(s.Profit, func(i, j int) bool { return s.Profit[i].Symbol < s.Profit[j].Symbol })
	return s
}
