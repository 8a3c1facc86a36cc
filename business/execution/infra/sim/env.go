// Package sim executes opportunities host-side against forked pool state.
package sim

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/futarchy-arbitrage/business/execution/app"
	"github.com/fd1az/futarchy-arbitrage/business/execution/domain"
	futarchyDomain "github.com/fd1az/futarchy-arbitrage/business/futarchy/domain"
	pricingDomain "github.com/fd1az/futarchy-arbitrage/business/pricing/domain"
	"github.com/fd1az/futarchy-arbitrage/internal/apperror"
	"github.com/fd1az/futarchy-arbitrage/internal/asset"
)

var _ app.Environment = (*Env)(nil)

// Accounts are the parties of a simulated execution.
type Accounts struct {
	Executor common.Address
	Caller   common.Address
	Lender   common.Address
}

// EnvConfig configures protocol costs.
type EnvConfig struct {
	Accounts Accounts
	FlashFee decimal.Decimal // fraction of the borrowed amount
	MergeFee decimal.Decimal // fixed collateral units lost per merge
}

// Env is an in-memory chain: a ledger of balances, a flash lender funded
// from the lender account, a split/merge router and forked pools.
type Env struct {
	config EnvConfig
	ledger *domain.Ledger

	mu    sync.Mutex
	pools map[string]pricingDomain.Pool
}

// NewEnv creates an environment over ledger trading on pools. The pools are
// owned by the environment and mutated by swaps.
func NewEnv(cfg EnvConfig, ledger *domain.Ledger, pools []pricingDomain.Pool) *Env {
	e := &Env{
		config: cfg,
		ledger: ledger,
		pools:  make(map[string]pricingDomain.Pool, len(pools)),
	}
	for _, p := range pools {
		e.pools[p.Address().Hex()] = p
	}
	return e
}

// Ledger exposes balances for inspection.
func (e *Env) Ledger() *domain.Ledger { return e.ledger }

// Pool returns the forked state of the pool at addr.
func (e *Env) Pool(addr common.Address) (pricingDomain.Pool, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.pools[addr.Hex()]
	return p, ok
}

func (e *Env) Balance(token *asset.Asset) decimal.Decimal {
	return e.ledger.Balance(e.config.Accounts.Executor, token)
}

func (e *Env) Settle(_ context.Context, token *asset.Asset, amount decimal.Decimal) error {
	return e.ledger.Transfer(e.config.Accounts.Executor, e.config.Accounts.Caller, token, amount)
}

// Checkpoint snapshots balances and pool state.
func (e *Env) Checkpoint() func() {
	balances := e.ledger.Snapshot()

	e.mu.Lock()
	pools := make(map[string]pricingDomain.Pool, len(e.pools))
	for k, p := range e.pools {
		pools[k] = p.Clone()
	}
	e.mu.Unlock()

	return func() {
		e.ledger.Restore(balances)
		e.mu.Lock()
		e.pools = pools
		e.mu.Unlock()
	}
}

func (e *Env) FlashFee(_ *asset.Asset, amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(e.config.FlashFee)
}

// Borrow moves amount from the lender account to the executor.
func (e *Env) Borrow(_ context.Context, token *asset.Asset, amount decimal.Decimal) error {
	acc := e.config.Accounts
	if available := e.ledger.Balance(acc.Lender, token); available.LessThan(amount) {
		return apperror.New(apperror.CodeInsufficientLiquidity,
			apperror.WithContext(fmt.Sprintf("lender holds %s %s, asked %s", available, token.Symbol(), amount)))
	}
	return e.ledger.Transfer(acc.Lender, acc.Executor, token, amount)
}

// Repay returns amount to the lender.
func (e *Env) Repay(_ context.Context, token *asset.Asset, amount decimal.Decimal) error {
	acc := e.config.Accounts
	if err := e.ledger.Transfer(acc.Executor, acc.Lender, token, amount); err != nil {
		return apperror.New(apperror.CodeInsufficientToRepay, apperror.WithCause(err))
	}
	return nil
}

// Split burns amount of collateral and mints amount of each outcome.
func (e *Env) Split(_ context.Context, p *futarchyDomain.Proposal, collateral *asset.Asset, amount decimal.Decimal) error {
	yes, no, err := p.Outcomes(collateral)
	if err != nil {
		return apperror.New(apperror.CodeSplitFailed, apperror.WithCause(err))
	}
	owner := e.config.Accounts.Executor
	if err := e.ledger.Debit(owner, collateral, amount); err != nil {
		return apperror.New(apperror.CodeSplitFailed, apperror.WithCause(err))
	}
	if err := e.ledger.Credit(owner, yes, amount); err != nil {
		return err
	}
	return e.ledger.Credit(owner, no, amount)
}

// Merge burns amount of each outcome and mints amount of collateral less the merge fee.
func (e *Env) Merge(_ context.Context, p *futarchyDomain.Proposal, collateral *asset.Asset, amount decimal.Decimal) error {
	yes, no, err := p.Outcomes(collateral)
	if err != nil {
		return apperror.New(apperror.CodeMergeFailed, apperror.WithCause(err))
	}
	if !amount.GreaterThan(e.config.MergeFee) {
		return apperror.New(apperror.CodeMergeFailed,
			apperror.WithContext(fmt.Sprintf("merge of %s does not cover fee %s", amount, e.config.MergeFee)))
	}
	owner := e.config.Accounts.Executor
	if e.ledger.Balance(owner, yes).LessThan(amount) || e.ledger.Balance(owner, no).LessThan(amount) {
		return apperror.New(apperror.CodeMergeFailed,
			apperror.WithContext(fmt.Sprintf("unmatched pair for merge of %s %s", amount, collateral.Symbol())))
	}
	if err := e.ledger.Debit(owner, yes, amount); err != nil {
		return err
	}
	if err := e.ledger.Debit(owner, no, amount); err != nil {
		return err
	}
	return e.ledger.Credit(owner, collateral, amount.Sub(e.config.MergeFee))
}

// SwapExactIn trades along route on the forked pools. Pools the fork has not
// seen are adopted as clones.
func (e *Env) SwapExactIn(_ context.Context, route pricingDomain.Path, amountIn, minOut decimal.Decimal) (decimal.Decimal, error) {
	if len(route) == 0 {
		return decimal.Zero, apperror.New(apperror.CodeSwapFailed, apperror.WithCause(pricingDomain.ErrEmptyPath))
	}
	bound := route.WithPools(e.adopt(route))

	quoted, err := bound.QuoteOut(amountIn)
	if err != nil {
		return decimal.Zero, apperror.New(apperror.CodeSwapFailed, apperror.WithCause(err),
			apperror.WithContext(route.String()))
	}
	if quoted.LessThan(minOut) {
		return decimal.Zero, apperror.New(apperror.CodeSlippageExceeded,
			apperror.WithContext(fmt.Sprintf("%s out %s below minimum %s", route, quoted, minOut)))
	}

	owner := e.config.Accounts.Executor
	if err := e.ledger.Debit(owner, route.TokenIn(), amountIn); err != nil {
		return decimal.Zero, apperror.New(apperror.CodeSwapFailed, apperror.WithCause(err))
	}
	out, err := bound.Swap(amountIn)
	if err != nil {
		return decimal.Zero, apperror.New(apperror.CodeSwapFailed, apperror.WithCause(err))
	}
	if err := e.ledger.Credit(owner, route.TokenOut(), out); err != nil {
		return decimal.Zero, err
	}
	return out, nil
}

func (e *Env) adopt(route pricingDomain.Path) map[string]pricingDomain.Pool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, h := range route {
		key := h.Pool.Address().Hex()
		if _, ok := e.pools[key]; !ok {
			e.pools[key] = h.Pool.Clone()
		}
	}
	out := make(map[string]pricingDomain.Pool, len(e.pools))
	for k, p := range e.pools {
		out[k] = p
	}
	return out
}
