// Package onchain preflights opportunities against the deployed executor
// contract with eth_call.
package onchain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	arbDomain "github.com/fd1az/futarchy-arbitrage/business/arbitrage/domain"
	"github.com/fd1az/futarchy-arbitrage/business/execution/app"
	"github.com/fd1az/futarchy-arbitrage/business/execution/domain"
	"github.com/fd1az/futarchy-arbitrage/internal/apperror"
	"github.com/fd1az/futarchy-arbitrage/internal/asset"
	"github.com/fd1az/futarchy-arbitrage/internal/circuitbreaker"
	"github.com/fd1az/futarchy-arbitrage/internal/contract"
	"github.com/fd1az/futarchy-arbitrage/internal/logger"
)

const (
	tracerName = "execution.onchain"
	meterName  = "execution.onchain"

	methodExecute = "executeArbitrage"
)

var _ app.Backend = (*ContractExecutor)(nil)

// Config addresses the executor contract.
type Config struct {
	Executor common.Address
	Caller   common.Address  // msg.sender of the preflight
	FlashFee decimal.Decimal // lender fee fraction, used to report the repaid amount
}

type executorMetrics struct {
	calls   metric.Int64Counter
	reverts metric.Int64Counter
	latency metric.Float64Histogram
}

// ContractExecutor runs executeArbitrage as an eth_call against the latest
// block. The call is atomic on the node, so an abort leaves no state behind.
type ContractExecutor struct {
	contract *contract.Contract
	config   Config
	logger   logger.LoggerInterface
	now      func() time.Time

	tracer  trace.Tracer
	metrics *executorMetrics
}

// NewContractExecutor binds the executor ABI. Reverts do not count against
// the circuit breaker; transport failures do.
func NewContractExecutor(caller contract.Caller, cfg Config, log logger.LoggerInterface) (*ContractExecutor, error) {
	cbCfg := circuitbreaker.DefaultConfig("arbitrage-executor")
	cbCfg.IsSuccessful = func(err error) bool {
		if err == nil {
			return true
		}
		_, reverted := contract.RevertReason(err)
		return reverted
	}

	c, err := contract.New(cfg.Executor, ExecutorABI, caller, circuitbreaker.New[[]byte](cbCfg))
	if err != nil {
		return nil, err
	}

	e := &ContractExecutor{
		contract: c.From(cfg.Caller),
		config:   cfg,
		logger:   log,
		now:      time.Now,
		tracer:   otel.Tracer(tracerName),
	}
	if err := e.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return e, nil
}

func (e *ContractExecutor) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	e.metrics = &executorMetrics{}

	e.metrics.calls, err = meter.Int64Counter(
		"executor_calls_total",
		metric.WithDescription("Total executor preflight calls"),
	)
	if err != nil {
		return err
	}

	e.metrics.reverts, err = meter.Int64Counter(
		"executor_reverts_total",
		metric.WithDescription("Executor preflights that reverted, by error code"),
	)
	if err != nil {
		return err
	}

	e.metrics.latency, err = meter.Float64Histogram(
		"executor_call_latency_ms",
		metric.WithDescription("Executor preflight latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	return err
}

func (e *ContractExecutor) Mode() domain.Mode { return domain.ModeContract }

// Execute preflights opp with minProfit as the on-chain abort floor.
func (e *ContractExecutor) Execute(ctx context.Context, opp *arbDomain.Opportunity, minProfit decimal.Decimal) (*domain.Result, error) {
	ctx, span := e.tracer.Start(ctx, "onchain.execute",
		trace.WithAttributes(attribute.String("executor", e.config.Executor.Hex())))
	defer span.End()

	start := e.now()
	res := domain.NewResult(opp, domain.ModeContract, start)
	e.metrics.calls.Add(ctx, 1)
	defer func() {
		e.metrics.latency.Record(ctx, float64(time.Since(start).Milliseconds()))
	}()

	fail := func(step domain.Step, err error) (*domain.Result, error) {
		e.metrics.reverts.Add(ctx, 1, metric.WithAttributes(attribute.String("code", string(apperror.GetCode(err)))))
		span.RecordError(err)
		span.SetStatus(codes.Error, string(step))
		return res.Fail(step, err), err
	}

	args, err := e.pack(opp, minProfit)
	if err != nil {
		return fail(domain.StepBorrow, err)
	}

	values, err := e.contract.Call(ctx, nil, methodExecute, args...)
	if err != nil {
		step, mapped := classify(err)
		e.logger.Warn(ctx, "executor preflight reverted",
			"opportunity", opp.ID, "step", step, "code", apperror.GetCode(mapped), "error", err)
		return fail(step, mapped)
	}

	out, err := decode(values)
	if err != nil {
		return fail(domain.StepExecute, err)
	}
	if !out.success {
		return fail(domain.StepExecute, apperror.New(apperror.CodeExecutionReverted,
			apperror.WithContext("executor returned success=false")))
	}

	p := opp.Proposal
	token := opp.BorrowToken
	profit := asset.NewAmount(token, out.profit).ToDecimal()
	if profit.LessThan(minProfit) {
		return fail(domain.StepProfitCheck, apperror.New(apperror.CodeProfitBelowMinimum,
			apperror.WithContext(fmt.Sprintf("executor reported %s below minimum %s", profit, minProfit))))
	}
	borrowed := asset.NewAmount(token, out.borrowed).ToDecimal()

	res.Success = true
	res.Profit = profit
	res.BorrowAmount = borrowed
	res.Repaid = borrowed.Add(borrowed.Mul(e.config.FlashFee))
	res.Leftovers = domain.Leftovers{
		YesCompany:  asset.NewAmount(p.YesCompany, out.yesCompany).ToDecimal(),
		NoCompany:   asset.NewAmount(p.NoCompany, out.noCompany).ToDecimal(),
		YesCurrency: asset.NewAmount(p.YesCurrency, out.yesCurrency).ToDecimal(),
		NoCurrency:  asset.NewAmount(p.NoCurrency, out.noCurrency).ToDecimal(),
		Company:     asset.NewAmount(p.Company, out.company).ToDecimal(),
	}
	res.Record(domain.StepRecord{Step: domain.StepBorrow, TokenOut: token, AmountOut: borrowed})
	res.Record(domain.StepRecord{Step: domain.StepRepay, TokenIn: token, AmountIn: res.Repaid})
	res.Record(domain.StepRecord{Step: domain.StepSettle, TokenOut: token, AmountOut: profit})

	span.SetAttributes(attribute.String("profit", profit.String()))
	span.SetStatus(codes.Ok, "preflight settled")
	return res, nil
}

func (e *ContractExecutor) pack(opp *arbDomain.Opportunity, minProfit decimal.Decimal) ([]any, error) {
	if opp == nil || opp.Proposal == nil || opp.BorrowToken == nil {
		return nil, apperror.New(apperror.CodeInvalidInput, apperror.WithContext("incomplete opportunity"))
	}
	if !opp.Direction.Valid() {
		return nil, apperror.New(apperror.CodeInvalidInput, apperror.WithContext(fmt.Sprintf("direction %q", opp.Direction)))
	}
	if !opp.BorrowToken.Equals(opp.Proposal.Currency) {
		return nil, apperror.New(apperror.CodeUnsupportedBorrowToken,
			apperror.WithContext(fmt.Sprintf("borrow %s, currency %s", opp.BorrowToken.Symbol(), opp.Proposal.Currency.Symbol())))
	}
	if !opp.BorrowAmount.IsPositive() {
		return nil, apperror.New(apperror.CodeInvalidTradeSize, apperror.WithContext(opp.BorrowAmount.String()))
	}
	borrow, err := asset.FromDecimal(opp.BorrowToken, opp.BorrowAmount)
	if err != nil {
		return nil, apperror.New(apperror.CodeInvalidTradeSize, apperror.WithCause(err))
	}
	floor, err := asset.FromDecimal(opp.BorrowToken, decimal.Max(minProfit, decimal.Zero))
	if err != nil {
		return nil, apperror.New(apperror.CodeInvalidInput, apperror.WithCause(err))
	}
	return []any{
		opp.Proposal.Address,
		opp.BorrowToken.Address(),
		borrow.Raw(),
		opp.Direction.Code(),
		floor.Raw(),
	}, nil
}

type output struct {
	success  bool
	profit   *big.Int
	borrowed *big.Int

	yesCompany, noCompany, yesCurrency, noCurrency, company *big.Int
}

func decode(values []any) (output, error) {
	var out output
	if len(values) != 8 {
		return out, apperror.New(apperror.CodeDecodeFailed,
			apperror.WithContext(fmt.Sprintf("executeArbitrage returned %d values", len(values))))
	}
	var ok bool
	if out.success, ok = values[0].(bool); !ok {
		return out, apperror.New(apperror.CodeDecodeFailed, apperror.WithContext("success is not bool"))
	}
	ints := []**big.Int{&out.profit, &out.borrowed, &out.yesCompany, &out.noCompany, &out.yesCurrency, &out.noCurrency, &out.company}
	for i, dst := range ints {
		v, ok := values[i+1].(*big.Int)
		if !ok {
			return out, apperror.New(apperror.CodeDecodeFailed,
				apperror.WithContext(fmt.Sprintf("output %d is %T", i+1, values[i+1])))
		}
		*dst = v
	}
	return out, nil
}

// revertRules map revert reason fragments to the stage that failed.
var revertRules = []struct {
	fragments []string
	step      domain.Step
	code      apperror.Code
}{
	{[]string{"repay"}, domain.StepRepay, apperror.CodeInsufficientToRepay},
	{[]string{"min profit", "minprofit", "profit below"}, domain.StepProfitCheck, apperror.CodeProfitBelowMinimum},
	{[]string{"insufficient liquidity", "flash loan", "borrow"}, domain.StepBorrow, apperror.CodeInsufficientLiquidity},
	{[]string{"split"}, domain.StepSplit, apperror.CodeSplitFailed},
	{[]string{"merge"}, domain.StepMerge, apperror.CodeMergeFailed},
	{[]string{"slippage", "too little received", "insufficient output"}, domain.StepTrade, apperror.CodeSlippageExceeded},
}

// classify maps a failed call to the failing stage. Transport errors keep
// their code and are attributed to the whole call.
func classify(err error) (domain.Step, error) {
	reason, ok := contract.RevertReason(err)
	if !ok {
		return domain.StepExecute, err
	}
	lower := strings.ToLower(reason)
	for _, r := range revertRules {
		for _, f := range r.fragments {
			if strings.Contains(lower, f) {
				return r.step, apperror.New(r.code, apperror.WithCause(err), apperror.WithContext(reason))
			}
		}
	}
	return domain.StepExecute, apperror.New(apperror.CodeExecutionReverted, apperror.WithCause(err), apperror.WithContext(reason))
}
