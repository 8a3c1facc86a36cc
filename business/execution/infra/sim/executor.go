package sim

import (
	"context"
	"fmt"
	"time"

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
	"github.com/fd1az/futarchy-arbitrage/internal/logger"
)

const (
	tracerName = "execution.sim"
	meterName  = "execution.sim"
)

var _ app.Backend = (*ForkExecutor)(nil)

// ForkConfig configures the simulated chain each execution runs on.
type ForkConfig struct {
	Env             EnvConfig
	LenderLiquidity decimal.Decimal // borrow-token balance of the lender
}

type forkMetrics struct {
	executions metric.Int64Counter
	failures   metric.Int64Counter
	latency    metric.Float64Histogram
}

// ForkExecutor runs the coordinator against a fresh fork of the
// opportunity's market for every attempt. Nothing outside the fork changes.
type ForkExecutor struct {
	coordinator *app.Coordinator
	config      ForkConfig
	logger      logger.LoggerInterface

	tracer  trace.Tracer
	metrics *forkMetrics
}

// NewForkExecutor creates a simulation backend.
func NewForkExecutor(coordinator *app.Coordinator, cfg ForkConfig, log logger.LoggerInterface) (*ForkExecutor, error) {
	f := &ForkExecutor{
		coordinator: coordinator,
		config:      cfg,
		logger:      log,
		tracer:      otel.Tracer(tracerName),
	}
	if err := f.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return f, nil
}

func (f *ForkExecutor) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	f.metrics = &forkMetrics{}

	f.metrics.executions, err = meter.Int64Counter(
		"sim_executions_total",
		metric.WithDescription("Total simulated executions"),
	)
	if err != nil {
		return err
	}

	f.metrics.failures, err = meter.Int64Counter(
		"sim_execution_failures_total",
		metric.WithDescription("Simulated executions aborted, by error code"),
	)
	if err != nil {
		return err
	}

	f.metrics.latency, err = meter.Float64Histogram(
		"sim_execution_latency_ms",
		metric.WithDescription("Simulated execution latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	return err
}

func (f *ForkExecutor) Mode() domain.Mode { return domain.ModeSimulate }

// Execute forks opp.Market, funds the lender and runs the coordinator.
func (f *ForkExecutor) Execute(ctx context.Context, opp *arbDomain.Opportunity, minProfit decimal.Decimal) (*domain.Result, error) {
	ctx, span := f.tracer.Start(ctx, "sim.execute")
	defer span.End()

	start := time.Now()
	f.metrics.executions.Add(ctx, 1)
	defer func() {
		f.metrics.latency.Record(ctx, float64(time.Since(start).Milliseconds()))
	}()

	env, err := f.fork(opp)
	if err != nil {
		f.metrics.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("code", string(apperror.GetCode(err)))))
		span.RecordError(err)
		span.SetStatus(codes.Error, "fork failed")
		return domain.NewResult(opp, domain.ModeSimulate, start).Fail(domain.StepBorrow, err), err
	}

	res, err := f.coordinator.Execute(ctx, env, opp, minProfit, domain.ModeSimulate)
	if err != nil {
		f.metrics.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("code", string(apperror.GetCode(err)))))
		span.RecordError(err)
		span.SetStatus(codes.Error, "execution aborted")
		return res, err
	}

	span.SetAttributes(attribute.String("profit", res.Profit.String()))
	span.SetStatus(codes.Ok, "execution settled")
	return res, nil
}

func (f *ForkExecutor) fork(opp *arbDomain.Opportunity) (*Env, error) {
	if opp == nil || opp.Market == nil {
		return nil, apperror.New(apperror.CodeInvalidInput, apperror.WithContext("opportunity has no market snapshot"))
	}
	if opp.BorrowToken == nil {
		return nil, apperror.New(apperror.CodeUnsupportedBorrowToken, apperror.WithContext("no borrow token"))
	}
	ledger := domain.NewLedger()
	if err := ledger.Credit(f.config.Env.Accounts.Lender, opp.BorrowToken, f.config.LenderLiquidity); err != nil {
		return nil, err
	}
	return NewEnv(f.config.Env, ledger, opp.Market.Clone().Pools()), nil
}
