package uniswap

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/fd1az/futarchy-arbitrage/business/pricing/app"
	"github.com/fd1az/futarchy-arbitrage/business/pricing/domain"
	"github.com/fd1az/futarchy-arbitrage/internal/apperror"
	"github.com/fd1az/futarchy-arbitrage/internal/asset"
	"github.com/fd1az/futarchy-arbitrage/internal/circuitbreaker"
	"github.com/fd1az/futarchy-arbitrage/internal/contract"
	"github.com/fd1az/futarchy-arbitrage/internal/logger"
)

const (
	tracerName = "uniswap"
	meterName  = "uniswap"
)

// Ensure Reader implements PoolReader.
var _ app.PoolReader = (*Reader)(nil)

// readerMetrics holds OTEL metric instruments.
type readerMetrics struct {
	readsTotal  metric.Int64Counter
	readLatency metric.Float64Histogram
	readErrors  metric.Int64Counter
}

// Reader rebuilds tick pools from Uniswap V3 slot0 or Algebra globalState.
type Reader struct {
	uniswap *contract.Contract
	algebra *contract.Contract
	tokens  app.TokenResolver
	logger  logger.LoggerInterface

	tracer  trace.Tracer
	metrics *readerMetrics
}

// NewReader creates a tick pool reader.
func NewReader(caller contract.Caller, tokens app.TokenResolver, log logger.LoggerInterface) (*Reader, error) {
	uni, err := contract.New(common.Address{}, PoolABI, caller,
		circuitbreaker.New[[]byte](circuitbreaker.DefaultConfig("uniswap-pool")))
	if err != nil {
		return nil, fmt.Errorf("failed to bind uniswap pool abi: %w", err)
	}
	alg, err := contract.New(common.Address{}, AlgebraPoolABI, caller,
		circuitbreaker.New[[]byte](circuitbreaker.DefaultConfig("algebra-pool")))
	if err != nil {
		return nil, fmt.Errorf("failed to bind algebra pool abi: %w", err)
	}

	r := &Reader{
		uniswap: uni,
		algebra: alg,
		tokens:  tokens,
		logger:  log,
		tracer:  otel.Tracer(tracerName),
	}
	if err := r.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}
	return r, nil
}

func (r *Reader) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	r.metrics = &readerMetrics{}

	r.metrics.readsTotal, err = meter.Int64Counter(
		"tick_pool_reads_total",
		metric.WithDescription("Total tick pool state reads"),
	)
	if err != nil {
		return err
	}

	r.metrics.readLatency, err = meter.Float64Histogram(
		"tick_pool_read_latency_ms",
		metric.WithDescription("Tick pool read latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	r.metrics.readErrors, err = meter.Int64Counter(
		"tick_pool_read_errors_total",
		metric.WithDescription("Total tick pool read errors"),
	)
	return err
}

// ReadPool reads token0, token1, liquidity and the current sqrt price and fee.
func (r *Reader) ReadPool(ctx context.Context, ref domain.PoolRef, block *big.Int) (domain.Pool, error) {
	ctx, span := r.tracer.Start(ctx, "uniswap.read_pool",
		trace.WithAttributes(
			attribute.String("pool", ref.Address.Hex()),
			attribute.String("venue", string(ref.Venue)),
		),
	)
	defer span.End()

	start := time.Now()
	r.metrics.readsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("venue", string(ref.Venue))))
	defer func() {
		r.metrics.readLatency.Record(ctx, float64(time.Since(start).Milliseconds()))
	}()

	pool, err := r.read(ctx, ref, block)
	if err != nil {
		r.metrics.readErrors.Add(ctx, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "pool read failed")
		return nil, apperror.New(apperror.CodePoolUnavailable,
			apperror.WithCause(err),
			apperror.WithContext(ref.String()))
	}

	span.SetAttributes(
		attribute.String("sqrt_price_x96", pool.SqrtPriceX96().String()),
		attribute.String("liquidity", pool.Liquidity().String()),
	)
	span.SetStatus(codes.Ok, "pool read")
	return pool, nil
}

func (r *Reader) read(ctx context.Context, ref domain.PoolRef, block *big.Int) (*domain.TickPool, error) {
	var c *contract.Contract
	switch ref.Venue {
	case domain.VenueUniswap:
		c = r.uniswap.At(ref.Address)
	case domain.VenueAlgebra:
		c = r.algebra.At(ref.Address)
	default:
		return nil, fmt.Errorf("venue %q is not a tick venue", ref.Venue)
	}

	var (
		token0, token1 common.Address
		liquidity      *big.Int
		state          poolState
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		token0, err = c.CallAddress(gctx, block, "token0")
		return err
	})
	g.Go(func() (err error) {
		token1, err = c.CallAddress(gctx, block, "token1")
		return err
	})
	g.Go(func() (err error) {
		liquidity, err = c.CallBig(gctx, block, "liquidity")
		return err
	})
	g.Go(func() (err error) {
		state, err = r.state(gctx, c, ref.Venue, block)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var a0, a1 *asset.Asset
	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		a0, err = r.tokens.Resolve(gctx, token0)
		return err
	})
	g.Go(func() (err error) {
		a1, err = r.tokens.Resolve(gctx, token1)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pool, err := domain.NewTickPool(ref.Address, a0, a1, state.SqrtPriceX96, liquidity, state.FeePips)
	if err != nil {
		return nil, err
	}

	r.logger.Debug(ctx, "tick pool read",
		"pool", ref.Address.Hex(),
		"venue", ref.Venue,
		"token0", a0.Symbol(),
		"token1", a1.Symbol(),
		"fee_pips", state.FeePips,
	)
	return pool, nil
}

func (r *Reader) state(ctx context.Context, c *contract.Contract, venue domain.Venue, block *big.Int) (poolState, error) {
	if venue == domain.VenueAlgebra {
		values, err := c.Call(ctx, block, "globalState")
		if err != nil {
			return poolState{}, err
		}
		sqrt, ok1 := values[0].(*big.Int)
		fee, ok2 := values[2].(uint16)
		if !ok1 || !ok2 {
			return poolState{}, apperror.New(apperror.CodeDecodeFailed,
				apperror.WithContext(fmt.Sprintf("globalState of %s", c.Address().Hex())))
		}
		return poolState{SqrtPriceX96: sqrt, FeePips: uint32(fee)}, nil
	}

	values, err := c.Call(ctx, block, "slot0")
	if err != nil {
		return poolState{}, err
	}
	sqrt, ok := values[0].(*big.Int)
	if !ok {
		return poolState{}, apperror.New(apperror.CodeDecodeFailed,
			apperror.WithContext(fmt.Sprintf("slot0 of %s", c.Address().Hex())))
	}
	fee, err := c.CallBig(ctx, block, "fee")
	if err != nil {
		return poolState{}, err
	}
	if !fee.IsUint64() || fee.Uint64() >= domain.FeeDenominator {
		return poolState{}, apperror.New(apperror.CodeDecodeFailed,
			apperror.WithContext(fmt.Sprintf("fee %s of %s", fee, c.Address().Hex())))
	}
	return poolState{SqrtPriceX96: sqrt, FeePips: uint32(fee.Uint64())}, nil
}
