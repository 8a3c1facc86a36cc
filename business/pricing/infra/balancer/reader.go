package balancer

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/fd1az/futarchy-arbitrage/business/pricing/app"
	"github.com/fd1az/futarchy-arbitrage/business/pricing/domain"
	"github.com/fd1az/futarchy-arbitrage/internal/apperror"
	"github.com/fd1az/futarchy-arbitrage/internal/circuitbreaker"
	"github.com/fd1az/futarchy-arbitrage/internal/contract"
	"github.com/fd1az/futarchy-arbitrage/internal/logger"
)

const (
	tracerName = "balancer"
	meterName  = "balancer"
)

var _ app.PoolReader = (*Reader)(nil)

type readerMetrics struct {
	readsTotal  metric.Int64Counter
	readLatency metric.Float64Histogram
	readErrors  metric.Int64Counter
}

// Reader rebuilds weighted pools from pool getters and vault balances.
type Reader struct {
	vault *contract.Contract
	pool  *contract.Contract
	rate  *contract.Contract

	tokens app.TokenResolver
	logger logger.LoggerInterface

	tracer  trace.Tracer
	metrics *readerMetrics
}

// NewReader creates a weighted pool reader against the vault at vault.
func NewReader(vault common.Address, caller contract.Caller, tokens app.TokenResolver, log logger.LoggerInterface) (*Reader, error) {
	cb := circuitbreaker.New[[]byte](circuitbreaker.DefaultConfig("balancer"))

	v, err := contract.New(vault, VaultABI, caller, cb)
	if err != nil {
		return nil, fmt.Errorf("failed to bind vault abi: %w", err)
	}
	p, err := contract.New(common.Address{}, WeightedPoolABI, caller, cb)
	if err != nil {
		return nil, fmt.Errorf("failed to bind weighted pool abi: %w", err)
	}
	rp, err := contract.New(common.Address{}, RateProviderABI, caller,
		circuitbreaker.New[[]byte](circuitbreaker.DefaultConfig("balancer-rate-provider")))
	if err != nil {
		return nil, fmt.Errorf("failed to bind rate provider abi: %w", err)
	}

	r := &Reader{
		vault:  v,
		pool:   p,
		rate:   rp,
		tokens: tokens,
		logger: log,
		tracer: otel.Tracer(tracerName),
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
		"weighted_pool_reads_total",
		metric.WithDescription("Total weighted pool state reads"),
	)
	if err != nil {
		return err
	}

	r.metrics.readLatency, err = meter.Float64Histogram(
		"weighted_pool_read_latency_ms",
		metric.WithDescription("Weighted pool read latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	r.metrics.readErrors, err = meter.Int64Counter(
		"weighted_pool_read_errors_total",
		metric.WithDescription("Total weighted pool read errors"),
	)
	return err
}

// ReadPool implements app.PoolReader.
func (r *Reader) ReadPool(ctx context.Context, ref domain.PoolRef, block *big.Int) (domain.Pool, error) {
	ctx, span := r.tracer.Start(ctx, "balancer.read_pool",
		trace.WithAttributes(attribute.String("pool", ref.Address.Hex())),
	)
	defer span.End()

	start := time.Now()
	r.metrics.readsTotal.Add(ctx, 1)
	defer func() {
		r.metrics.readLatency.Record(ctx, float64(time.Since(start).Milliseconds()))
	}()

	if ref.Venue != domain.VenueBalancer {
		err := apperror.New(apperror.CodePoolUnavailable,
			apperror.WithContext(fmt.Sprintf("venue %q is not a weighted venue", ref.Venue)))
		span.SetStatus(codes.Error, "wrong venue")
		return nil, err
	}

	pool, err := r.read(ctx, ref.Address, block)
	if err != nil {
		r.metrics.readErrors.Add(ctx, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "pool read failed")
		return nil, apperror.New(apperror.CodePoolUnavailable,
			apperror.WithCause(err),
			apperror.WithContext(ref.String()))
	}

	span.SetAttributes(attribute.Int("tokens", len(pool.Tokens())))
	span.SetStatus(codes.Ok, "pool read")
	return pool, nil
}

func (r *Reader) read(ctx context.Context, addr common.Address, block *big.Int) (*domain.WeightedPool, error) {
	c := r.pool.At(addr)

	var (
		poolID    [32]byte
		weights   []*big.Int
		fee       *big.Int
		providers []common.Address
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		values, err := c.Call(gctx, block, "getPoolId")
		if err != nil {
			return err
		}
		id, ok := values[0].([32]byte)
		if !ok {
			return decodeErr("getPoolId", addr)
		}
		poolID = id
		return nil
	})
	g.Go(func() error {
		values, err := c.Call(gctx, block, "getNormalizedWeights")
		if err != nil {
			return err
		}
		w, ok := values[0].([]*big.Int)
		if !ok {
			return decodeErr("getNormalizedWeights", addr)
		}
		weights = w
		return nil
	})
	g.Go(func() (err error) {
		fee, err = c.CallBig(gctx, block, "getSwapFeePercentage")
		return err
	})
	g.Go(func() error {
		// Pools deployed without rate providers do not expose the getter.
		values, err := c.Call(gctx, block, "getRateProviders")
		if err != nil {
			r.logger.Debug(gctx, "no rate providers", "pool", addr.Hex(), "error", err)
			return nil
		}
		if p, ok := values[0].([]common.Address); ok {
			providers = p
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	values, err := r.vault.Call(ctx, block, "getPoolTokens", poolID)
	if err != nil {
		return nil, err
	}
	tokens, ok1 := values[0].([]common.Address)
	balances, ok2 := values[1].([]*big.Int)
	if !ok1 || !ok2 {
		return nil, decodeErr("getPoolTokens", addr)
	}
	if len(tokens) != len(balances) || len(tokens) != len(weights) {
		return nil, fmt.Errorf("balancer: pool %s returned %d tokens, %d balances, %d weights",
			addr.Hex(), len(tokens), len(balances), len(weights))
	}
	if providers != nil && len(providers) != len(tokens) {
		return nil, fmt.Errorf("balancer: pool %s returned %d rate providers for %d tokens",
			addr.Hex(), len(providers), len(tokens))
	}

	legs := make([]domain.WeightedToken, len(tokens))
	g, gctx = errgroup.WithContext(ctx)
	for i, token := range tokens {
		g.Go(func() error {
			a, err := r.tokens.Resolve(gctx, token)
			if err != nil {
				return err
			}
			rate := decimal.NewFromInt(1)
			if providers != nil && providers[i] != (common.Address{}) {
				raw, err := r.rate.At(providers[i]).CallBig(gctx, block, "getRate")
				if err != nil {
					return err
				}
				rate = domain.ScaleRaw(raw, fixedPointDecimals)
			}
			legs[i] = domain.WeightedToken{
				Asset:   a,
				Balance: domain.ScaleRaw(balances[i], a.Decimals()),
				Weight:  domain.ScaleRaw(weights[i], fixedPointDecimals),
				Rate:    rate,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pool, err := domain.NewWeightedPool(addr, legs, domain.ScaleRaw(fee, fixedPointDecimals))
	if err != nil {
		return nil, err
	}

	r.logger.Debug(ctx, "weighted pool read",
		"pool", addr.Hex(),
		"tokens", len(legs),
		"fee", pool.Fee().String(),
	)
	return pool, nil
}

func decodeErr(method string, addr common.Address) error {
	return apperror.New(apperror.CodeDecodeFailed,
		apperror.WithContext(fmt.Sprintf("%s of %s", method, addr.Hex())))
}
