package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/futarchy-arbitrage/business/blockchain/domain"
	"github.com/fd1az/futarchy-arbitrage/internal/apperror"
	"github.com/fd1az/futarchy-arbitrage/internal/cache"
	"github.com/fd1az/futarchy-arbitrage/internal/circuitbreaker"
	"github.com/fd1az/futarchy-arbitrage/internal/logger"
)

// GasPriceReader is satisfied by *ethclient.Client.
type GasPriceReader interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// GasOracleConfig holds configuration for the gas oracle.
type GasOracleConfig struct {
	CacheTTL    time.Duration
	MaxGasPrice *big.Int // clamp for suggestions, nil = none
}

// DefaultGasOracleConfig returns defaults for Gnosis Chain.
func DefaultGasOracleConfig() GasOracleConfig {
	return GasOracleConfig{
		CacheTTL:    5 * time.Second, // one block
		MaxGasPrice: big.NewInt(100_000_000_000),
	}
}

type gasOracleMetrics struct {
	gasPriceFetches metric.Int64Counter
	gasPriceGwei    metric.Float64Gauge
	cacheHits       metric.Int64Counter
}

// GasOracle caches suggested gas prices per block.
type GasOracle struct {
	config GasOracleConfig
	logger logger.LoggerInterface
	client GasPriceReader

	priceCache *cache.Cache[string, *domain.GasPrice]
	cb         *circuitbreaker.CircuitBreaker[*big.Int]

	tracer  trace.Tracer
	metrics *gasOracleMetrics
}

// NewGasOracle creates a gas oracle reading from client.
func NewGasOracle(cfg GasOracleConfig, client GasPriceReader, log logger.LoggerInterface) (*GasOracle, error) {
	g := &GasOracle{
		config:     cfg,
		logger:     log,
		client:     client,
		priceCache: cache.New[string, *domain.GasPrice](time.Minute),
		cb:         circuitbreaker.New[*big.Int](circuitbreaker.DefaultConfig("gas-oracle")),
		tracer:     otel.Tracer(tracerName),
	}

	if err := g.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return g, nil
}

func (g *GasOracle) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	g.metrics = &gasOracleMetrics{}

	g.metrics.gasPriceFetches, err = meter.Int64Counter(
		"gas_price_fetches_total",
		metric.WithDescription("Total gas price fetch attempts"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return err
	}

	g.metrics.gasPriceGwei, err = meter.Float64Gauge(
		"gas_price_gwei",
		metric.WithDescription("Current gas price in gwei"),
		metric.WithUnit("gwei"),
	)
	if err != nil {
		return err
	}

	g.metrics.cacheHits, err = meter.Int64Counter(
		"gas_cache_hits_total",
		metric.WithDescription("Gas price cache hits"),
		metric.WithUnit("{hit}"),
	)
	return err
}

// GasPrice returns the suggested gas price, cached for CacheTTL.
func (g *GasOracle) GasPrice(ctx context.Context) (*domain.GasPrice, error) {
	ctx, span := g.tracer.Start(ctx, "gas.get_price")
	defer span.End()

	if price, found := g.priceCache.Get(ctx, "current"); found {
		g.metrics.cacheHits.Add(ctx, 1)
		span.AddEvent("cache_hit")
		return price, nil
	}

	g.metrics.gasPriceFetches.Add(ctx, 1)

	wei, err := g.cb.Execute(func() (*big.Int, error) {
		return g.client.SuggestGasPrice(ctx)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, apperror.Wrap(err, apperror.CodeEthereumRPCError, "suggest gas price")
	}

	if g.config.MaxGasPrice != nil && wei.Cmp(g.config.MaxGasPrice) > 0 {
		g.logger.Warn(ctx, "gas price exceeds max, clamping", "wei", wei.String())
		wei = g.config.MaxGasPrice
	}

	price := domain.NewGasPrice(wei)
	g.priceCache.Set(ctx, "current", price, g.config.CacheTTL)
	g.metrics.gasPriceGwei.Record(ctx, price.Gwei())

	span.SetAttributes(attribute.Float64("gwei", price.Gwei()))
	span.SetStatus(codes.Ok, "fetched")
	return price, nil
}

// Close stops the cache sweeper.
func (g *GasOracle) Close() {
	g.priceCache.Close()
}
