package ethereum

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/fd1az/futarchy-arbitrage/business/futarchy/app"
	"github.com/fd1az/futarchy-arbitrage/internal/apperror"
	"github.com/fd1az/futarchy-arbitrage/internal/asset"
	"github.com/fd1az/futarchy-arbitrage/internal/circuitbreaker"
	"github.com/fd1az/futarchy-arbitrage/internal/contract"
	"github.com/fd1az/futarchy-arbitrage/internal/logger"
)

var _ app.TokenResolver = (*TokenReader)(nil)

// TokenReader resolves ERC20 metadata, registering every token it reads.
type TokenReader struct {
	erc20    *contract.Contract
	registry *asset.Registry
	chainID  uint64
	logger   logger.LoggerInterface
	group    singleflight.Group

	tracer    trace.Tracer
	lookups   metric.Int64Counter
	cacheHits metric.Int64Counter
}

// NewTokenReader creates a resolver backed by registry.
func NewTokenReader(caller contract.Caller, registry *asset.Registry, chainID uint64, log logger.LoggerInterface) (*TokenReader, error) {
	c, err := contract.New(common.Address{}, ERC20ABI, caller,
		circuitbreaker.New[[]byte](circuitbreaker.DefaultConfig("erc20-metadata")))
	if err != nil {
		return nil, err
	}

	meter := otel.Meter(meterName)
	lookups, err := meter.Int64Counter("token_metadata_lookups_total",
		metric.WithDescription("Token metadata reads from chain"))
	if err != nil {
		return nil, err
	}
	hits, err := meter.Int64Counter("token_metadata_cache_hits_total",
		metric.WithDescription("Token metadata served from the registry"))
	if err != nil {
		return nil, err
	}

	return &TokenReader{
		erc20:     c,
		registry:  registry,
		chainID:   chainID,
		logger:    log,
		tracer:    otel.Tracer(tracerName),
		lookups:   lookups,
		cacheHits: hits,
	}, nil
}

// Resolve returns the registered asset for token, reading symbol and decimals on first use.
func (r *TokenReader) Resolve(ctx context.Context, token common.Address) (*asset.Asset, error) {
	if a, ok := r.registry.GetToken(r.chainID, token); ok {
		r.cacheHits.Add(ctx, 1)
		return a, nil
	}

	v, err, _ := r.group.Do(token.Hex(), func() (any, error) {
		return r.read(ctx, token)
	})
	if err != nil {
		return nil, err
	}
	return v.(*asset.Asset), nil
}

func (r *TokenReader) read(ctx context.Context, token common.Address) (*asset.Asset, error) {
	ctx, span := r.tracer.Start(ctx, "futarchy.read_token",
		trace.WithAttributes(attribute.String("token", token.Hex())),
	)
	defer span.End()
	r.lookups.Add(ctx, 1)

	if token == (common.Address{}) {
		return nil, apperror.New(apperror.CodeInvalidInput, apperror.WithContext("zero token address"))
	}

	c := r.erc20.At(token)
	values, err := c.Call(ctx, nil, "decimals")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decimals failed")
		return nil, err
	}
	decimals, ok := values[0].(uint8)
	if !ok || decimals > 36 {
		err := apperror.New(apperror.CodeDecodeFailed, apperror.WithContext(fmt.Sprintf("decimals of %s", token.Hex())))
		span.RecordError(err)
		span.SetStatus(codes.Error, "bad decimals")
		return nil, err
	}

	symbol := shortAddress(token)
	if values, err := c.Call(ctx, nil, "symbol"); err == nil {
		if s, ok := values[0].(string); ok && strings.TrimSpace(s) != "" {
			symbol = strings.TrimSpace(s)
		}
	} else {
		r.logger.Warn(ctx, "token symbol unavailable", "token", token.Hex(), "error", err)
	}

	name := symbol
	if values, err := c.Call(ctx, nil, "name"); err == nil {
		if s, ok := values[0].(string); ok && s != "" {
			name = s
		}
	}

	a := r.registry.Ensure(asset.MustNewToken(r.chainID, token, symbol, name, decimals))
	r.logger.Debug(ctx, "token registered", "token", token.Hex(), "symbol", a.Symbol(), "decimals", a.Decimals())

	span.SetAttributes(attribute.String("symbol", a.Symbol()))
	span.SetStatus(codes.Ok, "token resolved")
	return a, nil
}

func shortAddress(addr common.Address) string {
	return addr.Hex()[:10]
}
