package ethereum

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/futarchy-arbitrage/business/futarchy/app"
	"github.com/fd1az/futarchy-arbitrage/internal/circuitbreaker"
	"github.com/fd1az/futarchy-arbitrage/internal/contract"
)

var _ app.PoolLocator = (*AlgebraLocator)(nil)

// AlgebraLocator finds conditional pools through the Algebra factory.
type AlgebraLocator struct {
	factory *contract.Contract
	tracer  trace.Tracer
}

// NewAlgebraLocator binds the factory at address.
func NewAlgebraLocator(factory common.Address, caller contract.Caller) (*AlgebraLocator, error) {
	c, err := contract.New(factory, AlgebraFactoryABI, caller,
		circuitbreaker.New[[]byte](circuitbreaker.DefaultConfig("algebra-factory")))
	if err != nil {
		return nil, err
	}
	return &AlgebraLocator{factory: c, tracer: otel.Tracer(tracerName)}, nil
}

// PoolByPair returns the pool for the pair, zero when the factory has none.
func (l *AlgebraLocator) PoolByPair(ctx context.Context, tokenA, tokenB common.Address) (common.Address, error) {
	ctx, span := l.tracer.Start(ctx, "futarchy.pool_by_pair",
		trace.WithAttributes(
			attribute.String("token_a", tokenA.Hex()),
			attribute.String("token_b", tokenB.Hex()),
		),
	)
	defer span.End()

	pool, err := l.factory.CallAddress(ctx, nil, "poolByPair", tokenA, tokenB)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		return common.Address{}, err
	}

	span.SetAttributes(attribute.String("pool", pool.Hex()))
	span.SetStatus(codes.Ok, "pool located")
	return pool, nil
}
