package app

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/fd1az/futarchy-arbitrage/business/pricing/domain"
	"github.com/fd1az/futarchy-arbitrage/internal/apm"
	"github.com/fd1az/futarchy-arbitrage/internal/apperror"
	"github.com/fd1az/futarchy-arbitrage/internal/asset"
	"github.com/fd1az/futarchy-arbitrage/internal/cache"
	"github.com/fd1az/futarchy-arbitrage/internal/logger"
)

// poolTTL bounds how long a pool read at a fixed block is reused.
const poolTTL = 2 * time.Minute

// PriceOracle reads pool state and derives oriented prices from it.
type PriceOracle struct {
	reader PoolReader
	pools  *cache.Cache[string, domain.Pool]
	logger logger.LoggerInterface
	tracer apm.Tracer
	now    func() time.Time
}

// NewPriceOracle creates an oracle over reader.
func NewPriceOracle(reader PoolReader, log logger.LoggerInterface) *PriceOracle {
	return &PriceOracle{
		reader: reader,
		pools:  cache.New[string, domain.Pool](time.Minute),
		logger: log,
		tracer: apm.NewTracer("pricing.oracle"),
		now:    time.Now,
	}
}

// Close releases the pool cache.
func (o *PriceOracle) Close() {
	o.pools.Close()
}

// PriceOf returns the marginal price of base in the other token of a two-token pool.
func (o *PriceOracle) PriceOf(pool domain.Pool, base *asset.Asset) (decimal.Decimal, error) {
	if pool == nil {
		return decimal.Zero, apperror.New(apperror.CodePoolUnavailable, apperror.WithContext("nil pool"))
	}
	quote, err := domain.OtherToken(pool, base)
	if err != nil {
		return decimal.Zero, apperror.New(apperror.CodeOrientationMismatch, apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("%s in %s", base, pool.Address().Hex())))
	}
	return price(pool, base, quote)
}

// Pool returns the state of ref at block, 0 meaning latest. Reads at a fixed
// block are cached; callers get a clone they may mutate.
func (o *PriceOracle) Pool(ctx context.Context, ref domain.PoolRef, block uint64) (domain.Pool, error) {
	key := fmt.Sprintf("%d:%s", block, ref)
	if block > 0 {
		if p, ok := o.pools.Get(ctx, key); ok {
			return p.Clone(), nil
		}
	}

	if !ref.Venue.Valid() {
		return nil, apperror.New(apperror.CodePoolUnavailable,
			apperror.WithContext(fmt.Sprintf("unknown venue %q for %s", ref.Venue, ref.Address.Hex())))
	}
	if ref.Address == (common.Address{}) {
		return nil, apperror.New(apperror.CodePoolUnavailable, apperror.WithContext("zero pool address"))
	}

	var at *big.Int
	if block > 0 {
		at = new(big.Int).SetUint64(block)
	}
	p, err := o.reader.ReadPool(ctx, ref, at)
	if err != nil {
		if apperror.HasCode(err, apperror.CodePoolUnavailable) {
			return nil, err
		}
		return nil, apperror.New(apperror.CodePoolUnavailable, apperror.WithCause(err),
			apperror.WithContext(ref.String()))
	}

	if block > 0 {
		o.pools.Set(ctx, key, p, poolTTL)
		return p.Clone(), nil
	}
	return p, nil
}

// Snapshot loads every pool of the market concurrently and prices the YES and
// NO conditional pairs and the spot route.
func (o *PriceOracle) Snapshot(ctx context.Context, req SnapshotRequest) (*domain.Snapshot, error) {
	ctx, span := o.tracer.StartSpanFromContext(ctx, "pricing.snapshot")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("block", int64(req.Block)),
		attribute.String("yes_pool", req.YesPool.String()),
		attribute.String("no_pool", req.NoPool.String()),
		attribute.Int("spot_hops", len(req.Spot)),
	)

	if len(req.Spot) == 0 {
		err := apperror.New(apperror.CodePoolUnavailable, apperror.WithCause(domain.ErrEmptyPath))
		span.NoticeError(err)
		return nil, err
	}

	refs := []domain.PoolRef{req.YesPool, req.NoPool}
	for _, h := range req.Spot {
		refs = append(refs, h.Pool)
	}
	pools, err := o.loadAll(ctx, refs, req.Block)
	if err != nil {
		span.NoticeError(err)
		return nil, err
	}

	snap := &domain.Snapshot{
		Block:     req.Block,
		Timestamp: o.now(),
		YesPool:   pools[req.YesPool.Address.Hex()],
		NoPool:    pools[req.NoPool.Address.Hex()],
	}

	yes, err := o.conditionalPrice(snap.YesPool, req.YesBase, req.YesQuote)
	if err != nil {
		span.NoticeError(err)
		return nil, err
	}
	no, err := o.conditionalPrice(snap.NoPool, req.NoBase, req.NoQuote)
	if err != nil {
		span.NoticeError(err)
		return nil, err
	}
	snap.YesPrice = asset.NewPrice(req.YesBase, req.YesQuote, yes, req.Block, snap.Timestamp)
	snap.NoPrice = asset.NewPrice(req.NoBase, req.NoQuote, no, req.Block, snap.Timestamp)

	snap.Spot, snap.SpotPrice, err = o.spot(req, pools, snap.Timestamp)
	if err != nil {
		span.NoticeError(err)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("yes_price", yes.String()),
		attribute.String("no_price", no.String()),
		attribute.String("spot_price", snap.SpotPrice.Rate().String()),
	)
	span.Ok("snapshot taken")

	o.logger.Debug(ctx, "market snapshot",
		"block", req.Block,
		"yes", yes.StringFixed(6),
		"no", no.StringFixed(6),
		"spot", snap.SpotPrice.Rate().StringFixed(6),
		"route", snap.Spot.String(),
	)
	return snap, nil
}

// conditionalPrice prices base in a two-token conditional pool that must hold quote.
func (o *PriceOracle) conditionalPrice(pool domain.Pool, base, quote *asset.Asset) (decimal.Decimal, error) {
	if pool != nil && quote != nil && tokenAt(pool, quote.Address()) == nil {
		return decimal.Zero, apperror.New(apperror.CodeOrientationMismatch,
			apperror.WithContext(fmt.Sprintf("%s not in %s", quote.Symbol(), pool.Address().Hex())))
	}
	if base == nil {
		return decimal.Zero, apperror.New(apperror.CodeOrientationMismatch,
			apperror.WithContext("missing base token"))
	}
	return o.PriceOf(pool, base)
}

func (o *PriceOracle) loadAll(ctx context.Context, refs []domain.PoolRef, block uint64) (map[string]domain.Pool, error) {
	unique := make(map[string]domain.PoolRef, len(refs))
	for _, r := range refs {
		unique[r.Address.Hex()] = r
	}

	keys := make([]string, 0, len(unique))
	for k := range unique {
		keys = append(keys, k)
	}
	loaded := make([]domain.Pool, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	for i, k := range keys {
		g.Go(func() error {
			p, err := o.Pool(gctx, unique[k], block)
			if err != nil {
				return err
			}
			loaded[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pools := make(map[string]domain.Pool, len(keys))
	for i, k := range keys {
		pools[k] = loaded[i]
	}
	return pools, nil
}

func (o *PriceOracle) spot(req SnapshotRequest, pools map[string]domain.Pool, ts time.Time) (domain.Path, asset.Price, error) {
	hops := make([]domain.Hop, len(req.Spot))
	var chained asset.Price
	for i, h := range req.Spot {
		pool := pools[h.Pool.Address.Hex()]
		in, out := tokenAt(pool, h.TokenIn), tokenAt(pool, h.TokenOut)
		if in == nil || out == nil {
			return nil, asset.Price{}, apperror.New(apperror.CodeOrientationMismatch,
				apperror.WithContext(fmt.Sprintf("hop %d %s→%s not in %s", i, h.TokenIn.Hex(), h.TokenOut.Hex(), h.Pool)))
		}
		hops[i] = domain.Hop{Pool: pool, TokenIn: in, TokenOut: out}

		rate, err := price(pool, in, out)
		if err != nil {
			return nil, asset.Price{}, err
		}
		p := asset.NewPrice(in, out, rate, req.Block, ts)
		if i == 0 {
			chained = p
			continue
		}
		if chained, err = chained.Mul(p); err != nil {
			return nil, asset.Price{}, apperror.New(apperror.CodeOrientationMismatch, apperror.WithCause(err))
		}
	}

	path, err := domain.NewPath(hops...)
	if err != nil {
		return nil, asset.Price{}, apperror.New(apperror.CodeOrientationMismatch, apperror.WithCause(err))
	}
	return path, chained, nil
}

func price(pool domain.Pool, base, quote *asset.Asset) (decimal.Decimal, error) {
	if pool == nil {
		return decimal.Zero, apperror.New(apperror.CodePoolUnavailable, apperror.WithContext("nil pool"))
	}
	if base == nil || quote == nil {
		return decimal.Zero, apperror.New(apperror.CodeOrientationMismatch,
			apperror.WithContext(fmt.Sprintf("missing token for %s", pool.Address().Hex())))
	}

	rate, err := pool.Price(base, quote)
	if err != nil {
		code := apperror.CodePoolUnavailable
		if errors.Is(err, domain.ErrTokenNotInPool) {
			code = apperror.CodeOrientationMismatch
		}
		return decimal.Zero, apperror.New(code, apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("%s/%s in %s", base.Symbol(), quote.Symbol(), pool.Address().Hex())))
	}
	if !rate.IsPositive() {
		return decimal.Zero, apperror.New(apperror.CodePoolUnavailable,
			apperror.WithContext(fmt.Sprintf("%s has no price for %s", pool.Address().Hex(), base.Symbol())))
	}
	return rate, nil
}

func tokenAt(pool domain.Pool, addr common.Address) *asset.Asset {
	for _, t := range pool.Tokens() {
		if t.Address() == addr {
			return t
		}
	}
	return nil
}
