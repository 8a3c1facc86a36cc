package app

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/futarchy-arbitrage/business/pricing/domain"
	"github.com/fd1az/futarchy-arbitrage/internal/apperror"
	"github.com/fd1az/futarchy-arbitrage/internal/asset"
	"github.com/fd1az/futarchy-arbitrage/internal/logger"
)

var (
	yesGNO  = asset.MustNewToken(asset.ChainIDGnosis, common.HexToAddress("0x0000000000000000000000000000000000000011"), "YES_GNO", "YES GNO", 18)
	noGNO   = asset.MustNewToken(asset.ChainIDGnosis, common.HexToAddress("0x0000000000000000000000000000000000000012"), "NO_GNO", "NO GNO", 18)
	yesSDAI = asset.MustNewToken(asset.ChainIDGnosis, common.HexToAddress("0x0000000000000000000000000000000000000013"), "YES_sDAI", "YES sDAI", 18)
	noSDAI  = asset.MustNewToken(asset.ChainIDGnosis, common.HexToAddress("0x0000000000000000000000000000000000000014"), "NO_sDAI", "NO sDAI", 18)

	yesPoolAddr  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	noPoolAddr   = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	gnoPoolAddr  = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	sdaiPoolAddr = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeReader struct {
	mu    sync.Mutex
	pools map[common.Address]domain.Pool
	errs  map[common.Address]error
	calls int
}

func (f *fakeReader) ReadPool(_ context.Context, ref domain.PoolRef, _ *big.Int) (domain.Pool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.errs[ref.Address]; err != nil {
		return nil, err
	}
	p, ok := f.pools[ref.Address]
	if !ok {
		return nil, errors.New("no such pool")
	}
	return p.Clone(), nil
}

func (f *fakeReader) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func tickPool(t *testing.T, addr common.Address, base, quote *asset.Asset, price string) domain.Pool {
	t.Helper()
	if quote.ID().Less(base.ID()) {
		t.Fatalf("fixture expects %s < %s", base, quote)
	}
	sqrt := domain.SqrtPriceX96FromPrice(d(price), base.Decimals(), quote.Decimals())
	liquidity := new(big.Int).Exp(big.NewInt(10), big.NewInt(22), nil)
	p, err := domain.NewTickPool(addr, base, quote, sqrt, liquidity, 3000)
	if err != nil {
		t.Fatalf("NewTickPool: %v", err)
	}
	return p
}

func weightedPool(t *testing.T, addr common.Address, a, b *asset.Asset, balA, balB string) domain.Pool {
	t.Helper()
	p, err := domain.NewWeightedPool(addr, []domain.WeightedToken{
		{Asset: a, Balance: d(balA), Weight: d("0.5")},
		{Asset: b, Balance: d(balB), Weight: d("0.5")},
	}, d("0.003"))
	if err != nil {
		t.Fatalf("NewWeightedPool: %v", err)
	}
	return p
}

func newMarket(t *testing.T) (*fakeReader, SnapshotRequest) {
	t.Helper()
	reader := &fakeReader{
		pools: map[common.Address]domain.Pool{
			yesPoolAddr:  tickPool(t, yesPoolAddr, yesGNO, yesSDAI, "120"),
			noPoolAddr:   tickPool(t, noPoolAddr, noGNO, noSDAI, "110"),
			gnoPoolAddr:  weightedPool(t, gnoPoolAddr, asset.GNO, asset.WXDAI, "100", "10000"),
			sdaiPoolAddr: weightedPool(t, sdaiPoolAddr, asset.WXDAI, asset.SDAI, "1000", "1000"),
		},
		errs: map[common.Address]error{},
	}
	req := SnapshotRequest{
		Block:    10,
		YesPool:  domain.PoolRef{Address: yesPoolAddr, Venue: domain.VenueAlgebra},
		NoPool:   domain.PoolRef{Address: noPoolAddr, Venue: domain.VenueAlgebra},
		YesBase:  yesGNO,
		YesQuote: yesSDAI,
		NoBase:   noGNO,
		NoQuote:  noSDAI,
		Spot: []HopRef{
			{Pool: domain.PoolRef{Address: gnoPoolAddr, Venue: domain.VenueBalancer}, TokenIn: asset.AddrGNOGnosis, TokenOut: asset.AddrWXDAIGnosis},
			{Pool: domain.PoolRef{Address: sdaiPoolAddr, Venue: domain.VenueBalancer}, TokenIn: asset.AddrWXDAIGnosis, TokenOut: asset.AddrSDAIGnosis},
		},
	}
	return reader, req
}

func assertClose(t *testing.T, name string, got, want decimal.Decimal) {
	t.Helper()
	if got.Sub(want).Abs().GreaterThan(d("0.000000001")) {
		t.Errorf("%s = %s, want %s", name, got, want)
	}
}

func TestPriceOracle_PriceOf(t *testing.T) {
	o := NewPriceOracle(&fakeReader{}, logger.Nop())
	defer o.Close()

	tick := tickPool(t, yesPoolAddr, yesGNO, yesSDAI, "120")
	weighted := weightedPool(t, gnoPoolAddr, asset.GNO, asset.WXDAI, "100", "10000")

	tests := []struct {
		name     string
		pool     domain.Pool
		base     *asset.Asset
		want     string
		wantCode apperror.Code
	}{
		{name: "tick token0 base", pool: tick, base: yesGNO, want: "120"},
		{name: "tick token1 base inverts", pool: tick, base: yesSDAI, want: "0.008333333333333333"},
		{name: "weighted", pool: weighted, base: asset.GNO, want: "100"},
		{name: "weighted inverse", pool: weighted, base: asset.WXDAI, want: "0.01"},
		{name: "foreign token", pool: weighted, base: asset.SDAI, wantCode: apperror.CodeOrientationMismatch},
		{name: "nil pool", pool: nil, base: asset.GNO, wantCode: apperror.CodePoolUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := o.PriceOf(tt.pool, tt.base)
			if tt.wantCode != "" {
				if !apperror.HasCode(err, tt.wantCode) {
					t.Fatalf("err = %v, want %s", err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("PriceOf: %v", err)
			}
			assertClose(t, "price", got, d(tt.want))
		})
	}
}

func TestPriceOracle_Snapshot(t *testing.T) {
	reader, req := newMarket(t)
	o := NewPriceOracle(reader, logger.Nop())
	defer o.Close()

	snap, err := o.Snapshot(context.Background(), req)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	assertClose(t, "yes", snap.YesPrice.Rate(), d("120"))
	assertClose(t, "no", snap.NoPrice.Rate(), d("110"))
	assertClose(t, "spot", snap.SpotPrice.Rate(), d("100"))
	if !snap.SpotPrice.Base().Equals(asset.GNO) || !snap.SpotPrice.Quote().Equals(asset.SDAI) {
		t.Errorf("spot pair = %s, want GNO/sDAI", snap.SpotPrice.Pair())
	}
	if len(snap.Spot) != 2 {
		t.Fatalf("spot hops = %d, want 2", len(snap.Spot))
	}
	if got := snap.Spread().Direction; got != domain.SpreadConditionalRich {
		t.Errorf("direction = %s, want %s", got, domain.SpreadConditionalRich)
	}
	if snap.Block != 10 {
		t.Errorf("block = %d, want 10", snap.Block)
	}
}

func TestPriceOracle_SnapshotCachesFixedBlocks(t *testing.T) {
	reader, req := newMarket(t)
	o := NewPriceOracle(reader, logger.Nop())
	defer o.Close()
	ctx := context.Background()

	if _, err := o.Snapshot(ctx, req); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if reader.Calls() != 4 {
		t.Fatalf("calls = %d, want 4", reader.Calls())
	}

	snap, err := o.Snapshot(ctx, req)
	if err != nil {
		t.Fatalf("second Snapshot: %v", err)
	}
	if reader.Calls() != 4 {
		t.Errorf("cached snapshot hit the reader: calls = %d", reader.Calls())
	}

	// Mutating a returned pool must not leak into the cache.
	if _, err := snap.YesPool.Swap(yesGNO, yesSDAI, d("10")); err != nil {
		t.Fatalf("Swap: %v", err)
	}
	again, err := o.Snapshot(ctx, req)
	if err != nil {
		t.Fatalf("third Snapshot: %v", err)
	}
	assertClose(t, "yes after foreign swap", again.YesPrice.Rate(), d("120"))

	req.Block = 0
	if _, err := o.Snapshot(ctx, req); err != nil {
		t.Fatalf("latest Snapshot: %v", err)
	}
	if reader.Calls() != 8 {
		t.Errorf("latest snapshot calls = %d, want 8", reader.Calls())
	}
}

func TestPriceOracle_SnapshotErrors(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*fakeReader, *SnapshotRequest)
		wantCode apperror.Code
	}{
		{
			name:     "reader failure",
			mutate:   func(r *fakeReader, _ *SnapshotRequest) { r.errs[noPoolAddr] = errors.New("rpc down") },
			wantCode: apperror.CodePoolUnavailable,
		},
		{
			name:     "zero pool address",
			mutate:   func(_ *fakeReader, q *SnapshotRequest) { q.YesPool.Address = common.Address{} },
			wantCode: apperror.CodePoolUnavailable,
		},
		{
			name:     "unknown venue",
			mutate:   func(_ *fakeReader, q *SnapshotRequest) { q.NoPool.Venue = "curve" },
			wantCode: apperror.CodePoolUnavailable,
		},
		{
			name:     "empty spot route",
			mutate:   func(_ *fakeReader, q *SnapshotRequest) { q.Spot = nil },
			wantCode: apperror.CodePoolUnavailable,
		},
		{
			name:     "yes base not in pool",
			mutate:   func(_ *fakeReader, q *SnapshotRequest) { q.YesBase = noGNO },
			wantCode: apperror.CodeOrientationMismatch,
		},
		{
			name:     "no quote not in pool",
			mutate:   func(_ *fakeReader, q *SnapshotRequest) { q.NoQuote = yesSDAI },
			wantCode: apperror.CodeOrientationMismatch,
		},
		{
			name:     "hop token not in pool",
			mutate:   func(_ *fakeReader, q *SnapshotRequest) { q.Spot[1].TokenOut = asset.AddrGNOGnosis },
			wantCode: apperror.CodeOrientationMismatch,
		},
		{
			name: "hops do not chain",
			mutate: func(_ *fakeReader, q *SnapshotRequest) {
				q.Spot[1].TokenIn, q.Spot[1].TokenOut = asset.AddrSDAIGnosis, asset.AddrWXDAIGnosis
			},
			wantCode: apperror.CodeOrientationMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader, req := newMarket(t)
			tt.mutate(reader, &req)
			o := NewPriceOracle(reader, logger.Nop())
			defer o.Close()

			_, err := o.Snapshot(context.Background(), req)
			if !apperror.HasCode(err, tt.wantCode) {
				t.Errorf("err = %v, want %s", err, tt.wantCode)
			}
		})
	}
}

func TestVenueReaders(t *testing.T) {
	reader, _ := newMarket(t)
	readers := VenueReaders{domain.VenueAlgebra: reader}

	if _, err := readers.ReadPool(context.Background(), domain.PoolRef{Address: yesPoolAddr, Venue: domain.VenueAlgebra}, nil); err != nil {
		t.Errorf("algebra read: %v", err)
	}
	_, err := readers.ReadPool(context.Background(), domain.PoolRef{Address: gnoPoolAddr, Venue: domain.VenueBalancer}, nil)
	if !apperror.HasCode(err, apperror.CodePoolUnavailable) {
		t.Errorf("err = %v, want %s", err, apperror.CodePoolUnavailable)
	}
}
