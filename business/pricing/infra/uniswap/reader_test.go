package uniswap

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/futarchy-arbitrage/business/pricing/domain"
	"github.com/fd1az/futarchy-arbitrage/internal/apperror"
	"github.com/fd1az/futarchy-arbitrage/internal/asset"
	"github.com/fd1az/futarchy-arbitrage/internal/contract"
	"github.com/fd1az/futarchy-arbitrage/internal/contract/contracttest"
	"github.com/fd1az/futarchy-arbitrage/internal/logger"
)

var (
	poolAddr = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	tokA     = asset.MustNewToken(asset.ChainIDGnosis, common.HexToAddress("0x0000000000000000000000000000000000000011"), "YES_GNO", "YES GNO", 18)
	tokB     = asset.MustNewToken(asset.ChainIDGnosis, common.HexToAddress("0x0000000000000000000000000000000000000013"), "YES_sDAI", "YES sDAI", 18)
)

type staticResolver map[common.Address]*asset.Asset

func (s staticResolver) Resolve(_ context.Context, token common.Address) (*asset.Asset, error) {
	if a, ok := s[token]; ok {
		return a, nil
	}
	return nil, errors.New("unknown token")
}

// q96 shifted by n: sqrt price for a price of 4^n.
func sqrtX96(shift uint) *big.Int {
	return new(big.Int).Lsh(big.NewInt(1), 96+shift)
}

func seedCommon(t *testing.T, fake *contracttest.FakeCaller, parsed string, token0, token1 common.Address) {
	t.Helper()
	abi := contract.MustParse(parsed)
	fake.Set(poolAddr, abi, "token0", token0)
	fake.Set(poolAddr, abi, "token1", token1)
	fake.Set(poolAddr, abi, "liquidity", new(big.Int).Exp(big.NewInt(10), big.NewInt(21), nil))
}

func TestReader_ReadPool(t *testing.T) {
	resolver := staticResolver{tokA.Address(): tokA, tokB.Address(): tokB}

	tests := []struct {
		name      string
		venue     domain.Venue
		seed      func(*testing.T, *contracttest.FakeCaller)
		wantPrice string
		wantFee   string
		wantCode  apperror.Code
	}{
		{
			name:  "uniswap slot0",
			venue: domain.VenueUniswap,
			seed: func(t *testing.T, f *contracttest.FakeCaller) {
				seedCommon(t, f, PoolABI, tokA.Address(), tokB.Address())
				abi := contract.MustParse(PoolABI)
				f.Set(poolAddr, abi, "slot0", sqrtX96(0), big.NewInt(0), uint16(0), uint16(1), uint16(1), uint8(0), true)
				f.Set(poolAddr, abi, "fee", big.NewInt(3000))
			},
			wantPrice: "1",
			wantFee:   "0.003",
		},
		{
			name:  "algebra global state",
			venue: domain.VenueAlgebra,
			seed: func(t *testing.T, f *contracttest.FakeCaller) {
				seedCommon(t, f, AlgebraPoolABI, tokA.Address(), tokB.Address())
				abi := contract.MustParse(AlgebraPoolABI)
				f.Set(poolAddr, abi, "globalState", sqrtX96(1), big.NewInt(13863), uint16(500), uint16(0), uint8(0), uint8(0), true)
			},
			wantPrice: "4",
			wantFee:   "0.0005",
		},
		{
			name:  "unsorted tokens",
			venue: domain.VenueAlgebra,
			seed: func(t *testing.T, f *contracttest.FakeCaller) {
				seedCommon(t, f, AlgebraPoolABI, tokB.Address(), tokA.Address())
				abi := contract.MustParse(AlgebraPoolABI)
				f.Set(poolAddr, abi, "globalState", sqrtX96(0), big.NewInt(0), uint16(500), uint16(0), uint8(0), uint8(0), true)
			},
			wantCode: apperror.CodePoolUnavailable,
		},
		{
			name:  "uninitialized pool",
			venue: domain.VenueUniswap,
			seed: func(t *testing.T, f *contracttest.FakeCaller) {
				seedCommon(t, f, PoolABI, tokA.Address(), tokB.Address())
				abi := contract.MustParse(PoolABI)
				f.Set(poolAddr, abi, "slot0", big.NewInt(0), big.NewInt(0), uint16(0), uint16(0), uint16(0), uint8(0), false)
				f.Set(poolAddr, abi, "fee", big.NewInt(3000))
			},
			wantCode: apperror.CodePoolUnavailable,
		},
		{
			name:  "state call reverts",
			venue: domain.VenueUniswap,
			seed: func(t *testing.T, f *contracttest.FakeCaller) {
				seedCommon(t, f, PoolABI, tokA.Address(), tokB.Address())
				f.SetError(poolAddr, contract.MustParse(PoolABI), "slot0", errors.New("execution reverted"))
			},
			wantCode: apperror.CodePoolUnavailable,
		},
		{
			name:     "weighted venue",
			venue:    domain.VenueBalancer,
			seed:     func(*testing.T, *contracttest.FakeCaller) {},
			wantCode: apperror.CodePoolUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := contracttest.NewFakeCaller(t)
			tt.seed(t, fake)

			r, err := NewReader(fake, resolver, logger.Nop())
			if err != nil {
				t.Fatalf("NewReader: %v", err)
			}

			pool, err := r.ReadPool(context.Background(), domain.PoolRef{Address: poolAddr, Venue: tt.venue}, nil)
			if tt.wantCode != "" {
				if !apperror.HasCode(err, tt.wantCode) {
					t.Fatalf("err = %v, want %s", err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("ReadPool: %v", err)
			}

			price, err := pool.Price(tokA, tokB)
			if err != nil {
				t.Fatalf("Price: %v", err)
			}
			if !price.Equal(decimal.RequireFromString(tt.wantPrice)) {
				t.Errorf("price = %s, want %s", price, tt.wantPrice)
			}
			if !pool.Fee().Equal(decimal.RequireFromString(tt.wantFee)) {
				t.Errorf("fee = %s, want %s", pool.Fee(), tt.wantFee)
			}
			if pool.Address() != poolAddr || pool.Kind() != domain.KindTick {
				t.Errorf("pool = %s/%s", pool.Address().Hex(), pool.Kind())
			}
		})
	}
}
