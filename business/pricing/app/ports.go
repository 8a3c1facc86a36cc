// Package app contains the price oracle and the ports it reads pool state through.
package app

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	futarchyDomain "github.com/fd1az/futarchy-arbitrage/business/futarchy/domain"
	"github.com/fd1az/futarchy-arbitrage/business/pricing/domain"
	"github.com/fd1az/futarchy-arbitrage/internal/asset"
)

// PoolReader loads the state of one pool. A nil block reads the latest state.
type PoolReader interface {
	ReadPool(ctx context.Context, ref domain.PoolRef, block *big.Int) (domain.Pool, error)
}

// TokenResolver maps a token address to its asset metadata.
type TokenResolver interface {
	Resolve(ctx context.Context, token common.Address) (*asset.Asset, error)
}

// HopRef is one leg of the spot route before pool state is loaded.
type HopRef struct {
	Pool     domain.PoolRef
	TokenIn  common.Address
	TokenOut common.Address
}

// SnapshotRequest describes the pools of one market.
// YES(A)/YES(B) trade in YesPool, NO(A)/NO(B) in NoPool, and Spot routes A to B.
type SnapshotRequest struct {
	Block uint64 // 0 reads latest

	YesPool  domain.PoolRef
	NoPool   domain.PoolRef
	YesBase  *asset.Asset
	YesQuote *asset.Asset
	NoBase   *asset.Asset
	NoQuote  *asset.Asset

	Spot []HopRef
}

// MarketRequest describes the pools of m at block. Both conditional pools
// trade on venue; spot routes company to currency.
func MarketRequest(m *futarchyDomain.Market, venue domain.Venue, spot []HopRef, block uint64) SnapshotRequest {
	p := m.Proposal
	return SnapshotRequest{
		Block:    block,
		YesPool:  domain.PoolRef{Address: m.YesPool, Venue: venue},
		NoPool:   domain.PoolRef{Address: m.NoPool, Venue: venue},
		YesBase:  p.YesCompany,
		YesQuote: p.YesCurrency,
		NoBase:   p.NoCompany,
		NoQuote:  p.NoCurrency,
		Spot:     spot,
	}
}
