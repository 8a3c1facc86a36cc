// Package app contains the execution coordinator and its ports.
package app

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	arbDomain "github.com/fd1az/futarchy-arbitrage/business/arbitrage/domain"
	"github.com/fd1az/futarchy-arbitrage/business/execution/domain"
	futarchyDomain "github.com/fd1az/futarchy-arbitrage/business/futarchy/domain"
	pricingApp "github.com/fd1az/futarchy-arbitrage/business/pricing/app"
	pricingDomain "github.com/fd1az/futarchy-arbitrage/business/pricing/domain"
	"github.com/fd1az/futarchy-arbitrage/internal/asset"
)

// Vault holds the executor's balances for the duration of one attempt.
type Vault interface {
	Balance(token *asset.Asset) decimal.Decimal
	// Settle transfers amount of token from the executor to the caller.
	Settle(ctx context.Context, token *asset.Asset, amount decimal.Decimal) error
	// Checkpoint captures all state the attempt can touch and returns a func restoring it.
	Checkpoint() (rollback func())
}

// Lender is the flash-loan source.
type Lender interface {
	FlashFee(token *asset.Asset, amount decimal.Decimal) decimal.Decimal
	Borrow(ctx context.Context, token *asset.Asset, amount decimal.Decimal) error
	Repay(ctx context.Context, token *asset.Asset, amount decimal.Decimal) error
}

// PositionRouter splits collateral into YES/NO outcomes and merges them back.
type PositionRouter interface {
	Split(ctx context.Context, p *futarchyDomain.Proposal, collateral *asset.Asset, amount decimal.Decimal) error
	Merge(ctx context.Context, p *futarchyDomain.Proposal, collateral *asset.Asset, amount decimal.Decimal) error
}

// Swapper trades exact-in along a route and fails when the output is below minOut.
type Swapper interface {
	SwapExactIn(ctx context.Context, route pricingDomain.Path, amountIn, minOut decimal.Decimal) (decimal.Decimal, error)
}

// Environment is everything the coordinator touches during an attempt.
type Environment interface {
	Vault
	Lender
	PositionRouter
	Swapper
}

// LiquidationRoutes finds a route selling an unmatched outcome token.
type LiquidationRoutes interface {
	Route(ctx context.Context, token *asset.Asset, block uint64) (pricingDomain.Path, error)
}

// PoolSource loads pool state, satisfied by the pricing oracle.
type PoolSource interface {
	Pool(ctx context.Context, ref pricingDomain.PoolRef, block uint64) (pricingDomain.Pool, error)
}

// Backend executes an opportunity end to end.
type Backend interface {
	Mode() domain.Mode
	Execute(ctx context.Context, opp *arbDomain.Opportunity, minProfit decimal.Decimal) (*domain.Result, error)
}

// Journal persists execution attempts.
type Journal interface {
	Record(ctx context.Context, opp *arbDomain.Opportunity, res *domain.Result) error
}

// MarketLoader reads a proposal and locates its conditional pools.
type MarketLoader interface {
	LoadMarket(ctx context.Context, proposal common.Address) (*futarchyDomain.Market, error)
}

// MarketPricer snapshots a market's pools, satisfied by the pricing oracle.
type MarketPricer interface {
	Snapshot(ctx context.Context, req pricingApp.SnapshotRequest) (*pricingDomain.Snapshot, error)
}

// Planner builds the opportunity for a given direction and borrow size.
type Planner interface {
	Plan(p *futarchyDomain.Proposal, snap *pricingDomain.Snapshot, dir arbDomain.Direction, size, gas decimal.Decimal) (*arbDomain.Opportunity, error)
}
