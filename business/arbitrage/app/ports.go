// Package app contains application services and port definitions for the arbitrage context.
package app

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/futarchy-arbitrage/business/arbitrage/domain"
	blockchainDomain "github.com/fd1az/futarchy-arbitrage/business/blockchain/domain"
	execDomain "github.com/fd1az/futarchy-arbitrage/business/execution/domain"
	futarchyDomain "github.com/fd1az/futarchy-arbitrage/business/futarchy/domain"
	pricingApp "github.com/fd1az/futarchy-arbitrage/business/pricing/app"
	pricingDomain "github.com/fd1az/futarchy-arbitrage/business/pricing/domain"
)

// Reporter defines the interface for reporting arbitrage opportunities.
type Reporter interface {
	// Start initializes the reporter.
	Start(ctx context.Context) error

	// Report sends a detected opportunity to be displayed/logged.
	Report(opp *domain.Opportunity)

	// ReportResult sends the outcome of an execution attempt.
	ReportResult(res *execDomain.Result)

	// ReportSummary sends the accumulated totals.
	ReportSummary(s domain.Summary)

	// Stop gracefully shuts down the reporter.
	Stop() error
}

// Chain is the block feed and gas price source.
type Chain interface {
	SubscribeBlocks(ctx context.Context) (<-chan *blockchainDomain.Block, error)
	LatestBlock(ctx context.Context) (*blockchainDomain.Block, error)
	GasCost(ctx context.Context, gasLimit uint64) (*big.Int, error)
}

// MarketLoader resolves a proposal and its conditional pools.
type MarketLoader interface {
	LoadMarket(ctx context.Context, proposal common.Address) (*futarchyDomain.Market, error)
}

// Oracle snapshots a market's pools.
type Oracle interface {
	Snapshot(ctx context.Context, req pricingApp.SnapshotRequest) (*pricingDomain.Snapshot, error)
}

// Executor runs an opportunity, aborting below minProfit.
type Executor interface {
	ExecuteOpportunity(ctx context.Context, opp *domain.Opportunity, minProfit decimal.Decimal) (*execDomain.Result, error)
}
