// Package app contains application services and port definitions for the blockchain context.
package app

import (
	"context"
	"time"

	"github.com/fd1az/futarchy-arbitrage/business/blockchain/domain"
)

// BlockSubscriber delivers new blocks.
type BlockSubscriber interface {
	// Subscribe starts the feed. The channel closes when ctx is done or Close is called.
	Subscribe(ctx context.Context) (<-chan *domain.Block, error)

	// LatestBlock retrieves the most recent block.
	LatestBlock(ctx context.Context) (*domain.Block, error)

	State() domain.ConnectionState

	// LastSeen returns when the last block was received (zero if none).
	LastSeen() time.Time
}

// GasOracle provides gas prices.
type GasOracle interface {
	GasPrice(ctx context.Context) (*domain.GasPrice, error)
}
