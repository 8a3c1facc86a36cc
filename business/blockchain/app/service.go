package app

import (
	"context"
	"math/big"
	"time"

	"github.com/fd1az/futarchy-arbitrage/business/blockchain/domain"
)

// BlockchainService is the public face of the blockchain context.
type BlockchainService struct {
	subscriber BlockSubscriber
	gasOracle  GasOracle
}

// NewBlockchainService creates a new BlockchainService.
func NewBlockchainService(subscriber BlockSubscriber, gasOracle GasOracle) *BlockchainService {
	return &BlockchainService{
		subscriber: subscriber,
		gasOracle:  gasOracle,
	}
}

// SubscribeBlocks starts the block feed.
func (s *BlockchainService) SubscribeBlocks(ctx context.Context) (<-chan *domain.Block, error) {
	return s.subscriber.Subscribe(ctx)
}

// LatestBlock returns the chain head.
func (s *BlockchainService) LatestBlock(ctx context.Context) (*domain.Block, error) {
	return s.subscriber.LatestBlock(ctx)
}

// GasCost returns the native cost of gasLimit at the current price.
func (s *BlockchainService) GasCost(ctx context.Context, gasLimit uint64) (*big.Int, error) {
	price, err := s.gasOracle.GasPrice(ctx)
	if err != nil {
		return nil, err
	}
	return price.Cost(gasLimit), nil
}

// ConnectionState returns the feed state.
func (s *BlockchainService) ConnectionState() domain.ConnectionState {
	return s.subscriber.State()
}

// LastBlockSeen returns when the feed last delivered a block.
func (s *BlockchainService) LastBlockSeen() time.Time {
	return s.subscriber.LastSeen()
}
