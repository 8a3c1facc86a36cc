// Package app contains application services and port definitions for the futarchy context.
package app

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/futarchy-arbitrage/internal/asset"
)

// ProposalData is the raw on-chain shape of a proposal.
type ProposalData struct {
	Collateral1 common.Address // company
	Collateral2 common.Address // currency
	NumOutcomes int
	Outcomes    []common.Address // wrapped ERC20 outcome tokens by index
}

// ProposalReader reads proposal state from chain.
type ProposalReader interface {
	ReadProposal(ctx context.Context, proposal common.Address) (*ProposalData, error)
}

// TokenResolver resolves token metadata, registering unknown tokens.
type TokenResolver interface {
	Resolve(ctx context.Context, token common.Address) (*asset.Asset, error)
}

// PoolLocator finds the pool for a token pair; zero address when none exists.
type PoolLocator interface {
	PoolByPair(ctx context.Context, tokenA, tokenB common.Address) (common.Address, error)
}
