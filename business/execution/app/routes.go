package app

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	pricingDomain "github.com/fd1az/futarchy-arbitrage/business/pricing/domain"
	"github.com/fd1az/futarchy-arbitrage/internal/apperror"
	"github.com/fd1az/futarchy-arbitrage/internal/asset"
)

// PoolRoutes sells an outcome token through one configured pool per token.
type PoolRoutes struct {
	pools PoolSource
	refs  map[common.Address]pricingDomain.PoolRef
}

// NewPoolRoutes maps outcome token addresses to their liquidation pools.
func NewPoolRoutes(pools PoolSource, refs map[common.Address]pricingDomain.PoolRef) *PoolRoutes {
	return &PoolRoutes{pools: pools, refs: refs}
}

// Route returns a single-hop path from token to the other token of its pool.
func (r *PoolRoutes) Route(ctx context.Context, token *asset.Asset, block uint64) (pricingDomain.Path, error) {
	ref, ok := r.refs[token.Address()]
	if !ok {
		return nil, apperror.New(apperror.CodeNotFound,
			apperror.WithContext(fmt.Sprintf("no liquidation pool for %s", token.Symbol())))
	}
	pool, err := r.pools.Pool(ctx, ref, block)
	if err != nil {
		return nil, err
	}
	out, err := pricingDomain.OtherToken(pool, token)
	if err != nil {
		return nil, apperror.New(apperror.CodeOrientationMismatch, apperror.WithCause(err))
	}
	return pricingDomain.NewPath(pricingDomain.Hop{Pool: pool, TokenIn: token, TokenOut: out})
}
