package app

import (
	"context"
	"fmt"
	"math/big"

	"github.com/fd1az/futarchy-arbitrage/business/pricing/domain"
	"github.com/fd1az/futarchy-arbitrage/internal/apperror"
)

// VenueReaders dispatches pool reads to the reader registered for the pool's venue.
type VenueReaders map[domain.Venue]PoolReader

var _ PoolReader = VenueReaders(nil)

// ReadPool implements PoolReader.
func (v VenueReaders) ReadPool(ctx context.Context, ref domain.PoolRef, block *big.Int) (domain.Pool, error) {
	r, ok := v[ref.Venue]
	if !ok || r == nil {
		return nil, apperror.New(apperror.CodePoolUnavailable,
			apperror.WithContext(fmt.Sprintf("no reader for venue %q", ref.Venue)))
	}
	return r.ReadPool(ctx, ref, block)
}
