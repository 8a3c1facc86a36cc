package domain

import (
	"time"

	"github.com/fd1az/futarchy-arbitrage/internal/asset"
)

// Snapshot is the priced state of one futarchy market at a block.
// YesPrice is YES(A) in YES(B), NoPrice is NO(A) in NO(B), SpotPrice is A in B.
type Snapshot struct {
	Block     uint64
	Timestamp time.Time

	YesPool Pool
	NoPool  Pool
	Spot    Path // company → currency

	YesPrice  asset.Price
	NoPrice   asset.Price
	SpotPrice asset.Price
}

// Spread returns the gross conditional/spot spread.
func (s *Snapshot) Spread() Spread {
	return CalculateSpread(s.YesPrice.Rate(), s.NoPrice.Rate(), s.SpotPrice.Rate())
}

// Pools returns every distinct pool referenced by the snapshot.
func (s *Snapshot) Pools() []Pool {
	seen := make(map[string]bool)
	var out []Pool
	add := func(p Pool) {
		if p == nil || seen[p.Address().Hex()] {
			return
		}
		seen[p.Address().Hex()] = true
		out = append(out, p)
	}
	add(s.YesPool)
	add(s.NoPool)
	for _, p := range s.Spot.Pools() {
		add(p)
	}
	return out
}

// Clone deep-copies pool state so simulations never touch the original.
func (s *Snapshot) Clone() *Snapshot {
	clones := make(map[string]Pool)
	for _, p := range s.Pools() {
		clones[p.Address().Hex()] = p.Clone()
	}

	c := *s
	if s.YesPool != nil {
		c.YesPool = clones[s.YesPool.Address().Hex()]
	}
	if s.NoPool != nil {
		c.NoPool = clones[s.NoPool.Address().Hex()]
	}
	c.Spot = s.Spot.WithPools(clones)
	return &c
}
