// Package pricing implements the pricing bounded context: pool state, orientation and market snapshots.
package pricing

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	futarchyDI "github.com/fd1az/futarchy-arbitrage/business/futarchy/di"
	"github.com/fd1az/futarchy-arbitrage/business/pricing/app"
	pricingDI "github.com/fd1az/futarchy-arbitrage/business/pricing/di"
	"github.com/fd1az/futarchy-arbitrage/business/pricing/domain"
	"github.com/fd1az/futarchy-arbitrage/business/pricing/infra/balancer"
	"github.com/fd1az/futarchy-arbitrage/business/pricing/infra/uniswap"
	"github.com/fd1az/futarchy-arbitrage/internal/config"
	"github.com/fd1az/futarchy-arbitrage/internal/di"
	"github.com/fd1az/futarchy-arbitrage/internal/logger"
	"github.com/fd1az/futarchy-arbitrage/internal/monolith"
)

// Module implements the pricing bounded context.
type Module struct{}

// RegisterServices registers all pricing services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Venue readers - private dependency
	di.RegisterToken(c, pricingDI.PoolReader, func(sr di.ServiceRegistry) app.PoolReader {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		ethClient := sr.Get("ethClient").(*ethclient.Client)
		tokens := futarchyDI.GetTokenResolver(sr)

		tick, err := uniswap.NewReader(ethClient, tokens, log)
		if err != nil {
			panic("failed to create tick pool reader: " + err.Error())
		}
		weighted, err := balancer.NewReader(cfg.Pools.BalancerVaultHex(), ethClient, tokens, log)
		if err != nil {
			panic("failed to create balancer reader: " + err.Error())
		}

		return app.VenueReaders{
			domain.VenueUniswap:  tick,
			domain.VenueAlgebra:  tick,
			domain.VenueBalancer: weighted,
		}
	})

	// PriceOracle (public - exposed to other modules)
	di.RegisterToken(c, pricingDI.PriceOracle, func(sr di.ServiceRegistry) *app.PriceOracle {
		log := sr.Get("logger").(logger.LoggerInterface)
		return app.NewPriceOracle(pricingDI.GetPoolReader(sr), log)
	})

	return nil
}

// SpotRoute maps the configured spot path to hop references.
func SpotRoute(cfg *config.Config) []app.HopRef {
	spot := make([]app.HopRef, 0, len(cfg.Pools.SpotPath))
	for _, hop := range cfg.Pools.SpotPath {
		spot = append(spot, app.HopRef{
			Pool: domain.PoolRef{
				Address: common.HexToAddress(hop.Pool),
				Venue:   domain.Venue(hop.Venue),
			},
			TokenIn:  common.HexToAddress(hop.TokenIn),
			TokenOut: common.HexToAddress(hop.TokenOut),
		})
	}
	return spot
}

// Startup initializes the pricing module.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	cfg := mono.Config()
	mono.Logger().Info(ctx, "pricing module started",
		"spot_hops", len(cfg.Pools.SpotPath),
		"conditional_venue", cfg.Futarchy.PoolVenue,
	)
	return nil
}
