// Package futarchy implements the futarchy bounded context: proposal loading and pool location.
package futarchy

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/fd1az/futarchy-arbitrage/business/futarchy/app"
	futarchyDI "github.com/fd1az/futarchy-arbitrage/business/futarchy/di"
	"github.com/fd1az/futarchy-arbitrage/business/futarchy/infra/ethereum"
	"github.com/fd1az/futarchy-arbitrage/internal/asset"
	"github.com/fd1az/futarchy-arbitrage/internal/config"
	"github.com/fd1az/futarchy-arbitrage/internal/di"
	"github.com/fd1az/futarchy-arbitrage/internal/logger"
	"github.com/fd1az/futarchy-arbitrage/internal/monolith"
)

// Module implements the futarchy bounded context.
type Module struct{}

// RegisterServices registers all futarchy services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, futarchyDI.TokenResolver, func(sr di.ServiceRegistry) app.TokenResolver {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		client := sr.Get("ethClient").(*ethclient.Client)
		registry := sr.Get("assetRegistry").(*asset.Registry)

		reader, err := ethereum.NewTokenReader(client, registry, cfg.Ethereum.ChainID, log)
		if err != nil {
			panic("failed to create token reader: " + err.Error())
		}
		return reader
	})

	di.RegisterToken(c, futarchyDI.ProposalReader, func(sr di.ServiceRegistry) app.ProposalReader {
		log := sr.Get("logger").(logger.LoggerInterface)
		client := sr.Get("ethClient").(*ethclient.Client)

		reader, err := ethereum.NewProposalReader(client, log)
		if err != nil {
			panic("failed to create proposal reader: " + err.Error())
		}
		return reader
	})

	di.RegisterToken(c, futarchyDI.PoolLocator, func(sr di.ServiceRegistry) app.PoolLocator {
		cfg := sr.Get("config").(*config.Config)
		client := sr.Get("ethClient").(*ethclient.Client)

		factory := cfg.Futarchy.AlgebraFactoryHex()
		if factory == (common.Address{}) {
			return nil
		}
		locator, err := ethereum.NewAlgebraLocator(factory, client)
		if err != nil {
			panic("failed to create pool locator: " + err.Error())
		}
		return locator
	})

	di.RegisterToken(c, futarchyDI.ProposalLoader, func(sr di.ServiceRegistry) *app.ProposalLoader {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		return app.NewProposalLoader(
			futarchyDI.GetProposalReader(sr),
			futarchyDI.GetTokenResolver(sr),
			futarchyDI.GetPoolLocator(sr),
			app.LoaderConfig{
				Company:  cfg.Futarchy.CompanyTokenHex(),
				Currency: cfg.Futarchy.CurrencyTokenHex(),
				YesPool:  common.HexToAddress(cfg.Futarchy.YesPool),
				NoPool:   common.HexToAddress(cfg.Futarchy.NoPool),
			},
			log,
		)
	})

	return nil
}

// Startup validates the configured proposal once so misconfiguration fails fast.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	loader := futarchyDI.GetProposalLoader(mono.Services())

	market, err := loader.LoadMarket(ctx, mono.Config().Futarchy.ProposalAddressHex())
	if err != nil {
		log.Error(ctx, "proposal validation failed", "error", err)
		return err
	}

	log.Info(ctx, "futarchy module started",
		"proposal", market.Proposal.Address.Hex(),
		"company", market.Proposal.Company.Symbol(),
		"currency", market.Proposal.Currency.Symbol(),
		"yes_pool", market.YesPool.Hex(),
		"no_pool", market.NoPool.Hex(),
	)
	return nil
}
