// Package blockchain implements the blockchain bounded context: block feed and gas prices.
package blockchain

import (
	"context"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/fd1az/futarchy-arbitrage/business/blockchain/app"
	blockchainDI "github.com/fd1az/futarchy-arbitrage/business/blockchain/di"
	"github.com/fd1az/futarchy-arbitrage/business/blockchain/infra/ethereum"
	"github.com/fd1az/futarchy-arbitrage/internal/config"
	"github.com/fd1az/futarchy-arbitrage/internal/di"
	"github.com/fd1az/futarchy-arbitrage/internal/logger"
	"github.com/fd1az/futarchy-arbitrage/internal/monolith"
)

// Module implements the blockchain bounded context.
type Module struct{}

// RegisterServices registers all blockchain services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, blockchainDI.BlockSubscriber, func(sr di.ServiceRegistry) app.BlockSubscriber {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		client := sr.Get("ethClient").(*ethclient.Client)

		subCfg := ethereum.DefaultSubscriberConfig(cfg.Ethereum.WebSocketURL)
		subCfg.PollInterval = cfg.Ethereum.PollInterval
		subCfg.InitialBackoff = cfg.Ethereum.InitialBackoff
		subCfg.MaxBackoff = cfg.Ethereum.MaxBackoff

		sub, err := ethereum.NewSubscriber(subCfg, client, ethereum.DialStream, log)
		if err != nil {
			panic("failed to create subscriber: " + err.Error())
		}
		return sub
	})

	di.RegisterToken(c, blockchainDI.GasOracle, func(sr di.ServiceRegistry) app.GasOracle {
		log := sr.Get("logger").(logger.LoggerInterface)
		client := sr.Get("ethClient").(*ethclient.Client)

		oracle, err := ethereum.NewGasOracle(ethereum.DefaultGasOracleConfig(), client, log)
		if err != nil {
			panic("failed to create gas oracle: " + err.Error())
		}
		return oracle
	})

	di.RegisterToken(c, blockchainDI.BlockchainService, func(sr di.ServiceRegistry) *app.BlockchainService {
		return app.NewBlockchainService(blockchainDI.GetBlockSubscriber(sr), blockchainDI.GetGasOracle(sr))
	})

	return nil
}

// Startup checks the node is reachable; the feed itself starts with the scanner.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	svc := blockchainDI.GetBlockchainService(mono.Services())

	head, err := svc.LatestBlock(ctx)
	if err != nil {
		log.Error(ctx, "chain head unavailable at startup", "error", err)
		return err
	}

	log.Info(ctx, "blockchain module started", "head", head.Number)
	return nil
}
