// Package arbitrage implements the arbitrage bounded context: opportunity
// evaluation on every block and hand-off to execution.
package arbitrage

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/fd1az/futarchy-arbitrage/business/arbitrage/app"
	arbitrageDI "github.com/fd1az/futarchy-arbitrage/business/arbitrage/di"
	"github.com/fd1az/futarchy-arbitrage/business/arbitrage/domain"
	"github.com/fd1az/futarchy-arbitrage/business/arbitrage/infra"
	blockchainDI "github.com/fd1az/futarchy-arbitrage/business/blockchain/di"
	executionDI "github.com/fd1az/futarchy-arbitrage/business/execution/di"
	futarchyDI "github.com/fd1az/futarchy-arbitrage/business/futarchy/di"
	"github.com/fd1az/futarchy-arbitrage/business/pricing"
	pricingDI "github.com/fd1az/futarchy-arbitrage/business/pricing/di"
	pricingDomain "github.com/fd1az/futarchy-arbitrage/business/pricing/domain"
	"github.com/fd1az/futarchy-arbitrage/internal/config"
	"github.com/fd1az/futarchy-arbitrage/internal/di"
	"github.com/fd1az/futarchy-arbitrage/internal/logger"
	"github.com/fd1az/futarchy-arbitrage/internal/monolith"
)

// Module implements the arbitrage bounded context.
type Module struct{}

// RegisterServices registers all arbitrage services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, arbitrageDI.StrategyEngine, func(sr di.ServiceRegistry) *app.StrategyEngine {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		return app.NewStrategyEngine(app.EngineConfig{
			TradeSizes:           cfg.Arbitrage.TradeSizesDecimal(),
			MinProfit:            cfg.Arbitrage.MinProfitDecimal(),
			FlashLoanFee:         cfg.Arbitrage.FlashLoanFeeDecimal(),
			MergeFee:             decimal.NewFromFloat(cfg.Execution.MergeFee),
			MaxLiquidityFraction: decimal.NewFromFloat(cfg.Arbitrage.MaxLiquidityFraction),
		}, log)
	})

	di.RegisterToken(c, arbitrageDI.Reporter, func(sr di.ServiceRegistry) app.Reporter {
		return infra.NewConsoleReporter()
	})

	di.RegisterToken(c, arbitrageDI.Accumulator, func(sr di.ServiceRegistry) *domain.ProfitAccumulator {
		return domain.NewProfitAccumulator()
	})

	// Scanner (public - driven by main)
	di.RegisterToken(c, arbitrageDI.Scanner, func(sr di.ServiceRegistry) *app.Scanner {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		var executor app.Executor
		if cfg.Arbitrage.Execute {
			executor = executionDI.GetExecutionService(sr)
		}

		return app.NewScanner(
			blockchainDI.GetBlockchainService(sr),
			futarchyDI.GetProposalLoader(sr),
			pricingDI.GetPriceOracle(sr),
			arbitrageDI.GetStrategyEngine(sr),
			executor,
			arbitrageDI.GetReporter(sr),
			arbitrageDI.GetAccumulator(sr),
			scannerConfig(cfg),
			log,
		)
	})

	return nil
}

func scannerConfig(cfg *config.Config) app.ScannerConfig {
	return app.ScannerConfig{
		Proposal:          cfg.Futarchy.ProposalAddressHex(),
		PoolVenue:         pricingDomain.Venue(cfg.Futarchy.PoolVenue),
		Spot:              pricing.SpotRoute(cfg),
		GasLimit:          cfg.Arbitrage.GasLimit,
		NativePrice:       decimal.NewFromFloat(cfg.Arbitrage.NativePrice),
		MinProfit:         cfg.Arbitrage.MinProfitDecimal(),
		Execute:           cfg.Arbitrage.Execute,
		EvaluationTimeout: cfg.Arbitrage.EvaluationTimeout,
	}
}

// Startup resolves the scanner so wiring errors surface before the feed starts.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	cfg := mono.Config()
	_ = arbitrageDI.GetScanner(mono.Services())

	mono.Logger().Info(ctx, "arbitrage module started",
		"proposal", cfg.Futarchy.ProposalAddress,
		"trade_sizes", cfg.Arbitrage.TradeSizes,
		"min_profit", cfg.Arbitrage.MinProfit,
		"execute", cfg.Arbitrage.Execute,
	)
	return nil
}
