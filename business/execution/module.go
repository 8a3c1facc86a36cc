// Package execution implements the execution bounded context: the atomic
// borrow → trade → repay coordinator and its simulated and on-chain backends.
package execution

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	arbitrageDI "github.com/fd1az/futarchy-arbitrage/business/arbitrage/di"
	"github.com/fd1az/futarchy-arbitrage/business/execution/app"
	executionDI "github.com/fd1az/futarchy-arbitrage/business/execution/di"
	"github.com/fd1az/futarchy-arbitrage/business/execution/domain"
	"github.com/fd1az/futarchy-arbitrage/business/execution/infra/onchain"
	"github.com/fd1az/futarchy-arbitrage/business/execution/infra/postgres"
	"github.com/fd1az/futarchy-arbitrage/business/execution/infra/sim"
	futarchyDI "github.com/fd1az/futarchy-arbitrage/business/futarchy/di"
	"github.com/fd1az/futarchy-arbitrage/business/pricing"
	pricingDI "github.com/fd1az/futarchy-arbitrage/business/pricing/di"
	pricingDomain "github.com/fd1az/futarchy-arbitrage/business/pricing/domain"
	"github.com/fd1az/futarchy-arbitrage/internal/config"
	"github.com/fd1az/futarchy-arbitrage/internal/di"
	"github.com/fd1az/futarchy-arbitrage/internal/logger"
	"github.com/fd1az/futarchy-arbitrage/internal/monolith"
)

const journalConnectTimeout = 10 * time.Second

// Simulated parties. Only their distinctness matters.
var (
	simExecutor = common.HexToAddress("0x000000000000000000000000000000000000e0e1")
	simLender   = common.HexToAddress("0x000000000000000000000000000000000000f1a5")
)

// Module implements the execution bounded context.
type Module struct{}

// RegisterServices registers all execution services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Coordinator - private dependency
	di.RegisterToken(c, executionDI.Coordinator, func(sr di.ServiceRegistry) *app.Coordinator {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		refs := make(map[common.Address]pricingDomain.PoolRef, len(cfg.Execution.LiquidationPools))
		for token, pool := range cfg.Execution.LiquidationPools {
			refs[common.HexToAddress(token)] = pricingDomain.PoolRef{
				Address: common.HexToAddress(pool),
				Venue:   pricingDomain.Venue(cfg.Futarchy.PoolVenue),
			}
		}

		var routes app.LiquidationRoutes
		if len(refs) > 0 {
			routes = app.NewPoolRoutes(pricingDI.GetPriceOracle(sr), refs)
		}

		return app.NewCoordinator(app.CoordinatorConfig{
			Slippage:       cfg.Execution.SlippageDecimal(),
			ResidualPolicy: domain.ResidualPolicy(cfg.Execution.ResidualPolicy),
		}, routes, log)
	})

	// Backend - simulation fork or on-chain preflight
	di.RegisterToken(c, executionDI.Backend, func(sr di.ServiceRegistry) app.Backend {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		if cfg.Execution.Mode == config.ModeContract {
			client := sr.Get("ethClient").(*ethclient.Client)
			backend, err := onchain.NewContractExecutor(client, onchain.Config{
				Executor: common.HexToAddress(cfg.Execution.ExecutorAddress),
				Caller:   common.HexToAddress(cfg.Execution.CallerAddress),
				FlashFee: cfg.Arbitrage.FlashLoanFeeDecimal(),
			}, log)
			if err != nil {
				panic("failed to create contract executor: " + err.Error())
			}
			return backend
		}

		caller := common.HexToAddress(cfg.Execution.CallerAddress)
		backend, err := sim.NewForkExecutor(executionDI.GetCoordinator(sr), sim.ForkConfig{
			Env: sim.EnvConfig{
				Accounts: sim.Accounts{Executor: simExecutor, Caller: caller, Lender: simLender},
				FlashFee: cfg.Arbitrage.FlashLoanFeeDecimal(),
				MergeFee: decimal.NewFromFloat(cfg.Execution.MergeFee),
			},
			LenderLiquidity: decimal.NewFromFloat(cfg.Execution.LenderLiquidity),
		}, log)
		if err != nil {
			panic("failed to create simulation executor: " + err.Error())
		}
		return backend
	})

	// Journal - optional
	di.RegisterToken(c, executionDI.Journal, func(sr di.ServiceRegistry) app.Journal {
		cfg := sr.Get("config").(*config.Config)
		if !cfg.Journal.Enabled() {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), journalConnectTimeout)
		defer cancel()
		journal, err := postgres.New(ctx, postgres.Config{DSN: cfg.Journal.DSN, MaxConns: cfg.Journal.MaxConns})
		if err != nil {
			panic("failed to open execution journal: " + err.Error())
		}
		return journal
	})

	// ExecutionService (public - exposed to other modules)
	di.RegisterToken(c, executionDI.ExecutionService, func(sr di.ServiceRegistry) *app.ExecutionService {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		return app.NewExecutionService(executionDI.GetBackend(sr), executionDI.GetJournal(sr), log,
			app.WithPlanning(app.Planning{
				Markets:   futarchyDI.GetProposalLoader(sr),
				Pricer:    pricingDI.GetPriceOracle(sr),
				Planner:   arbitrageDI.GetStrategyEngine(sr),
				PoolVenue: pricingDomain.Venue(cfg.Futarchy.PoolVenue),
				Spot:      pricing.SpotRoute(cfg),
			}))
	})

	return nil
}

// Startup builds the backend eagerly so misconfiguration fails before the first block.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	cfg := mono.Config()
	svc := executionDI.GetExecutionService(mono.Services())

	mono.Logger().Info(ctx, "execution module started",
		"mode", svc.Mode(),
		"residual_policy", cfg.Execution.ResidualPolicy,
		"slippage_bps", cfg.Execution.SlippageBps,
		"journal", cfg.Journal.Enabled(),
	)
	return nil
}
