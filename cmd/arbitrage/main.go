// Package main is the entry point for the Futarchy flash-loan arbitrage bot.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/fd1az/futarchy-arbitrage/business/arbitrage"
	arbitrageApp "github.com/fd1az/futarchy-arbitrage/business/arbitrage/app"
	arbitrageDI "github.com/fd1az/futarchy-arbitrage/business/arbitrage/di"
	arbitrageDomain "github.com/fd1az/futarchy-arbitrage/business/arbitrage/domain"
	"github.com/fd1az/futarchy-arbitrage/business/blockchain"
	blockchainDI "github.com/fd1az/futarchy-arbitrage/business/blockchain/di"
	"github.com/fd1az/futarchy-arbitrage/business/execution"
	executionDI "github.com/fd1az/futarchy-arbitrage/business/execution/di"
	"github.com/fd1az/futarchy-arbitrage/business/futarchy"
	"github.com/fd1az/futarchy-arbitrage/business/pricing"
	"github.com/fd1az/futarchy-arbitrage/internal/apm"
	"github.com/fd1az/futarchy-arbitrage/internal/config"
	"github.com/fd1az/futarchy-arbitrage/internal/health"
	"github.com/fd1az/futarchy-arbitrage/internal/logger"
	"github.com/fd1az/futarchy-arbitrage/internal/metrics"
	"github.com/fd1az/futarchy-arbitrage/internal/monolith"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to configuration file")
	once := flag.Bool("once", false, "Evaluate the current block once and exit")
	showVersion := flag.Bool("version", false, "Show version information")
	var manual manualTrade
	flag.StringVar(&manual.direction, "execute", "", "Run one arbitrage in the given direction (SPOT_SPLIT or MERGE_SPOT) and exit")
	flag.StringVar(&manual.amount, "amount", "", "Borrow amount for -execute, in borrow-token units")
	flag.StringVar(&manual.borrowToken, "borrow-token", "", "Borrow token for -execute (defaults to the currency collateral)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("futarchy-arbitrage %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(os.Stderr, "received shutdown signal: %v\n", sig)
		cancel()
	}()

	if err := run(ctx, *configPath, *once, manual); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// manualTrade holds the -execute flags.
type manualTrade struct {
	direction   string
	amount      string
	borrowToken string
}

func run(ctx context.Context, configPath string, once bool, manual manualTrade) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(os.Stderr, logger.ParseLevel(cfg.App.LogLevel), cfg.App.Name, nil)
	log.Info(ctx, "starting futarchy arbitrage",
		"version", version,
		"environment", cfg.App.Environment,
		"proposal", cfg.Futarchy.ProposalAddress,
		"execution_mode", cfg.Execution.Mode,
	)

	if cfg.Telemetry.Enabled {
		stop, err := startTelemetry(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer stop()
	}

	mono, err := monolith.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create monolith: %w", err)
	}
	defer mono.Close()

	// Modules in dependency order
	modules := []monolith.Module{
		&blockchain.Module{}, // block feed and gas
		&futarchy.Module{},   // proposal and conditional pools
		&pricing.Module{},    // pool state and snapshots
		&execution.Module{},  // flash-loan coordinator and backends
		&arbitrage.Module{},  // strategy engine and scanner
	}

	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}
	if err := mono.StartModules(ctx, modules...); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}

	journal := executionDI.GetJournal(mono.Services())
	if closer, ok := journal.(interface{ Close() }); ok {
		defer closer.Close()
	}

	if manual.direction != "" {
		return runManual(ctx, cfg, mono, manual, log)
	}

	scanner := arbitrageDI.GetScanner(mono.Services())
	if once {
		return runOnce(ctx, scanner, log)
	}

	healthServer := health.NewServer(cfg.Health.Port, version, log)
	healthServer.RegisterCheck("rpc", health.RPCCheck(mono.EthClient(), cfg.Ethereum.ChainID))
	chain := blockchainDI.GetBlockchainService(mono.Services())
	healthServer.RegisterCheck("blocks", health.BlockFreshnessCheck(chain.LastBlockSeen, cfg.Health.MaxBlockAge))
	if checker, ok := journal.(interface {
		Check(ctx context.Context) (bool, string)
	}); ok {
		healthServer.RegisterCheck("journal", checker.Check)
	}
	if err := healthServer.Start(ctx); err != nil {
		log.Warn(ctx, "failed to start health server", "error", err)
	} else {
		log.Info(ctx, "health server started", "port", cfg.Health.Port)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		healthServer.Stop(stopCtx)
	}()

	return runScanner(ctx, scanner, log)
}

func startTelemetry(ctx context.Context, cfg *config.Config, log logger.LoggerInterface) (func(), error) {
	traceProvider, err := apm.NewTraceProvider(ctx, apm.Config{
		Provider:    apm.Provider(cfg.Telemetry.Provider),
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Headers:     cfg.Telemetry.OTLPHeaders,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to start tracing: %w", err)
	}

	meterProvider, err := metrics.NewMetricProvider(ctx,
		metrics.WithServiceName(cfg.Telemetry.ServiceName),
		metrics.WithProviderConfig(metrics.ProviderCfg{Provider: metrics.PrometheusProvider}),
	)
	if err != nil {
		traceProvider.Stop()
		return nil, fmt.Errorf("failed to start metrics: %w", err)
	}

	port := cfg.Telemetry.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go metrics.ServePrometheus(ctx, port, log)
	log.Info(ctx, "prometheus metrics server started", "port", port)

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			log.Warn(shutdownCtx, "metrics shutdown failed", "error", err)
		}
		if err := traceProvider.Stop(); err != nil {
			log.Warn(shutdownCtx, "tracing shutdown failed", "error", err)
		}
	}, nil
}

func runOnce(ctx context.Context, scanner *arbitrageApp.Scanner, log logger.LoggerInterface) error {
	out, err := scanner.RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}
	if out.Opportunity == nil {
		log.Info(ctx, "no opportunity", "block", out.Block)
	}
	return scanner.Stop()
}

func runManual(ctx context.Context, cfg *config.Config, mono monolith.Monolith, manual manualTrade, log logger.LoggerInterface) error {
	amount, err := decimal.NewFromString(manual.amount)
	if err != nil {
		return fmt.Errorf("invalid -amount %q: %w", manual.amount, err)
	}
	borrowToken := cfg.Futarchy.CurrencyTokenHex()
	if manual.borrowToken != "" {
		if !common.IsHexAddress(manual.borrowToken) {
			return fmt.Errorf("invalid -borrow-token %q", manual.borrowToken)
		}
		borrowToken = common.HexToAddress(manual.borrowToken)
	}

	svc := executionDI.GetExecutionService(mono.Services())
	res, err := svc.ExecuteArbitrage(ctx, cfg.Futarchy.ProposalAddressHex(), borrowToken, amount,
		arbitrageDomain.Direction(manual.direction), cfg.Arbitrage.MinProfitDecimal())
	if res != nil {
		log.Info(ctx, "execution finished", "result", res.String())
	}
	if err != nil {
		return fmt.Errorf("execution failed: %w", err)
	}
	return nil
}

func runScanner(ctx context.Context, scanner *arbitrageApp.Scanner, log logger.LoggerInterface) error {
	log.Info(ctx, "all modules started, scanning blocks")

	if err := scanner.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scanner: %w", err)
	}

	<-ctx.Done()
	log.Info(ctx, "shutting down")

	if err := scanner.Stop(); err != nil {
		log.Error(ctx, "error stopping scanner", "error", err)
	}
	return nil
}
