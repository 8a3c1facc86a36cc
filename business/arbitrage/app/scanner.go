package app

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fd1az/futarchy-arbitrage/business/arbitrage/domain"
	blockchainDomain "github.com/fd1az/futarchy-arbitrage/business/blockchain/domain"
	execDomain "github.com/fd1az/futarchy-arbitrage/business/execution/domain"
	pricingApp "github.com/fd1az/futarchy-arbitrage/business/pricing/app"
	pricingDomain "github.com/fd1az/futarchy-arbitrage/business/pricing/domain"
	"github.com/fd1az/futarchy-arbitrage/internal/apm"
	"github.com/fd1az/futarchy-arbitrage/internal/apperror"
	"github.com/fd1az/futarchy-arbitrage/internal/logger"
)

// ScannerConfig holds configuration for the block scanner.
type ScannerConfig struct {
	Proposal  common.Address
	PoolVenue pricingDomain.Venue // venue of the YES/NO conditional pools
	Spot      []pricingApp.HopRef // company → currency

	GasLimit    uint64
	NativePrice decimal.Decimal // native token price in currency units
	MinProfit   decimal.Decimal

	// Execute sends opportunities to the executor; otherwise they are only reported.
	Execute           bool
	EvaluationTimeout time.Duration
}

// ScanOutcome is what one block produced.
type ScanOutcome struct {
	Block       uint64
	Opportunity *domain.Opportunity // nil when nothing is profitable
	Result      *execDomain.Result  // nil unless executed
}

// Scanner evaluates the market on every new block and executes what clears
// the profit floor.
type Scanner struct {
	chain    Chain
	loader   MarketLoader
	oracle   Oracle
	engine   *StrategyEngine
	executor Executor
	reporter Reporter
	profits  *domain.ProfitAccumulator
	config   ScannerConfig
	logger   logger.LoggerInterface
	tracer   apm.Tracer

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScanner creates a scanner. executor may be nil when execution is disabled.
func NewScanner(
	chain Chain,
	loader MarketLoader,
	oracle Oracle,
	engine *StrategyEngine,
	executor Executor,
	reporter Reporter,
	profits *domain.ProfitAccumulator,
	config ScannerConfig,
	log logger.LoggerInterface,
) *Scanner {
	return &Scanner{
		chain:    chain,
		loader:   loader,
		oracle:   oracle,
		engine:   engine,
		executor: executor,
		reporter: reporter,
		profits:  profits,
		config:   config,
		logger:   log,
		tracer:   apm.NewTracer("arbitrage.scanner"),
	}
}

// Start subscribes to new blocks and scans each one in the background.
func (s *Scanner) Start(ctx context.Context) error {
	s.logger.Info(ctx, "starting scanner",
		"proposal", s.config.Proposal.Hex(), "execute", s.config.Execute)

	if err := s.reporter.Start(ctx); err != nil {
		return err
	}

	ctx, s.cancel = context.WithCancel(ctx)
	blocks, err := s.chain.SubscribeBlocks(ctx)
	if err != nil {
		s.cancel()
		return err
	}

	s.wg.Add(1)
	go s.run(ctx, blocks)
	return nil
}

func (s *Scanner) run(ctx context.Context, blocks <-chan *blockchainDomain.Block) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "scanner stopping", "reason", ctx.Err())
			return
		case block, ok := <-blocks:
			if !ok {
				s.logger.Info(ctx, "block feed closed")
				return
			}
			if block == nil {
				continue
			}
			block = latest(block, blocks)
			if _, err := s.ScanBlock(ctx, block.Number); err != nil && ctx.Err() == nil {
				s.logger.Warn(ctx, "scan failed", "block", block.Number, "code", apperror.GetCode(err), "error", err)
			}
		}
	}
}

// latest skips blocks that queued up while the previous scan ran.
func latest(block *blockchainDomain.Block, blocks <-chan *blockchainDomain.Block) *blockchainDomain.Block {
	for {
		select {
		case next, ok := <-blocks:
			if !ok || next == nil {
				return block
			}
			block = next
		default:
			return block
		}
	}
}

// RunOnce scans the current chain head.
func (s *Scanner) RunOnce(ctx context.Context) (*ScanOutcome, error) {
	head, err := s.chain.LatestBlock(ctx)
	if err != nil {
		return nil, err
	}
	return s.ScanBlock(ctx, head.Number)
}

// ScanBlock loads the proposal, snapshots the market at block, evaluates it
// and, when enabled, executes the best opportunity. An unavailable pool means
// no opportunity for the block, not a failed scan.
func (s *Scanner) ScanBlock(ctx context.Context, block uint64) (*ScanOutcome, error) {
	if s.config.EvaluationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.EvaluationTimeout)
		defer cancel()
	}

	ctx, span := s.tracer.StartSpanFromContext(ctx, "arbitrage.scan_block")
	defer span.End()
	span.SetAttributes(attribute.Int64("block", int64(block)))

	out := &ScanOutcome{Block: block}

	market, err := s.loader.LoadMarket(ctx, s.config.Proposal)
	if err != nil {
		return s.unavailable(ctx, span, out, err)
	}

	snap, err := s.oracle.Snapshot(ctx, pricingApp.MarketRequest(market, s.config.PoolVenue, s.config.Spot, block))
	if err != nil {
		return s.unavailable(ctx, span, out, err)
	}

	if s.engine.Marginal(market.Proposal, snap) == nil {
		s.logger.Debug(ctx, "no marginal spread",
			"block", block,
			"yes", snap.YesPrice.Rate().StringFixed(6),
			"no", snap.NoPrice.Rate().StringFixed(6),
			"spot", snap.SpotPrice.Rate().StringFixed(6),
		)
		span.Ok("no opportunity")
		return out, nil
	}

	gas, err := s.gasCost(ctx)
	if err != nil {
		span.NoticeError(err)
		return out, err
	}

	opp, err := s.engine.EvaluateMarket(ctx, market.Proposal, snap, gas.Currency)
	if err != nil {
		return s.unavailable(ctx, span, out, err)
	}
	if opp == nil {
		s.logger.Debug(ctx, "no opportunity",
			"block", block,
			"yes", snap.YesPrice.Rate().StringFixed(6),
			"no", snap.NoPrice.Rate().StringFixed(6),
			"spot", snap.SpotPrice.Rate().StringFixed(6),
			"gas", gas.Currency.StringFixed(6),
		)
		span.Ok("no opportunity")
		return out, nil
	}

	out.Opportunity = opp
	span.SetAttributes(
		attribute.String("direction", string(opp.Direction)),
		attribute.String("borrow", opp.BorrowAmount.String()),
		attribute.String("expected_profit", opp.ExpectedProfit.String()),
	)
	s.logger.Info(ctx, "opportunity detected",
		"block", block, "id", opp.ID, "direction", string(opp.Direction),
		"borrow", opp.BorrowAmount.StringFixed(4), "expected_profit", opp.ExpectedProfit.StringFixed(6))
	s.reporter.Report(opp)

	if !s.config.Execute || s.executor == nil {
		span.Ok("reported")
		return out, nil
	}

	res, err := s.executor.ExecuteOpportunity(ctx, opp, s.config.MinProfit)
	out.Result = res
	switch {
	case res != nil && res.Success:
		s.profits.RecordSuccess(opp.BorrowToken, res.Profit)
	default:
		s.profits.RecordFailure(string(apperror.GetCode(err)))
	}
	if res != nil {
		s.reporter.ReportResult(res)
	}
	if err != nil {
		// An aborted attempt is an outcome, not a scan failure.
		s.logger.Warn(ctx, "execution aborted", "block", block, "id", opp.ID, "code", apperror.GetCode(err))
	}
	span.Ok("executed")
	return out, nil
}

// unavailable turns a missing pool into an empty outcome and passes any other error through.
func (s *Scanner) unavailable(ctx context.Context, span apm.Span, out *ScanOutcome, err error) (*ScanOutcome, error) {
	if !apperror.HasCode(err, apperror.CodePoolUnavailable) {
		span.NoticeError(err)
		return out, err
	}
	s.logger.Info(ctx, "pool unavailable, no opportunity", "block", out.Block, "error", err)
	span.Ok("pool unavailable")
	return out, nil
}

func (s *Scanner) gasCost(ctx context.Context) (*domain.GasCost, error) {
	if s.config.GasLimit == 0 {
		return domain.NewGasCost(0, nil, s.config.NativePrice), nil
	}
	wei, err := s.chain.GasCost(ctx, s.config.GasLimit)
	if err != nil {
		return nil, err
	}
	if wei == nil {
		return nil, errors.New("gas cost unavailable")
	}
	gasPrice := new(big.Int).Div(wei, new(big.Int).SetUint64(s.config.GasLimit))
	return domain.NewGasCost(s.config.GasLimit, gasPrice, s.config.NativePrice), nil
}

// Summary returns the accumulated execution totals.
func (s *Scanner) Summary() domain.Summary {
	return s.profits.Summary()
}

// Stop halts the scan loop and reports the accumulated totals.
func (s *Scanner) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.reporter.ReportSummary(s.profits.Summary())
	return s.reporter.Stop()
}
