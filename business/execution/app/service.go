package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	arbDomain "github.com/fd1az/futarchy-arbitrage/business/arbitrage/domain"
	"github.com/fd1az/futarchy-arbitrage/business/execution/domain"
	pricingApp "github.com/fd1az/futarchy-arbitrage/business/pricing/app"
	pricingDomain "github.com/fd1az/futarchy-arbitrage/business/pricing/domain"
	"github.com/fd1az/futarchy-arbitrage/internal/apm"
	"github.com/fd1az/futarchy-arbitrage/internal/apperror"
	"github.com/fd1az/futarchy-arbitrage/internal/logger"
)

// ExecutionService serializes attempts per proposal, runs them on the
// configured backend and journals every result.
type ExecutionService struct {
	backend  Backend
	journal  Journal
	planning *Planning
	logger   logger.LoggerInterface
	tracer   apm.Tracer

	mu    sync.Mutex
	locks map[common.Address]*sync.Mutex
}

// Planning is what the service needs to build an opportunity from a bare
// proposal address: the proposal loader, the pool snapshotter, the strategy
// engine and where the market's pools live.
type Planning struct {
	Markets   MarketLoader
	Pricer    MarketPricer
	Planner   Planner
	PoolVenue pricingDomain.Venue
	Spot      []pricingApp.HopRef
}

// ServiceOption configures an ExecutionService.
type ServiceOption func(*ExecutionService)

// WithPlanning enables ExecuteArbitrage.
func WithPlanning(p Planning) ServiceOption {
	return func(s *ExecutionService) {
		s.planning = &p
	}
}

// NewExecutionService creates a service. journal may be nil.
func NewExecutionService(backend Backend, journal Journal, log logger.LoggerInterface, opts ...ServiceOption) *ExecutionService {
	s := &ExecutionService{
		backend: backend,
		journal: journal,
		logger:  log,
		tracer:  apm.NewTracer("execution.service"),
		locks:   make(map[common.Address]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mode returns the backend mode.
func (s *ExecutionService) Mode() domain.Mode {
	return s.backend.Mode()
}

// ExecuteArbitrage borrows borrowAmount of borrowToken against proposal and
// trades it in direction, aborting below minProfit. Proposal state and pool
// state are read fresh at the latest block. A nil result means nothing was
// attempted: the proposal, its pools or the borrow token were rejected.
func (s *ExecutionService) ExecuteArbitrage(
	ctx context.Context,
	proposal, borrowToken common.Address,
	borrowAmount decimal.Decimal,
	direction arbDomain.Direction,
	minProfit decimal.Decimal,
) (*domain.Result, error) {
	ctx, span := s.tracer.StartSpanFromContext(ctx, "execution.plan_arbitrage")
	span.SetAttributes(
		attribute.String("proposal", proposal.Hex()),
		attribute.String("direction", string(direction)),
		attribute.String("borrow", borrowAmount.String()),
	)

	opp, err := s.plan(ctx, proposal, borrowToken, borrowAmount, direction)
	if err != nil {
		span.NoticeError(err)
		span.End()
		s.logger.Warn(ctx, "arbitrage not attempted",
			"proposal", proposal.Hex(), "direction", string(direction), "code", apperror.GetCode(err), "error", err)
		return nil, err
	}
	span.Ok("planned")
	span.End()

	return s.ExecuteOpportunity(ctx, opp, minProfit)
}

func (s *ExecutionService) plan(
	ctx context.Context,
	proposal, borrowToken common.Address,
	borrowAmount decimal.Decimal,
	direction arbDomain.Direction,
) (*arbDomain.Opportunity, error) {
	if s.planning == nil {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("execution service has no market planning"))
	}
	if !direction.Valid() {
		return nil, apperror.New(apperror.CodeInvalidInput, apperror.WithContext(fmt.Sprintf("direction %q", direction)))
	}
	if !borrowAmount.IsPositive() {
		return nil, apperror.New(apperror.CodeInvalidTradeSize, apperror.WithContext(fmt.Sprintf("borrow %s", borrowAmount)))
	}

	market, err := s.planning.Markets.LoadMarket(ctx, proposal)
	if err != nil {
		return nil, err
	}
	p := market.Proposal
	if borrowToken != p.Currency.Address() {
		return nil, apperror.New(apperror.CodeUnsupportedBorrowToken,
			apperror.WithContext(fmt.Sprintf("borrow %s, proposal %s lends only %s", borrowToken.Hex(), proposal.Hex(), p.Currency.Symbol())))
	}

	snap, err := s.planning.Pricer.Snapshot(ctx, pricingApp.MarketRequest(market, s.planning.PoolVenue, s.planning.Spot, 0))
	if err != nil {
		return nil, err
	}
	return s.planning.Planner.Plan(p, snap, direction, borrowAmount, decimal.Zero)
}

// ExecuteOpportunity runs opp with minProfit as the abort floor. Concurrent
// calls for the same proposal run one at a time.
func (s *ExecutionService) ExecuteOpportunity(ctx context.Context, opp *arbDomain.Opportunity, minProfit decimal.Decimal) (*domain.Result, error) {
	ctx, span := s.tracer.StartSpanFromContext(ctx, "execution.execute_arbitrage")
	defer span.End()
	span.SetAttributes(attribute.String("mode", string(s.backend.Mode())))

	var proposal common.Address
	if opp != nil && opp.Proposal != nil {
		proposal = opp.Proposal.Address
	}
	unlock := s.lock(proposal)
	defer unlock()

	res, err := s.backend.Execute(ctx, opp, minProfit)
	if err != nil {
		span.NoticeError(err)
	} else {
		span.Ok("executed")
	}

	if s.journal != nil && res != nil {
		if jerr := s.journal.Record(ctx, opp, res); jerr != nil {
			s.logger.Warn(ctx, "journal write failed", "opportunity", res.OpportunityID, "error", jerr)
		}
	}
	return res, err
}

func (s *ExecutionService) lock(proposal common.Address) func() {
	s.mu.Lock()
	m, ok := s.locks[proposal]
	if !ok {
		m = &sync.Mutex{}
		s.locks[proposal] = m
	}
	s.mu.Unlock()

	m.Lock()
	return m.Unlock
}
