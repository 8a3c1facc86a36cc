package app

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/fd1az/futarchy-arbitrage/business/arbitrage/domain"
	futarchyDomain "github.com/fd1az/futarchy-arbitrage/business/futarchy/domain"
	pricingDomain "github.com/fd1az/futarchy-arbitrage/business/pricing/domain"
	"github.com/fd1az/futarchy-arbitrage/internal/apm"
	"github.com/fd1az/futarchy-arbitrage/internal/apperror"
	"github.com/fd1az/futarchy-arbitrage/internal/logger"
)

// divPrecision is the scale used for quotient rounding in marginal evaluation.
const divPrecision = 18

var one = decimal.NewFromInt(1)

// EngineConfig holds sizing and threshold parameters of the strategy engine.
type EngineConfig struct {
	TradeSizes           []decimal.Decimal // candidate borrow sizes in currency units
	MinProfit            decimal.Decimal
	FlashLoanFee         decimal.Decimal // fraction of the borrowed amount
	MergeFee             decimal.Decimal // fixed company or currency units lost per merge
	MaxLiquidityFraction decimal.Decimal // cap on borrow relative to the shallowest leg
}

// StrategyEngine decides whether a market state holds a profitable
// split-or-merge arbitrage and in which direction.
type StrategyEngine struct {
	config EngineConfig
	logger logger.LoggerInterface
	tracer apm.Tracer
	newID  func() string
}

// NewStrategyEngine creates an engine.
func NewStrategyEngine(cfg EngineConfig, log logger.LoggerInterface) *StrategyEngine {
	sizes := make([]decimal.Decimal, 0, len(cfg.TradeSizes))
	for _, s := range cfg.TradeSizes {
		if s.IsPositive() {
			sizes = append(sizes, s)
		}
	}
	sort.Slice(sizes, func(i, j int) bool { return sizes[i].LessThan(sizes[j]) })
	cfg.TradeSizes = sizes
	if !cfg.MaxLiquidityFraction.IsPositive() {
		cfg.MaxLiquidityFraction = one
	}

	return &StrategyEngine{
		config: cfg,
		logger: log,
		tracer: apm.NewTracer("arbitrage.engine"),
		newID:  uuid.NewString,
	}
}

// legs is the outcome of one direction at one size.
type legs struct {
	direction  domain.Direction
	borrow     decimal.Decimal
	quotes     domain.LegQuotes
	yesValue   decimal.Decimal // yes leg in borrow-token units
	noValue    decimal.Decimal // no leg in borrow-token units
	guaranteed decimal.Decimal
}

func (l legs) residual() decimal.Decimal {
	return l.yesValue.Sub(l.noValue).Abs()
}

// Evaluate checks marginal prices for an opportunity. yes is YES(A) in YES(B),
// no is NO(A) in NO(B), spot is A in B. SPOT_SPLIT borrows one unit of spot
// worth of B; MERGE_SPOT borrows max(yes, no) of B. Returns nil when neither
// direction nets a strictly positive profit after fees.
func (e *StrategyEngine) Evaluate(p *futarchyDomain.Proposal, yes, no, spot decimal.Decimal, fees domain.Fees) *domain.Opportunity {
	if p == nil || !yes.IsPositive() || !no.IsPositive() || !spot.IsPositive() {
		return nil
	}

	var best *domain.Opportunity
	for _, l := range []legs{
		marginalSpotSplit(yes, no, spot, fees),
		marginalMergeSpot(yes, no, spot, fees),
	} {
		opp := e.build(p, l, fees)
		if opp == nil {
			continue
		}
		if best == nil || opp.ExpectedProfit.GreaterThan(best.ExpectedProfit) {
			best = opp
		}
	}
	if best != nil {
		best.Spread = pricingDomain.CalculateSpread(yes, no, spot)
	}
	return best
}

func marginalSpotSplit(yes, no, spot decimal.Decimal, fees domain.Fees) legs {
	borrow := spot
	company := borrow.Mul(one.Sub(fees.Spot)).DivRound(spot, divPrecision)
	yesOut := company.Mul(yes).Mul(one.Sub(fees.Yes))
	noOut := company.Mul(no).Mul(one.Sub(fees.No))

	return legs{
		direction: domain.DirectionSpotSplit,
		borrow:    borrow,
		quotes: domain.LegQuotes{
			Spot:   company,
			Yes:    yesOut,
			No:     noOut,
			Merged: decimal.Min(yesOut, noOut),
		},
		yesValue:   yesOut,
		noValue:    noOut,
		guaranteed: nonNegative(decimal.Min(yesOut, noOut).Sub(fees.MergeFee)),
	}
}

func marginalMergeSpot(yes, no, spot decimal.Decimal, fees domain.Fees) legs {
	borrow := decimal.Max(yes, no)
	yesCompany := borrow.Mul(one.Sub(fees.Yes)).DivRound(yes, divPrecision)
	noCompany := borrow.Mul(one.Sub(fees.No)).DivRound(no, divPrecision)
	merged := nonNegative(decimal.Min(yesCompany, noCompany).Sub(fees.MergeFee))
	rate := spot.Mul(one.Sub(fees.Spot))
	back := merged.Mul(rate)

	return legs{
		direction: domain.DirectionMergeSpot,
		borrow:    borrow,
		quotes: domain.LegQuotes{
			Spot:   back,
			Yes:    yesCompany,
			No:     noCompany,
			Merged: merged,
		},
		yesValue:   yesCompany.Mul(rate),
		noValue:    noCompany.Mul(rate),
		guaranteed: back,
	}
}

// EvaluateMarket sizes an opportunity against pool state. Every candidate
// size is simulated on its own snapshot clone in both directions; the largest
// borrow clearing MinProfit wins, ties broken by profit. gas is in currency
// units. Returns nil, nil when nothing qualifies.
func (e *StrategyEngine) EvaluateMarket(ctx context.Context, p *futarchyDomain.Proposal, snap *pricingDomain.Snapshot, gas decimal.Decimal) (*domain.Opportunity, error) {
	ctx, span := e.tracer.StartSpanFromContext(ctx, "arbitrage.evaluate_market")
	defer span.End()

	if err := checkMarket(p, snap); err != nil {
		span.NoticeError(err)
		return nil, err
	}

	fees := e.Fees(snap, gas)
	spread := snap.Spread()
	span.SetAttributes(
		attribute.Int64("block", int64(snap.Block)),
		attribute.String("spread.direction", string(spread.Direction)),
		attribute.String("spread.split_bps", spread.SplitBps.StringFixed(2)),
		attribute.String("spread.merge_bps", spread.MergeBps.StringFixed(2)),
	)

	sizes := e.candidateSizes(p, snap)
	if len(sizes) == 0 {
		span.Ok("no liquidity")
		return nil, nil
	}

	directions := []domain.Direction{domain.DirectionSpotSplit, domain.DirectionMergeSpot}
	results := make([]*legs, len(sizes)*len(directions))

	g, gctx := errgroup.WithContext(ctx)
	for i, size := range sizes {
		for j, dir := range directions {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				l, err := e.simulate(p, snap.Clone(), dir, size, fees)
				if err != nil {
					e.logger.Debug(gctx, "candidate skipped",
						"direction", dir, "size", size.String(), "error", err)
					return nil
				}
				results[i*len(directions)+j] = l
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		span.NoticeError(err)
		return nil, err
	}

	var best *domain.Opportunity
	for _, l := range results {
		if l == nil {
			continue
		}
		opp := e.build(p, *l, fees)
		if opp == nil || opp.ExpectedProfit.LessThan(e.config.MinProfit) {
			continue
		}
		if best == nil || better(opp, best) {
			best = opp
		}
	}

	if best == nil {
		span.Ok("no opportunity")
		return nil, nil
	}

	best.Block = snap.Block
	best.Timestamp = snap.Timestamp
	best.Market = snap
	best.Spread = spread

	span.SetAttributes(
		attribute.String("opportunity.id", best.ID),
		attribute.String("opportunity.direction", best.Direction.String()),
		attribute.String("opportunity.borrow", best.BorrowAmount.String()),
		attribute.String("opportunity.profit", best.ExpectedProfit.String()),
	)
	span.Ok("opportunity found")
	return best, nil
}

// Fees collects pool fees of the snapshot with the configured loan and merge costs.
func (e *StrategyEngine) Fees(snap *pricingDomain.Snapshot, gas decimal.Decimal) domain.Fees {
	return domain.Fees{
		Yes:       snap.YesPool.Fee(),
		No:        snap.NoPool.Fee(),
		Spot:      snap.Spot.Fee(),
		FlashLoan: e.config.FlashLoanFee,
		MergeFee:  e.config.MergeFee,
		Gas:       gas,
	}
}

// candidateSizes returns the configured sizes within the liquidity cap, or the
// cap itself when every configured size exceeds it.
func (e *StrategyEngine) candidateSizes(p *futarchyDomain.Proposal, snap *pricingDomain.Snapshot) []decimal.Decimal {
	depth := decimal.Min(
		snap.Spot.Depth(p.Currency),
		snap.YesPool.Depth(p.YesCurrency),
		snap.NoPool.Depth(p.NoCurrency),
	)
	limit := depth.Mul(e.config.MaxLiquidityFraction)
	if !limit.IsPositive() {
		return nil
	}

	var sizes []decimal.Decimal
	for _, s := range e.config.TradeSizes {
		if s.LessThanOrEqual(limit) {
			sizes = append(sizes, s)
		}
	}
	if len(sizes) == 0 {
		sizes = []decimal.Decimal{limit}
	}
	return sizes
}

// simulate runs one direction at one size against a private snapshot clone.
func (e *StrategyEngine) simulate(p *futarchyDomain.Proposal, snap *pricingDomain.Snapshot, dir domain.Direction, size decimal.Decimal, fees domain.Fees) (*legs, error) {
	switch dir {
	case domain.DirectionSpotSplit:
		company, err := snap.Spot.Reverse().Swap(size)
		if err != nil {
			return nil, fmt.Errorf("buy company: %w", err)
		}
		yesOut, err := snap.YesPool.Swap(p.YesCompany, p.YesCurrency, company)
		if err != nil {
			return nil, fmt.Errorf("sell yes: %w", err)
		}
		noOut, err := snap.NoPool.Swap(p.NoCompany, p.NoCurrency, company)
		if err != nil {
			return nil, fmt.Errorf("sell no: %w", err)
		}
		merged := decimal.Min(yesOut, noOut)
		return &legs{
			direction:  dir,
			borrow:     size,
			quotes:     domain.LegQuotes{Spot: company, Yes: yesOut, No: noOut, Merged: merged},
			yesValue:   yesOut,
			noValue:    noOut,
			guaranteed: nonNegative(merged.Sub(fees.MergeFee)),
		}, nil

	case domain.DirectionMergeSpot:
		yesCompany, err := snap.YesPool.Swap(p.YesCurrency, p.YesCompany, size)
		if err != nil {
			return nil, fmt.Errorf("buy yes: %w", err)
		}
		noCompany, err := snap.NoPool.Swap(p.NoCurrency, p.NoCompany, size)
		if err != nil {
			return nil, fmt.Errorf("buy no: %w", err)
		}
		merged := decimal.Min(yesCompany, noCompany).Sub(fees.MergeFee)
		if !merged.IsPositive() {
			return nil, fmt.Errorf("nothing to merge")
		}
		back, err := snap.Spot.Swap(merged)
		if err != nil {
			return nil, fmt.Errorf("sell company: %w", err)
		}
		rate := back.DivRound(merged, divPrecision)
		return &legs{
			direction:  dir,
			borrow:     size,
			quotes:     domain.LegQuotes{Spot: back, Yes: yesCompany, No: noCompany, Merged: merged},
			yesValue:   yesCompany.Mul(rate),
			noValue:    noCompany.Mul(rate),
			guaranteed: back,
		}, nil
	}
	return nil, fmt.Errorf("unknown direction %q", dir)
}

// Marginal evaluates snap at its marginal prices charging only proportional
// costs. Price impact and fixed costs can only lower what a sized trade
// returns, so a nil result rules the market out.
func (e *StrategyEngine) Marginal(p *futarchyDomain.Proposal, snap *pricingDomain.Snapshot) *domain.Opportunity {
	if checkMarket(p, snap) != nil {
		return nil
	}
	fees := e.Fees(snap, decimal.Zero)
	fees.MergeFee = decimal.Zero
	return e.Evaluate(p, snap.YesPrice.Rate(), snap.NoPrice.Rate(), snap.SpotPrice.Rate(), fees)
}

// Plan builds the opportunity for a caller-chosen direction and borrow size
// on a clone of snap. Unlike EvaluateMarket it does not filter on profit; the
// executor enforces the caller's floor.
func (e *StrategyEngine) Plan(p *futarchyDomain.Proposal, snap *pricingDomain.Snapshot, dir domain.Direction, size, gas decimal.Decimal) (*domain.Opportunity, error) {
	if err := checkMarket(p, snap); err != nil {
		return nil, err
	}
	if !dir.Valid() {
		return nil, apperror.New(apperror.CodeInvalidInput, apperror.WithContext(fmt.Sprintf("direction %q", dir)))
	}
	if !size.IsPositive() {
		return nil, apperror.New(apperror.CodeInvalidTradeSize, apperror.WithContext(fmt.Sprintf("borrow %s", size)))
	}

	fees := e.Fees(snap, gas)
	l, err := e.simulate(p, snap.Clone(), dir, size, fees)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInsufficientLiquidity,
			fmt.Sprintf("%s with %s %s", dir, size, p.Currency.Symbol()))
	}

	opp := e.opportunity(p, *l, fees)
	opp.Block = snap.Block
	opp.Timestamp = snap.Timestamp
	opp.Market = snap
	opp.Spread = snap.Spread()
	return opp, nil
}

// build turns simulated legs into an opportunity, nil unless strictly profitable.
func (e *StrategyEngine) build(p *futarchyDomain.Proposal, l legs, fees domain.Fees) *domain.Opportunity {
	if !l.borrow.IsPositive() {
		return nil
	}
	opp := e.opportunity(p, l, fees)
	if !opp.Profit.IsProfitable {
		return nil
	}
	return opp
}

func (e *StrategyEngine) opportunity(p *futarchyDomain.Proposal, l legs, fees domain.Fees) *domain.Opportunity {
	profit := domain.NewProfitResult(l.borrow, l.guaranteed, fees)
	return &domain.Opportunity{
		ID:                  e.newID(),
		Proposal:            p,
		Direction:           l.direction,
		BorrowToken:         p.Currency,
		BorrowAmount:        l.borrow,
		ExpectedProfit:      profit.NetProfit,
		MinGuaranteedReturn: l.guaranteed,
		RiskyResidual:       l.residual(),
		Profit:              profit,
		Quotes:              l.quotes,
	}
}

func better(a, b *domain.Opportunity) bool {
	if c := a.BorrowAmount.Cmp(b.BorrowAmount); c != 0 {
		return c > 0
	}
	return a.ExpectedProfit.GreaterThan(b.ExpectedProfit)
}

func checkMarket(p *futarchyDomain.Proposal, snap *pricingDomain.Snapshot) error {
	if p == nil {
		return apperror.New(apperror.CodeInvalidProposal, apperror.WithContext("nil proposal"))
	}
	if snap == nil || snap.YesPool == nil || snap.NoPool == nil || len(snap.Spot) == 0 {
		return apperror.New(apperror.CodePoolUnavailable, apperror.WithContext("incomplete market snapshot"))
	}
	if !snap.Spot.TokenIn().Equals(p.Company) || !snap.Spot.TokenOut().Equals(p.Currency) {
		return apperror.New(apperror.CodeOrientationMismatch,
			apperror.WithContext(fmt.Sprintf("spot route %s does not price %s in %s", snap.Spot, p.Company, p.Currency)))
	}
	return nil
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
