package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	arbDomain "github.com/fd1az/futarchy-arbitrage/business/arbitrage/domain"
	"github.com/fd1az/futarchy-arbitrage/business/execution/domain"
	futarchyDomain "github.com/fd1az/futarchy-arbitrage/business/futarchy/domain"
	pricingDomain "github.com/fd1az/futarchy-arbitrage/business/pricing/domain"
	"github.com/fd1az/futarchy-arbitrage/internal/apm"
	"github.com/fd1az/futarchy-arbitrage/internal/apperror"
	"github.com/fd1az/futarchy-arbitrage/internal/asset"
	"github.com/fd1az/futarchy-arbitrage/internal/logger"
)

// CoordinatorConfig holds execution safety parameters.
type CoordinatorConfig struct {
	Slippage       decimal.Decimal // fraction of the quoted output a trade may lose
	ResidualPolicy domain.ResidualPolicy
}

// Coordinator runs the borrow → split → trade → merge → repay → settle
// sequence against an environment. Any failure rolls the environment back to
// its state before the call.
type Coordinator struct {
	config CoordinatorConfig
	routes LiquidationRoutes
	logger logger.LoggerInterface
	tracer apm.Tracer
	now    func() time.Time
}

// NewCoordinator creates a coordinator. routes may be nil when the residual
// policy is forward.
func NewCoordinator(cfg CoordinatorConfig, routes LiquidationRoutes, log logger.LoggerInterface) *Coordinator {
	if !cfg.ResidualPolicy.Valid() {
		cfg.ResidualPolicy = domain.ResidualForward
	}
	return &Coordinator{
		config: cfg,
		routes: routes,
		logger: log,
		tracer: apm.NewTracer("execution.coordinator"),
		now:    time.Now,
	}
}

// attempt is the state of one Execute call.
type attempt struct {
	env   Environment
	opp   *arbDomain.Opportunity
	p     *futarchyDomain.Proposal
	res   *domain.Result
	step  domain.Step
	start map[asset.AssetID]decimal.Decimal
}

// delta is what the attempt has added to the executor's balance of token.
func (a *attempt) delta(token *asset.Asset) decimal.Decimal {
	return a.env.Balance(token).Sub(a.start[token.ID()])
}

// Execute runs opp in env. The result is returned on failure too, with zero
// profit and leftovers, alongside the error.
func (c *Coordinator) Execute(ctx context.Context, env Environment, opp *arbDomain.Opportunity, minProfit decimal.Decimal, mode domain.Mode) (*domain.Result, error) {
	ctx, span := c.tracer.StartSpanFromContext(ctx, "execution.execute")
	defer span.End()

	res := domain.NewResult(opp, mode, c.now())
	if err := validate(opp); err != nil {
		span.NoticeError(err)
		return res.Fail(domain.StepBorrow, err), err
	}
	span.SetAttributes(
		attribute.String("opportunity.id", opp.ID),
		attribute.String("direction", opp.Direction.String()),
		attribute.String("borrow", opp.BorrowAmount.String()),
		attribute.String("min_profit", minProfit.String()),
	)

	a := &attempt{
		env:   env,
		opp:   opp,
		p:     opp.Proposal,
		res:   res,
		start: make(map[asset.AssetID]decimal.Decimal),
	}
	for _, token := range append(opp.Proposal.OutcomeTokens(), opp.Proposal.Company, opp.Proposal.Currency) {
		a.start[token.ID()] = env.Balance(token)
	}

	rollback := env.Checkpoint()
	if err := c.run(ctx, a, minProfit); err != nil {
		rollback()
		res.Fail(a.step, err)
		span.SetAttributes(attribute.String("failed_step", string(a.step)))
		span.NoticeError(err)
		c.logger.Warn(ctx, "execution aborted",
			"opportunity", opp.ID, "step", a.step, "code", apperror.GetCode(err), "error", err)
		return res, err
	}

	span.SetAttributes(attribute.String("profit", res.Profit.String()))
	span.Ok("settled")
	c.logger.Info(ctx, "execution settled",
		"opportunity", opp.ID, "direction", opp.Direction, "profit", res.Profit.String())
	return res, nil
}

func (c *Coordinator) run(ctx context.Context, a *attempt, minProfit decimal.Decimal) error {
	if err := c.borrow(ctx, a); err != nil {
		return err
	}

	var err error
	switch a.opp.Direction {
	case arbDomain.DirectionSpotSplit:
		err = c.spotSplit(ctx, a)
	case arbDomain.DirectionMergeSpot:
		err = c.mergeSpot(ctx, a)
	}
	if err != nil {
		return err
	}

	if c.config.ResidualPolicy == domain.ResidualLiquidate {
		c.liquidate(ctx, a)
	}
	return c.settle(ctx, a, minProfit)
}

func (c *Coordinator) borrow(ctx context.Context, a *attempt) error {
	a.step = domain.StepBorrow
	token, amount := a.opp.BorrowToken, a.opp.BorrowAmount
	if err := a.env.Borrow(ctx, token, amount); err != nil {
		return coded(err, apperror.CodeInsufficientLiquidity)
	}
	a.res.Record(domain.StepRecord{Step: domain.StepBorrow, TokenOut: token, AmountOut: amount})
	return nil
}

// spotSplit buys company at spot, splits it, sells both company outcomes for
// currency outcomes and merges the matched pair into currency.
func (c *Coordinator) spotSplit(ctx context.Context, a *attempt) error {
	p, q, snap := a.p, a.opp.Quotes, a.opp.Market

	company, err := c.trade(ctx, a, snap.Spot.Reverse(), a.opp.BorrowAmount, q.Spot)
	if err != nil {
		return err
	}
	if err := c.split(ctx, a, p.Company, company); err != nil {
		return err
	}

	yesOut, err := c.tradeIn(ctx, a, snap.YesPool, p.YesCompany, p.YesCurrency, company, q.Yes)
	if err != nil {
		return err
	}
	noOut, err := c.tradeIn(ctx, a, snap.NoPool, p.NoCompany, p.NoCurrency, company, q.No)
	if err != nil {
		return err
	}
	return c.merge(ctx, a, p.Currency, decimal.Min(yesOut, noOut))
}

// mergeSpot splits currency, buys both company outcomes, merges the matched
// pair into company and sells it at spot.
func (c *Coordinator) mergeSpot(ctx context.Context, a *attempt) error {
	p, q, snap := a.p, a.opp.Quotes, a.opp.Market
	amount := a.opp.BorrowAmount

	if err := c.split(ctx, a, p.Currency, amount); err != nil {
		return err
	}

	yesOut, err := c.tradeIn(ctx, a, snap.YesPool, p.YesCurrency, p.YesCompany, amount, q.Yes)
	if err != nil {
		return err
	}
	noOut, err := c.tradeIn(ctx, a, snap.NoPool, p.NoCurrency, p.NoCompany, amount, q.No)
	if err != nil {
		return err
	}
	if err := c.merge(ctx, a, p.Company, decimal.Min(yesOut, noOut)); err != nil {
		return err
	}

	_, err = c.trade(ctx, a, snap.Spot, a.delta(p.Company), q.Spot)
	return err
}

func (c *Coordinator) split(ctx context.Context, a *attempt, collateral *asset.Asset, amount decimal.Decimal) error {
	a.step = domain.StepSplit
	if !amount.IsPositive() {
		return apperror.New(apperror.CodeSplitFailed, apperror.WithContext("nothing to split"))
	}
	if err := a.env.Split(ctx, a.p, collateral, amount); err != nil {
		return coded(err, apperror.CodeSplitFailed)
	}
	yes, _, _ := a.p.Outcomes(collateral)
	a.res.Record(domain.StepRecord{
		Step: domain.StepSplit, TokenIn: collateral, AmountIn: amount, TokenOut: yes, AmountOut: amount,
	})
	return nil
}

func (c *Coordinator) merge(ctx context.Context, a *attempt, collateral *asset.Asset, amount decimal.Decimal) error {
	a.step = domain.StepMerge
	if !amount.IsPositive() {
		return apperror.New(apperror.CodeMergeFailed, apperror.WithContext("nothing to merge"))
	}
	before := a.env.Balance(collateral)
	if err := a.env.Merge(ctx, a.p, collateral, amount); err != nil {
		return coded(err, apperror.CodeMergeFailed)
	}
	yes, _, _ := a.p.Outcomes(collateral)
	a.res.Record(domain.StepRecord{
		Step: domain.StepMerge, TokenIn: yes, AmountIn: amount,
		TokenOut: collateral, AmountOut: a.env.Balance(collateral).Sub(before),
	})
	return nil
}

// tradeIn swaps through a single pool.
func (c *Coordinator) tradeIn(ctx context.Context, a *attempt, pool pricingDomain.Pool, in, out *asset.Asset, amount, expected decimal.Decimal) (decimal.Decimal, error) {
	a.step = domain.StepTrade
	route, err := pricingDomain.NewPath(pricingDomain.Hop{Pool: pool, TokenIn: in, TokenOut: out})
	if err != nil {
		return decimal.Zero, apperror.New(apperror.CodeOrientationMismatch, apperror.WithCause(err))
	}
	return c.trade(ctx, a, route, amount, expected)
}

func (c *Coordinator) trade(ctx context.Context, a *attempt, route pricingDomain.Path, amount, expected decimal.Decimal) (decimal.Decimal, error) {
	return c.swap(ctx, a, domain.StepTrade, route, amount, expected)
}

func (c *Coordinator) swap(ctx context.Context, a *attempt, step domain.Step, route pricingDomain.Path, amount, expected decimal.Decimal) (decimal.Decimal, error) {
	a.step = step
	out, err := a.env.SwapExactIn(ctx, route, amount, c.MinOut(expected))
	if err != nil {
		return decimal.Zero, coded(err, apperror.CodeSwapFailed)
	}
	a.res.Record(domain.StepRecord{
		Step: step, TokenIn: route.TokenIn(), AmountIn: amount, TokenOut: route.TokenOut(), AmountOut: out,
	})
	return out, nil
}

// MinOut is the slippage bound for a quoted output, zero without a quote.
func (c *Coordinator) MinOut(expected decimal.Decimal) decimal.Decimal {
	if !expected.IsPositive() {
		return decimal.Zero
	}
	return expected.Mul(decimal.NewFromInt(1).Sub(c.config.Slippage))
}

// liquidate sells unmatched outcome tokens into the borrow token. A token
// without a route, or whose sale fails, is left for settlement.
func (c *Coordinator) liquidate(ctx context.Context, a *attempt) {
	if c.routes == nil {
		return
	}
	for _, token := range a.p.OutcomeTokens() {
		amount := a.delta(token)
		if !amount.IsPositive() {
			continue
		}
		route, err := c.routes.Route(ctx, token, a.opp.Block)
		if err != nil {
			c.logger.Debug(ctx, "residual forwarded", "token", token.Symbol(), "reason", err)
			continue
		}
		if !route.TokenIn().Equals(token) || !route.TokenOut().Equals(a.opp.BorrowToken) {
			c.logger.Debug(ctx, "residual forwarded", "token", token.Symbol(), "route", route.String())
			continue
		}
		expected, err := route.QuoteOut(amount)
		if err != nil {
			c.logger.Debug(ctx, "residual forwarded", "token", token.Symbol(), "reason", err)
			continue
		}

		rollback := a.env.Checkpoint()
		if _, err := c.swap(ctx, a, domain.StepLiquidate, route, amount, expected); err != nil {
			rollback()
			c.logger.Warn(ctx, "residual liquidation failed", "token", token.Symbol(), "error", err)
		}
	}
}

// settle repays the loan from realized balances, enforces minProfit and
// forwards profit and leftovers to the caller.
func (c *Coordinator) settle(ctx context.Context, a *attempt, minProfit decimal.Decimal) error {
	token, borrow := a.opp.BorrowToken, a.opp.BorrowAmount

	a.step = domain.StepRepay
	due := borrow.Add(a.env.FlashFee(token, borrow))
	if have := a.delta(token); have.LessThan(due) {
		return apperror.New(apperror.CodeInsufficientToRepay,
			apperror.WithContext(fmt.Sprintf("hold %s %s, owe %s", have, token.Symbol(), due)))
	}
	if err := a.env.Repay(ctx, token, due); err != nil {
		return coded(err, apperror.CodeInsufficientToRepay)
	}
	a.res.Record(domain.StepRecord{Step: domain.StepRepay, TokenIn: token, AmountIn: due})

	a.step = domain.StepProfitCheck
	profit := a.delta(token)
	if profit.LessThan(minProfit) {
		return apperror.New(apperror.CodeProfitBelowMinimum,
			apperror.WithContext(fmt.Sprintf("profit %s %s below minimum %s", profit, token.Symbol(), minProfit)))
	}

	a.step = domain.StepSettle
	p := a.p
	leftovers := domain.Leftovers{
		YesCompany:  a.delta(p.YesCompany),
		NoCompany:   a.delta(p.NoCompany),
		YesCurrency: a.delta(p.YesCurrency),
		NoCurrency:  a.delta(p.NoCurrency),
		Company:     a.delta(p.Company),
	}
	for _, s := range []struct {
		token  *asset.Asset
		amount decimal.Decimal
	}{
		{token, profit},
		{p.YesCompany, leftovers.YesCompany},
		{p.NoCompany, leftovers.NoCompany},
		{p.YesCurrency, leftovers.YesCurrency},
		{p.NoCurrency, leftovers.NoCurrency},
		{p.Company, leftovers.Company},
	} {
		if !s.amount.IsPositive() {
			continue
		}
		if err := a.env.Settle(ctx, s.token, s.amount); err != nil {
			return coded(err, apperror.CodeSettlementFailed)
		}
	}
	a.res.Record(domain.StepRecord{Step: domain.StepSettle, TokenOut: token, AmountOut: profit})

	a.res.Success = true
	a.res.Profit = profit
	a.res.Repaid = due
	a.res.Leftovers = leftovers
	return nil
}

func validate(opp *arbDomain.Opportunity) error {
	switch {
	case opp == nil:
		return apperror.New(apperror.CodeInvalidInput, apperror.WithContext("nil opportunity"))
	case opp.Proposal == nil:
		return apperror.New(apperror.CodeInvalidProposal, apperror.WithContext("opportunity without proposal"))
	case !opp.Direction.Valid():
		return apperror.New(apperror.CodeInvalidInput, apperror.WithContext(fmt.Sprintf("direction %q", opp.Direction)))
	case !opp.BorrowAmount.IsPositive():
		return apperror.New(apperror.CodeInvalidTradeSize, apperror.WithContext(fmt.Sprintf("borrow %s", opp.BorrowAmount)))
	case opp.BorrowToken == nil || !opp.BorrowToken.Equals(opp.Proposal.Currency):
		return unsupportedBorrow(opp.BorrowToken, opp.Proposal)
	case opp.Market == nil || opp.Market.YesPool == nil || opp.Market.NoPool == nil || len(opp.Market.Spot) == 0:
		return apperror.New(apperror.CodeInvalidInput, apperror.WithContext("opportunity has no market snapshot"))
	}
	return nil
}

func unsupportedBorrow(token *asset.Asset, p *futarchyDomain.Proposal) error {
	got := "none"
	if token != nil {
		got = token.Symbol()
	}
	return apperror.New(apperror.CodeUnsupportedBorrowToken,
		apperror.WithContext(fmt.Sprintf("borrow %s, proposal %s lends only %s", got, p.Address.Hex(), p.Currency.Symbol())))
}

// coded keeps application errors and wraps anything else with code.
func coded(err error, code apperror.Code) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.New(code, apperror.WithCause(err))
}
