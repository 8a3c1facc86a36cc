package app_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	arbApp "github.com/fd1az/futarchy-arbitrage/business/arbitrage/app"
	arbDomain "github.com/fd1az/futarchy-arbitrage/business/arbitrage/domain"
	"github.com/fd1az/futarchy-arbitrage/business/execution/app"
	"github.com/fd1az/futarchy-arbitrage/business/execution/domain"
	"github.com/fd1az/futarchy-arbitrage/business/execution/infra/sim"
	futarchyDomain "github.com/fd1az/futarchy-arbitrage/business/futarchy/domain"
	pricingDomain "github.com/fd1az/futarchy-arbitrage/business/pricing/domain"
	"github.com/fd1az/futarchy-arbitrage/internal/apperror"
	"github.com/fd1az/futarchy-arbitrage/internal/asset"
	"github.com/fd1az/futarchy-arbitrage/internal/logger"
)

var (
	yesGNO  = asset.MustNewToken(asset.ChainIDGnosis, common.HexToAddress("0x0000000000000000000000000000000000000011"), "YES_GNO", "YES GNO", 18)
	noGNO   = asset.MustNewToken(asset.ChainIDGnosis, common.HexToAddress("0x0000000000000000000000000000000000000012"), "NO_GNO", "NO GNO", 18)
	yesSDAI = asset.MustNewToken(asset.ChainIDGnosis, common.HexToAddress("0x0000000000000000000000000000000000000013"), "YES_sDAI", "YES sDAI", 18)
	noSDAI  = asset.MustNewToken(asset.ChainIDGnosis, common.HexToAddress("0x0000000000000000000000000000000000000014"), "NO_sDAI", "NO sDAI", 18)

	proposalAddr = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	yesPoolAddr  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	noPoolAddr   = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	spotPoolAddr = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	liqPoolAddr  = common.HexToAddress("0x00000000000000000000000000000000000000c1")

	accounts = sim.Accounts{
		Executor: common.HexToAddress("0x00000000000000000000000000000000000000e1"),
		Caller:   common.HexToAddress("0x00000000000000000000000000000000000000ca"),
		Lender:   common.HexToAddress("0x000000000000000000000000000000000000001e"),
	}
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testProposal(t *testing.T) *futarchyDomain.Proposal {
	t.Helper()
	p, err := futarchyDomain.NewProposal(proposalAddr, asset.GNO, asset.SDAI,
		[]*asset.Asset{yesGNO, noGNO, yesSDAI, noSDAI})
	if err != nil {
		t.Fatalf("NewProposal: %v", err)
	}
	return p
}

func tickPool(t *testing.T, addr common.Address, base, quote *asset.Asset, price string) pricingDomain.Pool {
	t.Helper()
	sqrt := pricingDomain.SqrtPriceX96FromPrice(d(price), base.Decimals(), quote.Decimals())
	liquidity := new(big.Int).Exp(big.NewInt(10), big.NewInt(22), nil)
	p, err := pricingDomain.NewTickPool(addr, base, quote, sqrt, liquidity, 3000)
	if err != nil {
		t.Fatalf("NewTickPool: %v", err)
	}
	return p
}

func weightedPool(t *testing.T, addr common.Address, a, b *asset.Asset, balA, balB string) pricingDomain.Pool {
	t.Helper()
	p, err := pricingDomain.NewWeightedPool(addr, []pricingDomain.WeightedToken{
		{Asset: a, Balance: d(balA), Weight: d("0.5")},
		{Asset: b, Balance: d(balB), Weight: d("0.5")},
	}, d("0.003"))
	if err != nil {
		t.Fatalf("NewWeightedPool: %v", err)
	}
	return p
}

func testMarket(t *testing.T, yes, no string) *pricingDomain.Snapshot {
	t.Helper()
	spot, err := pricingDomain.NewPath(pricingDomain.Hop{
		Pool:    weightedPool(t, spotPoolAddr, asset.GNO, asset.SDAI, "1000", "100000"),
		TokenIn: asset.GNO, TokenOut: asset.SDAI,
	})
	if err != nil {
		t.Fatalf("NewPath: %v", err)
	}
	now := time.Unix(1_700_000_000, 0)
	return &pricingDomain.Snapshot{
		Block:     42,
		Timestamp: now,
		YesPool:   tickPool(t, yesPoolAddr, yesGNO, yesSDAI, yes),
		NoPool:    tickPool(t, noPoolAddr, noGNO, noSDAI, no),
		Spot:      spot,
		YesPrice:  asset.NewPrice(yesGNO, yesSDAI, d(yes), 42, now),
		NoPrice:   asset.NewPrice(noGNO, noSDAI, d(no), 42, now),
		SpotPrice: asset.NewPrice(asset.GNO, asset.SDAI, d("100"), 42, now),
	}
}

// opportunity sizes a 1000 sDAI trade on the market with the strategy engine.
func opportunity(t *testing.T, yes, no string) *arbDomain.Opportunity {
	t.Helper()
	engine := arbApp.NewStrategyEngine(arbApp.EngineConfig{
		TradeSizes:           []decimal.Decimal{d("1000")},
		MaxLiquidityFraction: d("1"),
	}, logger.Nop())
	opp, err := engine.EvaluateMarket(context.Background(), testProposal(t), testMarket(t, yes, no), decimal.Zero)
	if err != nil || opp == nil {
		t.Fatalf("EvaluateMarket = %v, %v", opp, err)
	}
	return opp
}

func newEnv(t *testing.T, opp *arbDomain.Opportunity, liquidity string) *sim.Env {
	t.Helper()
	ledger := domain.NewLedger()
	if err := ledger.Credit(accounts.Lender, asset.SDAI, d(liquidity)); err != nil {
		t.Fatalf("Credit: %v", err)
	}
	return sim.NewEnv(sim.EnvConfig{Accounts: accounts}, ledger, opp.Market.Clone().Pools())
}

func newCoordinator(policy domain.ResidualPolicy, routes app.LiquidationRoutes) *app.Coordinator {
	return app.NewCoordinator(app.CoordinatorConfig{
		Slippage:       d("0.005"),
		ResidualPolicy: policy,
	}, routes, logger.Nop())
}

func poolPrice(t *testing.T, env *sim.Env, addr common.Address, base, quote *asset.Asset) decimal.Decimal {
	t.Helper()
	p, ok := env.Pool(addr)
	if !ok {
		t.Fatalf("pool %s not in fork", addr.Hex())
	}
	price, err := p.Price(base, quote)
	if err != nil {
		t.Fatalf("Price: %v", err)
	}
	return price
}

func TestCoordinator_SpotSplitSettles(t *testing.T) {
	opp := opportunity(t, "120", "110")
	if opp.Direction != arbDomain.DirectionSpotSplit {
		t.Fatalf("Direction = %s, want SPOT_SPLIT", opp.Direction)
	}
	env := newEnv(t, opp, "1000000")

	res, err := newCoordinator(domain.ResidualForward, nil).
		Execute(context.Background(), env, opp, decimal.Zero, domain.ModeSimulate)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if !res.Success {
		t.Fatal("Success = false")
	}
	if !res.Profit.Equal(opp.ExpectedProfit) {
		t.Errorf("Profit = %s, want quoted %s", res.Profit, opp.ExpectedProfit)
	}
	if !res.Repaid.Equal(d("1000")) {
		t.Errorf("Repaid = %s, want 1000", res.Repaid)
	}
	if !res.Leftovers.YesCurrency.Equal(opp.RiskyResidual) || !res.Leftovers.NoCurrency.IsZero() {
		t.Errorf("Leftovers = %+v, want YES_sDAI %s only", res.Leftovers, opp.RiskyResidual)
	}

	l := env.Ledger()
	if got := l.Balance(accounts.Caller, asset.SDAI); !got.Equal(res.Profit) {
		t.Errorf("caller sDAI = %s, want %s", got, res.Profit)
	}
	if got := l.Balance(accounts.Caller, yesSDAI); !got.Equal(res.Leftovers.YesCurrency) {
		t.Errorf("caller YES_sDAI = %s, want %s", got, res.Leftovers.YesCurrency)
	}
	if got := l.Balance(accounts.Lender, asset.SDAI); !got.Equal(d("1000000")) {
		t.Errorf("lender sDAI = %s, want 1000000", got)
	}
	for _, token := range []*asset.Asset{asset.SDAI, asset.GNO, yesGNO, noGNO, yesSDAI, noSDAI} {
		if got := l.Balance(accounts.Executor, token); !got.IsZero() {
			t.Errorf("executor keeps %s %s", got, token.Symbol())
		}
	}

	var steps []domain.Step
	for _, r := range res.Trace {
		steps = append(steps, r.Step)
	}
	want := []domain.Step{
		domain.StepBorrow, domain.StepTrade, domain.StepSplit, domain.StepTrade, domain.StepTrade,
		domain.StepMerge, domain.StepRepay, domain.StepSettle,
	}
	if len(steps) != len(want) {
		t.Fatalf("trace = %v, want %v", steps, want)
	}
	for i := range want {
		if steps[i] != want[i] {
			t.Errorf("trace[%d] = %s, want %s", i, steps[i], want[i])
		}
	}
}

func TestCoordinator_MergeSpotSettles(t *testing.T) {
	opp := opportunity(t, "90", "95")
	if opp.Direction != arbDomain.DirectionMergeSpot {
		t.Fatalf("Direction = %s, want MERGE_SPOT", opp.Direction)
	}
	env := newEnv(t, opp, "1000000")

	res, err := newCoordinator(domain.ResidualForward, nil).
		Execute(context.Background(), env, opp, d("1"), domain.ModeSimulate)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.Success || !res.Profit.Equal(opp.ExpectedProfit) {
		t.Errorf("Success = %v, Profit = %s, want %s", res.Success, res.Profit, opp.ExpectedProfit)
	}
	wantLeft := opp.Quotes.Yes.Sub(opp.Quotes.No)
	if !res.Leftovers.YesCompany.Equal(wantLeft) || !res.Leftovers.NoCompany.IsZero() {
		t.Errorf("Leftovers = %+v, want YES_GNO %s", res.Leftovers, wantLeft)
	}
	if !res.Leftovers.Company.IsZero() {
		t.Errorf("company dust = %s, want 0", res.Leftovers.Company)
	}
}

func TestCoordinator_AbortsRollBack(t *testing.T) {
	tests := []struct {
		name      string
		yes, no   string
		liquidity string
		prepare   func(t *testing.T, opp *arbDomain.Opportunity, env *sim.Env) (*arbDomain.Opportunity, decimal.Decimal)
		wantCode  apperror.Code
		wantStep  domain.Step
	}{
		{
			name: "min_profit_above_achievable",
			yes:  "120", no: "110", liquidity: "1000000",
			prepare: func(_ *testing.T, opp *arbDomain.Opportunity, _ *sim.Env) (*arbDomain.Opportunity, decimal.Decimal) {
				return opp, opp.ExpectedProfit.Add(d("1"))
			},
			wantCode: apperror.CodeProfitBelowMinimum,
			wantStep: domain.StepProfitCheck,
		},
		{
			name: "lender_short",
			yes:  "120", no: "110", liquidity: "10",
			prepare: func(_ *testing.T, opp *arbDomain.Opportunity, _ *sim.Env) (*arbDomain.Opportunity, decimal.Decimal) {
				return opp, decimal.Zero
			},
			wantCode: apperror.CodeInsufficientLiquidity,
			wantStep: domain.StepBorrow,
		},
		{
			name: "borrow_exceeds_shallow_pool",
			yes:  "120", no: "110", liquidity: "1000000",
			prepare: func(_ *testing.T, opp *arbDomain.Opportunity, _ *sim.Env) (*arbDomain.Opportunity, decimal.Decimal) {
				sized := *opp
				sized.BorrowAmount = d("25000")
				sized.Quotes = arbDomain.LegQuotes{}
				return &sized, decimal.Zero
			},
			wantCode: apperror.CodeInsufficientToRepay,
			wantStep: domain.StepRepay,
		},
		{
			name: "front_run_trips_slippage",
			yes:  "120", no: "110", liquidity: "1000000",
			prepare: func(t *testing.T, opp *arbDomain.Opportunity, env *sim.Env) (*arbDomain.Opportunity, decimal.Decimal) {
				pool, _ := env.Pool(yesPoolAddr)
				if _, err := pool.Swap(yesGNO, yesSDAI, d("50")); err != nil {
					t.Fatalf("front-run: %v", err)
				}
				return opp, decimal.Zero
			},
			wantCode: apperror.CodeSlippageExceeded,
			wantStep: domain.StepTrade,
		},
		{
			name: "merge_spot_min_profit",
			yes:  "90", no: "95", liquidity: "1000000",
			prepare: func(_ *testing.T, opp *arbDomain.Opportunity, _ *sim.Env) (*arbDomain.Opportunity, decimal.Decimal) {
				return opp, d("1000")
			},
			wantCode: apperror.CodeProfitBelowMinimum,
			wantStep: domain.StepProfitCheck,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opp := opportunity(t, tt.yes, tt.no)
			env := newEnv(t, opp, tt.liquidity)
			opp, minProfit := tt.prepare(t, opp, env)

			balances := env.Ledger().Snapshot()
			yesBefore := poolPrice(t, env, yesPoolAddr, yesGNO, yesSDAI)
			spotBefore := poolPrice(t, env, spotPoolAddr, asset.GNO, asset.SDAI)

			res, err := newCoordinator(domain.ResidualForward, nil).
				Execute(context.Background(), env, opp, minProfit, domain.ModeSimulate)
			if !apperror.HasCode(err, tt.wantCode) {
				t.Fatalf("err = %v, want %s", err, tt.wantCode)
			}
			if res == nil {
				t.Fatal("no result returned with the error")
			}
			if res.Success || !res.Profit.IsZero() || !res.Leftovers.IsZero() {
				t.Errorf("aborted result settled something: %+v", res)
			}
			if res.FailedStep != tt.wantStep {
				t.Errorf("FailedStep = %s, want %s", res.FailedStep, tt.wantStep)
			}
			if !res.BorrowAmount.Equal(opp.BorrowAmount) {
				t.Errorf("BorrowAmount = %s, want %s", res.BorrowAmount, opp.BorrowAmount)
			}

			if !env.Ledger().Snapshot().Equal(balances) {
				t.Error("balances changed by an aborted execution")
			}
			if got := poolPrice(t, env, yesPoolAddr, yesGNO, yesSDAI); !got.Equal(yesBefore) {
				t.Errorf("yes pool price %s → %s", yesBefore, got)
			}
			if got := poolPrice(t, env, spotPoolAddr, asset.GNO, asset.SDAI); !got.Equal(spotBefore) {
				t.Errorf("spot pool price %s → %s", spotBefore, got)
			}
		})
	}
}

func TestCoordinator_NeverSettlesBelowMinProfit(t *testing.T) {
	opp := opportunity(t, "120", "110")
	for _, floor := range []string{"0", "10", "50", "70", "71", "72", "100"} {
		env := newEnv(t, opp, "1000000")
		res, err := newCoordinator(domain.ResidualForward, nil).
			Execute(context.Background(), env, opp, d(floor), domain.ModeSimulate)
		if res.Success && res.Profit.LessThan(d(floor)) {
			t.Errorf("floor %s: settled with profit %s", floor, res.Profit)
		}
		if !res.Success && !apperror.HasCode(err, apperror.CodeProfitBelowMinimum) {
			t.Errorf("floor %s: err = %v", floor, err)
		}
	}
}

type fakeRoutes struct {
	routes map[asset.AssetID]pricingDomain.Path
}

func (f *fakeRoutes) Route(_ context.Context, token *asset.Asset, _ uint64) (pricingDomain.Path, error) {
	if r, ok := f.routes[token.ID()]; ok {
		return r, nil
	}
	return nil, apperror.New(apperror.CodeNotFound)
}

func TestCoordinator_LiquidatesResidual(t *testing.T) {
	opp := opportunity(t, "120", "110")
	liq, err := pricingDomain.NewPath(pricingDomain.Hop{
		Pool:    weightedPool(t, liqPoolAddr, yesSDAI, asset.SDAI, "10000", "10000"),
		TokenIn: yesSDAI, TokenOut: asset.SDAI,
	})
	if err != nil {
		t.Fatalf("NewPath: %v", err)
	}
	routes := &fakeRoutes{routes: map[asset.AssetID]pricingDomain.Path{yesSDAI.ID(): liq}}

	t.Run("liquidate", func(t *testing.T) {
		env := newEnv(t, opp, "1000000")
		res, err := newCoordinator(domain.ResidualLiquidate, routes).
			Execute(context.Background(), env, opp, decimal.Zero, domain.ModeSimulate)
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
		if !res.Leftovers.IsZero() {
			t.Errorf("Leftovers = %+v, want none", res.Leftovers)
		}
		if !res.Profit.GreaterThan(opp.ExpectedProfit) {
			t.Errorf("Profit = %s, want above guaranteed-only %s", res.Profit, opp.ExpectedProfit)
		}
		if got := env.Ledger().Balance(accounts.Caller, yesSDAI); !got.IsZero() {
			t.Errorf("caller YES_sDAI = %s, want 0", got)
		}
	})

	t.Run("forward", func(t *testing.T) {
		env := newEnv(t, opp, "1000000")
		res, err := newCoordinator(domain.ResidualForward, routes).
			Execute(context.Background(), env, opp, decimal.Zero, domain.ModeSimulate)
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
		if !res.Profit.Equal(opp.ExpectedProfit) || res.Leftovers.YesCurrency.IsZero() {
			t.Errorf("Profit = %s, Leftovers = %+v", res.Profit, res.Leftovers)
		}
	})

	t.Run("no_route_forwards", func(t *testing.T) {
		env := newEnv(t, opp, "1000000")
		res, err := newCoordinator(domain.ResidualLiquidate, &fakeRoutes{}).
			Execute(context.Background(), env, opp, decimal.Zero, domain.ModeSimulate)
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
		if !res.Leftovers.YesCurrency.Equal(opp.RiskyResidual) {
			t.Errorf("YesCurrency = %s, want %s", res.Leftovers.YesCurrency, opp.RiskyResidual)
		}
	})
}

func TestCoordinator_RejectsMalformedOpportunity(t *testing.T) {
	good := opportunity(t, "120", "110")

	noMarket := *good
	noMarket.Market = nil
	companyLoan := *good
	companyLoan.BorrowToken = asset.GNO
	zero := *good
	zero.BorrowAmount = decimal.Zero
	noProposal := *good
	noProposal.Proposal = nil

	tests := []struct {
		name     string
		opp      *arbDomain.Opportunity
		wantCode apperror.Code
	}{
		{"nil", nil, apperror.CodeInvalidInput},
		{"no_market", &noMarket, apperror.CodeInvalidInput},
		{"company_loan", &companyLoan, apperror.CodeUnsupportedBorrowToken},
		{"zero_borrow", &zero, apperror.CodeInvalidTradeSize},
		{"no_proposal", &noProposal, apperror.CodeInvalidProposal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newEnv(t, good, "1000000")
			res, err := newCoordinator(domain.ResidualForward, nil).
				Execute(context.Background(), env, tt.opp, decimal.Zero, domain.ModeSimulate)
			if !apperror.HasCode(err, tt.wantCode) {
				t.Errorf("err = %v, want %s", err, tt.wantCode)
			}
			if res == nil || res.Success {
				t.Errorf("result = %+v, want failed result", res)
			}
		})
	}
}

func TestCoordinator_MinOut(t *testing.T) {
	c := newCoordinator(domain.ResidualForward, nil)
	tests := []struct {
		expected, want string
	}{
		{"0", "0"},
		{"-1", "0"},
		{"100", "99.5"},
		{"1168.25", "1162.40875"},
	}
	for _, tt := range tests {
		if got := c.MinOut(d(tt.expected)); !got.Equal(d(tt.want)) {
			t.Errorf("MinOut(%s) = %s, want %s", tt.expected, got, tt.want)
		}
	}
}
