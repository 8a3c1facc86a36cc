package app

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/futarchy-arbitrage/business/arbitrage/domain"
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

func conditionalPool(t *testing.T, addr common.Address, base, quote *asset.Asset, price string) pricingDomain.Pool {
	t.Helper()
	sqrt := pricingDomain.SqrtPriceX96FromPrice(d(price), base.Decimals(), quote.Decimals())
	liquidity := new(big.Int).Exp(big.NewInt(10), big.NewInt(22), nil)
	p, err := pricingDomain.NewTickPool(addr, base, quote, sqrt, liquidity, 3000)
	if err != nil {
		t.Fatalf("NewTickPool: %v", err)
	}
	return p
}

// testMarket prices YES and NO on tick pools and spot on a 1000 GNO / 100000 sDAI weighted pool.
func testMarket(t *testing.T, yes, no string) *pricingDomain.Snapshot {
	t.Helper()
	spotPool, err := pricingDomain.NewWeightedPool(spotPoolAddr, []pricingDomain.WeightedToken{
		{Asset: asset.GNO, Balance: d("1000"), Weight: d("0.5")},
		{Asset: asset.SDAI, Balance: d("100000"), Weight: d("0.5")},
	}, d("0.003"))
	if err != nil {
		t.Fatalf("NewWeightedPool: %v", err)
	}
	spot, err := pricingDomain.NewPath(pricingDomain.Hop{Pool: spotPool, TokenIn: asset.GNO, TokenOut: asset.SDAI})
	if err != nil {
		t.Fatalf("NewPath: %v", err)
	}

	now := time.Unix(1_700_000_000, 0)
	return &pricingDomain.Snapshot{
		Block:     42,
		Timestamp: now,
		YesPool:   conditionalPool(t, yesPoolAddr, yesGNO, yesSDAI, yes),
		NoPool:    conditionalPool(t, noPoolAddr, noGNO, noSDAI, no),
		Spot:      spot,
		YesPrice:  asset.NewPrice(yesGNO, yesSDAI, d(yes), 42, now),
		NoPrice:   asset.NewPrice(noGNO, noSDAI, d(no), 42, now),
		SpotPrice: asset.NewPrice(asset.GNO, asset.SDAI, d("100"), 42, now),
	}
}

func newEngine(cfg EngineConfig) *StrategyEngine {
	return NewStrategyEngine(cfg, logger.Nop())
}

func TestStrategyEngine_Evaluate(t *testing.T) {
	p := testProposal(t)
	e := newEngine(EngineConfig{})

	tests := []struct {
		name          string
		yes, no, spot string
		fees          domain.Fees
		wantNil       bool
		wantDir       domain.Direction
		wantBorrow    string
		wantGuarantee string
		wantResidual  string
		wantProfit    string
		wantResidTok  *asset.Asset
	}{
		{
			name: "conditional_rich_splits",
			yes:  "120", no: "110", spot: "100",
			wantDir:       domain.DirectionSpotSplit,
			wantBorrow:    "100",
			wantGuarantee: "110",
			wantResidual:  "10",
			wantProfit:    "10",
			wantResidTok:  yesSDAI,
		},
		{
			name: "conditional_cheap_merges",
			yes:  "90", no: "95", spot: "100",
			wantDir:       domain.DirectionMergeSpot,
			wantBorrow:    "95",
			wantGuarantee: "100",
			wantResidual:  "5.5555555555555556",
			wantProfit:    "5",
			wantResidTok:  yesGNO,
		},
		{
			name: "merge_fee_reduces_guarantee",
			yes:  "120", no: "110", spot: "100",
			fees:          domain.Fees{MergeFee: d("2")},
			wantDir:       domain.DirectionSpotSplit,
			wantBorrow:    "100",
			wantGuarantee: "108",
			wantResidual:  "10",
			wantProfit:    "8",
			wantResidTok:  yesSDAI,
		},
		{
			name: "gas_consumes_whole_spread",
			yes:  "120", no: "110", spot: "100",
			fees:    domain.Fees{Gas: d("10")},
			wantNil: true,
		},
		{
			name: "fees_consume_thin_spread",
			yes:  "101", no: "101", spot: "100",
			fees:    domain.Fees{Yes: d("0.003"), No: d("0.003"), Spot: d("0.003"), FlashLoan: d("0.005")},
			wantNil: true,
		},
		{name: "equal_prices", yes: "100", no: "100", spot: "100", wantNil: true},
		{name: "spot_between_conditionals", yes: "105", no: "95", spot: "100", wantNil: true},
		{name: "zero_spot", yes: "120", no: "110", spot: "0", wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opp := e.Evaluate(p, d(tt.yes), d(tt.no), d(tt.spot), tt.fees)
			if tt.wantNil {
				if opp != nil {
					t.Fatalf("Evaluate = %s, want none", opp)
				}
				return
			}
			if opp == nil {
				t.Fatal("Evaluate = none, want opportunity")
			}
			if opp.Direction != tt.wantDir {
				t.Errorf("Direction = %s, want %s", opp.Direction, tt.wantDir)
			}
			if !opp.BorrowToken.Equals(asset.SDAI) {
				t.Errorf("BorrowToken = %s, want sDAI", opp.BorrowToken)
			}
			if !opp.BorrowAmount.Equal(d(tt.wantBorrow)) {
				t.Errorf("BorrowAmount = %s, want %s", opp.BorrowAmount, tt.wantBorrow)
			}
			if !opp.MinGuaranteedReturn.Equal(d(tt.wantGuarantee)) {
				t.Errorf("MinGuaranteedReturn = %s, want %s", opp.MinGuaranteedReturn, tt.wantGuarantee)
			}
			if !opp.RiskyResidual.Round(16).Equal(d(tt.wantResidual)) {
				t.Errorf("RiskyResidual = %s, want %s", opp.RiskyResidual, tt.wantResidual)
			}
			if !opp.ExpectedProfit.Equal(d(tt.wantProfit)) {
				t.Errorf("ExpectedProfit = %s, want %s", opp.ExpectedProfit, tt.wantProfit)
			}
			if !opp.ResidualToken().Equals(tt.wantResidTok) {
				t.Errorf("ResidualToken = %s, want %s", opp.ResidualToken(), tt.wantResidTok)
			}
			if opp.ID == "" {
				t.Error("ID is empty")
			}
		})
	}
}

func TestStrategyEngine_DirectionsAreExclusive(t *testing.T) {
	p := testProposal(t)
	e := newEngine(EngineConfig{})
	prices := []string{"80", "90", "99", "100", "101", "110", "120"}

	for _, feeRate := range []string{"0", "0.003"} {
		f := d(feeRate)
		fees := domain.Fees{Yes: f, No: f, Spot: f}
		for _, yes := range prices {
			for _, no := range prices {
				for _, spot := range prices {
					split := e.build(p, marginalSpotSplit(d(yes), d(no), d(spot), fees), fees)
					merge := e.build(p, marginalMergeSpot(d(yes), d(no), d(spot), fees), fees)
					if split != nil && merge != nil {
						t.Errorf("fee %s yes %s no %s spot %s: both directions profitable", feeRate, yes, no, spot)
					}
				}
			}
		}
	}
}

func TestStrategyEngine_EvaluateMarket(t *testing.T) {
	p := testProposal(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		yes, no    string
		cfg        EngineConfig
		gas        string
		wantNil    bool
		wantDir    domain.Direction
		wantBorrow string
	}{
		{
			name: "rich_picks_largest_size_under_cap",
			yes:  "120", no: "110",
			cfg: EngineConfig{
				TradeSizes:           []decimal.Decimal{d("100000"), d("10"), d("1000"), d("100")},
				MaxLiquidityFraction: d("0.1"),
			},
			gas:        "0",
			wantDir:    domain.DirectionSpotSplit,
			wantBorrow: "1000",
		},
		{
			name: "cheap_merges",
			yes:  "90", no: "95",
			cfg: EngineConfig{
				TradeSizes:           []decimal.Decimal{d("10"), d("100"), d("1000")},
				MaxLiquidityFraction: d("0.1"),
			},
			gas:        "0.5",
			wantDir:    domain.DirectionMergeSpot,
			wantBorrow: "1000",
		},
		{
			name: "sizes_above_cap_fall_back_to_cap",
			yes:  "120", no: "110",
			cfg: EngineConfig{
				TradeSizes:           []decimal.Decimal{d("50000")},
				MaxLiquidityFraction: d("0.01"),
			},
			gas:        "0",
			wantDir:    domain.DirectionSpotSplit,
			wantBorrow: "1000",
		},
		{
			name: "min_profit_not_met",
			yes:  "120", no: "110",
			cfg: EngineConfig{
				TradeSizes:           []decimal.Decimal{d("10"), d("100"), d("1000")},
				MinProfit:            d("1000"),
				MaxLiquidityFraction: d("0.1"),
			},
			gas:     "0",
			wantNil: true,
		},
		{
			name: "flash_fee_consumes_spread",
			yes:  "120", no: "110",
			cfg: EngineConfig{
				TradeSizes:           []decimal.Decimal{d("10"), d("100"), d("1000")},
				FlashLoanFee:         d("0.2"),
				MaxLiquidityFraction: d("0.1"),
			},
			gas:     "0",
			wantNil: true,
		},
		{
			name: "balanced_market",
			yes:  "100", no: "100",
			cfg: EngineConfig{
				TradeSizes:           []decimal.Decimal{d("10"), d("100"), d("1000")},
				MaxLiquidityFraction: d("0.1"),
			},
			gas:     "0",
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := testMarket(t, tt.yes, tt.no)
			yesBefore, _ := snap.YesPool.Price(yesGNO, yesSDAI)

			opp, err := newEngine(tt.cfg).EvaluateMarket(ctx, p, snap, d(tt.gas))
			if err != nil {
				t.Fatalf("EvaluateMarket: %v", err)
			}

			yesAfter, _ := snap.YesPool.Price(yesGNO, yesSDAI)
			if !yesAfter.Equal(yesBefore) {
				t.Errorf("snapshot mutated: yes price %s → %s", yesBefore, yesAfter)
			}

			if tt.wantNil {
				if opp != nil {
					t.Fatalf("EvaluateMarket = %s, want none", opp)
				}
				return
			}
			if opp == nil {
				t.Fatal("EvaluateMarket = none, want opportunity")
			}
			if opp.Direction != tt.wantDir {
				t.Errorf("Direction = %s, want %s", opp.Direction, tt.wantDir)
			}
			if !opp.BorrowAmount.Equal(d(tt.wantBorrow)) {
				t.Errorf("BorrowAmount = %s, want %s", opp.BorrowAmount, tt.wantBorrow)
			}
			if !opp.ExpectedProfit.IsPositive() || opp.ExpectedProfit.LessThan(tt.cfg.MinProfit) {
				t.Errorf("ExpectedProfit = %s", opp.ExpectedProfit)
			}
			if !opp.Profit.GasCost.Equal(d(tt.gas)) {
				t.Errorf("GasCost = %s, want %s", opp.Profit.GasCost, tt.gas)
			}
			if opp.Block != 42 || opp.Market != snap {
				t.Errorf("Block = %d, Market = %p; want 42 and the evaluated snapshot", opp.Block, opp.Market)
			}
			if opp.Spread.Direction == pricingDomain.SpreadNone {
				t.Error("spread not recorded")
			}

			q := opp.Quotes
			wantResidual := q.Yes.Sub(q.No).Abs()
			if opp.Direction == domain.DirectionMergeSpot {
				wantResidual = wantResidual.Mul(q.Spot).DivRound(q.Merged, divPrecision)
				if !opp.MinGuaranteedReturn.Equal(q.Spot) {
					t.Errorf("MinGuaranteedReturn = %s, want spot leg %s", opp.MinGuaranteedReturn, q.Spot)
				}
			} else if !opp.MinGuaranteedReturn.Equal(decimal.Min(q.Yes, q.No)) {
				t.Errorf("MinGuaranteedReturn = %s, want min leg %s", opp.MinGuaranteedReturn, decimal.Min(q.Yes, q.No))
			}
			if opp.RiskyResidual.Sub(wantResidual).Abs().GreaterThan(d("0.000001")) {
				t.Errorf("RiskyResidual = %s, want %s", opp.RiskyResidual, wantResidual)
			}
		})
	}
}

func TestStrategyEngine_SizedProfitBelowMarginal(t *testing.T) {
	p := testProposal(t)
	snap := testMarket(t, "120", "110")
	e := newEngine(EngineConfig{TradeSizes: []decimal.Decimal{d("1000")}, MaxLiquidityFraction: d("1")})

	sized, err := e.EvaluateMarket(context.Background(), p, snap, decimal.Zero)
	if err != nil || sized == nil {
		t.Fatalf("EvaluateMarket = %v, %v", sized, err)
	}

	fees := e.Fees(snap, decimal.Zero)
	marginal := e.Evaluate(p, d("120"), d("110"), d("100"), fees)
	if marginal == nil {
		t.Fatal("marginal evaluation found nothing")
	}
	marginalPct := marginal.ExpectedProfit.Div(marginal.BorrowAmount)
	sizedPct := sized.ExpectedProfit.Div(sized.BorrowAmount)
	if !sizedPct.LessThan(marginalPct) {
		t.Errorf("sized return %s not below marginal %s", sizedPct, marginalPct)
	}
}

func TestStrategyEngine_EvaluateMarketErrors(t *testing.T) {
	p := testProposal(t)
	e := newEngine(EngineConfig{TradeSizes: []decimal.Decimal{d("100")}})
	ctx := context.Background()

	reversed := testMarket(t, "120", "110")
	reversed.Spot = reversed.Spot.Reverse()

	noYes := testMarket(t, "120", "110")
	noYes.YesPool = nil

	tests := []struct {
		name     string
		proposal *futarchyDomain.Proposal
		snap     *pricingDomain.Snapshot
		wantCode apperror.Code
	}{
		{"nil_proposal", nil, testMarket(t, "120", "110"), apperror.CodeInvalidProposal},
		{"nil_snapshot", p, nil, apperror.CodePoolUnavailable},
		{"missing_pool", p, noYes, apperror.CodePoolUnavailable},
		{"spot_route_reversed", p, reversed, apperror.CodeOrientationMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.EvaluateMarket(ctx, tt.proposal, tt.snap, decimal.Zero)
			if !apperror.HasCode(err, tt.wantCode) {
				t.Errorf("err = %v, want %s", err, tt.wantCode)
			}
		})
	}
}

func TestStrategyEngine_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := newEngine(EngineConfig{TradeSizes: []decimal.Decimal{d("100")}})
	_, err := e.EvaluateMarket(ctx, testProposal(t), testMarket(t, "120", "110"), decimal.Zero)
	if err == nil {
		t.Fatal("expected context error")
	}
}

func TestStrategyEngine_Marginal(t *testing.T) {
	e := newEngine(EngineConfig{FlashLoanFee: d("0.0005"), MergeFee: d("50")})
	p := testProposal(t)

	tests := []struct {
		name    string
		yes, no string
		wantDir domain.Direction
	}{
		{"conditional_rich", "120", "110", domain.DirectionSpotSplit},
		{"conditional_cheap", "90", "95", domain.DirectionMergeSpot},
		{"aligned", "100", "100", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opp := e.Marginal(p, testMarket(t, tt.yes, tt.no))
			if tt.wantDir == "" {
				if opp != nil {
					t.Fatalf("Marginal = %s, want nil", opp.Direction)
				}
				return
			}
			if opp == nil || opp.Direction != tt.wantDir {
				t.Fatalf("Marginal = %v, want %s", opp, tt.wantDir)
			}
		})
	}

	if opp := e.Marginal(p, nil); opp != nil {
		t.Errorf("Marginal(nil snapshot) = %v, want nil", opp)
	}
}

func TestStrategyEngine_Plan(t *testing.T) {
	e := newEngine(EngineConfig{TradeSizes: []decimal.Decimal{d("1000")}})
	p := testProposal(t)

	tests := []struct {
		name       string
		yes, no    string
		dir        domain.Direction
		size       string
		wantCode   apperror.Code
		profitable bool
	}{
		{name: "profitable_split", yes: "120", no: "110", dir: domain.DirectionSpotSplit, size: "1000", profitable: true},
		{name: "unprofitable_still_planned", yes: "100", no: "100", dir: domain.DirectionSpotSplit, size: "1000"},
		{name: "against_the_spread", yes: "120", no: "110", dir: domain.DirectionMergeSpot, size: "1000"},
		{name: "exceeds_spot_depth", yes: "120", no: "110", dir: domain.DirectionSpotSplit, size: "50000", wantCode: apperror.CodeInsufficientLiquidity},
		{name: "zero_size", yes: "120", no: "110", dir: domain.DirectionSpotSplit, size: "0", wantCode: apperror.CodeInvalidTradeSize},
		{name: "unknown_direction", yes: "120", no: "110", dir: "SIDEWAYS", size: "1000", wantCode: apperror.CodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := testMarket(t, tt.yes, tt.no)
			before, err := snap.YesPool.Price(yesGNO, yesSDAI)
			if err != nil {
				t.Fatalf("Price: %v", err)
			}

			opp, err := e.Plan(p, snap, tt.dir, d(tt.size), decimal.Zero)
			if tt.wantCode != "" {
				if !apperror.HasCode(err, tt.wantCode) || opp != nil {
					t.Fatalf("Plan = %v, %v, want %s", opp, err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("Plan: %v", err)
			}

			if opp.Direction != tt.dir || !opp.BorrowAmount.Equal(d(tt.size)) {
				t.Errorf("planned %s with %s, want %s with %s", opp.Direction, opp.BorrowAmount, tt.dir, tt.size)
			}
			if opp.Profit.IsProfitable != tt.profitable {
				t.Errorf("IsProfitable = %v, want %v (profit %s)", opp.Profit.IsProfitable, tt.profitable, opp.ExpectedProfit)
			}
			if opp.Market != snap || opp.Block != snap.Block {
				t.Error("plan does not carry its snapshot")
			}
			if after, _ := snap.YesPool.Price(yesGNO, yesSDAI); !after.Equal(before) {
				t.Errorf("planning moved the snapshot: %s → %s", before, after)
			}
		})
	}
}
