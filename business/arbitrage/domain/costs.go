package domain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// nativeDecimals is the precision of the chain's native gas token.
const nativeDecimals = 18

// GasCost represents the gas cost of one execution.
type GasCost struct {
	GasLimit uint64
	GasPrice *big.Int // in wei
	TotalWei *big.Int // gasLimit * gasPrice
	Native   decimal.Decimal
	Currency decimal.Decimal // converted using the native price in borrow-token units
}

// NewGasCost creates a GasCost from gas parameters.
func NewGasCost(gasLimit uint64, gasPriceWei *big.Int, nativePrice decimal.Decimal) *GasCost {
	if gasPriceWei == nil {
		gasPriceWei = new(big.Int)
	}
	totalWei := new(big.Int).Mul(gasPriceWei, new(big.Int).SetUint64(gasLimit))
	native := decimal.NewFromBigInt(totalWei, -nativeDecimals)

	return &GasCost{
		GasLimit: gasLimit,
		GasPrice: new(big.Int).Set(gasPriceWei),
		TotalWei: totalWei,
		Native:   native,
		Currency: native.Mul(nativePrice),
	}
}

// Fees are the costs charged against an arbitrage's gross return.
// Pool fees are fractions of the swapped input; MergeFee is a fixed amount
// deducted per merge; Gas is in borrow-token units.
type Fees struct {
	Yes       decimal.Decimal
	No        decimal.Decimal
	Spot      decimal.Decimal
	FlashLoan decimal.Decimal
	MergeFee  decimal.Decimal
	Gas       decimal.Decimal
}

// Repayment returns what the lender must receive for a loan of borrow.
func (f Fees) Repayment(borrow decimal.Decimal) decimal.Decimal {
	return borrow.Add(borrow.Mul(f.FlashLoan))
}

// ProfitResult contains the calculated profit for an opportunity.
type ProfitResult struct {
	Guaranteed   decimal.Decimal // min(yes leg, no leg) after merge
	Repayment    decimal.Decimal
	GasCost      decimal.Decimal
	NetProfit    decimal.Decimal
	NetProfitPct decimal.Decimal // of the borrowed amount, as percentage
	IsProfitable bool
}

// NewProfitResult nets guaranteed return against repayment and gas.
// Only a strictly positive net profit is profitable.
func NewProfitResult(borrow, guaranteed decimal.Decimal, fees Fees) ProfitResult {
	repay := fees.Repayment(borrow)
	net := guaranteed.Sub(repay).Sub(fees.Gas)

	pct := decimal.Zero
	if borrow.IsPositive() {
		pct = net.Div(borrow).Mul(decimal.NewFromInt(100)).Round(4)
	}

	return ProfitResult{
		Guaranteed:   guaranteed,
		Repayment:    repay,
		GasCost:      fees.Gas,
		NetProfit:    net,
		NetProfitPct: pct,
		IsProfitable: net.IsPositive(),
	}
}
