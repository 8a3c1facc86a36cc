package domain

import (
	"math/big"
	"time"
)

// GasPrice is a suggested gas price in wei.
type GasPrice struct {
	Wei       *big.Int
	Timestamp time.Time
}

// NewGasPrice creates a GasPrice from wei.
func NewGasPrice(wei *big.Int) *GasPrice {
	return &GasPrice{Wei: new(big.Int).Set(wei), Timestamp: time.Now()}
}

// Gwei returns the price in gwei for display and metrics.
func (g *GasPrice) Gwei() float64 {
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(g.Wei), big.NewFloat(1e9)).Float64()
	return f
}

// Cost returns gasLimit × price in wei.
func (g *GasPrice) Cost(gasLimit uint64) *big.Int {
	return new(big.Int).Mul(g.Wei, new(big.Int).SetUint64(gasLimit))
}
