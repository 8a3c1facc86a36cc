// Package uniswap reads concentrated-liquidity pool state from Uniswap V3 and Algebra pools.
package uniswap

import "math/big"

// PoolABI covers the Uniswap V3 pool getters used to rebuild pool state.
const PoolABI = `[
	{"inputs":[],"name":"token0","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"token1","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"fee","outputs":[{"internalType":"uint24","name":"","type":"uint24"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"liquidity","outputs":[{"internalType":"uint128","name":"","type":"uint128"}],"stateMutability":"view","type":"function"},
	{
		"inputs":[],
		"name":"slot0",
		"outputs":[
			{"internalType":"uint160","name":"sqrtPriceX96","type":"uint160"},
			{"internalType":"int24","name":"tick","type":"int24"},
			{"internalType":"uint16","name":"observationIndex","type":"uint16"},
			{"internalType":"uint16","name":"observationCardinality","type":"uint16"},
			{"internalType":"uint16","name":"observationCardinalityNext","type":"uint16"},
			{"internalType":"uint8","name":"feeProtocol","type":"uint8"},
			{"internalType":"bool","name":"unlocked","type":"bool"}
		],
		"stateMutability":"view",
		"type":"function"
	}
]`

// AlgebraPoolABI covers the Algebra (Swapr) pool getters. The dynamic fee
// lives in globalState instead of a fee() getter.
const AlgebraPoolABI = `[
	{"inputs":[],"name":"token0","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"token1","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"liquidity","outputs":[{"internalType":"uint128","name":"","type":"uint128"}],"stateMutability":"view","type":"function"},
	{
		"inputs":[],
		"name":"globalState",
		"outputs":[
			{"internalType":"uint160","name":"price","type":"uint160"},
			{"internalType":"int24","name":"tick","type":"int24"},
			{"internalType":"uint16","name":"fee","type":"uint16"},
			{"internalType":"uint16","name":"timepointIndex","type":"uint16"},
			{"internalType":"uint8","name":"communityFeeToken0","type":"uint8"},
			{"internalType":"uint8","name":"communityFeeToken1","type":"uint8"},
			{"internalType":"bool","name":"unlocked","type":"bool"}
		],
		"stateMutability":"view",
		"type":"function"
	}
]`

// poolState is the subset of slot0/globalState the tick model needs.
type poolState struct {
	SqrtPriceX96 *big.Int
	FeePips      uint32
}
