// Package balancer reads weighted pool state through the Balancer V2 vault.
package balancer

// VaultABI covers pool balance reads on the Balancer V2 vault.
const VaultABI = `[
	{
		"inputs":[{"internalType":"bytes32","name":"poolId","type":"bytes32"}],
		"name":"getPoolTokens",
		"outputs":[
			{"internalType":"contract IERC20[]","name":"tokens","type":"address[]"},
			{"internalType":"uint256[]","name":"balances","type":"uint256[]"},
			{"internalType":"uint256","name":"lastChangeBlock","type":"uint256"}
		],
		"stateMutability":"view",
		"type":"function"
	}
]`

// WeightedPoolABI covers the weighted pool getters.
const WeightedPoolABI = `[
	{"inputs":[],"name":"getPoolId","outputs":[{"internalType":"bytes32","name":"","type":"bytes32"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"getNormalizedWeights","outputs":[{"internalType":"uint256[]","name":"","type":"uint256[]"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"getSwapFeePercentage","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"getRateProviders","outputs":[{"internalType":"contract IRateProvider[]","name":"","type":"address[]"}],"stateMutability":"view","type":"function"}
]`

// RateProviderABI covers IRateProvider.
const RateProviderABI = `[
	{"inputs":[],"name":"getRate","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

// fixedPointDecimals is the scale of Balancer weights, fees and rates.
const fixedPointDecimals = 18
