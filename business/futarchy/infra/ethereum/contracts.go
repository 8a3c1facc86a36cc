// Package ethereum reads futarchy proposals, token metadata and conditional pools from chain.
package ethereum

// ProposalABI covers the read-only getters of a futarchy proposal.
const ProposalABI = `[
	{"inputs":[],"name":"collateralToken1","outputs":[{"internalType":"contract IERC20","name":"","type":"address"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"collateralToken2","outputs":[{"internalType":"contract IERC20","name":"","type":"address"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"numOutcomes","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"marketName","outputs":[{"internalType":"string","name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{
		"inputs":[{"internalType":"uint256","name":"index","type":"uint256"}],
		"name":"wrappedOutcome",
		"outputs":[
			{"internalType":"contract IERC20","name":"wrapped1155","type":"address"},
			{"internalType":"bytes","name":"data","type":"bytes"}
		],
		"stateMutability":"view",
		"type":"function"
	}
]`

// ERC20ABI covers token metadata.
const ERC20ABI = `[
	{"inputs":[],"name":"symbol","outputs":[{"internalType":"string","name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"name","outputs":[{"internalType":"string","name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"}
]`

// AlgebraFactoryABI covers pool lookup on the Algebra (Swapr) factory.
const AlgebraFactoryABI = `[
	{
		"inputs":[{"internalType":"address","name":"","type":"address"},{"internalType":"address","name":"","type":"address"}],
		"name":"poolByPair",
		"outputs":[{"internalType":"address","name":"","type":"address"}],
		"stateMutability":"view",
		"type":"function"
	}
]`
