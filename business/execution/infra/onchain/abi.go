package onchain

// ExecutorABI is the entry point of the deployed arbitrage executor.
const ExecutorABI = `[
	{
		"type": "function",
		"name": "executeArbitrage",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "proposal", "type": "address"},
			{"name": "borrowToken", "type": "address"},
			{"name": "borrowAmount", "type": "uint256"},
			{"name": "direction", "type": "uint8"},
			{"name": "minProfit", "type": "uint256"}
		],
		"outputs": [
			{"name": "success", "type": "bool"},
			{"name": "profit", "type": "uint256"},
			{"name": "borrowed", "type": "uint256"},
			{"name": "yesCompany", "type": "uint256"},
			{"name": "noCompany", "type": "uint256"},
			{"name": "yesCurrency", "type": "uint256"},
			{"name": "noCurrency", "type": "uint256"},
			{"name": "company", "type": "uint256"}
		]
	}
]`
