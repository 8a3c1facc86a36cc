package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	// General validation
	CodeRequiredField:   "Required field is missing",
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidState:    "Invalid state for this operation",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	CodeConfigurationError: "Configuration error",

	CodeExternalServiceError: "External service error",
	CodeServiceTimeout:       "Service request timeout",
	CodeServiceUnavailable:   "Service temporarily unavailable",
	CodeRateLimitExceeded:    "Rate limit exceeded",

	CodeInternalError: "Internal error",
	CodeUnknownError:  "An unknown error occurred",

	// Chain access
	CodeEthereumConnectionFailed: "Failed to connect to chain node",
	CodeEthereumSubscribeFailed:  "Failed to subscribe to chain events",
	CodeEthereumRPCError:         "Chain RPC call failed",
	CodeBlockNotFound:            "Block not found",
	CodeGasEstimationFailed:      "Gas estimation failed",
	CodeContractCallFailed:       "Smart contract call failed",
	CodeDecodeFailed:             "Failed to decode contract output",

	// Proposal and pricing
	CodeInvalidProposal:     "Proposal topology is malformed or unexpected",
	CodePoolUnavailable:     "Liquidity pool unavailable",
	CodeOrientationMismatch: "Token is not part of the pool",
	CodeInvalidQuote:        "Invalid quote data",
	CodePriceCalculation:    "Price calculation failed",

	// Strategy and execution
	CodeNoOpportunity:          "No profitable opportunity",
	CodeInvalidTradeSize:       "Invalid trade size",
	CodeUnsupportedBorrowToken: "Borrow token must be the proposal's currency collateral",
	CodeInsufficientLiquidity:  "Insufficient liquidity for requested amount",
	CodeSplitFailed:            "Collateral split failed",
	CodeMergeFailed:            "Outcome merge failed",
	CodeSwapFailed:             "Swap failed",
	CodeSlippageExceeded:       "Swap output below minimum",
	CodeInsufficientToRepay:    "Post-trade balance cannot repay the flash loan",
	CodeProfitBelowMinimum:     "Profit below caller minimum",
	CodeSettlementFailed:       "Settlement transfer failed",
	CodeExecutionReverted:      "Arbitrage execution reverted",

	CodeCircuitOpen:     "Circuit breaker is open",
	CodeCircuitHalfOpen: "Circuit breaker is half-open",
}
