package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	CodeRequiredField   Code = "REQUIRED_FIELD"
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeInvalidState    Code = "INVALID_STATE"
	CodeNotFound        Code = "NOT_FOUND"
	CodeValidationError Code = "VALIDATION_ERROR"

	// Configuration
	CodeConfigurationError Code = "CONFIGURATION_ERROR"

	// External service errors
	CodeExternalServiceError Code = "EXTERNAL_SERVICE_ERROR"
	CodeServiceTimeout       Code = "SERVICE_TIMEOUT"
	CodeServiceUnavailable   Code = "SERVICE_UNAVAILABLE"
	CodeRateLimitExceeded    Code = "RATE_LIMIT_EXCEEDED"

	// System errors
	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Chain access error codes
const (
	CodeEthereumConnectionFailed Code = "ETHEREUM_CONNECTION_FAILED"
	CodeEthereumSubscribeFailed  Code = "ETHEREUM_SUBSCRIBE_FAILED"
	CodeEthereumRPCError         Code = "ETHEREUM_RPC_ERROR"
	CodeBlockNotFound            Code = "BLOCK_NOT_FOUND"
	CodeGasEstimationFailed      Code = "GAS_ESTIMATION_FAILED"
	CodeContractCallFailed       Code = "CONTRACT_CALL_FAILED"
	CodeDecodeFailed             Code = "DECODE_FAILED"
)

// Proposal and pricing error codes
const (
	CodeInvalidProposal     Code = "INVALID_PROPOSAL"
	CodePoolUnavailable     Code = "POOL_UNAVAILABLE"
	CodeOrientationMismatch Code = "ORIENTATION_MISMATCH"
	CodeInvalidQuote        Code = "INVALID_QUOTE"
	CodePriceCalculation    Code = "PRICE_CALCULATION_FAILED"
)

// Strategy and execution error codes
const (
	CodeNoOpportunity          Code = "NO_OPPORTUNITY"
	CodeInvalidTradeSize       Code = "INVALID_TRADE_SIZE"
	CodeUnsupportedBorrowToken Code = "UNSUPPORTED_BORROW_TOKEN"
	CodeInsufficientLiquidity  Code = "INSUFFICIENT_LIQUIDITY"
	CodeSplitFailed            Code = "SPLIT_FAILED"
	CodeMergeFailed            Code = "MERGE_FAILED"
	CodeSwapFailed             Code = "SWAP_FAILED"
	CodeSlippageExceeded       Code = "SLIPPAGE_EXCEEDED"
	CodeInsufficientToRepay    Code = "INSUFFICIENT_TO_REPAY"
	CodeProfitBelowMinimum     Code = "PROFIT_BELOW_MINIMUM"
	CodeSettlementFailed       Code = "SETTLEMENT_FAILED"
	CodeExecutionReverted      Code = "EXECUTION_REVERTED"
)

// Circuit breaker error codes
const (
	CodeCircuitOpen     Code = "CIRCUIT_OPEN"
	CodeCircuitHalfOpen Code = "CIRCUIT_HALF_OPEN"
)
