package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	// General validation
	CodeRequiredField   Code = "REQUIRED_FIELD"
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeInvalidFormat   Code = "INVALID_FORMAT"
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

// Quoting error codes
const (
	// Request validation, local to one adapter call
	CodeUnsupportedChain       Code = "UNSUPPORTED_CHAIN"
	CodeCrossChainNotSupported Code = "CROSS_CHAIN_NOT_SUPPORTED"
	CodeIdenticalTokens        Code = "IDENTICAL_TOKENS"
	CodeInvalidAmount          Code = "INVALID_AMOUNT"
	CodeInvalidSlippage        Code = "INVALID_SLIPPAGE"

	// Source errors, captured as per-source failures
	CodeNoPoolFound   Code = "NO_POOL_FOUND"
	CodeNoRoute       Code = "NO_ROUTE"
	CodeUpstreamError Code = "UPSTREAM_ERROR"
	CodeSourceTimeout Code = "SOURCE_TIMEOUT"
	CodeSourcePanic   Code = "SOURCE_PANIC"

	// Aggregate
	CodeNoQuoteAvailable Code = "NO_QUOTE_AVAILABLE"

	// Execution
	CodeStaleQuote Code = "STALE_QUOTE"
)

// Chain error codes
const (
	CodeChainNotConfigured       Code = "CHAIN_NOT_CONFIGURED"
	CodeEthereumConnectionFailed Code = "ETHEREUM_CONNECTION_FAILED"
	CodeEthereumSubscribeFailed  Code = "ETHEREUM_SUBSCRIBE_FAILED"
	CodeEthereumRPCError         Code = "ETHEREUM_RPC_ERROR"
	CodeContractCallFailed       Code = "CONTRACT_CALL_FAILED"
	CodeGasEstimationFailed      Code = "GAS_ESTIMATION_FAILED"
	CodeTokenNotFound            Code = "TOKEN_NOT_FOUND"

	// Cache errors
	CodeCacheMiss    Code = "CACHE_MISS"
	CodeCacheFailure Code = "CACHE_FAILURE"

	// Circuit breaker errors
	CodeCircuitOpen     Code = "CIRCUIT_OPEN"
	CodeCircuitHalfOpen Code = "CIRCUIT_HALF_OPEN"
)
