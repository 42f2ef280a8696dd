package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	// General validation
	CodeRequiredField:   "Required field is missing",
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidFormat:   "Invalid data format",
	CodeInvalidState:    "Invalid state for this operation",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	// Configuration
	CodeConfigurationError: "Configuration error",

	// External service errors
	CodeExternalServiceError: "External service error",
	CodeServiceTimeout:       "Service request timeout",
	CodeServiceUnavailable:   "Service temporarily unavailable",
	CodeRateLimitExceeded:    "Rate limit exceeded",

	// System errors
	CodeInternalError: "Internal server error",
	CodeUnknownError:  "An unknown error occurred",

	// Request validation
	CodeUnsupportedChain:       "Chain not supported by this source",
	CodeCrossChainNotSupported: "Cross-chain swaps are not supported",
	CodeIdenticalTokens:        "Input and output tokens must differ",
	CodeInvalidAmount:          "Input amount must be greater than zero",
	CodeInvalidSlippage:        "Slippage must be between 0 and 1",

	// Source errors
	CodeNoPoolFound:   "No pool found for this pair",
	CodeNoRoute:       "No route for this pair",
	CodeUpstreamError: "Upstream quote API error",
	CodeSourceTimeout: "Quote source timed out",
	CodeSourcePanic:   "Quote source crashed",

	// Aggregate
	CodeNoQuoteAvailable: "Unable to price this pair right now",

	// Execution
	CodeStaleQuote: "Quote is no longer live, refresh before building",

	// Chain
	CodeChainNotConfigured:       "Chain is not configured",
	CodeEthereumConnectionFailed: "Failed to connect to Ethereum node",
	CodeEthereumSubscribeFailed:  "Failed to subscribe to Ethereum events",
	CodeEthereumRPCError:         "Ethereum RPC call failed",
	CodeContractCallFailed:       "Smart contract call failed",
	CodeGasEstimationFailed:      "Gas estimation failed",
	CodeTokenNotFound:            "Token not found",

	// Cache errors
	CodeCacheMiss:    "Cache miss",
	CodeCacheFailure: "Cache backend failure",

	// Circuit breaker errors
	CodeCircuitOpen:     "Circuit breaker is open",
	CodeCircuitHalfOpen: "Circuit breaker is half-open",
}
