package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidState:    "Invalid state for this operation",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	CodeConfigurationError: "Configuration error",

	CodeExternalServiceError: "External service error",
	CodeServiceTimeout:       "Service request timeout",
	CodeRateLimitExceeded:    "Rate limit exceeded",

	CodeInternalError: "Internal error",
	CodeUnknownError:  "An unknown error occurred",

	CodeEthereumConnectionFailed: "Failed to connect to Ethereum node",
	CodeEthereumSubscribeFailed:  "Failed to subscribe to Ethereum events",
	CodeEthereumRPCError:         "Ethereum RPC call failed",
	CodeBlockNotFound:            "Block not found",
	CodeSenderRecoveryFailed:     "Could not recover transaction sender",

	CodeSimulationFailed:   "Transaction simulation failed",
	CodeSimulationReverted: "Simulated transaction reverted",
	CodeUnknownTraceFormat: "Trace result has an unrecognized format",
	CodeTraceTooDeep:       "Call trace exceeds maximum depth",
	CodeUndecodableSwapLog: "Swap log data could not be decoded",

	CodeEventBusLagged: "Event bus subscriber lagged",
	CodeEventBusClosed: "Event bus closed",

	CodeRegistryBootstrapFailed:  "Pool registry bootstrap failed",
	CodePoolScanFailed:           "Pool creation log scan failed",
	CodeTokenMetadataUnavailable: "Token metadata unavailable",

	CodeStorageUnavailable: "Storage unavailable",
	CodeStorageWriteFailed: "Storage write failed",
	CodeStorageReadFailed:  "Storage read failed",
	CodeMigrationFailed:    "Database migration failed",

	CodeCircuitOpen: "Circuit breaker is open",
}
