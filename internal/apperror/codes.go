package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeInvalidState    Code = "INVALID_STATE"
	CodeNotFound        Code = "NOT_FOUND"
	CodeValidationError Code = "VALIDATION_ERROR"

	CodeConfigurationError Code = "CONFIGURATION_ERROR"

	CodeExternalServiceError Code = "EXTERNAL_SERVICE_ERROR"
	CodeServiceTimeout       Code = "SERVICE_TIMEOUT"
	CodeRateLimitExceeded    Code = "RATE_LIMIT_EXCEEDED"

	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Chain access
const (
	CodeEthereumConnectionFailed Code = "ETHEREUM_CONNECTION_FAILED"
	CodeEthereumSubscribeFailed  Code = "ETHEREUM_SUBSCRIBE_FAILED"
	CodeEthereumRPCError         Code = "ETHEREUM_RPC_ERROR"
	CodeBlockNotFound            Code = "BLOCK_NOT_FOUND"
	CodeSenderRecoveryFailed     Code = "SENDER_RECOVERY_FAILED"
)

// Simulation and extraction
const (
	CodeSimulationFailed   Code = "SIMULATION_FAILED"
	CodeSimulationReverted Code = "SIMULATION_REVERTED"
	CodeUnknownTraceFormat Code = "UNKNOWN_TRACE_FORMAT"
	CodeTraceTooDeep       Code = "TRACE_TOO_DEEP"
	CodeUndecodableSwapLog Code = "UNDECODABLE_SWAP_LOG"
)

// Event bus
const (
	CodeEventBusLagged Code = "EVENT_BUS_LAGGED"
	CodeEventBusClosed Code = "EVENT_BUS_CLOSED"
)

// Registry bootstrap
const (
	CodeRegistryBootstrapFailed  Code = "REGISTRY_BOOTSTRAP_FAILED"
	CodePoolScanFailed           Code = "POOL_SCAN_FAILED"
	CodeTokenMetadataUnavailable Code = "TOKEN_METADATA_UNAVAILABLE"
)

// Storage
const (
	CodeStorageUnavailable Code = "STORAGE_UNAVAILABLE"
	CodeStorageWriteFailed Code = "STORAGE_WRITE_FAILED"
	CodeStorageReadFailed  Code = "STORAGE_READ_FAILED"
	CodeMigrationFailed    Code = "MIGRATION_FAILED"
)

// Circuit breaker
const (
	CodeCircuitOpen Code = "CIRCUIT_OPEN"
)

// fatal codes stop the strategy loop; everything else is discarded per item.
var fatal = map[Code]bool{
	CodeEventBusClosed:          true,
	CodeRegistryBootstrapFailed: true,
	CodeConfigurationError:      true,
}
