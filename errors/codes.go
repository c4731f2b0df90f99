package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Transport errors
const (
	// ErrCodeNetwork indicates a connectivity failure or attempt timeout.
	ErrCodeNetwork ErrorCode = "NETWORK_ERROR"
	// ErrCodeStream indicates a body stream was interrupted after delivery began.
	ErrCodeStream ErrorCode = "STREAM_ERROR"
)

// Admission errors
const (
	// ErrCodeRateLimitTimeout indicates admission could not be granted in time,
	// either by the local window or by the remote service (429).
	ErrCodeRateLimitTimeout ErrorCode = "RATE_LIMIT_TIMEOUT"
)

// Authentication errors
const (
	// ErrCodeAuthFailure indicates credentials were rejected or could not be refreshed.
	ErrCodeAuthFailure ErrorCode = "AUTH_FAILURE"
)

// Response errors
const (
	// ErrCodeServer indicates the remote service answered with a 5xx status.
	ErrCodeServer ErrorCode = "SERVER_ERROR"
	// ErrCodeClient indicates a non-retryable 4xx status.
	ErrCodeClient ErrorCode = "CLIENT_ERROR"
)

// Local errors
const (
	// ErrCodeInvalidInput indicates a request or configuration could not be built.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// retryableCodes lists the kinds the client absorbs up to its attempt ceiling.
var retryableCodes = map[ErrorCode]bool{
	ErrCodeNetwork: true,
	ErrCodeServer:  true,
}

// IsRetryableCode returns true if failures of this kind may succeed on retry.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
