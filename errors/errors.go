package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// maxDetailBytes bounds how much of a response body is copied into Message.
const maxDetailBytes = 512

// AppError is the unified client error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates the failure kind may succeed on a later attempt.
	Retryable bool `json:"retryable"`
	// StatusCode is the HTTP status that produced the error (0 for local failures).
	StatusCode int `json:"status_code,omitempty"`
	// Attempts is the number of network attempts made before the error became terminal.
	Attempts int `json:"attempts,omitempty"`
	// RetryAfter is the server-provided wait carried by a 429 response.
	RetryAfter time.Duration `json:"-"`
	// Body is the response body returned by the server, if any.
	Body []byte `json:"-"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.StatusCode)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Attempts > 0 {
		fmt.Fprintf(&b, " after %d attempt(s)", e.Attempts)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, " (cause: %v)", e.Cause)
	}
	return b.String()
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithAttempts records how many attempts were made and returns the receiver.
func (e *AppError) WithAttempts(n int) *AppError {
	e.Attempts = n
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Retryable: IsRetryableCode(code),
	}
}

// --- Constructors ---

// Network creates a retryable error for a failed or timed-out attempt.
func Network(cause error) *AppError {
	return &AppError{
		Code: ErrCodeNetwork, Message: "request could not be completed",
		Retryable: true, Cause: cause,
	}
}

// RateLimitTimeout creates an error for admission that could not be granted.
func RateLimitTimeout(cause error) *AppError {
	return &AppError{
		Code: ErrCodeRateLimitTimeout, Message: "rate limit admission not granted in time",
		Retryable: false, Cause: cause,
	}
}

// Throttled creates an error for a 429 response. It is retryable until the
// attempt ceiling is reached.
func Throttled(body []byte, retryAfter time.Duration) *AppError {
	return &AppError{
		Code: ErrCodeRateLimitTimeout, Message: "throttled by remote service",
		StatusCode: http.StatusTooManyRequests, Retryable: true,
		RetryAfter: retryAfter, Body: body,
	}
}

// AuthFailure creates an error for rejected or unrefreshable credentials.
func AuthFailure(statusCode int, body []byte) *AppError {
	msg := "credentials rejected"
	if statusCode == 0 {
		msg = "credentials could not be obtained"
	}
	return &AppError{
		Code: ErrCodeAuthFailure, Message: msg,
		StatusCode: statusCode, Retryable: false, Body: body,
	}
}

// Server creates a retryable error for a 5xx response.
func Server(statusCode int, body []byte) *AppError {
	return &AppError{
		Code: ErrCodeServer, Message: http.StatusText(statusCode),
		StatusCode: statusCode, Retryable: true, Body: body,
	}
}

// Client creates a terminal error for a 4xx response carrying the server's detail.
func Client(statusCode int, body []byte) *AppError {
	msg := http.StatusText(statusCode)
	if detail := detailOf(body); detail != "" {
		msg += ": " + detail
	}
	return &AppError{
		Code: ErrCodeClient, Message: msg,
		StatusCode: statusCode, Retryable: false, Body: body,
	}
}

// Stream creates a terminal error for a body stream interrupted mid-way.
func Stream(cause error) *AppError {
	return &AppError{
		Code: ErrCodeStream, Message: "stream interrupted",
		Retryable: false, Cause: cause,
	}
}

// InvalidInput creates an error for a request that cannot be built.
func InvalidInput(reason string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidInput, Message: reason, Retryable: false,
	}
}

// --- Inspection helpers ---

// AsAppError converts an error to an AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// CodeOf returns the code of err, or "" when err is not an AppError.
func CodeOf(err error) ErrorCode {
	if e, ok := AsAppError(err); ok {
		return e.Code
	}
	return ""
}

// AttemptsOf returns the attempt count recorded on err.
func AttemptsOf(err error) int {
	if e, ok := AsAppError(err); ok {
		return e.Attempts
	}
	return 0
}

// IsNetwork reports whether err is a NETWORK_ERROR.
func IsNetwork(err error) bool { return CodeOf(err) == ErrCodeNetwork }

// IsRateLimitTimeout reports whether err is a RATE_LIMIT_TIMEOUT.
func IsRateLimitTimeout(err error) bool { return CodeOf(err) == ErrCodeRateLimitTimeout }

// IsAuthFailure reports whether err is an AUTH_FAILURE.
func IsAuthFailure(err error) bool { return CodeOf(err) == ErrCodeAuthFailure }

// IsServerError reports whether err is a SERVER_ERROR.
func IsServerError(err error) bool { return CodeOf(err) == ErrCodeServer }

// IsClientError reports whether err is a CLIENT_ERROR.
func IsClientError(err error) bool { return CodeOf(err) == ErrCodeClient }

// IsStreamError reports whether err is a STREAM_ERROR.
func IsStreamError(err error) bool { return CodeOf(err) == ErrCodeStream }

// IsInvalidInput reports whether err is an INVALID_INPUT.
func IsInvalidInput(err error) bool { return CodeOf(err) == ErrCodeInvalidInput }

// IsRetryable reports whether err is an AppError of a retryable kind.
func IsRetryable(err error) bool {
	e, ok := AsAppError(err)
	return ok && e.Retryable
}

func detailOf(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxDetailBytes {
		s = s[:maxDetailBytes] + "..."
	}
	return s
}
