package sdk

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Common errors returned by the SDK. These can be used with errors.Is()
// to check for specific error conditions.
//
// Example:
//
//	p, err := client.Pokemon.Get(ctx, "missingno")
//	if errors.Is(err, sdk.ErrNotFound) {
//	    // No such pokemon
//	} else if errors.Is(err, sdk.ErrRateLimited) {
//	    // Slow down
//	}
var (
	// ErrInvalidConfig is returned when the configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidArgument is returned when a request is malformed before it is sent
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrClientClosed is returned by every operation after Close
	ErrClientClosed = errors.New("client is closed")

	// ErrBadRequest is returned for 400 responses
	ErrBadRequest = errors.New("bad request")

	// ErrUnauthorized is returned for 401 responses
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned for 403 responses
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound is returned for 404 responses
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned for 409 responses
	ErrConflict = errors.New("conflict")

	// ErrUnprocessable is returned for 422 responses
	ErrUnprocessable = errors.New("unprocessable entity")

	// ErrRateLimited is returned for 429 responses
	ErrRateLimited = errors.New("rate limited")

	// ErrServerError is returned for 5xx responses, including ErrServiceUnavailable ones
	ErrServerError = errors.New("server error")

	// ErrServiceUnavailable is returned for 502, 503 and 504 responses
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrTimeout is returned when a request times out
	ErrTimeout = errors.New("request timeout")

	// ErrConnection is returned when PokeAPI cannot be reached
	ErrConnection = errors.New("connection error")

	// ErrInvalidResponse is returned when a response body cannot be decoded
	ErrInvalidResponse = errors.New("invalid response from server")

	// ErrCircuitOpen is returned when the circuit breaker is open
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrNoPage is returned when paging past the first or last page
	ErrNoPage = errors.New("no such page")
)

// ErrorType categorizes an Error.
//
// Example:
//
//	var sdkErr *sdk.Error
//	if errors.As(err, &sdkErr) {
//	    switch sdkErr.Type {
//	    case sdk.ErrorTypeNetwork:
//	        // PokeAPI unreachable
//	    case sdk.ErrorTypeRateLimit:
//	        // Back off
//	    }
//	}
type ErrorType int

const (
	// ErrorTypeUnknown represents an unknown or unclassified error
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeNetwork represents transport failures (connection refused, DNS, reset)
	ErrorTypeNetwork
	// ErrorTypeTimeout represents request timeouts and expired deadlines
	ErrorTypeTimeout
	// ErrorTypeBadRequest represents 400 responses
	ErrorTypeBadRequest
	// ErrorTypeUnauthorized represents 401 responses
	ErrorTypeUnauthorized
	// ErrorTypeForbidden represents 403 responses
	ErrorTypeForbidden
	// ErrorTypeNotFound represents 404 responses
	ErrorTypeNotFound
	// ErrorTypeConflict represents 409 responses
	ErrorTypeConflict
	// ErrorTypeUnprocessable represents 422 responses
	ErrorTypeUnprocessable
	// ErrorTypeRateLimit represents 429 responses
	ErrorTypeRateLimit
	// ErrorTypeServiceUnavailable represents 502, 503 and 504 responses
	ErrorTypeServiceUnavailable
	// ErrorTypeServer represents any other 5xx response
	ErrorTypeServer
	// ErrorTypeStatus represents any other non-2xx response
	ErrorTypeStatus
	// ErrorTypeCircuitOpen represents circuit breaker open state errors
	ErrorTypeCircuitOpen
	// ErrorTypeValidation represents invalid input or configuration
	ErrorTypeValidation
	// ErrorTypeDecode represents undecodable response bodies
	ErrorTypeDecode
)

// String returns the string representation of the error type
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeNetwork:
		return "network"
	case ErrorTypeTimeout:
		return "timeout"
	case ErrorTypeBadRequest:
		return "bad_request"
	case ErrorTypeUnauthorized:
		return "unauthorized"
	case ErrorTypeForbidden:
		return "forbidden"
	case ErrorTypeNotFound:
		return "not_found"
	case ErrorTypeConflict:
		return "conflict"
	case ErrorTypeUnprocessable:
		return "unprocessable"
	case ErrorTypeRateLimit:
		return "rate_limit"
	case ErrorTypeServiceUnavailable:
		return "service_unavailable"
	case ErrorTypeServer:
		return "server"
	case ErrorTypeStatus:
		return "status"
	case ErrorTypeCircuitOpen:
		return "circuit_open"
	case ErrorTypeValidation:
		return "validation"
	case ErrorTypeDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// Error is the error type returned by every SDK operation that talks to
// PokeAPI. It supports errors.Is against the sentinel errors above and
// errors.As for the details.
//
// Example:
//
//	var sdkErr *sdk.Error
//	if errors.As(err, &sdkErr) {
//	    fmt.Printf("status %d, retryable %v\n", sdkErr.StatusCode, sdkErr.Retryable)
//	}
type Error struct {
	// Type categorizes the error for handling decisions
	Type ErrorType `json:"type"`
	// StatusCode is the HTTP status, zero when no response was received
	StatusCode int `json:"status_code,omitempty"`
	// Message is a human-readable error description
	Message string `json:"message"`
	// Details contains additional error metadata
	Details map[string]interface{} `json:"details,omitempty"`
	// Timestamp is when the error occurred
	Timestamp time.Time `json:"timestamp"`
	// Retryable indicates if the request may succeed when repeated
	Retryable bool `json:"retryable"`
	// Context provides additional context about the failed operation
	Context *ErrorContext `json:"context,omitempty"`

	wrapped error
}

// ErrorContext describes the request that failed.
type ErrorContext struct {
	// URL is the full URL of the failed request
	URL string `json:"url,omitempty"`
	// Method is the HTTP method used
	Method string `json:"method,omitempty"`
	// Duration is how long the operation took before failing
	Duration time.Duration `json:"duration,omitempty"`
	// RetryCount is the number of retry attempts made
	RetryCount int `json:"retry_count,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Context != nil && e.Context.URL != "" {
		return fmt.Sprintf("%s error: %s (url: %s, retries: %d)", e.Type, e.Message, e.Context.URL, e.Context.RetryCount)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.wrapped
}

// Is implements errors.Is
func (e *Error) Is(target error) bool {
	switch e.Type {
	case ErrorTypeNetwork:
		return target == ErrConnection
	case ErrorTypeTimeout:
		return target == ErrTimeout
	case ErrorTypeBadRequest:
		return target == ErrBadRequest
	case ErrorTypeUnauthorized:
		return target == ErrUnauthorized
	case ErrorTypeForbidden:
		return target == ErrForbidden
	case ErrorTypeNotFound:
		return target == ErrNotFound
	case ErrorTypeConflict:
		return target == ErrConflict
	case ErrorTypeUnprocessable:
		return target == ErrUnprocessable
	case ErrorTypeRateLimit:
		return target == ErrRateLimited
	case ErrorTypeServiceUnavailable:
		return target == ErrServiceUnavailable || target == ErrServerError
	case ErrorTypeServer:
		return target == ErrServerError
	case ErrorTypeCircuitOpen:
		return target == ErrCircuitOpen
	case ErrorTypeValidation:
		return target == ErrInvalidArgument
	case ErrorTypeDecode:
		return target == ErrInvalidResponse
	}
	return false
}

// IsRetryable returns true if the error is retryable
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

// WithContext adds error context
func (e *Error) WithContext(ctx *ErrorContext) *Error {
	e.Context = ctx
	return e
}

// WithDetail adds a detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewError creates a new enhanced error
func NewError(errType ErrorType, message string, wrapped error) *Error {
	return &Error{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Retryable: isRetryableType(errType),
		wrapped:   wrapped,
	}
}

// isRetryableType reports whether repeating the request could help. Only
// transport failures and 5xx responses qualify; a 429 is surfaced at once.
func isRetryableType(errType ErrorType) bool {
	switch errType {
	case ErrorTypeNetwork, ErrorTypeTimeout, ErrorTypeServer, ErrorTypeServiceUnavailable:
		return true
	default:
		return false
	}
}

// statusErrorType maps an HTTP status to its ErrorType.
func statusErrorType(status int) ErrorType {
	switch {
	case status == http.StatusBadRequest:
		return ErrorTypeBadRequest
	case status == http.StatusUnauthorized:
		return ErrorTypeUnauthorized
	case status == http.StatusForbidden:
		return ErrorTypeForbidden
	case status == http.StatusNotFound:
		return ErrorTypeNotFound
	case status == http.StatusConflict:
		return ErrorTypeConflict
	case status == http.StatusUnprocessableEntity:
		return ErrorTypeUnprocessable
	case status == http.StatusTooManyRequests:
		return ErrorTypeRateLimit
	case status == http.StatusBadGateway, status == http.StatusServiceUnavailable, status == http.StatusGatewayTimeout:
		return ErrorTypeServiceUnavailable
	case status >= 500 && status < 600:
		return ErrorTypeServer
	default:
		return ErrorTypeStatus
	}
}

// maxErrorBody bounds how much of a non-JSON error body ends up in a message.
const maxErrorBody = 200

// NewStatusError builds the Error for a non-2xx response. The message is the
// response body (truncated when it is not JSON), or "HTTP <status>" when the
// body is empty. Rate limiting always reads "Rate limited".
func NewStatusError(status int, body []byte) *Error {
	errType := statusErrorType(status)

	message := strings.TrimSpace(string(body))
	if message != "" && !strings.HasPrefix(message, "{") && len(message) > maxErrorBody {
		message = message[:maxErrorBody]
	}
	if message == "" {
		message = fmt.Sprintf("HTTP %d", status)
	}
	if errType == ErrorTypeRateLimit {
		message = "Rate limited"
	}

	err := NewError(errType, message, nil)
	err.StatusCode = status
	return err
}

// NetworkError represents a network-related error such as connection
// refused, DNS resolution failure, or a reset connection.
type NetworkError struct {
	// Op is the operation that failed (e.g., "dial", "read", "write")
	Op string
	// Err is the underlying network error
	Err error
}

// Error implements the error interface
func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ToError converts NetworkError to the enhanced Error type
func (e *NetworkError) ToError() *Error {
	err := NewError(ErrorTypeNetwork, e.Error(), e)
	err.WithDetail("operation", e.Op)
	return err
}

// TimeoutError represents an operation that exceeded its time limit.
type TimeoutError struct {
	// Op is the operation that timed out
	Op string
	// Err is the underlying error, usually context.DeadlineExceeded
	Err error
}

// Error implements the error interface
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout during %s", e.Op)
}

// Unwrap returns the underlying error
func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// ToError converts TimeoutError to the enhanced Error type
func (e *TimeoutError) ToError() *Error {
	err := NewError(ErrorTypeTimeout, e.Error(), e)
	err.WithDetail("operation", e.Op)
	return err
}

// IsNotFound checks if the error represents a 404 from PokeAPI.
//
// Example:
//
//	gen, err := client.Generation.Get(ctx, "generation-x")
//	if sdk.IsNotFound(err) {
//	    // No such generation
//	}
func IsNotFound(err error) bool {
	return err != nil && errors.Is(err, ErrNotFound)
}

// IsRetryable checks if an error is retryable. Transport failures, timeouts
// and 5xx responses are retryable; every other status is not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var enhancedErr *Error
	if errors.As(err, &enhancedErr) {
		return enhancedErr.IsRetryable()
	}

	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}

	var timeoutErr *TimeoutError
	return errors.As(err, &timeoutErr)
}

// StatusCode returns the HTTP status carried by err, or zero.
func StatusCode(err error) int {
	var enhancedErr *Error
	if errors.As(err, &enhancedErr) {
		return enhancedErr.StatusCode
	}
	return 0
}

// WrapError wraps an error with additional context and type information.
// If the error is already an enhanced Error, it updates the message.
func WrapError(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	var enhancedErr *Error
	if errors.As(err, &enhancedErr) {
		enhancedErr.Message = message
		return enhancedErr
	}

	return NewError(errType, message, err)
}

// invalidArgument builds a validation error for bad caller input.
func invalidArgument(format string, args ...interface{}) *Error {
	return NewError(ErrorTypeValidation, fmt.Sprintf(format, args...), nil)
}
