package apierr

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/onnwee/coin-tracker/internal/logger"
)

// ErrorCode represents a structured error code
type ErrorCode string

// Error code constants organized by category
const (
	// UPSTREAM_ - CoinGecko access errors
	ErrUpstreamRateLimited ErrorCode = "UPSTREAM_RATE_LIMITED"
	ErrUpstreamUnavailable ErrorCode = "UPSTREAM_UNAVAILABLE"

	// COIN_ - Coin lookups
	ErrCoinNotFound  ErrorCode = "COIN_NOT_FOUND"
	ErrCoinInvalidID ErrorCode = "COIN_INVALID_ID"

	// WATCHLIST_ - Watchlist persistence
	ErrWatchlistFailed ErrorCode = "WATCHLIST_FAILED"

	// SYSTEM_ - System and server errors
	ErrSystemInternal ErrorCode = "SYSTEM_INTERNAL"

	// VALIDATION_ - Request validation errors
	ErrValidationInvalidJSON   ErrorCode = "VALIDATION_INVALID_JSON"
	ErrValidationInvalidFormat ErrorCode = "VALIDATION_INVALID_FORMAT"
	ErrValidationInvalidValue  ErrorCode = "VALIDATION_INVALID_VALUE"

	// RESOURCE_ - Resource errors
	ErrResourceNotFound ErrorCode = "RESOURCE_NOT_FOUND"

	// RATE_LIMIT_ - Rate limiting errors
	ErrRateLimitGlobal ErrorCode = "RATE_LIMIT_GLOBAL"
	ErrRateLimitIP     ErrorCode = "RATE_LIMIT_IP"
)

// Error represents a structured API error
type Error struct {
	Code       ErrorCode      `json:"code"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	status     int            // HTTP status code (not serialized)
	retryAfter time.Duration  // sent as the Retry-After header when > 0
}

// ErrorResponse is the top-level error response wrapper
type ErrorResponse struct {
	Error *Error `json:"error"`
}

// New creates a new API error
func New(code ErrorCode, message string, status int) *Error {
	return &Error{
		Code:    code,
		Message: message,
		status:  status,
	}
}

// WithDetails merges details into the error
func (e *Error) WithDetails(details map[string]any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any, len(details))
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithRequestID adds a request ID to the error
func (e *Error) WithRequestID(requestID string) *Error {
	e.RequestID = requestID
	return e
}

// WithRetry marks the error as retryable and points the client at the URL
// to retry. It is the retry affordance for upstream failures.
func (e *Error) WithRetry(retryURL string) *Error {
	d := map[string]any{"retry": true}
	if retryURL != "" {
		d["retry_url"] = retryURL
	}
	return e.WithDetails(d)
}

// WithRetryAfter sets the Retry-After header written with the error.
func (e *Error) WithRetryAfter(d time.Duration) *Error {
	e.retryAfter = d
	if d > 0 {
		e.WithDetails(map[string]any{"retry_after_seconds": retryAfterSeconds(d)})
	}
	return e
}

// Error implements the error interface
func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// Status returns the HTTP status code
func (e *Error) Status() int {
	return e.status
}

// RetryAfter returns the wait suggested to the client, if any.
func (e *Error) RetryAfter() time.Duration {
	return e.retryAfter
}

func retryAfterSeconds(d time.Duration) int {
	return int(math.Ceil(d.Seconds()))
}

// WriteError writes a structured error response to the HTTP response writer
func WriteError(w http.ResponseWriter, err *Error) {
	w.Header().Set("Content-Type", "application/json")
	if err.retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(err.retryAfter)))
	}
	w.WriteHeader(err.Status())
	json.NewEncoder(w).Encode(ErrorResponse{Error: err})
}

// Helper functions for common errors

// UpstreamRateLimited is returned when CoinGecko answered 429 and no
// fallback applies.
func UpstreamRateLimited(message string, retryAfter time.Duration) *Error {
	if message == "" {
		message = "rate limit exceeded, please wait a moment and try again"
	}
	return New(ErrUpstreamRateLimited, message, http.StatusTooManyRequests).WithRetryAfter(retryAfter)
}

// UpstreamUnavailable covers every other upstream failure.
func UpstreamUnavailable(message string) *Error {
	if message == "" {
		message = "unable to connect to CoinGecko API"
	}
	return New(ErrUpstreamUnavailable, message, http.StatusBadGateway)
}

// CoinNotFound creates an unknown coin error
func CoinNotFound(id string) *Error {
	return New(ErrCoinNotFound, "coin not found: "+id, http.StatusNotFound).
		WithDetails(map[string]any{"id": id})
}

// CoinInvalidID creates a malformed coin id error
func CoinInvalidID(id string) *Error {
	return New(ErrCoinInvalidID, "invalid coin id", http.StatusBadRequest).
		WithDetails(map[string]any{"id": id})
}

// WatchlistFailed creates a watchlist persistence error
func WatchlistFailed(message string) *Error {
	if message == "" {
		message = "Watchlist storage error"
	}
	return New(ErrWatchlistFailed, message, http.StatusInternalServerError)
}

// SystemInternal creates an internal server error
func SystemInternal(message string) *Error {
	if message == "" {
		message = "Internal server error"
	}
	return New(ErrSystemInternal, message, http.StatusInternalServerError)
}

// ValidationInvalidJSON creates an invalid JSON error
func ValidationInvalidJSON() *Error {
	return New(ErrValidationInvalidJSON, "Invalid JSON request body", http.StatusBadRequest)
}

// ValidationInvalidFormat creates an invalid format error
func ValidationInvalidFormat(message string) *Error {
	if message == "" {
		message = "Invalid request format"
	}
	return New(ErrValidationInvalidFormat, message, http.StatusBadRequest)
}

// ValidationInvalidValue creates an invalid value error
func ValidationInvalidValue(field string, message string) *Error {
	if message == "" {
		message = "Invalid value for field: " + field
	}
	return New(ErrValidationInvalidValue, message, http.StatusBadRequest).
		WithDetails(map[string]any{"field": field})
}

// ResourceNotFound creates a resource not found error
func ResourceNotFound(resourceType string) *Error {
	return New(ErrResourceNotFound, resourceType+" not found", http.StatusNotFound).
		WithDetails(map[string]any{"resource_type": resourceType})
}

// RateLimitGlobal creates a global rate limit error
func RateLimitGlobal() *Error {
	return New(ErrRateLimitGlobal, "Rate limit exceeded - too many requests globally", http.StatusTooManyRequests)
}

// RateLimitIP creates an IP rate limit error
func RateLimitIP() *Error {
	return New(ErrRateLimitIP, "Rate limit exceeded - too many requests from your IP", http.StatusTooManyRequests)
}

// GetRequestID extracts the request ID from the context
func GetRequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(logger.RequestIDKey).(string); ok {
		return reqID
	}
	return ""
}

// WriteErrorWithContext writes a structured error response with request ID from context
func WriteErrorWithContext(w http.ResponseWriter, r *http.Request, err *Error) {
	if reqID := GetRequestID(r.Context()); reqID != "" {
		err = err.WithRequestID(reqID)
	}
	WriteError(w, err)
}
