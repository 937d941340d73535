package coingecko

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/onnwee/coin-tracker/internal/httpx"
)

// ErrorType represents different types of CoinGecko API errors
type ErrorType int

const (
	ErrorUnknown ErrorType = iota
	ErrorRateLimited
	ErrorNotFound
	ErrorUnauthorized
	ErrorBadRequest
	ErrorServerError
	ErrorTransport
	ErrorInvalidPayload
)

func (t ErrorType) String() string {
	switch t {
	case ErrorRateLimited:
		return "rate_limited"
	case ErrorNotFound:
		return "not_found"
	case ErrorUnauthorized:
		return "unauthorized"
	case ErrorBadRequest:
		return "bad_request"
	case ErrorServerError:
		return "server_error"
	case ErrorTransport:
		return "transport"
	case ErrorInvalidPayload:
		return "invalid_payload"
	default:
		return "unknown"
	}
}

// APIError represents a CoinGecko API error with additional context
type APIError struct {
	Type       ErrorType
	StatusCode int
	Message    string
	Retryable  bool
	RetryAfter time.Duration
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *APIError) Unwrap() error { return e.Err }

// errorResponse covers both shapes CoinGecko uses for errors:
// {"error":"coin not found"} and {"status":{"error_code":429,"error_message":"..."}}.
type errorResponse struct {
	Error  string `json:"error"`
	Status struct {
		ErrorCode    int    `json:"error_code"`
		ErrorMessage string `json:"error_message"`
	} `json:"status"`
}

// ClassifyError determines the type of error from an HTTP response.
// It consumes the response body.
func ClassifyError(resp *http.Response) *APIError {
	if resp == nil {
		return &APIError{Type: ErrorUnknown, Message: "nil response"}
	}

	var cgErr errorResponse
	if resp.Body != nil {
		if body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); err == nil {
			_ = json.Unmarshal(body, &cgErr)
		}
	}

	apiErr := &APIError{StatusCode: resp.StatusCode, Type: ErrorUnknown}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		apiErr.Type = ErrorRateLimited
		apiErr.Message = "rate limit exceeded, please wait a moment and try again"
		apiErr.Retryable = true
		if wait, ok := httpx.RetryAfter(resp.Header, time.Now()); ok {
			apiErr.RetryAfter = wait
		}
	case resp.StatusCode == http.StatusNotFound:
		apiErr.Type = ErrorNotFound
		apiErr.Message = "coin not found (404)"
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		apiErr.Type = ErrorUnauthorized
		apiErr.Message = fmt.Sprintf("access denied (%d), check the API key", resp.StatusCode)
	case resp.StatusCode >= 500:
		apiErr.Type = ErrorServerError
		apiErr.Message = fmt.Sprintf("CoinGecko returned status %d, the service might be temporarily unavailable", resp.StatusCode)
		apiErr.Retryable = true
	case resp.StatusCode >= 400:
		apiErr.Type = ErrorBadRequest
		apiErr.Message = fmt.Sprintf("bad request (%d)", resp.StatusCode)
	default:
		apiErr.Message = fmt.Sprintf("unexpected status %d", resp.StatusCode)
	}

	if cgErr.Status.ErrorMessage != "" {
		apiErr.Message += ": " + cgErr.Status.ErrorMessage
	} else if cgErr.Error != "" {
		apiErr.Message += ": " + cgErr.Error
	}

	return apiErr
}

// TransportError wraps a failure to reach the API at all.
func TransportError(err error) *APIError {
	return &APIError{
		Type:      ErrorTransport,
		Message:   "unable to connect to CoinGecko API",
		Retryable: true,
		Err:       err,
	}
}

// InvalidPayload reports a 2xx response whose body is unusable.
func InvalidPayload(reason string, err error) *APIError {
	return &APIError{
		Type:       ErrorInvalidPayload,
		StatusCode: http.StatusOK,
		Message:    "invalid data received from CoinGecko: " + reason,
		Retryable:  true,
		Err:        err,
	}
}

// IsPermanent checks if an error is permanent (should not be retried)
func IsPermanent(err *APIError) bool {
	if err == nil {
		return false
	}
	return err.Type == ErrorNotFound ||
		err.Type == ErrorBadRequest ||
		err.Type == ErrorUnauthorized
}
