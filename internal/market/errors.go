package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/onnwee/coin-tracker/internal/circuitbreaker"
	"github.com/onnwee/coin-tracker/internal/coingecko"
	"github.com/onnwee/coin-tracker/internal/queue"
)

// ErrorKind classifies upstream failures for the view layer.
type ErrorKind int

const (
	KindUnavailable ErrorKind = iota
	KindRateLimited
	KindNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindNotFound:
		return "not_found"
	default:
		return "unavailable"
	}
}

// ErrCancelled marks a request its caller abandoned. Never shown to users.
var ErrCancelled = errors.New("market: request cancelled")

// RateLimitMessage is shown when CoinGecko answers 429.
const RateLimitMessage = "rate limit exceeded, please wait a moment and try again"

// Error is the typed failure of the surface policy.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	RetryAfter time.Duration
	Message    string
	Err        error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether asking again later may succeed.
func (e *Error) Retryable() bool { return e.Kind != KindNotFound }

func kindOf(err error) ErrorKind {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind
	}
	return -1
}

// IsCancelled reports caller-side abandonment, which no policy substitutes for.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}

func unavailable(msg string, err error) *Error {
	return &Error{Kind: KindUnavailable, StatusCode: 502, Message: msg, Err: err}
}

// classify turns a transport-level failure into the surface error taxonomy.
// ctx is the caller's context: if it is done, the failure is the caller's.
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
	}

	var me *Error
	if errors.As(err, &me) {
		return me
	}

	var apiErr *coingecko.APIError
	switch {
	case errors.As(err, &apiErr):
		switch apiErr.Type {
		case coingecko.ErrorRateLimited:
			return &Error{Kind: KindRateLimited, StatusCode: apiErr.StatusCode, RetryAfter: apiErr.RetryAfter, Message: RateLimitMessage, Err: err}
		case coingecko.ErrorNotFound:
			return &Error{Kind: KindNotFound, StatusCode: apiErr.StatusCode, Message: "coin not found", Err: err}
		default:
			return &Error{Kind: KindUnavailable, StatusCode: apiErr.StatusCode, Message: apiErr.Message, Err: err}
		}
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		return unavailable("CoinGecko is temporarily unavailable, retry shortly", err)
	case errors.Is(err, context.DeadlineExceeded):
		return unavailable("CoinGecko did not respond in time", err)
	case errors.Is(err, queue.ErrClosed):
		return unavailable("service is shutting down", err)
	}
	return unavailable("unable to connect to CoinGecko API", err)
}

// BreakerFailure decides which upstream errors count towards tripping the
// circuit breaker: rate limits and outages do, bad ids and cancellations do not.
func BreakerFailure(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *coingecko.APIError
	if errors.As(err, &apiErr) {
		return !coingecko.IsPermanent(apiErr)
	}
	return true
}
