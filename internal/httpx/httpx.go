package httpx

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/onnwee/coin-tracker/internal/config"
	"github.com/onnwee/coin-tracker/internal/logger"
	"github.com/onnwee/coin-tracker/internal/metrics"
)

// MaxRetryAfterWait caps how long a single Retry-After is honored. Anything
// longer is returned to the caller as the final response.
const MaxRetryAfterWait = 30 * time.Second

// PreAttempt lets callers run logic (e.g., rate limiting) before each try; return an error to abort.
type PreAttempt func(ctx context.Context, attempt int) error

// AttemptInfo describes a single attempt outcome.
type AttemptInfo struct {
	Attempt int
	Method  string
	URL     string
	Status  int
	Err     error
	Wait    time.Duration
}

// Observer callback to report attempt telemetry.
type Observer func(info AttemptInfo)

// RequestFactory builds a fresh request per attempt.
type RequestFactory func(ctx context.Context) (*http.Request, error)

// Do executes a request with lightweight retries on transport errors, 429 and
// 5xx, honoring Retry-After. Attempts and base delay come from config. The
// last 429/5xx response is returned as-is so callers can classify it.
//
// Retries run inside one queue task, so every wait is floored at the queue
// delay to keep upstream starts at least that far apart.
func Do(ctx context.Context, client *http.Client, build RequestFactory, pre PreAttempt, obs Observer) (*http.Response, error) {
	cfg := config.Load()
	log := logger.ForComponent(ctx, "httpx")
	maxAttempts := cfg.HTTPMaxRetries
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	baseDelay := cfg.HTTPRetryBase
	minGap := cfg.QueueDelay
	report := func(info AttemptInfo) {
		if obs != nil {
			obs(info)
		}
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if pre != nil {
			if err := pre(ctx, attempt); err != nil {
				return nil, err
			}
		}
		req, err := build(ctx)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			// Network or transport error
			if attempt == maxAttempts || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				if cfg.LogHTTPRetries {
					log.Warn("request failed, no more retries", "attempt", attempt, "method", req.Method, "url", req.URL.String(), "error", err)
				}
				report(AttemptInfo{Attempt: attempt, Method: req.Method, URL: req.URL.String(), Err: err})
				return nil, err
			}
			metrics.UpstreamHTTPRetries.Inc()
			report(AttemptInfo{Attempt: attempt, Method: req.Method, URL: req.URL.String(), Err: err})
		} else {
			// success unless 429/5xx
			if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode < 500 {
				if cfg.LogHTTPRetries && attempt > 1 {
					log.Info("request succeeded after retry", "attempt", attempt, "method", req.Method, "url", req.URL.String(), "status", resp.StatusCode)
				}
				report(AttemptInfo{Attempt: attempt, Method: req.Method, URL: req.URL.String(), Status: resp.StatusCode})
				return resp, nil
			}
			if attempt == maxAttempts {
				if cfg.LogHTTPRetries {
					log.Warn("giving up", "attempt", attempt, "method", req.Method, "url", req.URL.String(), "status", resp.StatusCode)
				}
				report(AttemptInfo{Attempt: attempt, Method: req.Method, URL: req.URL.String(), Status: resp.StatusCode})
				return resp, nil
			}
			// Respect Retry-After header
			if wait, ok := RetryAfter(resp.Header, time.Now()); ok {
				if wait > MaxRetryAfterWait {
					report(AttemptInfo{Attempt: attempt, Method: req.Method, URL: req.URL.String(), Status: resp.StatusCode, Wait: wait})
					return resp, nil
				}
				resp.Body.Close()
				wait = max(wait, minGap)
				metrics.UpstreamRetryAfterWaits.Observe(wait.Seconds())
				metrics.UpstreamHTTPRetries.Inc()
				if cfg.LogHTTPRetries {
					log.Info("honoring Retry-After", "attempt", attempt, "status", resp.StatusCode, "wait", wait, "method", req.Method, "url", req.URL.String())
				}
				report(AttemptInfo{Attempt: attempt, Method: req.Method, URL: req.URL.String(), Status: resp.StatusCode, Wait: wait})
				if err := sleep(ctx, wait); err != nil {
					return nil, err
				}
				continue
			}
			resp.Body.Close()
			metrics.UpstreamHTTPRetries.Inc()
		}
		// backoff with jitter
		jitter := time.Duration(rand.Intn(200)) * time.Millisecond
		delay := max(baseDelay*time.Duration(attempt)+jitter, minGap)
		if cfg.LogHTTPRetries {
			log.Info("backing off", "attempt", attempt, "delay", delay, "method", req.Method, "url", req.URL.String())
		}
		report(AttemptInfo{Attempt: attempt, Method: req.Method, URL: req.URL.String(), Wait: delay})
		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, errors.New("exhausted retries")
}

// RetryAfter parses a Retry-After header given as delta seconds or an HTTP date.
func RetryAfter(h http.Header, now time.Time) (time.Duration, bool) {
	ra := h.Get("Retry-After")
	if ra == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(ra); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(ra); err == nil {
		if delta := t.Sub(now); delta > 0 {
			return delta, true
		}
	}
	return 0, false
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
