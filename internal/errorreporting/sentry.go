package errorreporting

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/onnwee/coin-tracker/internal/config"
	"github.com/onnwee/coin-tracker/internal/logger"
)

// PII patterns to scrub from error messages
var piiPatterns = []*regexp.Regexp{
	// Email addresses
	regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),
	// Bearer tokens (admin API token)
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._-]{16,}`),
	// API keys and tokens, including CoinGecko's x_cg_demo_api_key query form
	regexp.MustCompile(`(?i)(api[_-]?key|token|secret)["\s:=]+[a-zA-Z0-9_-]{16,}`),
	// IP addresses
	regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`),
}

// headers dropped from reported requests
var sensitiveHeaders = []string{"Authorization", "Cookie", "X-Api-Key", "X-Cg-Demo-Api-Key", "X-Cg-Pro-Api-Key"}

var enabled bool

// Init initializes Sentry error reporting. A missing DSN is not an error.
func Init(cfg *config.Config) error {
	enabled = false
	if cfg == nil || cfg.SentryDSN == "" {
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.SentryEnvironment,
		Release:          getRelease(cfg),
		SampleRate:       cfg.SentrySampleRate,
		BeforeSend:       beforeSend,
		AttachStacktrace: true,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize Sentry: %w", err)
	}

	enabled = true
	return nil
}

// getRelease returns the configured release or "dev"
func getRelease(cfg *config.Config) string {
	if cfg != nil && cfg.SentryRelease != "" {
		return cfg.SentryRelease
	}
	return "dev"
}

// beforeSend scrubs PII and strips credentials before events leave the process
func beforeSend(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
	for i := range event.Exception {
		event.Exception[i].Value = scrubPII(event.Exception[i].Value)
	}

	if event.Message != "" {
		event.Message = scrubPII(event.Message)
	}

	for key, value := range event.Extra {
		if str, ok := value.(string); ok {
			event.Extra[key] = scrubPII(str)
		}
	}

	if event.Request != nil {
		for _, h := range sensitiveHeaders {
			delete(event.Request.Headers, h)
			delete(event.Request.Headers, http.CanonicalHeaderKey(h))
		}
		// Query strings may carry the CoinGecko key
		event.Request.QueryString = ""
	}

	return event
}

// scrubPII removes personally identifiable information from strings
func scrubPII(text string) string {
	result := text
	for _, pattern := range piiPatterns {
		result = pattern.ReplaceAllString(result, "[REDACTED]")
	}
	return result
}

// CaptureErrorWithContext captures an error with tags and extras. The
// request id carried by ctx, if any, becomes a tag.
func CaptureErrorWithContext(ctx context.Context, err error, tags map[string]string, extras map[string]any) {
	if err == nil || !enabled {
		return
	}

	hub := sentry.CurrentHub()
	if ctx != nil {
		if h := sentry.GetHubFromContext(ctx); h != nil {
			hub = h
		}
	}
	hub.WithScope(func(scope *sentry.Scope) {
		if ctx != nil {
			if reqID, ok := ctx.Value(logger.RequestIDKey).(string); ok && reqID != "" {
				scope.SetTag("request_id", reqID)
			}
		}
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		// scrubbed by beforeSend
		for k, v := range extras {
			scope.SetExtra(k, v)
		}
		hub.CaptureException(err)
	})
}

// CaptureMessage captures a message at the given level
func CaptureMessage(message string, level sentry.Level) {
	if !enabled {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(level)
		sentry.CaptureMessage(message)
	})
}

// Flush waits for all events to be sent to Sentry
func Flush(timeout time.Duration) bool {
	if !enabled {
		return true
	}
	return sentry.Flush(timeout)
}

// AddBreadcrumb adds a breadcrumb for debugging context
func AddBreadcrumb(category, message string, level sentry.Level) {
	if !enabled {
		return
	}
	sentry.AddBreadcrumb(&sentry.Breadcrumb{
		Category:  category,
		Message:   message,
		Level:     level,
		Timestamp: time.Now(),
	})
}

// IsSentryEnabled returns true once Init succeeded with a DSN
func IsSentryEnabled() bool {
	return enabled
}

// ValidateDSN checks if the provided DSN is valid
func ValidateDSN(dsn string) error {
	if !strings.HasPrefix(dsn, "https://") && !strings.HasPrefix(dsn, "http://") {
		return fmt.Errorf("invalid Sentry DSN format")
	}
	return nil
}
