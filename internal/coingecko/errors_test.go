package coingecko

import (
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantType  ErrorType
		retryable bool
		contains  string
	}{
		{"rate limited", http.StatusTooManyRequests, "", ErrorRateLimited, true, "rate limit exceeded"},
		{"not found", http.StatusNotFound, `{"error":"coin not found"}`, ErrorNotFound, false, "coin not found"},
		{"unauthorized", http.StatusUnauthorized, "", ErrorUnauthorized, false, "API key"},
		{"forbidden", http.StatusForbidden, "", ErrorUnauthorized, false, "403"},
		{"bad request", http.StatusBadRequest, `{"status":{"error_code":400,"error_message":"invalid days"}}`, ErrorBadRequest, false, "invalid days"},
		{"server error", http.StatusServiceUnavailable, "", ErrorServerError, true, "temporarily unavailable"},
		{"odd 5xx", 520, "", ErrorServerError, true, "520"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ClassifyError(&http.Response{
				StatusCode: tt.status,
				Header:     http.Header{},
				Body:       io.NopCloser(strings.NewReader(tt.body)),
			})
			if err.Type != tt.wantType {
				t.Errorf("type = %v, want %v", err.Type, tt.wantType)
			}
			if err.Retryable != tt.retryable {
				t.Errorf("retryable = %v, want %v", err.Retryable, tt.retryable)
			}
			if !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("message %q does not contain %q", err.Error(), tt.contains)
			}
		})
	}
}

func TestClassifyError_NilResponse(t *testing.T) {
	err := ClassifyError(nil)
	if err.Type != ErrorUnknown {
		t.Errorf("expected ErrorUnknown, got %v", err.Type)
	}
}

func TestIsPermanent(t *testing.T) {
	if !IsPermanent(&APIError{Type: ErrorNotFound}) {
		t.Error("404 should be permanent")
	}
	if IsPermanent(&APIError{Type: ErrorRateLimited}) {
		t.Error("429 should not be permanent")
	}
	if IsPermanent(nil) {
		t.Error("nil is neither permanent nor retryable")
	}
}

func TestErrorTypeString(t *testing.T) {
	if ErrorRateLimited.String() != "rate_limited" || ErrorType(99).String() != "unknown" {
		t.Error("unexpected ErrorType strings")
	}
}
