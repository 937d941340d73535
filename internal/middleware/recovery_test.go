package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/onnwee/coin-tracker/internal/apierr"
)

func TestRecoverWithSentry_NoPanic(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	req := httptest.NewRequest("GET", "/api/coins", nil)
	w := httptest.NewRecorder()
	RecoverWithSentry(handler).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}

func TestRecoverWithSentry_WithPanic(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	})

	req := httptest.NewRequest("GET", "/api/coins", nil)
	w := httptest.NewRecorder()
	RequestID(RecoverWithSentry(handler)).ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("Expected status 500, got %d", w.Code)
	}
	var resp apierr.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("expected JSON error body: %v", err)
	}
	if resp.Error.Code != apierr.ErrSystemInternal {
		t.Errorf("code = %s", resp.Error.Code)
	}
	if resp.Error.RequestID == "" {
		t.Error("expected request_id in error body")
	}
}

func TestRecoverWithSentry_AbortHandlerPropagates(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	})

	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Fatalf("expected ErrAbortHandler to propagate, got %v", rec)
		}
	}()
	RecoverWithSentry(handler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/ws/chart", nil))
	t.Fatal("panic was swallowed")
}
