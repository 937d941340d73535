package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func etagHandler(status int, simulated bool) http.Handler {
	return ETag(time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if simulated {
			w.Header().Set(SimulatedHeader, "true")
		}
		w.WriteHeader(status)
		w.Write([]byte(`{"id":"bitcoin","current_price":42000}`))
	}))
}

func TestETag(t *testing.T) {
	handler := etagHandler(http.StatusOK, false)

	rr1 := httptest.NewRecorder()
	handler.ServeHTTP(rr1, httptest.NewRequest(http.MethodGet, "/api/coins/bitcoin", nil))
	if rr1.Code != http.StatusOK {
		t.Fatalf("first request failed with status %d", rr1.Code)
	}
	etag := rr1.Header().Get("ETag")
	if etag == "" {
		t.Fatal("first request did not return ETag")
	}
	if cc := rr1.Header().Get("Cache-Control"); cc != "public, max-age=60, stale-while-revalidate=300" {
		t.Errorf("unexpected Cache-Control %q", cc)
	}
	if rr1.Body.Len() == 0 {
		t.Error("expected response body")
	}

	tests := []struct {
		name        string
		ifNoneMatch string
		want        int
	}{
		{"exact", etag, http.StatusNotModified},
		{"weak", "W/" + etag, http.StatusNotModified},
		{"list", `"other", ` + etag, http.StatusNotModified},
		{"star", "*", http.StatusNotModified},
		{"different", `"different-etag"`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/coins/bitcoin", nil)
			req.Header.Set("If-None-Match", tt.ifNoneMatch)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
			if tt.want == http.StatusNotModified && rr.Body.Len() > 0 {
				t.Error("expected empty body for 304 response")
			}
		})
	}
}

func TestETagSkipsErrorsAndSimulatedData(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		simulated bool
	}{
		{"upstream rate limited", http.StatusTooManyRequests, false},
		{"upstream unavailable", http.StatusBadGateway, false},
		{"simulated payload", http.StatusOK, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			etagHandler(tt.status, tt.simulated).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/coins", nil))
			if rr.Code != tt.status {
				t.Errorf("status = %d, want %d", rr.Code, tt.status)
			}
			if rr.Header().Get("ETag") != "" {
				t.Error("no ETag expected")
			}
			if rr.Header().Get("Cache-Control") != "no-store" {
				t.Errorf("Cache-Control = %q, want no-store", rr.Header().Get("Cache-Control"))
			}
			if rr.Body.Len() == 0 {
				t.Error("body should pass through")
			}
		})
	}
}

func TestETagIgnoresNonGET(t *testing.T) {
	rr := httptest.NewRecorder()
	etagHandler(http.StatusOK, false).ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/api/watchlist/bitcoin", nil))
	if rr.Header().Get("ETag") != "" {
		t.Error("PUT responses should not get an ETag")
	}
}
