package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"
)

func limited(rl *RateLimiter) http.Handler {
	return rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func hit(h http.Handler, path, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", path, nil)
	req.RemoteAddr = remote
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRateLimiter_GlobalLimit(t *testing.T) {
	rl := NewRateLimiter(1.0, 2, 10.0, 10)
	defer rl.Stop()
	handler := limited(rl)

	if rr := hit(handler, "/api/coins", "192.168.1.1:1234"); rr.Code != http.StatusOK {
		t.Errorf("First request failed: got %d", rr.Code)
	}
	if rr := hit(handler, "/api/coins", "192.168.1.1:1234"); rr.Code != http.StatusOK {
		t.Errorf("Second request failed: got %d", rr.Code)
	}
	rr := hit(handler, "/api/coins", "192.168.1.2:1234")
	if rr.Code != http.StatusTooManyRequests {
		t.Errorf("Third request should be rate limited: got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "1" {
		t.Errorf("expected Retry-After: 1, got %q", rr.Header().Get("Retry-After"))
	}
}

func TestRateLimiter_PerIPLimit(t *testing.T) {
	rl := NewRateLimiter(100.0, 100, 1.0, 2)
	defer rl.Stop()
	handler := limited(rl)

	for i, port := range []string{"1234", "5678"} {
		if rr := hit(handler, "/api/coins", "192.168.1.1:"+port); rr.Code != http.StatusOK {
			t.Errorf("request %d from IP1 failed: got %d", i+1, rr.Code)
		}
	}
	if rr := hit(handler, "/api/coins", "192.168.1.1:9999"); rr.Code != http.StatusTooManyRequests {
		t.Errorf("Third request from IP1 should be rate limited: got %d", rr.Code)
	}
	if rr := hit(handler, "/api/coins", "192.168.1.2:1234"); rr.Code != http.StatusOK {
		t.Errorf("Request from IP2 failed: got %d", rr.Code)
	}
}

func TestRateLimiter_ExemptPaths(t *testing.T) {
	rl := NewRateLimiter(1.0, 1, 1.0, 1, "/health", "/metrics")
	defer rl.Stop()
	handler := limited(rl)

	for i := 0; i < 5; i++ {
		if rr := hit(handler, "/health", "10.0.0.1:1"); rr.Code != http.StatusOK {
			t.Fatalf("health probe %d limited: %d", i, rr.Code)
		}
	}
	hit(handler, "/api/coins", "10.0.0.1:1")
	if rr := hit(handler, "/api/coins", "10.0.0.1:1"); rr.Code != http.StatusTooManyRequests {
		t.Errorf("API path should still be limited, got %d", rr.Code)
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name   string
		xff    string
		realIP string
		remote string
		want   string
	}{
		{"forwarded for", "203.0.113.1, 198.51.100.1", "", "192.168.1.1:1234", "203.0.113.1"},
		{"forwarded for padded", " 203.0.113.9 ", "", "192.168.1.1:1234", "203.0.113.9"},
		{"real ip", "", "203.0.113.1", "192.168.1.1:1234", "203.0.113.1"},
		{"remote addr", "", "", "192.168.1.1:1234", "192.168.1.1"},
		{"ipv6 remote", "", "", "[2001:db8::1]:443", "2001:db8::1"},
		{"no port", "", "", "192.168.1.7", "192.168.1.7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/coins", nil)
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			req.RemoteAddr = tt.remote
			if got := getClientIP(req); got != tt.want {
				t.Errorf("getClientIP = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRateLimiter_EvictIdle(t *testing.T) {
	rl := NewRateLimiter(10.0, 10, 10.0, 10)
	defer rl.Stop()

	rl.getLimiter("192.168.1.1")
	rl.getLimiter("192.168.1.2")

	rl.evictIdle(time.Now())
	rl.mu.Lock()
	count := len(rl.perIP)
	rl.mu.Unlock()
	if count != 2 {
		t.Fatalf("fresh limiters evicted, %d left", count)
	}

	rl.evictIdle(time.Now().Add(limiterIdleTTL + time.Second))
	rl.mu.Lock()
	count = len(rl.perIP)
	rl.mu.Unlock()
	if count != 0 {
		t.Fatalf("expected idle limiters evicted, %d left", count)
	}
	rl.Stop()
}

func TestRateLimiter_ConcurrentAccess(t *testing.T) {
	rl := NewRateLimiter(100.0, 100, 10.0, 10)
	defer rl.Stop()
	handler := limited(rl)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				hit(handler, "/api/coins", "192.168.1."+strconv.Itoa(n)+":1234")
			}
		}(i)
	}
	wg.Wait()
}

func TestRateLimiter_AfterWait(t *testing.T) {
	rl := NewRateLimiter(10.0, 1, 10.0, 1)
	defer rl.Stop()
	handler := limited(rl)

	for i := 0; i < 2; i++ {
		hit(handler, "/api/coins", "192.168.1.1:1234")
	}
	if rr := hit(handler, "/api/coins", "192.168.1.1:1234"); rr.Code != http.StatusTooManyRequests {
		t.Errorf("Request should be rate limited: got %d", rr.Code)
	}

	time.Sleep(150 * time.Millisecond)

	if rr := hit(handler, "/api/coins", "192.168.1.1:1234"); rr.Code != http.StatusOK {
		t.Errorf("Request after wait should succeed: got %d", rr.Code)
	}
}
