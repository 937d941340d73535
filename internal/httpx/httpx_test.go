package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/onnwee/coin-tracker/internal/config"
)

func setRetryEnv(t *testing.T, maxRetries, baseMS string) {
	t.Helper()
	os.Setenv("HTTP_MAX_RETRIES", maxRetries)
	os.Setenv("HTTP_RETRY_BASE_MS", baseMS)
	os.Setenv("QUEUE_DELAY_MS", "0")
	t.Cleanup(func() {
		os.Unsetenv("HTTP_MAX_RETRIES")
		os.Unsetenv("HTTP_RETRY_BASE_MS")
		os.Unsetenv("QUEUE_DELAY_MS")
		config.ResetForTest()
	})
	// reset cached config so env takes effect
	config.ResetForTest()
	config.Load()
}

func getFactory(url string) RequestFactory {
	return func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	}
}

func TestDo_RespectsRetryAfterSeconds(t *testing.T) {
	setRetryEnv(t, "2", "1")

	var attempts int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	start := time.Now()
	resp, err := Do(context.Background(), &http.Client{}, getFactory(ts.URL), nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if time.Since(start) < 900*time.Millisecond {
		t.Fatalf("expected to wait for Retry-After; waited %v", time.Since(start))
	}
}

func TestDo_RetryKeepsQueueSpacing(t *testing.T) {
	setRetryEnv(t, "3", "1")
	t.Setenv("QUEUE_DELAY_MS", "150")
	config.ResetForTest()

	var mu sync.Mutex
	var starts []time.Time
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		starts = append(starts, time.Now())
		n := len(starts)
		mu.Unlock()
		switch n {
		case 1:
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer ts.Close()

	resp, err := Do(context.Background(), &http.Client{}, getFactory(ts.URL), nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(starts) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(starts))
	}
	for i := 1; i < len(starts); i++ {
		if gap := starts[i].Sub(starts[i-1]); gap < 140*time.Millisecond {
			t.Fatalf("attempt %d started %v after the previous one, want >= queue delay", i+1, gap)
		}
	}
}

func TestDo_SingleAttemptReturns429(t *testing.T) {
	setRetryEnv(t, "1", "1")

	var attempts int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	resp, err := Do(context.Background(), &http.Client{}, getFactory(ts.URL), nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 passed through, got %d", resp.StatusCode)
	}
	if n := atomic.LoadInt32(&attempts); n != 1 {
		t.Fatalf("expected 1 attempt, got %d", n)
	}
}

func TestDo_StopsOnSuccess(t *testing.T) {
	setRetryEnv(t, "3", "1")

	var attempts int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	resp, err := Do(context.Background(), &http.Client{}, getFactory(ts.URL), nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()
	if n := atomic.LoadInt32(&attempts); n != 1 {
		t.Fatalf("expected 1 attempt, got %d", n)
	}
}

func TestDo_4xxNoRetry(t *testing.T) {
	setRetryEnv(t, "3", "1")

	var attempts int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	resp, err := Do(context.Background(), &http.Client{}, getFactory(ts.URL), nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if n := atomic.LoadInt32(&attempts); n != 1 {
		t.Fatalf("expected no retry on 404, got %d attempts", n)
	}
}

func TestDo_ObserverAndBackoffOn5xx(t *testing.T) {
	setRetryEnv(t, "3", "5")

	var attempts int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			// return 500 twice, then 200
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	var preCalls []int
	pre := func(ctx context.Context, attempt int) error {
		preCalls = append(preCalls, attempt)
		return nil
	}

	var observed []AttemptInfo
	obs := func(info AttemptInfo) { observed = append(observed, info) }

	start := time.Now()
	resp, err := Do(context.Background(), &http.Client{}, getFactory(ts.URL), pre, obs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if len(preCalls) != 3 {
		t.Fatalf("expected preAttempt called 3 times, got %d", len(preCalls))
	}
	// 5ms + 10ms base backoff, plus jitter
	if elapsed := time.Since(start); elapsed < 12*time.Millisecond {
		t.Fatalf("expected backoff to take effect, elapsed=%v", elapsed)
	}
	hadWait := false
	for _, oi := range observed {
		if oi.Wait > 0 {
			hadWait = true
			break
		}
	}
	if !hadWait {
		t.Fatalf("expected observer to record at least one wait > 0")
	}
}

func TestDo_PreAttemptError(t *testing.T) {
	setRetryEnv(t, "3", "1")
	sentinel := errors.New("limiter closed")

	_, err := Do(context.Background(), &http.Client{}, getFactory("http://127.0.0.1:1"), func(ctx context.Context, attempt int) error {
		return sentinel
	}, nil)
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected pre-attempt error, got %v", err)
	}
}

func TestDo_ContextCanceledDuringBackoff(t *testing.T) {
	setRetryEnv(t, "3", "2000")

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := Do(ctx, &http.Client{}, getFactory(ts.URL), nil, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("backoff ignored context cancellation")
	}
}

func TestRetryAfter(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		header string
		want   time.Duration
		ok     bool
	}{
		{"empty", "", 0, false},
		{"seconds", "3", 3 * time.Second, true},
		{"date", now.Add(2 * time.Second).Format(http.TimeFormat), 2 * time.Second, true},
		{"past date", now.Add(-time.Minute).Format(http.TimeFormat), 0, false},
		{"garbage", "soon", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.header != "" {
				h.Set("Retry-After", tt.header)
			}
			got, ok := RetryAfter(h, now)
			if ok != tt.ok || got != tt.want {
				t.Errorf("RetryAfter(%q) = %v, %v; want %v, %v", tt.header, got, ok, tt.want, tt.ok)
			}
		})
	}
}
