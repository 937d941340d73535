package coingecko

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/onnwee/coin-tracker/internal/config"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	// single attempt so 429s surface immediately
	t.Setenv("HTTP_MAX_RETRIES", "1")
	config.ResetForTest()
	t.Cleanup(config.ResetForTest)
	return NewClient(&config.Config{
		CoinGeckoBaseURL: ts.URL + "/api/v3",
		CoinGeckoAPIKey:  "demo-key",
		UserAgent:        "coin-tracker-test",
		UpstreamTimeout:  2 * time.Second,
	}, nil)
}

func TestMarkets_BuildsQueryAndDecodes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/coins/markets" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		want := map[string]string{"vs_currency": "usd", "order": "market_cap_desc", "per_page": "20", "page": "1", "sparkline": "false"}
		for k, v := range want {
			if q.Get(k) != v {
				t.Errorf("query %s=%q, want %q", k, q.Get(k), v)
			}
		}
		if r.Header.Get(APIKeyHeader) != "demo-key" {
			t.Errorf("missing api key header")
		}
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("missing Accept header")
		}
		w.Write([]byte(`[{"id":"bitcoin","symbol":"btc","name":"Bitcoin","current_price":64000.5,"price_change_percentage_24h":1.2},
			{"id":"ethereum","symbol":"eth","name":"Ethereum","current_price":3100}]`))
	})

	coins, err := c.Markets(context.Background(), 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(coins) != 2 || coins[0].ID != "bitcoin" || coins[0].CurrentPrice != 64000.5 {
		t.Fatalf("unexpected coins %+v", coins)
	}
}

func TestCoin_DecodesMarketData(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/coins/bitcoin" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		for _, k := range []string{"localization", "tickers", "community_data", "developer_data", "sparkline"} {
			if r.URL.Query().Get(k) != "false" {
				t.Errorf("expected %s=false", k)
			}
		}
		w.Write([]byte(`{"id":"bitcoin","symbol":"btc","name":"Bitcoin","description":{"en":"Peer to peer"},
			"image":{"large":"https://img/btc.png"},"market_data":{"current_price":{"usd":64000},"price_change_percentage_24h":-2.5}}`))
	})

	d, err := c.Coin(context.Background(), "bitcoin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	price, ok := d.USDPrice()
	if !ok || price != 64000 {
		t.Fatalf("expected usd price 64000, got %v (%v)", price, ok)
	}
	if d.Image == nil || d.Image.Large != "https://img/btc.png" {
		t.Fatalf("unexpected image %+v", d.Image)
	}
}

func TestMarketChart_Query(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/coins/ethereum/market_chart" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("days") != "30" || q.Get("interval") != "daily" || q.Get("vs_currency") != "usd" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"prices":[[1700000000000,1.5],[1700086400000,1.6]],"market_caps":[],"total_volumes":[[1700000000000,9]]}`))
	})

	chart, err := c.MarketChart(context.Background(), "ethereum", 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	prices, _ := chart.Series("prices")
	if len(prices) != 2 || prices[1].Time() != 1700086400000 || prices[1].Value() != 1.6 {
		t.Fatalf("unexpected prices %+v", prices)
	}
	if caps, ok := chart.Series("market_caps"); !ok || len(caps) != 0 {
		t.Fatalf("expected empty market caps")
	}
	if _, ok := chart.Series("bogus"); ok {
		t.Fatal("unknown metric should not resolve")
	}
}

func TestClient_RateLimited(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"status":{"error_code":429,"error_message":"You've exceeded the Rate Limit"}}`))
	})

	_, err := c.MarketChart(context.Background(), "bitcoin", 30)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Type != ErrorRateLimited || apiErr.StatusCode != 429 {
		t.Fatalf("expected rate limited, got %+v", apiErr)
	}
	if apiErr.RetryAfter != 30*time.Second {
		t.Errorf("expected Retry-After 30s, got %v", apiErr.RetryAfter)
	}
}

func TestClient_InvalidJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>maintenance</html>`))
	})

	_, err := c.Markets(context.Background(), 10)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Type != ErrorInvalidPayload {
		t.Fatalf("expected invalid payload error, got %v", err)
	}
}

func TestClient_TransportError(t *testing.T) {
	t.Setenv("HTTP_MAX_RETRIES", "1")
	config.ResetForTest()
	t.Cleanup(config.ResetForTest)
	c := NewClient(&config.Config{CoinGeckoBaseURL: "http://127.0.0.1:1", UpstreamTimeout: time.Second}, nil)

	_, err := c.Coin(context.Background(), "bitcoin")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Type != ErrorTransport {
		t.Fatalf("expected transport error, got %v", err)
	}
	if apiErr.Message != "unable to connect to CoinGecko API" {
		t.Errorf("unexpected message %q", apiErr.Message)
	}
}

func TestClient_CancelledContextPassesThrough(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Markets(ctx, 10)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
