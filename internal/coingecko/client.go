// Package coingecko is the HTTP transport for the public CoinGecko REST API.
package coingecko

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/onnwee/coin-tracker/internal/config"
	"github.com/onnwee/coin-tracker/internal/httpx"
	"github.com/onnwee/coin-tracker/internal/metrics"
	"github.com/onnwee/coin-tracker/internal/tracing"
)

// Endpoint labels used for metrics and spans.
const (
	EndpointMarkets     = "markets"
	EndpointCoin        = "coin"
	EndpointMarketChart = "market_chart"
)

// APIKeyHeader carries the demo-plan key when one is configured.
const APIKeyHeader = "x-cg-demo-api-key"

// Client performs raw CoinGecko requests. It does no caching or pacing.
type Client struct {
	baseURL   string
	apiKey    string
	userAgent string
	http      *http.Client
}

// NewClient builds a client from config. A nil hc gets a client with the
// configured upstream timeout.
func NewClient(cfg *config.Config, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: cfg.UpstreamTimeout}
	}
	return &Client{
		baseURL:   cfg.CoinGeckoBaseURL,
		apiKey:    cfg.CoinGeckoAPIKey,
		userAgent: cfg.UserAgent,
		http:      hc,
	}
}

// Markets fetches the first page of coins ordered by market cap.
func (c *Client) Markets(ctx context.Context, perPage int) ([]Coin, error) {
	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("order", "market_cap_desc")
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("page", "1")
	q.Set("sparkline", "false")

	var out []Coin
	if err := c.get(ctx, EndpointMarkets, "", "/coins/markets", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Coin fetches the detail document for one coin.
func (c *Client) Coin(ctx context.Context, id string) (CoinDetail, error) {
	q := url.Values{}
	q.Set("localization", "false")
	q.Set("tickers", "false")
	q.Set("community_data", "false")
	q.Set("developer_data", "false")
	q.Set("sparkline", "false")

	var out CoinDetail
	err := c.get(ctx, EndpointCoin, id, "/coins/"+url.PathEscape(id), q, &out)
	return out, err
}

// MarketChart fetches daily price, market cap and volume series.
func (c *Client) MarketChart(ctx context.Context, id string, days int) (MarketChart, error) {
	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("days", strconv.Itoa(days))
	q.Set("interval", "daily")

	var out MarketChart
	err := c.get(ctx, EndpointMarketChart, id, "/coins/"+url.PathEscape(id)+"/market_chart", q, &out)
	return out, err
}

func (c *Client) get(ctx context.Context, endpoint, coinID, path string, q url.Values, out any) (err error) {
	ctx, span := tracing.StartUpstreamSpan(ctx, endpoint, coinID)
	start := time.Now()
	defer func() {
		metrics.UpstreamRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		metrics.UpstreamRequests.WithLabelValues(endpoint, statusLabel(err)).Inc()
		tracing.EndSpan(span, err)
	}()

	u := c.baseURL + path + "?" + q.Encode()
	build := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}
		if c.apiKey != "" {
			req.Header.Set(APIKeyHeader, c.apiKey)
		}
		return req, nil
	}

	resp, err := httpx.Do(ctx, c.http, build, nil, nil)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return TransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ClassifyError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return InvalidPayload(fmt.Sprintf("decode %s", endpoint), err)
	}
	return nil
}

func statusLabel(err error) string {
	if err == nil {
		return "success"
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Type {
		case ErrorRateLimited:
			return "rate_limited"
		case ErrorInvalidPayload:
			return "invalid"
		}
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return "error"
}
