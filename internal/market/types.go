// Package market is the rate-aware data access layer between the HTTP API
// and CoinGecko: cache, single-flight, circuit breaker, serial queue and the
// per-call-site fallback policy.
package market

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/onnwee/coin-tracker/internal/coingecko"
)

type (
	Coin       = coingecko.Coin
	CoinDetail = coingecko.CoinDetail
	Point      = coingecko.Point
)

// Series is a daily [timestamp_ms, value] sequence, oldest first.
type Series []Point

// Metric selects which market_chart series a caller wants.
type Metric string

const (
	MetricPrices       Metric = "prices"
	MetricMarketCaps   Metric = "market_caps"
	MetricTotalVolumes Metric = "total_volumes"
)

// ParseMetric validates a metric name. Empty means prices.
func ParseMetric(s string) (Metric, error) {
	switch Metric(strings.TrimSpace(s)) {
	case "", MetricPrices:
		return MetricPrices, nil
	case MetricMarketCaps:
		return MetricMarketCaps, nil
	case MetricTotalVolumes:
		return MetricTotalVolumes, nil
	}
	return "", fmt.Errorf("unknown metric %q", s)
}

// AllowedDays are the chart ranges the UI offers.
var AllowedDays = []int{1, 7, 30, 60, 90, 120, 180, 365}

// DefaultDays is the initial chart range.
const DefaultDays = 30

// ParseDays validates a day range. Empty means DefaultDays.
func ParseDays(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultDays, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid days %q", s)
	}
	if !ValidDays(n) {
		return 0, fmt.Errorf("days must be one of %v", AllowedDays)
	}
	return n, nil
}

// ValidDays reports whether n is one of AllowedDays.
func ValidDays(n int) bool {
	for _, d := range AllowedDays {
		if d == n {
			return true
		}
	}
	return false
}

// Source is what the pages consume. Service implements it with typed errors,
// Fallback implements it with synthetic substitution.
type Source interface {
	Coins(ctx context.Context) ([]Coin, error)
	CoinDetail(ctx context.Context, id string) (CoinDetail, error)
	PriceHistory(ctx context.Context, id string, days int, metric Metric) (Series, error)
}

// Upstream is the raw transport Service drives.
type Upstream interface {
	Markets(ctx context.Context, perPage int) ([]coingecko.Coin, error)
	Coin(ctx context.Context, id string) (coingecko.CoinDetail, error)
	MarketChart(ctx context.Context, id string, days int) (coingecko.MarketChart, error)
}

// Cache kinds, also used as metric labels.
const (
	KindCoins   = "coins"
	KindCoin    = "coin"
	KindHistory = "history"
)

// Key builds a deterministic cache key: kind, id and params joined by ":".
// An empty id is skipped.
func Key(kind, id string, params ...any) string {
	parts := make([]string, 0, 2+len(params))
	parts = append(parts, kind)
	if id != "" {
		parts = append(parts, id)
	}
	for _, p := range params {
		parts = append(parts, fmt.Sprint(p))
	}
	return strings.Join(parts, ":")
}

func coinsKey(perPage int) string { return Key(KindCoins, "markets", perPage) }

func coinKey(id string) string { return Key(KindCoin, id) }

func historyKey(id string, days int, metric Metric) string {
	return Key(KindHistory, id, days, metric)
}
