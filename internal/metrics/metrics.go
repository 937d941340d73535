package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Upstream (CoinGecko) metrics
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_requests_total",
			Help: "Total number of HTTP requests made to the CoinGecko API",
		},
		[]string{"endpoint", "status"}, // status: success, rate_limited, error, invalid
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_request_duration_seconds",
			Help:    "Duration of CoinGecko API calls in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"endpoint"},
	)

	UpstreamHTTPRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "upstream_http_retries_total",
			Help: "Total number of HTTP request retries",
		},
	)

	UpstreamRetryAfterWaits = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "upstream_retry_after_wait_seconds",
			Help:    "Duration of Retry-After waits in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	// Serial request queue metrics
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "request_queue_depth",
			Help: "Number of upstream calls waiting in the serial request queue",
		},
	)

	QueueWaitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "request_queue_wait_seconds",
			Help:    "Time a task spent queued before its operation started",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	QueueTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "request_queue_tasks_total",
			Help: "Total number of tasks settled by the serial request queue",
		},
		[]string{"status"}, // status: success, failed, skipped
	)

	// Data cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_cache_hits_total",
			Help: "Total number of market data cache hits",
		},
		[]string{"kind"}, // kind: coins, coin, history
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_cache_misses_total",
			Help: "Total number of market data cache misses",
		},
		[]string{"kind"},
	)

	CacheItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "market_cache_items",
			Help: "Current number of items in the market data cache",
		},
	)

	SingleflightShared = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_singleflight_shared_total",
			Help: "Upstream results shared between concurrent identical cache misses",
		},
		[]string{"kind"},
	)

	// Fallback / degraded data
	FallbacksServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_fallbacks_total",
			Help: "Total number of synthetic fallback payloads served instead of upstream data",
		},
		[]string{"kind", "reason"}, // reason: rate_limited, unavailable
	)

	// Debounced controller metrics
	DebounceFetches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "debounce_fetches_total",
			Help: "Total number of fetches issued by debounced controllers",
		},
	)

	DebounceStaleDiscards = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "debounce_stale_discards_total",
			Help: "Total number of superseded results dropped by debounced controllers",
		},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"component"},
	)

	CircuitBreakerTrips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_trips_total",
			Help: "Total number of circuit breaker trips",
		},
		[]string{"component"},
	)

	// API request metrics
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"endpoint", "method", "status"},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"endpoint", "method", "status"},
	)

	// Cache warmer
	WarmRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_warm_runs_total",
			Help: "Total number of scheduled cache warm runs",
		},
		[]string{"status"},
	)

	// Metrics collection error tracking
	MetricsCollectionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metrics_collection_errors_total",
			Help: "Total number of errors during metrics collection",
		},
		[]string{"collector"},
	)

	// WebSocket chart sessions
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Number of active WebSocket chart sessions",
		},
	)

	WebSocketMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent to clients",
		},
	)
)

// WatchlistSize is sampled by the Collector from the configured store.
var WatchlistSize = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "watchlist_coins",
		Help: "Number of coins currently on the watchlist",
	},
)
