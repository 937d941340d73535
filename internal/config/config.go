package config

import (
	"os"
	"strings"
	"time"

	"github.com/onnwee/coin-tracker/internal/utils"
)

// Config holds application configuration derived from environment variables.
type Config struct {
	Port string
	// Upstream (CoinGecko) access
	CoinGeckoBaseURL string
	CoinGeckoAPIKey  string
	CoinListPerPage  int
	UserAgent        string
	HTTPMaxRetries   int
	HTTPRetryBase    time.Duration
	UpstreamTimeout  time.Duration // per-call timeout applied to every queued request
	LogHTTPRetries   bool
	// Serial request queue: minimum spacing between the start of upstream calls
	QueueDelay time.Duration
	// Debounce window for chart parameter changes
	DebounceWindow time.Duration
	// Cache settings
	CacheBackend    string // memory or ristretto
	CacheMaxEntries int64
	TTLCoinList     time.Duration
	TTLCoinDetail   time.Duration
	TTLPriceHistory time.Duration
	// Circuit breaker around the upstream
	BreakerFailures int
	BreakerTimeout  time.Duration
	// Watchlist persistence
	WatchlistBackend string // memory, sqlite or postgres
	WatchlistDSN     string
	// Cache warmer schedule (cron special expression), empty disables
	WarmSchedule string
	// Admin API token for gating admin endpoints (Bearer token)
	AdminAPIToken string
	// Security settings
	RateLimitGlobal      float64  // requests per second globally
	RateLimitGlobalBurst int      // burst size for global rate limit
	RateLimitPerIP       float64  // requests per second per IP
	RateLimitPerIPBurst  int      // burst size for per-IP rate limit
	CORSAllowedOrigins   []string // allowed CORS origins
	EnableRateLimit      bool     // enable rate limiting middleware
	// Observability settings
	LogLevel          string  // log level: debug, info, warn, error
	OTELEnabled       bool    // enable OpenTelemetry tracing
	OTELEndpoint      string  // OpenTelemetry collector endpoint
	OTELSampleRate    float64 // trace sampling rate (0.0 to 1.0)
	SentryDSN         string  // Sentry DSN for error reporting
	SentryEnvironment string  // Sentry environment (dev, staging, production)
	SentryRelease     string  // Sentry release version
	SentrySampleRate  float64 // Sentry error sampling rate (0.0 to 1.0)
}

var cached *Config

// Load reads env vars once and caches them.
func Load() *Config {
	if cached != nil {
		return cached
	}
	cached = &Config{
		Port:             utils.GetEnv("PORT", "8000"),
		CoinGeckoBaseURL: strings.TrimRight(utils.GetEnv("COINGECKO_BASE_URL", "https://api.coingecko.com/api/v3"), "/"),
		CoinGeckoAPIKey:  utils.GetEnv("COINGECKO_API_KEY", ""),
		CoinListPerPage:  utils.GetEnvAsInt("COINGECKO_PER_PAGE", 100),
		UserAgent:        utils.GetEnv("COINGECKO_USER_AGENT", "coin-tracker/0.1"),
		HTTPMaxRetries:   utils.GetEnvAsInt("HTTP_MAX_RETRIES", 1),
		HTTPRetryBase:    utils.GetEnvAsMillis("HTTP_RETRY_BASE_MS", 300),
		UpstreamTimeout:  utils.GetEnvAsMillis("UPSTREAM_TIMEOUT_MS", 10000),
		LogHTTPRetries:   utils.GetEnvAsBool("LOG_HTTP_RETRIES", false),
		// ~1.2s between upstream calls keeps the free tier from answering 429
		QueueDelay:      utils.GetEnvAsMillis("QUEUE_DELAY_MS", 1200),
		DebounceWindow:  utils.GetEnvAsMillis("DEBOUNCE_MS", 800),
		CacheBackend:    strings.ToLower(utils.GetEnv("CACHE_BACKEND", "memory")),
		CacheMaxEntries: int64(utils.GetEnvAsInt("CACHE_MAX_ENTRIES", 10000)),
		TTLCoinList:     utils.GetEnvAsMillis("TTL_COIN_LIST_MS", 300000),
		TTLCoinDetail:   utils.GetEnvAsMillis("TTL_COIN_DETAIL_MS", 180000),
		TTLPriceHistory: utils.GetEnvAsMillis("TTL_PRICE_HISTORY_MS", 120000),
		BreakerFailures: utils.GetEnvAsInt("BREAKER_FAILURES", 5),
		BreakerTimeout:  utils.GetEnvAsMillis("BREAKER_TIMEOUT_MS", 30000),
		WatchlistBackend: strings.ToLower(utils.GetEnv("WATCHLIST_BACKEND", "memory")),
		WatchlistDSN:     utils.GetEnv("WATCHLIST_DSN", ""),
		AdminAPIToken:    utils.GetEnv("ADMIN_API_TOKEN", ""),
		// Security settings with sensible defaults
		RateLimitGlobal:      utils.GetEnvAsFloat("RATE_LIMIT_GLOBAL", 100.0),
		RateLimitGlobalBurst: utils.GetEnvAsInt("RATE_LIMIT_GLOBAL_BURST", 200),
		RateLimitPerIP:       utils.GetEnvAsFloat("RATE_LIMIT_PER_IP", 10.0),
		RateLimitPerIPBurst:  utils.GetEnvAsInt("RATE_LIMIT_PER_IP_BURST", 20),
		EnableRateLimit:      utils.GetEnvAsBool("ENABLE_RATE_LIMIT", true),
		// Observability settings
		LogLevel:          strings.ToLower(utils.GetEnv("LOG_LEVEL", "info")),
		OTELEnabled:       utils.GetEnvAsBool("OTEL_ENABLED", false),
		OTELEndpoint:      utils.GetEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELSampleRate:    utils.GetEnvAsFloat("OTEL_TRACE_SAMPLE_RATE", 0.1),
		SentryDSN:         utils.GetEnv("SENTRY_DSN", ""),
		SentryEnvironment: utils.GetEnv("SENTRY_ENVIRONMENT", utils.GetEnv("ENV", "development")),
		SentryRelease:     utils.GetEnv("SENTRY_RELEASE", ""),
		SentrySampleRate:  utils.GetEnvAsFloat("SENTRY_SAMPLE_RATE", 1.0),
	}
	if ws, ok := os.LookupEnv("WARM_SCHEDULE"); ok {
		cached.WarmSchedule = strings.TrimSpace(ws)
	} else {
		cached.WarmSchedule = "@every 4m"
	}

	// local frontend dev servers unless configured
	cached.CORSAllowedOrigins = utils.GetEnvAsSlice("CORS_ALLOWED_ORIGINS",
		[]string{"http://localhost:5173", "http://localhost:3000"}, ",")

	return cached
}

// ResetForTest clears cached config; for use in tests only.
func ResetForTest() { cached = nil }
