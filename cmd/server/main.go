package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/onnwee/coin-tracker/internal/api"
	"github.com/onnwee/coin-tracker/internal/api/handlers"
	"github.com/onnwee/coin-tracker/internal/cache"
	"github.com/onnwee/coin-tracker/internal/circuitbreaker"
	"github.com/onnwee/coin-tracker/internal/coingecko"
	"github.com/onnwee/coin-tracker/internal/config"
	"github.com/onnwee/coin-tracker/internal/errorreporting"
	"github.com/onnwee/coin-tracker/internal/logger"
	"github.com/onnwee/coin-tracker/internal/market"
	"github.com/onnwee/coin-tracker/internal/metrics"
	"github.com/onnwee/coin-tracker/internal/middleware"
	"github.com/onnwee/coin-tracker/internal/queue"
	"github.com/onnwee/coin-tracker/internal/scheduler"
	"github.com/onnwee/coin-tracker/internal/secrets"
	"github.com/onnwee/coin-tracker/internal/tracing"
	"github.com/onnwee/coin-tracker/internal/watchlist"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (falling back to system env)")
	}

	// Load configuration
	cfg := config.Load()

	// Initialize structured logging
	logger.Init(cfg.LogLevel)
	logger.Info("Initializing coin-tracker API", append([]any{"version", cfg.SentryRelease}, secrets.Summary(cfg)...)...)
	if err := secrets.ValidateConfig(cfg); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	// Initialize error reporting
	if err := errorreporting.Init(cfg); err != nil {
		logger.Warn("Failed to initialize error reporting", "error", err)
	} else if errorreporting.IsSentryEnabled() {
		logger.Info("Error reporting initialized", "environment", cfg.SentryEnvironment)
		defer func() {
			logger.Info("Flushing error reports...")
			errorreporting.Flush(2 * time.Second)
		}()
	}

	// Initialize tracing
	shutdownTracing, err := tracing.Init(cfg, "coin-tracker-api")
	if err != nil {
		logger.Warn("Failed to initialize tracing", "error", err)
	} else if cfg.OTELEnabled {
		logger.Info("Tracing initialized", "endpoint", cfg.OTELEndpoint, "sample_rate", cfg.OTELSampleRate)
		defer func() {
			logger.Info("Shutting down tracer...")
			if err := shutdownTracing(context.Background()); err != nil {
				logger.Error("Failed to shutdown tracer", "error", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Data access layer: cache, queue, breaker, upstream
	c, closeCache, err := newCache(cfg)
	if err != nil {
		logger.Error("Failed to create cache", "error", err)
		os.Exit(1)
	}
	defer closeCache()

	q := queue.New(cfg.QueueDelay, queue.WithTaskTimeout(cfg.UpstreamTimeout))
	defer q.Close()

	breaker := circuitbreaker.New(circuitbreaker.Config{
		Name:             "coingecko",
		FailureThreshold: cfg.BreakerFailures,
		Timeout:          cfg.BreakerTimeout,
		IsFailure:        market.BreakerFailure,
	})

	svc := market.NewService(coingecko.NewClient(cfg, nil), c, q, breaker, market.Options{
		PerPage:         cfg.CoinListPerPage,
		TTLCoinList:     cfg.TTLCoinList,
		TTLCoinDetail:   cfg.TTLCoinDetail,
		TTLPriceHistory: cfg.TTLPriceHistory,
	})

	// Watchlist persistence
	store, pingers, closeStore, err := newWatchlist(ctx, cfg)
	if err != nil {
		logger.Error("Failed to open watchlist store", "backend", cfg.WatchlistBackend, "dsn", secrets.MaskDSN(cfg.WatchlistDSN), "error", err)
		os.Exit(1)
	}
	defer closeStore()

	// Point-in-time gauges
	collector := metrics.NewCollector(15 * time.Second)
	collector.Track("queue_depth", metrics.QueueDepth, func(context.Context) (float64, error) {
		return float64(q.Len()), nil
	})
	collector.Track("cache_items", metrics.CacheItems, func(context.Context) (float64, error) {
		return float64(c.Stats().Items), nil
	})
	collector.Track("watchlist", metrics.WatchlistSize, func(ctx context.Context) (float64, error) {
		ids, err := store.List(ctx)
		return float64(len(ids)), err
	})
	go collector.Start(ctx)
	defer collector.Stop()

	// Keep the dashboard list warm so visitors rarely wait on the queue
	if cfg.WarmSchedule != "" {
		warmer, err := scheduler.NewWarmer("coins", cfg.WarmSchedule, func(ctx context.Context) error {
			_, err := svc.RefreshCoins(ctx)
			return err
		})
		if err != nil {
			logger.Error("Invalid WARM_SCHEDULE", "schedule", cfg.WarmSchedule, "error", err)
			os.Exit(1)
		}
		go warmer.Start(ctx)
		defer warmer.Stop()
		logger.Info("Cache warmer started", "schedule", cfg.WarmSchedule)
	}

	deps := api.Deps{Market: svc, Watchlist: store, Pingers: pingers}
	if cfg.EnableRateLimit {
		deps.RateLimiter = middleware.NewRateLimiter(
			cfg.RateLimitGlobal, cfg.RateLimitGlobalBurst,
			cfg.RateLimitPerIP, cfg.RateLimitPerIPBurst,
			"/health", "/ready", "/metrics",
		)
		defer deps.RateLimiter.Stop()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server running", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-errCh:
		if err != nil {
			logger.Error("Server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", "error", err)
	}
	logger.Info("Server stopped")
}

// newCache picks the cache backend. The returned func releases it.
func newCache(cfg *config.Config) (cache.Cache, func(), error) {
	switch cfg.CacheBackend {
	case "ristretto", "lru":
		c, err := cache.NewLRU(cfg.CacheMaxEntries, cfg.TTLCoinDetail)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Using ristretto cache", "max_entries", cfg.CacheMaxEntries)
		return c, c.Close, nil
	default:
		return cache.NewTTL(cfg.TTLCoinDetail), func() {}, nil
	}
}

// newWatchlist opens the configured store and its readiness checks.
func newWatchlist(ctx context.Context, cfg *config.Config) (watchlist.Store, map[string]handlers.Pinger, func(), error) {
	if cfg.WatchlistBackend == "memory" {
		return watchlist.NewMemoryStore(), nil, func() {}, nil
	}
	s, err := watchlist.Open(ctx, cfg.WatchlistBackend, cfg.WatchlistDSN)
	if err != nil {
		return nil, nil, nil, err
	}
	logger.Info("Watchlist store opened", "backend", cfg.WatchlistBackend, "dsn", secrets.MaskDSN(cfg.WatchlistDSN))
	closeFn := func() {
		if err := s.Close(); err != nil {
			logger.Warn("Failed to close watchlist store", "error", err)
		}
	}
	return s, map[string]handlers.Pinger{"watchlist": s}, closeFn, nil
}
