package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/coin-tracker/internal/api/handlers"
	"github.com/onnwee/coin-tracker/internal/apierr"
	"github.com/onnwee/coin-tracker/internal/config"
	"github.com/onnwee/coin-tracker/internal/market"
	"github.com/onnwee/coin-tracker/internal/middleware"
	"github.com/onnwee/coin-tracker/internal/watchlist"
)

// browser cache lifetime for market data responses
const dataMaxAge = 30 * time.Second

// MarketService is what the router needs from market.Service.
type MarketService interface {
	market.Source
	handlers.CacheAdmin
}

// Deps are the collaborators the routes are built from.
type Deps struct {
	Market    MarketService
	Watchlist watchlist.Store
	// RateLimiter is optional; nil disables rate limiting.
	RateLimiter *middleware.RateLimiter
	// Readiness checks keyed by name.
	Pingers map[string]handlers.Pinger
}

// adminOnly gates a handler behind the Bearer ADMIN_API_TOKEN.
func adminOnly(cfg *config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.AdminAPIToken == "" {
				http.Error(w, "admin token not configured", http.StatusServiceUnavailable)
				return
			}
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(cfg.AdminAPIToken)) != 1 {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// NewRouter builds the API. The returned handler carries the full
// middleware chain: request id, recovery, security headers, CORS, rate
// limiting and compression, with per-route instrumentation inside.
func NewRouter(deps Deps) http.Handler {
	cfg := config.Load()
	r := mux.NewRouter()
	r.Use(middleware.Instrument)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		apierr.WriteErrorWithContext(w, req, apierr.ResourceNotFound("route"))
	})

	fallback := market.NewFallback(deps.Market)
	coins := handlers.NewCoinHandlers(deps.Market, fallback)
	etag := middleware.ETag(dataMaxAge)

	// Health and metrics
	r.HandleFunc("/health", handlers.Health).Methods("GET")
	r.Handle("/ready", handlers.Ready(deps.Pingers)).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.Handle("/api/status", handlers.GetStatus(deps.Market)).Methods("GET")

	// Dashboard, coin page and compare page
	r.Handle("/api/coins", etag(http.HandlerFunc(coins.ListCoins))).Methods("GET")
	r.Handle("/api/coins/{id}", etag(http.HandlerFunc(coins.GetCoin))).Methods("GET")
	r.Handle("/api/coins/{id}/history", etag(http.HandlerFunc(coins.GetHistory))).Methods("GET")
	r.Handle("/api/compare", etag(http.HandlerFunc(coins.Compare))).Methods("GET")

	// Watchlist
	if deps.Watchlist != nil {
		wl := handlers.NewWatchlistHandlers(deps.Watchlist, fallback)
		r.HandleFunc("/api/watchlist", wl.List).Methods("GET")
		r.HandleFunc("/api/watchlist/coins", wl.Coins).Methods("GET")
		r.HandleFunc("/api/watchlist/{id}", wl.Watched).Methods("GET")
		r.HandleFunc("/api/watchlist/{id}", wl.Add).Methods("PUT")
		r.HandleFunc("/api/watchlist/{id}", wl.Remove).Methods("DELETE")
	}

	// Live chart sessions
	chart := handlers.NewChartSocket(deps.Market, cfg.DebounceWindow, cfg.CORSAllowedOrigins)
	r.HandleFunc("/ws/chart", chart.Handle).Methods("GET")

	// Admin
	admin := r.PathPrefix("/api/admin").Subrouter()
	admin.Use(adminOnly(cfg))
	cacheAdmin := handlers.NewCacheAdminHandler(deps.Market)
	admin.HandleFunc("/cache/stats", cacheAdmin.GetCacheStats).Methods("GET")
	admin.Handle("/cache/invalidate", middleware.ValidateRequestBody(http.HandlerFunc(cacheAdmin.InvalidateCache))).Methods("POST")

	var h http.Handler = r
	h = middleware.Compress(h)
	if deps.RateLimiter != nil {
		h = deps.RateLimiter.Limit(h)
	}
	h = middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSAllowedOrigins...))(h)
	h = middleware.SecurityHeaders(h)
	h = middleware.RecoverWithSentry(h)
	h = middleware.RequestID(h)
	return h
}
