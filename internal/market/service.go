package market

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/onnwee/coin-tracker/internal/cache"
	"github.com/onnwee/coin-tracker/internal/circuitbreaker"
	"github.com/onnwee/coin-tracker/internal/coingecko"
	"github.com/onnwee/coin-tracker/internal/errorreporting"
	"github.com/onnwee/coin-tracker/internal/logger"
	"github.com/onnwee/coin-tracker/internal/metrics"
	"github.com/onnwee/coin-tracker/internal/queue"
	"github.com/onnwee/coin-tracker/internal/tracing"
)

// Options tunes a Service.
type Options struct {
	PerPage         int
	TTLCoinList     time.Duration
	TTLCoinDetail   time.Duration
	TTLPriceHistory time.Duration
}

func (o *Options) setDefaults() {
	if o.PerPage <= 0 {
		o.PerPage = 100
	}
	if o.TTLCoinList <= 0 {
		o.TTLCoinList = 5 * time.Minute
	}
	if o.TTLCoinDetail <= 0 {
		o.TTLCoinDetail = 3 * time.Minute
	}
	if o.TTLPriceHistory <= 0 {
		o.TTLPriceHistory = 2 * time.Minute
	}
}

// Service is the surface policy: cache, then one paced upstream call per key,
// then typed errors. It is the only writer of the market cache.
type Service struct {
	upstream Upstream
	cache    cache.Cache
	queue    *queue.Queue
	breaker  *circuitbreaker.CircuitBreaker
	opts     Options
	group    singleflight.Group

	mu        sync.RWMutex
	lastCoins []Coin
}

// NewService wires the data access layer. breaker may be nil.
func NewService(up Upstream, c cache.Cache, q *queue.Queue, breaker *circuitbreaker.CircuitBreaker, opts Options) *Service {
	opts.setDefaults()
	return &Service{
		upstream: up,
		cache:    c,
		queue:    q,
		breaker:  breaker,
		opts:     opts,
	}
}

// Coins returns the market-cap ordered coin list.
func (s *Service) Coins(ctx context.Context) ([]Coin, error) {
	return s.coins(ctx, false)
}

// RefreshCoins fetches the coin list even when a cached copy is still fresh
// and replaces it. Readers keep seeing the old entry until the new one lands.
func (s *Service) RefreshCoins(ctx context.Context) ([]Coin, error) {
	return s.coins(ctx, true)
}

func (s *Service) coins(ctx context.Context, force bool) ([]Coin, error) {
	coins, err := load(ctx, s, KindCoins, coinsKey(s.opts.PerPage), s.opts.TTLCoinList, force,
		func(ctx context.Context) ([]Coin, error) {
			return s.upstream.Markets(ctx, s.opts.PerPage)
		},
		func(coins []Coin) error {
			if len(coins) == 0 {
				return invalid("empty coin list")
			}
			return nil
		})
	if err == nil {
		s.mu.Lock()
		s.lastCoins = coins
		s.mu.Unlock()
	}
	return coins, err
}

// StaleCoins returns the last list successfully fetched, even if its cache
// entry has expired.
func (s *Service) StaleCoins() ([]Coin, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastCoins, len(s.lastCoins) > 0
}

// CoinDetail returns the detail document for id.
func (s *Service) CoinDetail(ctx context.Context, id string) (CoinDetail, error) {
	return load(ctx, s, KindCoin, coinKey(id), s.opts.TTLCoinDetail, false,
		func(ctx context.Context) (CoinDetail, error) {
			return s.upstream.Coin(ctx, id)
		},
		func(d CoinDetail) error {
			if _, ok := d.USDPrice(); !ok {
				return invalid("missing market_data.current_price.usd")
			}
			if d.Image == nil || (d.Image.Large == "" && d.Image.Small == "" && d.Image.Thumb == "") {
				return invalid("missing image")
			}
			return nil
		})
}

// PriceHistory returns one daily series for id over days.
func (s *Service) PriceHistory(ctx context.Context, id string, days int, metric Metric) (Series, error) {
	return load(ctx, s, KindHistory, historyKey(id, days, metric), s.opts.TTLPriceHistory, false,
		func(ctx context.Context) (Series, error) {
			chart, err := s.upstream.MarketChart(ctx, id, days)
			if err != nil {
				return nil, err
			}
			points, ok := chart.Series(string(metric))
			if !ok {
				return nil, invalid("unknown metric " + string(metric))
			}
			return Series(points), nil
		},
		func(series Series) error {
			if len(series) == 0 {
				return invalid("empty " + string(metric) + " series")
			}
			return nil
		})
}

// Status is a point-in-time view of the access layer.
type Status struct {
	QueueDepth int         `json:"queue_depth"`
	Breaker    string      `json:"circuit_breaker"`
	Cache      cache.Stats `json:"cache"`
}

// Status reports queue depth, breaker state and cache stats.
func (s *Service) Status() Status {
	st := Status{Breaker: "disabled", Cache: s.cache.Stats()}
	if s.queue != nil {
		st.QueueDepth = s.queue.Len()
	}
	if s.breaker != nil {
		st.Breaker = s.breaker.GetState().String()
	}
	return st
}

// Invalidate drops one cache key.
func (s *Service) Invalidate(key string) { s.cache.Delete(key) }

// InvalidateCoin drops the detail entry for id. History entries expire on their own.
func (s *Service) InvalidateCoin(id string) { s.cache.Delete(coinKey(id)) }

// Purge drops every cached payload.
func (s *Service) Purge() { s.cache.Clear() }

func invalid(reason string) error {
	return coingecko.InvalidPayload(reason, nil)
}

// load runs the read-through algorithm for one key:
// cache hit, else single-flight -> breaker -> queue -> upstream -> validate -> cache.
// force skips both cache reads.
func load[T any](ctx context.Context, s *Service, kind, key string, ttl time.Duration, force bool,
	fetch func(context.Context) (T, error), validate func(T) error) (_ T, err error) {
	var zero T
	log := logger.ForComponent(ctx, "market")

	if !force {
		if v, ok := s.cache.Get(key); ok {
			if typed, ok := v.(T); ok {
				metrics.CacheHits.WithLabelValues(kind).Inc()
				return typed, nil
			}
			s.cache.Delete(key)
		}
		metrics.CacheMisses.WithLabelValues(kind).Inc()
	}

	ctx, span := tracing.StartLoadSpan(ctx, kind, key)
	defer func() { tracing.EndSpan(span, err) }()

	// The shared call outlives any single waiter so that one caller leaving
	// does not fail the others; the queue's task timeout still bounds it.
	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		// a flight that finished between our miss and now may have filled it
		if !force {
			if v, ok := s.cache.Get(key); ok {
				if typed, ok := v.(T); ok {
					return typed, nil
				}
			}
		}
		var out T
		call := func(ctx context.Context) error {
			v, err := s.queue.Do(ctx, func(ctx context.Context) (any, error) {
				return fetch(ctx)
			})
			if err != nil {
				return err
			}
			out = v.(T)
			return validate(out)
		}
		var err error
		if s.breaker != nil {
			err = s.breaker.Execute(shared, call)
		} else {
			err = call(shared)
		}
		if err != nil {
			return nil, err
		}
		s.cache.Set(key, out, ttl)
		return out, nil
	})

	select {
	case <-ctx.Done():
		return zero, classify(ctx, ctx.Err())
	case res := <-ch:
		if res.Shared {
			metrics.SingleflightShared.WithLabelValues(kind).Inc()
		}
		if res.Err != nil {
			err = classify(ctx, res.Err)
			report(ctx, log, kind, key, err)
			return zero, err
		}
		return res.Val.(T), nil
	}
}

func report(ctx context.Context, log *slog.Logger, kind, key string, err error) {
	var me *Error
	if !errors.As(err, &me) {
		return
	}
	log.Warn("upstream fetch failed", "kind", kind, "key", key, "error_kind", me.Kind.String(), "status", me.StatusCode, "error", err)
	if me.Kind == KindUnavailable {
		errorreporting.CaptureErrorWithContext(ctx, err, map[string]string{"component": "market", "kind": kind}, map[string]any{"key": key})
	}
}
