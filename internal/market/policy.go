package market

import (
	"context"
	"sync"
	"time"

	"github.com/onnwee/coin-tracker/internal/logger"
	"github.com/onnwee/coin-tracker/internal/metrics"
)

// Substitution records one synthetic payload served in place of real data.
type Substitution struct {
	Kind   string // coins, coin or history
	ID     string
	Reason string // rate_limited, unavailable, not_found
	Stale  bool   // an expired real list was served instead of the roster
}

// FallbackNotes collects substitutions made while serving one request.
type FallbackNotes struct {
	mu    sync.Mutex
	items []Substitution
}

func (n *FallbackNotes) add(s Substitution) {
	n.mu.Lock()
	n.items = append(n.items, s)
	n.mu.Unlock()
}

// Used reports whether any payload in the request was substituted.
func (n *FallbackNotes) Used() bool {
	if n == nil {
		return false
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.items) > 0
}

// Items returns a copy of the recorded substitutions.
func (n *FallbackNotes) Items() []Substitution {
	if n == nil {
		return nil
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Substitution(nil), n.items...)
}

type notesKey struct{}

// TrackFallback returns a context that records substitutions made by any
// Fallback it passes through.
func TrackFallback(ctx context.Context) (context.Context, *FallbackNotes) {
	n := &FallbackNotes{}
	return context.WithValue(ctx, notesKey{}, n), n
}

func notesFrom(ctx context.Context) *FallbackNotes {
	n, _ := ctx.Value(notesKey{}).(*FallbackNotes)
	return n
}

// staleLister is implemented by sources that remember the last good list.
type staleLister interface {
	StaleCoins() ([]Coin, bool)
}

// Fallback is the substitution policy: it asks the wrapped Source and, when
// that fails for any reason other than the caller going away, serves
// deterministic synthetic data of the same shape.
type Fallback struct {
	src Source
	now func() time.Time
}

// FallbackOption configures a Fallback.
type FallbackOption func(*Fallback)

// WithNow replaces time.Now for synthetic series timestamps.
func WithNow(now func() time.Time) FallbackOption {
	return func(f *Fallback) { f.now = now }
}

// NewFallback wraps src.
func NewFallback(src Source, opts ...FallbackOption) *Fallback {
	f := &Fallback{src: src, now: time.Now}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Fallback) substitute(ctx context.Context, kind, id string, err error, stale bool) {
	reason := kindOf(err).String()
	if kindOf(err) < 0 {
		reason = KindUnavailable.String()
	}
	metrics.FallbacksServed.WithLabelValues(kind, reason).Inc()
	logger.ForComponent(ctx, "market").Info("serving fallback data", "kind", kind, "id", id, "reason", reason, "stale", stale)
	if n := notesFrom(ctx); n != nil {
		n.add(Substitution{Kind: kind, ID: id, Reason: reason, Stale: stale})
	}
}

// Coins prefers the last real list, then the fixed roster.
func (f *Fallback) Coins(ctx context.Context) ([]Coin, error) {
	coins, err := f.src.Coins(ctx)
	if err == nil || IsCancelled(err) {
		return coins, err
	}
	if sl, ok := f.src.(staleLister); ok {
		if stale, ok := sl.StaleCoins(); ok {
			f.substitute(ctx, KindCoins, "", err, true)
			return stale, nil
		}
	}
	f.substitute(ctx, KindCoins, "", err, false)
	return FallbackCoins(), nil
}

func (f *Fallback) CoinDetail(ctx context.Context, id string) (CoinDetail, error) {
	d, err := f.src.CoinDetail(ctx, id)
	if err == nil || IsCancelled(err) {
		return d, err
	}
	f.substitute(ctx, KindCoin, id, err, false)
	return FallbackDetail(id), nil
}

func (f *Fallback) PriceHistory(ctx context.Context, id string, days int, metric Metric) (Series, error) {
	s, err := f.src.PriceHistory(ctx, id, days, metric)
	if err == nil || IsCancelled(err) {
		return s, err
	}
	f.substitute(ctx, KindHistory, id, err, false)
	return FallbackSeries(id, days, metric, f.now()), nil
}
