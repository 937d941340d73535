package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SampleFunc reads the current value of a gauge-backed quantity.
type SampleFunc func(ctx context.Context) (float64, error)

type sample struct {
	name  string
	gauge prometheus.Gauge
	fn    SampleFunc
}

// Collector periodically samples point-in-time values (queue depth, cache
// size, watchlist size) into Prometheus gauges.
type Collector struct {
	interval time.Duration
	mu       sync.Mutex
	samples  []sample
	stop     chan struct{}
	once     sync.Once
}

// NewCollector creates a new metrics collector
func NewCollector(interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Track registers a sampler. name is used as the collector label on
// MetricsCollectionErrors when fn fails.
func (c *Collector) Track(name string, g prometheus.Gauge, fn SampleFunc) {
	c.mu.Lock()
	c.samples = append(c.samples, sample{name: name, gauge: g, fn: fn})
	c.mu.Unlock()
}

// Start begins the metrics collection loop
func (c *Collector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// Collect initial metrics
	c.Collect(ctx)

	for {
		select {
		case <-ticker.C:
			c.Collect(ctx)
		case <-c.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop stops the metrics collector. Safe to call more than once.
func (c *Collector) Stop() {
	c.once.Do(func() { close(c.stop) })
}

// Collect runs every registered sampler once.
func (c *Collector) Collect(ctx context.Context) {
	c.mu.Lock()
	samples := append([]sample(nil), c.samples...)
	c.mu.Unlock()

	for _, s := range samples {
		v, err := s.fn(ctx)
		if err != nil {
			slog.Warn("metrics sample failed", "collector", s.name, "error", err)
			MetricsCollectionErrors.WithLabelValues(s.name).Inc()
			s.gauge.Set(-1) // Signal stale data
			continue
		}
		s.gauge.Set(v)
	}
}
