package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorCollect(t *testing.T) {
	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_gauge_ok"})
	c := NewCollector(time.Second)
	c.Track("test_ok", g, func(context.Context) (float64, error) { return 7, nil })

	c.Collect(context.Background())

	if v := testutil.ToFloat64(g); v != 7 {
		t.Errorf("expected gauge 7, got %v", v)
	}
}

func TestCollectorSampleErrorMarksStale(t *testing.T) {
	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_gauge_err"})
	c := NewCollector(time.Second)
	c.Track("test_err", g, func(context.Context) (float64, error) { return 0, errors.New("boom") })

	before := testutil.ToFloat64(MetricsCollectionErrors.WithLabelValues("test_err"))
	c.Collect(context.Background())

	if v := testutil.ToFloat64(g); v != -1 {
		t.Errorf("expected stale marker -1, got %v", v)
	}
	if after := testutil.ToFloat64(MetricsCollectionErrors.WithLabelValues("test_err")); after != before+1 {
		t.Errorf("expected collection error counter to increase, got %v -> %v", before, after)
	}
}

func TestCollectorStopIsIdempotent(t *testing.T) {
	c := NewCollector(10 * time.Millisecond)
	done := make(chan struct{})
	go func() {
		c.Start(context.Background())
		close(done)
	}()

	c.Stop()
	c.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector did not stop")
	}
}

func TestCollectorContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := NewCollector(10 * time.Millisecond)
	done := make(chan struct{})
	go func() {
		c.Start(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector ignored context cancellation")
	}
}
