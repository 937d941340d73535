package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/onnwee/coin-tracker/internal/logger"
	"github.com/onnwee/coin-tracker/internal/metrics"
)

// Job is one warm run.
type Job func(ctx context.Context) error

// Warmer runs a Job on a Schedule until stopped.
type Warmer struct {
	name     string
	schedule Schedule
	job      Job
	now      func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewWarmer parses expr and returns a Warmer for job.
func NewWarmer(name, expr string, job Job) (*Warmer, error) {
	s, err := Parse(expr)
	if err != nil {
		return nil, err
	}
	return &Warmer{
		name:     name,
		schedule: s,
		job:      job,
		now:      time.Now,
		stop:     make(chan struct{}),
	}, nil
}

// Start runs the job once immediately and then on every scheduled tick. It
// blocks until ctx is done or Stop is called.
func (w *Warmer) Start(ctx context.Context) {
	log := logger.WithComponent("warmer").With("job", w.name)
	log.Info("starting cache warmer")

	w.RunOnce(ctx)
	for {
		wait := w.schedule.Next(w.now()).Sub(w.now())
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info("cache warmer stopped by context")
			return
		case <-w.stop:
			timer.Stop()
			log.Info("cache warmer stopped")
			return
		case <-timer.C:
			w.RunOnce(ctx)
		}
	}
}

// Stop ends Start. Safe to call more than once.
func (w *Warmer) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
}

// RunOnce runs the job and records the outcome.
func (w *Warmer) RunOnce(ctx context.Context) error {
	start := w.now()
	err := w.job(ctx)
	log := logger.ForComponent(ctx, "warmer").With("job", w.name, "duration_ms", w.now().Sub(start).Milliseconds())
	if err != nil {
		metrics.WarmRuns.WithLabelValues("failed").Inc()
		log.Warn("warm run failed", "error", err)
		return err
	}
	metrics.WarmRuns.WithLabelValues("success").Inc()
	log.Debug("warm run finished")
	return nil
}
