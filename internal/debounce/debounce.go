// Package debounce collapses bursts of parameter changes into one fetch and
// guarantees that only the newest fetch's outcome is delivered.
package debounce

import (
	"context"
	"sync"
	"time"

	"github.com/onnwee/coin-tracker/internal/logger"
	"github.com/onnwee/coin-tracker/internal/metrics"
)

// DefaultWindow is the quiet period used when New gets a non-positive window.
const DefaultWindow = 800 * time.Millisecond

// State of a Controller.
type State int

const (
	Idle State = iota
	Pending
	InFlight
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case InFlight:
		return "in_flight"
	default:
		return "idle"
	}
}

// Outcome is what Apply receives: the parameters that were fetched and either
// a result or an error.
type Outcome[P, R any] struct {
	Params P
	Result R
	Err    error
	Epoch  uint64
}

// FetchFunc performs the (slow) request for one parameter set. ctx is
// cancelled once a newer fetch starts.
type FetchFunc[P, R any] func(ctx context.Context, params P) (R, error)

// ApplyFunc receives current outcomes. Calls are serialised.
type ApplyFunc[P, R any] func(Outcome[P, R])

// Option configures a Controller.
type Option func(*options)

type options struct {
	ctx context.Context
}

// WithContext sets the parent of every fetch context. Cancelling it stops
// in-flight fetches but does not close the controller.
func WithContext(ctx context.Context) Option {
	return func(o *options) { o.ctx = ctx }
}

// Controller is a trailing-edge debouncer with last-write-wins delivery.
type Controller[P, R any] struct {
	window time.Duration
	fetch  FetchFunc[P, R]
	apply  ApplyFunc[P, R]
	base   context.Context

	mu       sync.Mutex
	timer    *time.Timer
	timerGen uint64 // bumped on every arm so a late timer can tell it was replaced
	armed    bool
	pending  P
	epoch    uint64
	inFlight uint64 // epoch of the running fetch, 0 when none
	live     uint64 // epoch whose outcome may still be applied, 0 when none
	cancel   context.CancelFunc
	closed   bool

	deliver sync.Mutex
}

// New creates an idle controller.
func New[P, R any](window time.Duration, fetch FetchFunc[P, R], apply ApplyFunc[P, R], opts ...Option) *Controller[P, R] {
	o := options{ctx: context.Background()}
	for _, opt := range opts {
		opt(&o)
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Controller[P, R]{
		window: window,
		fetch:  fetch,
		apply:  apply,
		base:   o.ctx,
	}
}

// Submit records params as the latest request and (re)arms the window. A
// fetch still running for older params is cancelled and its outcome dropped.
func (c *Controller[P, R]) Submit(params P) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.pending = params
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.inFlight = 0
	c.live = 0
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timerGen++
	gen := c.timerGen
	c.armed = true
	c.timer = time.AfterFunc(c.window, func() { c.fire(gen) })
}

// Flush starts the pending request now instead of waiting out the window.
func (c *Controller[P, R]) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.armed {
		return
	}
	c.timer.Stop()
	c.startLocked()
}

// Close stops the timer, cancels any in-flight fetch and drops every
// outcome from now on.
func (c *Controller[P, R]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.armed = false
	if c.timer != nil {
		c.timer.Stop()
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.inFlight = 0
	c.live = 0
}

// State reports Pending while a window is open, InFlight while a fetch runs
// and nothing is pending, Idle otherwise.
func (c *Controller[P, R]) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.armed:
		return Pending
	case c.inFlight != 0:
		return InFlight
	default:
		return Idle
	}
}

// Epoch is the number of fetches started so far.
func (c *Controller[P, R]) Epoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

func (c *Controller[P, R]) fire(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.armed || gen != c.timerGen {
		return
	}
	c.startLocked()
}

// startLocked supersedes the running fetch and starts one for the pending
// params. c.mu must be held.
func (c *Controller[P, R]) startLocked() {
	c.armed = false
	c.timerGen++
	c.epoch++
	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(c.base)
	c.cancel = cancel
	c.inFlight = c.epoch
	c.live = c.epoch
	metrics.DebounceFetches.Inc()
	go c.run(ctx, cancel, c.epoch, c.pending)
}

func (c *Controller[P, R]) current(epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && epoch == c.live
}

func (c *Controller[P, R]) run(ctx context.Context, cancel context.CancelFunc, epoch uint64, params P) {
	res, err := c.fetch(ctx, params)

	c.mu.Lock()
	if c.inFlight == epoch {
		c.inFlight = 0
		c.cancel = nil
	}
	c.mu.Unlock()
	cancel()

	c.deliver.Lock()
	defer c.deliver.Unlock()
	// checked again under the delivery lock so a newer outcome can never be
	// overwritten by an older one
	if !c.current(epoch) {
		metrics.DebounceStaleDiscards.Inc()
		logger.WithComponent("debounce").Debug("dropping superseded result", "epoch", epoch, "error", err)
		return
	}
	c.apply(Outcome[P, R]{Params: params, Result: res, Err: err, Epoch: epoch})
}
