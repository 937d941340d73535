// Package queue runs upstream calls one at a time with a fixed pause after
// each call settles, so bursts of page loads never hit the API in parallel.
package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/onnwee/coin-tracker/internal/logger"
	"github.com/onnwee/coin-tracker/internal/metrics"
)

// ErrClosed is returned for tasks submitted after Close, or still waiting when
// Close was called.
var ErrClosed = errors.New("queue: closed")

// Operation is a unit of upstream work.
type Operation func(ctx context.Context) (any, error)

// Task is the resolution handle of a submitted operation.
type Task struct {
	ctx      context.Context
	op       Operation
	queuedAt time.Time

	done   chan struct{}
	result any
	err    error
}

// Done is closed once the task has settled.
func (t *Task) Done() <-chan struct{} { return t.done }

// Result blocks until the task settles.
func (t *Task) Result() (any, error) {
	<-t.done
	return t.result, t.err
}

func (t *Task) settle(v any, err error) {
	t.result, t.err = v, err
	close(t.done)
}

// Option configures a Queue.
type Option func(*Queue)

// WithTaskTimeout bounds each operation's run time. Zero disables it.
func WithTaskTimeout(d time.Duration) Option {
	return func(q *Queue) { q.taskTimeout = d }
}

// Queue is a FIFO of operations drained by a single worker goroutine.
type Queue struct {
	delay       time.Duration
	taskTimeout time.Duration

	mu     sync.Mutex
	tasks  []*Task
	closed bool
	wake   chan struct{}
	stop   chan struct{}
	done   chan struct{}
}

// New starts a queue whose worker waits delay after each operation settles
// before starting the next one.
func New(delay time.Duration, opts ...Option) *Queue {
	q := &Queue{
		delay: delay,
		wake:  make(chan struct{}, 1),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	go q.run()
	return q
}

// Submit appends op to the queue. It never blocks.
func (q *Queue) Submit(ctx context.Context, op Operation) *Task {
	if ctx == nil {
		ctx = context.Background()
	}
	t := &Task{ctx: ctx, op: op, queuedAt: time.Now(), done: make(chan struct{})}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		t.settle(nil, ErrClosed)
		return t
	}
	q.tasks = append(q.tasks, t)
	metrics.QueueDepth.Set(float64(len(q.tasks)))
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return t
}

// Do submits op and waits for its result. If ctx ends first Do returns the
// context error; the task stays queued and is skipped when it reaches the head.
func (q *Queue) Do(ctx context.Context, op Operation) (any, error) {
	t := q.Submit(ctx, op)
	select {
	case <-t.Done():
		return t.result, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len reports the number of tasks waiting, excluding the one running.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Close stops the worker after the running operation settles. Waiting tasks
// are settled with ErrClosed.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	pending := q.tasks
	q.tasks = nil
	metrics.QueueDepth.Set(0)
	q.mu.Unlock()

	close(q.stop)
	<-q.done
	for _, t := range pending {
		t.settle(nil, ErrClosed)
	}
}

func (q *Queue) next() *Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tasks) == 0 {
		return nil
	}
	t := q.tasks[0]
	q.tasks[0] = nil
	q.tasks = q.tasks[1:]
	metrics.QueueDepth.Set(float64(len(q.tasks)))
	return t
}

func (q *Queue) run() {
	defer close(q.done)
	log := logger.WithComponent("queue")
	for {
		t := q.next()
		if t == nil {
			select {
			case <-q.wake:
				continue
			case <-q.stop:
				return
			}
		}

		// Submitter gave up while waiting; no upstream call is spent on it.
		if err := t.ctx.Err(); err != nil {
			metrics.QueueTasksTotal.WithLabelValues("skipped").Inc()
			t.settle(nil, err)
			continue
		}

		metrics.QueueWaitDuration.Observe(time.Since(t.queuedAt).Seconds())
		v, err := q.execute(t)
		if err != nil {
			metrics.QueueTasksTotal.WithLabelValues("failed").Inc()
			log.Debug("task failed", "error", err)
		} else {
			metrics.QueueTasksTotal.WithLabelValues("success").Inc()
		}
		t.settle(v, err)

		if q.delay > 0 {
			timer := time.NewTimer(q.delay)
			select {
			case <-timer.C:
			case <-q.stop:
				timer.Stop()
				return
			}
		}
	}
}

func (q *Queue) execute(t *Task) (v any, err error) {
	ctx := t.ctx
	if q.taskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.taskTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return t.op(ctx)
}

// PanicError reports an operation that panicked. The worker survives it.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return "queue: operation panicked"
}
