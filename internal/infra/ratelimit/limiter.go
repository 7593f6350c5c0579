package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/bryanwahyu/brandsentry/internal/telemetry"
)

// ErrQueueCleared is returned to tasks that were still waiting when CancelAll ran.
var ErrQueueCleared = errors.New("rate limiter queue cleared")

// Config describes one limiter: at most MaxConcurrent tasks in flight and at
// most MaxPerInterval starts per Interval. Starts are spaced Interval/MaxPerInterval
// apart with a burst of one, so no window of length Interval sees more.
type Config struct {
	MaxConcurrent  int           `yaml:"max_concurrent"`
	Interval       time.Duration `yaml:"interval"`
	MaxPerInterval int           `yaml:"max_per_interval"`
}

// Limiter delays tasks until both a concurrency slot and a rate token are free.
// Tasks are never rejected, only queued.
type Limiter struct {
	name string
	sem  *semaphore.Weighted
	rate *rate.Limiter

	mu       sync.Mutex
	queue    context.Context
	clear    context.CancelFunc
	pending  atomic.Int64 // queued + in flight
	inflight atomic.Int64
}

func New(name string, cfg Config) *Limiter {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if cfg.MaxPerInterval <= 0 {
		cfg.MaxPerInterval = 1
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	l := &Limiter{
		name: name,
		sem:  semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		rate: rate.NewLimiter(rate.Every(cfg.Interval/time.Duration(cfg.MaxPerInterval)), 1),
	}
	l.queue, l.clear = context.WithCancel(context.Background())
	return l
}

func (l *Limiter) Name() string { return l.name }

// Pending returns the number of queued plus executing tasks.
func (l *Limiter) Pending() int64 { return l.pending.Load() }

// InFlight returns the number of executing tasks.
func (l *Limiter) InFlight() int64 { return l.inflight.Load() }

// Do waits for a slot and runs fn with the caller's ctx. Once fn has started,
// CancelAll no longer affects it.
func (l *Limiter) Do(ctx context.Context, fn func(context.Context) error) error {
	l.pending.Add(1)
	defer l.pending.Add(-1)

	l.mu.Lock()
	queue := l.queue
	l.mu.Unlock()

	telemetry.LimiterQueued.WithLabelValues(l.name).Inc()
	err := l.acquire(ctx, queue)
	telemetry.LimiterQueued.WithLabelValues(l.name).Dec()
	if err != nil {
		if queue.Err() != nil && ctx.Err() == nil {
			return ErrQueueCleared
		}
		return err
	}
	defer l.sem.Release(1)

	l.inflight.Add(1)
	telemetry.LimiterInFlight.WithLabelValues(l.name).Inc()
	defer func() {
		l.inflight.Add(-1)
		telemetry.LimiterInFlight.WithLabelValues(l.name).Dec()
	}()
	return fn(ctx)
}

// acquire takes a concurrency slot, then a rate token. Both waits abort when
// either the caller or the queue generation is cancelled.
func (l *Limiter) acquire(ctx, queue context.Context) error {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(queue, cancel)
	defer stop()

	if err := l.sem.Acquire(waitCtx, 1); err != nil {
		return err
	}
	if err := l.rate.Wait(waitCtx); err != nil {
		l.sem.Release(1)
		return err
	}
	return nil
}

// CancelAll discards every task still waiting for a slot. Executing tasks are untouched.
func (l *Limiter) CancelAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.clear()
	l.queue, l.clear = context.WithCancel(context.Background())
}

// Drain blocks until no task is queued or executing, or ctx ends.
func (l *Limiter) Drain(ctx context.Context) error {
	t := time.NewTicker(10 * time.Millisecond)
	defer t.Stop()
	for l.pending.Load() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return nil
}

// Submit runs fn through l and returns its result.
func Submit[T any](ctx context.Context, l *Limiter, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := l.Do(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		out = v
		return err
	})
	return out, err
}
