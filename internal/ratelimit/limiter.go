package ratelimit

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"deribit/internal/clock"
	"deribit/internal/metrics"
)

// RateLimiter enforces the per-category quotas plus an optional global quota.
// A request is admitted only when its category bucket and the global bucket
// can both be debited; the two debits happen together or not at all.
type RateLimiter struct {
	buckets map[Category]*categoryBucket
	global  *TokenBucket
	clock   clock.Clock
	logger  zerolog.Logger
	prom    *metrics.Metrics
	stats   *Metrics
}

type categoryBucket struct {
	bucket *TokenBucket
	cost   int
}

// Metrics tracks statistics about rate limiter usage.
type Metrics struct {
	totalRequests     atomic.Int64
	immediateRequests atomic.Int64
	waitedRequests    atomic.Int64
	cancelledRequests atomic.Int64
	deniedRequests    atomic.Int64
}

// Option configures a RateLimiter.
type Option func(*RateLimiter)

// WithClock sets the time source. Defaults to the system clock.
func WithClock(c clock.Clock) Option {
	return func(r *RateLimiter) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithLogger sets the logger used for wait events.
func WithLogger(l zerolog.Logger) Option {
	return func(r *RateLimiter) {
		r.logger = l
	}
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *RateLimiter) {
		r.prom = m
	}
}

// New builds a RateLimiter with full buckets for every category.
func New(limits Limits, opts ...Option) (*RateLimiter, error) {
	if err := limits.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rate limits: %w", err)
	}

	r := &RateLimiter{
		buckets: make(map[Category]*categoryBucket, len(categoryNames)),
		clock:   clock.System(),
		logger:  zerolog.Nop(),
		stats:   &Metrics{},
	}
	for _, opt := range opts {
		opt(r)
	}

	for _, c := range Categories() {
		b := limits.For(c)
		r.buckets[c] = &categoryBucket{
			bucket: NewTokenBucket(b.Capacity, b.RefillPerSecond, r.clock),
			cost:   b.cost(),
		}
	}
	if limits.Global != nil {
		r.global = NewTokenBucket(limits.Global.Capacity, limits.Global.RefillPerSecond, r.clock)
	}
	return r, nil
}

// Acquire blocks until a token for category is available, then consumes it.
// The only error it returns is ctx.Err(); a cancelled caller consumes nothing.
// Waiting callers are not served in arrival order.
func (r *RateLimiter) Acquire(ctx context.Context, category Category) error {
	category = normalize(category)
	cb := r.buckets[category]
	r.stats.totalRequests.Add(1)

	if err := ctx.Err(); err != nil {
		r.cancelled(category)
		return err
	}

	var start time.Time
	waited := false
	for {
		now := r.clock.Now()
		ok, wait := r.tryAcquireAt(now, cb)
		if ok {
			if waited {
				r.stats.waitedRequests.Add(1)
				r.prom.ObserveWait(category.String(), r.clock.Now().Sub(start))
			} else {
				r.stats.immediateRequests.Add(1)
			}
			r.prom.RecordAcquire(category.String(), waited)
			return nil
		}

		if !waited {
			waited = true
			start = now
		}
		r.logger.Debug().
			Str("category", category.String()).
			Dur("wait", wait).
			Msg("rate limit reached, waiting")

		timer := r.clock.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			r.cancelled(category)
			return ctx.Err()
		case <-timer.Chan():
		}
	}
}

// TryAcquire consumes a token for category if one is available right now.
func (r *RateLimiter) TryAcquire(category Category) bool {
	category = normalize(category)
	r.stats.totalRequests.Add(1)

	ok, _ := r.tryAcquireAt(r.clock.Now(), r.buckets[category])
	if !ok {
		r.stats.deniedRequests.Add(1)
		return false
	}
	r.stats.immediateRequests.Add(1)
	r.prom.RecordAcquire(category.String(), false)
	return true
}

// Tokens returns the current token level of the category bucket.
func (r *RateLimiter) Tokens(category Category) float64 {
	return r.buckets[normalize(category)].bucket.Tokens()
}

// GlobalTokens returns the current level of the global bucket, or -1 when no
// global bucket is configured.
func (r *RateLimiter) GlobalTokens() float64 {
	if r.global == nil {
		return -1
	}
	return r.global.Tokens()
}

// TimeUntilAvailable reports how long a request in category would wait now.
func (r *RateLimiter) TimeUntilAvailable(category Category) time.Duration {
	cb := r.buckets[normalize(category)]
	now := r.clock.Now()

	cb.bucket.mu.Lock()
	defer cb.bucket.mu.Unlock()
	wait := cb.bucket.timeUntilAt(now, cb.cost)
	if r.global != nil {
		r.global.mu.Lock()
		defer r.global.mu.Unlock()
		wait = max(wait, r.global.timeUntilAt(now, cb.cost))
	}
	return wait
}

// tryAcquireAt debits the category and global buckets together. Lock order is
// category bucket first, then global.
func (r *RateLimiter) tryAcquireAt(now time.Time, cb *categoryBucket) (bool, time.Duration) {
	cb.bucket.mu.Lock()
	defer cb.bucket.mu.Unlock()
	if r.global != nil {
		r.global.mu.Lock()
		defer r.global.mu.Unlock()
	}

	if cb.bucket.canConsumeAt(now, cb.cost) && (r.global == nil || r.global.canConsumeAt(now, cb.cost)) {
		cb.bucket.tryConsumeAt(now, cb.cost)
		if r.global != nil {
			r.global.tryConsumeAt(now, cb.cost)
		}
		return true, 0
	}

	wait := cb.bucket.timeUntilAt(now, cb.cost)
	if r.global != nil {
		wait = max(wait, r.global.timeUntilAt(now, cb.cost))
	}
	if wait <= 0 {
		// float shortfall below the nanosecond resolution
		wait = time.Nanosecond
	}
	return false, wait
}

func (r *RateLimiter) cancelled(category Category) {
	r.stats.cancelledRequests.Add(1)
	r.prom.RecordAcquireCancelled(category.String())
}

func normalize(c Category) Category {
	if !c.Valid() {
		return DefaultCategory
	}
	return c
}

// Metrics returns a snapshot of the current rate limiter statistics.
func (r *RateLimiter) Metrics() MetricsSnapshot {
	return MetricsSnapshot{
		TotalRequests:     r.stats.totalRequests.Load(),
		ImmediateRequests: r.stats.immediateRequests.Load(),
		WaitedRequests:    r.stats.waitedRequests.Load(),
		CancelledRequests: r.stats.cancelledRequests.Load(),
		DeniedRequests:    r.stats.deniedRequests.Load(),
	}
}

// MetricsSnapshot is a point-in-time capture of rate limiter statistics.
type MetricsSnapshot struct {
	// TotalRequests is the number of Acquire and TryAcquire calls.
	TotalRequests int64
	// ImmediateRequests were admitted without suspending.
	ImmediateRequests int64
	// WaitedRequests were admitted after suspending at least once.
	WaitedRequests int64
	// CancelledRequests gave up because their context ended.
	CancelledRequests int64
	// DeniedRequests are TryAcquire calls that found no token.
	DeniedRequests int64
}
