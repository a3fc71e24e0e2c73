package ratelimit

import (
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"deribit/internal/clock"
)

// TokenBucket is a single continuously refilling counter. Refill follows
// tokens = min(capacity, tokens + elapsed*refill) over floating-point seconds.
//
// The arithmetic is delegated to a rate.Limiter driven with instants read
// from the injected clock, so simulated time controls refill exactly.
type TokenBucket struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	capacity int
	refill   float64
	clock    clock.Clock
}

// NewTokenBucket creates a full bucket holding capacity tokens that refills at
// refillPerSecond, which must be positive. A nil clk uses the system clock.
func NewTokenBucket(capacity int, refillPerSecond float64, clk clock.Clock) *TokenBucket {
	if clk == nil {
		clk = clock.System()
	}

	tb := &TokenBucket{
		limiter:  rate.NewLimiter(rate.Limit(refillPerSecond), capacity),
		capacity: capacity,
		refill:   refillPerSecond,
		clock:    clk,
	}
	// Pins last_refill to the injected clock; the first advance fills the bucket.
	tb.limiter.SetBurstAt(clk.Now(), capacity)
	return tb
}

// TryConsume refills the bucket and then takes cost tokens if available.
// On failure the token level is left untouched.
func (tb *TokenBucket) TryConsume(cost int) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.tryConsumeAt(tb.clock.Now(), cost)
}

// TimeUntilAvailable reports how long until TryConsume(cost) would succeed.
// It returns zero when the tokens are already available and never mutates.
func (tb *TokenBucket) TimeUntilAvailable(cost int) time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.timeUntilAt(tb.clock.Now(), cost)
}

// Tokens returns the current token level after refill.
func (tb *TokenBucket) Tokens() float64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.tokensAt(tb.clock.Now())
}

// Capacity returns the maximum number of tokens.
func (tb *TokenBucket) Capacity() int {
	return tb.capacity
}

// RefillRate returns the refill rate in tokens per second.
func (tb *TokenBucket) RefillRate() float64 {
	return tb.refill
}

func (tb *TokenBucket) tokensAt(now time.Time) float64 {
	tokens := tb.limiter.TokensAt(now)
	switch {
	case tokens < 0:
		return 0
	case tokens > float64(tb.capacity):
		return float64(tb.capacity)
	}
	return tokens
}

func (tb *TokenBucket) canConsumeAt(now time.Time, cost int) bool {
	return cost <= tb.capacity && tb.tokensAt(now) >= float64(cost)
}

func (tb *TokenBucket) tryConsumeAt(now time.Time, cost int) bool {
	if !tb.canConsumeAt(now, cost) {
		return false
	}
	return tb.limiter.AllowN(now, cost)
}

func (tb *TokenBucket) timeUntilAt(now time.Time, cost int) time.Duration {
	deficit := float64(cost) - tb.tokensAt(now)
	if deficit <= 0 {
		return 0
	}
	if tb.refill <= 0 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(math.Ceil(deficit / tb.refill * float64(time.Second)))
}
