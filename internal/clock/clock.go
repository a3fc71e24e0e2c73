// Package clock abstracts the time source used by the rate limiter and the
// auth manager so that refill and expiry can be driven by simulated time.
package clock

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// Timer is a stoppable one-shot timer.
type Timer = clockwork.Timer

// Clock is the time source consumed by the dispatch substrate. Any
// clockwork.Clock satisfies it.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) Timer
}

// System returns the wall clock.
func System() Clock {
	return clockwork.NewRealClock()
}

// Epoch is the instant a Manual clock starts at.
var Epoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

type fakeClock interface {
	clockwork.Clock
	Advance(d time.Duration)
	BlockUntilContext(ctx context.Context, n int) error
}

// Manual is a simulated clock backed by a clockwork fake. Time only moves
// when Advance or Set is called. Stopped timers stop counting as waiters.
type Manual struct {
	fakeClock
}

// NewManual returns a Manual clock set to Epoch.
func NewManual() *Manual {
	return &Manual{fakeClock: clockwork.NewFakeClockAt(Epoch)}
}

// Set moves the clock forward to t. An instant in the past is ignored.
func (m *Manual) Set(t time.Time) {
	if d := t.Sub(m.Now()); d > 0 {
		m.Advance(d)
	}
}

// BlockUntil blocks until exactly n timers are waiting on the clock.
func (m *Manual) BlockUntil(n int) {
	_ = m.BlockUntilContext(context.Background(), n)
}
