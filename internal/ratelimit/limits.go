package ratelimit

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Bucket is the quota configuration of one token bucket.
type Bucket struct {
	// Capacity is the burst size in tokens.
	Capacity int `json:"capacity" mapstructure:"capacity" validate:"min=1"`
	// RefillPerSecond is the continuous refill rate.
	RefillPerSecond float64 `json:"refill_per_second" mapstructure:"refill_per_second" validate:"gt=0"`
	// Cost is the number of tokens one request takes. Zero means one.
	Cost int `json:"cost" mapstructure:"cost" validate:"min=0"`
}

func (b Bucket) cost() int {
	if b.Cost <= 0 {
		return 1
	}
	return b.Cost
}

// Limits holds the per-category quotas and the optional global bucket every
// request is additionally charged against. These are the exchange's published
// constants and are configuration data.
type Limits struct {
	MatchingEngine Bucket `json:"matching_engine" mapstructure:"matching_engine"`
	CancelAll      Bucket `json:"cancel_all" mapstructure:"cancel_all"`
	Public         Bucket `json:"public" mapstructure:"public"`
	Private        Bucket `json:"private" mapstructure:"private"`
	// Global is shared by all categories. Nil disables it.
	Global *Bucket `json:"global,omitempty" mapstructure:"global"`
}

// DefaultLimits returns quotas derived from Deribit's published limits for the
// default account tier. Non-matching-engine requests draw 500 credits from a
// 50000 credit pool refilled at 10000/s, i.e. 20 req/s with a burst of 100.
// Matching-engine requests default to 5 req/s with a burst of 20, and
// mass-cancel is limited to 1 req/s with a burst of 5.
func DefaultLimits() Limits {
	return Limits{
		MatchingEngine: Bucket{Capacity: 20, RefillPerSecond: 5, Cost: 1},
		CancelAll:      Bucket{Capacity: 5, RefillPerSecond: 1, Cost: 1},
		Public:         Bucket{Capacity: 100, RefillPerSecond: 20, Cost: 1},
		Private:        Bucket{Capacity: 50, RefillPerSecond: 10, Cost: 1},
		Global:         &Bucket{Capacity: 120, RefillPerSecond: 25, Cost: 1},
	}
}

// For returns the bucket configuration of a category. Unknown categories
// resolve to DefaultCategory.
func (l Limits) For(c Category) Bucket {
	switch c {
	case CategoryMatchingEngine:
		return l.MatchingEngine
	case CategoryCancelAll:
		return l.CancelAll
	case CategoryPublic:
		return l.Public
	case CategoryPrivate:
		return l.Private
	default:
		return l.For(DefaultCategory)
	}
}

var validate = validator.New()

// Validate checks every bucket and that no request cost exceeds the capacity
// of a bucket it is charged against.
func (l Limits) Validate() error {
	if err := validate.Struct(l); err != nil {
		return err
	}
	for _, c := range Categories() {
		b := l.For(c)
		if b.cost() > b.Capacity {
			return fmt.Errorf("%s: cost %d exceeds capacity %d", c, b.cost(), b.Capacity)
		}
		if l.Global != nil && b.cost() > l.Global.Capacity {
			return fmt.Errorf("%s: cost %d exceeds global capacity %d", c, b.cost(), l.Global.Capacity)
		}
	}
	return nil
}
