package ratelimit

import "strings"

// Category identifies one of Deribit's published rate limit buckets.
type Category int

// Category constants. The set is closed; every path maps to exactly one.
const (
	// CategoryMatchingEngine covers order mutations handled by the matching
	// engine (buy, sell, edit, cancel, close_position, mass_quote).
	CategoryMatchingEngine Category = iota
	// CategoryCancelAll covers the mass-cancel family, which carries the
	// tightest quota.
	CategoryCancelAll
	// CategoryPublic covers non-matching-engine public requests.
	CategoryPublic
	// CategoryPrivate covers non-matching-engine private requests.
	CategoryPrivate
)

// DefaultCategory is assigned to paths no rule recognizes. It is the most
// restrictive non-matching-engine bucket so that unknown endpoints stay throttled.
const DefaultCategory = CategoryPrivate

var categoryNames = [...]string{
	"matching_engine",
	"cancel_all",
	"public",
	"private",
}

// String returns the category name used in logs and metric labels.
func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return "unknown"
	}
	return categoryNames[c]
}

// Valid reports whether c is a member of the closed category set.
func (c Category) Valid() bool {
	return c >= 0 && int(c) < len(categoryNames)
}

// Categories returns every category in declaration order.
func Categories() []Category {
	return []Category{
		CategoryMatchingEngine,
		CategoryCancelAll,
		CategoryPublic,
		CategoryPrivate,
	}
}

// matchingEngineMethods are the private methods routed to the matching engine.
// Matched against the final path segment.
var matchingEngineMethods = map[string]struct{}{
	"buy":             {},
	"sell":            {},
	"edit":            {},
	"edit_by_label":   {},
	"cancel":          {},
	"cancel_by_label": {},
	"cancel_quotes":   {},
	"close_position":  {},
	"mass_quote":      {},
}

// Classify maps a request path to its rate limit category. It is pure and
// total: unrecognized paths return DefaultCategory. Rules are evaluated
// most-specific-first so mass-cancel never falls into the generic trading bucket.
func Classify(path string) Category {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}

	switch {
	case strings.Contains(path, "/private/cancel_all"):
		return CategoryCancelAll
	case isMatchingEngine(path):
		return CategoryMatchingEngine
	case strings.Contains(path, "/public/"):
		return CategoryPublic
	case strings.Contains(path, "/private/"):
		return CategoryPrivate
	default:
		return DefaultCategory
	}
}

func isMatchingEngine(path string) bool {
	i := strings.LastIndex(path, "/private/")
	if i < 0 {
		return false
	}
	method := strings.TrimSuffix(path[i+len("/private/"):], "/")
	_, ok := matchingEngineMethods[method]
	return ok
}
