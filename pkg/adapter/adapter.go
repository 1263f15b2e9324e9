// Package adapter defines how query state reaches a concrete navigation
// stack, and provides an in-memory history implementation.
//
// An Adapter exposes the current search parameters and commits a complete
// parameter set in one navigation. Optional interfaces let an adapter scale
// throttle intervals (RateLimiter) and report URL changes it did not initiate,
// such as back/forward navigation (Watcher).
package adapter

import (
	"context"
	"net/url"

	"github.com/vango-dev/querystate/pkg/options"
)

// Adapter binds query state to a navigation stack.
type Adapter interface {
	// SearchParams returns the current query parameters. Callers must not
	// modify the returned value.
	SearchParams() url.Values

	// UpdateURL commits params as the complete query string. The update is
	// all-or-nothing: on error the previous URL must be left in place.
	UpdateURL(ctx context.Context, params url.Values, nav options.Navigation) error
}

// RateLimiter is implemented by adapters that scale every throttle interval,
// e.g. to relax timing in slow environments.
type RateLimiter interface {
	RateLimitFactor() float64
}

// Watcher is implemented by adapters that can report URL changes.
type Watcher interface {
	// Watch registers fn to be called with the new parameters after every
	// URL change. The returned function removes the registration.
	Watch(fn func(url.Values)) (cancel func())
}

// RateLimitFactor returns a's factor if it implements RateLimiter and the
// factor is positive, and 1 otherwise.
func RateLimitFactor(a Adapter) float64 {
	if rl, ok := a.(RateLimiter); ok {
		if f := rl.RateLimitFactor(); f > 0 {
			return f
		}
	}
	return 1
}

// Clone returns a deep copy of v. A nil v yields an empty, non-nil map.
func Clone(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}
