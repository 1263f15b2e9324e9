// Package options defines the navigation options applied when query state is
// written to the URL, and how they are layered.
//
// Options can be set at three levels: per group of keys, per key, and per
// update call. Unset fields fall through to the next weaker layer:
//
//	resolved := options.Resolve(call, key, group)
//	eq := options.ResolveEqual(call, key, group)
//
// The zero value of Options sets nothing.
package options

import (
	"fmt"
	"strings"
	"time"

	layering "github.com/goliatone/go-options/layering"
)

// DefaultThrottle is the minimum interval between two URL updates when no
// layer sets one. Browsers rate-limit the History API, so updates closer than
// this are merged into a single navigation.
const DefaultThrottle = 50 * time.Millisecond

// History determines how a URL update is recorded.
type History int

const (
	// HistoryReplace replaces the current history entry (default).
	HistoryReplace History = iota

	// HistoryPush adds a new history entry.
	HistoryPush
)

// String returns "replace" or "push".
func (h History) String() string {
	if h == HistoryPush {
		return "push"
	}
	return "replace"
}

// ParseHistory parses "push" or "replace" (case-insensitive).
func ParseHistory(s string) (History, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "push":
		return HistoryPush, nil
	case "replace", "":
		return HistoryReplace, nil
	default:
		return HistoryReplace, fmt.Errorf("options: unknown history mode %q", s)
	}
}

// Transition defers the visible part of a URL update, e.g. to let a renderer
// mark it as low priority. Start must call apply exactly once.
type Transition interface {
	Start(apply func())
}

// TransitionFunc adapts a function to Transition.
type TransitionFunc func(apply func())

// Start calls f(apply).
func (f TransitionFunc) Start(apply func()) { f(apply) }

// Options is a partial set of options. Nil fields are unset.
type Options struct {
	History        *History
	Shallow        *bool
	Scroll         *bool
	Throttle       *time.Duration
	ClearOnDefault *bool
	Transition     Transition

	// Equal compares a new value with the key's default when ClearOnDefault is
	// active. It is resolved with ResolveEqual, not Resolve.
	Equal func(a, b any) bool
}

// Resolved is a fully populated set of options.
type Resolved struct {
	History        History
	Shallow        bool
	Scroll         bool
	Throttle       time.Duration
	ClearOnDefault bool
	Transition     Transition
}

// Navigation is the subset of options an adapter honors when committing a
// URL update.
type Navigation struct {
	History History
	Shallow bool
	Scroll  bool
}

// Defaults returns the options used when no layer sets a field:
// replace history, shallow, no scroll, DefaultThrottle.
func Defaults() Resolved {
	return Resolved{
		History:  HistoryReplace,
		Shallow:  true,
		Scroll:   false,
		Throttle: DefaultThrottle,
	}
}

func (r Resolved) layer() Options {
	return Options{
		History:        &r.History,
		Shallow:        &r.Shallow,
		Scroll:         &r.Scroll,
		Throttle:       &r.Throttle,
		ClearOnDefault: &r.ClearOnDefault,
		Transition:     r.Transition,
	}
}

// Resolve merges layers ordered from strongest to weakest on top of
// Defaults. Any field set in a stronger layer wins.
func Resolve(layers ...Options) Resolved {
	all := make([]Options, 0, len(layers)+1)
	all = append(all, layers...)
	all = append(all, Defaults().layer())
	m := merge(all...)

	r := Resolved{
		History:        *m.History,
		Shallow:        *m.Shallow,
		Scroll:         *m.Scroll,
		Throttle:       *m.Throttle,
		ClearOnDefault: *m.ClearOnDefault,
		Transition:     m.Transition,
	}
	if r.Throttle < 0 {
		r.Throttle = 0
	}
	return r
}

// ResolveEqual returns the Equal of the strongest layer that sets one, or nil.
func ResolveEqual(layers ...Options) func(a, b any) bool {
	for _, l := range layers {
		if l.Equal != nil {
			return l.Equal
		}
	}
	return nil
}

// Merge returns o with every field set in other overriding it.
func (o Options) Merge(other Options) Options {
	return merge(other, o)
}

// merge combines layers ordered from strongest to weakest. Pointer fields go
// through layering.MergeLayers. Transition and Equal come from the strongest
// layer that sets them.
func merge(layers ...Options) Options {
	if len(layers) == 0 {
		return Options{}
	}
	plain := make([]Options, len(layers))
	for i, l := range layers {
		l.Transition, l.Equal = nil, nil
		plain[i] = l
	}
	out := layering.MergeLayers(plain...)
	for _, l := range layers {
		if out.Transition == nil && l.Transition != nil {
			out.Transition = l.Transition
		}
		if out.Equal == nil && l.Equal != nil {
			out.Equal = l.Equal
		}
	}
	return out
}

// Navigation returns the adapter-facing subset of r.
func (r Resolved) Navigation() Navigation {
	return Navigation{History: r.History, Shallow: r.Shallow, Scroll: r.Scroll}
}

// Combine merges the navigation requirements of several updates into one:
// push beats replace, a full (non-shallow) update beats a shallow one, and
// scrolling beats not scrolling. The zero-length case yields the defaults.
func Combine(navs ...Navigation) Navigation {
	out := Defaults().Navigation()
	for _, n := range navs {
		if n.History == HistoryPush {
			out.History = HistoryPush
		}
		if !n.Shallow {
			out.Shallow = false
		}
		if n.Scroll {
			out.Scroll = true
		}
	}
	return out
}
