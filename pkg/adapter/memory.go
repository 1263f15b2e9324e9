package adapter

import (
	"context"
	"net/url"
	"sync"

	"github.com/vango-dev/querystate/pkg/options"
)

// Call records one UpdateURL invocation on a Memory adapter.
type Call struct {
	Params     url.Values
	Navigation options.Navigation
}

// Memory is an in-process Adapter that keeps a browser-like history stack.
// It is safe for concurrent use and implements RateLimiter and Watcher.
type Memory struct {
	mu       sync.Mutex
	entries  []url.Values
	index    int
	calls    []Call
	failNext error
	factor   float64

	watchMu  sync.Mutex
	watchers map[uint64]func(url.Values)
	nextID   uint64
}

// MemoryOption configures a Memory adapter.
type MemoryOption func(*Memory)

// WithRateLimitFactor sets the factor returned by RateLimitFactor.
func WithRateLimitFactor(f float64) MemoryOption {
	return func(m *Memory) {
		m.factor = f
	}
}

// NewMemory creates a Memory adapter whose single history entry is initial.
func NewMemory(initial url.Values, opts ...MemoryOption) *Memory {
	m := &Memory{
		entries:  []url.Values{Clone(initial)},
		factor:   1,
		watchers: make(map[uint64]func(url.Values)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewMemoryFromQuery creates a Memory adapter from a raw query string.
func NewMemoryFromQuery(rawQuery string, opts ...MemoryOption) (*Memory, error) {
	v, err := url.ParseQuery(rawQuery)
	if err != nil {
		return nil, err
	}
	return NewMemory(v, opts...), nil
}

// SearchParams returns a copy of the current entry.
func (m *Memory) SearchParams() url.Values {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Clone(m.entries[m.index])
}

// UpdateURL pushes or replaces the current entry with params.
func (m *Memory) UpdateURL(ctx context.Context, params url.Values, nav options.Navigation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	if err := m.failNext; err != nil {
		m.failNext = nil
		m.mu.Unlock()
		return err
	}
	next := Clone(params)
	if nav.History == options.HistoryPush {
		// Pushing drops any forward entries, like a browser.
		m.entries = append(m.entries[:m.index+1], next)
		m.index++
	} else {
		m.entries[m.index] = next
	}
	m.calls = append(m.calls, Call{Params: Clone(params), Navigation: nav})
	m.mu.Unlock()

	m.notify(next)
	return nil
}

// RateLimitFactor implements RateLimiter.
func (m *Memory) RateLimitFactor() float64 {
	return m.factor
}

// Watch implements Watcher.
func (m *Memory) Watch(fn func(url.Values)) func() {
	m.watchMu.Lock()
	m.nextID++
	id := m.nextID
	m.watchers[id] = fn
	m.watchMu.Unlock()

	return func() {
		m.watchMu.Lock()
		delete(m.watchers, id)
		m.watchMu.Unlock()
	}
}

// Back moves to the previous history entry, as the browser back button does.
// It reports whether there was an entry to move to.
func (m *Memory) Back() bool {
	return m.move(-1)
}

// Forward moves to the next history entry.
func (m *Memory) Forward() bool {
	return m.move(1)
}

func (m *Memory) move(delta int) bool {
	m.mu.Lock()
	target := m.index + delta
	if target < 0 || target >= len(m.entries) {
		m.mu.Unlock()
		return false
	}
	m.index = target
	current := Clone(m.entries[target])
	m.mu.Unlock()

	m.notify(current)
	return true
}

// Navigate replaces the URL from outside the queue (e.g. a link click) and
// notifies watchers. It does not record a Call.
func (m *Memory) Navigate(params url.Values, history options.History) {
	m.mu.Lock()
	next := Clone(params)
	if history == options.HistoryPush {
		m.entries = append(m.entries[:m.index+1], next)
		m.index++
	} else {
		m.entries[m.index] = next
	}
	m.mu.Unlock()

	m.notify(Clone(next))
}

// FailNext makes the next UpdateURL call return err without changing state.
func (m *Memory) FailNext(err error) {
	m.mu.Lock()
	m.failNext = err
	m.mu.Unlock()
}

// Calls returns the recorded UpdateURL calls.
func (m *Memory) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// Len returns the number of history entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) notify(params url.Values) {
	m.watchMu.Lock()
	fns := make([]func(url.Values), 0, len(m.watchers))
	for _, fn := range m.watchers {
		fns = append(fns, fn)
	}
	m.watchMu.Unlock()

	for _, fn := range fns {
		fn(Clone(params))
	}
}
