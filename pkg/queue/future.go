package queue

import (
	"context"
	"net/url"
	"sync"

	"github.com/vango-dev/querystate/pkg/adapter"
)

// Future is the pending result of one flush window. Every update issued
// before the window's flush shares the same Future; it settles exactly once.
type Future struct {
	done   chan struct{}
	once   sync.Once
	params url.Values
	err    error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolved returns a Future that has already settled with params.
func Resolved(params url.Values) *Future {
	f := newFuture()
	f.settle(params, nil)
	return f
}

// Done returns a channel closed once the Future settles.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the flush commits or ctx is done. It returns the query
// parameters as committed, or the flush error.
func (f *Future) Wait(ctx context.Context) (url.Values, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-f.done:
		return f.Result()
	}
}

// Result returns the settled value without blocking. Before the Future
// settles it returns nil, nil.
func (f *Future) Result() (url.Values, error) {
	select {
	case <-f.done:
	default:
		return nil, nil
	}
	if f.err != nil {
		return nil, f.err
	}
	return adapter.Clone(f.params), nil
}

// Settled reports whether the Future has settled.
func (f *Future) Settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

func (f *Future) settle(params url.Values, err error) {
	f.once.Do(func() {
		f.params = params
		f.err = err
		close(f.done)
	})
}
