// Package querystate binds typed state to URL query parameters.
//
// A Runtime owns the update queue, the event bus and the adapter for one page
// or session. Bindings created from it read their state from the URL (or from
// writes still waiting in the queue), write through the queue, and keep each
// other in sync through the bus before the URL is updated:
//
//	rt := querystate.NewRuntime(adapter.NewMemory(nil))
//	coords := rt.Bind(querystate.Keys{
//		"lat": parsers.Float.WithDefault(45.18),
//		"lng": parsers.Float.WithDefault(5.72),
//	})
//	f := coords.Apply(querystate.Values{"lat": 48.8566, "lng": 2.3522})
//	params, err := f.Wait(ctx)
package querystate

import (
	"log/slog"

	"github.com/vango-dev/querystate/pkg/adapter"
	"github.com/vango-dev/querystate/pkg/emitter"
	"github.com/vango-dev/querystate/pkg/options"
	"github.com/vango-dev/querystate/pkg/queue"
)

// SyncPayload is broadcast on the bus, keyed by URL key, whenever a binding
// writes a value. State is the written value (nil for a removal) and Query its
// serialized form.
type SyncPayload struct {
	State   any
	Query   string
	Present bool
}

// Bus is the event bus type shared by the bindings of a Runtime.
type Bus = emitter.Bus[string, SyncPayload]

// Runtime bundles the shared machinery of one page or session.
type Runtime struct {
	adapter  adapter.Adapter
	queue    *queue.Queue
	bus      *Bus
	logger   *slog.Logger
	defaults options.Options
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithQueue sets the update queue. By default a new queue with the real clock
// is used.
func WithQueue(q *queue.Queue) RuntimeOption {
	return func(rt *Runtime) {
		rt.queue = q
	}
}

// WithBus sets the event bus.
func WithBus(b *Bus) RuntimeOption {
	return func(rt *Runtime) {
		rt.bus = b
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) RuntimeOption {
	return func(rt *Runtime) {
		rt.logger = l
	}
}

// WithDefaults sets options applied below every group, key and call layer.
func WithDefaults(opts ...options.Options) RuntimeOption {
	return func(rt *Runtime) {
		rt.defaults = options.Join(opts...)
	}
}

// NewRuntime creates a Runtime writing through a.
func NewRuntime(a adapter.Adapter, opts ...RuntimeOption) *Runtime {
	rt := &Runtime{adapter: a}
	for _, opt := range opts {
		opt(rt)
	}
	base := rt.logger
	if base == nil {
		base = slog.Default()
	}
	rt.logger = base.With("component", "querystate")
	if rt.queue == nil {
		rt.queue = queue.New(queue.WithLogger(base.With("component", "queue")))
	}
	if rt.bus == nil {
		rt.bus = emitter.New[string, SyncPayload]()
	}
	return rt
}

// Adapter returns the adapter.
func (rt *Runtime) Adapter() adapter.Adapter { return rt.adapter }

// Queue returns the update queue.
func (rt *Runtime) Queue() *queue.Queue { return rt.queue }

// Bus returns the event bus.
func (rt *Runtime) Bus() *Bus { return rt.bus }

func (rt *Runtime) scheduleFlush() *queue.Future {
	return rt.queue.ScheduleFlush(rt.adapter, adapter.RateLimitFactor(rt.adapter))
}
