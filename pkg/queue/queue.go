// Package queue batches query-string updates and commits them to the URL at
// most once per throttle window.
//
// A Queue is shared by every binding on a page (or server session). Updates
// for the same key overwrite each other until the next flush, and every caller
// in a window receives the same Future:
//
//	q := queue.New()
//	q.Enqueue("lat", 42.0, serialize, opts)
//	q.Enqueue("lng", 12.0, serialize, opts)
//	params, err := q.ScheduleFlush(a, 1).Wait(ctx)
//	// params.Get("lat") == "42", params.Get("lng") == "12"
package queue

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/url"
	"reflect"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/querystate/internal/clock"
	"github.com/vango-dev/querystate/internal/errors"
	"github.com/vango-dev/querystate/pkg/adapter"
	"github.com/vango-dev/querystate/pkg/options"
)

const tracerName = "github.com/vango-dev/querystate/pkg/queue"

// ErrReset settles the Future of a window discarded by Reset.
var ErrReset = stderrors.New("queue: reset before flush")

// Update is one pending write. Remove marks a tombstone.
type Update struct {
	Query   string
	Remove  bool
	Options options.Resolved
}

// Queue accumulates pending updates and flushes them through an adapter.
// It is safe for concurrent use.
type Queue struct {
	clock    clock.Clock
	logger   *slog.Logger
	tracer   trace.Tracer
	observer Observer

	// flushMu orders commits so each one reads the URL left by the previous.
	// It is always acquired before mu.
	flushMu sync.Mutex

	mu          sync.Mutex
	pending     map[string]Update
	order       []string
	inflight    map[string]Update
	future      *Future
	timer       clock.Timer
	windowStart time.Time
	lastFlush   time.Time
}

// Option configures a Queue.
type Option func(*Queue)

// WithClock sets the clock driving the throttle timer.
func WithClock(c clock.Clock) Option {
	return func(q *Queue) {
		q.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) {
		q.logger = l
	}
}

// WithTracer sets the tracer used for flush spans.
func WithTracer(t trace.Tracer) Option {
	return func(q *Queue) {
		q.tracer = t
	}
}

// WithObserver sets the observer notified of queue activity.
func WithObserver(o Observer) Option {
	return func(q *Queue) {
		q.observer = o
	}
}

// New creates a Queue.
func New(opts ...Option) *Queue {
	q := &Queue{
		pending: make(map[string]Update),
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.clock == nil {
		q.clock = clock.Real()
	}
	if q.logger == nil {
		q.logger = slog.Default().With("component", "queue")
	}
	if q.tracer == nil {
		q.tracer = otel.Tracer(tracerName)
	}
	if q.observer == nil {
		q.observer = nopObserver{}
	}
	return q
}

// Enqueue serializes value and stores it as the pending update for key,
// replacing any earlier one. A nil value queues the key for removal.
// It returns the serialized form (ok is false for a removal) so callers can
// update local caches before the flush.
func (q *Queue) Enqueue(key string, value any, serialize func(any) (string, error), opts options.Resolved) (query string, ok bool, err error) {
	if value != nil {
		query, err = serialize(value)
		if err != nil {
			return "", false, err
		}
		ok = true
	}

	q.mu.Lock()
	if _, exists := q.pending[key]; !exists {
		q.order = append(q.order, key)
	}
	q.pending[key] = Update{Query: query, Remove: !ok, Options: opts}
	q.mu.Unlock()

	q.logger.Debug("enqueue",
		"key", key,
		"value", query,
		"remove", !ok,
		"history", opts.History.String(),
		"shallow", opts.Shallow,
		"throttle", opts.Throttle,
	)
	q.observer.Enqueued(key, !ok)
	return query, ok, nil
}

// Pending returns the queued value for key, including a value whose flush
// is in progress. queued is false when nothing is pending; ok is false when
// the key is queued for removal.
func (q *Queue) Pending(key string) (query string, ok bool, queued bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	u, queued := q.pending[key]
	if !queued {
		u, queued = q.inflight[key]
	}
	if !queued {
		return "", false, false
	}
	return u.Query, !u.Remove, true
}

// Len returns the number of pending keys.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// ScheduleFlush returns the Future of the current window, opening a new
// window if none is open. The commit runs on a later timer tick, after at
// least throttle*rateLimitFactor has elapsed since the previous flush, where
// throttle is the largest interval requested by the window's updates.
func (q *Queue) ScheduleFlush(a adapter.Adapter, rateLimitFactor float64) *Future {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.future != nil {
		return q.future
	}
	if a == nil {
		f := newFuture()
		f.settle(nil, errors.New("E302"))
		return f
	}
	if rateLimitFactor <= 0 {
		rateLimitFactor = 1
	}

	f := newFuture()
	q.future = f
	q.windowStart = q.clock.Now()
	// Planning is deferred to the next tick so updates issued right after
	// this call still join the window and contribute their throttle.
	q.timer = q.clock.AfterFunc(0, func() {
		q.plan(f, a, rateLimitFactor)
	})
	return f
}

// Reset discards pending updates and the flush timestamp. An open window's
// Future settles with ErrReset.
func (q *Queue) Reset() {
	q.mu.Lock()
	f := q.future
	if q.timer != nil {
		q.timer.Stop()
	}
	q.pending = make(map[string]Update)
	q.order = nil
	q.inflight = nil
	q.future = nil
	q.timer = nil
	q.lastFlush = time.Time{}
	q.mu.Unlock()

	if f != nil {
		f.settle(nil, ErrReset)
	}
}

func (q *Queue) plan(f *Future, a adapter.Adapter, factor float64) {
	q.mu.Lock()
	if q.future != f {
		q.mu.Unlock()
		return
	}

	var throttle time.Duration
	for _, u := range q.pending {
		if u.Options.Throttle > throttle {
			throttle = u.Options.Throttle
		}
	}
	delay := time.Duration(float64(throttle) * factor)
	if !q.lastFlush.IsZero() {
		delay -= q.clock.Now().Sub(q.lastFlush)
	} else {
		delay = 0
	}

	if delay <= 0 {
		q.mu.Unlock()
		q.commit(f, a)
		return
	}
	q.logger.Debug("flush scheduled", "in", delay, "throttle", throttle, "factor", factor)
	q.timer = q.clock.AfterFunc(delay, func() {
		q.commit(f, a)
	})
	q.mu.Unlock()
}

// commit takes the pending batch and settles f with the committed params.
func (q *Queue) commit(f *Future, a adapter.Adapter) {
	q.flushMu.Lock()
	defer q.flushMu.Unlock()

	q.mu.Lock()
	if q.future != f {
		q.mu.Unlock()
		return
	}
	// Pending map and cached Future are cleared together: an Enqueue that
	// runs after this point belongs to the next window.
	items, order := q.pending, q.order
	q.pending = make(map[string]Update)
	q.order = nil
	q.future = nil
	q.timer = nil
	now := q.clock.Now()
	wait := now.Sub(q.windowStart)
	q.lastFlush = now
	q.inflight = items
	q.mu.Unlock()

	params, err := q.apply(a, order, items)

	q.mu.Lock()
	q.inflight = nil
	q.mu.Unlock()
	q.observer.Flushed(len(items), wait, err)
	f.settle(params, err)
}

func (q *Queue) apply(a adapter.Adapter, order []string, items map[string]Update) (url.Values, error) {
	params := adapter.Clone(a.SearchParams())
	if len(items) == 0 {
		return params, nil
	}

	navs := make([]options.Navigation, 0, len(order))
	var transitions []options.Transition
	for _, key := range order {
		u := items[key]
		if u.Remove {
			params.Del(key)
		} else {
			params.Set(key, u.Query)
		}
		navs = append(navs, u.Options.Navigation())
		if u.Options.Transition != nil {
			transitions = appendTransition(transitions, u.Options.Transition)
		}
	}
	nav := options.Combine(navs...)

	ctx, span := q.tracer.Start(context.Background(), "querystate.flush",
		trace.WithAttributes(
			attribute.Int("querystate.keys", len(order)),
			attribute.StringSlice("querystate.key_names", order),
			attribute.String("querystate.history", nav.History.String()),
			attribute.Bool("querystate.shallow", nav.Shallow),
			attribute.Bool("querystate.scroll", nav.Scroll),
		),
	)
	defer span.End()

	q.logger.Debug("flush",
		"keys", order,
		"query", params.Encode(),
		"history", nav.History.String(),
		"shallow", nav.Shallow,
		"scroll", nav.Scroll,
	)

	if err := navigate(ctx, a, params, nav, transitions, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		q.logger.Error("flush failed", "keys", order, "error", err)
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return params, nil
}

// navigate runs the adapter call inside the composed transitions.
func navigate(ctx context.Context, a adapter.Adapter, params url.Values, nav options.Navigation, transitions []options.Transition, keys []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("E301").WithKey(keys...).Wrap(fmt.Errorf("%v", r))
		}
	}()

	run := func() {
		if uerr := a.UpdateURL(ctx, params, nav); uerr != nil {
			err = errors.New("E300").WithKey(keys...).Wrap(uerr)
		}
	}
	for i := len(transitions) - 1; i >= 0; i-- {
		t, inner := transitions[i], run
		run = func() { t.Start(inner) }
	}
	run()
	return err
}

// appendTransition adds t unless an equal, comparable transition is present.
func appendTransition(list []options.Transition, t options.Transition) []options.Transition {
	typ := reflect.TypeOf(t)
	if typ.Comparable() {
		for _, existing := range list {
			if reflect.TypeOf(existing) == typ && existing == t {
				return list
			}
		}
	}
	return append(list, t)
}
