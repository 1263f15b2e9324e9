package querystate

import (
	"log/slog"
	"net/url"
	"slices"
	"sort"
	"sync"

	"github.com/vango-dev/querystate/internal/errors"
	"github.com/vango-dev/querystate/pkg/adapter"
	"github.com/vango-dev/querystate/pkg/emitter"
	"github.com/vango-dev/querystate/pkg/options"
	"github.com/vango-dev/querystate/pkg/queue"
)

// BindOption configures a Binding.
type BindOption func(*Binding)

// WithOptions sets group-level options for every key of the binding.
func WithOptions(opts ...options.Options) BindOption {
	return func(b *Binding) {
		b.group = b.group.Merge(options.Join(opts...))
	}
}

// WithURLKeys maps state keys to different URL keys, e.g. "latitude" to "lat".
// Unmapped keys use the state key.
func WithURLKeys(m map[string]string) BindOption {
	return func(b *Binding) {
		for k, v := range m {
			b.urlKeys[k] = v
		}
	}
}

// WithOnChange registers fn to be called with the new state whenever the
// resolved state changes, whether by a local write, a write from another
// binding, or an external navigation.
func WithOnChange(fn func(State)) BindOption {
	return func(b *Binding) {
		b.onChange = fn
	}
}

type query struct {
	value   string
	present bool
}

// Binding manages a set of keys for one consumer.
type Binding struct {
	rt       *Runtime
	keys     Keys
	names    []string
	urlKeys  map[string]string
	group    options.Options
	onChange func(State)
	logger   *slog.Logger

	mu      sync.Mutex
	seen    map[string]query
	values  State
	subs    []*emitter.Subscription[string, SyncPayload]
	unwatch func()
	closed  bool
}

// Bind creates a Binding for keys. The initial state is derived from the URL
// and the queue before Bind returns.
func (rt *Runtime) Bind(keys Keys, opts ...BindOption) *Binding {
	b := &Binding{
		rt:      rt,
		keys:    keys,
		urlKeys: make(map[string]string, len(keys)),
		logger:  rt.logger,
		seen:    make(map[string]query, len(keys)),
		values:  make(State, len(keys)),
	}
	for name := range keys {
		b.names = append(b.names, name)
	}
	sort.Strings(b.names)
	for _, opt := range opts {
		opt(b)
	}

	b.mu.Lock()
	b.deriveLocked(b.rt.adapter.SearchParams(), true)
	b.mu.Unlock()

	for _, name := range b.names {
		b.subs = append(b.subs, rt.bus.Subscribe(b.urlKey(name), func(p SyncPayload) {
			b.receive(name, p)
		}))
	}
	if w, ok := rt.adapter.(adapter.Watcher); ok {
		b.unwatch = w.Watch(func(params url.Values) {
			b.sync(params)
		})
	}
	return b
}

// Keys returns the state keys of the binding in sorted order.
func (b *Binding) Keys() []string {
	return slices.Clone(b.names)
}

func (b *Binding) urlKey(name string) string {
	if k, ok := b.urlKeys[name]; ok {
		return k
	}
	return name
}

// State returns the current resolved state. It picks up URL changes made
// outside the queue.
func (b *Binding) State() State {
	b.Sync()
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.values.Clone()
}

// Sync re-derives the state from the adapter and reports whether it changed.
// Adapters implementing adapter.Watcher trigger it automatically.
func (b *Binding) Sync() bool {
	return b.sync(b.rt.adapter.SearchParams())
}

func (b *Binding) sync(params url.Values) bool {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return false
	}
	changed := b.deriveLocked(params, false)
	state := b.values.Clone()
	b.mu.Unlock()

	if changed {
		b.notify(state)
	}
	return changed
}

// deriveLocked resolves every key from params, preferring values still
// waiting in the queue. Keys whose source did not change keep their cached
// value.
func (b *Binding) deriveLocked(params url.Values, initial bool) bool {
	changed := false
	for _, name := range b.names {
		urlKey := b.urlKey(name)
		var src query
		if v, ok, queued := b.rt.queue.Pending(urlKey); queued {
			src = query{value: v, present: ok}
		} else if params.Has(urlKey) {
			src = query{value: params.Get(urlKey), present: true}
		}

		if prev, ok := b.seen[name]; ok && prev == src && !initial {
			continue
		}
		b.seen[name] = src

		parser := b.keys[name]
		var value any
		if src.present {
			v, err := parser.ParseAny(src.value)
			if err != nil {
				b.logger.Warn("parse failed",
					"key", urlKey,
					"value", src.value,
					"error", errors.New("E200").WithKey(urlKey).Wrap(err),
				)
			} else {
				value = v
			}
		}
		b.values[name] = resolveDefault(parser, value)
		changed = true
	}
	return changed
}

func resolveDefault(p KeyParser, v any) any {
	if v != nil {
		return v
	}
	if def, ok := p.DefaultAny(); ok {
		return def
	}
	return nil
}

type emission struct {
	urlKey  string
	payload SyncPayload
}

// Apply writes change and returns the Future of the flush that will carry it
// to the URL. Other bindings sharing the keys see the new values before Apply
// returns. Unknown keys are ignored.
func (b *Binding) Apply(change Change, opts ...options.Options) *queue.Future {
	call := options.Join(opts...)
	values := change.values(b.State())

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	b.mu.Lock()
	emits := make([]emission, 0, len(names))
	for _, name := range names {
		parser, ok := b.keys[name]
		if !ok {
			b.logger.Debug("ignoring unknown key", "key", name)
			continue
		}
		urlKey := b.urlKey(name)
		value := values[name]
		keyOpts := parser.Options()
		resolved := options.Resolve(call, keyOpts, b.group, b.rt.defaults)

		if resolved.ClearOnDefault && value != nil {
			if def, ok := parser.DefaultAny(); ok && b.equalFunc(call, keyOpts, parser)(value, def) {
				value = nil
			}
		}

		q, present, err := b.rt.queue.Enqueue(urlKey, value, parser.SerializeAny, resolved)
		if err != nil {
			b.logger.Warn("skipping update",
				"key", urlKey,
				"error", err,
			)
			continue
		}
		b.seen[name] = query{value: q, present: present}
		b.values[name] = resolveDefault(parser, value)
		emits = append(emits, emission{
			urlKey:  urlKey,
			payload: SyncPayload{State: value, Query: q, Present: present},
		})
	}
	state := b.values.Clone()
	b.mu.Unlock()

	for _, e := range emits {
		b.rt.bus.Emit(e.urlKey, e.payload)
	}
	if len(emits) > 0 {
		b.notify(state)
	}
	return b.rt.scheduleFlush()
}

// equalFunc returns the equality used for clearOnDefault: the strongest
// options layer that sets one, then the parser's own.
func (b *Binding) equalFunc(call, key options.Options, p KeyParser) func(x, y any) bool {
	if eq := options.ResolveEqual(call, key, b.group, b.rt.defaults); eq != nil {
		return eq
	}
	return p.EqualAny
}

// Set writes a single key.
func (b *Binding) Set(name string, value any, opts ...options.Options) *queue.Future {
	return b.Apply(Values{name: value}, opts...)
}

// Update applies fn to the current state.
func (b *Binding) Update(fn func(State) Values, opts ...options.Options) *queue.Future {
	return b.Apply(UpdaterFunc(fn), opts...)
}

// Clear removes every key of the binding from the URL.
func (b *Binding) Clear(opts ...options.Options) *queue.Future {
	return b.Apply(ClearAll, opts...)
}

// receive handles a payload broadcast for the URL key of name.
func (b *Binding) receive(name string, p SyncPayload) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	next := query{value: p.Query, present: p.Present}
	if prev, ok := b.seen[name]; ok && prev == next {
		b.mu.Unlock()
		return
	}
	b.seen[name] = next
	b.values[name] = resolveDefault(b.keys[name], p.State)
	state := b.values.Clone()
	b.mu.Unlock()

	b.notify(state)
}

func (b *Binding) notify(state State) {
	if b.onChange != nil {
		b.onChange(state)
	}
}

// Close detaches the binding from the bus and the adapter. Writes already
// queued still flush.
func (b *Binding) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	unwatch := b.unwatch
	b.subs = nil
	b.unwatch = nil
	b.mu.Unlock()

	for _, s := range subs {
		s.Cancel()
	}
	if unwatch != nil {
		unwatch()
	}
}
