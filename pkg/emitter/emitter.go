// Package emitter is a small typed publish/subscribe registry keyed by topic.
//
// Emit is synchronous: handlers run on the emitting goroutine before Emit
// returns, in registration order. The handler list is snapshotted when Emit
// starts, so handlers may subscribe or unsubscribe while being called without
// affecting the current emission. Nothing is queued or retained; a handler
// that is not registered when Emit runs never sees that payload.
package emitter

import "sync"

// Handler receives payloads emitted on a topic.
type Handler[P any] func(payload P)

// Subscription identifies one registered handler.
type Subscription[K comparable, P any] struct {
	bus     *Bus[K, P]
	key     K
	handler Handler[P]
}

// Cancel removes the handler. It is safe to call more than once.
func (s *Subscription[K, P]) Cancel() {
	if s == nil || s.bus == nil {
		return
	}
	s.bus.Unsubscribe(s)
}

// Bus is a topic-keyed handler registry. The zero value is ready to use.
type Bus[K comparable, P any] struct {
	mu       sync.RWMutex
	handlers map[K][]*Subscription[K, P]
}

// New creates a Bus.
func New[K comparable, P any]() *Bus[K, P] {
	return &Bus[K, P]{}
}

// Subscribe registers handler for key.
func (b *Bus[K, P]) Subscribe(key K, handler Handler[P]) *Subscription[K, P] {
	sub := &Subscription[K, P]{bus: b, key: key, handler: handler}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handlers == nil {
		b.handlers = make(map[K][]*Subscription[K, P])
	}
	b.handlers[sub.key] = append(b.handlers[sub.key], sub)
	return sub
}

// Unsubscribe removes sub. Removing an unknown or already removed
// subscription is a no-op.
func (b *Bus[K, P]) Unsubscribe(sub *Subscription[K, P]) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.handlers[sub.key]
	for i, s := range subs {
		if s != sub {
			continue
		}
		// Copy instead of shifting in place: an in-flight Emit may be
		// iterating over the old slice.
		next := make([]*Subscription[K, P], 0, len(subs)-1)
		next = append(next, subs[:i]...)
		next = append(next, subs[i+1:]...)
		if len(next) == 0 {
			delete(b.handlers, sub.key)
		} else {
			b.handlers[sub.key] = next
		}
		return
	}
}

// Emit calls every handler registered for key with payload.
func (b *Bus[K, P]) Emit(key K, payload P) {
	b.mu.RLock()
	subs := b.handlers[key]
	b.mu.RUnlock()

	for _, s := range subs {
		s.handler(payload)
	}
}

// Count returns the number of handlers registered for key.
func (b *Bus[K, P]) Count(key K) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[key])
}
