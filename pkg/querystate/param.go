package querystate

import (
	"github.com/vango-dev/querystate/pkg/options"
	"github.com/vango-dev/querystate/pkg/parsers"
	"github.com/vango-dev/querystate/pkg/queue"
)

// Param is a typed binding for a single key.
type Param[T any] struct {
	binding *Binding
	key     string
}

// Use binds a single key with a typed parser.
func Use[T any](rt *Runtime, key string, p parsers.Parser[T], opts ...BindOption) *Param[T] {
	return &Param[T]{
		binding: rt.Bind(Keys{key: p}, opts...),
		key:     key,
	}
}

// Get returns the value and whether the key resolves to one, either from the
// URL or from the parser's default.
func (p *Param[T]) Get() (T, bool) {
	v, ok := p.binding.State()[p.key].(T)
	return v, ok
}

// Value returns the value, or the zero value of T.
func (p *Param[T]) Value() T {
	v, _ := p.Get()
	return v
}

// Set writes v.
func (p *Param[T]) Set(v T, opts ...options.Options) *queue.Future {
	return p.binding.Set(p.key, v, opts...)
}

// Remove removes the key from the URL.
func (p *Param[T]) Remove(opts ...options.Options) *queue.Future {
	return p.binding.Set(p.key, nil, opts...)
}

// Update writes fn applied to the current value.
func (p *Param[T]) Update(fn func(T) T, opts ...options.Options) *queue.Future {
	return p.binding.Update(func(s State) Values {
		cur, _ := s[p.key].(T)
		return Values{p.key: fn(cur)}
	}, opts...)
}

// Binding returns the underlying binding.
func (p *Param[T]) Binding() *Binding { return p.binding }

// Close detaches the parameter.
func (p *Param[T]) Close() { p.binding.Close() }
