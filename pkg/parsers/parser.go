// Package parsers converts typed values to and from query-string values.
//
// A Parser[T] pairs a parse and a serialize function with an optional
// default, an equality function and per-key navigation options:
//
//	page := parsers.Int.WithDefault(1).WithOptions(options.ClearOnDefault(true))
//	tags := parsers.ArrayOf(parsers.String, ",")
//	filter := parsers.JSON[Filter]()
//
// Parsers are immutable values; every With method returns a copy.
package parsers

import (
	"fmt"
	"reflect"

	"github.com/vango-dev/querystate/internal/errors"
	"github.com/vango-dev/querystate/pkg/options"
)

// Parser converts between T and its query-string form.
type Parser[T any] struct {
	parse      func(string) (T, error)
	serialize  func(T) string
	eq         func(a, b T) bool
	def        T
	hasDefault bool
	opts       options.Options
}

// New creates a Parser from a parse and a serialize function.
func New[T any](parse func(string) (T, error), serialize func(T) string) Parser[T] {
	return Parser[T]{parse: parse, serialize: serialize}
}

// WithDefault returns a copy of p that resolves to v when the key is absent
// or fails to parse.
func (p Parser[T]) WithDefault(v T) Parser[T] {
	p.def = v
	p.hasDefault = true
	return p
}

// WithEqual returns a copy of p using eq to compare values with the default.
func (p Parser[T]) WithEqual(eq func(a, b T) bool) Parser[T] {
	p.eq = eq
	return p
}

// WithOptions returns a copy of p with per-key options merged in.
func (p Parser[T]) WithOptions(opts ...options.Options) Parser[T] {
	p.opts = p.opts.Merge(options.Join(opts...))
	return p
}

// Parse converts a query value to T.
func (p Parser[T]) Parse(s string) (T, error) {
	return p.parse(s)
}

// Serialize converts v to its query value.
func (p Parser[T]) Serialize(v T) string {
	return p.serialize(v)
}

// Equal compares two values with the configured equality, or
// reflect.DeepEqual.
func (p Parser[T]) Equal(a, b T) bool {
	if p.eq != nil {
		return p.eq(a, b)
	}
	return reflect.DeepEqual(a, b)
}

// Default returns the default value and whether one is set.
func (p Parser[T]) Default() (T, bool) {
	return p.def, p.hasDefault
}

// Options returns the per-key options.
func (p Parser[T]) Options() options.Options {
	return p.opts
}

// ParseAny is Parse with the result boxed.
func (p Parser[T]) ParseAny(s string) (any, error) {
	v, err := p.parse(s)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// SerializeAny serializes v, which must hold a T.
func (p Parser[T]) SerializeAny(v any) (string, error) {
	t, ok := v.(T)
	if !ok {
		var zero T
		return "", errors.New("E201").WithDetail(fmt.Sprintf("got %T, want %T", v, zero))
	}
	return p.serialize(t), nil
}

// EqualAny compares two boxed values. Values that do not hold a T are
// never equal.
func (p Parser[T]) EqualAny(a, b any) bool {
	ta, ok := a.(T)
	if !ok {
		return false
	}
	tb, ok := b.(T)
	if !ok {
		return false
	}
	return p.Equal(ta, tb)
}

// DefaultAny is Default with the value boxed.
func (p Parser[T]) DefaultAny() (any, bool) {
	if !p.hasDefault {
		return nil, false
	}
	return p.def, true
}
