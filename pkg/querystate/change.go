package querystate

import (
	"maps"

	"github.com/vango-dev/querystate/pkg/options"
)

// KeyParser is the type-erased form of a parsers.Parser.
type KeyParser interface {
	ParseAny(s string) (any, error)
	SerializeAny(v any) (string, error)
	EqualAny(a, b any) bool
	DefaultAny() (any, bool)
	Options() options.Options
}

// Keys maps state keys to their parsers.
type Keys map[string]KeyParser

// State holds the resolved value of every key of a binding. Absent keys
// without a default are present with a nil value.
type State map[string]any

// Clone returns a shallow copy of s.
func (s State) Clone() State {
	return maps.Clone(s)
}

// Change describes an update passed to Binding.Apply: Values, an UpdaterFunc
// or ClearAll.
type Change interface {
	values(current State) Values
}

// Values is a partial update. Keys not listed are left unchanged; a nil value
// removes the key from the URL.
type Values map[string]any

func (v Values) values(State) Values { return v }

// UpdaterFunc computes an update from the current state. Returning nil clears
// every key of the binding.
type UpdaterFunc func(current State) Values

func (f UpdaterFunc) values(current State) Values {
	v := f(current)
	if v == nil {
		return ClearAll.values(current)
	}
	return v
}

type clearAll struct{}

func (clearAll) values(current State) Values {
	v := make(Values, len(current))
	for key := range current {
		v[key] = nil
	}
	return v
}

// ClearAll removes every key of the binding from the URL. Keys outside the
// binding are kept.
var ClearAll Change = clearAll{}
