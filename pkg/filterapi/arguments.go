package filterapi

import (
	"errors"
	"fmt"

	"latticecore/pkg/datagraph"
	"latticecore/pkg/datastore"
)

var (
	// ErrMissingArgument is returned by typed accessors for absent keys.
	ErrMissingArgument = errors.New("filterapi: argument missing")
	// ErrArgumentType is returned when an argument holds another type.
	ErrArgumentType = errors.New("filterapi: argument has wrong type")
)

// Arguments is an insertion-ordered bag of argument values keyed by
// parameter key.
type Arguments struct {
	keys   []string
	values map[string]any
}

// NewArguments returns an empty bag.
func NewArguments() *Arguments {
	return &Arguments{values: make(map[string]any)}
}

// Set stores value under key, keeping the original position of existing
// keys. It returns a for chaining.
func (a *Arguments) Set(key string, value any) *Arguments {
	if a.values == nil {
		a.values = make(map[string]any)
	}
	if _, ok := a.values[key]; !ok {
		a.keys = append(a.keys, key)
	}
	a.values[key] = value
	return a
}

// Get returns the raw value stored under key.
func (a *Arguments) Get(key string) (any, bool) {
	if a == nil {
		return nil, false
	}
	v, ok := a.values[key]
	return v, ok
}

// Has reports whether key is present.
func (a *Arguments) Has(key string) bool {
	_, ok := a.Get(key)
	return ok
}

// Keys returns the keys in insertion order.
func (a *Arguments) Keys() []string {
	if a == nil {
		return nil
	}
	return append([]string(nil), a.keys...)
}

// Len returns the number of entries.
func (a *Arguments) Len() int {
	if a == nil {
		return 0
	}
	return len(a.keys)
}

// Clone returns a shallow copy; values are shared.
func (a *Arguments) Clone() *Arguments {
	out := NewArguments()
	if a == nil {
		return out
	}
	for _, k := range a.keys {
		out.Set(k, a.values[k])
	}
	return out
}

// Value returns the argument under key as T.
func Value[T any](a *Arguments, key string) (T, error) {
	var zero T
	raw, ok := a.Get(key)
	if !ok {
		return zero, fmt.Errorf("%w: %q", ErrMissingArgument, key)
	}
	v, ok := raw.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %q holds %T, want %T", ErrArgumentType, key, raw, zero)
	}
	return v, nil
}

// Bool returns a validated bool argument.
func (a *Arguments) Bool(key string) (bool, error) { return Value[bool](a, key) }

// Int returns a validated integer argument.
func (a *Arguments) Int(key string) (int64, error) { return Value[int64](a, key) }

// Float returns a validated float argument.
func (a *Arguments) Float(key string) (float64, error) { return Value[float64](a, key) }

// Text returns a validated string argument.
func (a *Arguments) Text(key string) (string, error) { return Value[string](a, key) }

// Choice returns a validated choice index.
func (a *Arguments) Choice(key string) (int, error) { return Value[int](a, key) }

// Path returns a validated data path argument.
func (a *Arguments) Path(key string) (datagraph.Path, error) { return Value[datagraph.Path](a, key) }

// DataType returns a validated element type argument.
func (a *Arguments) DataType(key string) (datastore.DataType, error) {
	return Value[datastore.DataType](a, key)
}

// Shape returns a validated shape argument.
func (a *Arguments) Shape(key string) (datastore.Shape, error) { return Value[datastore.Shape](a, key) }

// Vector returns a validated numeric vector argument.
func (a *Arguments) Vector(key string) ([]float64, error) { return Value[[]float64](a, key) }
