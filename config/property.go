// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"context"
	"fmt"

	"github.com/z5labs/evalrun/internal/try"
)

// ConversionError occurs when a raw property value can not be converted
// into the property type.
type ConversionError struct {
	Key   string
	Raw   string
	Cause error
}

// Error implements the error interface.
func (e ConversionError) Error() string {
	return fmt.Sprintf("failed to convert value %q for property %s: %s", e.Raw, e.Key, e.Cause)
}

// Unwrap implements the implicit interface used by errors.Is and errors.As.
func (e ConversionError) Unwrap() error {
	return e.Cause
}

// Property is a named, typed configuration slot.
type Property[T any] struct {
	key  string
	conv Converter[T]
	def  Value[T]
	cur  Value[T]
}

// PropertyOption configures a [Property] when it is declared.
type PropertyOption[T any] func(*Property[T])

// WithDefault sets the value a [Property] reports until it is set.
func WithDefault[T any](v T) PropertyOption[T] {
	return func(p *Property[T]) {
		p.def = ValueOf(v)
	}
}

// Declare creates a [Property] and appends it to r. Keys are not
// deduplicated, see [Registry.Lookup].
func Declare[T any](r *Registry, key string, conv Converter[T], opts ...PropertyOption[T]) *Property[T] {
	p := &Property[T]{
		key:  key,
		conv: conv,
	}
	for _, opt := range opts {
		opt(p)
	}
	r.Register(p)
	return p
}

// Key returns the property key.
func (p *Property[T]) Key() string {
	return p.key
}

// TrySet converts raw and stores the result. On failure the current
// value is left untouched and a [ConversionError] is returned.
func (p *Property[T]) TrySet(raw string) error {
	v, err := p.convert(raw)
	if err != nil {
		return ConversionError{Key: p.key, Raw: raw, Cause: err}
	}
	p.cur = ValueOf(v)
	return nil
}

func (p *Property[T]) convert(raw string) (_ T, err error) {
	defer try.Recover(&err)
	return p.conv(raw)
}

// Set is like [Property.TrySet] but only reports whether the value was stored.
func (p *Property[T]) Set(raw string) bool {
	return p.TrySet(raw) == nil
}

// Value returns the current value, or the default if the property was
// never set. The bool is false if neither exists.
func (p *Property[T]) Value() (T, bool) {
	if v, ok := p.cur.Value(); ok {
		return v, true
	}
	return p.def.Value()
}

// Effective returns [Property.Value] as an untyped value.
func (p *Property[T]) Effective() (any, bool) {
	return p.Value()
}

// Read implements the [Reader] interface.
func (p *Property[T]) Read(ctx context.Context) (Value[T], error) {
	v, ok := p.Value()
	if !ok {
		return Value[T]{}, nil
	}
	return ValueOf(v), nil
}

// String implements the [fmt.Stringer] interface.
func (p *Property[T]) String() string {
	if v, ok := p.cur.Value(); ok {
		return fmt.Sprintf("%s = %v", p.key, v)
	}
	if v, ok := p.def.Value(); ok {
		return fmt.Sprintf("%s = %v (default value)", p.key, v)
	}
	return p.key + " = <unset>"
}
