// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"github.com/mitchellh/mapstructure"
)

// Descriptor is the untyped view of a [Property] held by a [Registry].
type Descriptor interface {
	Key() string
	Set(string) bool
	TrySet(string) error
	Effective() (any, bool)
}

// Source provides raw property values by key.
type Source interface {
	Lookup(key string) (string, bool)
}

// MapSource is an ordinary map[string]string but implements the [Source] interface.
type MapSource map[string]string

// Lookup implements the [Source] interface.
func (m MapSource) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// Registry is an ordered, append-only list of declared properties.
// It is not safe for concurrent use.
type Registry struct {
	descs []Descriptor
}

// NewRegistry returns an empty [Registry].
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends d. Registering the same key twice is allowed.
func (r *Registry) Register(d Descriptor) {
	r.descs = append(r.descs, d)
}

// Len returns the number of registered descriptors.
func (r *Registry) Len() int {
	return len(r.descs)
}

// Descriptors returns the registered descriptors in registration order.
func (r *Registry) Descriptors() []Descriptor {
	ds := make([]Descriptor, len(r.descs))
	copy(ds, r.descs)
	return ds
}

// Lookup returns the descriptor registered under key. When a key was
// registered more than once the most recent registration wins.
func (r *Registry) Lookup(key string) (Descriptor, bool) {
	var found Descriptor
	for _, d := range r.descs {
		if d.Key() == key {
			found = d
		}
	}
	return found, found != nil
}

// Apply sets every registered descriptor whose key src provides.
// Descriptors without a matching key keep their value. The returned
// errors are the conversion failures, in registration order.
func (r *Registry) Apply(src Source) []error {
	_, errs := r.apply(src)
	return errs
}

func (r *Registry) apply(src Source) (set []string, errs []error) {
	for _, d := range r.descs {
		raw, ok := src.Lookup(d.Key())
		if !ok {
			continue
		}
		if err := d.TrySet(raw); err != nil {
			errs = append(errs, err)
			continue
		}
		set = append(set, d.Key())
	}
	return set, errs
}

// Unmarshal decodes the effective property values into v, which must
// be a pointer to a struct. Fields are matched by their "config" tag.
// Properties without a value leave their field untouched.
func (r *Registry) Unmarshal(v any) error {
	m := make(map[string]any, len(r.descs))
	for _, d := range r.descs {
		ev, ok := d.Effective()
		if !ok {
			continue
		}
		m[d.Key()] = ev
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "config",
		Result:  v,
	})
	if err != nil {
		return err
	}
	return dec.Decode(m)
}
