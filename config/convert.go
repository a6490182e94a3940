// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Converter converts the raw string form of a property into its typed value.
type Converter[T any] func(string) (T, error)

// Bool converts using [strconv.ParseBool].
func Bool(s string) (bool, error) {
	return strconv.ParseBool(s)
}

// Int converts a base 10 integer which must fit into an int.
func Int(s string) (int, error) {
	return strconv.Atoi(s)
}

// Int64 converts a base 10 integer which must fit into an int64.
func Int64(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}

// String returns s unchanged.
func String(s string) (string, error) {
	return s, nil
}

// Duration converts using [time.ParseDuration].
func Duration(s string) (time.Duration, error) {
	return time.ParseDuration(s)
}

// ListElementError occurs when a single element of a list value fails to convert.
type ListElementError struct {
	Index int
	Raw   string
	Cause error
}

// Error implements the error interface.
func (e ListElementError) Error() string {
	return fmt.Sprintf("failed to convert list element %d (%q): %s", e.Index, e.Raw, e.Cause)
}

// Unwrap implements the implicit interface used by errors.Is and errors.As.
func (e ListElementError) Unwrap() error {
	return e.Cause
}

// List returns a [Converter] which splits its input on "," and converts
// every part with elem, keeping the order. Parts are neither trimmed nor
// filtered, so an empty input yields a single empty element.
func List[E any](elem Converter[E]) Converter[[]E] {
	return func(s string) ([]E, error) {
		parts := strings.Split(s, ",")
		es := make([]E, 0, len(parts))
		for i, part := range parts {
			e, err := elem(part)
			if err != nil {
				return nil, ListElementError{Index: i, Raw: part, Cause: err}
			}
			es = append(es, e)
		}
		return es, nil
	}
}
