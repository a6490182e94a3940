// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package config provides typed properties which are populated from layered
// properties files.
//
// # Properties
//
// A [Property] is a named, typed slot with a [Converter] and an optional
// default. Properties are declared into a [Registry], which keeps them in
// declaration order:
//
//	reg := config.NewRegistry()
//	timeout := config.Declare(reg, "timeout", config.Int64, config.WithDefault[int64](math.MaxInt64))
//	seeds := config.Declare(reg, "seeds", config.List(config.Int64))
//
// Setting a property from its raw string never panics or partially updates it:
// [Property.Set] reports false and keeps the previous value when conversion fails.
//
// # Loading
//
// A [Loader] reads paths.properties from a config directory and, optionally,
// a second named file whose values override the first per key:
//
//	loader := config.NewLoader(reg)
//	loader.Load(ctx, "config", "experiment")
//
// Missing or malformed files are logged and skipped.
//
// # Readers
//
// [Value] distinguishes "not set" from "set to the zero value". Every
// [Property] is also a [Reader], so it composes with [Default], [Or], [Map],
// [Bind] and [NonEmpty]:
//
//	output := config.MustOr(ctx, "output", config.NonEmpty(outputProperty))
package config
