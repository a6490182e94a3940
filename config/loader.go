// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/z5labs/evalrun/internal/try"

	"github.com/magiconair/properties"
	"github.com/spf13/afero"
)

// BaseName is the name, without extension, of the properties file
// which is always loaded first.
const BaseName = "paths"

// Ext is the extension of every properties file.
const Ext = ".properties"

// InvalidPropertiesError occurs if a file is not in the properties format.
type InvalidPropertiesError struct {
	Cause error
}

// Error implements the error interface.
func (e InvalidPropertiesError) Error() string {
	return fmt.Sprintf("invalid properties: %s", e.Cause)
}

// Unwrap implements the implicit interface used by errors.Is and errors.As.
func (e InvalidPropertiesError) Unwrap() error {
	return e.Cause
}

// FileError occurs when a properties file could not be read or parsed.
type FileError struct {
	Path  string
	Cause error
}

// Error implements the error interface.
func (e FileError) Error() string {
	return fmt.Sprintf("failed to load config file %s: %s", e.Path, e.Cause)
}

// Unwrap implements the implicit interface used by errors.Is and errors.As.
func (e FileError) Unwrap() error {
	return e.Cause
}

// FileResult describes a single load step.
type FileResult struct {
	Path string

	// Applied lists the keys which were set from the file, in
	// registration order.
	Applied []string

	// Rejected holds a [ConversionError] for every key whose value
	// could not be converted.
	Rejected []error

	// Err is a [FileError] if the file was skipped.
	Err error
}

// LoaderOption configures a [Loader].
type LoaderOption func(*Loader)

// WithFs sets the filesystem properties files are read from.
func WithFs(fs afero.Fs) LoaderOption {
	return func(l *Loader) {
		l.fs = fs
	}
}

// WithLogger sets the logger used to report load attempts.
func WithLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		l.log = logger
	}
}

// Loader applies layered properties files to a [Registry].
type Loader struct {
	reg *Registry
	fs  afero.Fs
	log *slog.Logger
}

// NewLoader returns a [Loader] which sets properties declared in reg.
func NewLoader(reg *Registry, opts ...LoaderOption) *Loader {
	l := &Loader{
		reg: reg,
		fs:  afero.NewOsFs(),
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load applies configDir/paths.properties and then, if overrideName is
// not empty, configDir/<overrideName>.properties. Values of the later
// file win per key. A file which can not be loaded is logged and skipped,
// so Load never fails as a whole.
func (l *Loader) Load(ctx context.Context, configDir, overrideName string) []FileResult {
	names := []string{BaseName}
	if overrideName != "" {
		names = append(names, overrideName)
	}

	results := make([]FileResult, 0, len(names))
	for _, name := range names {
		res := l.LoadFile(ctx, filepath.Join(configDir, name+Ext))
		results = append(results, res)
	}
	return results
}

// LoadFile applies a single properties file.
func (l *Loader) LoadFile(ctx context.Context, path string) FileResult {
	l.log.InfoContext(ctx, "reading config file", slog.String("path", path))

	res := FileResult{Path: path}
	p, err := l.read(path)
	if err != nil {
		res.Err = FileError{Path: path, Cause: err}
		l.log.WarnContext(ctx, "failed to read config file", slog.String("path", path), slog.Any("error", err))
		return res
	}

	res.Applied, res.Rejected = l.reg.apply(propertiesSource{p: p})
	for _, err := range res.Rejected {
		l.log.WarnContext(ctx, "ignoring config value", slog.String("path", path), slog.Any("error", err))
	}
	l.log.InfoContext(ctx, "read config file", slog.String("path", path), slog.Any("applied", res.Applied))
	return res
}

func (l *Loader) read(path string) (_ *properties.Properties, err error) {
	r := NewFileReader(l.fs, path)
	defer try.Close(&err, r)

	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	pl := properties.Loader{
		Encoding:         properties.UTF8,
		DisableExpansion: true,
	}
	p, err := pl.LoadBytes(b)
	if err != nil {
		return nil, InvalidPropertiesError{Cause: err}
	}
	return p, nil
}

type propertiesSource struct {
	p *properties.Properties
}

func (s propertiesSource) Lookup(key string) (string, bool) {
	return s.p.Get(key)
}
