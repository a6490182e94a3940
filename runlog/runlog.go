// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package runlog builds the loggers of an evaluation run.
//
// Every run logs to the console and, once its directory is known, to a
// JSON log file inside the run directory. Both are exposed as
// [slog.Handler]s so components only ever depend on [slog.Logger].
package runlog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

// UnknownLevelError occurs when a level name is not one of
// debug, info, warn or error.
type UnknownLevelError struct {
	Level string
}

// Error implements the error interface.
func (e UnknownLevelError) Error() string {
	return fmt.Sprintf("failed to parse log level: unknown level %q", e.Level)
}

// UnknownFormatError occurs when a console format is neither text nor json.
type UnknownFormatError struct {
	Format string
}

// Error implements the error interface.
func (e UnknownFormatError) Error() string {
	return fmt.Sprintf("failed to create console handler: unknown format %q", e.Format)
}

// ParseLevel parses a level name, ignoring case.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, UnknownLevelError{Level: s}
}

// NewConsole returns a handler writing text or json records to w.
func NewConsole(w io.Writer, level slog.Leveler, format string) (slog.Handler, error) {
	opts := &slog.HandlerOptions{Level: level}
	switch format {
	case "text":
		return slog.NewTextHandler(w, opts), nil
	case "json":
		return slog.NewJSONHandler(w, opts), nil
	}
	return nil, UnknownFormatError{Format: format}
}

// OpenFileError occurs when the run log file can not be created.
type OpenFileError struct {
	Path  string
	Cause error
}

// Error implements the error interface.
func (e OpenFileError) Error() string {
	return fmt.Sprintf("failed to open run log %s: %s", e.Path, e.Cause)
}

// Unwrap implements the implicit interface used by errors.Is and errors.As.
func (e OpenFileError) Unwrap() error {
	return e.Cause
}

// File is a run log file.
type File struct {
	f    afero.File
	core zapcore.Core
}

// OpenFile creates the parent directory of path and opens path for
// appending JSON records at or above level.
func OpenFile(fsys afero.Fs, path string, level slog.Level) (*File, error) {
	err := fsys.MkdirAll(filepath.Dir(path), 0o755)
	if err != nil {
		return nil, OpenFileError{Path: path, Cause: err}
	}

	f, err := fsys.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, OpenFileError{Path: path, Cause: err}
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.Lock(f),
		zapLevel(level),
	)
	return &File{f: f, core: core}, nil
}

// Name returns the path of the file.
func (f *File) Name() string {
	return f.f.Name()
}

// Handler returns a handler writing to the file.
func (f *File) Handler() slog.Handler {
	return zapslog.NewHandler(f.core, nil)
}

// Close flushes and closes the file.
func (f *File) Close() error {
	return errors.Join(f.core.Sync(), f.f.Close())
}

func zapLevel(l slog.Level) zapcore.Level {
	switch {
	case l >= slog.LevelError:
		return zapcore.ErrorLevel
	case l >= slog.LevelWarn:
		return zapcore.WarnLevel
	case l >= slog.LevelInfo:
		return zapcore.InfoLevel
	}
	return zapcore.DebugLevel
}

type tee []slog.Handler

// Tee returns a handler passing every record to all of hs.
func Tee(hs ...slog.Handler) slog.Handler {
	return tee(hs)
}

// Enabled implements the slog.Handler interface.
func (t tee) Enabled(ctx context.Context, lvl slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, lvl) {
			return true
		}
	}
	return false
}

// Handle implements the slog.Handler interface.
func (t tee) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, h := range t {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		err := h.Handle(ctx, record.Clone())
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WithAttrs implements the slog.Handler interface.
func (t tee) WithAttrs(attrs []slog.Attr) slog.Handler {
	hs := make(tee, len(t))
	for i, h := range t {
		hs[i] = h.WithAttrs(attrs)
	}
	return hs
}

// WithGroup implements the slog.Handler interface.
func (t tee) WithGroup(name string) slog.Handler {
	hs := make(tee, len(t))
	for i, h := range t {
		hs[i] = h.WithGroup(name)
	}
	return hs
}

// TraceHandler adds the trace and span id of the active span to every
// record so run logs can be matched with exported spans.
type TraceHandler struct {
	slog slog.Handler
}

// WithTrace wraps h in a [TraceHandler].
func WithTrace(h slog.Handler) *TraceHandler {
	return &TraceHandler{slog: h}
}

// Enabled implements the slog.Handler interface.
func (h *TraceHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.slog.Enabled(ctx, lvl)
}

// Handle implements the slog.Handler interface.
func (h *TraceHandler) Handle(ctx context.Context, record slog.Record) error {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return h.slog.Handle(ctx, record)
	}

	r := record.Clone()
	r.AddAttrs(
		slog.Group(
			"otel",
			slog.String("trace_id", spanCtx.TraceID().String()),
			slog.String("span_id", spanCtx.SpanID().String()),
		),
	)
	return h.slog.Handle(ctx, r)
}

// WithAttrs implements the slog.Handler interface.
func (h *TraceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return WithTrace(h.slog.WithAttrs(attrs))
}

// WithGroup implements the slog.Handler interface.
func (h *TraceHandler) WithGroup(name string) slog.Handler {
	return WithTrace(h.slog.WithGroup(name))
}
