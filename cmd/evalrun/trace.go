// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/z5labs/evalrun/runpath"

	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const traceFileName = "trace.json"

func traceFile(p runpath.Paths) string {
	return filepath.Join(p.RunDir, traceFileName)
}

type tracerProvider struct {
	*sdktrace.TracerProvider
	f afero.File
}

// Shutdown flushes every span and closes the trace file.
func (tp tracerProvider) Shutdown(ctx context.Context) error {
	return errors.Join(tp.TracerProvider.Shutdown(ctx), tp.f.Close())
}

func newTracerProvider(fsys afero.Fs, path string) (tracerProvider, error) {
	err := fsys.MkdirAll(filepath.Dir(path), 0o755)
	if err != nil {
		return tracerProvider{}, err
	}

	f, err := fsys.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return tracerProvider{}, err
	}

	exp, err := stdouttrace.New(stdouttrace.WithWriter(f))
	if err != nil {
		return tracerProvider{}, errors.Join(err, f.Close())
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(exp)),
	)
	return tracerProvider{TracerProvider: tp, f: f}, nil
}
