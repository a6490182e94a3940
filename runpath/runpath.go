// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package runpath assigns run directories below an output root.
//
// The id of the current run is persisted in a marker file, <root>/.current,
// so that every invocation against the same root resumes the same run
// until the marker is deleted. Fresh ids are math.MaxInt64 minus the
// current Unix time in milliseconds, so runs created later sort first.
//
// The marker is not locked. Two processes resolving the same fresh root
// at once may both generate an id, in which case the last write wins.
package runpath

import (
	"bufio"
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/z5labs/evalrun/internal/try"

	"github.com/spf13/afero"
)

// MarkerName is the name of the marker file within an output root.
const MarkerName = ".current"

const (
	dataDirName   = "data"
	tempDirName   = "temp"
	logFilePrefix = "log-"
)

// Paths is the directory layout of a single run.
type Paths struct {
	RunID      string
	OutputRoot string
	RunDir     string
	DataDir    string
	TempDir    string
	LogPath    string
}

// MarkerPath returns the marker file location for outputRoot.
func MarkerPath(outputRoot string) string {
	return filepath.Join(outputRoot, MarkerName)
}

// ReadMarker returns the first non-blank line of the marker file in
// outputRoot, trimmed. A missing marker is not an error and yields "".
func ReadMarker(fsys afero.Fs, outputRoot string) (_ string, err error) {
	f, err := fsys.Open(MarkerPath(outputRoot))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer try.Close(&err, f)

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" {
			return line, nil
		}
	}
	return "", sc.Err()
}

// NewRunID returns the id for a run created at now.
func NewRunID(now time.Time) string {
	return strconv.FormatInt(math.MaxInt64-now.UnixMilli(), 10)
}

// Option configures a [Resolver].
type Option func(*Resolver)

// WithFs sets the filesystem the marker and output root live on.
func WithFs(fsys afero.Fs) Option {
	return func(r *Resolver) {
		r.fs = fsys
	}
}

// WithLogger sets the logger failures are reported to.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.log = logger
	}
}

// WithClock sets the time source for run ids and log file names.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		r.now = now
	}
}

// Resolver computes [Paths] for an output root.
type Resolver struct {
	fs  afero.Fs
	log *slog.Logger
	now func() time.Time
}

// NewResolver returns a [Resolver] backed by the OS filesystem.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		fs:  afero.NewOsFs(),
		log: slog.Default(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the run layout below outputRoot. It reuses the run id
// recorded in the marker file or generates and records a new one.
//
// Only outputRoot is created. Failures reading the marker, creating
// outputRoot or writing the marker are logged and do not stop resolution.
func (r *Resolver) Resolve(ctx context.Context, outputRoot string) Paths {
	now := r.now()

	runID, err := ReadMarker(r.fs, outputRoot)
	if err != nil {
		r.log.ErrorContext(ctx, "failed to read run marker", slog.String("path", MarkerPath(outputRoot)), slog.Any("error", err))
		runID = ""
	}

	err = r.fs.MkdirAll(outputRoot, 0o755)
	if err != nil {
		r.log.ErrorContext(ctx, "failed to create output root", slog.String("path", outputRoot), slog.Any("error", err))
	}

	if runID == "" {
		runID = NewRunID(now)
		err = afero.WriteFile(r.fs, MarkerPath(outputRoot), []byte(runID), 0o644)
		if err != nil {
			r.log.ErrorContext(ctx, "failed to write run marker", slog.String("path", MarkerPath(outputRoot)), slog.Any("error", err))
		}
		r.log.InfoContext(ctx, "starting new run", slog.String("run_id", runID))
	} else {
		r.log.InfoContext(ctx, "resuming run", slog.String("run_id", runID))
	}

	runDir := filepath.Join(outputRoot, runID)
	return Paths{
		RunID:      runID,
		OutputRoot: outputRoot,
		RunDir:     runDir,
		DataDir:    filepath.Join(runDir, dataDirName),
		TempDir:    filepath.Join(runDir, tempDirName),
		LogPath:    filepath.Join(runDir, logFilePrefix+strconv.FormatInt(now.UnixMilli(), 10)),
	}
}
