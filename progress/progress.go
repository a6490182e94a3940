// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package progress measures how long evaluation steps take.
package progress

import (
	"context"
	"log/slog"
	"time"
)

// Option configures a [Timer].
type Option func(*Timer)

// WithLogger sets the logger elapsed times are reported to.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Timer) {
		t.log = logger
	}
}

// WithClock sets the time source of the [Timer].
func WithClock(now func() time.Time) Option {
	return func(t *Timer) {
		t.now = now
	}
}

// WithVerbose sets whether elapsed times are logged. Timers are verbose
// by default.
func WithVerbose(verbose bool) Option {
	return func(t *Timer) {
		t.verbose = verbose
	}
}

// Timer is a stopwatch with split times. It is not safe for concurrent use.
type Timer struct {
	log     *slog.Logger
	now     func() time.Time
	verbose bool

	running bool
	start   time.Time
	cur     time.Time
	last    time.Duration
	hasLast bool
}

// New returns a stopped [Timer].
func New(opts ...Option) *Timer {
	t := &Timer{
		log:     slog.Default(),
		now:     time.Now,
		verbose: true,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start starts the timer. Starting a running timer does nothing.
func (t *Timer) Start() {
	if t.running {
		return
	}
	t.start = t.now()
	t.cur = t.start
	t.running = true
}

// Stop stops the timer and returns the time since [Timer.Start].
// Stopping a stopped timer returns the last measured duration.
func (t *Timer) Stop(ctx context.Context) time.Duration {
	if !t.running {
		return t.last
	}
	t.record(ctx, t.now().Sub(t.start))
	t.running = false
	return t.last
}

// Split returns the time since the previous split, or since
// [Timer.Start] for the first split, and begins a new split.
func (t *Timer) Split(ctx context.Context) time.Duration {
	prev := t.cur
	t.cur = t.now()
	t.record(ctx, t.cur.Sub(prev))
	return t.last
}

func (t *Timer) record(ctx context.Context, d time.Duration) {
	t.last = d
	t.hasLast = true
	if !t.verbose {
		return
	}
	t.log.InfoContext(ctx, "time", slog.Float64("seconds", Seconds(d)))
}

// Running reports whether the timer has been started and not stopped.
func (t *Timer) Running() bool {
	return t.running
}

// Last returns the most recently measured duration. It reports false
// if nothing has been measured yet.
func (t *Timer) Last() (time.Duration, bool) {
	return t.last, t.hasLast
}

// SetVerbose sets whether elapsed times are logged.
func (t *Timer) SetVerbose(verbose bool) {
	t.verbose = verbose
}

// Seconds returns d in seconds, truncated to milliseconds.
func Seconds(d time.Duration) float64 {
	return float64(d.Milliseconds()) / 1000
}
