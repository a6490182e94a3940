// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package phase provides the extension point for evaluation phases.
//
// A phase is a named unit of evaluation work, e.g. preparing inputs or
// running an algorithm over every system. Phases are registered with a
// [Registry] in the order they should run and selected by name.
package phase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/z5labs/evalrun/internal/try"
	"github.com/z5labs/evalrun/progress"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Phase is a unit of evaluation work.
type Phase interface {
	Run(context.Context) error
}

// Func is a func variant of the [Phase] interface.
type Func func(context.Context) error

// Run implements the [Phase] interface.
func (f Func) Run(ctx context.Context) error {
	return f(ctx)
}

type joined []Phase

func (ps joined) Run(ctx context.Context) error {
	errs := make([]error, 0, len(ps))
	for _, p := range ps {
		err := p.Run(ctx)
		if err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	return errors.Join(errs...)
}

// Join returns a [Phase] that runs every given phase in order, even if
// one of them fails, and returns all of their errors joined.
func Join(phases ...Phase) Phase {
	return joined(phases)
}

// Named is a [Phase] together with the name it was registered under.
type Named struct {
	Name  string
	Phase Phase
}

// DuplicatePhaseError occurs when a name is registered twice.
type DuplicatePhaseError struct {
	Name string
}

// Error implements the error interface.
func (e DuplicatePhaseError) Error() string {
	return fmt.Sprintf("failed to register phase: %s is already registered", e.Name)
}

// UnknownPhaseError occurs when a selected name is not registered.
type UnknownPhaseError struct {
	Name  string
	Known []string
}

// Error implements the error interface.
func (e UnknownPhaseError) Error() string {
	return fmt.Sprintf("failed to select phase: unknown phase %q (known: %s)", e.Name, strings.Join(e.Known, ", "))
}

// RunError occurs when a phase returns an error or panics.
type RunError struct {
	Name  string
	Cause error
}

// Error implements the error interface.
func (e RunError) Error() string {
	return fmt.Sprintf("failed to run phase %s: %s", e.Name, e.Cause)
}

// Unwrap implements the implicit interface used by errors.Is and errors.As.
func (e RunError) Unwrap() error {
	return e.Cause
}

// Option configures a [Registry].
type Option func(*Registry)

// WithLogger sets the logger phase progress is reported to.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.log = logger
	}
}

// WithTimer sets the options of the timer measuring every phase.
func WithTimer(opts ...progress.Option) Option {
	return func(r *Registry) {
		r.timerOpts = opts
	}
}

// Registry holds phases in registration order.
type Registry struct {
	log       *slog.Logger
	timerOpts []progress.Option
	phases    []Named
}

// NewRegistry returns an empty [Registry].
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register appends p under name.
func (r *Registry) Register(name string, p Phase) error {
	if _, ok := r.Lookup(name); ok {
		return DuplicatePhaseError{Name: name}
	}
	r.phases = append(r.phases, Named{Name: name, Phase: p})
	return nil
}

// Lookup returns the phase registered under name.
func (r *Registry) Lookup(name string) (Phase, bool) {
	for _, n := range r.phases {
		if n.Name == name {
			return n.Phase, true
		}
	}
	return nil, false
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.phases))
	for i, n := range r.phases {
		names[i] = n.Name
	}
	return names
}

// Select returns the phases with the given names in the given order.
// No names selects every phase in registration order.
func (r *Registry) Select(names ...string) ([]Named, error) {
	if len(names) == 0 {
		all := make([]Named, len(r.phases))
		copy(all, r.phases)
		return all, nil
	}

	selected := make([]Named, 0, len(names))
	for _, name := range names {
		p, ok := r.Lookup(name)
		if !ok {
			return nil, UnknownPhaseError{Name: name, Known: r.Names()}
		}
		selected = append(selected, Named{Name: name, Phase: p})
	}
	return selected, nil
}

// Run runs the selected phases one after another and stops at the first
// failure, which is returned as a [RunError]. Unknown names fail before
// any phase runs.
func (r *Registry) Run(ctx context.Context, names ...string) error {
	selected, err := r.Select(names...)
	if err != nil {
		return err
	}

	spanCtx, span := otel.Tracer("phase").Start(ctx, "Registry.Run")
	defer span.End()

	for _, n := range selected {
		err := r.run(spanCtx, n)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}
	return nil
}

func (r *Registry) run(ctx context.Context, n Named) error {
	spanCtx, span := otel.Tracer("phase").Start(ctx, n.Name, trace.WithAttributes(
		attribute.String("phase.name", n.Name),
	))
	defer span.End()

	log := r.log.With(slog.String("phase", n.Name))
	log.InfoContext(spanCtx, "running phase")

	timer := progress.New(append([]progress.Option{progress.WithLogger(log)}, r.timerOpts...)...)
	timer.Start()
	err := runPhase(spanCtx, n.Phase)
	timer.Stop(spanCtx)
	if err == nil {
		return nil
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	log.ErrorContext(spanCtx, "phase failed", slog.Any("error", err))
	return RunError{Name: n.Name, Cause: err}
}

func runPhase(ctx context.Context, p Phase) (err error) {
	defer try.Recover(&err)
	return p.Run(ctx)
}
