// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/z5labs/evalrun"
	"github.com/z5labs/evalrun/config"
	"github.com/z5labs/evalrun/phase"
	"github.com/z5labs/evalrun/progress"
	"github.com/z5labs/evalrun/stream"
	"github.com/z5labs/evalrun/systems"

	"github.com/spf13/afero"
)

const commandKey = "command"

func declareCommand(reg *config.Registry) *config.Property[string] {
	return config.Declare(reg, commandKey, config.String)
}

func registerPhases(reg *phase.Registry, fsys afero.Fs, cfg *evalrun.Config, command *config.Property[string], logger *slog.Logger, w io.Writer) error {
	return errors.Join(
		reg.Register("settings", settingsPhase{cfg: cfg, w: w}),
		reg.Register("layout", layoutPhase{cfg: cfg, w: w}),
		reg.Register("systems", systemsPhase{cfg: cfg, w: w}),
		reg.Register("evaluate", evaluatePhase{
			cfg:     cfg,
			command: command,
			fs:      fsys,
			log:     logger,
		}),
	)
}

// settingsPhase prints every property with its effective value.
type settingsPhase struct {
	cfg *evalrun.Config
	w   io.Writer
}

func (p settingsPhase) Run(ctx context.Context) error {
	for _, d := range p.cfg.Registry().Descriptors() {
		_, err := fmt.Fprintln(p.w, d)
		if err != nil {
			return err
		}
	}
	return nil
}

// layoutPhase prints the directories of the run.
type layoutPhase struct {
	cfg *evalrun.Config
	w   io.Writer
}

func (p layoutPhase) Run(ctx context.Context) error {
	rows := [][2]string{
		{"run id", p.cfg.Run.RunID},
		{"output", p.cfg.Run.OutputRoot},
		{"run", p.cfg.Run.RunDir},
		{"data", p.cfg.Run.DataDir},
		{"temp", p.cfg.Run.TempDir},
		{"log", p.cfg.Run.LogPath},
		{"resources", p.cfg.ResourceDir},
		{"models", p.cfg.ModelDir},
	}
	for _, row := range rows {
		_, err := fmt.Fprintf(p.w, "%s: %s\n", row[0], row[1])
		if err != nil {
			return err
		}
	}
	return nil
}

// systemsPhase prints the line and name of every system.
type systemsPhase struct {
	cfg *evalrun.Config
	w   io.Writer
}

func (p systemsPhase) Run(ctx context.Context) error {
	for _, e := range p.cfg.Systems {
		_, err := fmt.Fprintf(p.w, "%d\t%s\n", e.Line, e.Name)
		if err != nil {
			return err
		}
	}
	return nil
}

// SystemError occurs when the evaluation command fails for a system.
type SystemError struct {
	System    string
	Iteration int
	Cause     error
}

// Error implements the error interface.
func (e SystemError) Error() string {
	return fmt.Sprintf("failed to evaluate %s (iteration %d): %s", e.System, e.Iteration, e.Cause)
}

// Unwrap implements the implicit interface used by errors.Is and errors.As.
func (e SystemError) Unwrap() error {
	return e.Cause
}

// evaluatePhase runs the configured command once per system and system
// iteration. The command line is split on white space, without shell
// quoting. Its stdout is logged at info and its stderr at error level.
type evaluatePhase struct {
	cfg     *evalrun.Config
	command *config.Property[string]
	fs      afero.Fs
	log     *slog.Logger
}

func (p evaluatePhase) Run(ctx context.Context) error {
	cmdline, _ := p.command.Value()
	argv := strings.Fields(cmdline)
	if len(argv) == 0 {
		p.log.WarnContext(ctx, "no evaluation command configured", slog.String("property", commandKey))
		return nil
	}

	for _, dir := range []string{p.cfg.Run.DataDir, p.cfg.Run.TempDir} {
		err := p.fs.MkdirAll(dir, 0o755)
		if err != nil {
			return err
		}
	}

	iterations, _ := p.cfg.SystemIterations.Value()
	timer := progress.New(progress.WithLogger(p.log))
	timer.Start()
	defer timer.Stop(ctx)

	var errs []error
	for _, sys := range p.cfg.Systems {
		for i := range iterations {
			err := p.runOnce(ctx, argv, sys, i)
			if err == nil {
				continue
			}
			if ctx.Err() != nil {
				return errors.Join(append(errs, err)...)
			}
			p.log.ErrorContext(ctx, "evaluation failed", slog.String("system", sys.Name), slog.Int("iteration", i), slog.Any("error", err))
			errs = append(errs, err)
		}
		timer.Split(ctx)
	}
	return errors.Join(errs...)
}

func (p evaluatePhase) runOnce(ctx context.Context, argv []string, sys systems.Entry, iteration int) error {
	if d, err := config.Read(ctx, commandTimeout(p.cfg.Timeout)); err == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	seed, _ := p.cfg.Seed.Value()
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(),
		"EVALRUN_SYSTEM="+sys.Name,
		"EVALRUN_SYSTEM_ID="+strconv.Itoa(sys.Line),
		"EVALRUN_ITERATION="+strconv.Itoa(iteration),
		"EVALRUN_RUN_ID="+p.cfg.Run.RunID,
		"EVALRUN_DATA_DIR="+p.cfg.Run.DataDir,
		"EVALRUN_TEMP_DIR="+p.cfg.Run.TempDir,
		"EVALRUN_MODEL_DIR="+p.cfg.ModelDir,
		"EVALRUN_SEED="+strconv.FormatInt(seed, 10),
	)

	log := p.log.With(slog.String("system", sys.Name), slog.Int("iteration", iteration))
	log.InfoContext(ctx, "evaluating system")
	err := stream.Run(ctx, cmd, stream.InfoReader{Logger: log}, stream.ErrReader{Logger: log})
	if err != nil {
		return SystemError{System: sys.Name, Iteration: iteration, Cause: err}
	}
	return nil
}

// commandTimeout reads the timeout property as a duration. It is unset
// when no timeout applies.
func commandTimeout(ms config.Reader[int64]) config.Reader[time.Duration] {
	return config.Bind(ms, func(_ context.Context, ms int64) config.Reader[time.Duration] {
		return config.ReaderFunc[time.Duration](func(context.Context) (config.Value[time.Duration], error) {
			d, ok := timeoutDuration(ms)
			if !ok {
				return config.Value[time.Duration]{}, nil
			}
			return config.ValueOf(d), nil
		})
	})
}

// timeoutDuration converts a timeout in milliseconds. Timeouts which do
// not fit a time.Duration mean no timeout.
func timeoutDuration(ms int64) (time.Duration, bool) {
	if ms <= 0 || ms > math.MaxInt64/int64(time.Millisecond) {
		return 0, false
	}
	return time.Duration(ms) * time.Millisecond, true
}
