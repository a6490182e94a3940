// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package stream forwards the output of external processes line by line.
package stream

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"

	"github.com/z5labs/evalrun/internal/try"

	"golang.org/x/sync/errgroup"
)

// OutputReader consumes one line of process output at a time.
type OutputReader interface {
	ReadOutput(line string) error
}

// OutputReaderFunc is a func variant of the [OutputReader] interface.
type OutputReaderFunc func(string) error

// ReadOutput implements the [OutputReader] interface.
func (f OutputReaderFunc) ReadOutput(line string) error {
	return f(line)
}

// ErrReader logs every line at error level.
type ErrReader struct {
	Logger *slog.Logger
}

// ReadOutput implements the [OutputReader] interface.
func (r ErrReader) ReadOutput(line string) error {
	r.Logger.Error(line)
	return nil
}

// InfoReader logs every line at info level.
type InfoReader struct {
	Logger *slog.Logger
}

// ReadOutput implements the [OutputReader] interface.
func (r InfoReader) ReadOutput(line string) error {
	r.Logger.Info(line)
	return nil
}

// Pump passes every line of r to out. It stops at the first error
// returned by out, without retrying the line.
func Pump(r io.Reader, out OutputReader) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		err := readOutput(out, sc.Text())
		if err != nil {
			return err
		}
	}
	return sc.Err()
}

func readOutput(out OutputReader, line string) (err error) {
	defer try.Recover(&err)
	return out.ReadOutput(line)
}

// StartError occurs when a command could not be started.
type StartError struct {
	Path  string
	Cause error
}

// Error implements the error interface.
func (e StartError) Error() string {
	return fmt.Sprintf("failed to start %s: %s", e.Path, e.Cause)
}

// Unwrap implements the implicit interface used by errors.Is and errors.As.
func (e StartError) Unwrap() error {
	return e.Cause
}

// Run starts cmd, pumps its stdout and stderr concurrently into the given
// readers and waits for it to exit. cmd must not have Stdout or Stderr set.
// If a reader fails the remaining output of that stream is drained so the
// process does not block on a full pipe. Use exec.CommandContext to
// bind the process lifetime to ctx.
func Run(ctx context.Context, cmd *exec.Cmd, stdout, stderr OutputReader) error {
	if err := ctx.Err(); err != nil {
		return StartError{Path: cmd.Path, Cause: err}
	}

	outPipe, err := cmd.StdoutPipe()
	if err != nil {
		return StartError{Path: cmd.Path, Cause: err}
	}
	errPipe, err := cmd.StderrPipe()
	if err != nil {
		return StartError{Path: cmd.Path, Cause: err}
	}

	err = cmd.Start()
	if err != nil {
		return StartError{Path: cmd.Path, Cause: err}
	}

	var g errgroup.Group
	g.Go(func() error {
		return pumpAndDrain(outPipe, stdout)
	})
	g.Go(func() error {
		return pumpAndDrain(errPipe, stderr)
	})

	pumpErr := g.Wait()
	waitErr := cmd.Wait()
	if pumpErr != nil {
		return pumpErr
	}
	return waitErr
}

func pumpAndDrain(r io.Reader, out OutputReader) error {
	err := Pump(r, out)
	if err != nil {
		io.Copy(io.Discard, r)
	}
	return err
}
