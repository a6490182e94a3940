// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package stream

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type collector struct {
	mu    sync.Mutex
	lines []string
}

func (c *collector) ReadOutput(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, line)
	return nil
}

var discard = OutputReaderFunc(func(string) error { return nil })

func TestPump(t *testing.T) {
	t.Run("passes every line in order", func(t *testing.T) {
		var c collector
		err := Pump(strings.NewReader("one\ntwo\n\nthree"), &c)
		require.NoError(t, err)
		require.Equal(t, []string{"one", "two", "", "three"}, c.lines)
	})

	t.Run("stops at the first reader error", func(t *testing.T) {
		readErr := errors.New("reader failed")
		calls := 0
		out := OutputReaderFunc(func(line string) error {
			calls++
			if line == "two" {
				return readErr
			}
			return nil
		})

		err := Pump(strings.NewReader("one\ntwo\nthree\n"), out)
		require.ErrorIs(t, err, readErr)
		require.Equal(t, 2, calls)
	})

	t.Run("returns a panic from the reader as an error", func(t *testing.T) {
		out := OutputReaderFunc(func(line string) error {
			panic("bad line")
		})

		err := Pump(strings.NewReader("one\n"), out)
		require.Error(t, err)
	})
}

func TestErrReader(t *testing.T) {
	var buf bytes.Buffer
	r := ErrReader{Logger: slog.New(slog.NewTextHandler(&buf, nil))}

	err := Pump(strings.NewReader("Exception in thread main\n"), r)
	require.NoError(t, err)
	require.Contains(t, buf.String(), "level=ERROR")
	require.Contains(t, buf.String(), "Exception in thread main")
}

func TestInfoReader(t *testing.T) {
	var buf bytes.Buffer
	r := InfoReader{Logger: slog.New(slog.NewTextHandler(&buf, nil))}

	require.NoError(t, r.ReadOutput("progress 50%"))
	require.Contains(t, buf.String(), "level=INFO")
}

func TestRun(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh is not available")
	}

	t.Run("pumps stdout and stderr separately", func(t *testing.T) {
		var out, errOut collector
		cmd := exec.Command(sh, "-c", "echo out1; echo err1 >&2; echo out2")

		err := Run(context.Background(), cmd, &out, &errOut)
		require.NoError(t, err)
		require.Equal(t, []string{"out1", "out2"}, out.lines)
		require.Equal(t, []string{"err1"}, errOut.lines)
	})

	t.Run("returns the exit error", func(t *testing.T) {
		cmd := exec.Command(sh, "-c", "exit 3")

		err := Run(context.Background(), cmd, discard, discard)

		var exitErr *exec.ExitError
		require.ErrorAs(t, err, &exitErr)
		require.Equal(t, 3, exitErr.ExitCode())
	})

	t.Run("returns a reader error", func(t *testing.T) {
		readErr := errors.New("reader failed")
		cmd := exec.Command(sh, "-c", "echo boom >&2")

		err := Run(context.Background(), cmd, discard, OutputReaderFunc(func(string) error {
			return readErr
		}))
		require.ErrorIs(t, err, readErr)
	})

	t.Run("does not start with a cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := Run(ctx, exec.Command(sh, "-c", "true"), discard, discard)

		var serr StartError
		require.ErrorAs(t, err, &serr)
		require.ErrorIs(t, err, context.Canceled)
	})
}
