// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/z5labs/evalrun"
	"github.com/z5labs/evalrun/phase"
	"github.com/z5labs/evalrun/runlog"
	"github.com/z5labs/evalrun/runpath"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
}

func TestCommand(t *testing.T) {
	t.Run("will print the run layout", func(t *testing.T) {
		dir := t.TempDir()
		output := filepath.Join(dir, "output")
		writeConfig(t, dir, map[string]string{
			"paths.properties": "output=" + filepath.ToSlash(output) + "\n",
		})

		var stdout, stderr bytes.Buffer
		cmd := newCommand(&stdout, &stderr)
		cmd.SetArgs([]string{"--config-dir", dir, "layout"})

		err := cmd.ExecuteContext(context.Background())
		if !assert.NoError(t, err, stderr.String()) {
			return
		}

		runID, err := runpath.ReadMarker(afero.NewOsFs(), output)
		if !assert.NoError(t, err) {
			return
		}
		if !assert.Contains(t, stdout.String(), "run id: "+runID+"\n") {
			return
		}
		if !assert.Contains(t, stdout.String(), "data: "+filepath.Join(output, runID, "data")+"\n") {
			return
		}
	})

	t.Run("will write the run log into the run directory", func(t *testing.T) {
		dir := t.TempDir()
		output := filepath.Join(dir, "output")
		writeConfig(t, dir, map[string]string{
			"paths.properties": "output=" + filepath.ToSlash(output) + "\n",
			"models.txt":       "SysA\n",
		})

		var stdout, stderr bytes.Buffer
		cmd := newCommand(&stdout, &stderr)
		cmd.SetArgs([]string{"--config-dir", dir, "systems"})
		require.NoError(t, cmd.ExecuteContext(context.Background()))

		runID, err := runpath.ReadMarker(afero.NewOsFs(), output)
		require.NoError(t, err)
		logs, err := filepath.Glob(filepath.Join(output, runID, "log-*"))
		require.NoError(t, err)
		require.Len(t, logs, 1)

		b, err := os.ReadFile(logs[0])
		require.NoError(t, err)
		require.Contains(t, string(b), `"msg":"running phase"`)
		require.Equal(t, "0\tSysA\n", stdout.String())
	})

	t.Run("will read flags from the environment", func(t *testing.T) {
		t.Setenv("EVALRUN_LOG_FORMAT", "yaml")

		var stdout, stderr bytes.Buffer
		cmd := newCommand(&stdout, &stderr)
		cmd.SetArgs([]string{"--config-dir", t.TempDir()})

		err := cmd.ExecuteContext(context.Background())

		var ferr runlog.UnknownFormatError
		require.ErrorAs(t, err, &ferr)
		require.Equal(t, "yaml", ferr.Format)
		require.Contains(t, stderr.String(), "unknown format")
	})

	t.Run("will fail for an unknown phase", func(t *testing.T) {
		dir := t.TempDir()
		writeConfig(t, dir, map[string]string{
			"paths.properties": "output=" + filepath.ToSlash(filepath.Join(dir, "output")) + "\n",
		})

		var stdout, stderr bytes.Buffer
		cmd := newCommand(&stdout, &stderr)
		cmd.SetArgs([]string{"--config-dir", dir, "layout", "publish"})

		err := cmd.ExecuteContext(context.Background())

		var uerr phase.UnknownPhaseError
		require.ErrorAs(t, err, &uerr)
		require.Empty(t, stdout.String())
	})
}

func TestPhaseNames(t *testing.T) {
	newConfig := func(t *testing.T, properties string) *evalrun.Config {
		fsys := afero.NewMemMapFs()
		require.NoError(t, afero.WriteFile(fsys, "config/paths.properties", []byte(properties), 0o644))
		cfg := evalrun.NewConfig("config", evalrun.WithFs(fsys), evalrun.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
		cfg.ReadConfig(context.Background(), "")
		return cfg
	}

	testCases := []struct {
		name       string
		properties string
		args       []string
		expected   []string
	}{
		{name: "arguments win over the property", properties: "phases=settings\n", args: []string{"layout"}, expected: []string{"layout"}},
		{name: "property without arguments", properties: "phases=settings,systems\n", expected: []string{"settings", "systems"}},
		{name: "nothing selects every phase", properties: "", expected: nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := newConfig(t, tc.properties)
			require.Equal(t, tc.expected, phaseNames(context.Background(), tc.args, cfg))
		})
	}
}

func TestRun(t *testing.T) {
	newFs := func(t *testing.T, files map[string]string) afero.Fs {
		fsys := afero.NewMemMapFs()
		for name, content := range files {
			require.NoError(t, afero.WriteFile(fsys, filepath.Join("config", name), []byte(content), 0o644))
		}
		return fsys
	}
	opts := options{configDir: "config", logLevel: "info", logFormat: "text"}

	t.Run("will run the configured phases without arguments", func(t *testing.T) {
		fsys := newFs(t, map[string]string{
			"paths.properties": "phases=systems,settings\nsystemIterations=3\n",
			"models.txt":       "SysA\n###\nSysB\n###\nSysC\n",
		})

		var stdout, stderr bytes.Buffer
		err := run(context.Background(), fsys, opts, nil, &stdout, &stderr)
		require.NoError(t, err)

		out := stdout.String()
		require.True(t, strings.HasPrefix(out, "0\tSysA\n4\tSysC\n"), out)
		require.Contains(t, out, "systemIterations = 3\n")
		require.Contains(t, out, "algorithmIterations = 1 (default value)\n")
		require.Contains(t, out, "command = <unset>\n")
	})

	t.Run("will let arguments override the configured phases", func(t *testing.T) {
		fsys := newFs(t, map[string]string{
			"paths.properties": "phases=settings\n",
			"models.txt":       "SysA\n",
		})

		var stdout, stderr bytes.Buffer
		err := run(context.Background(), fsys, opts, []string{"systems"}, &stdout, &stderr)
		require.NoError(t, err)
		require.Equal(t, "0\tSysA\n", stdout.String())
	})

	t.Run("will load the named properties file", func(t *testing.T) {
		fsys := newFs(t, map[string]string{
			"paths.properties": "output=results\n",
			"quick.properties": "output=quick-results\n",
		})
		named := opts
		named.name = "quick"

		var stdout, stderr bytes.Buffer
		err := run(context.Background(), fsys, named, []string{"layout"}, &stdout, &stderr)
		require.NoError(t, err)
		require.Contains(t, stdout.String(), "output: quick-results\n")
	})

	t.Run("will write trace spans into the run directory", func(t *testing.T) {
		fsys := newFs(t, nil)
		traced := opts
		traced.trace = true

		var stdout, stderr bytes.Buffer
		err := run(context.Background(), fsys, traced, []string{"layout"}, &stdout, &stderr)
		require.NoError(t, err)

		runID, err := runpath.ReadMarker(fsys, "output")
		require.NoError(t, err)
		b, err := afero.ReadFile(fsys, filepath.Join("output", runID, traceFileName))
		require.NoError(t, err)
		require.Contains(t, string(b), `"Name":"layout"`)
	})

	t.Run("will fail for an unknown log level", func(t *testing.T) {
		bad := opts
		bad.logLevel = "loud"

		err := run(context.Background(), afero.NewMemMapFs(), bad, nil, &bytes.Buffer{}, &bytes.Buffer{})

		var lerr runlog.UnknownLevelError
		require.ErrorAs(t, err, &lerr)
	})
}
