// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"bytes"
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, fsys afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fsys, path, []byte(content), 0o644))
}

func newTestLoader(fsys afero.Fs, reg *Registry) (*Loader, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	return NewLoader(reg, WithFs(fsys), WithLogger(logger)), &buf
}

func TestLoader_Load(t *testing.T) {
	t.Run("will layer the override file on top of the base file", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		writeFile(t, fsys, "config/paths.properties", "k=1\noutput=results\n")
		writeFile(t, fsys, "config/fast.properties", "k=2\n")

		reg := NewRegistry()
		k := Declare(reg, "k", Int)
		output := Declare(reg, "output", String)

		l, _ := newTestLoader(fsys, reg)
		results := l.Load(context.Background(), "config", "fast")
		require.Len(t, results, 2)
		require.NoError(t, results[0].Err)
		require.NoError(t, results[1].Err)
		require.Equal(t, []string{"k"}, results[1].Applied)

		kv, _ := k.Value()
		require.Equal(t, 2, kv)
		ov, _ := output.Value()
		require.Equal(t, "results", ov)
	})

	t.Run("will only load the base file without an override name", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		writeFile(t, fsys, "config/paths.properties", "k=1\n")
		writeFile(t, fsys, "config/fast.properties", "k=2\n")

		reg := NewRegistry()
		k := Declare(reg, "k", Int)

		l, _ := newTestLoader(fsys, reg)
		results := l.Load(context.Background(), "config", "")
		require.Len(t, results, 1)
		require.Equal(t, filepath.Join("config", "paths.properties"), results[0].Path)

		kv, _ := k.Value()
		require.Equal(t, 1, kv)
	})

	t.Run("will skip a missing base file and still apply the override", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		writeFile(t, fsys, "config/fast.properties", "k=2\n")

		reg := NewRegistry()
		k := Declare(reg, "k", Int, WithDefault(0))

		l, logs := newTestLoader(fsys, reg)
		results := l.Load(context.Background(), "config", "fast")
		require.Len(t, results, 2)

		var ferr FileError
		require.ErrorAs(t, results[0].Err, &ferr)
		require.ErrorIs(t, results[0].Err, fs.ErrNotExist)
		require.Contains(t, logs.String(), "failed to read config file")

		kv, _ := k.Value()
		require.Equal(t, 2, kv)
	})

	t.Run("will keep defaults if no file exists", func(t *testing.T) {
		reg := NewRegistry()
		timeout := Declare(reg, "timeout", Int64, WithDefault[int64](60))

		l, _ := newTestLoader(afero.NewMemMapFs(), reg)
		results := l.Load(context.Background(), "config", "missing")
		require.Len(t, results, 2)
		require.Error(t, results[0].Err)
		require.Error(t, results[1].Err)

		v, _ := timeout.Value()
		require.Equal(t, int64(60), v)
	})
}

func TestLoader_LoadFile(t *testing.T) {
	t.Run("will apply escaped and commented properties", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		writeFile(t, fsys, "paths.properties", `# comment
! also a comment
output = out\\runs
models:feature\ models
resources=${HOME}
`)

		reg := NewRegistry()
		output := Declare(reg, "output", String)
		models := Declare(reg, "models", String)
		resources := Declare(reg, "resources", String)

		l, _ := newTestLoader(fsys, reg)
		res := l.LoadFile(context.Background(), "paths.properties")
		require.NoError(t, res.Err)
		require.Equal(t, []string{"output", "models", "resources"}, res.Applied)

		ov, _ := output.Value()
		require.Equal(t, `out\runs`, ov)
		mv, _ := models.Value()
		require.Equal(t, "feature models", mv)
		rv, _ := resources.Value()
		require.Equal(t, "${HOME}", rv)
	})

	t.Run("will report rejected values without failing the file", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		writeFile(t, fsys, "paths.properties", "debug=loud\nverbosity=2\n")

		reg := NewRegistry()
		debug := Declare(reg, "debug", Int, WithDefault(0))
		Declare(reg, "verbosity", Int)

		l, logs := newTestLoader(fsys, reg)
		res := l.LoadFile(context.Background(), "paths.properties")
		require.NoError(t, res.Err)
		require.Equal(t, []string{"verbosity"}, res.Applied)
		require.Len(t, res.Rejected, 1)
		require.Contains(t, logs.String(), "ignoring config value")

		dv, _ := debug.Value()
		require.Equal(t, 0, dv)
	})

	t.Run("will read values as UTF-8", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		writeFile(t, fsys, "paths.properties", "output=café\nmodels=caf\\u00e9\n")

		reg := NewRegistry()
		output := Declare(reg, "output", String)
		models := Declare(reg, "models", String)

		l, _ := newTestLoader(fsys, reg)
		res := l.LoadFile(context.Background(), "paths.properties")
		require.NoError(t, res.Err)

		ov, _ := output.Value()
		require.Equal(t, "café", ov)
		mv, _ := models.Value()
		require.Equal(t, ov, mv)
	})

	t.Run("will report an invalid file", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		writeFile(t, fsys, "paths.properties", "broken=\\u12\n")

		reg := NewRegistry()
		l, _ := newTestLoader(fsys, reg)
		res := l.LoadFile(context.Background(), "paths.properties")

		var perr InvalidPropertiesError
		if !assert.ErrorAs(t, res.Err, &perr) {
			return
		}
		assert.NotEmpty(t, res.Err.Error())
	})
}
