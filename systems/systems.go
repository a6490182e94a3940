// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package systems parses the list of systems an evaluation runs against.
//
// The list is plain text with one system name per line. Blank lines and
// lines starting with a tab are ignored. Lines starting with "#" are
// comments, except a line which is exactly "###": it toggles a pause
// block, and names inside a pause block are skipped.
package systems

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/z5labs/evalrun/internal/try"

	"github.com/spf13/afero"
)

// FileName is the name of the system list within a config directory.
const FileName = "models.txt"

const (
	commentPrefix = "#"
	pauseMark     = "###"
)

// Entry is a system name together with its zero-based line in the list.
type Entry struct {
	Name string
	Line int
}

// Parse returns the entries of lines in order.
func Parse(lines []string) []Entry {
	entries := make([]Entry, 0, len(lines))
	pause := false
	for i, line := range lines {
		switch {
		case strings.TrimSpace(line) == "":
		case strings.HasPrefix(line, "\t"):
		case line == pauseMark:
			pause = !pause
		case strings.HasPrefix(line, commentPrefix):
		case pause:
		default:
			entries = append(entries, Entry{Name: strings.TrimSpace(line), Line: i})
		}
	}
	return entries
}

// ParseReader reads all lines from r and parses them.
func ParseReader(r io.Reader) ([]Entry, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return Parse(lines), nil
}

// ReadFile parses the list at path. If it can not be read the failure is
// logged and the result is empty, never nil.
func ReadFile(ctx context.Context, fsys afero.Fs, logger *slog.Logger, path string) []Entry {
	entries, err := readFile(fsys, path)
	if err != nil {
		logger.ErrorContext(ctx, "no feature models specified", slog.String("path", path), slog.Any("error", err))
		return []Entry{}
	}
	logger.InfoContext(ctx, "read system list", slog.String("path", path), slog.Int("systems", len(entries)))
	return entries
}

func readFile(fsys afero.Fs, path string) (_ []Entry, err error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, err
	}
	defer try.Close(&err, f)

	return ParseReader(f)
}

// Names returns the system names of entries.
func Names(entries []Entry) []string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}

// Lines returns the source lines of entries.
func Lines(entries []Entry) []int {
	lines := make([]int, len(entries))
	for i, e := range entries {
		lines[i] = e.Line
	}
	return lines
}
