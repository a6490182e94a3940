// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"io/fs"
	"sync"

	"github.com/spf13/afero"
)

// FileReader reads a file from an afero.Fs. The file is opened by the
// first Read, so a FileReader can be handed around before it is known
// whether the file exists.
type FileReader struct {
	fs   afero.Fs
	path string

	open    sync.Once
	file    afero.File
	openErr error
	closed  bool
}

// NewFileReader returns a FileReader for path on fsys. Unlike an fs.FS,
// absolute and dot-relative paths are allowed.
func NewFileReader(fsys afero.Fs, path string) *FileReader {
	return &FileReader{
		fs:   fsys,
		path: path,
	}
}

// Path returns the path of the file.
func (r *FileReader) Path() string {
	return r.path
}

// Read implements the io.Reader interface. Every Read after a failed
// open returns the open error.
func (r *FileReader) Read(b []byte) (int, error) {
	if r.closed {
		return 0, fs.ErrClosed
	}
	r.open.Do(func() {
		r.file, r.openErr = r.fs.Open(r.path)
	})
	if r.openErr != nil {
		return 0, r.openErr
	}
	return r.file.Read(b)
}

// Close implements the io.Closer interface. It only closes the file if
// a Read opened it, and later calls do nothing.
func (r *FileReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.file == nil {
		return nil
	}
	return r.file.Close()
}
