// Package iosink implements the output-file wrapper: heap, hunk,
// listing, and info files are created fresh per compilation unit,
// with any pre-existing file at the target path deleted first, and
// every handle released on all exit paths including fatal errors.
package iosink

import (
	"fmt"
	"os"
	"path/filepath"
)

// Dir is an output directory (the `-o DIR` target) that
// creates fresh per-unit output files within it.
type Dir struct {
	path string
}

// NewDir creates a Dir rooted at path, creating the directory itself
// if it doesn't already exist.
func NewDir(path string) (*Dir, error) {
	if path == "" {
		path = "."
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("iosink: create output dir %s: %w", path, err)
	}
	return &Dir{path: path}, nil
}

// Create deletes any pre-existing file named name under the directory
// and opens a fresh one for writing. The caller must Close it.
func (d *Dir) Create(name string) (*os.File, error) {
	full := filepath.Join(d.path, name)
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("iosink: remove existing %s: %w", full, err)
	}
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("iosink: create %s: %w", full, err)
	}
	return f, nil
}

// Path returns the path name would have under this directory,
// without creating anything.
func (d *Dir) Path(name string) string { return filepath.Join(d.path, name) }
