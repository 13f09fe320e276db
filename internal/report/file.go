package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const reportFileMode = 0644

// WriteFile writes the report to path with WriteFileAtomic
func (r *Report) WriteFile(path string) error {
	return WriteFileAtomic(path, r.Write)
}

// WriteFileAtomic calls write with a temporary file next to path and renames
// it into place once write succeeds. A failed write never leaves a partial
// file behind.
func WriteFileAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("%w: failed to create output directory: %w", ErrOutputWrite, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: failed to create temporary file: %w", ErrOutputWrite, err)
	}
	tempPath := tmp.Name()

	// CreateTemp uses 0600, reports are meant to be shared
	if err := tmp.Chmod(reportFileMode); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("%w: %w", ErrOutputWrite, err)
	}

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tempPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("%w: %w", ErrOutputWrite, err)
	}

	// Atomic rename
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("%w: failed to rename output file: %w", ErrOutputWrite, err)
	}
	return nil
}
