package git

import (
	"errors"
	"os"
	"sync/atomic"

	billy "github.com/go-git/go-billy/v5"
)

// ErrLimitExceeded is returned when a clone writes more files or bytes than allowed
var ErrLimitExceeded = errors.New("repository exceeds clone size limits")

// LimitedFs wraps a billy.Filesystem and fails writes once MaxFiles files have
// been created or TotalFileSize bytes have been written.
type LimitedFs struct {
	billy.Filesystem

	MaxFiles      int64
	TotalFileSize int64

	files atomic.Int64
	bytes atomic.Int64
}

// Create creates the named file, counting it against the file limit
func (f *LimitedFs) Create(filename string) (billy.File, error) {
	return f.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0666)
}

// OpenFile opens the named file, counting newly created files against the file limit
func (f *LimitedFs) OpenFile(filename string, flag int, perm os.FileMode) (billy.File, error) {
	if flag&os.O_CREATE != 0 {
		if err := f.addFile(); err != nil {
			return nil, err
		}
	}
	file, err := f.Filesystem.OpenFile(filename, flag, perm)
	if err != nil {
		return nil, err
	}
	return &limitedFile{File: file, fs: f}, nil
}

// TempFile creates a temporary file, counting it against the file limit
func (f *LimitedFs) TempFile(dir, prefix string) (billy.File, error) {
	if err := f.addFile(); err != nil {
		return nil, err
	}
	file, err := f.Filesystem.TempFile(dir, prefix)
	if err != nil {
		return nil, err
	}
	return &limitedFile{File: file, fs: f}, nil
}

func (f *LimitedFs) addFile() error {
	if f.MaxFiles > 0 && f.files.Add(1) > f.MaxFiles {
		return ErrLimitExceeded
	}
	return nil
}

func (f *LimitedFs) addBytes(n int) error {
	if f.TotalFileSize > 0 && f.bytes.Add(int64(n)) > f.TotalFileSize {
		return ErrLimitExceeded
	}
	return nil
}

type limitedFile struct {
	billy.File
	fs *LimitedFs
}

func (lf *limitedFile) Write(p []byte) (int, error) {
	if err := lf.fs.addBytes(len(p)); err != nil {
		return 0, err
	}
	return lf.File.Write(p)
}
