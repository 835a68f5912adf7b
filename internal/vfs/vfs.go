// Package vfs holds the filesystem pieces rockguard puts between a database
// directory and the storage engine: the LOCK file and the engine-facing FS
// wrappers.
package vfs

import (
	"errors"
	"io"
	"path/filepath"
	"sync"
)

// LockFileName is the advisory lock file inside a database directory.
const LockFileName = "LOCK"

// ErrLocked is returned when the lock file is already held, either by
// another process or by another handle in this process.
var ErrLocked = errors.New("vfs: lock held by another handle")

// LockError describes a failed lock acquisition.
type LockError struct {
	Path string
	Err  error
}

func (e *LockError) Error() string {
	return "lock " + e.Path + ": " + e.Err.Error()
}

func (e *LockError) Unwrap() error { return e.Err }

// Paths locked by this process. flock(2) already conflicts across file
// descriptors on Linux, but not on every platform or filesystem.
var (
	lockedMu    sync.Mutex
	lockedFiles = map[string]struct{}{}
)

// LockPath returns the lock file path for a database directory.
func LockPath(dir string) string {
	return filepath.Join(dir, LockFileName)
}

// Lock acquires an exclusive lock on name, creating the file if needed.
// The returned Closer releases it.
func Lock(name string) (io.Closer, error) {
	abs, err := filepath.Abs(name)
	if err != nil {
		return nil, err
	}

	lockedMu.Lock()
	defer lockedMu.Unlock()
	if _, held := lockedFiles[abs]; held {
		return nil, &LockError{Path: name, Err: ErrLocked}
	}

	l, err := lockFile(abs)
	if err != nil {
		return nil, &LockError{Path: name, Err: err}
	}
	lockedFiles[abs] = struct{}{}
	return &processLock{abs: abs, file: l}, nil
}

type processLock struct {
	once sync.Once
	abs  string
	file io.Closer
}

func (l *processLock) Close() error {
	var err error
	l.once.Do(func() {
		err = l.file.Close()
		lockedMu.Lock()
		delete(lockedFiles, l.abs)
		lockedMu.Unlock()
	})
	return err
}
