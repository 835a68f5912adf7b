package vfs

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"

	pvfs "github.com/cockroachdb/pebble/vfs"
)

// ExternalLockFS hands the engine a filesystem whose lock on the database
// LOCK file always succeeds. The handle layer owns that lock for the
// lifetime of the database; read-only handles take none at all.
type ExternalLockFS struct {
	pvfs.FS
	lockPath string
}

// NewExternalLockFS wraps base for the database rooted at dir.
func NewExternalLockFS(base pvfs.FS, dir string) *ExternalLockFS {
	return &ExternalLockFS{FS: base, lockPath: filepath.Clean(LockPath(dir))}
}

// Lock implements pebble's vfs.FS.
func (fs *ExternalLockFS) Lock(name string) (io.Closer, error) {
	if filepath.Clean(name) == fs.lockPath {
		return nopCloser{}, nil
	}
	return fs.FS.Lock(name)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

var (
	// ErrInjectedWriteError is returned when a write error is injected.
	ErrInjectedWriteError = errors.New("vfs: injected write error")

	// ErrInjectedSyncError is returned when a sync error is injected.
	ErrInjectedSyncError = errors.New("vfs: injected sync error")
)

// FaultFS wraps an engine filesystem and fails file creation, writes, or
// syncs on demand. Used to drive engine I/O failures in tests.
type FaultFS struct {
	pvfs.FS

	mu         sync.RWMutex
	writeError bool
	syncError  bool
}

// NewFaultFS creates a fault-injecting wrapper around base.
func NewFaultFS(base pvfs.FS) *FaultFS {
	return &FaultFS{FS: base}
}

// InjectWriteError makes every subsequent Create and Write fail.
func (fs *FaultFS) InjectWriteError() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.writeError = true
}

// InjectSyncError makes every subsequent Sync fail.
func (fs *FaultFS) InjectSyncError() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.syncError = true
}

// ClearErrors disables all injection.
func (fs *FaultFS) ClearErrors() {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.writeError = false
	fs.syncError = false
}

func (fs *FaultFS) failWrites() bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.writeError
}

func (fs *FaultFS) failSyncs() bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.syncError
}

// Create implements pebble's vfs.FS.
func (fs *FaultFS) Create(name string) (pvfs.File, error) {
	if fs.failWrites() {
		return nil, &os.PathError{Op: "create", Path: name, Err: ErrInjectedWriteError}
	}
	f, err := fs.FS.Create(name)
	if err != nil {
		return nil, err
	}
	return &faultFile{File: f, fs: fs, name: name}, nil
}

// ReuseForWrite implements pebble's vfs.FS.
func (fs *FaultFS) ReuseForWrite(oldname, newname string) (pvfs.File, error) {
	if fs.failWrites() {
		return nil, &os.PathError{Op: "reuse", Path: newname, Err: ErrInjectedWriteError}
	}
	f, err := fs.FS.ReuseForWrite(oldname, newname)
	if err != nil {
		return nil, err
	}
	return &faultFile{File: f, fs: fs, name: newname}, nil
}

type faultFile struct {
	pvfs.File
	fs   *FaultFS
	name string
}

func (f *faultFile) Write(p []byte) (int, error) {
	if f.fs.failWrites() {
		return 0, &os.PathError{Op: "write", Path: f.name, Err: ErrInjectedWriteError}
	}
	return f.File.Write(p)
}

func (f *faultFile) Sync() error {
	if f.fs.failSyncs() {
		return &os.PathError{Op: "sync", Path: f.name, Err: ErrInjectedSyncError}
	}
	return f.File.Sync()
}
