package fs

import (
	"os"
	"strings"
	"sync"
	"syscall"
)

// ErrInjected is the default error returned by injected faults. It wraps
// ENOSPC so components treating a full disk specially see the real thing.
var ErrInjected = &os.PathError{Op: "write", Path: "faultyfs", Err: syscall.ENOSPC}

// Fault defines specific failure behavior.
type Fault struct {
	FailAfterBytes int64 // Fail writes after this many bytes written to this file. -1 to disable.
	FailOnSync     bool
	FailOnClose    bool
	Err            error
}

// FaultyFS is a FileSystem wrapper that can inject errors.
type FaultyFS struct {
	FS      FileSystem
	mu      sync.Mutex
	rules   map[string]Fault // Filename pattern -> Fault
	Default Fault            // Fallback

	written     int64
	globalLimit int64
}

// NewFaultyFS creates a new FaultyFS wrapping the provided FS (or Default if nil).
func NewFaultyFS(fsys FileSystem) *FaultyFS {
	if fsys == nil {
		fsys = Default
	}
	return &FaultyFS{
		FS:    fsys,
		rules: make(map[string]Fault),
		Default: Fault{
			FailAfterBytes: -1, // No limit
		},
		globalLimit: -1,
	}
}

// Written returns the total bytes written so far across all files.
func (f *FaultyFS) Written() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.written
}

// SetLimit makes every write fail once limit total bytes were written.
func (f *FaultyFS) SetLimit(limit int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.globalLimit = limit
}

// AddRule adds a fault injection rule for a specific file pattern.
func (f *FaultyFS) AddRule(pattern string, fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules[pattern] = fault
}

func (f *FaultyFS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	file, err := f.FS.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	fault := f.Default
	// Match pattern (last winning match)
	for pattern, rule := range f.rules {
		if strings.Contains(name, pattern) {
			fault = rule
		}
	}
	if fault.Err == nil {
		fault.Err = ErrInjected
	}
	f.mu.Unlock()

	return &faultyFile{File: file, fs: f, fault: fault}, nil
}

func (f *FaultyFS) Remove(name string) error {
	return f.FS.Remove(name)
}

func (f *FaultyFS) Rename(oldpath, newpath string) error {
	return f.FS.Rename(oldpath, newpath)
}

func (f *FaultyFS) Stat(name string) (os.FileInfo, error) {
	return f.FS.Stat(name)
}

func (f *FaultyFS) MkdirAll(path string, perm os.FileMode) error {
	return f.FS.MkdirAll(path, perm)
}

func (f *FaultyFS) ReadDir(name string) ([]os.DirEntry, error) {
	return f.FS.ReadDir(name)
}

type faultyFile struct {
	File
	fs      *FaultyFS
	fault   Fault
	mu      sync.Mutex
	written int64
}

// admitWrite applies the per-file and global byte budgets to a prospective
// write of n bytes, returning the injected error once a budget is exceeded.
func (ff *faultyFile) admitWrite(n int) error {
	ff.mu.Lock()
	perFileExceeded := ff.fault.FailAfterBytes >= 0 && ff.written+int64(n) > ff.fault.FailAfterBytes
	ff.mu.Unlock()
	if perFileExceeded {
		return ff.fault.Err
	}

	ff.fs.mu.Lock()
	globalExceeded := ff.fs.globalLimit >= 0 && ff.fs.written+int64(n) > ff.fs.globalLimit
	if !globalExceeded {
		ff.fs.written += int64(n)
	}
	ff.fs.mu.Unlock()
	if globalExceeded {
		return ff.fault.Err
	}
	return nil
}

func (ff *faultyFile) Write(p []byte) (int, error) {
	if err := ff.admitWrite(len(p)); err != nil {
		return 0, err
	}
	n, err := ff.File.Write(p)
	if n > 0 {
		ff.mu.Lock()
		ff.written += int64(n)
		ff.mu.Unlock()
	}
	return n, err
}

func (ff *faultyFile) WriteAt(p []byte, off int64) (int, error) {
	if err := ff.admitWrite(len(p)); err != nil {
		return 0, err
	}
	n, err := ff.File.WriteAt(p, off)
	if n > 0 {
		ff.mu.Lock()
		ff.written += int64(n)
		ff.mu.Unlock()
	}
	return n, err
}

func (ff *faultyFile) Sync() error {
	if ff.fault.FailOnSync {
		return ff.fault.Err
	}
	return ff.File.Sync()
}

func (ff *faultyFile) Close() error {
	if ff.fault.FailOnClose {
		_ = ff.File.Close()
		return ff.fault.Err
	}
	return ff.File.Close()
}
