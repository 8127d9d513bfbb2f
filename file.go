package mmapio

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/mmapio/internal/mmap"
	"github.com/hupe1980/mmapio/prealloc"
	"github.com/hupe1980/mmapio/safecopy"
)

// File is a memory-mapped file with its space reserved up front and all
// access routed through fault-guarded copies.
//
// Reads may run concurrently; writes, flushes and Close are serialized
// internally. A File is not safe for concurrent use with its own Close in
// the sense that Bytes() views handed out earlier become invalid.
type File struct {
	mu       sync.RWMutex
	f        *os.File
	m        *mmap.Mapping
	path     string
	size     int64
	pageSize int

	// allocated reports whether physical blocks were committed at open;
	// false means the file is sparse (by policy or platform fallback) and
	// writes can fault on a full disk.
	allocated bool

	dirty *roaring.Bitmap // page indices written since the last flush

	logger  *Logger
	metrics MetricsCollector
	opts    options

	closed bool
}

// Open opens or creates the file at path, reserves size bytes of storage
// for it, and maps it read-write.
//
// If the file already has the requested length, reservation is skipped.
// Reservation failures (a full disk at open time) surface as
// ErrReservationDenied.
func Open(path string, size int64, opts ...Option) (*File, error) {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}

	if size <= 0 {
		return nil, fmt.Errorf("mmapio: invalid file size %d", size)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600) //nolint:gosec // G304: Path is configurable
	if err != nil {
		return nil, fmt.Errorf("mmapio: open %s: %w", path, err)
	}

	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("mmapio: stat %s: %w", path, err)
	}

	allocated := false
	if st.Size() != size {
		start := time.Now()
		allocated, err = prealloc.Reserve(f, uint64(size), prealloc.WithSparse(o.sparse))
		o.metrics.RecordReserve(uint64(size), allocated, time.Since(start), err)
		if err != nil {
			_ = f.Close()
			return nil, translateError(err)
		}
		if !allocated && !o.sparse {
			o.logger.Warn("space reservation fell back to sparse file",
				"path", path,
				"size", size,
			)
		}
	} else {
		// Length already satisfied; the file may or may not be fully
		// backed, so treat it like a successful reservation only when it
		// is not sparse on disk.
		sparse, serr := prealloc.IsSparse(f)
		allocated = serr == nil && !sparse
	}

	m, err := mmap.MapFile(f, int(size), true)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("mmapio: map %s: %w", path, err)
	}

	o.logger.Debug("file mapped",
		"path", path,
		"size", size,
		"allocated", allocated,
	)

	return &File{
		f:         f,
		m:         m,
		path:      path,
		size:      size,
		pageSize:  os.Getpagesize(),
		allocated: allocated,
		dirty:     roaring.New(),
		logger:    o.logger,
		metrics:   o.metrics,
		opts:      o,
	}, nil
}

// Path returns the file's path.
func (f *File) Path() string { return f.path }

// Len returns the mapped length in bytes.
func (f *File) Len() int64 { return f.size }

// Allocated reports whether physical blocks were committed for the whole
// file when it was opened (or by a later TryReserve).
func (f *File) Allocated() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.allocated
}

// Bytes returns the raw mapped bytes. The slice is valid until Close; plain
// stores into it bypass the fault guard and dirty-page tracking, so prefer
// WriteAt unless the backing space is known to be committed.
func (f *File) Bytes() []byte {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return nil
	}
	return f.m.Bytes()
}

// ReadAt copies len(p) bytes starting at off out of the mapping.
//
// Returns ErrNoSpace if the read faulted on missing backing store (the file
// was truncated under the mapping); p is then in an undefined state.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return 0, ErrClosed
	}
	// Subtracting keeps the comparison overflow-free for huge offsets.
	if off < 0 || off > f.size-int64(len(p)) {
		return 0, ErrOutOfRange
	}
	if len(p) == 0 {
		return 0, nil
	}

	start := time.Now()
	err := safecopy.Copy(p, f.m.Bytes()[off:off+int64(len(p))])
	f.metrics.RecordCopy(len(p), time.Since(start), err)
	if err != nil {
		f.metrics.RecordSpaceFault()
		f.logger.Error("guarded read faulted on missing backing store",
			"path", f.path,
			"offset", off,
			"length", len(p),
		)
		return 0, translateError(err)
	}
	return len(p), nil
}

// WriteAt copies len(p) bytes into the mapping starting at off and records
// the touched pages as dirty.
//
// Returns ErrNoSpace if the write faulted because the backing store ran out
// of space; the destination bytes are then in an undefined state and no
// prefix may be assumed written.
func (f *File) WriteAt(p []byte, off int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return 0, ErrClosed
	}
	// Subtracting keeps the comparison overflow-free for huge offsets.
	if off < 0 || off > f.size-int64(len(p)) {
		return 0, ErrOutOfRange
	}
	if len(p) == 0 {
		return 0, nil
	}

	start := time.Now()
	err := safecopy.Copy(f.m.Bytes()[off:off+int64(len(p))], p)
	f.metrics.RecordCopy(len(p), time.Since(start), err)
	if err != nil {
		f.metrics.RecordSpaceFault()
		f.logger.Error("guarded write faulted on missing backing store",
			"path", f.path,
			"offset", off,
			"length", len(p),
		)
		return 0, translateError(err)
	}

	firstPage := uint64(off) / uint64(f.pageSize)
	lastPage := uint64(off+int64(len(p))-1) / uint64(f.pageSize)
	f.dirty.AddRange(firstPage, lastPage+1)

	return len(p), nil
}

// DirtyPages returns the number of pages written since the last flush.
func (f *File) DirtyPages() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dirty.GetCardinality()
}

// Sync flushes the whole mapping to disk and clears the dirty set.
func (f *File) Sync() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}

	start := time.Now()
	err := f.m.Flush()
	f.metrics.RecordFlush(int(f.size), time.Since(start), err)
	if err != nil {
		return fmt.Errorf("mmapio: sync %s: %w", f.path, err)
	}
	f.dirty.Clear()
	return nil
}

// SyncDirty flushes only the page ranges written since the last flush.
// Cheaper than Sync for large files with localized writes.
func (f *File) SyncDirty() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}
	if f.dirty.IsEmpty() {
		return nil
	}

	start := time.Now()
	flushed, err := f.flushDirtyLocked()
	f.metrics.RecordFlush(flushed, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("mmapio: sync %s: %w", f.path, err)
	}
	f.dirty.Clear()
	return nil
}

// flushDirtyLocked walks the dirty page set, coalescing consecutive pages
// into single msync calls.
func (f *File) flushDirtyLocked() (int, error) {
	pages := f.dirty.ToArray()

	flushed := 0
	runStart := pages[0]
	runLen := uint32(1)

	flush := func(start, n uint32) error {
		off := int64(start) * int64(f.pageSize)
		size := int64(n) * int64(f.pageSize)
		if off+size > f.size {
			size = f.size - off
		}
		flushed += int(size)
		return f.m.FlushRange(int(off), int(size))
	}

	for _, p := range pages[1:] {
		if p == runStart+runLen {
			runLen++
			continue
		}
		if err := flush(runStart, runLen); err != nil {
			return flushed, err
		}
		runStart, runLen = p, 1
	}
	if err := flush(runStart, runLen); err != nil {
		return flushed, err
	}
	return flushed, nil
}

// TryReserve attempts physical allocation for a file whose earlier
// reservation fell back to a sparse file. No-op when the file is already
// fully allocated.
//
// This exists for filesystems that reject preallocation intermittently and
// for sparse-opened files that should be hardened before a bulk write.
func (f *File) TryReserve() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}
	if f.allocated {
		return nil
	}

	start := time.Now()
	allocated, err := prealloc.Reserve(f.f, uint64(f.size))
	f.metrics.RecordReserve(uint64(f.size), allocated, time.Since(start), err)
	if err != nil {
		return translateError(err)
	}
	if allocated {
		f.allocated = true
		f.logger.Debug("delayed space reservation succeeded", "path", f.path)
	}
	return nil
}

// Sparse reports whether the file currently occupies fewer blocks on disk
// than its logical length.
func (f *File) Sparse() (bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return false, ErrClosed
	}
	return prealloc.IsSparse(f.f)
}

// Close flushes the mapping, unmaps it and closes the file. Idempotent.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true

	var firstErr error
	if !f.dirty.IsEmpty() {
		if err := f.m.Flush(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := f.m.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := f.f.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
