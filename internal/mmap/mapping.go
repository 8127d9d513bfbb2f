package mmap

import (
	"io"
	"os"
	"sync/atomic"
)

// Mapping represents a memory-mapped file.
// It owns the underlying byte slice and is responsible for unmapping it.
type Mapping struct {
	data     []byte
	size     int
	writable bool
	closed   atomic.Bool
}

// Open maps the file at path into memory as read-only.
func Open(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}

	size := fi.Size()
	if size == 0 {
		return &Mapping{data: nil, size: 0}, nil
	}
	if size < 0 || size != int64(int(size)) {
		return nil, ErrInvalidSize
	}

	data, err := osMap(f, int(size), false)
	if err != nil {
		return nil, err
	}

	return &Mapping{data: data, size: int(size)}, nil
}

// MapFile maps size bytes of an already-open file.
// The caller retains ownership of f; closing f does not invalidate the
// mapping, and closing the mapping does not close f.
//
// When writable is true the mapping is created shared read-write: stores into
// Bytes() modify the file. The file must already have a logical length of at
// least size (see the prealloc package); mapping beyond EOF and touching the
// excess pages faults.
func MapFile(f *os.File, size int, writable bool) (*Mapping, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}

	data, err := osMap(f, size, writable)
	if err != nil {
		return nil, err
	}

	return &Mapping{data: data, size: size, writable: writable}, nil
}

// Close unmaps the memory. It is idempotent.
func (m *Mapping) Close() error {
	if m.closed.Swap(true) {
		return nil // Already closed
	}
	if m.data != nil {
		return osUnmap(m.data)
	}
	return nil
}

// Bytes returns the underlying byte slice.
// Warning: The slice is valid only until Close() is called.
// Accessing the slice after Close() results in undefined behavior (likely a crash).
func (m *Mapping) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

// Size returns the size of the mapping in bytes.
func (m *Mapping) Size() int {
	return m.size
}

// Writable reports whether the mapping was created read-write.
func (m *Mapping) Writable() bool {
	return m.writable
}

// Flush synchronously writes all modified pages back to the file.
func (m *Mapping) Flush() error {
	if m.closed.Load() {
		return ErrClosed
	}
	if !m.writable {
		return ErrReadOnly
	}
	if m.data == nil {
		return nil
	}
	return osFlush(m.data)
}

// FlushRange synchronously writes the modified pages covering
// [off, off+size) back to the file. The range is widened to page
// boundaries as required by the kernel.
func (m *Mapping) FlushRange(off, size int) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if !m.writable {
		return ErrReadOnly
	}
	if off < 0 || size < 0 || off+size > m.size {
		return ErrOutOfBounds
	}
	if size == 0 {
		return nil
	}

	// msync requires a page-aligned start address.
	page := os.Getpagesize()
	start := off - off%page
	end := off + size

	return osFlush(m.data[start:end])
}

// Advise provides hints to the kernel about how the memory will be accessed.
func (m *Mapping) Advise(pattern AccessPattern) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if m.data == nil {
		return nil
	}
	return osAdvise(m.data, pattern)
}

// ReadAt implements io.ReaderAt.
func (m *Mapping) ReadAt(p []byte, off int64) (n int, err error) {
	if m.closed.Load() {
		return 0, ErrClosed
	}
	if off < 0 {
		return 0, ErrInvalidOffset
	}
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n = copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
