// Package mmap provides read-write memory-mapped file access.
//
// # Overview
//
// Memory mapping exposes file contents directly in process address space, so
// ordinary loads and stores translate to file reads and writes without going
// through kernel buffers. Mappings here are created MAP_SHARED: stores become
// visible in the file after a flush (msync) or when the kernel writes pages
// back on its own.
//
// # Usage
//
//	m, err := mmap.MapFile(f, size, true)
//	if err != nil { ... }
//	defer m.Close()
//
//	copy(m.Bytes()[off:], data)
//	m.FlushRange(off, len(data))
//
// # Platform Support
//
//   - Unix (Linux, macOS, BSD): mmap(2), msync(2), madvise(2)
//   - Windows: CreateFileMapping/MapViewOfFile, FlushViewOfFile
//     (access hints are a no-op)
//
// # Out-of-Space Faults
//
// A store into a mapped page that has no committed backing blocks raises an
// asynchronous fault (SIGBUS) rather than returning an error. This package
// does not intercept such faults; callers that write into mappings over
// possibly-unallocated regions should do so through the safecopy package.
//
// # Thread Safety
//
// Mapping and Region are safe for concurrent read access. Close is idempotent
// and protected by atomic operations, but callers must ensure no goroutine
// touches Bytes() after Close returns.
package mmap
