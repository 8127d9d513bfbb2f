// Package filecache maintains a path-keyed cache of open mapped files.
//
// # Overview
//
// Storage layers that touch many files (segments, pieces, chunks) cannot
// afford to open, reserve, map and unmap on every access. Cache keeps a
// bounded set of mmapio.File handles keyed by path, creating them on first
// access with their space reserved up front, and reading and writing through
// fault-guarded copies.
//
//	c, err := filecache.New(func(o *filecache.Options) {
//	    o.MaxEntries = 128
//	})
//	if err != nil { ... }
//	defer c.Close()
//
//	_, err = c.WriteAt("segments/0001.bin", 1<<20, payload, 0)
//
// # Eviction
//
// Entries carry a used flag set on every access. When the cache is full, a
// sweep closes entries not used since the previous sweep; Reclaim runs the
// same sweep on demand.
//
// # Flushing
//
// A background goroutine periodically flushes dirty pages of cached files,
// optionally throttled to a byte rate so flushing does not starve foreground
// I/O. FlushAll and Flush force the same synchronously.
//
// # Delayed Reservation
//
// When a file's initial space reservation fell back to a sparse file (an
// unsupported filesystem, or sparse mode), the cache retries physical
// allocation once on the next write, mirroring the state the entry tracks.
//
// # Fallback Path
//
// With DisableMmap the cache bypasses memory mapping entirely and uses
// positioned reads and writes through an internal filesystem abstraction.
// This trades zero-copy access for predictable behavior on 32-bit address
// spaces and filesystems with poor mmap support.
package filecache
