// Package mmapio persists data through memory-mapped files without letting a
// full disk crash the process.
//
// # Overview
//
// Writing through a memory mapping is fast because stores go straight to the
// page cache, but it has a sharp edge: if the backing blocks were never
// committed and the device fills up, the write raises an asynchronous fault
// (SIGBUS) instead of returning an error. mmapio combines two primitives to
// blunt that edge:
//
//   - prealloc: reserve disk space for the file before writing, using the
//     best strategy the host platform offers (fallocate, F_PREALLOCATE,
//     posix_fallocate, or a sparse fallback).
//   - safecopy: copy into and out of the mapping with a guard that converts
//     an out-of-space fault into an ordinary ErrNoSpace return.
//
// File ties them together: open, reserve, map, then read and write through
// guarded copies.
//
//	f, err := mmapio.Open("data.bin", 1<<20)
//	if err != nil { ... }
//	defer f.Close()
//
//	if _, err := f.WriteAt(payload, 0); err != nil {
//	    if errors.Is(err, mmapio.ErrNoSpace) {
//	        // disk filled up mid-write; free space and retry, or give up
//	    }
//	}
//
// # Dirty Page Tracking
//
// File tracks which pages have been written since the last flush in a
// compressed bitmap, so SyncDirty can msync only the touched ranges instead
// of the whole mapping.
//
// # Archival
//
// Archive and Fetch stream compressed images of a file to and from a
// blobstore.BlobStore (local directory, S3, MinIO, or in-memory for tests).
//
// # Subpackages
//
//   - prealloc: cross-platform disk space reservation
//   - safecopy: fault-guarded copies for mapped regions
//   - filecache: a path-keyed cache of mapped files with background flushing
//   - blobstore: storage backends for archived file images
package mmapio
