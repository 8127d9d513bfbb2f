// Package blobstore provides storage abstraction for archived file images.
//
// BlobStore is the interface for reading and writing immutable blobs.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: local filesystem with zero-copy mmap reads
//   - MemoryStore: in-memory, for tests
//   - s3.Store: Amazon S3 with range reads and streaming uploads
//   - minio.Store: MinIO and other S3-compatible storage
//
// # Custom Implementations
//
// Implement the BlobStore interface to support custom storage backends.
// For cloud backends, implement ReadRange for efficient partial reads.
package blobstore
