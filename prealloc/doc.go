// Package prealloc reserves disk space for files ahead of writing.
//
// # Overview
//
// Writing into a memory-mapped file region whose blocks were never committed
// can fail asynchronously with SIGBUS when the device runs out of space.
// Reserving the space up front turns that asynchronous failure into an
// ordinary error at reservation time, and tends to produce contiguous
// on-disk layout.
//
// # Platform Strategies
//
//   - Linux: fallocate(2) with mode 0, committing blocks for [0, length)
//     and extending the logical length in one call.
//   - Darwin: fcntl F_PREALLOCATE requesting contiguous space first, retrying
//     once with non-contiguous allocation, then ftruncate to set the logical
//     length (F_PREALLOCATE alone does not).
//   - FreeBSD: posix_fallocate(2) over [0, length).
//   - Everything else: ftruncate only; the file stays sparse and later
//     mapped writes can still fault on a full disk.
//
// Filesystems that reject preallocation (EOPNOTSUPP/ENOSYS, e.g. some
// network or COW filesystems) fall back to extending the logical length;
// Reserve reports this through its allocated return value.
//
// # Sparse Mode
//
// Some deployments prefer sparse files because explicit preallocation causes
// excessive I/O on their filesystem. WithSparse(true) skips physical
// commitment everywhere and only extends the logical length. Callers opting
// in must tolerate out-of-space faults during later writes, which is what
// the safecopy package exists to catch.
package prealloc
