// Package safecopy copies bytes into and out of memory-mapped regions,
// converting out-of-space faults into ordinary errors.
//
// # The Problem
//
// A store into a mapped page whose backing blocks cannot be committed (the
// disk filled up after the file was mapped, or the file was truncated under
// the mapping) does not return an error. The kernel raises SIGBUS, which
// normally terminates the process. The same applies to loads from pages past
// a shrunken file.
//
// # The Mechanism
//
// Go's runtime can turn such faults into synchronous panics on the faulting
// goroutine (runtime/debug.SetPanicOnFault). Copy enables this for the
// duration of the copy, restoring the previous setting on every exit path,
// and recovers exactly one class of panic: a runtime memory fault whose
// address lies inside one of the two operands. That is the signature of a
// mapped access hitting missing backing store, and it is reported as
// ErrNoSpace.
//
// Any other panic, including memory faults at unrelated addresses that
// indicate a genuine bug rather than a full disk, is re-raised untouched.
// Misclassifying such a fault as out-of-space would silently corrupt data,
// so the filter errs on the side of crashing.
//
// # Concurrency
//
// The panic-on-fault setting is per goroutine, so concurrent copies cannot
// observe each other's faults and no global serialization is required. This
// is unlike signal-handler based implementations in other languages, where
// the handler and jump target are process-wide.
//
// # Failure Semantics
//
// A copy either completes fully or fails; after a failure the destination
// bytes are in an undefined state and no prefix may be assumed valid. There
// are no retries at this level; the caller decides whether to free space
// and try again or to abandon the operation.
package safecopy
