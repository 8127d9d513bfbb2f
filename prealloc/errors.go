package prealloc

import "fmt"

// ReserveError indicates that the platform refused to reserve the requested
// space (insufficient free space, quota, or permission).
//
// The underlying platform error (typically a syscall.Errno such as ENOSPC)
// can be accessed via errors.Unwrap / errors.Is.
type ReserveError struct {
	Op  string
	Err error
}

func (e *ReserveError) Error() string {
	return fmt.Sprintf("prealloc: %s: %v", e.Op, e.Err)
}

func (e *ReserveError) Unwrap() error { return e.Err }
