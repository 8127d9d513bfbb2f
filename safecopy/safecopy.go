package safecopy

import (
	"errors"
	"runtime"
	"runtime/debug"
	"unsafe"
)

// ErrNoSpace is returned when a copy faults because the backing store ran
// out of space while servicing a memory-mapped access.
var ErrNoSpace = errors.New("safecopy: no space left on device")

// addressableError is implemented by runtime fault panics that carry the
// faulting address (see runtime/debug.SetPanicOnFault).
type addressableError interface {
	error
	Addr() uintptr
}

// Copy copies min(len(dst), len(src)) bytes from src to dst. Either operand
// (or both) may alias a memory-mapped file region.
//
// If the copy faults because a mapped page has no committed backing (the
// disk is full, or the file was truncated under the mapping), Copy returns
// ErrNoSpace instead of crashing the process. The destination contents are
// then undefined: no prefix may be assumed to have been written.
//
// Faults that are not consistent with missing backing store (addresses
// outside both operands) and every non-fault panic propagate unchanged.
func Copy(dst, src []byte) error {
	if len(dst) == 0 || len(src) == 0 {
		return nil
	}
	return guarded(dst, src)
}

func guarded(dst, src []byte) (err error) {
	prev := debug.SetPanicOnFault(true)
	defer debug.SetPanicOnFault(prev)

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if !isSpaceFault(r, dst, src) {
			panic(r)
		}
		err = ErrNoSpace
	}()

	copy(dst, src)
	return nil
}

// isSpaceFault reports whether a recovered panic is a runtime memory fault
// at an address inside one of the copy operands. Faults elsewhere are a
// distinct bug class and must not be absorbed.
func isSpaceFault(r any, dst, src []byte) bool {
	re, ok := r.(runtime.Error)
	if !ok {
		return false
	}
	ae, ok := re.(addressableError)
	if !ok {
		return false
	}
	return inRange(ae.Addr(), dst) || inRange(ae.Addr(), src)
}

func inRange(addr uintptr, b []byte) bool {
	if len(b) == 0 {
		return false
	}
	start := uintptr(unsafe.Pointer(&b[0]))
	return addr >= start && addr < start+uintptr(len(b))
}
