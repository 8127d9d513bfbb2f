//go:build darwin

package prealloc

import (
	"os"

	"golang.org/x/sys/unix"
)

// reserve commits blocks with fcntl F_PREALLOCATE. Contiguous allocation is
// attempted first; if the volume is too fragmented the kernel refuses, and a
// second attempt asks for non-contiguous space of the same size. On success
// the logical length is set separately, since F_PREALLOCATE only reserves
// blocks past EOF.
func reserve(f *os.File, length int64) (bool, error) {
	fst := unix.Fstore_t{
		Flags:   unix.F_ALLOCATECONTIG,
		Posmode: unix.F_PEOFPOSMODE,
		Offset:  0,
		Length:  length,
	}

	err := unix.FcntlFstore(f.Fd(), unix.F_PREALLOCATE, &fst)
	if err != nil {
		fst.Flags = unix.F_ALLOCATEALL
		fst.Bytesalloc = 0
		err = unix.FcntlFstore(f.Fd(), unix.F_PREALLOCATE, &fst)
	}

	switch err {
	case nil:
		if terr := f.Truncate(length); terr != nil {
			return false, &ReserveError{Op: "ftruncate", Err: terr}
		}
		return true, nil
	case unix.EOPNOTSUPP, unix.ENOTSUP, unix.ENOTTY:
		// Filesystem without preallocation support (e.g. SMB mounts).
		if terr := f.Truncate(length); terr != nil {
			return false, &ReserveError{Op: "ftruncate", Err: terr}
		}
		return false, nil
	default:
		return false, &ReserveError{Op: "fcntl F_PREALLOCATE", Err: err}
	}
}
