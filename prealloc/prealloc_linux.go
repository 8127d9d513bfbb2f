//go:build linux

package prealloc

import (
	"os"

	"golang.org/x/sys/unix"
)

// reserve commits blocks for [0, length) with fallocate(2). Mode 0 also
// extends the logical length, so no separate ftruncate is needed.
func reserve(f *os.File, length int64) (bool, error) {
	for {
		err := unix.Fallocate(int(f.Fd()), 0, 0, length)
		switch err {
		case nil:
			return true, nil
		case unix.EINTR:
			continue
		case unix.EOPNOTSUPP, unix.ENOSYS:
			// Filesystem or kernel without fallocate support; leave the
			// file sparse with the right logical length.
			if terr := f.Truncate(length); terr != nil {
				return false, &ReserveError{Op: "ftruncate", Err: terr}
			}
			return false, nil
		default:
			return false, &ReserveError{Op: "fallocate", Err: err}
		}
	}
}
