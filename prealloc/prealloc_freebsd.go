//go:build freebsd

package prealloc

import (
	"os"

	"golang.org/x/sys/unix"
)

// reserve commits blocks for [0, length) with posix_fallocate(2), which
// allocates as if the range had been written with zeros and extends the
// logical length.
func reserve(f *os.File, length int64) (bool, error) {
	for {
		err := unix.PosixFallocate(int(f.Fd()), 0, length)
		switch err {
		case nil:
			return true, nil
		case unix.EINTR:
			continue
		case unix.EOPNOTSUPP, unix.ENOSYS, unix.EINVAL:
			// ZFS rejects posix_fallocate; leave the file sparse with the
			// right logical length.
			if terr := f.Truncate(length); terr != nil {
				return false, &ReserveError{Op: "ftruncate", Err: terr}
			}
			return false, nil
		default:
			return false, &ReserveError{Op: "posix_fallocate", Err: err}
		}
	}
}
