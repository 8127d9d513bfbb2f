//go:build unix

package prealloc

import (
	"os"

	"golang.org/x/sys/unix"
)

// IsSparse reports whether the file's committed blocks cover less than its
// logical length. st_blocks is counted in 512-byte units regardless of the
// filesystem block size.
func IsSparse(f *os.File) (bool, error) {
	var st unix.Stat_t
	if err := unix.Fstat(int(f.Fd()), &st); err != nil {
		return false, err
	}
	return st.Blocks*512 < st.Size, nil
}
