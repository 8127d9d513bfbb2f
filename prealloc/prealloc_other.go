//go:build !linux && !darwin && !freebsd

package prealloc

import "os"

// reserve extends the logical length only. Platforms without a preallocation
// primitive get sparse files; later mapped writes can still fault when the
// disk fills up.
func reserve(f *os.File, length int64) (bool, error) {
	if err := f.Truncate(length); err != nil {
		return false, &ReserveError{Op: "truncate", Err: err}
	}
	return false, nil
}
