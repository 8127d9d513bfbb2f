//go:build !unix

package prealloc

import "os"

// IsSparse always reports false on platforms without block accounting.
func IsSparse(f *os.File) (bool, error) {
	return false, nil
}
