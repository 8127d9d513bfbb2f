package prealloc

import (
	"fmt"
	"math"
	"os"
)

// Options configures a reservation.
type Options struct {
	// Sparse skips physical allocation and only extends the file's logical
	// length. See the package documentation for when this is appropriate.
	Sparse bool
}

// WithSparse configures sparse (logical-length only) reservation.
func WithSparse(sparse bool) func(o *Options) {
	return func(o *Options) {
		o.Sparse = sparse
	}
}

// Reserve ensures the file has length bytes of storage committed, using the
// best strategy available on the host platform.
//
// The returned allocated flag reports whether physical blocks were committed:
// false means the file was only logically extended (sparse mode, an
// unsupported filesystem, or a platform without preallocation support) and
// later writes into a mapping of the file can still fault on a full disk.
//
// After a successful call the file's logical length is at least length.
// A length of zero succeeds trivially. Shrinking an already longer file is
// not supported; the result in that case is platform-dependent.
//
// Reservation mutates the file's length and allocation non-atomically on
// some platforms; concurrent calls against the same file must be serialized
// by the caller.
func Reserve(f *os.File, length uint64, optFns ...func(o *Options)) (allocated bool, err error) {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}

	if length == 0 {
		// Trivially satisfied; report the flavor of guarantee the caller
		// asked for.
		return !opts.Sparse, nil
	}
	if length > math.MaxInt64 {
		return false, fmt.Errorf("prealloc: length %d overflows off_t", length)
	}

	if opts.Sparse {
		if err := f.Truncate(int64(length)); err != nil {
			return false, fmt.Errorf("prealloc: extend length: %w", err)
		}
		return false, nil
	}

	return reserve(f, int64(length))
}
