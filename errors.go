package mmapio

import (
	"errors"
	"fmt"

	"github.com/hupe1980/mmapio/prealloc"
	"github.com/hupe1980/mmapio/safecopy"
)

var (
	// ErrClosed is returned when operating on a closed File.
	ErrClosed = errors.New("mmapio: file is closed")

	// ErrOutOfRange is returned when a read or write falls outside the
	// mapped length of the file.
	ErrOutOfRange = errors.New("mmapio: offset out of range")

	// ErrNoSpace is returned when a guarded copy faulted because the
	// backing store ran out of space. The destination bytes of the failed
	// operation are undefined.
	ErrNoSpace = errors.New("mmapio: no space left on device")

	// ErrReservationDenied is returned when the platform refused to reserve
	// the requested space (insufficient free space, quota, or permission).
	ErrReservationDenied = errors.New("mmapio: space reservation denied")
)

// translateError maps subpackage errors onto the package sentinels so
// callers can use errors.Is without importing the subpackages.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, safecopy.ErrNoSpace) {
		return fmt.Errorf("%w: %w", ErrNoSpace, err)
	}

	var re *prealloc.ReserveError
	if errors.As(err, &re) {
		return fmt.Errorf("%w: %w", ErrReservationDenied, err)
	}

	return err
}
