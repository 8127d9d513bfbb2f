package filecache

import (
	"time"

	"github.com/hupe1980/mmapio"
)

// Options configures a Cache.
type Options struct {
	// MaxEntries bounds the number of simultaneously open files.
	MaxEntries int

	// Sparse skips physical space reservation for new files. See
	// mmapio.WithSparse.
	Sparse bool

	// DisableMmap switches to positioned read/write syscalls instead of
	// memory mappings.
	DisableMmap bool

	// FlushInterval is the period of the background dirty-page flusher.
	// Zero disables background flushing; callers then flush explicitly.
	FlushInterval time.Duration

	// FlushBytesPerSec throttles background flushing. Zero means unlimited.
	FlushBytesPerSec int

	// Logger configures structured logging. Nil disables logging.
	Logger *mmapio.Logger

	// Metrics configures metrics collection. Nil disables metrics.
	Metrics mmapio.MetricsCollector
}

// DefaultOptions are the options used when none are given.
var DefaultOptions = Options{
	MaxEntries:    256,
	FlushInterval: 5 * time.Second,
}
