package mmapio

// Compression selects the codec used by Archive and Fetch.
type Compression int

const (
	// CompressionZstd compresses archived images with zstd (default).
	CompressionZstd Compression = iota
	// CompressionLZ4 compresses archived images with lz4. Faster than zstd
	// at a worse ratio; useful when archival runs next to a hot write path.
	CompressionLZ4
	// CompressionNone archives the raw image.
	CompressionNone
)

type options struct {
	sparse           bool
	logger           *Logger
	metrics          MetricsCollector
	compression      Compression
	compressionLevel int
}

func defaultOptions() options {
	return options{
		logger:           NoopLogger(),
		metrics:          NoopMetricsCollector{},
		compression:      CompressionZstd,
		compressionLevel: 3,
	}
}

// Option configures Open and Fetch behavior.
type Option func(*options)

// WithSparse skips physical space reservation and only extends the file's
// logical length. Writes into the mapping can then fault when the disk
// fills up; ReadAt/WriteAt report this as ErrNoSpace instead of crashing.
//
// Use this on filesystems where explicit preallocation causes excessive I/O.
func WithSparse(sparse bool) Option {
	return func(o *options) {
		o.sparse = sparse
	}
}

// WithLogger configures structured logging. If nil is passed, logging is
// disabled.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithMetricsCollector configures metrics collection. If nil is passed,
// metrics are disabled.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metrics = mc
	}
}

// WithCompression selects the archive codec.
func WithCompression(c Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithCompressionLevel sets the zstd compression level (1-22, zstd scale).
// Ignored for other codecs.
func WithCompressionLevel(level int) Option {
	return func(o *options) {
		o.compressionLevel = level
	}
}
