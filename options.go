package rescodec

import (
	"runtime"

	"github.com/hupe1980/rescodec/internal/kernel"
	"github.com/hupe1980/rescodec/persistence"
)

// Compression selects the artifact payload compression used by Save.
type Compression = persistence.Compression

// Re-exported compression algorithms.
const (
	CompressionNone = persistence.CompressionNone
	CompressionLZ4  = persistence.CompressionLZ4
	CompressionZSTD = persistence.CompressionZSTD
)

// DefaultChunkSize is the number of vectors one compress/decompress chunk
// carries. Chunking bounds peak memory; it never changes results.
const DefaultChunkSize = 1 << 15

type options struct {
	chunkSize        int
	parallelism      int
	scoreBudget      int
	backendKind      kernel.Kind
	compression      Compression
	logger           *Logger
	metricsCollector MetricsCollector
}

// Option configures codec construction.
type Option func(*options)

// WithChunkSize sets the number of vectors per processing chunk.
// Smaller chunks lower peak memory; output is identical for any size.
func WithChunkSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.chunkSize = n
		}
	}
}

// WithParallelism bounds the number of chunks processed concurrently.
// Defaults to GOMAXPROCS; 1 forces sequential processing.
func WithParallelism(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.parallelism = n
		}
	}
}

// WithAssignScoreBudget bounds the score-matrix size (in cells) one
// centroid-assignment step may materialize.
func WithAssignScoreBudget(cells int) Option {
	return func(o *options) {
		if cells > 0 {
			o.scoreBudget = cells
		}
	}
}

// WithAccelerated selects the execution backend: true for the
// BLAS-accelerated path, false for the portable generic path.
// The backend affects throughput only, never output semantics.
// Without this option the backend is auto-selected from CPU features,
// overridable via RESCODEC_BACKEND.
func WithAccelerated(accelerated bool) Option {
	return func(o *options) {
		if accelerated {
			o.backendKind = kernel.BLAS
		} else {
			o.backendKind = kernel.Generic
		}
	}
}

// WithCompression sets the artifact compression used by Save.
// Defaults to LZ4.
func WithCompression(c Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc != nil {
			o.metricsCollector = mc
		}
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		chunkSize:        DefaultChunkSize,
		parallelism:      runtime.GOMAXPROCS(0),
		backendKind:      kernel.DefaultKind(),
		compression:      CompressionLZ4,
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
