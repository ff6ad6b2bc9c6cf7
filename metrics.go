package rescodec

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordCompress is called after each compress call.
	// count is the number of vectors in the batch, duration is the total
	// time taken, err is nil if successful.
	RecordCompress(count int, duration time.Duration, err error)

	// RecordDecompress is called after each decompress call.
	RecordDecompress(count int, duration time.Duration, err error)

	// RecordSave is called after each parameter save.
	RecordSave(duration time.Duration, err error)

	// RecordLoad is called after each parameter load.
	RecordLoad(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordCompress(int, time.Duration, error)   {}
func (NoopMetricsCollector) RecordDecompress(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordSave(time.Duration, error)            {}
func (NoopMetricsCollector) RecordLoad(time.Duration, error)            {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	CompressCount        atomic.Int64
	CompressVectors      atomic.Int64
	CompressErrors       atomic.Int64
	CompressTotalNanos   atomic.Int64
	DecompressCount      atomic.Int64
	DecompressVectors    atomic.Int64
	DecompressErrors     atomic.Int64
	DecompressTotalNanos atomic.Int64
	SaveCount            atomic.Int64
	SaveErrors           atomic.Int64
	LoadCount            atomic.Int64
	LoadErrors           atomic.Int64
}

// RecordCompress implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCompress(count int, duration time.Duration, err error) {
	b.CompressCount.Add(1)
	b.CompressVectors.Add(int64(count))
	b.CompressTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.CompressErrors.Add(1)
	}
}

// RecordDecompress implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDecompress(count int, duration time.Duration, err error) {
	b.DecompressCount.Add(1)
	b.DecompressVectors.Add(int64(count))
	b.DecompressTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.DecompressErrors.Add(1)
	}
}

// RecordSave implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSave(duration time.Duration, err error) {
	b.SaveCount.Add(1)
	if err != nil {
		b.SaveErrors.Add(1)
	}
}

// RecordLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLoad(duration time.Duration, err error) {
	b.LoadCount.Add(1)
	if err != nil {
		b.LoadErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		CompressCount:      b.CompressCount.Load(),
		CompressVectors:    b.CompressVectors.Load(),
		CompressErrors:     b.CompressErrors.Load(),
		CompressAvgNanos:   avgNanos(&b.CompressTotalNanos, &b.CompressCount),
		DecompressCount:    b.DecompressCount.Load(),
		DecompressVectors:  b.DecompressVectors.Load(),
		DecompressErrors:   b.DecompressErrors.Load(),
		DecompressAvgNanos: avgNanos(&b.DecompressTotalNanos, &b.DecompressCount),
		SaveCount:          b.SaveCount.Load(),
		SaveErrors:         b.SaveErrors.Load(),
		LoadCount:          b.LoadCount.Load(),
		LoadErrors:         b.LoadErrors.Load(),
	}
}

func avgNanos(total, count *atomic.Int64) int64 {
	c := count.Load()
	if c == 0 {
		return 0
	}
	return total.Load() / c
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	CompressCount      int64
	CompressVectors    int64
	CompressErrors     int64
	CompressAvgNanos   int64
	DecompressCount    int64
	DecompressVectors  int64
	DecompressErrors   int64
	DecompressAvgNanos int64
	SaveCount          int64
	SaveErrors         int64
	LoadCount          int64
	LoadErrors         int64
}
