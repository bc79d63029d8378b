package dataset

import (
	"sync/atomic"
	"time"
)

// Metrics receives timings from the read path.
// Implement it to integrate with a monitoring system.
type Metrics interface {
	// RecordRead is called after each ranged read of the file.
	RecordRead(bytes int64, d time.Duration, err error)
	// RecordDecompress is called after each block decompression.
	RecordDecompress(in, out int64, d time.Duration, err error)
	// RecordBlockDecode is called after each block body is decoded.
	RecordBlockDecode(records int, d time.Duration, err error)
	// RecordNormalize is called after each normalized block is produced.
	RecordNormalize(records int, d time.Duration)
}

// NoopMetrics discards every measurement.
type NoopMetrics struct{}

func (NoopMetrics) RecordRead(int64, time.Duration, error)              {}
func (NoopMetrics) RecordDecompress(int64, int64, time.Duration, error) {}
func (NoopMetrics) RecordBlockDecode(int, time.Duration, error)         {}
func (NoopMetrics) RecordNormalize(int, time.Duration)                  {}

// BasicMetrics accumulates counters in memory.
type BasicMetrics struct {
	ReadCount        atomic.Int64
	ReadBytes        atomic.Int64
	ReadErrors       atomic.Int64
	ReadNanos        atomic.Int64
	DecompressCount  atomic.Int64
	DecompressIn     atomic.Int64
	DecompressOut    atomic.Int64
	DecompressErrors atomic.Int64
	DecompressNanos  atomic.Int64
	DecodeCount      atomic.Int64
	DecodeRecords    atomic.Int64
	DecodeErrors     atomic.Int64
	DecodeNanos      atomic.Int64
	NormalizeCount   atomic.Int64
	NormalizeRecords atomic.Int64
	NormalizeNanos   atomic.Int64
}

// RecordRead implements Metrics.
func (b *BasicMetrics) RecordRead(bytes int64, d time.Duration, err error) {
	b.ReadCount.Add(1)
	b.ReadBytes.Add(bytes)
	b.ReadNanos.Add(d.Nanoseconds())
	if err != nil {
		b.ReadErrors.Add(1)
	}
}

// RecordDecompress implements Metrics.
func (b *BasicMetrics) RecordDecompress(in, out int64, d time.Duration, err error) {
	b.DecompressCount.Add(1)
	b.DecompressIn.Add(in)
	b.DecompressOut.Add(out)
	b.DecompressNanos.Add(d.Nanoseconds())
	if err != nil {
		b.DecompressErrors.Add(1)
	}
}

// RecordBlockDecode implements Metrics.
func (b *BasicMetrics) RecordBlockDecode(records int, d time.Duration, err error) {
	b.DecodeCount.Add(1)
	b.DecodeRecords.Add(int64(records))
	b.DecodeNanos.Add(d.Nanoseconds())
	if err != nil {
		b.DecodeErrors.Add(1)
	}
}

// RecordNormalize implements Metrics.
func (b *BasicMetrics) RecordNormalize(records int, d time.Duration) {
	b.NormalizeCount.Add(1)
	b.NormalizeRecords.Add(int64(records))
	b.NormalizeNanos.Add(d.Nanoseconds())
}

// BasicMetricsStats is a snapshot of BasicMetrics.
type BasicMetricsStats struct {
	ReadCount        int64
	ReadBytes        int64
	ReadErrors       int64
	DecompressCount  int64
	DecompressErrors int64
	DecodeCount      int64
	DecodeRecords    int64
	DecodeErrors     int64
	NormalizeCount   int64
	AvgReadNanos     int64
	AvgDecodeNanos   int64
}

// Stats returns a snapshot of the counters.
func (b *BasicMetrics) Stats() BasicMetricsStats {
	return BasicMetricsStats{
		ReadCount:        b.ReadCount.Load(),
		ReadBytes:        b.ReadBytes.Load(),
		ReadErrors:       b.ReadErrors.Load(),
		DecompressCount:  b.DecompressCount.Load(),
		DecompressErrors: b.DecompressErrors.Load(),
		DecodeCount:      b.DecodeCount.Load(),
		DecodeRecords:    b.DecodeRecords.Load(),
		DecodeErrors:     b.DecodeErrors.Load(),
		NormalizeCount:   b.NormalizeCount.Load(),
		AvgReadNanos:     avg(b.ReadNanos.Load(), b.ReadCount.Load()),
		AvgDecodeNanos:   avg(b.DecodeNanos.Load(), b.DecodeCount.Load()),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}

	return total / count
}
