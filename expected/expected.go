// Package expected implements expected-value functions: the background model
// of contact count as a function of genomic distance at one resolution.
//
// A Function built from an Eager table holds its values in memory. A Deferred
// function keeps only the file position and loads the table, or a part of it,
// on demand.
package expected

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/arloliu/hic/encoding"
	"github.com/arloliu/hic/endian"
	"github.com/arloliu/hic/errs"
	"github.com/arloliu/hic/format"
	"github.com/arloliu/hic/section"
)

// RangeReader reads raw bytes from the file.
type RangeReader interface {
	ReadRange(ctx context.Context, pos int64, size int) ([]byte, error)
}

// Function is one expected-value table with its per-chromosome factors.
//
// It is safe for concurrent use. A deferred table is loaded at most once per
// successful load; failed loads are retried on the next call.
type Function struct {
	key      string
	normType format.NormType
	unit     format.Unit
	binSize  int32
	strategy format.ExpectedStrategy
	count    int64
	position int64
	long     bool
	factors  map[int32]float64
	reader   RangeReader

	values atomic.Pointer[[]float64]
	group  singleflight.Group
}

// New creates a Function from a footer entry. reader is only used by deferred
// tables and may be nil for eager ones.
func New(entry *section.ExpectedEntry, version format.Version, reader RangeReader) *Function {
	f := &Function{
		key:      entry.Key(),
		normType: entry.NormType,
		unit:     entry.Unit,
		binSize:  entry.BinSize,
		strategy: entry.Strategy,
		count:    entry.ValueCount,
		position: entry.ValuesPosition,
		long:     version.HasLongFields(),
		factors:  entry.NormFactors,
		reader:   reader,
	}
	if entry.Strategy == format.ExpectedEager {
		values := entry.Values
		f.values.Store(&values)
	}

	return f
}

// Key returns the "unit_binSize_type" lookup key.
func (f *Function) Key() string { return f.key }

// NormType returns the normalization the table was computed for.
func (f *Function) NormType() format.NormType { return f.normType }

// Unit returns the bin unit.
func (f *Function) Unit() format.Unit { return f.unit }

// BinSize returns the resolution.
func (f *Function) BinSize() int32 { return f.binSize }

// Strategy reports whether the table was loaded eagerly.
func (f *Function) Strategy() format.ExpectedStrategy { return f.strategy }

// Len returns the number of values in the table.
func (f *Function) Len() int64 { return f.count }

// Loaded reports whether the full table is in memory.
func (f *Function) Loaded() bool { return f.values.Load() != nil }

// NormFactor returns the normalization factor of chr, or 1 when the table
// carries none for it.
func (f *Function) NormFactor(chr int32) float64 {
	if v, ok := f.factors[chr]; ok {
		return v
	}

	return 1
}

// NormFactors returns a copy of the per-chromosome factors.
func (f *Function) NormFactors() map[int32]float64 {
	out := make(map[int32]float64, len(f.factors))
	for k, v := range f.factors {
		out[k] = v
	}

	return out
}

// Values returns the whole table, loading a deferred table on first use.
// The returned slice is shared and must not be modified.
func (f *Function) Values(ctx context.Context) ([]float64, error) {
	if p := f.values.Load(); p != nil {
		return *p, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := f.group.DoChan("values", func() (any, error) {
		if p := f.values.Load(); p != nil {
			return *p, nil
		}
		values, err := f.read(loadCtx, 0, f.count)
		if err != nil {
			return nil, err
		}
		f.values.Store(&values)

		return values, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}

		return res.Val.([]float64), nil //nolint: forcetypeassert
	}
}

// ValuesRange returns values [start, end] inclusive. An in-memory table is
// sliced into a copy; a deferred table reads only the requested part.
func (f *Function) ValuesRange(ctx context.Context, start, end int64) ([]float64, error) {
	if start < 0 || end < start || end >= f.count {
		return nil, fmt.Errorf("%w: [%d, %d] of %d expected values", errs.ErrInvalidRange, start, end, f.count)
	}

	if p := f.values.Load(); p != nil {
		return append([]float64(nil), (*p)[start:end+1]...), nil
	}

	return f.read(ctx, start, end-start+1)
}

// ExpectedValue returns the expected count at distance bins for chr, divided
// by the chromosome factor. Distances past the table use its last value.
func (f *Function) ExpectedValue(ctx context.Context, chr int32, distance int64) (float64, error) {
	if f.count == 0 {
		return 0, errs.NewMissingDataError("expected values", f.key, errs.ErrExpectedValuesNotFound)
	}
	if distance < 0 {
		distance = -distance
	}

	values, err := f.Values(ctx)
	if err != nil {
		return 0, err
	}
	if distance >= int64(len(values)) {
		distance = int64(len(values)) - 1
	}

	return values[distance] / f.NormFactor(chr), nil
}

func (f *Function) read(ctx context.Context, start, n int64) ([]float64, error) {
	if f.reader == nil {
		return nil, errs.NewMissingDataError("expected values", f.key, errs.ErrExpectedValuesNotFound)
	}

	return ReadPart(ctx, f.reader, f.position, f.long, start, n)
}

// ReadPart reads n packed values starting at element start of a vector whose
// first element is at pos.
func ReadPart(ctx context.Context, r RangeReader, pos int64, long bool, start, n int64) ([]float64, error) {
	if n == 0 {
		return []float64{}, nil
	}

	width := int64(encoding.ValueWidth(long))
	offset := pos + start*width
	buf, err := r.ReadRange(ctx, offset, int(n*width))
	if err != nil {
		return nil, fmt.Errorf("read %d expected values at offset %d: %w", n, offset, err)
	}

	return encoding.DecodeValues(buf, offset, long, endian.GetLittleEndianEngine())
}
