package norm

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/singleflight"

	"github.com/arloliu/hic/encoding"
	"github.com/arloliu/hic/endian"
	"github.com/arloliu/hic/errs"
	"github.com/arloliu/hic/format"
	"github.com/arloliu/hic/internal/syncmap"
	"github.com/arloliu/hic/section"
)

// RangeReader reads raw bytes from the file.
type RangeReader interface {
	ReadRange(ctx context.Context, pos int64, size int) ([]byte, error)
}

// Store loads normalization vectors lazily and caches them by key.
//
// A VC_SQRT request without its own vector is answered with the square root of
// the VC vector. A vector whose values are all NaN is reported as missing.
type Store struct {
	index   map[string]section.IndexEntry
	version format.Version
	reader  RangeReader
	engine  endian.EndianEngine

	cache *syncmap.Map[*Vector]
	group singleflight.Group
}

// NewStore creates a Store over the normalization vector index of a footer.
func NewStore(index map[string]section.IndexEntry, version format.Version, reader RangeReader) *Store {
	return &Store{
		index:   index,
		version: version,
		reader:  reader,
		engine:  endian.GetLittleEndianEngine(),
		cache:   syncmap.New[*Vector](),
	}
}

// Has reports whether a vector, or its VC_SQRT fallback, is indexed.
func (s *Store) Has(normType format.NormType, chrIdx int32, unit string, resolution int32) bool {
	_, _, ok := s.lookup(normType, chrIdx, unit, resolution)
	return ok
}

// Len returns the number of indexed vectors.
func (s *Store) Len() int { return len(s.index) }

func (s *Store) lookup(normType format.NormType, chrIdx int32, unit string, resolution int32) (section.IndexEntry, bool, bool) {
	if entry, ok := s.index[section.NormVectorKey(normType, chrIdx, unit, resolution)]; ok {
		return entry, false, true
	}
	if normType == format.NormVCSqrt {
		if entry, ok := s.index[section.NormVectorKey(format.NormVC, chrIdx, unit, resolution)]; ok {
			return entry, true, true
		}
	}

	return section.IndexEntry{}, false, false
}

// Vector returns the whole normalization vector.
//
// Absent and all-NaN vectors return a MissingDataError. Results, including the
// all-NaN miss, are cached; I/O errors are not.
func (s *Store) Vector(ctx context.Context, normType format.NormType, chrIdx int32, unit string, resolution int32) (*Vector, error) {
	key := section.NormVectorKey(normType, chrIdx, unit, resolution)
	if v, ok := s.cache.Load(key); ok {
		return found(v, key)
	}

	entry, fromVC, ok := s.lookup(normType, chrIdx, unit, resolution)
	if !ok {
		return nil, errs.NewMissingDataError("normalization vector", key, errs.ErrNormVectorNotFound)
	}

	// The load outlives a canceled caller so that joined callers still get it.
	loadCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		return s.cache.LoadOrCompute(key, func() (*Vector, error) {
			values, err := s.readVector(loadCtx, entry)
			if err != nil {
				return nil, err
			}
			if fromVC {
				sqrtValues(values)
			}
			if allNaN(values) {
				return nil, nil
			}

			return &Vector{Type: normType, ChrIdx: chrIdx, Unit: unit, Resolution: resolution, Values: values}, nil
		})
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}

		return found(res.Val.(*Vector), key) //nolint: forcetypeassert
	}
}

func found(v *Vector, key string) (*Vector, error) {
	if v == nil {
		return nil, errs.NewMissingDataError("normalization vector", key, errs.ErrNormVectorAllNaN)
	}

	return v, nil
}

// VectorPart returns bins [bound1, bound2] of a vector, read directly from the
// file without loading the whole vector.
func (s *Store) VectorPart(ctx context.Context, normType format.NormType, chrIdx int32, unit string, resolution int32, bound1, bound2 int64) (*Vector, error) {
	key := section.NormVectorKey(normType, chrIdx, unit, resolution)
	if bound1 < 0 || bound2 < bound1 {
		return nil, fmt.Errorf("%w: [%d, %d] of %s", errs.ErrInvalidRange, bound1, bound2, key)
	}

	if v, ok := s.cache.Load(key); ok {
		if v == nil {
			return found(nil, key)
		}
		if bound2 >= int64(len(v.Values)) {
			return nil, fmt.Errorf("%w: [%d, %d] of %d values in %s", errs.ErrInvalidRange, bound1, bound2, len(v.Values), key)
		}
		part := append([]float64(nil), v.Values[bound1:bound2+1]...)

		return &Vector{Type: normType, ChrIdx: chrIdx, Unit: unit, Resolution: resolution, Values: part, Offset: bound1}, nil
	}

	entry, fromVC, ok := s.lookup(normType, chrIdx, unit, resolution)
	if !ok {
		return nil, errs.NewMissingDataError("normalization vector", key, errs.ErrNormVectorNotFound)
	}

	long := s.version.HasLongFields()
	width := int64(encoding.ValueWidth(long))
	pos := entry.Position + s.version.CountWidth() + width*bound1
	n := bound2 - bound1 + 1
	buf, err := s.reader.ReadRange(ctx, pos, int(n*width))
	if err != nil {
		return nil, fmt.Errorf("read normalization vector part %s: %w", key, err)
	}
	values, err := encoding.DecodeValues(buf, pos, long, s.engine)
	if err != nil {
		return nil, err
	}
	if fromVC {
		sqrtValues(values)
	}
	if allNaN(values) {
		return found(nil, key)
	}

	return &Vector{Type: normType, ChrIdx: chrIdx, Unit: unit, Resolution: resolution, Values: values, Offset: bound1}, nil
}

func (s *Store) readVector(ctx context.Context, entry section.IndexEntry) ([]float64, error) {
	buf, err := s.reader.ReadRange(ctx, entry.Position, int(entry.Size))
	if err != nil {
		return nil, fmt.Errorf("read normalization vector at offset %d: %w", entry.Position, err)
	}

	long := s.version.HasLongFields()
	c := encoding.NewCursor(buf, entry.Position, s.engine)
	var n int64
	if long {
		n = c.Int64()
	} else {
		n = int64(c.Int32())
	}
	if err := c.Err(); err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, errs.NewFormatError(entry.Position, "normalization vector length", errs.ErrNegativeCount)
	}

	width := int64(encoding.ValueWidth(long))
	if n*width > int64(c.Remaining()) {
		return nil, errs.NewFormatError(c.Offset(), fmt.Sprintf("normalization vector of %d values", n), errs.ErrInvalidRange)
	}

	off := c.Offset()

	return encoding.DecodeValues(c.Bytes(int(n*width)), off, long, s.engine)
}

func sqrtValues(values []float64) {
	for i, v := range values {
		values[i] = math.Sqrt(v)
	}
}
