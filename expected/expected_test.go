package expected

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/hic/endian"
	"github.com/arloliu/hic/errs"
	"github.com/arloliu/hic/format"
	"github.com/arloliu/hic/section"
)

type memReader struct {
	data  []byte
	reads atomic.Int32
	fail  atomic.Bool
}

func (m *memReader) ReadRange(_ context.Context, pos int64, size int) ([]byte, error) {
	m.reads.Add(1)
	if m.fail.Load() {
		return nil, errors.New("boom")
	}
	if pos < 0 || pos+int64(size) > int64(len(m.data)) {
		return nil, errors.New("out of range")
	}

	return append([]byte(nil), m.data[pos:pos+int64(size)]...), nil
}

// packValues lays out values after a 16-byte prefix.
func packValues(values []float64, long bool) []byte {
	engine := endian.GetLittleEndianEngine()
	buf := make([]byte, 16)
	for _, v := range values {
		if long {
			buf = endian.AppendFloat32(engine, buf, float32(v))
		} else {
			buf = endian.AppendFloat64(engine, buf, v)
		}
	}

	return buf
}

func deferredEntry(n int64) *section.ExpectedEntry {
	return &section.ExpectedEntry{
		NormType:       format.NormKR,
		Unit:           format.UnitBP,
		UnitName:       "BP",
		BinSize:        100,
		Strategy:       format.ExpectedDeferred,
		ValueCount:     n,
		ValuesPosition: 16,
		NormFactors:    map[int32]float64{1: 2},
	}
}

func TestFunction_Eager(t *testing.T) {
	entry := &section.ExpectedEntry{
		NormType:    format.NormNone,
		Unit:        format.UnitBP,
		UnitName:    "BP",
		BinSize:     1000,
		Strategy:    format.ExpectedEager,
		ValueCount:  3,
		Values:      []float64{10, 5, 2},
		NormFactors: map[int32]float64{1: 2, 2: 0.5},
	}
	f := New(entry, 8, nil)
	ctx := context.Background()

	require.Equal(t, "BP_1000_NONE", f.Key())
	require.True(t, f.Loaded())
	require.Equal(t, int64(3), f.Len())
	require.Equal(t, format.ExpectedEager, f.Strategy())

	tests := []struct {
		name     string
		chr      int32
		distance int64
		want     float64
	}{
		{"factor 2", 1, 0, 5},
		{"factor half", 2, 1, 10},
		{"no factor", 3, 2, 2},
		{"clamped", 1, 100, 1},
		{"negative distance", 3, -1, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.ExpectedValue(ctx, tt.chr, tt.distance)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}

	part, err := f.ValuesRange(ctx, 1, 2)
	require.NoError(t, err)
	require.Equal(t, []float64{5, 2}, part)
	part[0] = 99
	values, err := f.Values(ctx)
	require.NoError(t, err)
	require.Equal(t, []float64{10, 5, 2}, values)

	factors := f.NormFactors()
	factors[1] = 100
	require.Equal(t, 2.0, f.NormFactor(1))
}

func TestFunction_Deferred(t *testing.T) {
	for _, version := range []format.Version{8, 9} {
		t.Run(fmt.Sprintf("v%d", version), func(t *testing.T) {
			values := []float64{8, 4, 2, 1}
			r := &memReader{data: packValues(values, version.HasLongFields())}
			f := New(deferredEntry(4), version, r)
			ctx := context.Background()

			require.False(t, f.Loaded())

			part, err := f.ValuesRange(ctx, 1, 2)
			require.NoError(t, err)
			require.Equal(t, []float64{4, 2}, part)
			require.False(t, f.Loaded(), "a part read does not load the table")

			got, err := f.ExpectedValue(ctx, 1, 0)
			require.NoError(t, err)
			require.Equal(t, 4.0, got)
			require.True(t, f.Loaded())

			reads := r.reads.Load()
			got, err = f.ExpectedValue(ctx, 1, 10)
			require.NoError(t, err)
			require.Equal(t, 0.5, got)
			require.Equal(t, reads, r.reads.Load(), "loaded table is not re-read")
		})
	}
}

func TestFunction_DeferredRetryAfterError(t *testing.T) {
	r := &memReader{data: packValues([]float64{1, 2}, false)}
	r.fail.Store(true)
	f := New(deferredEntry(2), 8, r)

	_, err := f.Values(context.Background())
	require.Error(t, err)
	require.False(t, f.Loaded())

	r.fail.Store(false)
	values, err := f.Values(context.Background())
	require.NoError(t, err)
	require.Equal(t, []float64{1, 2}, values)
}

func TestFunction_DeferredConcurrentLoad(t *testing.T) {
	r := &memReader{data: packValues([]float64{3, 2, 1}, false)}
	f := New(deferredEntry(3), 8, r)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			values, err := f.Values(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, []float64{3, 2, 1}, values)
		}()
	}
	wg.Wait()
	require.LessOrEqual(t, r.reads.Load(), int32(16))
	require.True(t, f.Loaded())
}

type gatedReader struct {
	*memReader
	started chan struct{}
	once    sync.Once
	release chan struct{}
}

func (g *gatedReader) ReadRange(ctx context.Context, pos int64, size int) ([]byte, error) {
	g.once.Do(func() { close(g.started) })
	<-g.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return g.memReader.ReadRange(ctx, pos, size)
}

func TestFunction_DeferredCanceledCaller(t *testing.T) {
	g := &gatedReader{
		memReader: &memReader{data: packValues([]float64{3, 2, 1}, false)},
		started:   make(chan struct{}),
		release:   make(chan struct{}),
	}
	f := New(deferredEntry(3), 8, g)

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := f.Values(ctx)
		firstErr <- err
	}()
	<-g.started

	second := make(chan []float64, 1)
	go func() {
		values, err := f.Values(context.Background())
		assert.NoError(t, err)
		second <- values
	}()

	cancel()
	require.ErrorIs(t, <-firstErr, context.Canceled)

	close(g.release)
	require.Equal(t, []float64{3, 2, 1}, <-second)
	require.True(t, f.Loaded())
}

func TestFunction_Errors(t *testing.T) {
	ctx := context.Background()
	f := New(deferredEntry(2), 8, nil)

	_, err := f.Values(ctx)
	require.ErrorIs(t, err, errs.ErrMissingData)

	_, err = f.ValuesRange(ctx, 1, 0)
	require.ErrorIs(t, err, errs.ErrInvalidRange)
	_, err = f.ValuesRange(ctx, 0, 2)
	require.ErrorIs(t, err, errs.ErrInvalidRange)

	empty := New(&section.ExpectedEntry{UnitName: "BP", Strategy: format.ExpectedEager}, 8, nil)
	_, err = empty.ExpectedValue(ctx, 1, 0)
	require.ErrorIs(t, err, errs.ErrExpectedValuesNotFound)
}

func TestReadPart(t *testing.T) {
	r := &memReader{data: packValues([]float64{1, 2, 3, 4}, true)}

	got, err := ReadPart(context.Background(), r, 16, true, 2, 2)
	require.NoError(t, err)
	require.Equal(t, []float64{3, 4}, got)

	got, err = ReadPart(context.Background(), r, 16, true, 0, 0)
	require.NoError(t, err)
	require.Empty(t, got)
	require.Equal(t, int32(1), r.reads.Load())

	_, err = ReadPart(context.Background(), r, 16, true, 3, 2)
	require.Error(t, err)
}
