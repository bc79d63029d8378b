package index

import (
	"context"
	"errors"
	"io"
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/hic/endian"
	"github.com/arloliu/hic/errs"
	"github.com/arloliu/hic/section"
)

type memReader struct {
	data  []byte
	reads atomic.Int64
	fail  error
}

func (m *memReader) ReadRange(_ context.Context, pos int64, size int) ([]byte, error) {
	m.reads.Add(1)
	if m.fail != nil {
		return nil, m.fail
	}
	if pos < 0 || pos+int64(size) > int64(len(m.data)) {
		return nil, io.ErrUnexpectedEOF
	}

	return append([]byte(nil), m.data[pos:pos+int64(size)]...), nil
}

const testBase = 64

func encodeIndex(entries []section.BlockIndexEntry) []byte {
	engine := endian.GetLittleEndianEngine()
	data := make([]byte, testBase)
	for _, e := range entries {
		data = append(data, e.Bytes(engine)...)
	}

	return data
}

func sparseEntries() []section.BlockIndexEntry {
	return []section.BlockIndexEntry{
		{Number: 0, Position: 1000, Size: 10},
		{Number: 3, Position: 2000, Size: 20},
		{Number: 4, Position: 3000, Size: 30},
		{Number: 11, Position: 4000, Size: 40},
		{Number: 15, Position: 5000, Size: 50},
	}
}

func TestDense(t *testing.T) {
	ctx := context.Background()
	d, err := NewDense(sparseEntries())
	require.NoError(t, err)
	require.Equal(t, 5, d.Len())

	e, ok, err := d.Entry(ctx, 11)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(4000), e.Position)

	_, ok, err = d.Entry(ctx, 5)
	require.NoError(t, err)
	require.False(t, ok)

	numbers, err := d.BlockNumbers(ctx)
	require.NoError(t, err)
	require.Equal(t, []int32{0, 3, 4, 11, 15}, numbers)
}

func TestDense_NegativeNumber(t *testing.T) {
	_, err := NewDense([]section.BlockIndexEntry{{Number: -1}})
	require.ErrorIs(t, err, errs.ErrInvalidIndexEntry)
}

func TestDynamic_MatchesDense(t *testing.T) {
	ctx := context.Background()

	testCases := []struct {
		name    string
		entries []section.BlockIndexEntry
		sorted  bool
	}{
		{name: "sorted sparse", entries: sparseEntries(), sorted: true},
		{name: "unsorted sparse", entries: shuffle(sparseEntries()), sorted: false},
		{name: "reversed", entries: reverse(sparseEntries()), sorted: false},
		{name: "complete grid", entries: completeGrid(16), sorted: true},
		{name: "duplicate number", entries: append(sparseEntries(), section.BlockIndexEntry{Number: 15, Position: 9000, Size: 1}), sorted: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dense, err := NewDense(tc.entries)
			require.NoError(t, err)

			r := &memReader{data: encodeIndex(tc.entries)}
			dyn := NewDynamic(r, testBase, int32(len(tc.entries)), 15)
			require.Equal(t, len(tc.entries), dyn.Len())

			for n := int32(-1); n <= 16; n++ {
				want, wantOK, err := dense.Entry(ctx, n)
				require.NoError(t, err)
				got, gotOK, err := dyn.Entry(ctx, n)
				require.NoError(t, err)
				require.Equal(t, wantOK, gotOK, "block %d", n)
				require.Equal(t, want, got, "block %d", n)
			}

			wantNumbers, err := dense.BlockNumbers(ctx)
			require.NoError(t, err)
			gotNumbers, err := dyn.BlockNumbers(ctx)
			require.NoError(t, err)
			require.Equal(t, wantNumbers, gotNumbers)

			sorted, err := dyn.Sorted(ctx)
			require.NoError(t, err)
			require.Equal(t, tc.sorted, sorted)
		})
	}
}

func TestDynamic_SortedReadsSingleRecord(t *testing.T) {
	ctx := context.Background()
	r := &memReader{data: encodeIndex(sparseEntries())}
	dyn := NewDynamic(r, testBase, 5, 15)

	_, err := dyn.Sorted(ctx)
	require.NoError(t, err)
	afterScan := r.reads.Load()

	_, ok, err := dyn.Entry(ctx, 4)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, afterScan+1, r.reads.Load())

	// Absent numbers are answered from the scanned set without I/O.
	_, ok, err = dyn.Entry(ctx, 5)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, afterScan+1, r.reads.Load())
}

func TestDynamic_ChunkedScan(t *testing.T) {
	ctx := context.Background()
	entries := completeGrid(3 * scanChunkRecords / 2)
	// Swap two records in the second chunk so the fallback has to merge chunks.
	last := len(entries) - 1
	entries[last], entries[last-1] = entries[last-1], entries[last]

	r := &memReader{data: encodeIndex(entries)}
	dyn := NewDynamic(r, testBase, int32(len(entries)), int32(len(entries)))

	sorted, err := dyn.Sorted(ctx)
	require.NoError(t, err)
	require.False(t, sorted)

	for _, n := range []int32{0, scanChunkRecords - 1, scanChunkRecords, int32(last - 1), int32(last)} {
		e, ok, err := dyn.Entry(ctx, n)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, n, e.Number)
		require.Equal(t, int64(n)*100, e.Position)
	}

	numbers, err := dyn.BlockNumbers(ctx)
	require.NoError(t, err)
	require.Len(t, numbers, len(entries))
}

func TestDynamic_OutOfRangeNumberInFile(t *testing.T) {
	r := &memReader{data: encodeIndex(sparseEntries())}
	dyn := NewDynamic(r, testBase, 5, 10)

	_, _, err := dyn.Entry(context.Background(), 1)
	require.ErrorIs(t, err, errs.ErrInvalidIndexEntry)
}

func TestDynamic_ReadErrorIsRetried(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	r := &memReader{data: encodeIndex(sparseEntries()), fail: boom}
	dyn := NewDynamic(r, testBase, 5, 15)

	_, _, err := dyn.Entry(ctx, 3)
	require.ErrorIs(t, err, boom)

	r.fail = nil
	e, ok, err := dyn.Entry(ctx, 3)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(2000), e.Position)
}

func TestDynamic_Concurrent(t *testing.T) {
	ctx := context.Background()
	entries := shuffle(completeGrid(64))
	r := &memReader{data: encodeIndex(entries)}
	dyn := NewDynamic(r, testBase, 64, 63)

	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := int32(0); n < 64; n++ {
				e, ok, err := dyn.Entry(ctx, (n+int32(g))%64)
				assert.NoError(t, err)
				assert.True(t, ok)
				assert.Equal(t, (n+int32(g))%64, e.Number)
			}
		}()
	}
	wg.Wait()
}

func TestPolicy(t *testing.T) {
	p := DefaultPolicy()
	require.True(t, p.UseDynamic(&section.ZoomHeader{BinSize: 5, BlockCount: 10}))
	require.False(t, p.UseDynamic(&section.ZoomHeader{BinSize: 50, BlockCount: 10}))

	p.MinBlocks = 100
	require.False(t, p.UseDynamic(&section.ZoomHeader{BinSize: 5, BlockCount: 10}))

	p.Dynamic = false
	require.False(t, p.UseDynamic(&section.ZoomHeader{BinSize: 5, BlockCount: 1000}))
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	data := encodeIndex(sparseEntries())
	r := &memReader{data: data}

	zoom := &section.ZoomHeader{UnitName: "BP", BinSize: 1000, BlockColumnCount: 4, BlockCount: 5, BlockIndexOffset: testBase}
	idx, err := Load(ctx, r, zoom, DefaultPolicy())
	require.NoError(t, err)
	require.IsType(t, &Dense{}, idx)

	zoom.BinSize = 10
	idx, err = Load(ctx, r, zoom, DefaultPolicy())
	require.NoError(t, err)
	require.IsType(t, &Dynamic{}, idx)
	require.Equal(t, int32(15), idx.(*Dynamic).MaxBlockNumber())

	e, ok, err := idx.Entry(ctx, 15)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(5000), e.Position)

	empty, err := Load(ctx, r, &section.ZoomHeader{BinSize: 1000, BlockColumnCount: 1}, DefaultPolicy())
	require.NoError(t, err)
	require.Equal(t, 0, empty.Len())

	r.fail = io.ErrUnexpectedEOF
	zoom.BinSize = 1000
	_, err = Load(ctx, r, zoom, DefaultPolicy())
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestLoad_WideGrid(t *testing.T) {
	ctx := context.Background()
	// 50000 columns: blocks past 46340² sit beyond the int32 square.
	entries := []section.BlockIndexEntry{
		{Number: 7, Position: 1000, Size: 10},
		{Number: 2_000_000_000, Position: 2000, Size: 20},
	}
	r := &memReader{data: encodeIndex(entries)}
	zoom := &section.ZoomHeader{UnitName: "BP", BinSize: 5, BlockColumnCount: 50000, BlockCount: 2, BlockIndexOffset: testBase}

	idx, err := Load(ctx, r, zoom, DefaultPolicy())
	require.NoError(t, err)
	require.IsType(t, &Dynamic{}, idx)
	require.Equal(t, int32(math.MaxInt32), idx.(*Dynamic).MaxBlockNumber())

	numbers, err := idx.BlockNumbers(ctx)
	require.NoError(t, err)
	require.Equal(t, []int32{7, 2_000_000_000}, numbers)

	e, ok, err := idx.Entry(ctx, 2_000_000_000)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(2000), e.Position)
}

func completeGrid(n int) []section.BlockIndexEntry {
	out := make([]section.BlockIndexEntry, n)
	for i := range out {
		out[i] = section.BlockIndexEntry{Number: int32(i), Position: int64(i) * 100, Size: int32(i%7 + 1)}
	}

	return out
}

func shuffle(in []section.BlockIndexEntry) []section.BlockIndexEntry {
	out := append([]section.BlockIndexEntry(nil), in...)
	rng := rand.New(rand.NewPCG(7, 11))
	for {
		rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
		for i := 1; i < len(out); i++ {
			if out[i].Number < out[i-1].Number {
				return out
			}
		}
	}
}

func reverse(in []section.BlockIndexEntry) []section.BlockIndexEntry {
	out := make([]section.BlockIndexEntry, len(in))
	for i, e := range in {
		out[len(in)-1-i] = e
	}

	return out
}
