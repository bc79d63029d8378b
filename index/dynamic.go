package index

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/arloliu/hic/endian"
	"github.com/arloliu/hic/errs"
	"github.com/arloliu/hic/section"
)

// scanChunkRecords bounds the memory used while scanning the on-disk index.
const scanChunkRecords = 4096

// Dynamic resolves block numbers by reading single index records on demand.
//
// Offsets are computed as base + 16*rank(number), which requires the records
// to be stored in strictly increasing block-number order. The first lookup
// streams the index once in bounded chunks to collect the set of present
// block numbers and to verify that ordering. If the records turn out to be
// unsorted (or contain duplicates) the index falls back to a resident Dense
// index built from the same scan.
//
// The scan runs at least once; concurrent first lookups may each scan, and the
// first completed result wins.
type Dynamic struct {
	reader   RangeReader
	base     int64
	count    int32
	maxBlock int32
	engine   endian.EndianEngine

	state atomic.Pointer[dynamicState]
}

type dynamicState struct {
	numbers  *roaring.Bitmap
	fallback *Dense
}

var _ BlockIndex = (*Dynamic)(nil)

// NewDynamic creates an index over count records starting at base. maxBlock is
// the largest addressable block number (blockColumnCount² − 1).
func NewDynamic(r RangeReader, base int64, count int32, maxBlock int32) *Dynamic {
	return &Dynamic{
		reader:   r,
		base:     base,
		count:    count,
		maxBlock: maxBlock,
		engine:   endian.GetLittleEndianEngine(),
	}
}

// Len implements BlockIndex.
func (d *Dynamic) Len() int { return int(d.count) }

// MaxBlockNumber returns the largest addressable block number.
func (d *Dynamic) MaxBlockNumber() int32 { return d.maxBlock }

// Sorted reports whether the on-disk records were verified as sorted. It
// triggers the initial scan if needed.
func (d *Dynamic) Sorted(ctx context.Context) (bool, error) {
	st, err := d.load(ctx)
	if err != nil {
		return false, err
	}

	return st.fallback == nil, nil
}

// Entry implements BlockIndex.
func (d *Dynamic) Entry(ctx context.Context, number int32) (section.BlockIndexEntry, bool, error) {
	if number < 0 || number > d.maxBlock {
		return section.BlockIndexEntry{}, false, nil
	}

	st, err := d.load(ctx)
	if err != nil {
		return section.BlockIndexEntry{}, false, err
	}
	if st.fallback != nil {
		return st.fallback.Entry(ctx, number)
	}
	if !st.numbers.Contains(uint32(number)) {
		return section.BlockIndexEntry{}, false, nil
	}

	rank := int64(st.numbers.Rank(uint32(number))) - 1 //nolint: gosec
	pos := d.base + rank*section.BlockIndexRecordSize
	data, err := d.reader.ReadRange(ctx, pos, section.BlockIndexRecordSize)
	if err != nil {
		return section.BlockIndexEntry{}, false, fmt.Errorf("read block index record %d: %w", number, err)
	}
	entry, err := section.ParseBlockIndexEntry(data, d.engine)
	if err != nil {
		return section.BlockIndexEntry{}, false, errs.NewFormatError(pos, "block index record", err)
	}
	if entry.Number != number {
		// The file changed under us or the scan was wrong; never return another block's range.
		return section.BlockIndexEntry{}, false, errs.NewFormatError(pos,
			fmt.Sprintf("record holds block %d, want %d", entry.Number, number), errs.ErrInvalidIndexEntry)
	}

	return entry, true, nil
}

// BlockNumbers implements BlockIndex.
func (d *Dynamic) BlockNumbers(ctx context.Context) ([]int32, error) {
	st, err := d.load(ctx)
	if err != nil {
		return nil, err
	}
	if st.fallback != nil {
		return st.fallback.BlockNumbers(ctx)
	}

	return toInt32s(st.numbers), nil
}

func (d *Dynamic) load(ctx context.Context) (*dynamicState, error) {
	if st := d.state.Load(); st != nil {
		return st, nil
	}

	st, err := d.scan(ctx)
	if err != nil {
		return nil, err
	}
	if !d.state.CompareAndSwap(nil, st) {
		return d.state.Load(), nil
	}

	return st, nil
}

func (d *Dynamic) scan(ctx context.Context) (*dynamicState, error) {
	st := &dynamicState{numbers: roaring.New()}

	var (
		sorted   = true
		previous = int32(-1)
		all      []section.BlockIndexEntry
	)

	for start := int32(0); start < d.count; start += scanChunkRecords {
		n := min(scanChunkRecords, d.count-start)
		pos := d.base + int64(start)*section.BlockIndexRecordSize
		data, err := d.reader.ReadRange(ctx, pos, int(n)*section.BlockIndexRecordSize)
		if err != nil {
			return nil, fmt.Errorf("scan block index: %w", err)
		}
		entries, err := section.ParseBlockIndex(data, d.engine)
		if err != nil {
			return nil, errs.NewFormatError(pos, "block index", err)
		}

		for i, e := range entries {
			if e.Number < 0 || e.Number > d.maxBlock {
				return nil, errs.NewFormatError(pos+int64(i)*section.BlockIndexRecordSize,
					fmt.Sprintf("block number %d outside [0, %d]", e.Number, d.maxBlock), errs.ErrInvalidIndexEntry)
			}
			if sorted && e.Number <= previous {
				sorted = false
				// Keep everything read so far for the fallback.
				all = make([]section.BlockIndexEntry, 0, d.count)
				if start > 0 || i > 0 {
					prior, err := d.reread(ctx, start+int32(i))
					if err != nil {
						return nil, err
					}
					all = append(all, prior...)
				}
			}
			if !sorted {
				all = append(all, e)
			}
			previous = e.Number
			st.numbers.Add(uint32(e.Number))
		}
	}

	if !sorted {
		dense, err := NewDense(all)
		if err != nil {
			return nil, err
		}
		st.fallback = dense
	}

	return st, nil
}

// reread returns the first n records, used once when the scan discovers
// that the index is unsorted.
func (d *Dynamic) reread(ctx context.Context, n int32) ([]section.BlockIndexEntry, error) {
	data, err := d.reader.ReadRange(ctx, d.base, int(n)*section.BlockIndexRecordSize)
	if err != nil {
		return nil, fmt.Errorf("scan block index: %w", err)
	}

	return section.ParseBlockIndex(data, d.engine)
}
