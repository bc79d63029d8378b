// Package index resolves block numbers to the byte ranges of compressed blocks.
//
// Two implementations exist. Dense reads every block index record of a zoom
// level up front. Dynamic keeps only a compressed set of block numbers and
// reads single 16-byte records on demand, which matters for genome-wide fine
// resolution levels whose block grid has millions of cells.
package index

import (
	"context"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/arloliu/hic/endian"
	"github.com/arloliu/hic/errs"
	"github.com/arloliu/hic/section"
)

// RangeReader reads an absolute byte range of the file.
type RangeReader interface {
	ReadRange(ctx context.Context, pos int64, size int) ([]byte, error)
}

// BlockIndex maps block numbers to block locations for one zoom level.
type BlockIndex interface {
	// Entry returns the location of block number. ok is false when the block
	// does not exist.
	Entry(ctx context.Context, number int32) (entry section.BlockIndexEntry, ok bool, err error)
	// BlockNumbers returns every block number present, ascending.
	BlockNumbers(ctx context.Context) ([]int32, error)
	// Len returns the declared number of blocks.
	Len() int
}

// Policy selects between dense and dynamic indexing.
type Policy struct {
	// Dynamic enables on-demand indexing.
	Dynamic bool
	// MaxBinSize is the largest bin size (exclusive) indexed dynamically.
	MaxBinSize int32
	// MinBlocks is the smallest declared block count indexed dynamically.
	MinBlocks int32
}

// DefaultPolicy indexes zoom levels finer than 50 bp dynamically.
func DefaultPolicy() Policy {
	return Policy{Dynamic: true, MaxBinSize: 50}
}

// UseDynamic reports whether zoom should be indexed dynamically.
func (p Policy) UseDynamic(zoom *section.ZoomHeader) bool {
	return p.Dynamic && zoom.BinSize < p.MaxBinSize && zoom.BlockCount >= p.MinBlocks
}

// Load builds the index of zoom according to policy.
func Load(ctx context.Context, r RangeReader, zoom *section.ZoomHeader, policy Policy) (BlockIndex, error) {
	if policy.UseDynamic(zoom) {
		return NewDynamic(r, zoom.BlockIndexOffset, zoom.BlockCount, zoom.MaxBlockNumber()), nil
	}

	if zoom.BlockCount == 0 {
		return NewDense(nil)
	}
	data, err := r.ReadRange(ctx, zoom.BlockIndexOffset, int(zoom.BlockIndexLength()))
	if err != nil {
		return nil, fmt.Errorf("read block index of %s/%d: %w", zoom.UnitName, zoom.BinSize, err)
	}
	entries, err := section.ParseBlockIndex(data, endian.GetLittleEndianEngine())
	if err != nil {
		return nil, errs.NewFormatError(zoom.BlockIndexOffset, "block index", err)
	}

	return NewDense(entries)
}

// Dense is a fully resident block index.
type Dense struct {
	entries map[int32]section.BlockIndexEntry
	numbers *roaring.Bitmap
	count   int
}

var _ BlockIndex = (*Dense)(nil)

// NewDense creates a dense index from decoded records. A repeated block number
// keeps its last record.
func NewDense(entries []section.BlockIndexEntry) (*Dense, error) {
	d := &Dense{
		entries: make(map[int32]section.BlockIndexEntry, len(entries)),
		numbers: roaring.New(),
		count:   len(entries),
	}
	for _, e := range entries {
		if e.Number < 0 {
			return nil, fmt.Errorf("%w: negative block number %d", errs.ErrInvalidIndexEntry, e.Number)
		}
		d.entries[e.Number] = e
		d.numbers.Add(uint32(e.Number))
	}

	return d, nil
}

// Entry implements BlockIndex.
func (d *Dense) Entry(_ context.Context, number int32) (section.BlockIndexEntry, bool, error) {
	e, ok := d.entries[number]
	return e, ok, nil
}

// BlockNumbers implements BlockIndex.
func (d *Dense) BlockNumbers(_ context.Context) ([]int32, error) {
	return toInt32s(d.numbers), nil
}

// Len implements BlockIndex.
func (d *Dense) Len() int { return d.count }

func toInt32s(b *roaring.Bitmap) []int32 {
	out := make([]int32, 0, b.GetCardinality())
	it := b.Iterator()
	for it.HasNext() {
		out = append(out, int32(it.Next())) //nolint: gosec
	}

	return out
}
