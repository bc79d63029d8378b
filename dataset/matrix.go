package dataset

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arloliu/hic/block"
	"github.com/arloliu/hic/encoding"
	"github.com/arloliu/hic/errs"
	"github.com/arloliu/hic/format"
	"github.com/arloliu/hic/index"
	"github.com/arloliu/hic/materialize"
	"github.com/arloliu/hic/norm"
	"github.com/arloliu/hic/section"
)

// Matrix is the header of one chromosome pair with its resolution levels.
type Matrix struct {
	Key   string
	Chr1  section.Chromosome
	Chr2  section.Chromosome
	zooms []*ZoomData
}

// Zooms returns the resolution levels in file order.
func (m *Matrix) Zooms() []*ZoomData { return m.zooms }

// Zoom returns the resolution level with the given unit and bin size.
func (m *Matrix) Zoom(unit format.Unit, binSize int32) (*ZoomData, error) {
	for _, z := range m.zooms {
		if z.header.Unit == unit && z.header.BinSize == binSize {
			return z, nil
		}
	}

	return nil, errs.NewMissingDataError("zoom", m.Key+"_"+unit.String()+"_"+strconv.Itoa(int(binSize)), errs.ErrZoomNotFound)
}

// ReadMatrix returns the matrix of a chromosome pair. The pair is looked up
// with the lower index first.
//
// A matrix whose body names chromosomes outside the dictionary is logged and
// reported as (nil, nil). A pair absent from the master index returns an
// errs.MissingDataError.
func (r *Reader) ReadMatrix(ctx context.Context, chr1, chr2 int32) (*Matrix, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	if chr1 > chr2 {
		chr1, chr2 = chr2, chr1
	}
	key := section.MatrixKey(chr1, chr2)

	if m, ok := r.matrices.Load(key); ok {
		return m, nil
	}
	entry, ok := r.footer.MasterIndex[key]
	if !ok {
		return nil, errs.NewMissingDataError("matrix", key, errs.ErrMatrixNotFound)
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := r.matrixGroup.DoChan(key, func() (any, error) {
		return r.matrices.LoadOrCompute(key, func() (*Matrix, error) {
			return r.readMatrix(loadCtx, key, entry)
		})
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}

		return res.Val.(*Matrix), nil //nolint: forcetypeassert
	}
}

func (r *Reader) readMatrix(ctx context.Context, key string, entry section.IndexEntry) (*Matrix, error) {
	stream := encoding.NewStreamReader(r.pool.ReaderAt(ctx), r.pool.Size(), entry.Position, r.engine)
	hdr, err := section.ParseMatrixHeader(stream, key, len(r.header.Chromosomes))
	if err != nil {
		if errors.Is(err, errs.ErrCorruptIndex) {
			r.log.LogCorruptIndex(ctx, key, err)
			return nil, nil
		}

		return nil, fmt.Errorf("read matrix %s: %w", key, asFormatError(stream.Pos(), "matrix "+key, err))
	}

	m := &Matrix{
		Key:   key,
		Chr1:  r.header.Chromosomes[hdr.Chr1],
		Chr2:  r.header.Chromosomes[hdr.Chr2],
		zooms: make([]*ZoomData, len(hdr.Zooms)),
	}
	for i := range hdr.Zooms {
		m.zooms[i] = &ZoomData{
			reader: r,
			header: hdr.Zooms[i],
			chr1:   m.Chr1,
			chr2:   m.Chr2,
			key:    m.Chr1.Name + "_" + m.Chr2.Name + "_" + hdr.Zooms[i].Unit.String() + "_" + strconv.Itoa(int(hdr.Zooms[i].BinSize)),
		}
	}

	return m, nil
}

// ZoomData is one resolution level of a matrix.
type ZoomData struct {
	reader *Reader
	header section.ZoomHeader
	chr1   section.Chromosome
	chr2   section.Chromosome
	key    string
}

var (
	_ materialize.Source = (*ZoomData)(nil)
	_ norm.RecordSource  = (*ZoomData)(nil)
)

// Key returns the region id "chr1_chr2_UNIT_binSize" that prefixes the
// region ids of its blocks.
func (z *ZoomData) Key() string { return z.key }

// Header returns the zoom header.
func (z *ZoomData) Header() section.ZoomHeader { return z.header }

// Unit returns the bin unit.
func (z *ZoomData) Unit() format.Unit { return z.header.Unit }

// BinSize returns the bin size.
func (z *ZoomData) BinSize() int32 { return z.header.BinSize }

// Chr1 returns the row chromosome.
func (z *ZoomData) Chr1() section.Chromosome { return z.chr1 }

// Chr2 returns the column chromosome.
func (z *ZoomData) Chr2() section.Chromosome { return z.chr2 }

func (z *ZoomData) bins(chr section.Chromosome) int64 {
	return chr.Length/int64(z.header.BinSize) + 1
}

// AverageCount returns sumCounts / (len1/binSize) / (len2/binSize), counting
// only whole bins. A chromosome shorter than one bin counts as one bin.
func (z *ZoomData) AverageCount() float64 {
	whole := func(chr section.Chromosome) float64 {
		return float64(max(chr.Length/int64(z.header.BinSize), 1))
	}

	return float64(z.header.SumCounts) / whole(z.chr1) / whole(z.chr2)
}

// MatrixSize returns the number of bins along the longer side.
func (z *ZoomData) MatrixSize() int64 {
	return max(z.bins(z.chr1), z.bins(z.chr2))
}

// BlockIndex returns the block index, loading it on first use.
func (z *ZoomData) BlockIndex(ctx context.Context) (index.BlockIndex, error) {
	r := z.reader
	if err := r.checkOpen(); err != nil {
		return nil, err
	}

	return r.indexes.LoadOrCompute(z.key, func() (index.BlockIndex, error) {
		return index.Load(ctx, r.pool, &z.header, r.cfg.IndexPolicy)
	})
}

// BlockNumbers returns the numbers of the blocks present, ascending.
func (z *ZoomData) BlockNumbers(ctx context.Context) ([]int32, error) {
	idx, err := z.BlockIndex(ctx)
	if err != nil {
		return nil, err
	}

	return idx.BlockNumbers(ctx)
}

// BlockNumbersInRange returns the block numbers covering bins
// [binX1, binX2] x [binY1, binY2], without consulting the index. For an
// intra-chromosome matrix the mirrored blocks are included, since only the
// upper triangle is stored.
func (z *ZoomData) BlockNumbersInRange(binX1, binY1, binX2, binY2 int64) []int32 {
	bbc := int64(z.header.BlockBinCount)
	cols := int64(z.header.BlockColumnCount)
	col1, col2 := max(binX1/bbc, 0), min(binX2/bbc, cols-1)
	row1, row2 := max(binY1/bbc, 0), min(binY2/bbc, cols-1)

	seen := make(map[int32]struct{})
	var out []int32
	add := func(row, col int64) {
		n := int32(row*cols + col) //nolint: gosec
		if _, ok := seen[n]; ok {
			return
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	intra := z.chr1.Index == z.chr2.Index
	for row := row1; row <= row2; row++ {
		for col := col1; col <= col2; col++ {
			add(row, col)
			if intra {
				add(col, row)
			}
		}
	}

	return out
}

// ReadBlock returns a raw block of the zoom. A block without an index entry
// yields an empty block; empty blocks are cached like any other so the file
// is not probed again.
func (r *Reader) ReadBlock(ctx context.Context, z *ZoomData, number int32) (*block.Block, error) {
	return r.readBlock(ctx, z, number, true)
}

// readBlock reads a raw block, consulting the block cache first. Blocks that
// miss the cache are stored only when keep is set.
func (r *Reader) readBlock(ctx context.Context, z *ZoomData, number int32, keep bool) (*block.Block, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	if number < 0 || number > z.header.MaxBlockNumber() {
		return nil, fmt.Errorf("%w: %d not in [0, %d]", errs.ErrBlockNumberTooLarge, number, z.header.MaxBlockNumber())
	}

	regionID := z.key + "_" + strconv.Itoa(int(number))
	if b, ok := r.cfg.BlockCache.Get(regionID); ok {
		return b, nil
	}

	idx, err := z.BlockIndex(ctx)
	if err != nil {
		return nil, err
	}
	entry, ok, err := idx.Entry(ctx, number)
	if err != nil {
		return nil, err
	}
	if !ok || entry.Size == 0 {
		b := block.NewEmpty(number, z.key)
		if keep {
			r.cfg.BlockCache.Put(regionID, b)
		}

		return b, nil
	}

	body, err := r.pool.ReadAndDecompress(ctx, entry.Position, int(entry.Size))
	if err != nil {
		r.log.LogBlockError(ctx, z.key, number, err)
		return nil, fmt.Errorf("read block %s: %w", regionID, err)
	}

	start := time.Now()
	records, err := r.decoder.Decode(body)
	r.metrics.RecordBlockDecode(len(records), time.Since(start), err)
	if err != nil {
		r.log.LogBlockError(ctx, z.key, number, err)
		return nil, fmt.Errorf("decode block %s: %w", regionID, err)
	}

	b := block.New(number, z.key, records)
	if keep {
		r.cfg.BlockCache.Put(regionID, b)
	}

	return b, nil
}

// ReadNormalizedBlock returns a block whose counts are divided by the
// normalization factors of both bins. NONE returns the raw block.
//
// When either chromosome lacks a vector of normType the miss is logged and
// (nil, nil) is returned, so callers can fall back to raw counts.
func (r *Reader) ReadNormalizedBlock(ctx context.Context, z *ZoomData, number int32, normType format.NormType) (*block.Block, error) {
	if normType.IsNone() {
		return r.ReadBlock(ctx, z, number)
	}

	region := z.key + "_" + string(normType)
	regionID := region + "_" + strconv.Itoa(int(number))
	if b, ok := r.cfg.BlockCache.Get(regionID); ok {
		return b, nil
	}

	raw, err := r.ReadBlock(ctx, z, number)
	if err != nil {
		return nil, err
	}

	unit := z.header.UnitName
	binSize := z.header.BinSize
	vx, err := r.norms.Vector(ctx, normType, int32(z.chr1.Index), unit, binSize) //nolint: gosec
	if err != nil {
		return nil, r.normMiss(ctx, normType, int32(z.chr1.Index), unit, binSize, err) //nolint: gosec
	}
	vy := vx
	if z.chr2.Index != z.chr1.Index {
		if vy, err = r.norms.Vector(ctx, normType, int32(z.chr2.Index), unit, binSize); err != nil { //nolint: gosec
			return nil, r.normMiss(ctx, normType, int32(z.chr2.Index), unit, binSize, err) //nolint: gosec
		}
	}

	start := time.Now()
	records := norm.NormalizeRecords(raw.Records, vx, vy)
	r.metrics.RecordNormalize(len(records), time.Since(start))

	b := block.New(number, region, records)
	r.cfg.BlockCache.Put(regionID, b)

	return b, nil
}

// normMiss logs a missing vector and swallows it. Other errors pass through.
func (r *Reader) normMiss(ctx context.Context, normType format.NormType, chrIdx int32, unit string, binSize int32, err error) error {
	if errors.Is(err, errs.ErrMissingData) {
		r.log.LogMissingNormalization(ctx, string(normType), chrIdx, unit, binSize, err)
		return nil
	}

	return err
}

// ReadBlocks reads blocks in parallel, bounded by the controller's read
// fan-out, and returns them in the order of numbers. A nil entry means the
// normalization vector was unavailable.
func (r *Reader) ReadBlocks(ctx context.Context, z *ZoomData, numbers []int32, normType format.NormType) ([]*block.Block, error) {
	out := make([]*block.Block, len(numbers))

	g, gctx := errgroup.WithContext(ctx)
	limit := r.cfg.Resources.MaxParallelReads()
	if limit <= 0 {
		limit = r.pool.Channels()
	}
	g.SetLimit(limit)

	for i, n := range numbers {
		g.Go(func() error {
			b, err := r.ReadNormalizedBlock(gctx, z, n, normType)
			if err != nil {
				return err
			}
			out[i] = b

			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}

// Records iterates the raw records of every block of the zoom, in block
// number order. Cached blocks are reused, but blocks read here are not added
// to the block cache, so a full pass does not leave the zoom resident.
func (z *ZoomData) Records(ctx context.Context) iter.Seq2[block.ContactRecord, error] {
	return func(yield func(block.ContactRecord, error) bool) {
		numbers, err := z.BlockNumbers(ctx)
		if err != nil {
			yield(block.ContactRecord{}, err)
			return
		}
		for _, n := range numbers {
			b, err := z.reader.readBlock(ctx, z, n, false)
			if err != nil {
				yield(block.ContactRecord{}, err)
				return
			}
			for _, rec := range b.Records {
				if !yield(rec, nil) {
					return
				}
			}
		}
	}
}

// RecordCount returns the occupied cell count from the zoom header, or
// counts the records when the header does not carry it.
func (z *ZoomData) RecordCount(ctx context.Context) (int64, error) {
	if z.header.OccupiedCellCount > 0 {
		return int64(z.header.OccupiedCellCount), nil
	}

	var n int64
	for _, err := range z.Records(ctx) {
		if err != nil {
			return 0, err
		}
		n++
	}

	return n, nil
}

// Materialize returns a record source for the whole zoom. With
// WithSaveAllIntoRAM the records are loaded into memory when the estimate
// fits the memory budget; otherwise the zoom itself is returned and records
// stream from disk. Close the source if it implements io.Closer.
func (r *Reader) Materialize(ctx context.Context, z *ZoomData) (materialize.Source, materialize.Result) {
	policy := materialize.Policy{
		SaveAllIntoRAM: r.cfg.SaveAllIntoRAM,
		ChunkSize:      r.cfg.ChunkSize,
		Resources:      r.cfg.Resources,
	}
	src, res := policy.Apply(ctx, z)
	if policy.SaveAllIntoRAM {
		r.log.LogMaterialization(ctx, z.key, res.Materialized, res.EstimatedBytes, res.Records, res.Reason)
	}

	return src, res
}

// ScaleNormalizationVector rebalances v against the intra-chromosome matrix
// at v's resolution and rescales it so the balanced matrix keeps the raw
// total. It returns a new vector. A nil balancer uses norm.DefaultBalancer.
func (r *Reader) ScaleNormalizationVector(ctx context.Context, v *norm.Vector, balancer norm.Balancer) (*norm.Vector, error) {
	m, err := r.ReadMatrix(ctx, v.ChrIdx, v.ChrIdx)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, errs.NewMissingDataError("matrix", section.MatrixKey(v.ChrIdx, v.ChrIdx), errs.ErrMatrixNotFound)
	}
	z, err := m.Zoom(format.ParseUnit(v.Unit), v.Resolution)
	if err != nil {
		return nil, err
	}

	src, _ := r.Materialize(ctx, z)
	if c, ok := src.(*materialize.Container); ok {
		defer c.Close()
	}

	return norm.ScaleToVector(ctx, v, src, balancer)
}
