package section

import (
	"fmt"
	"math"

	"github.com/arloliu/hic/encoding"
	"github.com/arloliu/hic/errs"
	"github.com/arloliu/hic/format"
)

// ZoomHeader describes one resolution level of a matrix.
type ZoomHeader struct {
	UnitName  string
	Unit      format.Unit
	ZoomIndex int32

	SumCounts         float32
	OccupiedCellCount float32
	StdDev            float32
	Percent95         float32

	BinSize          int32
	BlockBinCount    int32
	BlockColumnCount int32
	BlockCount       int32

	// BlockIndexOffset is the file offset of the first 16-byte block index record.
	BlockIndexOffset int64
}

// BlockIndexLength returns the byte length of the zoom's block index.
func (z *ZoomHeader) BlockIndexLength() int64 {
	return int64(z.BlockCount) * BlockIndexRecordSize
}

// MaxBlockNumber returns the largest block number the block grid can address,
// clamped to math.MaxInt32 for grids wider than 46340 columns.
func (z *ZoomHeader) MaxBlockNumber() int32 {
	cols := int64(z.BlockColumnCount)
	n := cols*cols - 1

	return int32(min(n, math.MaxInt32)) //nolint: gosec
}

// MatrixHeader is the decoded body of one master index entry, without block indexes.
type MatrixHeader struct {
	Chr1  int32
	Chr2  int32
	Zooms []ZoomHeader
}

// ParseMatrixHeader decodes the matrix body at the reader's position.
//
// Block index records are skipped; ZoomHeader.BlockIndexOffset locates them.
// A chromosome index outside [0, chromosomeCount) yields a CorruptIndexError.
func ParseMatrixHeader(r *encoding.StreamReader, key string, chromosomeCount int) (*MatrixHeader, error) {
	chr1, err := r.Int32()
	if err != nil {
		return nil, err
	}
	chr2, err := r.Int32()
	if err != nil {
		return nil, err
	}
	if chr1 < 0 || int(chr1) >= chromosomeCount || chr2 < 0 || int(chr2) >= chromosomeCount {
		return nil, &errs.CorruptIndexError{Key: key, Chr1: chr1, Chr2: chr2, ChromosomeCount: chromosomeCount}
	}

	nResolutions, err := readCount(r)
	if err != nil {
		return nil, err
	}

	m := &MatrixHeader{Chr1: chr1, Chr2: chr2, Zooms: make([]ZoomHeader, 0, nResolutions)}
	for range nResolutions {
		z, err := parseZoomHeader(r)
		if err != nil {
			return nil, err
		}
		if err := r.Skip(z.BlockIndexLength()); err != nil {
			return nil, err
		}
		m.Zooms = append(m.Zooms, z)
	}

	return m, nil
}

func parseZoomHeader(r *encoding.StreamReader) (ZoomHeader, error) {
	var (
		z   ZoomHeader
		err error
	)
	start := r.Pos()

	if z.UnitName, err = r.CString(); err != nil {
		return z, err
	}
	z.Unit = format.ParseUnit(z.UnitName)
	if z.ZoomIndex, err = r.Int32(); err != nil {
		return z, err
	}
	for _, dst := range []*float32{&z.SumCounts, &z.OccupiedCellCount, &z.StdDev, &z.Percent95} {
		if *dst, err = r.Float32(); err != nil {
			return z, err
		}
	}
	for _, dst := range []*int32{&z.BinSize, &z.BlockBinCount, &z.BlockColumnCount, &z.BlockCount} {
		if *dst, err = r.Int32(); err != nil {
			return z, err
		}
	}
	if z.BinSize <= 0 || z.BlockBinCount <= 0 || z.BlockColumnCount <= 0 || z.BlockCount < 0 {
		return z, errs.NewFormatError(start,
			fmt.Sprintf("zoom %s/%d: binSize=%d blockBinCount=%d blockColumnCount=%d blockCount=%d",
				z.UnitName, z.ZoomIndex, z.BinSize, z.BlockBinCount, z.BlockColumnCount, z.BlockCount),
			errs.ErrInvalidZoomHeader)
	}
	z.BlockIndexOffset = r.Pos()

	return z, nil
}
