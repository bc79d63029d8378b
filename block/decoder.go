package block

import (
	"fmt"
	"math"

	"github.com/arloliu/hic/encoding"
	"github.com/arloliu/hic/endian"
	"github.com/arloliu/hic/errs"
	"github.com/arloliu/hic/format"
)

// Decoder turns decompressed block bodies into contact records.
//
// A Decoder is immutable and safe for concurrent use.
type Decoder struct {
	version format.Version
	engine  endian.EndianEngine
}

// NewDecoder creates a decoder for the given file version.
func NewDecoder(version format.Version) *Decoder {
	return &Decoder{version: version, engine: endian.GetLittleEndianEngine()}
}

// Version returns the file version the decoder was built for.
func (d *Decoder) Version() format.Version { return d.version }

// Decode parses a decompressed block body.
//
// Bodies of version 6 and earlier hold (int32 x, int32 y, float32 count)
// triples. Later versions start with bin offsets, width flags and a record
// type; unknown record types fail with errs.ErrUnknownBlockType.
func (d *Decoder) Decode(body []byte) ([]ContactRecord, error) {
	c := encoding.NewCursor(body, -1, d.engine)

	n := c.Int32()
	if err := c.Err(); err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, errs.NewFormatError(-1, fmt.Sprintf("record count %d", n), errs.ErrNegativeCount)
	}

	if !d.version.HasCompactBlocks() {
		return decodeTriples(c, n)
	}

	h := header{
		xOffset:     c.Int32(),
		yOffset:     c.Int32(),
		shortCounts: c.Byte() == 0,
		shortX:      true,
		shortY:      true,
	}
	if d.version.HasLongFields() {
		h.shortX = c.Byte() == 0
		h.shortY = c.Byte() == 0
	}
	recordType := format.RecordType(c.Byte())
	if err := c.Err(); err != nil {
		return nil, err
	}

	switch recordType {
	case format.RecordListOfRows:
		return decodeListOfRows(c, h, n)
	case format.RecordDenseGrid:
		return decodeDenseGrid(c, h, n)
	default:
		return nil, errs.NewFormatError(-1, "record type "+recordType.String(), errs.ErrUnknownBlockType)
	}
}

type header struct {
	xOffset     int32
	yOffset     int32
	shortCounts bool
	shortX      bool
	shortY      bool
}

// capacity bounds preallocation by what the body can possibly hold.
func capacity(c *encoding.Cursor, n int32, minRecordSize int) int {
	return min(int(n), c.Remaining()/minRecordSize)
}

func decodeTriples(c *encoding.Cursor, n int32) ([]ContactRecord, error) {
	records := make([]ContactRecord, 0, capacity(c, n, 12))
	for range n {
		rec := ContactRecord{BinX: c.Int32(), BinY: c.Int32(), Counts: c.Float32()}
		if c.Err() != nil {
			return nil, c.Err()
		}
		records = append(records, rec)
	}

	return records, nil
}

func readInt(c *encoding.Cursor, short bool) int32 {
	if short {
		return int32(c.Int16())
	}

	return c.Int32()
}

func decodeListOfRows(c *encoding.Cursor, h header, n int32) ([]ContactRecord, error) {
	records := make([]ContactRecord, 0, capacity(c, n, 4))

	rowCount := readInt(c, h.shortY)
	for range rowCount {
		binY := h.yOffset + readInt(c, h.shortY)
		colCount := readInt(c, h.shortX)
		for range colCount {
			binX := h.xOffset + readInt(c, h.shortX)
			var counts float32
			if h.shortCounts {
				counts = float32(c.Int16())
			} else {
				counts = c.Float32()
			}
			if c.Err() != nil {
				return nil, c.Err()
			}
			records = append(records, ContactRecord{BinX: binX, BinY: binY, Counts: counts})
		}
		if c.Err() != nil {
			return nil, c.Err()
		}
	}
	if c.Err() != nil {
		return nil, c.Err()
	}

	return records, nil
}

func decodeDenseGrid(c *encoding.Cursor, h header, n int32) ([]ContactRecord, error) {
	nPts := c.Int32()
	w := int32(c.Int16())
	if err := c.Err(); err != nil {
		return nil, err
	}
	if nPts < 0 || (nPts > 0 && w <= 0) {
		return nil, errs.NewFormatError(-1, fmt.Sprintf("dense grid of %d points with width %d", nPts, w), errs.ErrInvalidBlockHeader)
	}

	records := make([]ContactRecord, 0, capacity(c, min(n, nPts), 2))
	for i := range nPts {
		row := i / w
		col := i - row*w
		binX := h.xOffset + col
		binY := h.yOffset + row

		if h.shortCounts {
			counts := c.Int16()
			if c.Err() != nil {
				return nil, c.Err()
			}
			if counts != math.MinInt16 {
				records = append(records, ContactRecord{BinX: binX, BinY: binY, Counts: float32(counts)})
			}
		} else {
			counts := c.Float32()
			if c.Err() != nil {
				return nil, c.Err()
			}
			if !math.IsNaN(float64(counts)) {
				records = append(records, ContactRecord{BinX: binX, BinY: binY, Counts: counts})
			}
		}
	}

	return records, nil
}
