// Package hicfixture builds synthetic contact-matrix files for tests.
//
// It deliberately depends only on the low-level format packages so that the
// decoders' own tests can import it.
package hicfixture

import (
	"math"
	"sort"

	"github.com/arloliu/hic/endian"
	"github.com/arloliu/hic/format"
)

// Record is one contact in fixture coordinates.
type Record struct {
	BinX   int32
	BinY   int32
	Counts float32
}

// BlockEncoding selects the body layout written for a block.
//
// Type 0 writes the legacy (x, y, value) triples regardless of version.
type BlockEncoding struct {
	Type        format.RecordType
	ShortCounts bool
	// ShortBinX and ShortBinY only take effect for version 9+; earlier
	// versions always use 16-bit offsets.
	ShortBinX bool
	ShortBinY bool
}

// DefaultEncoding returns the layout the reference writer uses for version.
func DefaultEncoding(version format.Version) BlockEncoding {
	if !version.HasCompactBlocks() {
		return BlockEncoding{}
	}

	return BlockEncoding{Type: format.RecordListOfRows, ShortBinX: true, ShortBinY: true}
}

// EncodeBlock returns the uncompressed body of a block holding records.
func EncodeBlock(version format.Version, records []Record, enc BlockEncoding) []byte {
	engine := endian.GetLittleEndianEngine()
	b := engine.AppendUint32(nil, uint32(len(records)))

	if !version.HasCompactBlocks() || enc.Type == 0 {
		for _, r := range records {
			b = engine.AppendUint32(b, uint32(r.BinX))
			b = engine.AppendUint32(b, uint32(r.BinY))
			b = endian.AppendFloat32(engine, b, r.Counts)
		}

		return b
	}

	shortX, shortY := true, true
	if version.HasLongFields() {
		shortX, shortY = enc.ShortBinX, enc.ShortBinY
	}

	xOff, yOff := offsets(records)
	b = engine.AppendUint32(b, uint32(xOff))
	b = engine.AppendUint32(b, uint32(yOff))
	b = append(b, flag(enc.ShortCounts))
	if version.HasLongFields() {
		b = append(b, flag(shortX), flag(shortY))
	}
	b = append(b, byte(enc.Type))

	appendInt := func(b []byte, v int32, short bool) []byte {
		if short {
			return engine.AppendUint16(b, uint16(int16(v)))
		}

		return engine.AppendUint32(b, uint32(v))
	}
	appendCount := func(b []byte, v float32) []byte {
		if enc.ShortCounts {
			return engine.AppendUint16(b, uint16(int16(v)))
		}

		return endian.AppendFloat32(engine, b, v)
	}

	switch enc.Type {
	case format.RecordListOfRows:
		rows := map[int32][]Record{}
		var ys []int32
		for _, r := range records {
			if _, ok := rows[r.BinY]; !ok {
				ys = append(ys, r.BinY)
			}
			rows[r.BinY] = append(rows[r.BinY], r)
		}
		b = appendInt(b, int32(len(ys)), shortY)
		for _, y := range ys {
			b = appendInt(b, y-yOff, shortY)
			b = appendInt(b, int32(len(rows[y])), shortX)
			for _, r := range rows[y] {
				b = appendInt(b, r.BinX-xOff, shortX)
				b = appendCount(b, r.Counts)
			}
		}
	case format.RecordDenseGrid:
		maxX, maxY := xOff, yOff
		for _, r := range records {
			maxX = max(maxX, r.BinX)
			maxY = max(maxY, r.BinY)
		}
		w := maxX - xOff + 1
		h := maxY - yOff + 1
		grid := make([]float32, w*h)
		present := make([]bool, w*h)
		for _, r := range records {
			i := (r.BinY-yOff)*w + (r.BinX - xOff)
			grid[i] = r.Counts
			present[i] = true
		}
		b = engine.AppendUint32(b, uint32(w*h))
		b = engine.AppendUint16(b, uint16(w))
		for i, v := range grid {
			switch {
			case present[i]:
				b = appendCount(b, v)
			case enc.ShortCounts:
				b = engine.AppendUint16(b, uint16(0x8000))
			default:
				b = endian.AppendFloat32(engine, b, float32(math.NaN()))
			}
		}
	default:
		// Unknown types get an empty payload; decoders reject them first.
	}

	return b
}

// SortRecords orders records by (BinY, BinX) for order-insensitive comparisons.
func SortRecords(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].BinY != records[j].BinY {
			return records[i].BinY < records[j].BinY
		}

		return records[i].BinX < records[j].BinX
	})
}

func offsets(records []Record) (int32, int32) {
	if len(records) == 0 {
		return 0, 0
	}
	xOff, yOff := records[0].BinX, records[0].BinY
	for _, r := range records[1:] {
		xOff = min(xOff, r.BinX)
		yOff = min(yOff, r.BinY)
	}

	return xOff, yOff
}

// flag encodes the "short" booleans, which the format stores inverted.
func flag(short bool) byte {
	if short {
		return 0
	}

	return 1
}
