// Package norm reads normalization vectors and applies them to contact records.
package norm

import (
	"math"

	"github.com/arloliu/hic/block"
	"github.com/arloliu/hic/format"
	"github.com/arloliu/hic/section"
)

// Vector is a per-bin normalization vector of one chromosome at one resolution.
//
// Normalized counts are raw counts divided by the product of the two bins'
// factors.
type Vector struct {
	Type       format.NormType
	ChrIdx     int32
	Unit       string
	Resolution int32
	Values     []float64
	// Offset is the bin index of Values[0]; non-zero for partial vectors.
	Offset int64
	// NeedsScaling marks vectors that must be rescaled before use.
	NeedsScaling bool
}

// Key returns the "type_chrIdx_unit_resolution" lookup key.
func (v *Vector) Key() string {
	return section.NormVectorKey(v.Type, v.ChrIdx, v.Unit, v.Resolution)
}

// Len returns the number of values.
func (v *Vector) Len() int { return len(v.Values) }

// At returns the factor of bin, or NaN when bin is outside the vector.
func (v *Vector) At(bin int64) float64 {
	i := bin - v.Offset
	if i < 0 || i >= int64(len(v.Values)) {
		return math.NaN()
	}

	return v.Values[i]
}

func allNaN(values []float64) bool {
	for _, v := range values {
		if !math.IsNaN(v) {
			return false
		}
	}

	return true
}

// Normalize divides counts by the product of the two bins' factors. A zero or
// NaN factor yields a NaN count.
func Normalize(counts float32, fx, fy float64) float32 {
	if fx == 0 || fy == 0 || math.IsNaN(fx) || math.IsNaN(fy) {
		return float32(math.NaN())
	}

	return float32(float64(counts) / (fx * fy))
}

// NormalizeRecords returns a normalized copy of records. vx scales BinX and vy
// scales BinY; the input is not modified.
func NormalizeRecords(records []block.ContactRecord, vx, vy *Vector) []block.ContactRecord {
	out := make([]block.ContactRecord, len(records))
	for i, rec := range records {
		out[i] = block.ContactRecord{
			BinX:   rec.BinX,
			BinY:   rec.BinY,
			Counts: Normalize(rec.Counts, vx.At(int64(rec.BinX)), vy.At(int64(rec.BinY))),
		}
	}

	return out
}
