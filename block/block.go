// Package block defines contact records and blocks and decodes decompressed
// block bodies for every format version.
package block

import (
	"math/rand/v2"
	"strconv"
)

// ContactRecord is one observed or normalized interaction between two bins.
type ContactRecord struct {
	BinX   int32
	BinY   int32
	Counts float32
}

// Block is the decoded content of one compressed tile.
//
// A block with no records is a sentinel meaning "queried and confirmed empty".
type Block struct {
	Number   int32
	RegionID string
	Records  []ContactRecord
}

// New creates a block whose RegionID is "<region>_<number>".
func New(number int32, region string, records []ContactRecord) *Block {
	return &Block{
		Number:   number,
		RegionID: region + "_" + strconv.Itoa(int(number)),
		Records:  records,
	}
}

// NewEmpty creates the empty sentinel for a block number.
func NewEmpty(number int32, region string) *Block {
	return New(number, region, nil)
}

// IsEmpty reports whether the block holds no records.
func (b *Block) IsEmpty() bool { return len(b.Records) == 0 }

// Len returns the number of records.
func (b *Block) Len() int { return len(b.Records) }

// Subsample returns a copy of the records where each unit of count is kept
// with probability fraction. A fraction outside (0, 1] keeps nothing.
func (b *Block) Subsample(fraction float64, rng *rand.Rand) []ContactRecord {
	out := make([]ContactRecord, len(b.Records))
	for i, rec := range b.Records {
		var kept float32
		if fraction > 0 && fraction <= 1 {
			for range int(rec.Counts) {
				if rng.Float64() <= fraction {
					kept++
				}
			}
		}
		out[i] = ContactRecord{BinX: rec.BinX, BinY: rec.BinY, Counts: kept}
	}

	return out
}
