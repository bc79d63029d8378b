package block

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/hic/endian"
	"github.com/arloliu/hic/errs"
	"github.com/arloliu/hic/format"
	"github.com/arloliu/hic/internal/hicfixture"
)

func sampleRecords() []hicfixture.Record {
	return []hicfixture.Record{
		{BinX: 100, BinY: 40, Counts: 3},
		{BinX: 102, BinY: 40, Counts: 17},
		{BinX: 101, BinY: 41, Counts: 1},
		{BinX: 103, BinY: 43, Counts: 250},
		{BinX: 100, BinY: 43, Counts: 8},
	}
}

func toContactRecords(in []hicfixture.Record) []ContactRecord {
	out := make([]ContactRecord, len(in))
	for i, r := range in {
		out[i] = ContactRecord{BinX: r.BinX, BinY: r.BinY, Counts: r.Counts}
	}

	return out
}

func sorted(records []ContactRecord) []ContactRecord {
	out := append([]ContactRecord(nil), records...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].BinY != out[j].BinY {
			return out[i].BinY < out[j].BinY
		}

		return out[i].BinX < out[j].BinX
	})

	return out
}

func TestDecode_RoundTrip(t *testing.T) {
	type encCase struct {
		name    string
		version format.Version
		enc     hicfixture.BlockEncoding
	}

	var testCases []encCase
	testCases = append(testCases, encCase{name: "v6 triples", version: 6})
	for _, version := range []format.Version{7, 8, 9} {
		for _, recordType := range []format.RecordType{format.RecordListOfRows, format.RecordDenseGrid} {
			for _, shortCounts := range []bool{true, false} {
				for _, shortX := range []bool{true, false} {
					for _, shortY := range []bool{true, false} {
						if version < 9 && (!shortX || !shortY) {
							continue
						}
						testCases = append(testCases, encCase{
							name:    fmt.Sprintf("v%d %s shortCounts=%t shortX=%t shortY=%t", version, recordType, shortCounts, shortX, shortY),
							version: version,
							enc:     hicfixture.BlockEncoding{Type: recordType, ShortCounts: shortCounts, ShortBinX: shortX, ShortBinY: shortY},
						})
					}
				}
			}
		}
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			records := sampleRecords()
			body := hicfixture.EncodeBlock(tc.version, records, tc.enc)

			decoded, err := NewDecoder(tc.version).Decode(body)
			require.NoError(t, err)
			require.Equal(t, sorted(toContactRecords(records)), sorted(decoded))
		})
	}
}

func TestDecode_ListOfRowsPreservesFileOrder(t *testing.T) {
	records := sampleRecords()
	body := hicfixture.EncodeBlock(8, records, hicfixture.DefaultEncoding(8))

	decoded, err := NewDecoder(8).Decode(body)
	require.NoError(t, err)
	// Rows appear in first-seen order, columns in insertion order.
	require.Equal(t, []ContactRecord{
		{BinX: 100, BinY: 40, Counts: 3},
		{BinX: 102, BinY: 40, Counts: 17},
		{BinX: 101, BinY: 41, Counts: 1},
		{BinX: 103, BinY: 43, Counts: 250},
		{BinX: 100, BinY: 43, Counts: 8},
	}, decoded)
}

func TestDecode_DenseGridSkipsMissing(t *testing.T) {
	records := []hicfixture.Record{{BinX: 0, BinY: 0, Counts: 1}, {BinX: 2, BinY: 1, Counts: 5}}

	for _, shortCounts := range []bool{true, false} {
		body := hicfixture.EncodeBlock(8, records, hicfixture.BlockEncoding{Type: format.RecordDenseGrid, ShortCounts: shortCounts})
		decoded, err := NewDecoder(8).Decode(body)
		require.NoError(t, err)
		// Grid is 3x2; four cells carry the missing sentinel.
		require.Equal(t, toContactRecords(records), decoded)
	}
}

func TestDecode_ShortCountsAreSigned(t *testing.T) {
	records := []hicfixture.Record{{BinX: 1, BinY: 1, Counts: -5}}
	body := hicfixture.EncodeBlock(9, records, hicfixture.BlockEncoding{Type: format.RecordListOfRows, ShortCounts: true, ShortBinX: true, ShortBinY: true})

	decoded, err := NewDecoder(9).Decode(body)
	require.NoError(t, err)
	require.Equal(t, float32(-5), decoded[0].Counts)
}

func TestDecode_Empty(t *testing.T) {
	for _, version := range []format.Version{6, 8, 9} {
		body := hicfixture.EncodeBlock(version, nil, hicfixture.DefaultEncoding(version))
		decoded, err := NewDecoder(version).Decode(body)
		require.NoError(t, err)
		require.Empty(t, decoded)
	}
}

func TestDecode_UnknownRecordType(t *testing.T) {
	body := hicfixture.EncodeBlock(8, sampleRecords(), hicfixture.BlockEncoding{Type: format.RecordType(7)})

	_, err := NewDecoder(8).Decode(body)
	require.ErrorIs(t, err, errs.ErrUnknownBlockType)
	require.ErrorIs(t, err, errs.ErrFormat)
}

func TestDecode_Truncated(t *testing.T) {
	body := hicfixture.EncodeBlock(8, sampleRecords(), hicfixture.DefaultEncoding(8))

	_, err := NewDecoder(8).Decode(body[:len(body)-3])
	require.ErrorIs(t, err, errs.ErrFormat)

	_, err = NewDecoder(8).Decode(nil)
	require.Error(t, err)
}

func TestDecode_NegativeCount(t *testing.T) {
	engine := endian.GetLittleEndianEngine()
	body := engine.AppendUint32(nil, uint32(0xFFFFFFFF))

	_, err := NewDecoder(6).Decode(body)
	require.ErrorIs(t, err, errs.ErrNegativeCount)
}

func TestDecode_InvalidDenseWidth(t *testing.T) {
	engine := endian.GetLittleEndianEngine()
	var body []byte
	body = engine.AppendUint32(body, 1)
	body = engine.AppendUint32(body, 0)
	body = engine.AppendUint32(body, 0)
	body = append(body, 1, byte(format.RecordDenseGrid))
	body = engine.AppendUint32(body, 4)
	body = engine.AppendUint16(body, 0)

	_, err := NewDecoder(8).Decode(body)
	require.ErrorIs(t, err, errs.ErrInvalidBlockHeader)
}

func TestDecode_DenseNaNFloat(t *testing.T) {
	engine := endian.GetLittleEndianEngine()
	var body []byte
	body = engine.AppendUint32(body, 2)
	body = engine.AppendUint32(body, 10)
	body = engine.AppendUint32(body, 20)
	body = append(body, 1, byte(format.RecordDenseGrid))
	body = engine.AppendUint32(body, 2)
	body = engine.AppendUint16(body, 2)
	body = endian.AppendFloat32(engine, body, float32(math.NaN()))
	body = endian.AppendFloat32(engine, body, 2.5)

	decoded, err := NewDecoder(7).Decode(body)
	require.NoError(t, err)
	require.Equal(t, []ContactRecord{{BinX: 11, BinY: 20, Counts: 2.5}}, decoded)
}

func TestBlock(t *testing.T) {
	b := New(7, "1_1_BP_1000", toContactRecords(sampleRecords()))
	require.Equal(t, "1_1_BP_1000_7", b.RegionID)
	require.Equal(t, 5, b.Len())
	require.False(t, b.IsEmpty())

	empty := NewEmpty(8, "1_1_BP_1000")
	require.True(t, empty.IsEmpty())
	require.Equal(t, "1_1_BP_1000_8", empty.RegionID)
}

func TestBlock_Subsample(t *testing.T) {
	b := New(0, "r", []ContactRecord{{BinX: 1, BinY: 2, Counts: 100}, {BinX: 3, BinY: 4, Counts: 0}})
	rng := rand.New(rand.NewPCG(1, 2))

	all := b.Subsample(1, rng)
	require.Equal(t, float32(100), all[0].Counts)
	require.Equal(t, int32(1), all[0].BinX)

	half := b.Subsample(0.5, rng)
	require.Greater(t, half[0].Counts, float32(20))
	require.Less(t, half[0].Counts, float32(80))
	require.Equal(t, float32(0), half[1].Counts)

	none := b.Subsample(0, rng)
	require.Equal(t, float32(0), none[0].Counts)

	// The block itself is unchanged.
	require.Equal(t, float32(100), b.Records[0].Counts)
}
