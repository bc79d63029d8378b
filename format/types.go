// Package format defines the enumerations shared by the decoders: file format
// version dialects, block record types, compression codecs, bin units,
// normalization types and the expected-value loading strategy.
package format

import (
	"strconv"
	"strings"
)

type (
	// Version is the file format version stored right after the magic string.
	Version int32
	// RecordType is the self-describing body encoding of a version 7+ block.
	RecordType uint8
	// CompressionType identifies the codec used for block payloads.
	CompressionType uint8
	// Unit is the bin unit of a resolution level.
	Unit uint8
	// NormType names a normalization method as written in the file ("KR", "VC", ...).
	NormType string
	// ExpectedStrategy decides whether expected values are read with the footer or on demand.
	ExpectedStrategy uint8
)

// Block record types (version 7 and later).
const (
	RecordListOfRows RecordType = 0x1 // RecordListOfRows stores rows of (column offset, value).
	RecordDenseGrid  RecordType = 0x2 // RecordDenseGrid stores a row-major grid with a missing-value sentinel.
)

// Compression codecs. Files written by the reference tooling always use zlib.
const (
	CompressionNone CompressionType = 0x1 // CompressionNone represents raw payloads.
	CompressionZlib CompressionType = 0x2 // CompressionZlib represents zlib (deflate) payloads.
	CompressionZstd CompressionType = 0x3 // CompressionZstd represents Zstandard payloads.
	CompressionS2   CompressionType = 0x4 // CompressionS2 represents S2 payloads.
	CompressionLZ4  CompressionType = 0x5 // CompressionLZ4 represents LZ4 block payloads.
)

// Bin units.
const (
	UnitBP   Unit = 0x0 // UnitBP bins by base pairs.
	UnitFRAG Unit = 0x1 // UnitFRAG bins by restriction fragments.
)

// Well-known normalization types. Files may contain others; any string is a valid NormType.
const (
	NormNone       NormType = "NONE"
	NormVC         NormType = "VC"
	NormVCSqrt     NormType = "VC_SQRT"
	NormKR         NormType = "KR"
	NormSCALE      NormType = "SCALE"
	NormGWKR       NormType = "GW_KR"
	NormGWVC       NormType = "GW_VC"
	NormGWSCALE    NormType = "GW_SCALE"
	NormInterKR    NormType = "INTER_KR"
	NormInterVC    NormType = "INTER_VC"
	NormInterSCALE NormType = "INTER_SCALE"
)

// Expected value loading strategies.
const (
	ExpectedEager    ExpectedStrategy = 0x1 // ExpectedEager reads the value array with the footer.
	ExpectedDeferred ExpectedStrategy = 0x2 // ExpectedDeferred keeps (position, count) and reads on demand.
)

// DefaultExpectedThreshold is the bin size (bp) below which expected values are deferred.
const DefaultExpectedThreshold = 500

// Format version boundaries.
const (
	MinVersionAttributes   Version = 5 // header carries key/value attributes
	MinVersionNormSection  Version = 6 // footer carries normalized expected values and vectors
	MinVersionCompactBlock Version = 7 // blocks use offset + record type headers
	MinVersionLongFields   Version = 9 // 64-bit sizes, float32 vectors, short-bin flags
)

// HasAttributes reports whether the header contains the attribute dictionary.
func (v Version) HasAttributes() bool { return v >= MinVersionAttributes }

// HasNormSection reports whether the footer may contain the normalization section.
func (v Version) HasNormSection() bool { return v >= MinVersionNormSection }

// HasCompactBlocks reports whether block bodies use the offset/record-type header.
func (v Version) HasCompactBlocks() bool { return v >= MinVersionCompactBlock }

// HasLongFields reports whether counts, sizes and chromosome lengths are 64-bit
// and vector values are stored as float32.
func (v Version) HasLongFields() bool { return v >= MinVersionLongFields }

// CountWidth returns the byte width of value counts (4 or 8).
func (v Version) CountWidth() int64 {
	if v.HasLongFields() {
		return 8
	}

	return 4
}

// ValueWidth returns the byte width of expected and normalization values (8 or 4).
func (v Version) ValueWidth() int64 {
	if v.HasLongFields() {
		return 4
	}

	return 8
}

// ExpectedStrategyFor selects the loading strategy for a resolution using threshold (bp).
func ExpectedStrategyFor(binSize int32, threshold int32) ExpectedStrategy {
	if binSize >= threshold {
		return ExpectedEager
	}

	return ExpectedDeferred
}

func (r RecordType) String() string {
	switch r {
	case RecordListOfRows:
		return "ListOfRows"
	case RecordDenseGrid:
		return "DenseGrid"
	default:
		return "Unknown(" + strconv.Itoa(int(r)) + ")"
	}
}

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "None"
	case CompressionZlib:
		return "Zlib"
	case CompressionZstd:
		return "Zstd"
	case CompressionS2:
		return "S2"
	case CompressionLZ4:
		return "LZ4"
	default:
		return "Unknown"
	}
}

func (u Unit) String() string {
	switch u {
	case UnitBP:
		return "BP"
	case UnitFRAG:
		return "FRAG"
	default:
		return "Unknown"
	}
}

// ParseUnit parses a unit string as written in the file. Unknown strings map to BP.
func ParseUnit(s string) Unit {
	if strings.EqualFold(s, "FRAG") {
		return UnitFRAG
	}

	return UnitBP
}

func (e ExpectedStrategy) String() string {
	switch e {
	case ExpectedEager:
		return "Eager"
	case ExpectedDeferred:
		return "Deferred"
	default:
		return "Unknown"
	}
}

// ParseNormType normalizes a normalization type name read from the file or a user.
func ParseNormType(s string) NormType {
	return NormType(strings.ToUpper(strings.TrimSpace(s)))
}

func (n NormType) String() string { return string(n) }

// IsNone reports whether n requests raw counts.
func (n NormType) IsNone() bool { return n == "" || n == NormNone }
