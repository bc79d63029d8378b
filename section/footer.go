package section

import (
	"errors"
	"io"
	"strconv"

	"github.com/arloliu/hic/encoding"
	"github.com/arloliu/hic/format"
)

// IndexEntry locates a section of the file.
type IndexEntry struct {
	Position int64
	Size     int64
}

// ExpectedEntry is the footer record of one expected-value table.
//
// With the Eager strategy Values holds the whole table. With the Deferred
// strategy Values is nil and the table is read from ValuesPosition on demand.
type ExpectedEntry struct {
	NormType       format.NormType
	Unit           format.Unit
	UnitName       string
	BinSize        int32
	Strategy       format.ExpectedStrategy
	ValueCount     int64
	ValuesPosition int64
	Values         []float64
	NormFactors    map[int32]float64
}

// Key returns the lookup key "unit_binSize_type".
func (e *ExpectedEntry) Key() string {
	return ExpectedKey(e.UnitName, e.BinSize, e.NormType)
}

// Footer is the decoded master index, expected-value tables and normalization
// vector index.
type Footer struct {
	// MasterIndex maps "chr1_chr2" matrix keys to matrix bodies.
	MasterIndex map[string]IndexEntry
	// Expected maps "unit_binSize_type" keys to expected-value tables.
	Expected map[string]*ExpectedEntry
	// NormVectors maps "type_chrIdx_unit_resolution" keys to vector locations.
	NormVectors map[string]IndexEntry
	// NormTypes lists the normalization types present, in file order.
	NormTypes []format.NormType
	// NormFilePosition is the offset of the normalization section.
	NormFilePosition int64
}

// FooterOptions tunes footer decoding.
type FooterOptions struct {
	// ExpectedThreshold is the bin size below which expected values are deferred.
	ExpectedThreshold int32
}

// ExpectedKey builds the expected-value lookup key.
func ExpectedKey(unit string, binSize int32, normType format.NormType) string {
	return unit + "_" + strconv.Itoa(int(binSize)) + "_" + string(normType)
}

// MatrixKey builds the master index key of a chromosome pair.
func MatrixKey(chr1, chr2 int32) string {
	return strconv.Itoa(int(chr1)) + "_" + strconv.Itoa(int(chr2))
}

// NormVectorKey builds the normalization vector lookup key.
func NormVectorKey(normType format.NormType, chrIdx int32, unit string, resolution int32) string {
	return string(normType) + "_" + strconv.Itoa(int(chrIdx)) + "_" + unit + "_" + strconv.Itoa(int(resolution))
}

// ParseFooter decodes the footer located at masterIndexOffset.
//
// Files of version 6 and later may end right after the unnormalized expected
// values; a missing normalization section is not an error and yields empty
// NormVectors and NormTypes.
func ParseFooter(r *encoding.StreamReader, version format.Version, masterIndexOffset int64, opts FooterOptions) (*Footer, error) {
	if opts.ExpectedThreshold <= 0 {
		opts.ExpectedThreshold = format.DefaultExpectedThreshold
	}
	long := version.HasLongFields()

	r.Seek(masterIndexOffset)
	nBytes, err := r.SizedInt(long)
	if err != nil {
		return nil, err
	}

	f := &Footer{
		MasterIndex:      map[string]IndexEntry{},
		Expected:         map[string]*ExpectedEntry{},
		NormVectors:      map[string]IndexEntry{},
		NormFilePosition: masterIndexOffset + nBytes + version.CountWidth(),
	}

	nEntries, err := readCount(r)
	if err != nil {
		return nil, err
	}
	for range nEntries {
		key, err := r.CString()
		if err != nil {
			return nil, err
		}
		pos, err := r.Int64()
		if err != nil {
			return nil, err
		}
		size, err := r.Int32()
		if err != nil {
			return nil, err
		}
		f.MasterIndex[key] = IndexEntry{Position: pos, Size: int64(size)}
	}

	if err := parseExpectedTables(r, version, opts, f, false); err != nil {
		return nil, err
	}

	if !version.HasNormSection() {
		return f, nil
	}

	r.Seek(f.NormFilePosition)
	if err := parseExpectedTables(r, version, opts, f, true); err != nil {
		if errors.Is(err, errNoNormSection) {
			return f, nil
		}

		return nil, err
	}

	if err := parseNormVectorIndex(r, long, f); err != nil {
		return nil, err
	}

	return f, nil
}

var errNoNormSection = errors.New("no normalization section")

func parseExpectedTables(r *encoding.StreamReader, version format.Version, opts FooterOptions, f *Footer, normalized bool) error {
	long := version.HasLongFields()

	count, err := r.Int32()
	if err != nil {
		if normalized && errors.Is(err, io.EOF) {
			return errNoNormSection
		}

		return err
	}

	for range count {
		entry := &ExpectedEntry{NormType: format.NormNone}
		if normalized {
			typeName, err := r.CString()
			if err != nil {
				return err
			}
			entry.NormType = format.NormType(typeName)
		}
		if entry.UnitName, err = r.CString(); err != nil {
			return err
		}
		entry.Unit = format.ParseUnit(entry.UnitName)
		if entry.BinSize, err = r.Int32(); err != nil {
			return err
		}
		if entry.ValueCount, err = r.SizedInt(long); err != nil {
			return err
		}

		entry.Strategy = format.ExpectedStrategyFor(entry.BinSize, opts.ExpectedThreshold)
		entry.ValuesPosition = r.Pos()
		if entry.Strategy == format.ExpectedEager {
			entry.Values = make([]float64, entry.ValueCount)
			for i := range entry.Values {
				if entry.Values[i], err = r.SizedFloat(long); err != nil {
					return err
				}
			}
		} else if err := r.Skip(entry.ValueCount * version.ValueWidth()); err != nil {
			return err
		}

		nFactors, err := readCount(r)
		if err != nil {
			return err
		}
		entry.NormFactors = make(map[int32]float64, nFactors)
		for range nFactors {
			chrIdx, err := r.Int32()
			if err != nil {
				return err
			}
			factor, err := r.SizedFloat(long)
			if err != nil {
				return err
			}
			entry.NormFactors[chrIdx] = factor
		}

		f.Expected[entry.Key()] = entry
	}

	return nil
}

func parseNormVectorIndex(r *encoding.StreamReader, long bool, f *Footer) error {
	nEntries, err := readCount(r)
	if err != nil {
		return err
	}

	seen := map[format.NormType]bool{}
	for range nEntries {
		typeName, err := r.CString()
		if err != nil {
			return err
		}
		chrIdx, err := r.Int32()
		if err != nil {
			return err
		}
		unit, err := r.CString()
		if err != nil {
			return err
		}
		resolution, err := r.Int32()
		if err != nil {
			return err
		}
		pos, err := r.Int64()
		if err != nil {
			return err
		}
		size, err := r.SizedInt(long)
		if err != nil {
			return err
		}

		normType := format.NormType(typeName)
		f.NormVectors[NormVectorKey(normType, chrIdx, unit, resolution)] = IndexEntry{Position: pos, Size: size}
		if !seen[normType] {
			seen[normType] = true
			f.NormTypes = append(f.NormTypes, normType)
		}
	}

	return nil
}
