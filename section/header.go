package section

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/arloliu/hic/encoding"
	"github.com/arloliu/hic/errs"
	"github.com/arloliu/hic/format"
)

// Magic is the NUL-terminated string that opens every file.
const Magic = "HIC"

// ChrAll is the name of the synthetic whole-genome chromosome.
const ChrAll = "All"

// AttrScalingFactor is the header attribute holding the file's display scaling factor.
const AttrScalingFactor = "hicFileScalingFactor"

// Chromosome is one entry of the header's chromosome dictionary.
type Chromosome struct {
	Index  int
	Name   string
	Length int64
}

// FragIndexEntry locates the restriction site array of one chromosome.
type FragIndexEntry struct {
	// Position is the file offset of the first site, right after the count.
	Position int64
	// Count is the number of int32 sites.
	Count int32
}

// Header is the decoded file header.
type Header struct {
	Version           format.Version
	MasterIndexOffset int64
	Genome            string

	// NVIPosition and NVILength describe the normalization vector index (version 9+).
	NVIPosition int64
	NVILength   int64

	Attributes      map[string]string
	Chromosomes     []Chromosome
	BpResolutions   []int32
	FragResolutions []int32

	// FragSites is keyed by chromosome name and only populated when the file
	// has fragment resolutions.
	FragSites map[string]FragIndexEntry
}

// ParseHeader decodes the header starting at the reader's current position.
//
// Fragment site arrays are indexed but not read; use FragSites positions to
// load them on demand.
func ParseHeader(r *encoding.StreamReader) (*Header, error) {
	start := r.Pos()
	magic, err := r.CString()
	if err != nil {
		return nil, err
	}
	if magic != Magic {
		return nil, errs.NewFormatError(start, fmt.Sprintf("magic %q", magic), errs.ErrInvalidMagic)
	}

	h := &Header{Attributes: map[string]string{}}

	version, err := r.Int32()
	if err != nil {
		return nil, err
	}
	h.Version = format.Version(version)

	if h.MasterIndexOffset, err = r.Int64(); err != nil {
		return nil, err
	}
	if h.Genome, err = r.CString(); err != nil {
		return nil, err
	}

	long := h.Version.HasLongFields()
	if long {
		if h.NVIPosition, err = r.Int64(); err != nil {
			return nil, err
		}
		if h.NVILength, err = r.Int64(); err != nil {
			return nil, err
		}
	}

	if h.Version.HasAttributes() {
		n, err := readCount(r)
		if err != nil {
			return nil, err
		}
		for range n {
			key, err := r.CString()
			if err != nil {
				return nil, err
			}
			value, err := r.CString()
			if err != nil {
				return nil, err
			}
			h.Attributes[key] = value
		}
	}

	nChrs, err := readCount(r)
	if err != nil {
		return nil, err
	}
	h.Chromosomes = make([]Chromosome, 0, nChrs)
	for i := range nChrs {
		name, err := r.CString()
		if err != nil {
			return nil, err
		}
		length, err := r.SizedInt(long)
		if err != nil {
			return nil, err
		}
		h.Chromosomes = append(h.Chromosomes, Chromosome{Index: int(i), Name: name, Length: length})
	}

	if h.BpResolutions, err = readInt32s(r); err != nil {
		return nil, err
	}
	if h.FragResolutions, err = readInt32s(r); err != nil {
		return nil, err
	}

	if len(h.FragResolutions) > 0 {
		h.FragSites = make(map[string]FragIndexEntry, len(h.Chromosomes))
		for _, chr := range h.Chromosomes {
			nSites, err := readCount(r)
			if err != nil {
				return nil, err
			}
			h.FragSites[chr.Name] = FragIndexEntry{Position: r.Pos(), Count: nSites}
			if err := r.Skip(int64(nSites) * 4); err != nil {
				return nil, err
			}
		}
	}

	return h, nil
}

// Chromosome returns the chromosome with the given index.
func (h *Header) Chromosome(index int32) (Chromosome, error) {
	if index < 0 || int(index) >= len(h.Chromosomes) {
		return Chromosome{}, errs.NewMissingDataError("chromosome", strconv.Itoa(int(index)), errs.ErrChromosomeOutOfRange)
	}

	return h.Chromosomes[index], nil
}

// ChromosomeByName looks up a chromosome by name, ignoring case.
func (h *Header) ChromosomeByName(name string) (Chromosome, bool) {
	for _, chr := range h.Chromosomes {
		if strings.EqualFold(chr.Name, name) {
			return chr, true
		}
	}

	return Chromosome{}, false
}

// FragmentCounts returns the number of restriction sites per chromosome name.
func (h *Header) FragmentCounts() map[string]int32 {
	counts := make(map[string]int32, len(h.FragSites))
	for name, entry := range h.FragSites {
		counts[name] = entry.Count
	}

	return counts
}

// RestrictionSiteCount returns the site count of the last non-whole-genome
// chromosome, which identifies the restriction enzyme. ok is false when the
// file has no fragment data.
func (h *Header) RestrictionSiteCount() (count int32, ok bool) {
	for i := len(h.Chromosomes) - 1; i >= 0; i-- {
		chr := h.Chromosomes[i]
		if chr.Name == ChrAll {
			continue
		}
		entry, found := h.FragSites[chr.Name]
		if !found {
			return 0, false
		}

		return entry.Count, true
	}

	return 0, false
}

// ScalingFactor returns the parsed hicFileScalingFactor attribute.
func (h *Header) ScalingFactor() (float64, bool) {
	raw, ok := h.Attributes[AttrScalingFactor]
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, false
	}

	return v, true
}

func readCount(r *encoding.StreamReader) (int32, error) {
	pos := r.Pos()
	n, err := r.Int32()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errs.NewFormatError(pos, fmt.Sprintf("count %d", n), errs.ErrNegativeCount)
	}

	return n, nil
}

func readInt32s(r *encoding.StreamReader) ([]int32, error) {
	n, err := readCount(r)
	if err != nil {
		return nil, err
	}
	values := make([]int32, n)
	for i := range values {
		if values[i], err = r.Int32(); err != nil {
			return nil, err
		}
	}

	return values, nil
}

