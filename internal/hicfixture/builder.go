package hicfixture

import (
	"fmt"

	"github.com/arloliu/hic/compress"
	"github.com/arloliu/hic/endian"
	"github.com/arloliu/hic/format"
)

// Chromosome is a dictionary entry.
type Chromosome struct {
	Name   string
	Length int64
}

// Block is one block of a zoom level.
type Block struct {
	Number   int32
	Records  []Record
	Encoding *BlockEncoding
	// Body replaces the encoded records when set (for malformed blocks).
	Body []byte
}

// Zoom is one resolution level of a matrix. Blocks are indexed in slice order.
type Zoom struct {
	Unit             string
	ZoomIndex        int32
	BinSize          int32
	BlockBinCount    int32
	BlockColumnCount int32
	SumCounts        float32
	Blocks           []Block
}

// Matrix is the body of one chromosome pair.
type Matrix struct {
	Chr1  int32
	Chr2  int32
	Zooms []Zoom
	// Key overrides the master index key (defaults to "chr1_chr2").
	Key string
}

// Factor is a per-chromosome expected-value normalization factor.
type Factor struct {
	Chr   int32
	Value float64
}

// Expected is one expected-value table.
type Expected struct {
	NormType string
	Unit     string
	BinSize  int32
	Values   []float64
	Factors  []Factor
}

// NormVector is one normalization vector.
type NormVector struct {
	Type       string
	ChrIdx     int32
	Unit       string
	Resolution int32
	Values     []float64
}

// Builder assembles a complete file in memory.
type Builder struct {
	Version         format.Version
	Genome          string
	Attributes      [][2]string
	Chromosomes     []Chromosome
	BpResolutions   []int32
	FragResolutions []int32
	// FragSites is indexed like Chromosomes; only written with fragment resolutions.
	FragSites [][]int32

	Matrices     []Matrix
	Expected     []Expected
	NormExpected []Expected
	NormVectors  []NormVector
	// OmitNormSection ends the file right after the unnormalized expected values.
	OmitNormSection bool

	Compression format.CompressionType
}

// Layout reports where the builder placed things.
type Layout struct {
	MasterIndexOffset int64
	NormFilePosition  int64
	// Blocks maps "matrixKey/zoomIndex/unit/number" to the compressed block's position.
	Blocks map[string]int64
}

type writer struct {
	buf    []byte
	engine endian.EndianEngine
	long   bool
}

func (w *writer) i32(v int32) { w.buf = w.engine.AppendUint32(w.buf, uint32(v)) }
func (w *writer) i64(v int64) { w.buf = w.engine.AppendUint64(w.buf, uint64(v)) }
func (w *writer) f32(v float32) { w.buf = endian.AppendFloat32(w.engine, w.buf, v) }
func (w *writer) str(s string) { w.buf = append(append(w.buf, s...), 0) }
func (w *writer) pos() int64 { return int64(len(w.buf)) }
func (w *writer) bytes(b []byte) { w.buf = append(w.buf, b...) }

func (w *writer) sized(v int64) {
	if w.long {
		w.i64(v)
	} else {
		w.i32(int32(v))
	}
}

func (w *writer) value(v float64) {
	if w.long {
		w.f32(float32(v))
	} else {
		w.buf = endian.AppendFloat64(w.engine, w.buf, v)
	}
}

// Build encodes the file.
func (b *Builder) Build() ([]byte, *Layout, error) {
	if b.Version == 0 {
		b.Version = 8
	}
	if b.Compression == 0 {
		b.Compression = format.CompressionZlib
	}
	codec, err := compress.CreateCodec(b.Compression, "fixture")
	if err != nil {
		return nil, nil, err
	}

	w := &writer{engine: endian.GetLittleEndianEngine(), long: b.Version.HasLongFields()}
	layout := &Layout{Blocks: map[string]int64{}}

	w.str("HIC")
	w.i32(int32(b.Version))
	masterPatch := w.pos()
	w.i64(0)
	w.str(b.Genome)
	var nviPatch int64
	if w.long {
		nviPatch = w.pos()
		w.i64(0)
		w.i64(0)
	}
	if b.Version.HasAttributes() {
		w.i32(int32(len(b.Attributes)))
		for _, kv := range b.Attributes {
			w.str(kv[0])
			w.str(kv[1])
		}
	}
	w.i32(int32(len(b.Chromosomes)))
	for _, chr := range b.Chromosomes {
		w.str(chr.Name)
		w.sized(chr.Length)
	}
	w.i32(int32(len(b.BpResolutions)))
	for _, r := range b.BpResolutions {
		w.i32(r)
	}
	w.i32(int32(len(b.FragResolutions)))
	for _, r := range b.FragResolutions {
		w.i32(r)
	}
	if len(b.FragResolutions) > 0 {
		for i := range b.Chromosomes {
			var sites []int32
			if i < len(b.FragSites) {
				sites = b.FragSites[i]
			}
			w.i32(int32(len(sites)))
			for _, s := range sites {
				w.i32(s)
			}
		}
	}

	type indexed struct {
		key  string
		pos  int64
		size int64
	}
	var master []indexed

	for _, m := range b.Matrices {
		key := m.Key
		if key == "" {
			key = fmt.Sprintf("%d_%d", m.Chr1, m.Chr2)
		}

		// Blocks first so the matrix body can point at them.
		type blockRef struct {
			number int32
			pos    int64
			size   int32
		}
		zoomRefs := make([][]blockRef, len(m.Zooms))
		for zi, z := range m.Zooms {
			for _, blk := range z.Blocks {
				body := blk.Body
				if body == nil {
					enc := DefaultEncoding(b.Version)
					if blk.Encoding != nil {
						enc = *blk.Encoding
					}
					body = EncodeBlock(b.Version, blk.Records, enc)
				}
				compressed, err := codec.Compress(body)
				if err != nil {
					return nil, nil, err
				}
				ref := blockRef{number: blk.Number, pos: w.pos(), size: int32(len(compressed))}
				layout.Blocks[fmt.Sprintf("%s/%d/%s/%d", key, z.ZoomIndex, z.Unit, blk.Number)] = ref.pos
				w.bytes(compressed)
				zoomRefs[zi] = append(zoomRefs[zi], ref)
			}
		}

		start := w.pos()
		w.i32(m.Chr1)
		w.i32(m.Chr2)
		w.i32(int32(len(m.Zooms)))
		for zi, z := range m.Zooms {
			w.str(z.Unit)
			w.i32(z.ZoomIndex)
			w.f32(z.SumCounts)
			w.f32(0)
			w.f32(0)
			w.f32(0)
			w.i32(z.BinSize)
			w.i32(z.BlockBinCount)
			w.i32(z.BlockColumnCount)
			w.i32(int32(len(z.Blocks)))
			for _, ref := range zoomRefs[zi] {
				w.i32(ref.number)
				w.i64(ref.pos)
				w.i32(ref.size)
			}
		}
		master = append(master, indexed{key: key, pos: start, size: w.pos() - start})
	}

	vectorPos := make([]int64, len(b.NormVectors))
	vectorSize := make([]int64, len(b.NormVectors))
	for i, nv := range b.NormVectors {
		vectorPos[i] = w.pos()
		w.sized(int64(len(nv.Values)))
		for _, v := range nv.Values {
			w.value(v)
		}
		vectorSize[i] = w.pos() - vectorPos[i]
	}

	layout.MasterIndexOffset = w.pos()
	w.engine.PutUint64(w.buf[masterPatch:], uint64(layout.MasterIndexOffset))

	nBytesPatch := w.pos()
	w.sized(0)
	afterSize := w.pos()
	w.i32(int32(len(master)))
	for _, e := range master {
		w.str(e.key)
		w.i64(e.pos)
		w.i32(int32(e.size))
	}
	writeExpected(w, b.Expected, false)
	nBytes := w.pos() - afterSize
	if w.long {
		w.engine.PutUint64(w.buf[nBytesPatch:], uint64(nBytes))
	} else {
		w.engine.PutUint32(w.buf[nBytesPatch:], uint32(nBytes))
	}
	layout.NormFilePosition = w.pos()

	if b.Version.HasNormSection() && !b.OmitNormSection {
		writeExpected(w, b.NormExpected, true)
		nviStart := w.pos()
		w.i32(int32(len(b.NormVectors)))
		for i, nv := range b.NormVectors {
			w.str(nv.Type)
			w.i32(nv.ChrIdx)
			w.str(nv.Unit)
			w.i32(nv.Resolution)
			w.i64(vectorPos[i])
			w.sized(vectorSize[i])
		}
		if w.long {
			w.engine.PutUint64(w.buf[nviPatch:], uint64(nviStart))
			w.engine.PutUint64(w.buf[nviPatch+8:], uint64(w.pos()-nviStart))
		}
	}

	return w.buf, layout, nil
}

func writeExpected(w *writer, tables []Expected, normalized bool) {
	w.i32(int32(len(tables)))
	for _, e := range tables {
		if normalized {
			w.str(e.NormType)
		}
		w.str(e.Unit)
		w.i32(e.BinSize)
		w.sized(int64(len(e.Values)))
		for _, v := range e.Values {
			w.value(v)
		}
		w.i32(int32(len(e.Factors)))
		for _, f := range e.Factors {
			w.i32(f.Chr)
			w.value(f.Value)
		}
	}
}
