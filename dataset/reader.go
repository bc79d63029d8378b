// Package dataset reads contact-matrix (.hic) files.
//
// A Reader parses the header and footer once on Open and loads everything
// else lazily: matrix headers, block indexes, blocks, normalization vectors,
// fine-resolution expected values and fragment sites. All lazily populated
// state lives in concurrent caches, so a Reader is safe for use by multiple
// goroutines. Disk access goes through a fixed pool of I/O channels, each
// owning its own handle on the file and its own decompressor.
//
// Errors follow the errs taxonomy. Format errors are fatal for the operation
// that hit them. Missing data (an absent normalization vector or expected
// table) is reported as an errs.MissingDataError, and matrices whose body
// names out-of-range chromosomes are logged and treated as absent.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/arloliu/hic/blobstore"
	"github.com/arloliu/hic/block"
	"github.com/arloliu/hic/compress"
	"github.com/arloliu/hic/encoding"
	"github.com/arloliu/hic/endian"
	"github.com/arloliu/hic/errs"
	"github.com/arloliu/hic/expected"
	"github.com/arloliu/hic/format"
	"github.com/arloliu/hic/index"
	"github.com/arloliu/hic/internal/iopool"
	"github.com/arloliu/hic/internal/options"
	"github.com/arloliu/hic/internal/syncmap"
	"github.com/arloliu/hic/norm"
	"github.com/arloliu/hic/section"
)

// Reader is an open contact-matrix file.
type Reader struct {
	path    string
	store   blobstore.Store
	name    string
	cfg     *Config
	log     *Logger
	metrics Metrics
	engine  endian.EndianEngine

	pool    *iopool.Pool
	header  *section.Header
	footer  *section.Footer
	decoder *block.Decoder

	expected map[string]*expected.Function
	norms    *norm.Store

	matrices    *syncmap.Map[*Matrix]
	matrixGroup singleflight.Group
	indexes     *syncmap.Map[index.BlockIndex]
	fragSites   *syncmap.Map[[]int32]

	active atomic.Bool
	closed atomic.Bool
}

// Open opens the file at location, a local path or a file://, s3:// or
// minio:// URI. WithStore bypasses resolution and reads location from the
// given store.
func Open(ctx context.Context, location string, opts ...Option) (*Reader, error) {
	cfg := DefaultConfig()
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	store, name := cfg.Store, location
	if store == nil {
		var err error
		if store, name, err = ResolveSource(ctx, location, cfg.Mmap); err != nil {
			return nil, err
		}
	}

	return open(ctx, location, store, name, cfg)
}

// OpenStore opens the object name of store.
func OpenStore(ctx context.Context, store blobstore.Store, name string, opts ...Option) (*Reader, error) {
	cfg := DefaultConfig()
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	return open(ctx, name, store, name, cfg)
}

func open(ctx context.Context, path string, store blobstore.Store, name string, cfg *Config) (*Reader, error) {
	cfg.finish()

	r := &Reader{
		path:      path,
		store:     store,
		name:      name,
		cfg:       cfg,
		log:       cfg.Logger.WithPath(path),
		metrics:   cfg.Metrics,
		engine:    endian.GetLittleEndianEngine(),
		matrices:  syncmap.New[*Matrix](),
		indexes:   syncmap.New[index.BlockIndex](),
		fragSites: syncmap.New[[]int32](),
	}
	r.active.Store(true)

	pool, err := iopool.New(ctx, iopool.Config{
		Channels: cfg.Channels,
		Open: func(ctx context.Context) (iopool.Stream, error) {
			return store.Open(ctx, name)
		},
		NewDecompressor: func() (compress.Decompressor, error) {
			return compress.NewDecompressor(cfg.Compression)
		},
		Resources: cfg.Resources,
		Observer:  cfg.Metrics,
	})
	if err != nil {
		err = fmt.Errorf("open %s: %w", path, err)
		r.log.LogOpen(ctx, 0, 0, 0, err)

		return nil, err
	}
	r.pool = pool

	if err := r.parse(ctx); err != nil {
		_ = pool.Close()
		err = fmt.Errorf("open %s: %w", path, err)
		r.log.LogOpen(ctx, 0, 0, 0, err)

		return nil, err
	}
	r.log.LogOpen(ctx, int32(r.header.Version), len(r.header.Chromosomes), len(r.footer.MasterIndex), nil)

	return r, nil
}

func (r *Reader) parse(ctx context.Context) error {
	stream := encoding.NewStreamReader(r.pool.ReaderAt(ctx), r.pool.Size(), 0, r.engine)

	header, err := section.ParseHeader(stream)
	if err != nil {
		return asFormatError(stream.Pos(), "header", err)
	}
	if header.MasterIndexOffset <= 0 || header.MasterIndexOffset >= r.pool.Size() {
		return errs.NewFormatError(0, fmt.Sprintf("master index offset %d", header.MasterIndexOffset), errs.ErrInvalidRange)
	}

	footer, err := section.ParseFooter(stream, header.Version, header.MasterIndexOffset,
		section.FooterOptions{ExpectedThreshold: r.cfg.ExpectedThreshold})
	if err != nil {
		return asFormatError(stream.Pos(), "footer", err)
	}

	r.header = header
	r.footer = footer
	r.decoder = block.NewDecoder(header.Version)
	r.norms = norm.NewStore(footer.NormVectors, header.Version, r.pool)
	r.expected = make(map[string]*expected.Function, len(footer.Expected))
	for key, entry := range footer.Expected {
		r.expected[key] = expected.New(entry, header.Version, r.pool)
	}

	return nil
}

// asFormatError turns short reads inside a mandatory section into format
// errors. Other errors pass through.
func asFormatError(offset int64, what string, err error) error {
	var fe *errs.FormatError
	if errors.As(err, &fe) {
		return err
	}
	if errors.Is(err, errs.ErrClosed) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	return errs.NewFormatError(offset, "truncated "+what, err)
}

// Path returns the location the reader was opened with.
func (r *Reader) Path() string { return r.path }

// IsActive reports whether the dataset is enabled for display.
func (r *Reader) IsActive() bool { return r.active.Load() }

// SetActive enables or disables the dataset for display.
func (r *Reader) SetActive(active bool) { r.active.Store(active) }

// Version returns the file format version.
func (r *Reader) Version() format.Version { return r.header.Version }

// Genome returns the genome identifier.
func (r *Reader) Genome() string { return r.header.Genome }

// Header returns the decoded header. Callers must not modify it.
func (r *Reader) Header() *section.Header { return r.header }

// Attributes returns the header attribute dictionary.
func (r *Reader) Attributes() map[string]string { return r.header.Attributes }

// Chromosomes returns the chromosome dictionary in file order.
func (r *Reader) Chromosomes() []section.Chromosome { return r.header.Chromosomes }

// Chromosome returns the chromosome with the given index.
func (r *Reader) Chromosome(idx int32) (section.Chromosome, error) {
	return r.header.Chromosome(idx)
}

// ChromosomeByName looks up a chromosome by name, ignoring case.
func (r *Reader) ChromosomeByName(name string) (section.Chromosome, bool) {
	return r.header.ChromosomeByName(name)
}

// BpResolutions returns the base-pair bin sizes, coarsest first as stored.
func (r *Reader) BpResolutions() []int32 { return r.header.BpResolutions }

// FragResolutions returns the fragment bin sizes.
func (r *Reader) FragResolutions() []int32 { return r.header.FragResolutions }

// MatrixKeys returns the master index keys, sorted.
func (r *Reader) MatrixKeys() []string {
	keys := make([]string, 0, len(r.footer.MasterIndex))
	for k := range r.footer.MasterIndex {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return keys
}

// NormFilePosition returns the offset of the normalization section, or the
// file size when the format has none.
func (r *Reader) NormFilePosition() int64 {
	if !r.header.Version.HasNormSection() {
		return r.pool.Size()
	}

	return r.footer.NormFilePosition
}

// NormalizationTypes returns the normalization types with vectors in the
// file, in file order. NONE is not included.
func (r *Reader) NormalizationTypes() []format.NormType {
	out := make([]format.NormType, len(r.footer.NormTypes))
	copy(out, r.footer.NormTypes)

	return out
}

// FragmentCount returns the restriction site count of chrName, or -1 when
// the file has no fragment data for it.
func (r *Reader) FragmentCount(chrName string) int32 {
	entry, ok := r.fragEntry(chrName)
	if !ok {
		return -1
	}

	return entry.Count
}

func (r *Reader) fragEntry(chrName string) (section.FragIndexEntry, bool) {
	if entry, ok := r.header.FragSites[chrName]; ok {
		return entry, true
	}
	chr, ok := r.header.ChromosomeByName(chrName)
	if !ok {
		return section.FragIndexEntry{}, false
	}
	entry, ok := r.header.FragSites[chr.Name]

	return entry, ok
}

// FragmentSites returns the restriction site positions of chrName. Sites are
// read on first use and cached.
func (r *Reader) FragmentSites(ctx context.Context, chrName string) ([]int32, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	entry, ok := r.fragEntry(chrName)
	if !ok {
		return nil, errs.NewMissingDataError("fragment sites", chrName, errs.ErrMissingData)
	}

	return r.fragSites.LoadOrCompute(chrName, func() ([]int32, error) {
		if entry.Count == 0 {
			return []int32{}, nil
		}
		buf, err := r.pool.ReadRange(ctx, entry.Position, int(entry.Count)*4)
		if err != nil {
			return nil, fmt.Errorf("read fragment sites of %s: %w", chrName, err)
		}
		c := encoding.NewCursor(buf, entry.Position, r.engine)
		sites := make([]int32, entry.Count)
		for i := range sites {
			sites[i] = c.Int32()
		}
		if err := c.Err(); err != nil {
			return nil, err
		}

		return sites, nil
	})
}

// ExpectedValueFunction returns the expected-value table for a resolution.
// normType NONE (or empty) selects the observed table.
func (r *Reader) ExpectedValueFunction(unit string, binSize int32, normType format.NormType) (*expected.Function, error) {
	if normType.IsNone() {
		normType = format.NormNone
	}
	key := section.ExpectedKey(unit, binSize, normType)
	f, ok := r.expected[key]
	if !ok {
		return nil, errs.NewMissingDataError("expected values", key, errs.ErrExpectedValuesNotFound)
	}

	return f, nil
}

// ExpectedValueFunctions returns every expected-value table, sorted by key.
func (r *Reader) ExpectedValueFunctions() []*expected.Function {
	out := make([]*expected.Function, 0, len(r.expected))
	for _, f := range r.expected {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })

	return out
}

// ReadExpectedVectorPart reads count expected values stored at position.
func (r *Reader) ReadExpectedVectorPart(ctx context.Context, position, count int64) ([]float64, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}

	return expected.ReadPart(ctx, r.pool, position, r.header.Version.HasLongFields(), 0, count)
}

// ReadNormalizationVector returns the normalization vector of a chromosome
// at one resolution. VC_SQRT is derived from VC when the file lacks it.
func (r *Reader) ReadNormalizationVector(ctx context.Context, normType format.NormType, chrIdx int32, unit string, resolution int32) (*norm.Vector, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}

	return r.norms.Vector(ctx, normType, chrIdx, unit, resolution)
}

// ReadNormalizationVectorPart returns bins [bound1, bound2] of a
// normalization vector without loading the rest.
func (r *Reader) ReadNormalizationVectorPart(ctx context.Context, normType format.NormType, chrIdx int32, unit string, resolution int32, bound1, bound2 int64) (*norm.Vector, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}

	return r.norms.VectorPart(ctx, normType, chrIdx, unit, resolution, bound1, bound2)
}

// HasNormalizationVector reports whether a vector can be served, counting
// the VC_SQRT fallback.
func (r *Reader) HasNormalizationVector(normType format.NormType, chrIdx int32, unit string, resolution int32) bool {
	return r.norms.Has(normType, chrIdx, unit, resolution)
}

// ReadStats returns up to the first 1000 lines of the "<name>_stats.html"
// sidecar, or "" when it cannot be read.
func (r *Reader) ReadStats(ctx context.Context) string {
	return blobstore.ReadText(ctx, r.store, blobstore.StatsName(r.name), blobstore.DefaultTextLines)
}

// Close releases every I/O channel. It waits for in-flight reads to finish.
// Closing twice is a no-op.
func (r *Reader) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}

	return r.pool.Close()
}

func (r *Reader) checkOpen() error {
	if r.closed.Load() {
		return errs.ErrClosed
	}

	return nil
}
