// Package hic reads contact-matrix files in the .hic format produced by
// chromosome conformation capture pipelines.
//
// A .hic file stores, for every pair of chromosomes, a sparse matrix of
// contact counts at several resolutions. Each resolution is split into
// compressed blocks addressed through a per-resolution block index. The file
// also carries normalization vectors, expected-value tables (background
// contact frequency as a function of genomic distance) and restriction
// fragment sites.
//
// # Core Features
//
//   - Every format dialect from version 5 through 9
//   - Lazy loading: only the header and footer are read on open
//   - Concurrent reads over a configurable pool of I/O channels
//   - Dense or on-demand block indexes for genome-wide fine resolutions
//   - Normalized blocks with VC_SQRT derived from VC when absent
//   - Eager or deferred expected values selected by bin size
//   - Local files, memory-mapped files, S3 and MinIO sources
//   - Optional in-memory materialization bounded by a memory budget
//
// # Basic Usage
//
// Opening a file and reading a block:
//
//	import "github.com/arloliu/hic"
//
//	r, err := hic.Open(ctx, "/data/sample.hic")
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//
//	chr1, _ := r.ChromosomeByName("chr1")
//	m, err := r.ReadMatrix(ctx, int32(chr1.Index), int32(chr1.Index))
//	if err != nil || m == nil {
//	    return err
//	}
//	zoom, err := m.Zoom(format.UnitBP, 10000)
//	if err != nil {
//	    return err
//	}
//	numbers, _ := zoom.BlockNumbers(ctx)
//	for _, n := range numbers {
//	    blk, err := r.ReadNormalizedBlock(ctx, zoom, n, format.NormKR)
//	    if err != nil {
//	        return err
//	    }
//	    if blk == nil {
//	        break // KR not available, fall back to raw counts
//	    }
//	    for _, rec := range blk.Records {
//	        fmt.Println(rec.BinX, rec.BinY, rec.Counts)
//	    }
//	}
//
// Reading from object storage:
//
//	r, err := hic.Open(ctx, "s3://maps/runs/sample.hic", hic.WithChannels(8))
//
// # Package Structure
//
// This package provides top-level wrappers around the dataset package. For
// finer control use dataset, norm, expected and materialize directly.
package hic

import (
	"context"

	"github.com/arloliu/hic/blobstore"
	"github.com/arloliu/hic/dataset"
	"github.com/arloliu/hic/format"
	"github.com/arloliu/hic/section"
)

// Reader is an open contact-matrix file. See dataset.Reader.
type Reader = dataset.Reader

// Option configures a Reader.
type Option = dataset.Option

// Re-exported reader options.
var (
	WithChannels          = dataset.WithChannels
	WithCompression       = dataset.WithCompression
	WithLogger            = dataset.WithLogger
	WithMetrics           = dataset.WithMetrics
	WithBlockCache        = dataset.WithBlockCache
	WithDynamicBlockIndex = dataset.WithDynamicBlockIndex
	WithExpectedThreshold = dataset.WithExpectedThreshold
	WithMemoryController  = dataset.WithMemoryController
	WithIORateLimit       = dataset.WithIORateLimit
	WithMmap              = dataset.WithMmap
	WithSaveAllIntoRAM    = dataset.WithSaveAllIntoRAM
	WithChunkSize         = dataset.WithChunkSize
)

// Open opens a contact-matrix file.
//
// location is a local path or a URI:
//   - /data/sample.hic or file:///data/sample.hic for local files
//   - s3://bucket/key for AWS S3, using the default credential chain
//   - minio://host:port/bucket/key for MinIO, using MINIO_ACCESS_KEY,
//     MINIO_SECRET_KEY and MINIO_SECURE
//
// Only the header and footer are read. Matrices, blocks, vectors and
// fine-resolution expected values are loaded on first use.
//
// Example:
//
//	r, err := hic.Open(ctx, "sample.hic", hic.WithChannels(4))
func Open(ctx context.Context, location string, opts ...Option) (*Reader, error) {
	return dataset.Open(ctx, location, opts...)
}

// OpenWithStore opens the object name of store. Use it with a
// blobstore.MemoryStore for in-memory files or with a preconfigured S3 or
// MinIO store.
//
// Example:
//
//	store := blobstore.NewMemoryStore()
//	store.Put("sample.hic", data)
//	r, err := hic.OpenWithStore(ctx, store, "sample.hic")
func OpenWithStore(ctx context.Context, store blobstore.Store, name string, opts ...Option) (*Reader, error) {
	return dataset.OpenStore(ctx, store, name, opts...)
}

// OpenBytes opens a file held in memory.
func OpenBytes(ctx context.Context, data []byte, opts ...Option) (*Reader, error) {
	store := blobstore.NewMemoryStore()
	store.Put("memory.hic", data)

	return dataset.OpenStore(ctx, store, "memory.hic", opts...)
}

// MatrixKey returns the master index key "chr1_chr2" of a chromosome pair.
func MatrixKey(chr1, chr2 int32) string {
	return section.MatrixKey(chr1, chr2)
}

// NormVectorKey returns the lookup key "type_chr_unit_resolution" of a
// normalization vector.
func NormVectorKey(normType format.NormType, chrIdx int32, unit string, resolution int32) string {
	return section.NormVectorKey(normType, chrIdx, unit, resolution)
}
