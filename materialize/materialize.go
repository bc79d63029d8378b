// Package materialize decides whether the records of a matrix are streamed
// from disk or loaded once into memory.
//
// Both paths yield the same records; only the I/O cost of repeated iteration
// differs.
package materialize

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"

	"github.com/arloliu/hic/block"
	"github.com/arloliu/hic/internal/resource"
)

// DefaultChunkSize is the number of records per in-memory chunk.
const DefaultChunkSize = 1 << 20

// Bytes per record and per matrix row used by the memory estimate.
const (
	RecordBytes = 12
	RowBytes    = 4
)

// ErrTooLarge is reported when the estimate does not fit the memory budget.
var ErrTooLarge = errors.New("matrix does not fit the memory budget")

// Source is a re-iterable sequence of contact records with size hints.
type Source interface {
	Records(ctx context.Context) iter.Seq2[block.ContactRecord, error]
	// MatrixSize returns the number of bins along one side of the matrix.
	MatrixSize() int64
	// RecordCount returns the estimated number of records.
	RecordCount(ctx context.Context) (int64, error)
}

// EstimateBytes returns the memory needed to hold count records of a matrix
// with size bins per side.
func EstimateBytes(size, count int64) int64 {
	return RowBytes*size + RecordBytes*count
}

// Container holds every record of a matrix in bounded chunks.
type Container struct {
	chunks   [][]block.ContactRecord
	size     int64
	count    int64
	reserved int64
	release  func(int64)
	once     sync.Once
}

// NewContainer creates a container over prebuilt chunks.
func NewContainer(chunks [][]block.ContactRecord, matrixSize int64) *Container {
	c := &Container{chunks: chunks, size: matrixSize}
	for _, chunk := range chunks {
		c.count += int64(len(chunk))
	}

	return c
}

// Records yields every record in load order. It performs no I/O.
func (c *Container) Records(ctx context.Context) iter.Seq2[block.ContactRecord, error] {
	return func(yield func(block.ContactRecord, error) bool) {
		for _, chunk := range c.chunks {
			if err := ctx.Err(); err != nil {
				yield(block.ContactRecord{}, err)
				return
			}
			for _, rec := range chunk {
				if !yield(rec, nil) {
					return
				}
			}
		}
	}
}

// MatrixSize implements Source.
func (c *Container) MatrixSize() int64 { return c.size }

// RecordCount implements Source with the exact count.
func (c *Container) RecordCount(context.Context) (int64, error) { return c.count, nil }

// Len returns the number of records.
func (c *Container) Len() int64 { return c.count }

// Chunks returns the number of chunks.
func (c *Container) Chunks() int { return len(c.chunks) }

// Close returns the memory reservation taken for the container.
func (c *Container) Close() error {
	c.once.Do(func() {
		if c.release != nil {
			c.release(c.reserved)
		}
	})

	return nil
}

// Result describes what Apply decided.
type Result struct {
	Materialized   bool
	EstimatedBytes int64
	Records        int64
	// Reason is set when materialization was requested but not done.
	Reason error
}

// Policy loads a Source into memory when asked to and when it fits.
type Policy struct {
	// SaveAllIntoRAM enables materialization.
	SaveAllIntoRAM bool
	// ChunkSize bounds the records per chunk; DefaultChunkSize if 0.
	ChunkSize int
	// Resources reserves the estimate; a nil controller checks system memory.
	Resources *resource.Controller
}

// Apply returns a Container when materialization is enabled and fits, and src
// unchanged otherwise. It never fails: any error while loading falls back to
// src and is reported in Result.Reason.
func (p Policy) Apply(ctx context.Context, src Source) (Source, Result) {
	if !p.SaveAllIntoRAM {
		return src, Result{}
	}

	count, err := src.RecordCount(ctx)
	if err != nil {
		return src, Result{Reason: fmt.Errorf("count records: %w", err)}
	}
	res := Result{EstimatedBytes: EstimateBytes(src.MatrixSize(), count), Records: count}

	if !p.Resources.TryAcquireMemory(res.EstimatedBytes) {
		res.Reason = fmt.Errorf("%w: %d bytes", ErrTooLarge, res.EstimatedBytes)
		return src, res
	}

	c, err := Load(ctx, src, p.ChunkSize)
	if err != nil {
		p.Resources.ReleaseMemory(res.EstimatedBytes)
		res.Reason = err

		return src, res
	}
	c.reserved = res.EstimatedBytes
	c.release = p.Resources.ReleaseMemory
	res.Materialized = true
	res.Records = c.count

	return c, res
}

// Load drains src into a Container of chunks holding at most chunkSize records.
func Load(ctx context.Context, src Source, chunkSize int) (*Container, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	var chunks [][]block.ContactRecord
	var current []block.ContactRecord
	for rec, err := range src.Records(ctx) {
		if err != nil {
			return nil, err
		}
		if current == nil {
			current = make([]block.ContactRecord, 0, chunkSize)
		}
		current = append(current, rec)
		if len(current) == chunkSize {
			chunks = append(chunks, current)
			current = nil
		}
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}

	return NewContainer(chunks, src.MatrixSize()), nil
}
