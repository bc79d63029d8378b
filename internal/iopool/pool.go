// Package iopool schedules block reads over a fixed set of I/O channels.
//
// Each channel pairs an independent handle on the file with its own
// decompressor. A channel serves one operation at a time; different channels
// run concurrently. Callers borrow a channel with Acquire and return it with
// Release, or use the ReadRange and ReadAndDecompress helpers that do both.
package iopool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/arloliu/hic/compress"
	"github.com/arloliu/hic/errs"
	"github.com/arloliu/hic/internal/pool"
	"github.com/arloliu/hic/internal/resource"
)

// Stream is a random access handle on the file.
type Stream interface {
	io.ReaderAt
	io.Closer
	Size() int64
}

// Observer receives timing of channel operations.
type Observer interface {
	RecordRead(bytes int64, d time.Duration, err error)
	RecordDecompress(in, out int64, d time.Duration, err error)
}

// OpenFunc opens one more handle on the file.
type OpenFunc func(ctx context.Context) (Stream, error)

// DecompressorFunc creates a decompressor owned by one channel.
type DecompressorFunc func() (compress.Decompressor, error)

// Channel is one (stream, decompressor) pair.
type Channel struct {
	ID           int
	Stream       Stream
	Decompressor compress.Decompressor
}

// Config configures a Pool.
type Config struct {
	Channels        int
	Open            OpenFunc
	NewDecompressor DecompressorFunc
	Resources       *resource.Controller
	Observer        Observer
}

// Pool hands out channels with acquire/release semantics.
type Pool struct {
	free      chan *Channel
	all       []*Channel
	done      chan struct{}
	closed    atomic.Bool
	resources *resource.Controller
	observer  Observer
	size      int64
}

// New opens cfg.Channels handles and decompressors.
func New(ctx context.Context, cfg Config) (*Pool, error) {
	if cfg.Channels <= 0 {
		return nil, fmt.Errorf("%w: %d", errs.ErrInvalidChannelCount, cfg.Channels)
	}
	if cfg.NewDecompressor == nil {
		cfg.NewDecompressor = func() (compress.Decompressor, error) { return compress.NewZlibCodec(), nil }
	}

	p := &Pool{
		free:      make(chan *Channel, cfg.Channels),
		done:      make(chan struct{}),
		resources: cfg.Resources,
		observer:  cfg.Observer,
	}

	for i := range cfg.Channels {
		stream, err := cfg.Open(ctx)
		if err != nil {
			p.closeAll()
			return nil, fmt.Errorf("open channel %d: %w", i, err)
		}
		dec, err := cfg.NewDecompressor()
		if err != nil {
			_ = stream.Close()
			p.closeAll()

			return nil, fmt.Errorf("create decompressor for channel %d: %w", i, err)
		}
		ch := &Channel{ID: i, Stream: stream, Decompressor: dec}
		p.all = append(p.all, ch)
		p.free <- ch
	}
	p.size = p.all[0].Stream.Size()

	return p, nil
}

// Channels returns the number of channels.
func (p *Pool) Channels() int { return len(p.all) }

// Size returns the file size.
func (p *Pool) Size() int64 { return p.size }

// Acquire blocks until a channel is free.
func (p *Pool) Acquire(ctx context.Context) (*Channel, error) {
	if p.closed.Load() {
		return nil, errs.ErrClosed
	}

	select {
	case ch := <-p.free:
		if p.closed.Load() {
			p.free <- ch
			return nil, errs.ErrClosed
		}

		return ch, nil
	case <-p.done:
		return nil, errs.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns a channel to the pool.
func (p *Pool) Release(ch *Channel) {
	p.free <- ch
}

// ReadRange reads size bytes at pos into a new slice.
func (p *Pool) ReadRange(ctx context.Context, pos int64, size int) ([]byte, error) {
	out := make([]byte, size)
	if err := p.readInto(ctx, nil, pos, out); err != nil {
		return nil, err
	}

	return out, nil
}

// ReadAndDecompress reads the compressed range at pos and decompresses it on
// the same channel.
func (p *Pool) ReadAndDecompress(ctx context.Context, pos int64, size int) ([]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("%w: negative size %d at offset %d", errs.ErrInvalidRange, size, pos)
	}

	ch, err := p.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer p.Release(ch)

	buf := pool.GetReadBuffer()
	defer pool.PutReadBuffer(buf)

	compressed := buf.Resize(size)
	if err := p.readInto(ctx, ch, pos, compressed); err != nil {
		return nil, err
	}

	start := time.Now()
	out, err := ch.Decompressor.Decompress(compressed)
	if p.observer != nil {
		p.observer.RecordDecompress(int64(size), int64(len(out)), time.Since(start), err)
	}
	if err != nil {
		return nil, errs.NewFormatError(pos, "decompress block", err)
	}

	return out, nil
}

// ReaderAt returns an io.ReaderAt that borrows a channel for every call.
// Reads past the end of the file return io.EOF like os.File.
func (p *Pool) ReaderAt(ctx context.Context) io.ReaderAt {
	return &poolReaderAt{pool: p, ctx: ctx}
}

type poolReaderAt struct {
	pool *Pool
	ctx  context.Context
}

func (r *poolReaderAt) ReadAt(b []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("%w: negative offset %d", errs.ErrInvalidRange, off)
	}
	if off >= r.pool.size {
		if len(b) == 0 {
			return 0, nil
		}

		return 0, io.EOF
	}

	n := len(b)
	if rest := r.pool.size - off; int64(n) > rest {
		n = int(rest)
	}
	if err := r.pool.readInto(r.ctx, nil, off, b[:n]); err != nil {
		return 0, err
	}
	if n < len(b) {
		return n, io.EOF
	}

	return n, nil
}

// readInto fills dst from pos, on ch when given or on a freshly acquired channel.
func (p *Pool) readInto(ctx context.Context, ch *Channel, pos int64, dst []byte) error {
	if pos < 0 || pos+int64(len(dst)) > p.size {
		return fmt.Errorf("read %d bytes at offset %d beyond file size %d: %w",
			len(dst), pos, p.size, io.ErrUnexpectedEOF)
	}
	if err := p.resources.AcquireIO(ctx, len(dst)); err != nil {
		return err
	}

	if ch == nil {
		var err error
		if ch, err = p.Acquire(ctx); err != nil {
			return err
		}
		defer p.Release(ch)
	}

	start := time.Now()
	n, err := ch.Stream.ReadAt(dst, pos)
	if err != nil && errors.Is(err, io.EOF) && n == len(dst) {
		err = nil
	}
	if err == nil && n < len(dst) {
		err = io.ErrUnexpectedEOF
	}
	if p.observer != nil {
		p.observer.RecordRead(int64(n), time.Since(start), err)
	}
	if err != nil {
		return fmt.Errorf("read %d bytes at offset %d: %w", len(dst), pos, err)
	}

	return nil
}

// Close waits for in-flight operations and closes every stream.
func (p *Pool) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(p.done)

	for range p.all {
		<-p.free
	}

	return p.closeAll()
}

func (p *Pool) closeAll() error {
	var errList []error
	for _, ch := range p.all {
		if err := ch.Stream.Close(); err != nil {
			errList = append(errList, err)
		}
	}

	return errors.Join(errList...)
}
