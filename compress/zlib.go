package compress

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"
)

// zlibWriterPool pools zlib writers; Reset makes them reusable across payloads.
var zlibWriterPool = sync.Pool{
	New: func() any {
		return zlib.NewWriter(nil)
	},
}

// ZlibCodec handles the zlib (RFC 1950) payloads used by contact-matrix blocks.
//
// The decompression side keeps a reusable inflater, so a ZlibCodec must not be
// used by more than one goroutine at a time.
type ZlibCodec struct {
	src    bytes.Reader
	reader io.ReadCloser
	out    bytes.Buffer
}

var _ Codec = (*ZlibCodec)(nil)

// NewZlibCodec creates a zlib codec with its own inflater state.
func NewZlibCodec() *ZlibCodec {
	return &ZlibCodec{}
}

// Compress deflates data at the default compression level.
func (c *ZlibCodec) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	w, _ := zlibWriterPool.Get().(*zlib.Writer)
	defer zlibWriterPool.Put(w)
	w.Reset(&buf)

	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("zlib compression failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("zlib compression failed: %w", err)
	}

	return buf.Bytes(), nil
}

// Decompress inflates a zlib stream, reusing the inflater from the previous call.
func (c *ZlibCodec) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	c.src.Reset(data)
	if c.reader == nil {
		r, err := zlib.NewReader(&c.src)
		if err != nil {
			return nil, fmt.Errorf("zlib decompression failed: %w", err)
		}
		c.reader = r
	} else if err := c.reader.(zlib.Resetter).Reset(&c.src, nil); err != nil {
		return nil, fmt.Errorf("zlib decompression failed: %w", err)
	}

	c.out.Reset()
	n, err := c.out.ReadFrom(io.LimitReader(c.reader, MaxBlockSize+1))
	if err != nil {
		return nil, fmt.Errorf("zlib decompression failed: %w", err)
	}
	if n > MaxBlockSize {
		c.out = bytes.Buffer{}
		return nil, fmt.Errorf("zlib decompression failed: %w", ErrBlockTooLarge)
	}

	out := make([]byte, c.out.Len())
	copy(out, c.out.Bytes())

	return out, nil
}
