package encoding

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/arloliu/hic/endian"
)

const streamBufferSize = 64 * 1024

// StreamReader decodes little-endian primitives sequentially from a random
// access source, tracking the absolute file position.
//
// It is used for the header and footer, whose lengths are only known after
// parsing. Reads that hit the end of the source return errors that match
// io.EOF (no bytes available) or io.ErrUnexpectedEOF (partial value).
type StreamReader struct {
	src     io.ReaderAt
	size    int64
	pos     int64
	br      *bufio.Reader
	engine  endian.EndianEngine
	scratch [8]byte
}

// NewStreamReader creates a reader over the first size bytes of src, positioned at pos.
func NewStreamReader(src io.ReaderAt, size int64, pos int64, engine endian.EndianEngine) *StreamReader {
	r := &StreamReader{src: src, size: size, engine: engine}
	r.Seek(pos)

	return r
}

// Seek repositions the reader at the absolute offset pos.
func (r *StreamReader) Seek(pos int64) {
	if pos > r.size {
		pos = r.size
	}
	r.pos = pos
	section := io.NewSectionReader(r.src, pos, r.size-pos)
	if r.br == nil {
		r.br = bufio.NewReaderSize(section, streamBufferSize)
	} else {
		r.br.Reset(section)
	}
}

// Pos returns the absolute offset of the next byte.
func (r *StreamReader) Pos() int64 { return r.pos }

func (r *StreamReader) fill(n int, what string) ([]byte, error) {
	b := r.scratch[:n]
	read, err := io.ReadFull(r.br, b)
	r.pos += int64(read)
	if err != nil {
		return nil, fmt.Errorf("read %s at offset %d: %w", what, r.pos-int64(read), err)
	}

	return b, nil
}

// Byte reads one unsigned byte.
func (r *StreamReader) Byte() (byte, error) {
	b, err := r.fill(1, "byte")
	if err != nil {
		return 0, err
	}

	return b[0], nil
}

// Int32 reads a signed 32-bit integer.
func (r *StreamReader) Int32() (int32, error) {
	b, err := r.fill(4, "int32")
	if err != nil {
		return 0, err
	}

	return int32(r.engine.Uint32(b)), nil
}

// Int64 reads a signed 64-bit integer.
func (r *StreamReader) Int64() (int64, error) {
	b, err := r.fill(8, "int64")
	if err != nil {
		return 0, err
	}

	return int64(r.engine.Uint64(b)), nil
}

// Float32 reads an IEEE-754 single.
func (r *StreamReader) Float32() (float32, error) {
	b, err := r.fill(4, "float32")
	if err != nil {
		return 0, err
	}

	return endian.Float32(r.engine, b), nil
}

// Float64 reads an IEEE-754 double.
func (r *StreamReader) Float64() (float64, error) {
	b, err := r.fill(8, "float64")
	if err != nil {
		return 0, err
	}

	return endian.Float64(r.engine, b), nil
}

// SizedInt reads a count or length stored as int64 when long is set, else int32.
func (r *StreamReader) SizedInt(long bool) (int64, error) {
	if long {
		return r.Int64()
	}
	v, err := r.Int32()

	return int64(v), err
}

// SizedFloat reads a value stored as float32 when long is set, else float64.
func (r *StreamReader) SizedFloat(long bool) (float64, error) {
	if long {
		v, err := r.Float32()
		return float64(v), err
	}

	return r.Float64()
}

// CString reads a NUL-terminated string and consumes the terminator.
func (r *StreamReader) CString() (string, error) {
	start := r.pos
	line, err := r.br.ReadSlice(0)
	if err == nil {
		r.pos += int64(len(line))
		return string(line[:len(line)-1]), nil
	}

	// Long strings overflow the buffer; fall back to accumulating.
	var buf bytes.Buffer
	for err == bufio.ErrBufferFull {
		buf.Write(line)
		r.pos += int64(len(line))
		line, err = r.br.ReadSlice(0)
	}
	r.pos += int64(len(line))
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}

		return "", fmt.Errorf("read string at offset %d: %w", start, err)
	}
	buf.Write(line[:len(line)-1])

	return buf.String(), nil
}

// Skip advances over n bytes.
func (r *StreamReader) Skip(n int64) error {
	if n < 0 {
		return fmt.Errorf("skip %d bytes at offset %d: %w", n, r.pos, io.ErrUnexpectedEOF)
	}
	if n > int64(r.br.Buffered()) {
		// Cheaper to reposition than to drain through the buffer.
		target := r.pos + n
		if target > r.size {
			return fmt.Errorf("skip %d bytes at offset %d: %w", n, r.pos, io.ErrUnexpectedEOF)
		}
		r.Seek(target)

		return nil
	}
	discarded, err := r.br.Discard(int(n))
	r.pos += int64(discarded)

	return err
}

// ReadFull reads exactly len(p) bytes.
func (r *StreamReader) ReadFull(p []byte) error {
	n, err := io.ReadFull(r.br, p)
	r.pos += int64(n)
	if err != nil {
		return fmt.Errorf("read %d bytes at offset %d: %w", len(p), r.pos-int64(n), err)
	}

	return nil
}
