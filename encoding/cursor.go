package encoding

import (
	"io"

	"github.com/arloliu/hic/endian"
	"github.com/arloliu/hic/errs"
)

// Cursor decodes little-endian primitives from an in-memory buffer.
//
// Errors are sticky: the first short read records a FormatError carrying the
// absolute file offset, every later call returns a zero value, and Err reports
// the first failure. Decoders check Err once per logical unit instead of after
// every field.
type Cursor struct {
	buf    []byte
	off    int
	base   int64
	engine endian.EndianEngine
	err    error
}

// NewCursor creates a cursor over buf. base is the file offset of buf[0], or -1
// when buf has no file position (decompressed block bodies).
func NewCursor(buf []byte, base int64, engine endian.EndianEngine) *Cursor {
	return &Cursor{buf: buf, base: base, engine: engine}
}

// Err returns the first decoding error, if any.
func (c *Cursor) Err() error { return c.err }

// Pos returns the number of bytes consumed.
func (c *Cursor) Pos() int { return c.off }

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int { return len(c.buf) - c.off }

// Offset returns the absolute file offset of the next byte, or -1 when unknown.
func (c *Cursor) Offset() int64 {
	if c.base < 0 {
		return -1
	}

	return c.base + int64(c.off)
}

func (c *Cursor) take(n int, what string) []byte {
	if c.err != nil {
		return nil
	}
	if n < 0 || c.off+n > len(c.buf) {
		c.err = errs.NewFormatError(c.Offset(), "truncated "+what, io.ErrUnexpectedEOF)
		c.off = len(c.buf)

		return nil
	}
	b := c.buf[c.off : c.off+n]
	c.off += n

	return b
}

// Byte reads one unsigned byte.
func (c *Cursor) Byte() byte {
	b := c.take(1, "byte")
	if b == nil {
		return 0
	}

	return b[0]
}

// Int16 reads a signed 16-bit integer.
func (c *Cursor) Int16() int16 {
	b := c.take(2, "int16")
	if b == nil {
		return 0
	}

	return int16(c.engine.Uint16(b))
}

// Int32 reads a signed 32-bit integer.
func (c *Cursor) Int32() int32 {
	b := c.take(4, "int32")
	if b == nil {
		return 0
	}

	return int32(c.engine.Uint32(b))
}

// Int64 reads a signed 64-bit integer.
func (c *Cursor) Int64() int64 {
	b := c.take(8, "int64")
	if b == nil {
		return 0
	}

	return int64(c.engine.Uint64(b))
}

// Float32 reads an IEEE-754 single.
func (c *Cursor) Float32() float32 {
	b := c.take(4, "float32")
	if b == nil {
		return 0
	}

	return endian.Float32(c.engine, b)
}

// Float64 reads an IEEE-754 double.
func (c *Cursor) Float64() float64 {
	b := c.take(8, "float64")
	if b == nil {
		return 0
	}

	return endian.Float64(c.engine, b)
}

// CString reads a NUL-terminated string and consumes the terminator.
func (c *Cursor) CString() string {
	if c.err != nil {
		return ""
	}
	for i := c.off; i < len(c.buf); i++ {
		if c.buf[i] == 0 {
			s := string(c.buf[c.off:i])
			c.off = i + 1

			return s
		}
	}
	c.err = errs.NewFormatError(c.Offset(), "unterminated string", io.ErrUnexpectedEOF)
	c.off = len(c.buf)

	return ""
}

// Skip advances over n bytes.
func (c *Cursor) Skip(n int) {
	c.take(n, "skip")
}

// Bytes returns the next n bytes without copying.
func (c *Cursor) Bytes(n int) []byte {
	return c.take(n, "bytes")
}

// Fail records err unless an error is already pending. Decoders use it for
// semantic validation so that callers still check a single Err.
func (c *Cursor) Fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

// SizedFloat reads a float32 widened to float64 when long is set, otherwise a float64.
func (c *Cursor) SizedFloat(long bool) float64 {
	if long {
		return float64(c.Float32())
	}

	return c.Float64()
}

// ValueWidth returns the on-disk width of one vector element.
func ValueWidth(long bool) int {
	if long {
		return 4
	}

	return 8
}

// DecodeValues decodes a packed vector of float32 (long) or float64 elements.
// base is the file offset of buf[0] and is only used in error messages.
func DecodeValues(buf []byte, base int64, long bool, engine endian.EndianEngine) ([]float64, error) {
	width := ValueWidth(long)
	if len(buf)%width != 0 {
		return nil, errs.NewFormatError(base, "vector length is not a multiple of the element width", io.ErrUnexpectedEOF)
	}

	c := NewCursor(buf, base, engine)
	values := make([]float64, len(buf)/width)
	for i := range values {
		values[i] = c.SizedFloat(long)
	}

	return values, c.Err()
}
