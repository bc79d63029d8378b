// Package endian provides the byte order engine used by every decoder in this module.
//
// Contact matrix files are little-endian throughout: header, master index, expected
// value tables, normalization vectors and decompressed block bodies. Decoders receive
// an EndianEngine rather than hard-coding binary.LittleEndian so that synthetic test
// fixtures and decoders share exactly one definition of the byte order.
//
// # Thread Safety
//
// The returned EndianEngine instances are immutable and stateless, and safe for
// concurrent use.
package endian

import (
	"encoding/binary"
	"math"
)

// EndianEngine combines ByteOrder and AppendByteOrder interfaces from encoding/binary
// into a single interface.
//
// Decoders use the ByteOrder half; fixture builders use the AppendByteOrder half.
type EndianEngine interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// GetLittleEndianEngine returns the little-endian engine, the byte order of the file format.
func GetLittleEndianEngine() EndianEngine {
	return binary.LittleEndian
}

// GetBigEndianEngine returns the big-endian engine.
//
// It is never used for real files and exists so tests can prove that decoders honour
// the engine they are given.
func GetBigEndianEngine() EndianEngine {
	return binary.BigEndian
}

// Float32 decodes an IEEE-754 single from the first 4 bytes of b.
func Float32(engine EndianEngine, b []byte) float32 {
	return math.Float32frombits(engine.Uint32(b))
}

// Float64 decodes an IEEE-754 double from the first 8 bytes of b.
func Float64(engine EndianEngine, b []byte) float64 {
	return math.Float64frombits(engine.Uint64(b))
}

// AppendFloat32 appends the IEEE-754 encoding of v to b.
func AppendFloat32(engine EndianEngine, b []byte, v float32) []byte {
	return engine.AppendUint32(b, math.Float32bits(v))
}

// AppendFloat64 appends the IEEE-754 encoding of v to b.
func AppendFloat64(engine EndianEngine, b []byte, v float64) []byte {
	return engine.AppendUint64(b, math.Float64bits(v))
}
