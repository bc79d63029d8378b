package compress

import (
	"errors"
	"fmt"

	"github.com/arloliu/hic/format"
)

// MaxBlockSize caps the decoded size of one block payload.
const MaxBlockSize = 128 << 20

// ErrBlockTooLarge is returned when a payload would decode past MaxBlockSize.
var ErrBlockTooLarge = errors.New("decoded block exceeds maximum size")

// Compressor compresses a complete block payload.
//
// The returned slice is newly allocated and owned by the caller; the input is not modified.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
}

// Decompressor restores a payload produced by the matching Compressor.
//
// The returned slice is owned by the caller and never aliases the input, so the
// input buffer may be recycled as soon as Decompress returns.
type Decompressor interface {
	Decompress(data []byte) ([]byte, error)
}

// Codec combines both compression and decompression capabilities.
type Codec interface {
	Compressor
	Decompressor
}

// CreateCodec creates a new Codec for the specified compression type.
//
// Every call returns an independent instance; stateful codecs (zlib) are not
// shared between callers.
//
// Parameters:
//   - compressionType: codec selector
//   - target: description of target usage (for error messages)
func CreateCodec(compressionType format.CompressionType, target string) (Codec, error) {
	switch compressionType {
	case format.CompressionNone:
		return NewNoOpCodec(), nil
	case format.CompressionZlib:
		return NewZlibCodec(), nil
	case format.CompressionZstd:
		return NewZstdCodec(), nil
	case format.CompressionS2:
		return NewS2Codec(), nil
	case format.CompressionLZ4:
		return NewLZ4Codec(), nil
	default:
		return nil, fmt.Errorf("invalid %s compression: %s", target, compressionType)
	}
}

// NewDecompressor returns a decompressor owned exclusively by the caller.
func NewDecompressor(compressionType format.CompressionType) (Decompressor, error) {
	return CreateCodec(compressionType, "block")
}
