//go:build gozstd

package compress

import (
	"fmt"

	"github.com/valyala/gozstd"
)

type zstdState struct{}

// Compress encodes data as one Zstandard frame at level 3.
func (c *ZstdCodec) Compress(data []byte) ([]byte, error) {
	return gozstd.CompressLevel(nil, data, 3), nil
}

// Decompress decodes one Zstandard frame through libzstd.
func (c *ZstdCodec) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	out, err := gozstd.Decompress(nil, data)
	if err != nil {
		return nil, fmt.Errorf("zstd decompression failed: %w", err)
	}
	if len(out) > MaxBlockSize {
		return nil, fmt.Errorf("zstd decompression failed: %w", ErrBlockTooLarge)
	}

	return out, nil
}
