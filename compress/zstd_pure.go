//go:build !gozstd

package compress

import (
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

var (
	zstdEncoderOnce sync.Once
	zstdEncoder     *zstd.Encoder
	errZstdEncoder  error
)

// sharedEncoder returns the process-wide encoder. EncodeAll may be called
// concurrently on one Encoder.
func sharedEncoder() (*zstd.Encoder, error) {
	zstdEncoderOnce.Do(func() {
		zstdEncoder, errZstdEncoder = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.SpeedDefault),
			zstd.WithEncoderConcurrency(1),
		)
	})

	return zstdEncoder, errZstdEncoder
}

type zstdState struct {
	decoder *zstd.Decoder
}

// Compress encodes data as one Zstandard frame.
func (c *ZstdCodec) Compress(data []byte) ([]byte, error) {
	enc, err := sharedEncoder()
	if err != nil {
		return nil, fmt.Errorf("zstd compression failed: %w", err)
	}

	return enc.EncodeAll(data, nil), nil
}

// Decompress decodes one Zstandard frame with the codec's own decoder.
func (c *ZstdCodec) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	if c.state.decoder == nil {
		dec, err := zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderMaxMemory(MaxBlockSize),
		)
		if err != nil {
			return nil, fmt.Errorf("zstd decompression failed: %w", err)
		}
		c.state.decoder = dec
	}

	out, err := c.state.decoder.DecodeAll(data, nil)
	if err != nil {
		if errors.Is(err, zstd.ErrDecoderSizeExceeded) {
			err = ErrBlockTooLarge
		}

		return nil, fmt.Errorf("zstd decompression failed: %w", err)
	}

	return out, nil
}
