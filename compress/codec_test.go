package compress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/hic/format"
)

func samplePayload() []byte {
	// Repetitive enough for every codec to shrink it.
	return bytes.Repeat([]byte{0x01, 0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00, 0x00, 0x00, 0x20, 0x41}, 256)
}

func TestCreateCodec_RoundTrip(t *testing.T) {
	testCases := []struct {
		name string
		typ  format.CompressionType
	}{
		{name: "none", typ: format.CompressionNone},
		{name: "zlib", typ: format.CompressionZlib},
		{name: "zstd", typ: format.CompressionZstd},
		{name: "s2", typ: format.CompressionS2},
		{name: "lz4", typ: format.CompressionLZ4},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			codec, err := CreateCodec(tc.typ, "test")
			require.NoError(t, err)

			payload := samplePayload()
			compressed, err := codec.Compress(payload)
			require.NoError(t, err)

			restored, err := codec.Decompress(compressed)
			require.NoError(t, err)
			require.Equal(t, payload, restored)
		})
	}
}

func TestCreateCodec_Invalid(t *testing.T) {
	_, err := CreateCodec(format.CompressionType(0xFF), "block")
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid block compression")
}

func TestZlibCodec_Reuse(t *testing.T) {
	codec := NewZlibCodec()

	first := []byte("first payload first payload first payload")
	second := bytes.Repeat([]byte("second"), 100)

	c1, err := codec.Compress(first)
	require.NoError(t, err)
	c2, err := codec.Compress(second)
	require.NoError(t, err)

	for range 3 {
		out, err := codec.Decompress(c1)
		require.NoError(t, err)
		require.Equal(t, first, out)

		out, err = codec.Decompress(c2)
		require.NoError(t, err)
		require.Equal(t, second, out)
	}
}

func TestZlibCodec_OutputDoesNotAlias(t *testing.T) {
	codec := NewZlibCodec()
	c, err := codec.Compress([]byte("abcdefgh"))
	require.NoError(t, err)

	out1, err := codec.Decompress(c)
	require.NoError(t, err)
	out2, err := codec.Decompress(c)
	require.NoError(t, err)

	out1[0] = 'z'
	require.Equal(t, byte('a'), out2[0])
}

func TestZlibCodec_Corrupt(t *testing.T) {
	codec := NewZlibCodec()
	_, err := codec.Decompress([]byte{0x00, 0x01, 0x02, 0x03})
	require.Error(t, err)

	// A failed stream must not poison the next one.
	c, err := codec.Compress([]byte("ok"))
	require.NoError(t, err)
	out, err := codec.Decompress(c)
	require.NoError(t, err)
	require.Equal(t, []byte("ok"), out)
}

func TestNoOp_Copies(t *testing.T) {
	codec := NewNoOpCodec()
	in := []byte{1, 2, 3}
	out, err := codec.Decompress(in)
	require.NoError(t, err)
	in[0] = 9
	require.Equal(t, []byte{1, 2, 3}, out)

	out, err = codec.Decompress(nil)
	require.NoError(t, err)
	require.Nil(t, out)
}

func TestEmptyInput(t *testing.T) {
	for _, typ := range []format.CompressionType{format.CompressionZlib, format.CompressionZstd, format.CompressionS2, format.CompressionLZ4} {
		d, err := NewDecompressor(typ)
		require.NoError(t, err)
		out, err := d.Decompress(nil)
		require.NoError(t, err)
		require.Empty(t, out)
	}
}

func TestDecompress_Corrupt(t *testing.T) {
	for _, typ := range []format.CompressionType{format.CompressionZstd, format.CompressionS2} {
		t.Run(typ.String(), func(t *testing.T) {
			d, err := NewDecompressor(typ)
			require.NoError(t, err)
			_, err = d.Decompress([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff})
			require.Error(t, err)
		})
	}
}

func TestZstdCodec_DecoderReuse(t *testing.T) {
	codec := NewZstdCodec()
	payloads := [][]byte{samplePayload(), []byte("short"), bytes.Repeat([]byte{7}, 4096)}

	for range 2 {
		for _, p := range payloads {
			c, err := codec.Compress(p)
			require.NoError(t, err)
			out, err := codec.Decompress(c)
			require.NoError(t, err)
			require.Equal(t, p, out)
		}
	}
}

func TestS2Codec_TooLarge(t *testing.T) {
	// Preamble varint declaring a decoded length of 1<<30.
	_, err := NewS2Codec().Decompress([]byte{0x80, 0x80, 0x80, 0x80, 0x04, 0x00})
	require.ErrorIs(t, err, ErrBlockTooLarge)
}

func TestZlibCodec_TooLarge(t *testing.T) {
	codec := NewZlibCodec()
	c, err := codec.Compress(make([]byte, MaxBlockSize+1))
	require.NoError(t, err)

	_, err = codec.Decompress(c)
	require.ErrorIs(t, err, ErrBlockTooLarge)

	// The inflater stays usable after an oversized payload.
	small, err := codec.Compress([]byte("ok"))
	require.NoError(t, err)
	out, err := codec.Decompress(small)
	require.NoError(t, err)
	require.Equal(t, []byte("ok"), out)
}
