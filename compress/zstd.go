package compress

// ZstdCodec handles Zstandard block payloads. The implementation is selected
// at build time: pure Go by default, or libzstd with the gozstd build tag.
//
// The pure Go decoder is created on first use and kept for the lifetime of the
// codec, so a ZstdCodec belongs to one reader channel.
type ZstdCodec struct {
	state zstdState
}

var _ Codec = (*ZstdCodec)(nil)

// NewZstdCodec creates a Zstandard codec.
func NewZstdCodec() *ZstdCodec {
	return &ZstdCodec{}
}
