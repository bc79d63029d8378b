package compress

// NoOpCodec passes data through unchanged. Both directions return a copy so
// callers may recycle the input buffer.
type NoOpCodec struct{}

var _ Codec = NoOpCodec{}

// NewNoOpCodec creates a pass-through codec.
func NewNoOpCodec() NoOpCodec {
	return NoOpCodec{}
}

// Compress returns a copy of data.
func (NoOpCodec) Compress(data []byte) ([]byte, error) {
	return clone(data), nil
}

// Decompress returns a copy of data.
func (NoOpCodec) Decompress(data []byte) ([]byte, error) {
	return clone(data), nil
}

func clone(data []byte) []byte {
	if len(data) == 0 {
		return nil
	}
	out := make([]byte, len(data))
	copy(out, data)

	return out
}
