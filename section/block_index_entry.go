package section

import (
	"fmt"

	"github.com/arloliu/hic/endian"
	"github.com/arloliu/hic/errs"
)

// BlockIndexRecordSize is the on-disk size of one block index record.
const BlockIndexRecordSize = 16

// BlockIndexEntry locates one compressed block.
//
// On-disk layout (16 bytes, little-endian):
//
//	Offset 0,  Size 4: block number (int32)
//	Offset 4,  Size 8: file position (int64)
//	Offset 12, Size 4: compressed size (int32)
type BlockIndexEntry struct {
	Number   int32
	Position int64
	Size     int32
}

// Bytes returns the 16-byte encoding of the entry.
func (e BlockIndexEntry) Bytes(engine endian.EndianEngine) []byte {
	var b [BlockIndexRecordSize]byte
	engine.PutUint32(b[0:4], uint32(e.Number))    //nolint: gosec
	engine.PutUint64(b[4:12], uint64(e.Position)) //nolint: gosec
	engine.PutUint32(b[12:16], uint32(e.Size))    //nolint: gosec

	return b[:]
}

// ParseBlockIndexEntry decodes one 16-byte record.
func ParseBlockIndexEntry(data []byte, engine endian.EndianEngine) (BlockIndexEntry, error) {
	if len(data) < BlockIndexRecordSize {
		return BlockIndexEntry{}, fmt.Errorf("%w: record is %d bytes, need %d",
			errs.ErrInvalidIndexEntry, len(data), BlockIndexRecordSize)
	}

	return BlockIndexEntry{
		Number:   int32(engine.Uint32(data[0:4])),    //nolint: gosec
		Position: int64(engine.Uint64(data[4:12])),  //nolint: gosec
		Size:     int32(engine.Uint32(data[12:16])), //nolint: gosec
	}, nil
}

// ParseBlockIndex decodes a contiguous run of records.
func ParseBlockIndex(data []byte, engine endian.EndianEngine) ([]BlockIndexEntry, error) {
	if len(data)%BlockIndexRecordSize != 0 {
		return nil, fmt.Errorf("%w: index length %d is not a multiple of %d",
			errs.ErrInvalidIndexEntry, len(data), BlockIndexRecordSize)
	}

	entries := make([]BlockIndexEntry, len(data)/BlockIndexRecordSize)
	for i := range entries {
		off := i * BlockIndexRecordSize
		entries[i], _ = ParseBlockIndexEntry(data[off:off+BlockIndexRecordSize], engine)
	}

	return entries, nil
}
