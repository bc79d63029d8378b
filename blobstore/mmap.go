package blobstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// MmapStore implements Store by mapping local files read-only.
//
// On platforms without mmap the whole file is read into memory instead.
type MmapStore struct {
	root string
}

// NewMmapStore creates a new MmapStore rooted at the given directory.
func NewMmapStore(root string) *MmapStore {
	return &MmapStore{root: root}
}

// Open maps a file for reading.
func (s *MmapStore) Open(ctx context.Context, name string) (Blob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p := name
	if s.root != "" && !filepath.IsAbs(name) {
		p = filepath.Join(s.root, name)
	}

	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() == 0 {
		return &mappedBlob{}, nil
	}

	data, err := mapFile(f, int(info.Size()))
	if err != nil {
		return nil, err
	}

	return &mappedBlob{data: data, unmap: unmapFile}, nil
}

type mappedBlob struct {
	data  []byte
	unmap func([]byte) error
	once  sync.Once
}

func (b *mappedBlob) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off < 0 || off >= int64(len(b.data)) {
		return 0, io.EOF
	}
	n := copy(p, b.data[off:])
	if n < len(p) {
		return n, io.EOF
	}

	return n, nil
}

func (b *mappedBlob) Close() error {
	var err error
	b.once.Do(func() {
		if b.unmap != nil && b.data != nil {
			err = b.unmap(b.data)
		}
		b.data = nil
	})

	return err
}

func (b *mappedBlob) Size() int64 {
	return int64(len(b.data))
}

func (b *mappedBlob) Bytes() ([]byte, error) {
	return b.data, nil
}
