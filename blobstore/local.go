package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileStore implements Store using the local file system.
//
// Names are joined to root; an empty root takes names as given.
type FileStore struct {
	root string
}

// NewFileStore creates a new FileStore rooted at the given directory.
func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

func (s *FileStore) path(name string) string {
	if s.root == "" || filepath.IsAbs(name) {
		return name
	}

	return filepath.Join(s.root, name)
}

// Open opens a file for reading.
func (s *FileStore) Open(ctx context.Context, name string) (Blob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.path(name))
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("%s is a directory: %w", name, ErrNotFound)
	}

	return &fileBlob{f: f, size: info.Size()}, nil
}

type fileBlob struct {
	f    *os.File
	size int64
}

func (b *fileBlob) ReadAt(p []byte, off int64) (int, error) {
	n, err := b.f.ReadAt(p, off)
	if errors.Is(err, io.EOF) && n == len(p) {
		err = nil
	}

	return n, err
}

func (b *fileBlob) Close() error {
	return b.f.Close()
}

func (b *fileBlob) Size() int64 {
	return b.size
}
