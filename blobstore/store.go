package blobstore

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
)

// ErrNotFound is returned when a blob does not exist.
//
// The default maps to os.ErrNotExist so errors.Is works for local files too.
var ErrNotFound = os.ErrNotExist

// DefaultTextLines bounds the number of lines ReadText returns.
const DefaultTextLines = 1000

// Store opens immutable blobs for reading.
type Store interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
}

// Blob is a read-only handle to a data blob.
type Blob interface {
	io.ReaderAt
	io.Closer
	// Size returns the size of the blob in bytes.
	Size() int64
}

// Mappable is an optional interface for Blobs that expose their bytes directly.
type Mappable interface {
	// Bytes returns the underlying byte slice, valid until the Blob is closed.
	Bytes() ([]byte, error)
}

// Downloader is an optional interface for Stores with a faster whole-object fetch.
type Downloader interface {
	Download(ctx context.Context, name string) ([]byte, error)
}

// ReadAll returns the whole content of a blob.
//
// Mappable blobs are copied so the result outlives the handle.
func ReadAll(ctx context.Context, store Store, name string) ([]byte, error) {
	if d, ok := store.(Downloader); ok {
		return d.Download(ctx, name)
	}

	blob, err := store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer blob.Close()

	if m, ok := blob.(Mappable); ok {
		data, err := m.Bytes()
		if err != nil {
			return nil, err
		}

		return append([]byte(nil), data...), nil
	}

	buf := make([]byte, blob.Size())
	if _, err := blob.ReadAt(buf, 0); err != nil && err != io.EOF {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	return buf, nil
}

// ReadText returns at most maxLines lines of a text blob, each terminated by a
// newline. Any failure yields an empty string.
func ReadText(ctx context.Context, store Store, name string, maxLines int) string {
	if maxLines <= 0 {
		maxLines = DefaultTextLines
	}

	blob, err := store.Open(ctx, name)
	if err != nil {
		return ""
	}
	defer blob.Close()

	var sb strings.Builder
	scanner := bufio.NewScanner(io.NewSectionReader(blob, 0, blob.Size()))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for count := 0; count < maxLines && scanner.Scan(); count++ {
		sb.WriteString(scanner.Text())
		sb.WriteByte('\n')
	}
	if scanner.Err() != nil {
		return ""
	}

	return sb.String()
}

// StatsName returns the name of the stats sidecar next to a .hic file:
// the name without its extension plus "_stats.html".
func StatsName(name string) string {
	ext := path.Ext(name)
	if ext == "" {
		return name + "_stats.html"
	}

	return strings.TrimSuffix(name, ext) + "_stats.html"
}
