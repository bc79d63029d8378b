package blobstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o600))
}

func TestStores_ReadAt(t *testing.T) {
	dir := t.TempDir()
	data := []byte("hello world, this is a contact map")
	writeFile(t, dir, "a.hic", data)
	writeFile(t, dir, "empty.hic", nil)

	mem := NewMemoryStore()
	mem.Put("a.hic", data)
	mem.Put("empty.hic", nil)

	stores := map[string]Store{
		"file":   NewFileStore(dir),
		"mmap":   NewMmapStore(dir),
		"memory": mem,
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			blob, err := store.Open(ctx, "a.hic")
			require.NoError(t, err)
			defer blob.Close()

			require.Equal(t, int64(len(data)), blob.Size())

			buf := make([]byte, 5)
			n, err := blob.ReadAt(buf, 6)
			require.NoError(t, err)
			require.Equal(t, 5, n)
			require.Equal(t, "world", string(buf))

			n, err = blob.ReadAt(make([]byte, 10), int64(len(data))-3)
			require.ErrorIs(t, err, io.EOF)
			require.Equal(t, 3, n)

			_, err = blob.ReadAt(make([]byte, 1), int64(len(data)))
			require.ErrorIs(t, err, io.EOF)

			all, err := ReadAll(ctx, store, "a.hic")
			require.NoError(t, err)
			require.Equal(t, data, all)

			empty, err := store.Open(ctx, "empty.hic")
			require.NoError(t, err)
			require.Zero(t, empty.Size())
			require.NoError(t, empty.Close())

			_, err = store.Open(ctx, "missing.hic")
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestMmapStore_CloseTwice(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.hic", []byte("abc"))

	blob, err := NewMmapStore(dir).Open(context.Background(), "a.hic")
	require.NoError(t, err)

	m, ok := blob.(Mappable)
	require.True(t, ok)
	b, err := m.Bytes()
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), b)

	require.NoError(t, blob.Close())
	require.NoError(t, blob.Close())
}

func TestFileStore_AbsolutePath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.hic", []byte("abc"))

	blob, err := NewFileStore("").Open(context.Background(), filepath.Join(dir, "a.hic"))
	require.NoError(t, err)
	defer blob.Close()
	require.Equal(t, int64(3), blob.Size())

	_, err = NewFileStore("").Open(context.Background(), dir)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestReadText(t *testing.T) {
	store := NewMemoryStore()

	var lines []string
	for i := range 1500 {
		lines = append(lines, strings.Repeat("x", i%7))
	}
	store.Put("big_stats.html", []byte(strings.Join(lines, "\n")))
	store.Put("small_stats.html", []byte("<b>reads</b>\r\nfoo"))

	ctx := context.Background()
	got := ReadText(ctx, store, "big_stats.html", 0)
	require.Equal(t, DefaultTextLines, strings.Count(got, "\n"))
	require.Equal(t, strings.Join(lines[:DefaultTextLines], "\n")+"\n", got)

	require.Equal(t, "<b>reads</b>\nfoo\n", ReadText(ctx, store, "small_stats.html", 10))
	require.Equal(t, "<b>reads</b>\n", ReadText(ctx, store, "small_stats.html", 1))
	require.Empty(t, ReadText(ctx, store, "missing_stats.html", 10))
}

func TestStatsName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"sample.hic", "sample_stats.html"},
		{"/data/maps/inter_30.hic", "/data/maps/inter_30_stats.html"},
		{"maps.v2/sample", "maps.v2/sample_stats.html"},
		{"noext", "noext_stats.html"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			require.Equal(t, tt.want, StatsName(tt.in))
		})
	}
}
