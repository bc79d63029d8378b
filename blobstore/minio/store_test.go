package minio

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/hic/blobstore"
)

// TestStore_Integration requires a running MinIO instance at HIC_MINIO_ENDPOINT.
func TestStore_Integration(t *testing.T) {
	endpoint := os.Getenv("HIC_MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("HIC_MINIO_ENDPOINT not set")
	}

	bucket := "hic-test"
	store, err := New(bucket, Config{
		Endpoint:  endpoint,
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Prefix:    "it/",
	})
	require.NoError(t, err)

	ctx := context.Background()
	if _, err := store.client.ListBuckets(ctx); err != nil {
		t.Skipf("MinIO not available: %v", err)
	}
	exists, err := store.client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, store.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	data := []byte("hello hic contact map")
	_, err = store.client.PutObject(ctx, bucket, store.key("a.hic"), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{})
	require.NoError(t, err)

	blob, err := store.Open(ctx, "a.hic")
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), blob.Size())

	buf := make([]byte, 7)
	n, err := blob.ReadAt(buf, 6)
	require.NoError(t, err)
	require.Equal(t, "hic con", string(buf[:n]))

	n, err = blob.ReadAt(make([]byte, 10), int64(len(data))-3)
	require.ErrorIs(t, err, io.EOF)
	require.Equal(t, 3, n)

	_, err = store.Open(ctx, "missing.hic")
	require.ErrorIs(t, err, blobstore.ErrNotFound)
}
