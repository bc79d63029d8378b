package dataset

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/arloliu/hic/blobstore"
	"github.com/arloliu/hic/blobstore/minio"
	"github.com/arloliu/hic/blobstore/s3"
	"github.com/arloliu/hic/errs"
)

// Environment variables read for minio:// sources.
const (
	EnvMinioAccessKey = "MINIO_ACCESS_KEY"
	EnvMinioSecretKey = "MINIO_SECRET_KEY"
	EnvMinioSecure    = "MINIO_SECURE"
)

// ResolveSource maps a path or URI to a store and the object name inside it.
//
// Supported forms:
//
//	/data/sample.hic              local file
//	file:///data/sample.hic       local file
//	s3://bucket/key.hic           AWS S3, credentials from the default chain
//	minio://host:9000/bucket/key  MinIO, credentials from MINIO_* variables
func ResolveSource(ctx context.Context, location string, mmap bool) (blobstore.Store, string, error) {
	if !strings.Contains(location, "://") {
		return localStore(mmap), location, nil
	}

	u, err := url.Parse(location)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %q: %w", errs.ErrUnsupportedSource, location, err)
	}

	switch u.Scheme {
	case "file":
		return localStore(mmap), u.Path, nil
	case "s3":
		if u.Host == "" {
			return nil, "", fmt.Errorf("%w: %q has no bucket", errs.ErrUnsupportedSource, location)
		}
		store, err := s3.New(ctx, u.Host)
		if err != nil {
			return nil, "", fmt.Errorf("create s3 store: %w", err)
		}

		return store, strings.TrimPrefix(u.Path, "/"), nil
	case "minio":
		bucket, key, ok := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
		if u.Host == "" || !ok || bucket == "" || key == "" {
			return nil, "", fmt.Errorf("%w: %q must be minio://host/bucket/key", errs.ErrUnsupportedSource, location)
		}
		secure, _ := strconv.ParseBool(os.Getenv(EnvMinioSecure))
		store, err := minio.New(bucket, minio.Config{
			Endpoint:  u.Host,
			AccessKey: os.Getenv(EnvMinioAccessKey),
			SecretKey: os.Getenv(EnvMinioSecretKey),
			Secure:    secure,
		})
		if err != nil {
			return nil, "", fmt.Errorf("create minio store: %w", err)
		}

		return store, key, nil
	default:
		return nil, "", fmt.Errorf("%w: scheme %q", errs.ErrUnsupportedSource, u.Scheme)
	}
}

func localStore(mmap bool) blobstore.Store {
	if mmap {
		return blobstore.NewMmapStore("")
	}

	return blobstore.NewFileStore("")
}
