// Package s3 provides an Amazon S3 implementation of blobstore.Store.
//
// Blobs are read with ranged GetObject requests, so a reader only fetches the
// header, the master index and the blocks it decodes.
//
//	store, err := s3.New(ctx, "my-bucket", s3.WithPrefix("maps/"))
//	blob, err := store.Open(ctx, "sample.hic")
package s3
