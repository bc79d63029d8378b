// Package blobstore provides the byte sources a .hic file is read from.
//
// A Store opens named blobs; a Blob is a random access, read-only handle with
// a known size. Every Blob satisfies the stream contract of the I/O pool, so a
// reader can open one handle per channel.
//
// # Built-in Implementations
//
//   - FileStore: local files read with pread
//   - MmapStore: local files mapped read-only into memory
//   - MemoryStore: in-memory blobs, used by tests and for fully buffered files
//   - s3.Store: Amazon S3 with ranged GetObject reads
//   - minio.Store: MinIO and other S3-compatible services
//
// Text sidecars such as the stats page are fetched with ReadText.
package blobstore
