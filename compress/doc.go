// Package compress provides the block payload codecs.
//
// Contact-matrix blocks are stored as independently compressed byte ranges.
// Files produced by the reference tooling use zlib; the remaining codecs
// (Zstd, S2, LZ4) are available for derived files and for tests.
//
// Decompressors returned by NewDecompressor may keep internal state between
// calls and are not safe for concurrent use. Give each reader channel its own
// instance.
package compress
