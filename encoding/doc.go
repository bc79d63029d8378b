// Package encoding provides the primitive readers used to decode the binary
// contact-matrix format.
//
// Two readers cover the two access patterns of the format:
//
//   - Cursor walks an in-memory buffer (a decompressed block, a block index, a
//     normalization vector) with sticky error handling.
//   - StreamReader walks the header and footer directly from a random access
//     source, where section lengths are only known while parsing.
//
// All multi-byte values are little-endian. Strings are NUL-terminated.
package encoding
