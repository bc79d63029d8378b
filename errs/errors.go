// Package errs defines the error taxonomy shared by every package of the reader.
//
// Errors fall into four categories, each with a sentinel usable with errors.Is:
//
//   - ErrFormat: the bytes do not describe a valid file (bad magic, unknown block
//     record type, malformed section). Fatal for the current open/read operation.
//   - ErrMissingData: a requested artefact is absent (normalization vector, expected
//     values, chromosome, matrix). Callers degrade, for example to an unnormalized view.
//   - ErrCorruptIndex: a chromosome index read from a matrix body falls outside the
//     chromosome table. Observed as transient corruption; callers get "no matrix".
//   - I/O errors are not wrapped in a category; they are propagated as returned by the
//     underlying source, and truncated reads surface as io.ErrUnexpectedEOF.
package errs

import (
	"errors"
	"fmt"
)

// Category sentinels.
var (
	ErrFormat       = errors.New("invalid contact matrix format")
	ErrMissingData  = errors.New("data not available")
	ErrCorruptIndex = errors.New("corrupt chromosome index")
)

// Format errors.
var (
	ErrInvalidMagic       = errors.New("magic string is not HIC")
	ErrUnknownBlockType   = errors.New("unknown block record type")
	ErrInvalidBlockHeader = errors.New("invalid block header")
	ErrInvalidZoomHeader  = errors.New("invalid matrix zoom header")
	ErrInvalidIndexEntry  = errors.New("invalid block index entry")
	ErrNegativeCount      = errors.New("negative element count")
)

// Missing data errors.
var (
	ErrNormVectorNotFound     = errors.New("normalization vector not found")
	ErrNormVectorAllNaN       = errors.New("normalization vector has no finite values")
	ErrExpectedValuesNotFound = errors.New("expected values not found")
	ErrChromosomeOutOfRange   = errors.New("chromosome index out of range")
	ErrMatrixNotFound         = errors.New("matrix not found")
	ErrZoomNotFound           = errors.New("zoom level not found")
)

// Usage errors.
var (
	ErrClosed              = errors.New("reader is closed")
	ErrInvalidRange        = errors.New("invalid element range")
	ErrBlockNumberTooLarge = errors.New("block number exceeds grid")
	ErrInvalidChannelCount = errors.New("channel count must be positive")
	ErrUnsupportedSource   = errors.New("unsupported source uri")
)

// FormatError describes bytes that cannot be interpreted as the file format.
//
// It matches ErrFormat and, through Unwrap, the more specific cause.
type FormatError struct {
	// Offset is the absolute file offset where the problem was detected, or -1 if unknown.
	Offset int64
	// Reason is a short human readable description.
	Reason string
	cause  error
}

// NewFormatError creates a FormatError wrapping cause.
func NewFormatError(offset int64, reason string, cause error) *FormatError {
	return &FormatError{Offset: offset, Reason: reason, cause: cause}
}

func (e *FormatError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("format error at offset %d: %s: %v", e.Offset, e.Reason, e.cause)
	}

	return fmt.Sprintf("format error: %s: %v", e.Reason, e.cause)
}

func (e *FormatError) Unwrap() error { return e.cause }

// Is reports whether target is the ErrFormat category.
func (e *FormatError) Is(target error) bool { return target == ErrFormat }

// MissingDataError reports an absent artefact, identified by kind and lookup key.
type MissingDataError struct {
	Kind  string
	Key   string
	cause error
}

// NewMissingDataError creates a MissingDataError wrapping cause.
func NewMissingDataError(kind, key string, cause error) *MissingDataError {
	return &MissingDataError{Kind: kind, Key: key, cause: cause}
}

func (e *MissingDataError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Kind, e.Key, e.cause)
}

func (e *MissingDataError) Unwrap() error { return e.cause }

// Is reports whether target is the ErrMissingData category.
func (e *MissingDataError) Is(target error) bool { return target == ErrMissingData }

// CorruptIndexError reports chromosome indices outside the chromosome table.
type CorruptIndexError struct {
	Key             string
	Chr1            int32
	Chr2            int32
	ChromosomeCount int
}

func (e *CorruptIndexError) Error() string {
	return fmt.Sprintf("matrix %q: chromosome indices (%d, %d) outside [0, %d)",
		e.Key, e.Chr1, e.Chr2, e.ChromosomeCount)
}

// Is reports whether target is the ErrCorruptIndex category.
func (e *CorruptIndexError) Is(target error) bool { return target == ErrCorruptIndex }
