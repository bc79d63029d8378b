package dataset

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with reader-specific helpers.
// This keeps field names consistent across diagnostics.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler.
// If handler is nil, uses a text handler to stderr at info level.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}

	return &Logger{Logger: slog.New(handler)}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(1000)}))
}

// WithPath tags every record with the file path.
func (l *Logger) WithPath(path string) *Logger {
	return &Logger{Logger: l.Logger.With("path", path)}
}

// LogOpen logs the outcome of opening a file.
func (l *Logger) LogOpen(ctx context.Context, version int32, chromosomes, matrices int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "open failed", "error", err)
		return
	}
	l.InfoContext(ctx, "file opened",
		"version", version,
		"chromosomes", chromosomes,
		"matrices", matrices,
	)
}

// LogCorruptIndex logs a matrix whose chromosome indices are out of range.
func (l *Logger) LogCorruptIndex(ctx context.Context, key string, err error) {
	l.WarnContext(ctx, "corrupt chromosome index, matrix skipped",
		"matrix", key,
		"error", err,
	)
}

// LogMissingNormalization logs a normalization vector that is not available.
func (l *Logger) LogMissingNormalization(ctx context.Context, normType string, chrIdx int32, unit string, resolution int32, err error) {
	l.WarnContext(ctx, "normalization vector unavailable",
		"type", normType,
		"chr", chrIdx,
		"unit", unit,
		"resolution", resolution,
		"error", err,
	)
}

// LogBlockError logs a block that failed to decode.
func (l *Logger) LogBlockError(ctx context.Context, region string, number int32, err error) {
	l.ErrorContext(ctx, "block read failed",
		"region", region,
		"block", number,
		"error", err,
	)
}

// LogMaterialization logs the decision of the materialization policy.
func (l *Logger) LogMaterialization(ctx context.Context, region string, materialized bool, estimatedBytes, records int64, reason error) {
	if reason != nil {
		l.WarnContext(ctx, "records kept on disk",
			"region", region,
			"estimated_bytes", estimatedBytes,
			"records", records,
			"reason", reason,
		)

		return
	}
	l.DebugContext(ctx, "records materialized",
		"region", region,
		"materialized", materialized,
		"estimated_bytes", estimatedBytes,
		"records", records,
	)
}
