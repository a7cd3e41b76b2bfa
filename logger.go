package patchpairs

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with patchpairs-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithSlide adds a slide identifier field to the logger.
func (l *Logger) WithSlide(slideID string) *Logger {
	return &Logger{
		Logger: l.Logger.With("slide_id", slideID),
	}
}

// LogShardSkipped logs a shard excluded from dataset construction.
func (l *Logger) LogShardSkipped(ctx context.Context, slideID string, err error) {
	l.WarnContext(ctx, "shard excluded from dataset",
		"slide_id", slideID,
		"error", err,
	)
}

// LogShardWrite logs a persisted shard.
func (l *Logger) LogShardWrite(ctx context.Context, slideID string, similar, dissimilar int) {
	l.DebugContext(ctx, "shard written",
		"slide_id", slideID,
		"similar", similar,
		"dissimilar", dissimilar,
	)
}

// LogMineFailed logs a per-slide mining failure.
func (l *Logger) LogMineFailed(ctx context.Context, slideID string, err error) {
	l.ErrorContext(ctx, "mining failed",
		"slide_id", slideID,
		"error", err,
	)
}

// LogDatasetOpen logs a completed dataset build.
func (l *Logger) LogDatasetOpen(ctx context.Context, slides, skipped int, totalPairs uint64) {
	l.InfoContext(ctx, "dataset opened",
		"slides", slides,
		"skipped", skipped,
		"total_pairs", totalPairs,
	)
}
