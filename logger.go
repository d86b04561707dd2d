package pagecache

import (
	"context"
	"log/slog"
	"os"

	"github.com/hupe1980/pagecache/page"
)

// Logger wraps slog.Logger with pagecache-specific context.
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
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithShard adds a shard index field to the logger.
func (l *Logger) WithShard(shard int) *Logger {
	return &Logger{
		Logger: l.Logger.With("shard", shard),
	}
}

// WithPageID adds a page ID field to the logger.
func (l *Logger) WithPageID(id page.ID) *Logger {
	return &Logger{
		Logger: l.Logger.With("page_id", int64(id)),
	}
}

// LogNewPage logs a new-page allocation.
func (l *Logger) LogNewPage(ctx context.Context, id page.ID, shard int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "allocation failed",
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "page allocated",
			"page_id", int64(id),
			"shard", shard,
		)
	}
}

// LogFetch logs a fetch operation.
func (l *Logger) LogFetch(ctx context.Context, id page.ID, err error) {
	if err != nil {
		l.ErrorContext(ctx, "fetch failed",
			"page_id", int64(id),
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "fetch completed",
			"page_id", int64(id),
		)
	}
}

// LogFlushAll logs a pool-wide flush.
func (l *Logger) LogFlushAll(ctx context.Context, shards int) {
	l.InfoContext(ctx, "flushed all shards",
		"shards", shards,
	)
}

// LogCheckpoint logs a checkpoint operation.
func (l *Logger) LogCheckpoint(ctx context.Context, lsn uint64, archived int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "checkpoint failed",
			"lsn", lsn,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "checkpoint completed",
			"lsn", lsn,
			"archived_snapshots", archived,
		)
	}
}

// LogRecovery logs a WAL recovery operation.
func (l *Logger) LogRecovery(ctx context.Context, entriesReplayed int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "WAL recovery failed",
			"entries_replayed", entriesReplayed,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "WAL recovery completed",
			"entries_replayed", entriesReplayed,
		)
	}
}
