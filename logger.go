package rescodec

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with rescodec-specific context.
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

// LogCompress logs a compress operation.
func (l *Logger) LogCompress(ctx context.Context, count int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "compress failed",
			"count", count,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "compress completed",
			"count", count,
		)
	}
}

// LogDecompress logs a decompress operation.
func (l *Logger) LogDecompress(ctx context.Context, count int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "decompress failed",
			"count", count,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "decompress completed",
			"count", count,
		)
	}
}

// LogSave logs a parameter save operation.
func (l *Logger) LogSave(ctx context.Context, dir string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "parameter save failed",
			"dir", dir,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "parameters saved",
			"dir", dir,
		)
	}
}

// LogLoad logs a parameter load operation.
func (l *Logger) LogLoad(ctx context.Context, dir string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "parameter load failed",
			"dir", dir,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "parameters loaded",
			"dir", dir,
		)
	}
}
