package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New builds a slog logger, sets it as the default and returns it.
// format is "text" (default, with source locations) or "json". Empty
// arguments fall back to the LOG_FORMAT and LOG_LEVEL environment variables.
func New(format, level string) *slog.Logger {
	return NewWithWriter(os.Stderr, format, level)
}

// NewWithWriter is New with an explicit output, used by tests and the CLI.
func NewWithWriter(w io.Writer, format, level string) *slog.Logger {
	if format == "" {
		format = os.Getenv("LOG_FORMAT")
	}
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		opts.AddSource = true
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps a level name to a slog.Level. Unknown names mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
