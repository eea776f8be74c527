package main

import (
	"io"
	"log/slog"
	"strings"
)

// levelFromString converts a level name to a slog.Level. Unknown names fall
// back to warn, the CLI default.
func levelFromString(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	case "quiet", "off", "none":
		return slog.Level(100)
	default:
		return slog.LevelWarn
	}
}

func newLogger(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: levelFromString(level)}))
}
