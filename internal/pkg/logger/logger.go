// Package logger provides structured logging for the service. Log lines
// carry no payload contents beyond what the dashboard already exposes.
package logger

import (
	"log/slog"
	"os"
	"strings"
)

// New returns a slog.Logger configured from the given level and format.
// Format "json" emits JSON lines for aggregation; anything else is text.
func New(level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
