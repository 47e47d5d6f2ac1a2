package utils

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger returns the engine logger writing structured records to w. Every
// record carries a service attribute so driftwatch lines stay greppable when
// deployments multiplex stdout across processes. A nil writer means stdout.
func NewLogger(w io.Writer, level string, json bool) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var handler slog.Handler
	if json {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler).With(slog.String("service", "driftwatch"))
}

// ParseLevel maps a configured level name onto a slog level. Unknown names fall
// back to info so a misconfigured deployment still logs.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
