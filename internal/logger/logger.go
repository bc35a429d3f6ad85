// Package logger builds the process-wide slog.Logger from configuration,
// wrapping the chosen handler in an async buffer so logging never blocks
// the orchestrator's hot paths.
package logger

import (
	"log/slog"
	"os"
	"strings"

	"github.com/kestrel-run/orchestra/internal/config"
)

// New builds a slog.Logger per cfg. The returned Closer must be flushed
// on shutdown to drain buffered records.
func New(cfg config.Logging) (*slog.Logger, Closer) {
	level := parseLevel(cfg.Level)

	var base slog.Handler
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		base = slog.NewTextHandler(os.Stdout, opts)
	} else {
		base = slog.NewJSONHandler(os.Stdout, opts)
	}

	async := NewAsyncHandler(base, cfg.BufferSize, cfg.Workers)
	return slog.New(async), async
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
