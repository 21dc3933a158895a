package config

import (
	"io"
	"log/slog"
	"os"
)

// InitLogger configures the default slog logger from cfg, writing to stdout.
func InitLogger(cfg LogConfig) {
	slog.SetDefault(NewLogger(cfg, os.Stdout))
}

// NewLogger builds a logger for cfg that writes to w.
func NewLogger(cfg LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}
