package observability

import (
	"log/slog"
	"os"
	"strings"
)

// LoggerConfig is the subset of service configuration the logger needs.
type LoggerConfig interface {
	GetLogLevel() string
	GetLogFormat() string
}

// NewLogger builds the service logger from config. Format "text" yields a
// human-readable handler; anything else defaults to JSON.
func NewLogger(cfg LoggerConfig) *slog.Logger {
	level := parseLevel(cfg.GetLogLevel())
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(cfg.GetLogFormat(), "text") {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
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
