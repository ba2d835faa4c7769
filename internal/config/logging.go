package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%w: unknown log-level %q", ErrInvalidConfig, level)
	}
}

// NewLogger builds the process logger: colored console output by default, JSON lines for "json".
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	parsed, _ := ParseLevel(level)

	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parsed}))
	}

	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      parsed,
		TimeFormat: time.DateTime,
	}))
}
