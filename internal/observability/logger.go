// Package observability builds the process logger.
package observability

import (
	"io"
	"log/slog"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/talgya/windfield/internal/config"
)

// NewLogger returns a slog logger writing to console and, when cfg.File is
// set, to a size-rotated file as well. The returned closer releases the
// file; it is a no-op without one.
func NewLogger(cfg config.LoggingConfig, console io.Writer) (*slog.Logger, io.Closer) {
	out := console
	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		// lumberjack handles rotation and is safe for concurrent writes.
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		out = io.MultiWriter(console, file)
		closer = file
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	var h slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(out, opts)
	} else {
		h = slog.NewTextHandler(out, opts)
	}
	return slog.New(h), closer
}

// ParseLevel maps a level name to a slog level. Unknown names mean info.
func ParseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return l
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
