package config

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/pkg/errors"
)

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, errors.Errorf("unknown log level %q", name)
}

// NewLogger builds the process logger writing to w.
func NewLogger(s LogSettings, w io.Writer) (*slog.Logger, error) {
	level, err := ParseLevel(s.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch s.Format {
	case LogFormatJSON:
		handler = slog.NewJSONHandler(w, opts)
	case LogFormatText, "":
		handler = slog.NewTextHandler(w, opts)
	default:
		return nil, errors.Errorf("unknown log format %q", s.Format)
	}
	return slog.New(handler), nil
}

// LogWithLogger logs the resolved settings
func LogWithLogger(s *Settings, logger *slog.Logger) {
	ctx := context.Background()
	logger.InfoContext(ctx, "Config: project_root", "value", s.ProjectRoot)
	if len(s.Languages) > 0 {
		logger.InfoContext(ctx, "Config: languages", "value", strings.Join(s.Languages, ","))
	}
	logger.InfoContext(ctx, "Config: max_file_size", "value", s.MaxFileSize)
	logger.InfoContext(ctx, "Config: workers", "value", s.Workers)
	logger.InfoContext(ctx, "Config: cache_size", "value", s.CacheSize)
	logger.InfoContext(ctx, "Config: log", "level", s.Log.Level, "format", s.Log.Format)
}
