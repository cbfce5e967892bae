// Package logging builds the process logger and keeps credentials out
// of log output.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Setup builds the slog logger per configuration and installs it as the
// default. format is "json" or "text"; unknown levels fall back to info.
func Setup(level, format string) *slog.Logger {
	return SetupWriter(os.Stderr, level, format)
}

// SetupWriter is Setup with an explicit destination.
func SetupWriter(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       parseLevel(level),
		ReplaceAttr: maskAttr,
	}

	var handler slog.Handler
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// maskAttr redacts attribute values whose key looks credential-like.
func maskAttr(_ []string, a slog.Attr) slog.Attr {
	if IsSensitiveField(a.Key) {
		return slog.String(a.Key, MaskedValue)
	}
	return a
}
