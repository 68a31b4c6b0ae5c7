package config

import (
	"io"
	"log/slog"
	"os"
	"sort"
)

// NewLogger builds the slog logger described by l.
func (l LoggingConfig) NewLogger() *slog.Logger {
	var out io.Writer = os.Stdout
	if l.Output == "stderr" {
		out = os.Stderr
	}
	return l.NewLoggerTo(out)
}

// NewLoggerTo is NewLogger with an explicit writer.
func (l LoggingConfig) NewLoggerTo(out io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLogLevel(l.Level)}

	var handler slog.Handler
	switch l.Format {
	case "text":
		handler = slog.NewTextHandler(out, opts)
	default:
		handler = slog.NewJSONHandler(out, opts)
	}

	if len(l.Attributes) > 0 {
		handler = handler.WithAttrs(convertAttributes(l.Attributes))
	}
	return slog.New(handler)
}

// ParseLogLevel converts string log level to slog.Level.
func ParseLogLevel(level string) slog.Level {
	switch level {
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

// convertAttributes converts map[string]string to []slog.Attr in key order.
func convertAttributes(attrs map[string]string) []slog.Attr {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	result := make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		result = append(result, slog.String(k, attrs[k]))
	}
	return result
}
