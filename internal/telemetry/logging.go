package telemetry

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds the process-wide JSON logger with the service name and
// environment attached to every record. level accepts debug/info/warn/error;
// anything else falls back to info.
func NewLogger(service, environment, level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: l})
	return slog.New(handler).With(
		"service", service,
		"env", environment,
	)
}
