// Package log configures slog for the relay binaries. Every component logs
// through a module-tagged child logger so API, worker and engine lines are
// distinguishable in shared output.
package log

import (
	"log/slog"
	"os"
)

// Setup installs the process-wide slog default handler.
func Setup(logLevel string) {
	var level slog.Level

	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

// WithModule returns a child of the default logger tagged with the relay
// component name ("engine", "api", "relay-worker", ...).
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
