// Package observability provides logging, metrics, and tracing plumbing
// shared across the worker.
package observability

import (
	"log/slog"
	"os"
	"strings"

	"github.com/brandmentions/worker/internal/config"
)

// SetupLogger configures a JSON slog logger with service and worker fields
// attached at construction.
func SetupLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: levelFromString(cfg.LogLevel)}
	h := slog.NewJSONHandler(os.Stdout, opts)
	logger := slog.New(h).With(
		slog.String("service", "brand-mention-worker"),
		slog.String("worker_id", cfg.EffectiveWorkerID()),
	)
	return logger
}

func levelFromString(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warning", "warn":
		return slog.LevelWarn
	case "error", "critical":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
