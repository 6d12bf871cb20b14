package logger

import (
	"log/slog"
	"os"
)

// New returns the service's structured logger. JSON on stdout so log
// shippers can pick fields apart without parsing.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
