package runtime

import (
	"log/slog"
	"os"
)

func NewLogger(service string) *slog.Logger {
	level := slog.LevelInfo
	switch Getenv("LOG_LEVEL", "info") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(h).With("service", service)
}
