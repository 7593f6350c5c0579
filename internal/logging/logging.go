package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init configures the global slog logger. JSON if BRANDSENTRY_JSON_LOG=1/true/json, text otherwise.
func Init(service string) *slog.Logger {
	mode := strings.ToLower(os.Getenv("BRANDSENTRY_JSON_LOG"))
	json := mode == "1" || mode == "true" || mode == "json"
	opts := &slog.HandlerOptions{Level: levelFromEnv()}

	var handler slog.Handler
	if json {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler).With("service", service)
	slog.SetDefault(logger)
	logger.Info("logging initialized", "json", json)
	return logger
}

// OrDefault returns l, or the global logger when l is nil.
func OrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

func levelFromEnv() slog.Leveler {
	switch strings.ToLower(os.Getenv("BRANDSENTRY_LOG_LEVEL")) {
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
