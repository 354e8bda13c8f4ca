package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel maps LOG_LEVEL style names to a slog level.
func ParseLevel(l string, def slog.Level) slog.Level {
	switch strings.ToLower(strings.TrimSpace(l)) {
	case "dev", "development", "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "production", "prod":
		return slog.LevelError
	}
	return def
}

// Init configures the default logger of the peer commands. The session UI owns
// the terminal, so LOG_FILE redirects output to a file. It returns a closer
// for that file.
func Init() io.Closer {
	level := slog.LevelError // default: production only shows errors
	if l, ok := os.LookupEnv("LOG_LEVEL"); ok {
		level = ParseLevel(l, level)
	}

	var out io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if path := os.Getenv("LOG_FILE"); path != "" {
		if f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			out, closer = f, f
		}
	}

	logger := slog.New(
		slog.NewTextHandler(out, &slog.HandlerOptions{
			Level: level,
		}),
	)
	slog.SetDefault(logger)
	return closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
