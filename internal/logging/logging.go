// Package logging builds the zerolog loggers sail-sentinel writes with:
// JSON lines for the watch process and a console format for commands run
// from a terminal.
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
)

// NewJSON returns a timestamped JSON logger. Unknown levels fall back to info.
func NewJSON(w io.Writer, level string) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger().Level(levelOrInfo(level))
}

// NewConsole returns a human-readable logger for interactive use.
func NewConsole(w io.Writer, level string) zerolog.Logger {
	out := zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	return zerolog.New(out).With().Timestamp().Logger().Level(levelOrInfo(level))
}

// Component tags every event of logger with the subsystem that wrote it.
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}

// ParseLevel accepts zerolog level names in any case, plus "warning".
func ParseLevel(level string) (zerolog.Level, error) {
	value := strings.ToLower(strings.TrimSpace(level))
	switch value {
	case "warning":
		return zerolog.WarnLevel, nil
	case "trace", "debug", "info", "warn", "error", "fatal", "panic":
		return zerolog.ParseLevel(value)
	}
	return zerolog.NoLevel, fmt.Errorf("unknown log level %q", level)
}

func levelOrInfo(level string) zerolog.Level {
	parsed, err := ParseLevel(level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return parsed
}
