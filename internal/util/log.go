// Package util holds the logging helpers every binary shares.
package util

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// ParseLevel maps a config string onto a zerolog level. Unknown level
// strings fall back to info so a bad config value never silences the sim.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// NewLogger builds the process-wide logger and pins the global level,
// which is what lets the config watcher retune verbosity at runtime.
func NewLogger(level string) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(level))
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// SetLevel retunes the process-wide level without rebuilding loggers.
func SetLevel(level string) {
	zerolog.SetGlobalLevel(ParseLevel(level))
}

// Component tags a child logger with the subsystem name so engine,
// server and store lines are distinguishable in one stream.
func Component(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// Nop returns a logger that discards everything. Handy in tests.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
