// Package applog builds the process-wide slog.Logger: colored text via
// lmittmann/tint for interactive use, or plain JSON for scripted/CI use,
// at a verbosity controlled by repeated -v flags and -q.
package applog

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// ErrInvalidLevel is returned by ParseLevel for an unrecognized name.
var ErrInvalidLevel = errors.New("log level not recognized")

// ParseLevel maps a level name to its slog.Level. Recognized names: debug, info, warn/warning, error.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, ErrInvalidLevel
	}
}

// verbosityLevels is the four-step ladder a repeated -v climbs through, in
// the order error, warning, info, debug.
var verbosityLevels = [...]slog.Level{slog.LevelError, slog.LevelWarn, slog.LevelInfo, slog.LevelDebug}

// LevelFromVerbosity derives a level from the dispatcher's -v/-q flags. A
// bare invocation (verbosity 0, not quiet) logs at Warn, matching the
// default verbosity of 1 step above the floor; each additional -v climbs
// one more step toward Debug, clamped at the top of the ladder. -q forces
// verbosity to zero regardless of how many -v flags were given, which
// lands at the floor, Error.
func LevelFromVerbosity(verbosity int, quiet bool) slog.Level {
	if quiet {
		verbosity = 0
	} else {
		verbosity++
	}

	if verbosity >= len(verbosityLevels) {
		verbosity = len(verbosityLevels) - 1
	}

	return verbosityLevels[verbosity]
}

// New builds a logger writing to w at level. json selects a plain
// slog.JSONHandler (for scripted use); otherwise a tint.Handler gives
// colored, human-readable output.
func New(w io.Writer, level slog.Level, json bool) *slog.Logger {
	var handler slog.Handler

	if json {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	} else {
		handler = tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
		})
	}

	return slog.New(handler)
}
