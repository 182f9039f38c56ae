// Package trace provides the opt-in diagnostic logger. Tracing is off by
// default so the terminal stays clean; when enabled, events go to stderr in
// zerolog's console format and interleave with the conversation output.
package trace

import (
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	logger  = zerolog.Nop()
	enabled bool
)

// Init configures the process-wide trace logger. When on is false the logger
// stays a no-op. Unknown levels fall back to debug.
func Init(on bool, level string) {
	if !on {
		logger = zerolog.Nop()
		enabled = false
		return
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.DebugLevel
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	logger = zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	enabled = true
}

// Enabled reports whether Init turned tracing on.
func Enabled() bool {
	return enabled
}

// Logger returns the process trace logger. Safe to call before Init; the
// zero value discards everything.
func Logger() zerolog.Logger {
	return logger
}

// TurnID returns a fresh correlation id for one request/response turn.
func TurnID() string {
	return uuid.New().String()
}
