// Package logging wraps zerolog with the component-scoped logger
// pattern used across the forwarder, the analyzer adapters, and the
// CLI: one child logger per subsystem, all sharing a process-wide
// level and output.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
	With().Timestamp().Logger()

// Init reconfigures the process-wide base logger. Call once at
// startup; component loggers handed out before Init was called keep
// logging to the previous configuration since zerolog.Logger is a
// value type, so Init should run before any New().
func Init(level zerolog.Level, jsonOutput bool, output io.Writer) {
	if output == nil {
		output = os.Stderr
	}
	zerolog.SetGlobalLevel(level)
	if jsonOutput {
		base = zerolog.New(output).With().Timestamp().Logger()
	} else {
		base = zerolog.New(zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger()
	}
}

// New returns a logger scoped to component, e.g. "forwarder" or
// "wsanalyzer".
func New(component string) zerolog.Logger {
	return base.With().Str("component", component).Logger()
}
