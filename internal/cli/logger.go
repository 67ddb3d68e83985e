package cli

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger writes human-readable status messages through zerolog console
// writers. Informational output goes to stdout, errors to stderr.
type Logger struct {
	out zerolog.Logger
	err zerolog.Logger
}

// NewLogger builds the process logger.
func NewLogger() Logger {
	return NewLoggerTo(os.Stdout, os.Stderr)
}

// NewLoggerTo builds a logger over explicit writers.
func NewLoggerTo(out, err io.Writer) Logger {
	outW := zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05", NoColor: true}
	errW := zerolog.ConsoleWriter{Out: err, TimeFormat: "15:04:05", NoColor: true}
	return Logger{
		out: zerolog.New(outW).With().Timestamp().Logger(),
		err: zerolog.New(errW).With().Timestamp().Logger(),
	}
}

// Info prints an informational message.
func (l Logger) Info(msg string) {
	l.out.Info().Msg(msg)
}

// Warn prints a warning message.
func (l Logger) Warn(msg string) {
	l.out.Warn().Msg(msg)
}

// Error prints an error message.
func (l Logger) Error(msg string) {
	l.err.Error().Msg(msg)
}

// Success prints a completed-operation message.
func (l Logger) Success(msg string) {
	l.out.Info().Str("status", "ok").Msg(msg)
}

// Failure prints a failed-operation message.
func (l Logger) Failure(msg string) {
	l.out.Warn().Str("status", "fail").Msg(msg)
}
