// Package logger provides a configured zerolog logger.
package logger

import (
	"io"
	"os"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	zpkgerrors "github.com/rs/zerolog/pkgerrors"
)

// New returns a new zerolog.Logger configured for the application.
// Call sites should use .Stack() on error events to include stacks.
func New(serviceName string) zerolog.Logger {
	return NewWithWriter(serviceName, os.Stdout, zerolog.InfoLevel)
}

// NewWithWriter is New with an explicit sink and level; the CLI logs to
// stderr so command output stays clean.
func NewWithWriter(serviceName string, w io.Writer, level zerolog.Level) zerolog.Logger {
	configureErrorMarshalers()
	return zerolog.New(w).Level(level).With().
		Str("service", serviceName).
		Timestamp().
		Logger()
}

// NewConsole returns a human-readable logger for interactive use.
func NewConsole(serviceName string, w io.Writer, level zerolog.Level) zerolog.Logger {
	configureErrorMarshalers()
	return zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: true}).Level(level).With().
		Str("service", serviceName).
		Timestamp().
		Logger()
}

// configureErrorMarshalers makes zerolog work with github.com/pkg/errors:
// stacks are marshalled when present and attached when .Stack() is used on
// a plain error.
func configureErrorMarshalers() {
	zerolog.ErrorStackMarshaler = func(err error) interface{} {
		type stackTracer interface{ StackTrace() pkgerrors.StackTrace }
		if _, ok := err.(stackTracer); !ok {
			err = pkgerrors.WithStack(err)
		}
		return zpkgerrors.MarshalStack(err)
	}
	zerolog.ErrorMarshalFunc = func(err error) interface{} {
		type stackTracer interface{ StackTrace() pkgerrors.StackTrace }
		if _, ok := err.(stackTracer); ok {
			return err
		}
		return pkgerrors.WithStack(err)
	}
}
