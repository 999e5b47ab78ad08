// Package logging builds the console logger shared by every pipeline step.
package logging

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// New returns a logger for the given verbosity count. One -v enables debug
// output, two or more also report the caller.
func New(verbosity int) *log.Logger {
	return NewWithWriter(os.Stderr, verbosity)
}

// NewWithWriter is New writing to w
func NewWithWriter(w io.Writer, verbosity int) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{
		Prefix:          "bundler",
		Level:           levelFor(verbosity),
		ReportCaller:    verbosity > 1,
		ReportTimestamp: verbosity > 1,
	})

	return logger
}

func levelFor(verbosity int) log.Level {
	if verbosity > 0 {
		return log.DebugLevel
	}

	return log.InfoLevel
}

// Discard is a logger that drops everything, for tests
func Discard() *log.Logger {
	return log.New(io.Discard)
}
