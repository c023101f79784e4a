package xtraceback

import (
	"io"
	"log/slog"
)

// NewNopLogger returns a logger for callers that want neither the
// highlighting advisory nor frame diagnostics.
func NewNopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// VerbosityToLevel maps the CLI's -v count onto the Formatter's log output.
// With no -v only the one-time warning about an unusable highlighter
// appears. -v adds a summary of the parsed crash dump, and -vv adds a line
// per excluded frame and per highlighter failure.
func VerbosityToLevel(verbosity int) slog.Level {
	switch {
	case verbosity >= 2:
		return slog.LevelDebug
	case verbosity == 1:
		return slog.LevelInfo
	default:
		return slog.LevelWarn
	}
}
