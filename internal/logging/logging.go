package logging

import (
	"io"
	"log/slog"
	"os"
)

// Verbose reports whether debug-level logging is enabled.
var Verbose bool

// Logger is the package-level structured logger. It defaults to a text
// handler on stderr until Setup is called.
var Logger = slog.New(slog.NewTextHandler(os.Stderr, nil))

// Setup configures the package logger. verbose enables debug-level output,
// jsonOutput switches the handler to JSON, and w overrides the destination
// (nil means stderr).
func Setup(verbose, jsonOutput bool, w io.Writer) {
	Verbose = verbose
	if w == nil {
		w = os.Stderr
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if jsonOutput {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	Logger = slog.New(handler)
}

// Debug logs a debug message. Only visible in verbose mode.
func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

// Info logs an informational message.
func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

// Warn logs a warning message.
func Warn(msg string, args ...any) {
	Logger.Warn(msg, args...)
}

// Error logs an error message.
func Error(msg string, args ...any) {
	Logger.Error(msg, args...)
}

// With returns a logger carrying the given attributes.
func With(args ...any) *slog.Logger {
	return Logger.With(args...)
}
