// Package logging provides the diagnostic logger shared by all slipsomat
// components.
//
// Diagnostics go to stderr so they never mix with the console summaries
// printed on stdout.
//
//	logging.Init(os.Stderr, slog.LevelWarn, false)
//	log := logging.Component("reconcile")
//	log.Info("fetched letter", "file", name, "checksum", sum)
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is the global logger instance. Until Init is called it writes
// warnings and errors to stderr as text.
var Logger = newLogger(os.Stderr, slog.LevelWarn, false)

// Init initializes the global logger. If jsonFormat is true, logs are
// written as JSON; otherwise as human-readable text.
func Init(w io.Writer, level slog.Level, jsonFormat bool) {
	Logger = newLogger(w, level, jsonFormat)
	slog.SetDefault(Logger)
}

func newLogger(w io.Writer, level slog.Level, jsonFormat bool) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	if jsonFormat {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// ParseLevel maps a --log-level value to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning", "":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelWarn, fmt.Errorf("invalid log level %q (want debug, info, warn or error)", s)
}

// ParseFormat reports whether a --log-format value selects JSON output.
func ParseFormat(s string) (jsonFormat bool, err error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "":
		return false, nil
	case "json":
		return true, nil
	}
	return false, fmt.Errorf("invalid log format %q (want text or json)", s)
}

// Component returns a logger tagged with the component name.
func Component(name string) *slog.Logger {
	return Logger.With("component", name)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
