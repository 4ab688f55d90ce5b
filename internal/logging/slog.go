package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

var (
	opLogger atomic.Pointer[slog.Logger]
	logLevel = new(slog.LevelVar)
)

func init() {
	logLevel.Set(slog.LevelInfo)
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	opLogger.Store(slog.New(handler).With("component", "courier"))
}

// Op returns the operational logger used by the store, the client and the CLI.
// Per-call records go through the CallLogger instead.
func Op() *slog.Logger {
	return opLogger.Load()
}

// SetOp replaces the operational logger. Tests use it to capture output.
func SetOp(l *slog.Logger) {
	if l == nil {
		return
	}
	opLogger.Store(l)
}

// SetLevel changes the log level for the operational logger.
func SetLevel(level slog.Level) {
	logLevel.Set(level)
}

// Level returns the current operational log level.
func Level() slog.Level {
	return logLevel.Level()
}

// SetLevelFromString sets the log level from a string.
// Valid values: "debug", "info", "warn", "error". Anything else is ignored.
func SetLevelFromString(level string) {
	switch strings.ToLower(level) {
	case "debug":
		SetLevel(slog.LevelDebug)
	case "info":
		SetLevel(slog.LevelInfo)
	case "warn", "warning":
		SetLevel(slog.LevelWarn)
	case "error":
		SetLevel(slog.LevelError)
	}
}
