package logging

import (
	"io"
	"log/slog"
	"os"
)

// InitStructured reconfigures the operational logger.
// format: "text" (default) or "json"
// level: "debug", "info", "warn", "error"
func InitStructured(format, level string) {
	initStructured(os.Stderr, format, level)
}

func initStructured(w io.Writer, format, level string) {
	SetLevelFromString(level)

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	opLogger.Store(slog.New(handler).With("component", "courier"))
}

// OpWithTrace returns the operational logger with trace context fields.
func OpWithTrace(traceID, spanID string) *slog.Logger {
	l := opLogger.Load()
	if traceID == "" {
		return l
	}
	args := []any{"trace_id", traceID}
	if spanID != "" {
		args = append(args, "span_id", spanID)
	}
	return l.With(args...)
}
