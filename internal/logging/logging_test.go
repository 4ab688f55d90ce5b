package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetLevelFromString(t *testing.T) {
	defer SetLevel(slog.LevelInfo)

	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
	}
	for in, want := range cases {
		SetLevelFromString(in)
		if got := Level(); got != want {
			t.Fatalf("SetLevelFromString(%q): got %v, want %v", in, got, want)
		}
	}

	SetLevel(slog.LevelWarn)
	SetLevelFromString("bogus")
	if Level() != slog.LevelWarn {
		t.Fatalf("unknown level should be ignored, got %v", Level())
	}
}

func TestInitStructuredJSON(t *testing.T) {
	prev := Op()
	defer func() {
		SetOp(prev)
		SetLevel(slog.LevelInfo)
	}()

	var buf bytes.Buffer
	initStructured(&buf, "json", "info")
	Op().Info("hello", "key", "value")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
	}
	if rec["msg"] != "hello" || rec["key"] != "value" || rec["component"] != "courier" {
		t.Fatalf("unexpected record: %v", rec)
	}
}

func TestOpWithTrace(t *testing.T) {
	prev := Op()
	defer SetOp(prev)

	var buf bytes.Buffer
	initStructured(&buf, "text", "info")

	if OpWithTrace("", "span") != Op() {
		t.Fatal("empty trace id should return the base logger")
	}
	OpWithTrace("abc", "def").Info("traced")
	out := buf.String()
	if !strings.Contains(out, "trace_id=abc") || !strings.Contains(out, "span_id=def") {
		t.Fatalf("expected trace fields, got %q", out)
	}
}

func TestCallLoggerConsoleAndFile(t *testing.T) {
	var console bytes.Buffer
	l := NewCallLogger(&console)
	path := filepath.Join(t.TempDir(), "calls.jsonl")
	if err := l.SetOutput(path); err != nil {
		t.Fatalf("SetOutput: %v", err)
	}

	l.Log(&CallLog{RequestID: "r1", Method: "POST", URL: "/users", Outcome: "ok", DurationMs: 3})
	l.Log(&CallLog{RequestID: "r2", Method: "POST", URL: "/users", Outcome: "failed", Code: 0, Error: "boom"})
	l.Close()

	out := console.String()
	if !strings.Contains(out, "[call] ✓ r1 POST /users ok 3ms") {
		t.Fatalf("missing success line: %q", out)
	}
	if !strings.Contains(out, "error: boom") {
		t.Fatalf("missing error line: %q", out)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 JSON lines, got %d", len(lines))
	}
	var rec CallLog
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec.RequestID != "r1" || rec.Timestamp.IsZero() {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestCallLoggerDisabled(t *testing.T) {
	var console bytes.Buffer
	l := NewCallLogger(&console)
	l.SetEnabled(false)
	l.Log(&CallLog{RequestID: "r1"})
	if console.Len() != 0 {
		t.Fatalf("disabled logger wrote %q", console.String())
	}
}
