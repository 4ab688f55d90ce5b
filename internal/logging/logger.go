package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// CallLog is one record per API call made through the client.
type CallLog struct {
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id"`
	TraceID    string    `json:"trace_id,omitempty"`
	Method     string    `json:"method"`
	URL        string    `json:"url"`
	Status     int       `json:"status,omitempty"`
	Code       int       `json:"code,omitempty"`
	Outcome    string    `json:"outcome"`
	DurationMs int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
}

// CallLogger writes call records to the console and, optionally, a JSON lines file.
type CallLogger struct {
	mu      sync.Mutex
	enabled bool
	file    *os.File
	console io.Writer
}

var defaultCallLogger = &CallLogger{enabled: true}

// Calls returns the process-wide call logger. Console output is off by default.
func Calls() *CallLogger {
	return defaultCallLogger
}

// NewCallLogger returns a call logger that writes human-readable lines to console.
// A nil console disables console output.
func NewCallLogger(console io.Writer) *CallLogger {
	return &CallLogger{enabled: true, console: console}
}

// SetOutput sets the JSON lines output file.
func (l *CallLogger) SetOutput(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		l.file.Close()
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	l.file = f
	return nil
}

// SetConsole sets the console writer. nil disables console output.
func (l *CallLogger) SetConsole(w io.Writer) {
	l.mu.Lock()
	l.console = w
	l.mu.Unlock()
}

// SetEnabled turns the logger on or off.
func (l *CallLogger) SetEnabled(enabled bool) {
	l.mu.Lock()
	l.enabled = enabled
	l.mu.Unlock()
}

// Log writes a call record.
func (l *CallLogger) Log(entry *CallLog) {
	if l == nil || entry == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled {
		return
	}

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	if l.console != nil {
		status := "✓"
		if entry.Error != "" {
			status = "✗"
		}
		code := ""
		if entry.Code != 0 {
			code = fmt.Sprintf(" [code:%d]", entry.Code)
		}
		fmt.Fprintf(l.console, "[call] %s %s %s %s %s %dms%s\n",
			status, entry.RequestID, entry.Method, entry.URL, entry.Outcome, entry.DurationMs, code)
		if entry.Error != "" {
			fmt.Fprintf(l.console, "[call]   error: %s\n", entry.Error)
		}
	}

	if l.file != nil {
		data, _ := json.Marshal(entry)
		l.file.Write(append(data, '\n'))
	}
}

// Close closes the output file.
func (l *CallLogger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
}
