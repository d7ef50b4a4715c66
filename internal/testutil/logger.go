package testutil

import (
	"sync"
)

// LogEntry is one captured log call.
type LogEntry struct {
	Level   string
	Message string
	Args    []any
}

// CapturingLogger records log calls for assertions.
type CapturingLogger struct {
	mu      sync.Mutex
	entries []LogEntry
}

// NewCapturingLogger creates an empty capturing logger.
func NewCapturingLogger() *CapturingLogger {
	return &CapturingLogger{}
}

func (l *CapturingLogger) log(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, LogEntry{Level: level, Message: msg, Args: args})
}

func (l *CapturingLogger) Debug(msg string, args ...any) { l.log("DEBUG", msg, args) }
func (l *CapturingLogger) Info(msg string, args ...any)  { l.log("INFO", msg, args) }
func (l *CapturingLogger) Warn(msg string, args ...any)  { l.log("WARN", msg, args) }
func (l *CapturingLogger) Error(msg string, args ...any) { l.log("ERROR", msg, args) }

// Entries returns a copy of the captured entries.
func (l *CapturingLogger) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}
