// Package logger provides the leveled logging interface shared by the
// scheduler, the daemon and the CLI. Backends write to a *log.Logger, to
// the Windows Event Log, or nowhere.
package logger

import (
	"fmt"
	"log"
	"strings"
	"sync"
)

// Logger is the logging interface used across warpsched components.
type Logger interface {
	// Debug logs scheduler internals (e.g., "yielding to host with 3 task(s) pending").
	Debug(format string, args ...interface{})

	// Info logs an informational message (e.g., "daemon listening on 127.0.0.1:9797").
	Info(format string, args ...interface{})

	// Warning logs a warning message (e.g., "task 12 (normal) failed: boom").
	Warning(format string, args ...interface{})

	// Error logs an error message (e.g., "failed to open trace db: permission denied").
	Error(format string, args ...interface{})

	// Close releases resources held by the logger. Safe to call multiple times.
	Close() error
}

// Level is the minimum severity a StandardLogger writes.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug:   "debug",
	LevelInfo:    "info",
	LevelWarning: "warning",
	LevelError:   "error",
}

func (l Level) String() string {
	if s, ok := levelNames[l]; ok {
		return s
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// ParseLevel parses "debug", "info", "warning" (or "warn") and "error".
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warning", "warn":
		return LevelWarning, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// StandardLogger writes to a *log.Logger with a [LEVEL] prefix, dropping
// messages below its minimum level.
type StandardLogger struct {
	logger *log.Logger
	min    Level
}

// NewStandardLogger creates a logger writing to l at LevelInfo and above.
func NewStandardLogger(l *log.Logger) *StandardLogger {
	return &StandardLogger{logger: l, min: LevelInfo}
}

// NewLeveledLogger creates a logger writing to l at min and above.
func NewLeveledLogger(l *log.Logger, min Level) *StandardLogger {
	return &StandardLogger{logger: l, min: min}
}

// SetLevel changes the minimum level.
func (s *StandardLogger) SetLevel(min Level) {
	s.min = min
}

func (s *StandardLogger) printf(lvl Level, prefix, format string, args ...interface{}) {
	if lvl < s.min {
		return
	}
	s.logger.Printf(prefix+format, args...)
}

// Debug logs with a [DEBUG] prefix.
func (s *StandardLogger) Debug(format string, args ...interface{}) {
	s.printf(LevelDebug, "[DEBUG] ", format, args...)
}

// Info logs with an [INFO] prefix.
func (s *StandardLogger) Info(format string, args ...interface{}) {
	s.printf(LevelInfo, "[INFO] ", format, args...)
}

// Warning logs with a [WARNING] prefix.
func (s *StandardLogger) Warning(format string, args ...interface{}) {
	s.printf(LevelWarning, "[WARNING] ", format, args...)
}

// Error logs with an [ERROR] prefix.
func (s *StandardLogger) Error(format string, args ...interface{}) {
	s.printf(LevelError, "[ERROR] ", format, args...)
}

// Close is a no-op.
func (s *StandardLogger) Close() error {
	return nil
}

// NopLogger discards all messages.
type NopLogger struct{}

// NewNopLogger creates a logger that discards all messages.
func NewNopLogger() *NopLogger {
	return &NopLogger{}
}

func (n *NopLogger) Debug(format string, args ...interface{})   {}
func (n *NopLogger) Info(format string, args ...interface{})    {}
func (n *NopLogger) Warning(format string, args ...interface{}) {}
func (n *NopLogger) Error(format string, args ...interface{})   {}
func (n *NopLogger) Close() error                               { return nil }

var (
	_ Logger = (*StandardLogger)(nil)
	_ Logger = (*NopLogger)(nil)
)

// MockLogger records every formatted message for verification in tests.
// It may be written from several goroutines.
type MockLogger struct {
	mu           sync.Mutex
	DebugCalls   []string
	InfoCalls    []string
	WarningCalls []string
	ErrorCalls   []string
	CloseCalled  bool
}

// NewMockLogger creates a new MockLogger.
func NewMockLogger() *MockLogger {
	return &MockLogger{}
}

func (m *MockLogger) record(dst *[]string, format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	*dst = append(*dst, fmt.Sprintf(format, args...))
}

func (m *MockLogger) Debug(format string, args ...interface{}) {
	m.record(&m.DebugCalls, format, args...)
}

func (m *MockLogger) Info(format string, args ...interface{}) {
	m.record(&m.InfoCalls, format, args...)
}

func (m *MockLogger) Warning(format string, args ...interface{}) {
	m.record(&m.WarningCalls, format, args...)
}

func (m *MockLogger) Error(format string, args ...interface{}) {
	m.record(&m.ErrorCalls, format, args...)
}

// Close records that Close was called.
func (m *MockLogger) Close() error {
	m.mu.Lock()
	m.CloseCalled = true
	m.mu.Unlock()
	return nil
}

// Snapshot returns copies of the recorded calls, keyed by level name.
func (m *MockLogger) Snapshot() map[string][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := func(s []string) []string { return append([]string(nil), s...) }
	return map[string][]string{
		"debug":   cp(m.DebugCalls),
		"info":    cp(m.InfoCalls),
		"warning": cp(m.WarningCalls),
		"error":   cp(m.ErrorCalls),
	}
}

var _ Logger = (*MockLogger)(nil)

// ToStdLogger returns a *log.Logger whose output goes to l at the given
// level, for libraries such as net/http that only accept the stdlib type.
func ToStdLogger(l Logger, lvl Level) *log.Logger {
	return log.New(stdWriter{l: l, lvl: lvl}, "", 0)
}

type stdWriter struct {
	l   Logger
	lvl Level
}

func (w stdWriter) Write(p []byte) (int, error) {
	msg := strings.TrimRight(string(p), "\n")
	switch w.lvl {
	case LevelDebug:
		w.l.Debug("%s", msg)
	case LevelInfo:
		w.l.Info("%s", msg)
	case LevelWarning:
		w.l.Warning("%s", msg)
	default:
		w.l.Error("%s", msg)
	}
	return len(p), nil
}
