//go:build windows

package logger

import (
	"fmt"
	"strings"
)

// Event IDs for Windows Event Log entries.
const (
	EventIDInfo    uint32 = 1
	EventIDWarning uint32 = 2
	EventIDError   uint32 = 3
)

// EventLogger writes daemon messages to the Windows Event Log. Debug
// messages are dropped; the event log is not a tracing sink.
type EventLogger struct {
	log EventLogWriter
}

// NewEventLogger opens the event source sourceName, which must have been
// registered with InstallEventSource.
func NewEventLogger(sourceName string) (*EventLogger, error) {
	w, err := eventLogOpener(sourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	return &EventLogger{log: w}, nil
}

// NewEventLoggerWithWriter wraps an already opened writer.
func NewEventLoggerWithWriter(w EventLogWriter) *EventLogger {
	return &EventLogger{log: w}
}

func (e *EventLogger) Debug(format string, args ...interface{}) {}

func (e *EventLogger) Info(format string, args ...interface{}) {
	// Write errors are ignored so the daemon keeps running.
	_ = e.log.Info(EventIDInfo, fmt.Sprintf(format, args...))
}

func (e *EventLogger) Warning(format string, args ...interface{}) {
	_ = e.log.Warning(EventIDWarning, fmt.Sprintf(format, args...))
}

func (e *EventLogger) Error(format string, args ...interface{}) {
	_ = e.log.Error(EventIDError, fmt.Sprintf(format, args...))
}

// Close releases the event log handle.
func (e *EventLogger) Close() error {
	if e.log != nil {
		return e.log.Close()
	}
	return nil
}

func isAlreadyExists(err error) bool {
	return strings.Contains(err.Error(), "registry key already exists")
}

var _ Logger = (*EventLogger)(nil)
