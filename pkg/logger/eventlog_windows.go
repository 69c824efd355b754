//go:build windows

package logger

import "golang.org/x/sys/windows/svc/eventlog"

// EventLogWriter is the subset of *eventlog.Log that EventLogger writes to.
type EventLogWriter interface {
	Info(eid uint32, msg string) error
	Warning(eid uint32, msg string) error
	Error(eid uint32, msg string) error
	Close() error
}

// eventLogOpener opens the named event source. Tests replace it.
var eventLogOpener = func(sourceName string) (EventLogWriter, error) {
	return eventlog.Open(sourceName)
}

// InstallEventSource registers sourceName so the daemon can log to it.
// It needs administrator rights and is a no-op if the source exists.
func InstallEventSource(sourceName string) error {
	err := eventlog.InstallAsEventCreate(sourceName, eventlog.Error|eventlog.Warning|eventlog.Info)
	if err != nil && !isAlreadyExists(err) {
		return err
	}
	return nil
}
