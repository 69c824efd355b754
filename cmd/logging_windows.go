//go:build windows

package cmd

import "github.com/warpdl/warpsched/pkg/logger"

// EventSourceName is the Windows Event Log source of the daemon.
const EventSourceName = "warpsched"

// daemonLogger adds the Windows Event Log to base when eventLog is set.
func daemonLogger(base logger.Logger, eventLog bool) (logger.Logger, error) {
	if !eventLog {
		return base, nil
	}
	if err := logger.InstallEventSource(EventSourceName); err != nil {
		base.Warning("event log: could not register source: %v", err)
	}
	el, err := logger.NewEventLogger(EventSourceName)
	if err != nil {
		return nil, err
	}
	return logger.NewMultiLogger(base, el), nil
}
