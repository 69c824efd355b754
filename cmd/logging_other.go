//go:build !windows

package cmd

import "github.com/warpdl/warpsched/pkg/logger"

// EventSourceName is the Windows Event Log source of the daemon.
const EventSourceName = "warpsched"

// daemonLogger returns base unchanged; the Event Log only exists on Windows.
func daemonLogger(base logger.Logger, _ bool) (logger.Logger, error) {
	return base, nil
}
