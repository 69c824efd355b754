//go:build windows

package cmd

import "github.com/warpdl/warpsched/internal/service"

// runDaemon hands control to the SCM when started as a service.
func runDaemon(dc *DaemonComponents) error {
	isService, err := service.IsWindowsService()
	if err != nil || !isService {
		return runConsole(dc)
	}
	return service.Run(EventSourceName, service.NewWindowsHandler(dc.Runner, dc.Engine, dc.log))
}
