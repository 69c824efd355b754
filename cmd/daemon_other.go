//go:build !windows

package cmd

func runDaemon(dc *DaemonComponents) error {
	return runConsole(dc)
}
