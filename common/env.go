// Package common provides types and constants shared by the warpsched
// daemon and its clients.
package common

// Environment variable names for configuration.
const (
	// DebugEnv enables debug logging.
	DebugEnv = "WARPSCHED_DEBUG"

	// RPCSecretEnv is the bearer token of the JSON-RPC endpoint.
	RPCSecretEnv = "WARPSCHED_RPC_SECRET"

	// AddrEnv is the daemon address clients connect to.
	AddrEnv = "WARPSCHED_ADDR"

	// ConfigEnv is the path of the daemon configuration file.
	ConfigEnv = "WARPSCHED_CONFIG"
)
