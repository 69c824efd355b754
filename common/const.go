package common

// JSON-RPC method names.
const (
	MethodGetVersion      = "system.getVersion"
	MethodTaskSubmit      = "task.submit"
	MethodTaskCancel      = "task.cancel"
	MethodSchedulerStats  = "scheduler.stats"
	MethodSchedulerPause  = "scheduler.pause"
	MethodSchedulerResume = "scheduler.resume"
	MethodTraceRecent     = "trace.recent"
)

// RPCPath and RPCWebSocketPath are the HTTP routes of the endpoint.
const (
	RPCPath          = "/jsonrpc"
	RPCWebSocketPath = "/jsonrpc/ws"
)

// DefaultAddr is where the daemon listens unless configured otherwise.
const DefaultAddr = "127.0.0.1:4798"

// Push notifications sent to WebSocket sessions. Their params are a TaskEvent.
const (
	NotifyTaskStarted   = "task.started"
	NotifyTaskCompleted = "task.completed"
	NotifyTaskFailed    = "task.failed"
	NotifyTaskCanceled  = "task.canceled"
)
