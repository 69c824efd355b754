package common

import (
	"time"

	"github.com/warpdl/warpsched/pkg/sched"
)

type VersionResult struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildType string `json:"buildType,omitempty"`
}

// SubmitParams is the input of task.submit. Exactly one of Script and Path
// is required; Path is resolved in the daemon's script directory.
type SubmitParams struct {
	Script    string `json:"script,omitempty"`
	Path      string `json:"path,omitempty"`
	Name      string `json:"name,omitempty"`
	Priority  string `json:"priority,omitempty"`
	TimeoutMs *int64 `json:"timeoutMs,omitempty"`
}

type SubmitResult struct {
	ID string `json:"id"`
}

// TaskIDParam is the input of task.cancel.
type TaskIDParam struct {
	ID string `json:"id"`
}

// StatusResult is the response of scheduler.stats.
type StatusResult struct {
	Stats  sched.Stats   `json:"stats"`
	Paused bool          `json:"paused"`
	Host   string        `json:"host"`
	Budget time.Duration `json:"budget"`
	Frames int           `json:"frames"`
}

// TraceParams is the input of trace.recent.
type TraceParams struct {
	Limit int `json:"limit,omitempty"`
}

// TraceEntry is one recorded task event.
type TraceEntry struct {
	Seq        int64         `json:"seq"`
	TaskID     uint64        `json:"taskId"`
	Name       string        `json:"name,omitempty"`
	Kind       string        `json:"kind"`
	Priority   string        `json:"priority"`
	At         time.Time     `json:"at"`
	Elapsed    time.Duration `json:"elapsed"`
	DidTimeout bool          `json:"didTimeout,omitempty"`
	Error      string        `json:"error,omitempty"`
}

type TraceResult struct {
	Events []TraceEntry `json:"events"`
}

// EmptyResult is the response of methods that return no data.
type EmptyResult struct{}

// TaskEvent is the params object of task.* notifications.
type TaskEvent struct {
	ID         string        `json:"id"`
	Name       string        `json:"name,omitempty"`
	Kind       string        `json:"kind"`
	Priority   string        `json:"priority"`
	DidTimeout bool          `json:"didTimeout,omitempty"`
	Elapsed    time.Duration `json:"elapsed,omitempty"`
	Error      string        `json:"error,omitempty"`
}
