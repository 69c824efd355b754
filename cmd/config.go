package cmd

import "time"

const (
	DEF_IDLE_POLL    = 10 * time.Millisecond
	DEF_CALL_TIMEOUT = 10 * time.Second
)

const DESCRIPTION = `
warpsched runs JavaScript tasks on a cooperative scheduler with five
priority levels. Long tasks yield back to the host between slices so
that urgent work is never starved, and tasks that wait too long are
run ahead of everything else.
`

const (
	RunDescription = `The run command loads scripts into a local scheduler and
waits until every task, including work the scripts schedule
themselves, has finished.

Example:
        warpsched run jobs/a.js jobs/b.js
        warpsched run --host timer --priority low --progress jobs/*.js

`
	DaemonDescription = `The daemon command starts the scheduler as a service. It
serves JSON-RPC on /jsonrpc and /jsonrpc/ws, runs cron jobs from
the config file and records task events to the trace database.

Example:
        warpsched daemon --config /etc/warpsched.hcl

`
	SubmitDescription = `The submit command sends a script to the daemon and prints
the new task id. The script is read locally unless --remote is
set, in which case the path is resolved in the daemon's script
directory.

Example:
        warpsched submit --priority user-blocking jobs/report.js

`
	CancelDescription = `The cancel command removes a pending task from the daemon's
queue using the id printed by "warpsched submit".

Example:
        warpsched cancel <task id>

`
	StatsDescription = `The stats command prints the daemon's scheduler counters.

Example:
        warpsched stats

`
	TraceDescription = `The trace command lists recent task events recorded by the
daemon, newest first.

Example:
        warpsched trace --limit 20

`
)
