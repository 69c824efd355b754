// Package config loads the daemon configuration file.
//
// The file is HCL. Expressions can read the process environment through the
// env object:
//
//	listen     = "127.0.0.1:4798"
//	log_level  = "info"
//	trace_db   = "${env.HOME}/.warpsched/trace.db"
//	rpc_secret = env.WARPSCHED_RPC_SECRET
//	script_dir = "/etc/warpsched/scripts"
//
//	host {
//	  kind       = "frame"
//	  refresh_hz = 60
//	}
//
//	timeouts {
//	  user_blocking_ms = 250
//	}
//
//	job "cleanup" {
//	  cron     = "*/5 * * * *"
//	  priority = "low"
//	  script   = "jobs/cleanup.js"
//	}
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/warpdl/warpsched/internal/cron"
	"github.com/warpdl/warpsched/pkg/logger"
	"github.com/warpdl/warpsched/pkg/sched"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

const (
	DefaultListen = "127.0.0.1:4798"

	HostFrame = "frame"
	HostTimer = "timer"
)

// Config is the resolved daemon configuration.
type Config struct {
	Listen    string
	LogLevel  logger.Level
	TraceDB   string
	RPCSecret string
	// ScriptDir roots job scripts and task.submit paths. Empty means the
	// working directory.
	ScriptDir string
	Host      Host
	Timeouts  sched.Timeouts
	Jobs      []Job
}

// Host selects and tunes the scheduler host. Zero durations keep the host's
// own defaults.
type Host struct {
	Kind         string
	RefreshHz    int
	BudgetSeed   time.Duration
	BudgetFloor  time.Duration
	FrameTimeout time.Duration
}

// Job is a script submitted on a cron schedule.
type Job struct {
	Name     string
	Cron     string
	Priority sched.Priority
	// Timeout overrides the priority's timeout when set.
	Timeout *time.Duration
	Script  string
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Listen:   DefaultListen,
		LogLevel: logger.LevelInfo,
		Host:     Host{Kind: HostFrame},
		Timeouts: sched.DefaultTimeouts,
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("%w: listen must not be empty", ErrInvalid)
	}
	switch c.Host.Kind {
	case HostFrame, HostTimer:
	default:
		return fmt.Errorf("%w: unknown host kind %q (want %q or %q)", ErrInvalid, c.Host.Kind, HostFrame, HostTimer)
	}
	if c.Host.RefreshHz < 0 {
		return fmt.Errorf("%w: refresh_hz must not be negative", ErrInvalid)
	}
	if err := c.Timeouts.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	seen := make(map[string]bool, len(c.Jobs))
	for _, j := range c.Jobs {
		if seen[j.Name] {
			return fmt.Errorf("%w: duplicate job %q", ErrInvalid, j.Name)
		}
		seen[j.Name] = true
		if j.Script == "" {
			return fmt.Errorf("%w: job %q has no script", ErrInvalid, j.Name)
		}
		if err := cron.Validate(j.Cron); err != nil {
			return fmt.Errorf("%w: job %q: %v", ErrInvalid, j.Name, err)
		}
	}
	return nil
}
