package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/spf13/afero"
	"github.com/zclconf/go-cty/cty"

	"github.com/warpdl/warpsched/pkg/logger"
	"github.com/warpdl/warpsched/pkg/sched"
)

// hclFile is the top-level structure of a config file for decoding.
type hclFile struct {
	Listen    *string      `hcl:"listen,optional"`
	LogLevel  *string      `hcl:"log_level,optional"`
	TraceDB   *string      `hcl:"trace_db,optional"`
	RPCSecret *string      `hcl:"rpc_secret,optional"`
	ScriptDir *string      `hcl:"script_dir,optional"`
	Host      *hclHost     `hcl:"host,block"`
	Timeouts  *hclTimeouts `hcl:"timeouts,block"`
	Jobs      []*hclJob    `hcl:"job,block"`
}

type hclHost struct {
	Kind           *string `hcl:"kind,optional"`
	RefreshHz      *int    `hcl:"refresh_hz,optional"`
	BudgetSeedMs   *int    `hcl:"budget_seed_ms,optional"`
	BudgetFloorMs  *int    `hcl:"budget_floor_ms,optional"`
	FrameTimeoutMs *int    `hcl:"frame_timeout_ms,optional"`
}

type hclTimeouts struct {
	ImmediateMs    *int `hcl:"immediate_ms,optional"`
	UserBlockingMs *int `hcl:"user_blocking_ms,optional"`
	NormalMs       *int `hcl:"normal_ms,optional"`
	LowMs          *int `hcl:"low_ms,optional"`
	IdleMs         *int `hcl:"idle_ms,optional"`
}

type hclJob struct {
	Name      string  `hcl:"name,label"`
	Cron      string  `hcl:"cron"`
	Script    string  `hcl:"script"`
	Priority  *string `hcl:"priority,optional"`
	TimeoutMs *int    `hcl:"timeout_ms,optional"`
}

// Load reads the file at path from fsys, decodes it on top of Default and
// validates the result. env backs the env object; nil uses the process
// environment.
func Load(fsys afero.Fs, path string, env map[string]string) (*Config, error) {
	src, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return Parse(src, path, env)
}

// Parse is Load for an in-memory file. filename is used in diagnostics.
func Parse(src []byte, filename string, env map[string]string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}

	var raw hclFile
	diags = gohcl.DecodeBody(file.Body, evalContext(env), &raw)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}

	cfg, err := raw.resolve()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return cfg, nil
}

// evalContext exposes env as an object of strings.
func evalContext(env map[string]string) *hcl.EvalContext {
	if env == nil {
		env = environ()
	}
	vals := make(map[string]cty.Value, len(env))
	for k, v := range env {
		vals[k] = cty.StringVal(v)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": cty.ObjectVal(vals),
		},
	}
}

func environ() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			env[k] = v
		}
	}
	return env
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

func setMs(dst *time.Duration, n *int) {
	if n != nil {
		*dst = ms(*n)
	}
}

func (f *hclFile) resolve() (*Config, error) {
	cfg := Default()
	if f.Listen != nil {
		cfg.Listen = *f.Listen
	}
	if f.LogLevel != nil {
		lvl, err := logger.ParseLevel(*f.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		cfg.LogLevel = lvl
	}
	if f.TraceDB != nil {
		cfg.TraceDB = *f.TraceDB
	}
	if f.RPCSecret != nil {
		cfg.RPCSecret = *f.RPCSecret
	}
	if f.ScriptDir != nil {
		cfg.ScriptDir = *f.ScriptDir
	}

	if h := f.Host; h != nil {
		if h.Kind != nil {
			cfg.Host.Kind = strings.ToLower(*h.Kind)
		}
		if h.RefreshHz != nil {
			cfg.Host.RefreshHz = *h.RefreshHz
		}
		setMs(&cfg.Host.BudgetSeed, h.BudgetSeedMs)
		setMs(&cfg.Host.BudgetFloor, h.BudgetFloorMs)
		setMs(&cfg.Host.FrameTimeout, h.FrameTimeoutMs)
	}

	if t := f.Timeouts; t != nil {
		setMs(&cfg.Timeouts.Immediate, t.ImmediateMs)
		setMs(&cfg.Timeouts.UserBlocking, t.UserBlockingMs)
		setMs(&cfg.Timeouts.Normal, t.NormalMs)
		setMs(&cfg.Timeouts.Low, t.LowMs)
		setMs(&cfg.Timeouts.Idle, t.IdleMs)
	}

	for _, j := range f.Jobs {
		job := Job{
			Name:     j.Name,
			Cron:     j.Cron,
			Script:   j.Script,
			Priority: sched.PriorityNormal,
		}
		if j.Priority != nil {
			p, err := sched.ParsePriority(*j.Priority)
			if err != nil {
				return nil, fmt.Errorf("%w: job %q: %v", ErrInvalid, j.Name, err)
			}
			job.Priority = p
		}
		if j.TimeoutMs != nil {
			d := ms(*j.TimeoutMs)
			job.Timeout = &d
		}
		cfg.Jobs = append(cfg.Jobs, job)
	}
	return cfg, nil
}
