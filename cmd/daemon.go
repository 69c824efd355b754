package cmd

import (
	"context"
	"errors"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/urfave/cli"

	cmdcommon "github.com/warpdl/warpsched/cmd/common"
	"github.com/warpdl/warpsched/common"
	"github.com/warpdl/warpsched/internal/config"
	"github.com/warpdl/warpsched/internal/daemon"
	"github.com/warpdl/warpsched/internal/engine"
	"github.com/warpdl/warpsched/internal/server"
	"github.com/warpdl/warpsched/internal/trace"
	"github.com/warpdl/warpsched/pkg/logger"
	"github.com/warpdl/warpsched/pkg/sched"
)

var (
	daemonConfig   string
	daemonListen   string
	daemonTraceDB  string
	daemonEventLog bool

	daemonFlags = []cli.Flag{
		cli.StringFlag{
			Name:        "config, c",
			Usage:       "HCL config file",
			EnvVar:      common.ConfigEnv,
			Destination: &daemonConfig,
		},
		cli.StringFlag{
			Name:        "listen, l",
			Usage:       "override the listen address",
			Destination: &daemonListen,
		},
		cli.StringFlag{
			Name:        "trace-db",
			Usage:       "override the trace database path",
			Destination: &daemonTraceDB,
		},
		cli.BoolFlag{
			Name:        "event-log",
			Usage:       "also log to the Windows Event Log",
			Destination: &daemonEventLog,
		},
	}
)

func startDaemon(ctx *cli.Context) error {
	cfg, err := loadDaemonConfig()
	if err != nil {
		cmdcommon.PrintRuntimeErr(ctx, "daemon", "load_config", err)
		return nil
	}
	l, err := daemonLogger(newLogger(cfg.LogLevel), daemonEventLog)
	if err != nil {
		cmdcommon.PrintRuntimeErr(ctx, "daemon", "event_log", err)
		return nil
	}
	defer l.Close()

	if cfg.RPCSecret == "" {
		cfg.RPCSecret = uuid.NewString()
		l.Warning("no rpc secret configured; generated %s (set %s to reuse one)", cfg.RPCSecret, common.RPCSecretEnv)
	}

	dc, err := initDaemonComponents(cfg, l)
	if err != nil {
		cmdcommon.PrintRuntimeErr(ctx, "daemon", "init", err)
		return nil
	}
	defer dc.Close()

	err = runDaemon(dc)
	if err != nil && !errors.Is(err, context.Canceled) {
		cmdcommon.PrintRuntimeErr(ctx, "daemon", "serve", err)
	}
	return nil
}

// runConsole runs the daemon until SIGINT or SIGTERM.
func runConsole(dc *DaemonComponents) error {
	sigCtx, stop := setupShutdownHandler()
	defer stop()
	return dc.Runner.Start(sigCtx)
}

// loadDaemonConfig reads the config file, when given, and applies flag and
// environment overrides.
func loadDaemonConfig() (*config.Config, error) {
	cfg := config.Default()
	if daemonConfig != "" {
		var err error
		cfg, err = config.Load(afero.NewOsFs(), daemonConfig, nil)
		if err != nil {
			return nil, err
		}
	}
	if daemonListen != "" {
		cfg.Listen = daemonListen
	}
	if daemonTraceDB != "" {
		cfg.TraceDB = daemonTraceDB
	}
	if s := os.Getenv(common.RPCSecretEnv); s != "" && cfg.RPCSecret == "" {
		cfg.RPCSecret = s
	}
	return cfg, cfg.Validate()
}

// DaemonComponents holds everything the daemon owns, so that it can be torn
// down in reverse order of creation.
type DaemonComponents struct {
	Trace  *trace.Recorder
	Engine *engine.Engine
	Server *server.Server
	Runner *daemon.Runner
	log    logger.Logger
}

// Close releases the engine and the trace database. The runner must have
// stopped.
func (c *DaemonComponents) Close() {
	c.log.Info("shutting down daemon")
	if c.Engine != nil {
		_ = c.Engine.Close()
	}
	if c.Trace != nil {
		if err := c.Trace.Close(); err != nil {
			c.log.Warning("trace: close: %v", err)
		}
		if n := c.Trace.Dropped(); n > 0 {
			c.log.Warning("trace: %d event(s) dropped", n)
		}
	}
	c.log.Info("daemon stopped")
}

func initDaemonComponents(cfg *config.Config, l logger.Logger) (*DaemonComponents, error) {
	dc := &DaemonComponents{log: l}

	var fs afero.Fs = afero.NewOsFs()
	if cfg.ScriptDir != "" {
		fs = afero.NewBasePathFs(fs, cfg.ScriptDir)
	}

	var hooks []sched.Hook
	if cfg.TraceDB != "" {
		rec, err := trace.Open(context.Background(), cfg.TraceDB, trace.Options{
			Logger: l,
			Names: func(id uint64) string {
				return dc.Engine.TaskName(id)
			},
		})
		if err != nil {
			return nil, err
		}
		dc.Trace = rec
		hooks = append(hooks, rec)
	}

	eng, err := engine.New(engine.Options{
		Fs:       fs,
		Logger:   l,
		Host:     cfg.Host,
		Timeouts: cfg.Timeouts,
		Hooks:    hooks,
		OnEvent: func(ev engine.Event) {
			dc.Server.Notifier().Publish(ev)
		},
	})
	if err != nil {
		dc.Close()
		return nil, err
	}
	dc.Engine = eng

	var ts server.TraceSource
	if dc.Trace != nil {
		ts = dc.Trace
	}
	dc.Server = server.NewServer(&server.RPCConfig{
		Secret:    cfg.RPCSecret,
		Version:   currentBuildArgs.Version,
		Commit:    currentBuildArgs.Commit,
		BuildType: currentBuildArgs.BuildType,
	}, eng, ts, l)

	dc.Runner = daemon.New(&daemon.Config{
		Listen: cfg.Listen,
		Jobs:   cfg.Jobs,
	}, &daemon.Dependencies{
		Service: dc.Server,
		Jobs:    eng,
		Logger:  l,
	})
	return dc, nil
}
