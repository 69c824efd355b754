package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"
	"github.com/urfave/cli"
	"github.com/vbauerster/mpb/v8"

	"github.com/warpdl/warpsched/cmd/common"
	"github.com/warpdl/warpsched/internal/config"
	"github.com/warpdl/warpsched/internal/engine"
	"github.com/warpdl/warpsched/pkg/logger"
	"github.com/warpdl/warpsched/pkg/sched"
)

var (
	runHost      string
	runRefreshHz int
	runPriority  string
	runProgress  bool
	runDeadline  time.Duration
	runLogLevel  string

	runFlags = []cli.Flag{
		cli.StringFlag{
			Name:        "host",
			Usage:       `scheduler host, "frame" or "timer"`,
			Value:       config.HostFrame,
			Destination: &runHost,
		},
		cli.IntFlag{
			Name:        "refresh-hz",
			Usage:       "frame rate of the frame host (default: 60)",
			Destination: &runRefreshHz,
		},
		cli.StringFlag{
			Name:        "priority, p",
			Usage:       "priority of the submitted scripts",
			Value:       "normal",
			Destination: &runPriority,
		},
		cli.BoolFlag{
			Name:        "progress, b",
			Usage:       "show a progress bar of finished scripts",
			Destination: &runProgress,
		},
		cli.DurationFlag{
			Name:        "deadline, d",
			Usage:       "give up waiting after this long (default: no limit)",
			Destination: &runDeadline,
		},
		cli.StringFlag{
			Name:        "log-level",
			Usage:       "debug, info, warning or error",
			Value:       "warning",
			Destination: &runLogLevel,
		},
	}
)

// runFs is where run reads scripts. Tests replace it.
var runFs afero.Fs = afero.NewOsFs()

func run(ctx *cli.Context) error {
	paths := []string(ctx.Args())
	if len(paths) == 0 {
		return common.PrintErrWithCmdHelp(ctx, errors.New("no script provided"))
	}
	if paths[0] == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	prio, err := sched.ParsePriority(runPriority)
	if err != nil {
		return common.PrintErrWithCmdHelp(ctx, err)
	}
	if runHost != config.HostFrame && runHost != config.HostTimer {
		return common.PrintErrWithCmdHelp(ctx, fmt.Errorf("unknown host %q", runHost))
	}
	lvl, err := logger.ParseLevel(runLogLevel)
	if err != nil {
		return common.PrintErrWithCmdHelp(ctx, err)
	}
	l := newLogger(lvl)

	var (
		p   *mpb.Progress
		bar *mpb.Bar
	)
	if runProgress {
		p = mpb.New(mpb.WithWidth(64), mpb.WithRefreshRate(30*time.Millisecond))
		bar = common.InitQueueBar(p, "Tasks", int64(len(paths)))
	}
	done := func() {
		if bar != nil {
			bar.Increment()
		}
	}

	var (
		mu       sync.Mutex
		failures []string
	)
	fail := func(name, msg string) {
		mu.Lock()
		failures = append(failures, fmt.Sprintf("%s: %s", name, msg))
		mu.Unlock()
	}

	eng, err := engine.New(engine.Options{
		Fs:     runFs,
		Logger: l,
		Host:   config.Host{Kind: runHost, RefreshHz: runRefreshHz},
		OnEvent: func(ev engine.Event) {
			switch ev.Kind {
			case engine.EventFailed:
				fail(ev.Name, ev.Error)
				done()
			case engine.EventCompleted, engine.EventCanceled:
				done()
			}
		},
	})
	if err != nil {
		common.PrintRuntimeErr(ctx, "run", "new_engine", err)
		return nil
	}
	defer eng.Close()

	runCtx, stop := setupShutdownHandler()
	defer stop()
	if runDeadline > 0 {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithTimeout(runCtx, runDeadline)
		defer cancelDeadline()
	}

	for _, path := range paths {
		name := filepath.Base(path)
		_, err := eng.Submit(runCtx, engine.Submission{Path: path, Name: name, Priority: prio})
		if err != nil {
			fail(name, err.Error())
			done()
		}
	}

	err = eng.Idle(runCtx, DEF_IDLE_POLL)
	if p != nil {
		if err != nil {
			bar.Abort(false)
		}
		p.Wait()
	}
	if err != nil {
		common.PrintRuntimeErr(ctx, "run", "wait", err)
	}

	mu.Lock()
	defer mu.Unlock()
	for _, f := range failures {
		fmt.Println("failed:", f)
	}
	if len(failures) > 0 {
		return fmt.Errorf("%d of %d script(s) failed", len(failures), len(paths))
	}
	return nil
}
