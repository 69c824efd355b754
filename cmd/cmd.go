package cmd

import (
	"fmt"
	"runtime"

	"github.com/urfave/cli"

	"github.com/warpdl/warpsched/cmd/common"
)

type BuildArgs struct {
	Version   string
	BuildType string
	Date      string
	Commit    string
}

var currentBuildArgs BuildArgs

func Execute(args []string, bArgs BuildArgs) error {
	currentBuildArgs = bArgs
	app := cli.App{
		Name:                  "warpsched",
		HelpName:              "warpsched",
		Usage:                 "A cooperative priority task scheduler for scripts.",
		Version:               fmt.Sprintf("%s-%s", bArgs.Version, bArgs.BuildType),
		UsageText:             "warpsched <command> [arguments...]",
		Description:           DESCRIPTION,
		CustomAppHelpTemplate: HELP_TEMPL,
		OnUsageError:          common.UsageErrorCallback,
		Commands: []cli.Command{
			{
				Name:                   "run",
				Usage:                  "run scripts on a local scheduler",
				Description:            RunDescription,
				OnUsageError:           common.UsageErrorCallback,
				CustomHelpTemplate:     CMD_HELP_TEMPL,
				Action:                 run,
				Flags:                  runFlags,
				UseShortOptionHandling: true,
			},
			{
				Name:               "daemon",
				Usage:              "start the scheduler daemon",
				Description:        DaemonDescription,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             startDaemon,
				Flags:              daemonFlags,
			},
			{
				Name:               "submit",
				Aliases:            []string{"s"},
				Usage:              "submit a script to the daemon",
				Description:        SubmitDescription,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             submit,
				Flags:              submitFlags,
			},
			{
				Name:               "cancel",
				Usage:              "cancel a pending task",
				Description:        CancelDescription,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             cancel,
				Flags:              clientFlags,
			},
			{
				Name:               "stats",
				Usage:              "show scheduler counters",
				Description:        StatsDescription,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             stats,
				Flags:              clientFlags,
			},
			{
				Name:               "pause",
				Usage:              "stop running tasks until resumed",
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             pause,
				Flags:              clientFlags,
			},
			{
				Name:               "resume",
				Usage:              "resume a paused scheduler",
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             resume,
				Flags:              clientFlags,
			},
			{
				Name:               "trace",
				Usage:              "show recent task events",
				Description:        TraceDescription,
				OnUsageError:       common.UsageErrorCallback,
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             traceCmd,
				Flags:              traceFlags,
			},
			{
				Name:    "help",
				Aliases: []string{"h"},
				Usage:   "prints the help message",
				Action:  common.Help,
			},
			{
				Name:               "version",
				Aliases:            []string{"v"},
				Usage:              "prints installed version of warpsched",
				UsageText:          " ",
				CustomHelpTemplate: CMD_HELP_TEMPL,
				Action:             common.GetVersion,
			},
		},
		Action:      common.Help,
		HideHelp:    true,
		HideVersion: true,
	}
	common.VersionCmdStr = fmt.Sprintf("%s %s (%s_%s)\nBuild: %s=%s\n",
		app.Name,
		app.Version,
		runtime.GOOS,
		runtime.GOARCH,
		bArgs.Date, bArgs.Commit,
	)
	return app.Run(args)
}
