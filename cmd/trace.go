package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli"

	cmdcommon "github.com/warpdl/warpsched/cmd/common"
	"github.com/warpdl/warpsched/common"
	"github.com/warpdl/warpsched/pkg/schedcli"
)

var (
	traceLimit int

	traceFlags = append([]cli.Flag{
		cli.IntFlag{
			Name:        "limit, n",
			Usage:       "number of events to show",
			Value:       20,
			Destination: &traceLimit,
		},
	}, clientFlags...)
)

func traceCmd(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	return withClient(ctx, "trace", func(c context.Context, client *schedcli.Client) error {
		events, err := client.Trace(c, traceLimit)
		if err != nil {
			return err
		}
		fmt.Print(renderTrace(events, time.Now()))
		return nil
	})
}

func renderTrace(events []common.TraceEntry, now time.Time) string {
	if len(events) == 0 {
		return "warpsched: no task events recorded\n"
	}
	txt := "----------------------------------------------------------------------------"
	txt += "\n| Task |         Name         |    Event   |   Priority    |     When      |"
	txt += "\n|------|----------------------|------------|---------------|---------------|"
	var late bool
	for _, ev := range events {
		kind := ev.Kind
		if ev.DidTimeout {
			kind += "*"
			late = true
		}
		txt += fmt.Sprintf("\n| %s | %s | %s | %s | %s |",
			cmdcommon.Beaut(fmt.Sprint(ev.TaskID), 4),
			cmdcommon.Fit(ev.Name, 20),
			cmdcommon.Beaut(kind, 10),
			cmdcommon.Beaut(ev.Priority, 13),
			cmdcommon.Fit(humanize.RelTime(ev.At, now, "ago", "from now"), 13),
		)
		if ev.Error != "" {
			txt += "\n|      `-> " + ev.Error
		}
	}
	txt += "\n----------------------------------------------------------------------------\n"
	if late {
		txt += "* ran after its timeout expired\n"
	}
	return txt
}
