package cmd

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli"

	"github.com/warpdl/warpsched/common"
	"github.com/warpdl/warpsched/pkg/schedcli"
)

func stats(ctx *cli.Context) error {
	if ctx.Args().First() == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	return withClient(ctx, "stats", func(c context.Context, client *schedcli.Client) error {
		st, err := client.Stats(c)
		if err != nil {
			return err
		}
		fmt.Print(renderStats(st))
		return nil
	})
}

func renderStats(st *common.StatusResult) string {
	state := "running"
	if st.Paused {
		state = "paused"
	}
	txt := fmt.Sprintf("Scheduler (%s host, %s)\n", st.Host, state)
	if st.Host == "frame" {
		txt += fmt.Sprintf("  frame budget   %s over %s frames\n", st.Budget, humanize.Comma(int64(st.Frames)))
	}
	rows := []struct {
		name string
		n    uint64
	}{
		{"pending", uint64(st.Stats.Pending)},
		{"scheduled", st.Stats.Scheduled},
		{"continuations", st.Stats.Continuations},
		{"executed", st.Stats.Executed},
		{"failed", st.Stats.Failed},
		{"canceled", st.Stats.Canceled},
		{"flushes", st.Stats.Flushes},
		{"drains", st.Stats.Drains},
		{"yields", st.Stats.Yields},
	}
	for _, r := range rows {
		txt += fmt.Sprintf("  %-14s %s\n", r.name, humanize.Comma(int64(r.n)))
	}
	return txt
}

func pause(ctx *cli.Context) error {
	return withClient(ctx, "pause", func(c context.Context, client *schedcli.Client) error {
		if err := client.Pause(c); err != nil {
			return err
		}
		fmt.Println("warpsched: scheduler paused")
		return nil
	})
}

func resume(ctx *cli.Context) error {
	return withClient(ctx, "resume", func(c context.Context, client *schedcli.Client) error {
		if err := client.Resume(c); err != nil {
			return err
		}
		fmt.Println("warpsched: scheduler resumed")
		return nil
	})
}
