package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli"

	"github.com/warpdl/warpsched/cmd/common"
	"github.com/warpdl/warpsched/pkg/schedcli"
)

var (
	submitPriority string
	submitName     string
	submitTimeout  time.Duration
	submitRemote   bool
	submitEval     string

	submitFlags = append([]cli.Flag{
		cli.StringFlag{
			Name:        "priority, p",
			Usage:       "immediate, user-blocking, normal, low or idle",
			Value:       "normal",
			Destination: &submitPriority,
		},
		cli.StringFlag{
			Name:        "name, n",
			Usage:       "task name shown in events and traces (default: script file name)",
			Destination: &submitName,
		},
		cli.DurationFlag{
			Name:        "timeout, t",
			Usage:       "override the priority's timeout",
			Destination: &submitTimeout,
		},
		cli.BoolFlag{
			Name:        "remote, r",
			Usage:       "resolve the path in the daemon's script directory",
			Destination: &submitRemote,
		},
		cli.StringFlag{
			Name:        "eval, e",
			Usage:       "submit the given source instead of a file",
			Destination: &submitEval,
		},
	}, clientFlags...)
)

func submit(ctx *cli.Context) error {
	path := ctx.Args().First()
	if path == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	if path == "" && submitEval == "" {
		return common.PrintErrWithCmdHelp(ctx, errors.New("no script provided"))
	}

	opts := &schedcli.SubmitOpts{
		Name:     submitName,
		Priority: submitPriority,
		Timeout:  submitTimeout,
	}
	if opts.Name == "" && path != "" {
		opts.Name = filepath.Base(path)
	}

	var source string
	switch {
	case submitEval != "":
		source = submitEval
	case !submitRemote:
		b, err := os.ReadFile(path)
		if err != nil {
			common.PrintRuntimeErr(ctx, "submit", "read_script", err)
			return nil
		}
		source = string(b)
	}

	return withClient(ctx, "submit", func(c context.Context, client *schedcli.Client) error {
		var (
			id  string
			err error
		)
		if source != "" {
			id, err = client.Submit(c, source, opts)
		} else {
			id, err = client.SubmitPath(c, path, opts)
		}
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	})
}

func cancel(ctx *cli.Context) error {
	id := ctx.Args().First()
	if id == "help" {
		return cli.ShowCommandHelp(ctx, ctx.Command.Name)
	}
	if id == "" {
		return common.PrintErrWithCmdHelp(ctx, errors.New("no task id provided"))
	}
	return withClient(ctx, "cancel", func(c context.Context, client *schedcli.Client) error {
		if err := client.Cancel(c, id); err != nil {
			return err
		}
		fmt.Printf("warpsched: canceled task %s\n", id)
		return nil
	})
}
