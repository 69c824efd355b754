package cmd

import (
	"context"

	"github.com/urfave/cli"

	cmdcommon "github.com/warpdl/warpsched/cmd/common"
	"github.com/warpdl/warpsched/common"
	"github.com/warpdl/warpsched/pkg/schedcli"
)

var (
	rpcAddr   string
	rpcSecret string

	clientFlags = []cli.Flag{
		cli.StringFlag{
			Name:        "addr",
			Usage:       "daemon address",
			Value:       common.DefaultAddr,
			EnvVar:      common.AddrEnv,
			Destination: &rpcAddr,
		},
		cli.StringFlag{
			Name:        "secret",
			Usage:       "RPC bearer token",
			EnvVar:      common.RPCSecretEnv,
			Destination: &rpcSecret,
		},
	}
)

// dialDaemon connects to the daemon named by the client flags. Tests replace it.
var dialDaemon = func(ctx context.Context) (*schedcli.Client, error) {
	return schedcli.Dial(ctx, schedcli.Options{Addr: rpcAddr, Secret: rpcSecret})
}

// withClient dials the daemon and runs fn with a call timeout. Failures are
// printed and swallowed.
func withClient(ctx *cli.Context, name string, fn func(context.Context, *schedcli.Client) error) error {
	callCtx, cancel := context.WithTimeout(context.Background(), DEF_CALL_TIMEOUT)
	defer cancel()
	client, err := dialDaemon(callCtx)
	if err != nil {
		cmdcommon.PrintRuntimeErr(ctx, name, "new_client", err)
		return nil
	}
	defer client.Close()
	if err := fn(callCtx, client); err != nil {
		cmdcommon.PrintRuntimeErr(ctx, name, "call", err)
	}
	return nil
}
