package command

import (
	"context"

	"github.com/pkg/errors"
	"github.com/radhika-singh-10/state-bootstrap/app/process"
	"github.com/radhika-singh-10/state-bootstrap/bootstrap"
	"github.com/radhika-singh-10/state-bootstrap/config"
	"github.com/urfave/cli/v2"
)

var RunCLI = &cli.Command{
	Name:      "run",
	Usage:     "Run an application as a child process and persist its state",
	ArgsUsage: "-- <command> [args...]",
	Action: func(ctx *cli.Context) error {
		args := ctx.Args().Slice()
		if len(args) == 0 {
			return cli.Exit("run needs a command", 2)
		}

		cfg := configFromContext(ctx)
		store, closeStore, err := config.OpenStore(cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		runCtx, stop := signalContext(ctx.Context)
		defer stop()

		err = bootstrap.Run(runCtx, store, cfg.StorageKey, process.New(args[0], args[1:]...))
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}
