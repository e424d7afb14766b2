package command

import (
	"context"

	"github.com/pkg/errors"
	"github.com/radhika-singh-10/state-bootstrap/bootstrap"
	"github.com/radhika-singh-10/state-bootstrap/config"
	"github.com/radhika-singh-10/state-bootstrap/httpapi"
	"github.com/urfave/cli/v2"
)

var ServeCLI = &cli.Command{
	Name:  "serve",
	Usage: "Host a browser application's state over HTTP",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  FlagListen,
			Usage: "ports listen URL (GET /flags, POST /ports/storeToCache)",
			Value: "http://localhost:8080",
		},
		&cli.StringFlag{
			Name:  FlagApiListen,
			Usage: "optional store API listen URL",
		},
	},
	Action: func(ctx *cli.Context) error {
		cfg := configFromContext(ctx)
		store, closeStore, err := config.OpenStore(cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		runCtx, stop := signalContext(ctx.Context)
		defer stop()

		ports := httpapi.NewPortServer()
		tasks := []func(context.Context) error{
			func(c context.Context) error {
				return ports.ListenAndServe(c, ctx.String(FlagListen))
			},
			func(c context.Context) error {
				return bootstrap.Run(c, store, cfg.StorageKey, ports)
			},
		}

		if listen := ctx.String(FlagApiListen); listen != "" {
			api, err := httpapi.NewApiServer(store, cfg.StorageKey, nil)
			if err != nil {
				return err
			}
			tasks = append(tasks, func(c context.Context) error {
				return api.ListenAndServe(c, listen)
			})
		}

		err = runAll(runCtx, tasks...)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}
