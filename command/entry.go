package command

import (
	"fmt"

	"github.com/radhika-singh-10/state-bootstrap/config"
	"github.com/radhika-singh-10/state-bootstrap/kvstore"
	"github.com/urfave/cli/v2"
)

var EntryCLI = &cli.Command{
	Name:  "entry",
	Usage: "Inspect the durable entry",
	Subcommands: []*cli.Command{
		{
			Name:  "get",
			Usage: "Print the stored state",
			Action: func(ctx *cli.Context) error {
				return withEntry(ctx, func(entry *kvstore.Entry) error {
					value, err := entry.Read()
					if err != nil {
						return err
					}
					if value == nil {
						return cli.Exit("entry "+entry.Key()+" is absent", 1)
					}
					fmt.Fprintln(ctx.App.Writer, *value)
					return nil
				})
			},
		},
		{
			Name:  "clear",
			Usage: "Delete the stored state",
			Action: func(ctx *cli.Context) error {
				return withEntry(ctx, func(entry *kvstore.Entry) error {
					return entry.Remove()
				})
			},
		},
	},
}

func withEntry(ctx *cli.Context, fn func(*kvstore.Entry) error) error {
	cfg := configFromContext(ctx)
	store, closeStore, err := config.OpenStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	entry, err := kvstore.NewEntry(store, cfg.StorageKey)
	if err != nil {
		return err
	}
	return fn(entry)
}
