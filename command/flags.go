package command

import (
	"github.com/radhika-singh-10/state-bootstrap/config"
	"github.com/urfave/cli/v2"
)

const (
	FlagKey       = "key"
	FlagBackend   = "backend"
	FlagStorePath = "store-path"
	FlagLogLevel  = "log-level"
	FlagLogFormat = "log-format"

	FlagListen    = "listen"
	FlagApiListen = "api-listen"

	FlagID              = "id"
	FlagListenClientURL = "listen-client-url"
	FlagListenPeerURL   = "listen-peer-url"
	FlagInitialCluster  = "initial-cluster"
	FlagJoin            = "join"
	FlagDataDir         = "data-dir"
	FlagKeyStoreDir     = "key-store-dir"
	FlagAppListen       = "app-listen"
	FlagTickInterval    = "tick-interval"
)

func globalFlags() []cli.Flag {
	defaults := config.Default()
	return []cli.Flag{
		&cli.StringFlag{
			Name:    FlagKey,
			Usage:   "storage key of the durable entry",
			Value:   defaults.StorageKey,
			EnvVars: []string{"STATE_KEY"},
		},
		&cli.StringFlag{
			Name:    FlagBackend,
			Usage:   "store backend: json, sqlite or memory",
			Value:   defaults.Backend,
			EnvVars: []string{"STATE_BACKEND"},
		},
		&cli.StringFlag{
			Name:    FlagStorePath,
			Usage:   "store file (json) or database (sqlite) path",
			Value:   defaults.StorePath,
			EnvVars: []string{"STATE_STORE_PATH"},
		},
		&cli.StringFlag{
			Name:    FlagLogLevel,
			Usage:   "log level",
			Value:   defaults.LogLevel,
			EnvVars: []string{"STATE_LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    FlagLogFormat,
			Usage:   "log format: json or text",
			Value:   defaults.LogFormat,
			EnvVars: []string{"STATE_LOG_FORMAT"},
		},
	}
}

func configFromContext(ctx *cli.Context) config.Config {
	return config.Config{
		StorageKey: ctx.String(FlagKey),
		Backend:    ctx.String(FlagBackend),
		StorePath:  ctx.String(FlagStorePath),
		LogLevel:   ctx.String(FlagLogLevel),
		LogFormat:  ctx.String(FlagLogFormat),
	}
}
