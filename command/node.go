package command

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/radhika-singh-10/state-bootstrap/bootstrap"
	"github.com/radhika-singh-10/state-bootstrap/config"
	"github.com/radhika-singh-10/state-bootstrap/httpapi"
	"github.com/radhika-singh-10/state-bootstrap/kvstore"
	"github.com/radhika-singh-10/state-bootstrap/raftnode"
	"github.com/urfave/cli/v2"
)

var NodeCLI = &cli.Command{
	Name:  "node",
	Usage: "Run a raft node replicating the store",
	Flags: []cli.Flag{
		&cli.Uint64Flag{Name: FlagID, Usage: "node ID", Value: 1},
		&cli.StringFlag{Name: FlagListenClientURL, Usage: "client listen URL", Value: "http://localhost:2379"},
		&cli.StringFlag{Name: FlagListenPeerURL, Usage: "peer listen URL", Value: "http://localhost:2380"},
		&cli.StringFlag{Name: FlagInitialCluster, Usage: "initial cluster configuration (1=http://host:port,...)"},
		&cli.BoolFlag{Name: FlagJoin, Usage: "join an existing cluster"},
		&cli.StringFlag{Name: FlagDataDir, Usage: "snapshot and log dir", Value: "raft-data"},
		&cli.StringFlag{Name: FlagKeyStoreDir, Usage: "local store dir", Value: "."},
		&cli.StringFlag{Name: FlagAppListen, Usage: "optional ports listen URL for a browser application"},
		&cli.DurationFlag{Name: FlagTickInterval, Usage: "raft tick interval", Value: 100 * time.Millisecond},
	},
	Action: func(ctx *cli.Context) error {
		cfg := configFromContext(ctx)
		id := ctx.Uint64(FlagID)

		initialCluster := ctx.String(FlagInitialCluster)
		if initialCluster == "" {
			initialCluster = strconv.FormatUint(id, 10) + "=" + ctx.String(FlagListenPeerURL)
		}

		cfg.StorePath = localStorePath(ctx.String(FlagKeyStoreDir), cfg.Backend, id)
		local, closeStore, err := config.OpenStore(cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		rn, err := raftnode.NewRaftNode(raftnode.Config{
			ID:           id,
			Peers:        strings.Split(initialCluster, ","),
			DataDir:      ctx.String(FlagDataDir),
			Join:         ctx.Bool(FlagJoin),
			TickInterval: ctx.Duration(FlagTickInterval),
		}, kvstore.NewKeyValueStore(local))
		if err != nil {
			return err
		}
		go rn.Run()
		defer rn.Stop()

		runCtx, stop := signalContext(ctx.Context)
		defer stop()

		// The first election can outlast a single store operation, so leader
		// waits run until shutdown.
		replicated := raftnode.NewReplicatedStore(rn).WithContext(runCtx)
		api, err := httpapi.NewApiServer(replicated, cfg.StorageKey, rn)
		if err != nil {
			return err
		}
		peer := &httpapi.PeerServer{Receive: rn.Transport.Receive}

		tasks := []func(context.Context) error{
			func(c context.Context) error { return api.ListenAndServe(c, ctx.String(FlagListenClientURL)) },
			func(c context.Context) error { return peer.ListenAndServe(c, ctx.String(FlagListenPeerURL)) },
		}
		if listen := ctx.String(FlagAppListen); listen != "" {
			ports := httpapi.NewPortServer()
			tasks = append(tasks,
				func(c context.Context) error { return ports.ListenAndServe(c, listen) },
				func(c context.Context) error { return bootstrap.Run(c, replicated, cfg.StorageKey, ports) },
			)
		}

		err = runAll(runCtx, tasks...)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func localStorePath(dir, backend string, id uint64) string {
	ext := ".json"
	if backend == config.BackendSqlite {
		ext = ".db"
	}
	return filepath.Join(dir, "data-node"+strconv.FormatUint(id, 10)+ext)
}
