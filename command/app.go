package command

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/radhika-singh-10/state-bootstrap/logger"
	"github.com/urfave/cli/v2"
)

const AppName = "state-bootstrap"

// NewApp builds the command line application.
func NewApp() *cli.App {
	return &cli.App{
		Name:  AppName,
		Usage: "keep an application's state in a durable store across restarts",
		Flags: globalFlags(),
		Before: func(ctx *cli.Context) error {
			return logger.Configure(ctx.String(FlagLogLevel), ctx.String(FlagLogFormat))
		},
		Commands: []*cli.Command{
			RunCLI,
			ServeCLI,
			NodeCLI,
			EntryCLI,
		},
	}
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// runAll runs every task until one fails or ctx ends, then cancels the rest
// and returns the first error.
func runAll(ctx context.Context, tasks ...func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	for _, task := range tasks {
		wg.Add(1)
		go func(task func(context.Context) error) {
			defer wg.Done()
			if err := task(ctx); err != nil {
				once.Do(func() {
					firstErr = err
					cancel()
				})
			}
		}(task)
	}
	wg.Wait()
	return firstErr
}
