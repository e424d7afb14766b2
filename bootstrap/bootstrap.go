// Package bootstrap keeps an application's state in a durable key-value entry
// across restarts: the prior state is read once at start, and every snapshot
// the application emits afterwards replaces or clears it.
package bootstrap

import (
	"context"

	"github.com/pkg/errors"
	"github.com/radhika-singh-10/state-bootstrap/app"
	"github.com/radhika-singh-10/state-bootstrap/kvstore"
	"github.com/radhika-singh-10/state-bootstrap/logger"
)

var (
	ErrNoApplication = errors.New("no application configured")
	ErrNoStore       = errors.New("no store configured")
)

// Run loads the application from the entry under key and persists its
// snapshots until the stream ends, ctx is cancelled or a fault occurs. The
// same key drives both directions.
func Run(ctx context.Context, store kvstore.PersistentStore, key string, application app.Application) error {
	if store == nil {
		return ErrNoStore
	}
	entry, err := kvstore.NewEntry(store, key)
	if err != nil {
		return err
	}

	inst, err := NewLoader(entry).Load(ctx, application)
	if err != nil {
		return err
	}
	defer inst.Close()

	err = NewSink(entry).Consume(ctx, inst.Outgoing())
	if err != nil {
		logger.Log.WithField("key", key).WithError(err).Errorln("Persistence stopped")
		return err
	}

	if w, ok := inst.(app.Waiter); ok {
		return w.Wait()
	}
	return nil
}
