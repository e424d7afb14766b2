package bootstrap

import (
	"context"

	"github.com/pkg/errors"
	"github.com/radhika-singh-10/state-bootstrap/app"
	"github.com/radhika-singh-10/state-bootstrap/kvstore"
	"github.com/radhika-singh-10/state-bootstrap/logger"
)

// Loader seeds an application from the durable entry.
type Loader struct {
	Entry *kvstore.Entry
}

func NewLoader(entry *kvstore.Entry) *Loader {
	return &Loader{Entry: entry}
}

// Load reads the entry once and starts the application with it. The stored
// string is passed through untouched; whether it still makes sense is the
// application's call.
func (l *Loader) Load(ctx context.Context, application app.Application) (app.Instance, error) {
	if application == nil {
		return nil, ErrNoApplication
	}

	prior, err := l.Entry.Read()
	if err != nil {
		return nil, errors.Wrapf(err, "read entry %s", l.Entry.Key())
	}
	logger.Log.WithField("key", l.Entry.Key()).WithField("present", prior != nil).Infoln("Loaded prior state")

	inst, err := application.Init(ctx, prior)
	if err != nil {
		return nil, errors.Wrap(err, "init application")
	}
	return inst, nil
}
