package bootstrap

import (
	"context"

	"github.com/pkg/errors"
	"github.com/radhika-singh-10/state-bootstrap/app"
	"github.com/radhika-singh-10/state-bootstrap/kvstore"
	"github.com/radhika-singh-10/state-bootstrap/logger"
)

// Sink writes every snapshot an application emits back to the durable entry.
type Sink struct {
	Entry *kvstore.Entry
}

func NewSink(entry *kvstore.Entry) *Sink {
	return &Sink{Entry: entry}
}

// Apply removes the entry for an empty snapshot and overwrites it otherwise.
// A snapshot that encodes to null, such as a nil map or pointer, is empty.
func (s *Sink) Apply(snapshot app.Snapshot) error {
	log := logger.Log.WithField("key", s.Entry.Key())

	var value string
	if !app.IsEmpty(snapshot) {
		var err error
		if value, err = app.Encode(snapshot); err != nil {
			return err
		}
	}
	if value == "" || value == "null" {
		if err := s.Entry.Remove(); err != nil {
			return errors.Wrapf(err, "remove entry %s", s.Entry.Key())
		}
		log.Debugln("Cleared state")
		return nil
	}

	if err := s.Entry.Write(value); err != nil {
		return errors.Wrapf(err, "write entry %s", s.Entry.Key())
	}
	log.WithField("bytes", len(value)).Debugln("Stored state")
	return nil
}

// Consume applies snapshots one at a time in arrival order until the stream
// closes. The first fault stops consumption and is returned.
func (s *Sink) Consume(ctx context.Context, stream <-chan app.Snapshot) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snapshot, ok := <-stream:
			if !ok {
				return nil
			}
			if err := s.Apply(snapshot); err != nil {
				return err
			}
		}
	}
}
