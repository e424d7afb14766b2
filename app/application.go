// Package app defines the boundary between the bootstrap host and the hosted
// application. The host knows nothing about the shape of application state:
// it hands over the raw persisted string at start and receives opaque
// snapshots afterwards.
package app

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/pkg/errors"
)

var ErrClosed = errors.New("application instance closed")

// Snapshot is a point-in-time representation of application state. A nil
// Snapshot, or raw JSON "null", means there is no state to keep.
type Snapshot any

// Application starts an instance seeded with the prior persisted state. A nil
// prior means nothing was stored; otherwise it is the raw stored string,
// passed through without parsing.
type Application interface {
	Init(ctx context.Context, prior *string) (Instance, error)
}

// Instance is a running application. Outgoing delivers snapshots in emission
// order; it is closed when the application finishes.
type Instance interface {
	Outgoing() <-chan Snapshot
	Close() error
}

// Waiter is implemented by instances that report an exit status once their
// outgoing stream has closed.
type Waiter interface {
	Wait() error
}

// Func adapts a plain function to Application.
type Func func(ctx context.Context, prior *string) (Instance, error)

func (f Func) Init(ctx context.Context, prior *string) (Instance, error) {
	return f(ctx, prior)
}

// IsEmpty reports whether s is the "no state" signal.
func IsEmpty(s Snapshot) bool {
	switch v := s.(type) {
	case nil:
		return true
	case json.RawMessage:
		return isNullText(v)
	case []byte:
		return isNullText(v)
	}
	return false
}

func isNullText(b []byte) bool {
	b = bytes.TrimSpace(b)
	return len(b) == 0 || bytes.Equal(b, []byte("null"))
}

// Encode serializes a non-empty snapshot to compact JSON. Raw JSON snapshots
// are validated and compacted rather than re-encoded as strings.
func Encode(s Snapshot) (string, error) {
	if IsEmpty(s) {
		return "", errors.New("cannot encode empty snapshot")
	}

	var raw []byte
	switch v := s.(type) {
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	}
	if raw != nil {
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err != nil {
			return "", errors.Wrap(err, "invalid raw snapshot")
		}
		return buf.String(), nil
	}

	out, err := json.Marshal(s)
	if err != nil {
		return "", errors.Wrap(err, "encode snapshot")
	}
	return string(out), nil
}
