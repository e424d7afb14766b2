package config

import (
	"github.com/pkg/errors"
	"github.com/radhika-singh-10/state-bootstrap/kvstore"
)

// DefaultStorageKey names the durable entry when none is configured.
const DefaultStorageKey = "tradeForallStorage"

const (
	BackendJSON   = "json"
	BackendSqlite = "sqlite"
	BackendMemory = "memory"
)

var ErrUnknownBackend = errors.New("unknown store backend")

type Config struct {
	// StorageKey is shared by the loader and the sink.
	StorageKey string
	Backend    string
	StorePath  string
	LogLevel   string
	LogFormat  string
}

func Default() Config {
	return Config{
		StorageKey: DefaultStorageKey,
		Backend:    BackendJSON,
		StorePath:  "state.json",
		LogLevel:   "info",
		LogFormat:  "json",
	}
}

func (c Config) Validate() error {
	if c.StorageKey == "" {
		return errors.Wrap(kvstore.ErrEmptyKey, "storage key")
	}
	switch c.Backend {
	case BackendJSON, BackendSqlite:
		if c.StorePath == "" {
			return errors.Errorf("backend %s needs a store path", c.Backend)
		}
	case BackendMemory:
	default:
		return errors.Wrapf(ErrUnknownBackend, "%q", c.Backend)
	}
	return nil
}

// OpenStore builds the configured backend. The returned close func is never nil.
func OpenStore(c Config) (kvstore.PersistentStore, func() error, error) {
	noop := func() error { return nil }
	if err := c.Validate(); err != nil {
		return nil, noop, err
	}

	switch c.Backend {
	case BackendJSON:
		return kvstore.NewJsonStore(c.StorePath), noop, nil
	case BackendSqlite:
		store, err := kvstore.NewSqliteStore(c.StorePath)
		if err != nil {
			return nil, noop, err
		}
		return store, store.Close, nil
	default:
		return kvstore.NewMemoryStore(), noop, nil
	}
}
