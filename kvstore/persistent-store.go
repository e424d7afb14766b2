package kvstore

import "github.com/pkg/errors"

var ErrEmptyKey = errors.New("key must not be empty")

// PersistentStore is a durable string key-value store. Get reports whether the
// key was present; a missing key is not an error.
type PersistentStore interface {
	Set(key, value string) error
	Get(key string) (string, bool, error)
	Delete(key string) error
	Dump() (map[string]string, error)
	Restore(data map[string]string) error
}
