package kvstore

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type failingStore struct {
	MemoryStore
	err error
}

func (fs *failingStore) Get(string) (string, bool, error) { return "", false, fs.err }
func (fs *failingStore) Set(string, string) error         { return fs.err }
func (fs *failingStore) Delete(string) error              { return fs.err }

func TestEntryLifecycle(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Set("other", "untouched"))

	entry, err := NewEntry(NewKeyValueStore(store), "tradeForallStorage")
	require.NoError(t, err)
	require.Equal(t, "tradeForallStorage", entry.Key())

	value, err := entry.Read()
	require.NoError(t, err)
	require.Nil(t, value)

	require.NoError(t, entry.Write(`{"count":1}`))
	value, err = entry.Read()
	require.NoError(t, err)
	require.NotNil(t, value)
	require.Equal(t, `{"count":1}`, *value)

	require.NoError(t, entry.Remove())
	value, err = entry.Read()
	require.NoError(t, err)
	require.Nil(t, value)

	dump, err := store.Dump()
	require.NoError(t, err)
	require.Equal(t, map[string]string{"other": "untouched"}, dump)
}

func TestEntryRejectsEmptyKey(t *testing.T) {
	_, err := NewEntry(NewMemoryStore(), "")
	require.ErrorIs(t, err, ErrEmptyKey)
}

func TestEntryPropagatesStoreFaults(t *testing.T) {
	boom := errors.New("store unavailable")
	entry, err := NewEntry(NewKeyValueStore(&failingStore{err: boom}), "k")
	require.NoError(t, err)

	_, err = entry.Read()
	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, entry.Write("v"), boom)
	require.ErrorIs(t, entry.Remove(), boom)
}
