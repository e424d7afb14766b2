package kvstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSqliteStore(t *testing.T) PersistentStore {
	store, err := NewSqliteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func storeBackends(t *testing.T) map[string]PersistentStore {
	return map[string]PersistentStore{
		"memory": NewMemoryStore(),
		"json":   NewJsonStore(filepath.Join(t.TempDir(), "nested", "store.json")),
		"sqlite": newSqliteStore(t),
	}
}

func TestPersistentStoreContract(t *testing.T) {
	for name, store := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := store.Get("missing")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.Set("a", "1"))
			require.NoError(t, store.Set("b", "2"))
			require.NoError(t, store.Set("a", "3"))

			value, ok, err := store.Get("a")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "3", value)

			require.NoError(t, store.Set("empty", ""))
			value, ok, err = store.Get("empty")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "", value)

			require.NoError(t, store.Delete("a"))
			require.NoError(t, store.Delete("a"))
			_, ok, err = store.Get("a")
			require.NoError(t, err)
			assert.False(t, ok)

			dump, err := store.Dump()
			require.NoError(t, err)
			assert.Equal(t, map[string]string{"b": "2", "empty": ""}, dump)

			require.NoError(t, store.Restore(map[string]string{"c": "4"}))
			dump, err = store.Dump()
			require.NoError(t, err)
			assert.Equal(t, map[string]string{"c": "4"}, dump)
		})
	}
}

func TestJsonStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	require.NoError(t, NewJsonStore(path).Set("k", `{"count":1}`))

	value, ok, err := NewJsonStore(path).Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `{"count":1}`, value)

	matches, err := filepath.Glob(path + ".tmp-*")
	require.NoError(t, err)
	require.Empty(t, matches)
}

func TestJsonStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0644))

	store := NewJsonStore(path)
	_, _, err := store.Get("k")
	require.Error(t, err)
	require.Error(t, store.Set("k", "v"))
}

func TestSqliteStoreFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := NewSqliteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Set("k", "v"))
	require.NoError(t, store.Close())

	store, err = NewSqliteStore(path)
	require.NoError(t, err)
	defer store.Close()
	value, ok, err := store.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", value)
}
