package raftnode

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/radhika-singh-10/state-bootstrap/kvstore"
	"github.com/stretchr/testify/require"
)

func startSingleNode(t *testing.T, dataDir, storePath string, threshold uint64) *RaftNode {
	kv := kvstore.NewKeyValueStore(kvstore.NewJsonStore(storePath))
	rn, err := NewRaftNode(Config{
		ID:                1,
		Peers:             []string{"1=http://127.0.0.1:0"},
		DataDir:           dataDir,
		TickInterval:      10 * time.Millisecond,
		ElectionTick:      10,
		HeartbeatTick:     1,
		SnapshotThreshold: threshold,
	}, kv)
	require.NoError(t, err)
	go rn.Run()

	require.Eventually(t, rn.IsLeader, 10*time.Second, 10*time.Millisecond)
	return rn
}

func TestReplicatedStoreSingleNode(t *testing.T) {
	dir := t.TempDir()
	rn := startSingleNode(t, filepath.Join(dir, "raft"), filepath.Join(dir, "kv.json"), 1000)
	defer rn.Stop()

	store := NewReplicatedStore(rn)

	_, ok, err := store.Get("k")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Set("k", `{"count":1}`))
	require.NoError(t, store.Set("k", `{"count":2}`))
	value, ok, err := store.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `{"count":2}`, value)

	require.NoError(t, store.Set("other", "x"))
	require.NoError(t, store.Delete("k"))
	_, ok, err = store.Get("k")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Restore(map[string]string{"a": "1"}))
	dump, err := store.Dump()
	require.NoError(t, err)
	require.Equal(t, map[string]string{"a": "1"}, dump)
}

func TestReplicatedStoreRestart(t *testing.T) {
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "raft")
	storePath := filepath.Join(dir, "kv.json")

	rn := startSingleNode(t, dataDir, storePath, 5)
	store := NewReplicatedStore(rn)
	for i := 0; i < 12; i++ {
		require.NoError(t, store.Set("k", string(rune('a'+i))))
	}
	rn.Stop()

	snaps, err := filepath.Glob(filepath.Join(dataDir, "*.snap"))
	require.NoError(t, err)
	require.Len(t, snaps, 1)

	rn = startSingleNode(t, dataDir, storePath, 5)
	defer rn.Stop()
	store = NewReplicatedStore(rn)

	value, ok, err := store.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "l", value)

	require.NoError(t, store.Set("k", "m"))
	value, _, err = store.Get("k")
	require.NoError(t, err)
	require.Equal(t, "m", value)
}

func TestNewRaftNodeValidates(t *testing.T) {
	kv := kvstore.NewKeyValueStore(kvstore.NewMemoryStore())

	_, err := NewRaftNode(Config{DataDir: t.TempDir()}, kv)
	require.Error(t, err)

	_, err = NewRaftNode(Config{ID: 1}, kv)
	require.Error(t, err)

	_, err = NewRaftNode(Config{ID: 1, DataDir: t.TempDir(), Peers: []string{"bogus"}}, kv)
	require.Error(t, err)
}
