package raftnode

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/radhika-singh-10/state-bootstrap/app"
	"github.com/radhika-singh-10/state-bootstrap/app/apptest"
	"github.com/radhika-singh-10/state-bootstrap/bootstrap"
	"github.com/radhika-singh-10/state-bootstrap/kvstore"
	"github.com/stretchr/testify/require"
)

const stateKey = "tradeForallStorage"

// appliedOps records the mutations raft applies to the local store.
type appliedOps struct {
	*kvstore.MemoryStore
	mu  sync.Mutex
	ops []string
}

func (ao *appliedOps) Set(key, value string) error {
	ao.mu.Lock()
	ao.ops = append(ao.ops, "set "+key+" "+value)
	ao.mu.Unlock()
	return ao.MemoryStore.Set(key, value)
}

func (ao *appliedOps) Delete(key string) error {
	ao.mu.Lock()
	ao.ops = append(ao.ops, "delete "+key)
	ao.mu.Unlock()
	return ao.MemoryStore.Delete(key)
}

func (ao *appliedOps) recorded() []string {
	ao.mu.Lock()
	defer ao.mu.Unlock()
	return append([]string(nil), ao.ops...)
}

// newUnelectedNode starts a node without waiting for it to win an election.
func newUnelectedNode(t *testing.T, cfg Config) (*RaftNode, *appliedOps) {
	local := &appliedOps{MemoryStore: kvstore.NewMemoryStore()}
	cfg.ID = 1
	cfg.Peers = []string{"1=http://127.0.0.1:0"}
	cfg.DataDir = filepath.Join(t.TempDir(), "raft")

	rn, err := NewRaftNode(cfg, kvstore.NewKeyValueStore(local))
	require.NoError(t, err)
	go rn.Run()
	t.Cleanup(rn.Stop)
	return rn, local
}

func TestBootstrapOverReplicatedStoreWithDefaultTicks(t *testing.T) {
	if testing.Short() {
		t.Skip("first election with default ticks takes 10-20s")
	}
	rn, local := newUnelectedNode(t, Config{})
	require.False(t, rn.HasLeader())

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	store := NewReplicatedStore(rn).WithContext(ctx)

	fake := apptest.New(map[string]int{"count": 1})
	require.NoError(t, bootstrap.Run(ctx, store, stateKey, fake))

	require.Equal(t, []*string{nil}, fake.Priors())
	require.Equal(t, []string{`set tradeForallStorage {"count":1}`}, local.recorded())
}

func TestBootstrapOverReplicatedStoreScenario(t *testing.T) {
	rn, local := newUnelectedNode(t, Config{
		TickInterval:  10 * time.Millisecond,
		ElectionTick:  10,
		HeartbeatTick: 1,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	store := NewReplicatedStore(rn).WithContext(ctx)

	fake := apptest.New(map[string]int{"count": 1}, nil)
	require.NoError(t, bootstrap.Run(ctx, store, stateKey, fake))

	require.Equal(t, []*string{nil}, fake.Priors())
	require.Equal(t, []string{
		`set tradeForallStorage {"count":1}`,
		"delete tradeForallStorage",
	}, local.recorded())
	_, ok, err := store.Get(stateKey)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBootstrapOverReplicatedStoreKeepsOrder(t *testing.T) {
	rn, local := newUnelectedNode(t, Config{
		TickInterval:  10 * time.Millisecond,
		ElectionTick:  10,
		HeartbeatTick: 1,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	store := NewReplicatedStore(rn).WithContext(ctx)

	var snapshots []app.Snapshot
	var want []string
	for i := 0; i < 20; i++ {
		snapshots = append(snapshots, map[string]int{"count": i})
		want = append(want, fmt.Sprintf(`set tradeForallStorage {"count":%d}`, i))
	}
	require.NoError(t, bootstrap.Run(ctx, store, stateKey, apptest.New(snapshots...)))

	require.Equal(t, want, local.recorded())
	value, ok, err := store.Get(stateKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `{"count":19}`, value)
}

func TestReplicatedStoreLeaderWaitHonoursContext(t *testing.T) {
	rn, _ := newUnelectedNode(t, Config{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, _, err := NewReplicatedStore(rn).WithContext(ctx).Get(stateKey)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
