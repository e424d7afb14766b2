package raftnode

import (
	"context"
	"time"

	"github.com/radhika-singh-10/state-bootstrap/kvstore"
)

const defaultOpTimeout = 5 * time.Second

// ReplicatedStore is a kvstore.PersistentStore whose writes go through raft.
// Each write returns once it has been applied on this node, so writes issued
// one after another are applied in that order.
//
// Operations issued before the cluster has a leader wait for one. That wait is
// bounded by the store's context, not by the per-operation timeout, since a
// first election can take longer than a single operation may.
type ReplicatedStore struct {
	node    *RaftNode
	ctx     context.Context
	timeout time.Duration
}

var _ kvstore.PersistentStore = (*ReplicatedStore)(nil)

func NewReplicatedStore(node *RaftNode) *ReplicatedStore {
	return &ReplicatedStore{node: node, ctx: context.Background(), timeout: defaultOpTimeout}
}

func (rs *ReplicatedStore) WithTimeout(timeout time.Duration) *ReplicatedStore {
	rs.timeout = timeout
	return rs
}

// WithContext bounds the wait for a leader.
func (rs *ReplicatedStore) WithContext(ctx context.Context) *ReplicatedStore {
	rs.ctx = ctx
	return rs
}

func (rs *ReplicatedStore) opContext() (context.Context, context.CancelFunc, error) {
	if err := rs.node.WaitForLeader(rs.ctx); err != nil {
		return nil, nil, err
	}
	ctx, cancel := context.WithTimeout(rs.ctx, rs.timeout)
	return ctx, cancel, nil
}

func (rs *ReplicatedStore) propose(entry LogDataEntry) error {
	ctx, cancel, err := rs.opContext()
	if err != nil {
		return err
	}
	defer cancel()
	return rs.node.Propose(ctx, entry)
}

func (rs *ReplicatedStore) barrier() error {
	ctx, cancel, err := rs.opContext()
	if err != nil {
		return err
	}
	defer cancel()
	return rs.node.ReadBarrier(ctx)
}

func (rs *ReplicatedStore) Set(key, value string) error {
	return rs.propose(LogDataEntry{Operation: OperationAdd, Key: key, Value: value})
}

func (rs *ReplicatedStore) Get(key string) (string, bool, error) {
	if err := rs.barrier(); err != nil {
		return "", false, err
	}
	return rs.node.KvStore.Get(key)
}

func (rs *ReplicatedStore) Delete(key string) error {
	return rs.propose(LogDataEntry{Operation: OperationDelete, Key: key})
}

func (rs *ReplicatedStore) Dump() (map[string]string, error) {
	if err := rs.barrier(); err != nil {
		return nil, err
	}
	return rs.node.KvStore.Dump()
}

func (rs *ReplicatedStore) Restore(data map[string]string) error {
	return rs.propose(LogDataEntry{Operation: OperationRestore, Data: data})
}
