package raftnode

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/radhika-singh-10/state-bootstrap/kvstore"
	"github.com/radhika-singh-10/state-bootstrap/logger"
	"github.com/radhika-singh-10/state-bootstrap/transport"
	"github.com/sirupsen/logrus"
	"go.etcd.io/raft/v3"
	"go.etcd.io/raft/v3/raftpb"
)

var ErrStopped = errors.New("raft node stopped")

// Config describes one member of the cluster.
type Config struct {
	ID uint64
	// Peers lists every initial member as "id=url".
	Peers   []string
	DataDir string
	// LogDir defaults to DataDir.
	LogDir string
	Join   bool

	TickInterval      time.Duration
	ElectionTick      int
	HeartbeatTick     int
	SnapshotThreshold uint64
}

func (c Config) withDefaults() Config {
	if c.LogDir == "" {
		c.LogDir = c.DataDir
	}
	if c.TickInterval <= 0 {
		c.TickInterval = 100 * time.Millisecond
	}
	if c.ElectionTick <= 0 {
		c.ElectionTick = 100
	}
	if c.HeartbeatTick <= 0 {
		c.HeartbeatTick = 10
	}
	if c.SnapshotThreshold == 0 {
		c.SnapshotThreshold = 1000
	}
	return c
}

// RaftNode is a wrapper around the core Raft.Node, encapsulating additional functionalities and state.
type RaftNode struct {
	// Id is the unique identifier for this node in the Raft cluster.
	Id uint64

	// Node represents the core Raft instance for this node,
	// managing consensus and state replication.
	Node raft.Node

	// storage is an in-memory storage used by the Raft library
	// to store logs, snapshots, and metadata.
	storage *raft.MemoryStorage

	// Transport handles network communication between nodes in the Raft cluster,
	// using HTTP as the transport protocol.
	Transport *transport.HttpTransport

	// KvStore holds the replicated key-value state on this node.
	KvStore *kvstore.KeyValueStore

	// ConfState holds the current configuration state of the cluster.
	// Only the run loop touches it.
	ConfState raftpb.ConfState

	stopc    chan struct{}
	donec    chan struct{}
	stopOnce sync.Once

	// dataDir holds snapshots and the hard state; logDir holds node.log.
	dataDir string
	logDir  string

	snapshotThreshold uint64
	tickInterval      time.Duration

	// lastSnapshotIndex is the index of the last snapshot taken or applied.
	lastSnapshotIndex uint64

	// lastLoggedIndex is the highest entry index written to node.log.
	lastLoggedIndex uint64

	// appliedIndex is the highest entry index applied to KvStore.
	appliedIndex atomic.Uint64

	waitMu      sync.Mutex
	proposals   map[string]chan error
	readWaiters map[string]chan raft.ReadState
}

type OperationType int32

const (
	OperationAdd     OperationType = 0
	OperationDelete  OperationType = 1
	OperationRestore OperationType = 2
)

var OperationType_Value = map[string]OperationType{
	"OperationAdd":     0,
	"OperationDelete":  1,
	"OperationRestore": 2,
}

var OperationType_Name = map[OperationType]string{
	0: "OperationAdd",
	1: "OperationDelete",
	2: "OperationRestore",
}

func (o OperationType) String() string {
	if name, ok := OperationType_Name[o]; ok {
		return name
	}
	return fmt.Sprintf("OperationType(%d)", int32(o))
}

// LogDataEntry is the payload of a normal raft entry. ID lets the proposing
// node match the applied entry back to the waiting caller.
type LogDataEntry struct {
	ID        string            `json:"id,omitempty"`
	Operation OperationType     `json:"operation"`
	Key       string            `json:"key,omitempty"`
	Value     string            `json:"value,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
}

func NewRaftNode(cfg Config, kvStore *kvstore.KeyValueStore) (*RaftNode, error) {
	cfg = cfg.withDefaults()
	if cfg.ID == 0 {
		return nil, errors.New("raft node id must not be zero")
	}
	if cfg.DataDir == "" {
		return nil, errors.New("raft data dir is required")
	}
	for _, dir := range []string{cfg.DataDir, cfg.LogDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrapf(err, "create dir %s", dir)
		}
	}

	loggerRaft := logrus.New()
	loggerRaft.SetFormatter(logger.Log.Formatter)
	loggerRaft.SetLevel(logger.Log.GetLevel())
	loggerRaft.SetOutput(logger.Log.Out)
	raft.SetLogger(loggerRaft)

	snapshot, err := loadSnapshot(cfg.DataDir, kvStore)
	if err != nil {
		return nil, errors.Wrap(err, "error loading snapshot")
	}

	// Create a storage for the Raft logger and apply snapshot if found
	storage := raft.NewMemoryStorage()

	var lastSnapshotIndex uint64
	var confState raftpb.ConfState

	// Recovering the node by loading snapshot if exists
	if snapshot != nil {
		if err := storage.ApplySnapshot(*snapshot); err != nil {
			return nil, errors.Wrap(err, "error applying snapshot")
		}
		confState = snapshot.Metadata.ConfState
		lastSnapshotIndex = snapshot.Metadata.Index
	}

	// Recovering the node's logs from the logger directory
	lastLogged, err := loadRaftLog(cfg.LogDir, storage)
	if err != nil {
		return nil, errors.Wrap(err, "error loading logs")
	}

	hardState, err := loadHardState(cfg.DataDir)
	if err != nil {
		return nil, errors.Wrap(err, "error loading hard state")
	}
	if hardState != nil {
		// The commit index can run ahead of node.log after a crash.
		last, _ := storage.LastIndex()
		if hardState.Commit > last {
			hardState.Commit = last
		}
		if hardState.Commit < lastSnapshotIndex {
			hardState.Commit = lastSnapshotIndex
		}
		if err := storage.SetHardState(*hardState); err != nil {
			return nil, errors.Wrap(err, "error applying hard state")
		}
	}

	c := &raft.Config{
		ID:                        cfg.ID,
		ElectionTick:              cfg.ElectionTick,
		HeartbeatTick:             cfg.HeartbeatTick,
		Storage:                   storage,
		Applied:                   lastSnapshotIndex,
		MaxInflightMsgs:           256,
		MaxSizePerMsg:             1024 * 1024,
		MaxUncommittedEntriesSize: 1 << 30,
	}

	tp, err := transport.NewHTTPTransport(cfg.ID, cfg.Peers)
	if err != nil {
		return nil, err
	}

	hasState := snapshot != nil || lastLogged > 0 || hardState != nil
	if lastLogged < lastSnapshotIndex {
		lastLogged = lastSnapshotIndex
	}

	var n raft.Node
	if cfg.Join || hasState {
		n = raft.RestartNode(c)
	} else {
		peerIDs := tp.PeerIDs()
		if len(peerIDs) == 0 {
			return nil, errors.New("initial cluster must list at least one peer")
		}
		raftPeers := make([]raft.Peer, 0, len(peerIDs))
		for _, id := range peerIDs {
			raftPeers = append(raftPeers, raft.Peer{ID: id, Context: []byte(tp.GetPeerURL(id))})
		}
		n = raft.StartNode(c, raftPeers)
	}

	rn := &RaftNode{
		Id:                cfg.ID,
		Node:              n,
		storage:           storage,
		Transport:         tp,
		KvStore:           kvStore,
		ConfState:         confState,
		stopc:             make(chan struct{}),
		donec:             make(chan struct{}),
		dataDir:           cfg.DataDir,
		logDir:            cfg.LogDir,
		snapshotThreshold: cfg.SnapshotThreshold,
		tickInterval:      cfg.TickInterval,
		lastSnapshotIndex: lastSnapshotIndex,
		lastLoggedIndex:   lastLogged,
		proposals:         make(map[string]chan error),
		readWaiters:       make(map[string]chan raft.ReadState),
	}
	rn.appliedIndex.Store(lastSnapshotIndex)
	return rn, nil
}

func (rn *RaftNode) Run() {
	defer close(rn.donec)
	ticker := time.NewTicker(rn.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-rn.stopc:
			rn.Node.Stop()
			return
		case rd := <-rn.Node.Ready():
			if err := rn.saveReady(rd); err != nil {
				logger.Log.Fatal(err)
			}

			rn.Transport.Send(rd.Messages)

			rn.appendToLog(rd.CommittedEntries)
			rn.processCommitedEntries(rd.CommittedEntries)
			rn.writeReadStates(rd.ReadStates)

			rn.maybeTriggerSnapshot()

			rn.Node.Advance()
		case msg := <-rn.Transport.RecvC:
			if err := rn.Node.Step(context.Background(), msg); err != nil {
				logger.Log.Warnf("failed to step message from %d: %v", msg.From, err)
			}
		case <-ticker.C:
			rn.Node.Tick()
		}
	}
}

// Stop halts the run loop and waits for it to exit.
func (rn *RaftNode) Stop() {
	rn.stopOnce.Do(func() { close(rn.stopc) })
	<-rn.donec
}

// HasLeader reports whether this node currently knows a leader.
func (rn *RaftNode) HasLeader() bool {
	return rn.Node.Status().Lead != raft.None
}

// WaitForLeader blocks until a leader is known. Proposals and read requests
// issued before that are dropped by raft.
func (rn *RaftNode) WaitForLeader(ctx context.Context) error {
	if rn.HasLeader() {
		return nil
	}
	ticker := time.NewTicker(rn.tickInterval)
	defer ticker.Stop()
	for !rn.HasLeader() {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "waiting for raft leader")
		case <-rn.stopc:
			return ErrStopped
		}
	}
	return nil
}

func (rn *RaftNode) IsLeader() bool {
	return rn.Node.Status().Lead == rn.Id
}

func (rn *RaftNode) AppliedIndex() uint64 {
	return rn.appliedIndex.Load()
}

func (rn *RaftNode) saveReady(rd raft.Ready) error {
	if !raft.IsEmptySnap(rd.Snapshot) {
		if err := saveSnapshot(rn.dataDir, rd.Snapshot); err != nil {
			return errors.Wrap(err, "failed to save received snapshot")
		}
		if err := rn.storage.ApplySnapshot(rd.Snapshot); err != nil {
			return errors.Wrap(err, "failed to apply received snapshot")
		}
		if err := restoreStore(rn.KvStore, rd.Snapshot.Data); err != nil {
			return err
		}
		rn.ConfState = rd.Snapshot.Metadata.ConfState
		rn.lastSnapshotIndex = rd.Snapshot.Metadata.Index
		rn.appliedIndex.Store(rd.Snapshot.Metadata.Index)
		if rn.lastLoggedIndex < rd.Snapshot.Metadata.Index {
			rn.lastLoggedIndex = rd.Snapshot.Metadata.Index
		}
	}
	if !raft.IsEmptyHardState(rd.HardState) {
		if err := saveHardState(rn.dataDir, rd.HardState); err != nil {
			return errors.Wrap(err, "failed to save hard state")
		}
		if err := rn.storage.SetHardState(rd.HardState); err != nil {
			return err
		}
	}
	return rn.storage.Append(rd.Entries)
}

func (rn *RaftNode) processCommitedEntries(entries []raftpb.Entry) {
	for _, entry := range entries {
		if entry.Index <= rn.appliedIndex.Load() {
			continue
		}

		switch entry.Type {
		case raftpb.EntryNormal:
			if len(entry.Data) > 0 {
				rn.applyData(entry.Data)
			}
		case raftpb.EntryConfChange:
			var cc raftpb.ConfChange
			if err := cc.Unmarshal(entry.Data); err != nil {
				logger.Log.Fatalf("failed to unmarshal conf change: %v", err)
			}
			rn.ConfState = *rn.Node.ApplyConfChange(cc)
			switch cc.Type {
			case raftpb.ConfChangeAddNode, raftpb.ConfChangeAddLearnerNode:
				rn.Transport.AddPeer(cc.NodeID, string(cc.Context))
			case raftpb.ConfChangeRemoveNode:
				if cc.NodeID != rn.Id {
					rn.Transport.RemovePeer(cc.NodeID)
				}
			}
		}

		rn.appliedIndex.Store(entry.Index)
	}
}

func (rn *RaftNode) applyData(data []byte) {
	var logDataEntry LogDataEntry
	if err := json.Unmarshal(data, &logDataEntry); err != nil {
		logger.Log.Warnf("skipping undecodable entry: %v", err)
		return
	}

	var err error
	switch logDataEntry.Operation {
	case OperationAdd:
		err = rn.KvStore.Set(logDataEntry.Key, logDataEntry.Value)
	case OperationDelete:
		err = rn.KvStore.Delete(logDataEntry.Key)
	case OperationRestore:
		err = rn.KvStore.Restore(logDataEntry.Data)
	default:
		err = errors.Errorf("unknown operation %s", logDataEntry.Operation)
	}
	rn.notifyProposal(logDataEntry.ID, err)
}

func (rn *RaftNode) notifyProposal(id string, err error) {
	if id == "" {
		return
	}
	rn.waitMu.Lock()
	ch, ok := rn.proposals[id]
	delete(rn.proposals, id)
	rn.waitMu.Unlock()
	if ok {
		ch <- err
	}
}

func (rn *RaftNode) writeReadStates(states []raft.ReadState) {
	for _, rs := range states {
		rn.waitMu.Lock()
		ch, ok := rn.readWaiters[string(rs.RequestCtx)]
		delete(rn.readWaiters, string(rs.RequestCtx))
		rn.waitMu.Unlock()
		if ok {
			ch <- rs
		}
	}
}

// Propose replicates the entry and waits until this node has applied it.
func (rn *RaftNode) Propose(ctx context.Context, entry LogDataEntry) error {
	if err := rn.WaitForLeader(ctx); err != nil {
		return err
	}

	entry.ID = uuid.NewString()
	data, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(err, "failed to encode proposal")
	}

	ch := make(chan error, 1)
	rn.waitMu.Lock()
	rn.proposals[entry.ID] = ch
	rn.waitMu.Unlock()
	defer func() {
		rn.waitMu.Lock()
		delete(rn.proposals, entry.ID)
		rn.waitMu.Unlock()
	}()

	if err := rn.Node.Propose(ctx, data); err != nil {
		return errors.Wrapf(err, "failed to propose %s", entry.Operation)
	}

	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-rn.stopc:
		return ErrStopped
	}
}

// ReadBarrier returns once this node has applied everything committed at the
// time of the call. It first waits for a leader; the leader serves reads from
// its own state.
func (rn *RaftNode) ReadBarrier(ctx context.Context) error {
	if err := rn.WaitForLeader(ctx); err != nil {
		return err
	}
	if rn.IsLeader() {
		return nil
	}

	reqID := uuid.NewString()
	ch := make(chan raft.ReadState, 1)
	rn.waitMu.Lock()
	rn.readWaiters[reqID] = ch
	rn.waitMu.Unlock()
	defer func() {
		rn.waitMu.Lock()
		delete(rn.readWaiters, reqID)
		rn.waitMu.Unlock()
	}()

	if err := rn.Node.ReadIndex(ctx, []byte(reqID)); err != nil {
		return errors.Wrap(err, "failed to initiate ReadIndex")
	}

	var rs raft.ReadState
	select {
	case rs = <-ch:
	case <-ctx.Done():
		return ctx.Err()
	case <-rn.stopc:
		return ErrStopped
	}

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for rn.AppliedIndex() < rs.Index {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		case <-rn.stopc:
			return ErrStopped
		}
	}
	return nil
}

func (rn *RaftNode) maybeTriggerSnapshot() {
	appliedIndex := rn.appliedIndex.Load()
	if appliedIndex-rn.lastSnapshotIndex >= rn.snapshotThreshold {
		logger.Log.Infof("Triggering snapshot at applied index: %d", appliedIndex)
		rn.createSnapshot(appliedIndex)
		rn.lastSnapshotIndex = appliedIndex
	}
}

func (rn *RaftNode) createSnapshot(appliedIndex uint64) {
	state, err := rn.KvStore.Dump()
	if err != nil {
		logger.Log.Fatalf("Failed to read state for snapshot: %v", err)
	}
	kvStateSnapData, err := json.Marshal(state)
	if err != nil {
		logger.Log.Fatalf("Failed to serialize state for snapshot: %v", err)
	}

	snapshot, err := rn.storage.CreateSnapshot(appliedIndex, &rn.ConfState, kvStateSnapData)
	if err != nil {
		logger.Log.Fatalf("Failed to create snapshot: %v", err)
	}

	if err := saveSnapshot(rn.dataDir, snapshot); err != nil {
		logger.Log.Fatalf("Failed to save snapshot: %v", err)
	}
	if err := rn.storage.Compact(appliedIndex); err != nil {
		logger.Log.Fatalf("Failed to compact Raft logs: %v", err)
	}
	if err := compactLogFile(rn.logDir, appliedIndex); err != nil {
		logger.Log.Fatalf("Failed to compact node.log file: %v", err)
	}

	logger.Log.Infof("Snapshot created at index: %d, term: %d", snapshot.Metadata.Index, snapshot.Metadata.Term)
}

func (rn *RaftNode) appendToLog(entries []raftpb.Entry) {
	var fresh []raftpb.Entry
	for _, entry := range entries {
		if entry.Index > rn.lastLoggedIndex {
			fresh = append(fresh, entry)
		}
	}
	if len(fresh) == 0 {
		return
	}
	if err := appendToLogFile(rn.logDir, fresh); err != nil {
		logger.Log.Fatalf("Failed to append to node.log: %v", err)
	}
	rn.lastLoggedIndex = fresh[len(fresh)-1].Index
}

func (rn *RaftNode) AddNode(ctx context.Context, newNodeID uint64, newNodeURL string) error {
	logger.Log.Infof("Adding new node with ID %d, URL: %s", newNodeID, newNodeURL)

	cc := raftpb.ConfChange{
		Type:    raftpb.ConfChangeAddNode,
		NodeID:  newNodeID,
		Context: []byte(newNodeURL),
	}

	if err := rn.Node.ProposeConfChange(ctx, cc); err != nil {
		return errors.Wrap(err, "failed to propose conf change")
	}

	rn.Transport.AddPeer(newNodeID, newNodeURL)

	logger.Log.Infof("Proposed configuration change to add node %d", newNodeID)
	return nil
}

func (rn *RaftNode) RemoveNode(ctx context.Context, nodeId uint64) error {
	logger.Log.Infof("Removing node with ID %d", nodeId)

	cc := raftpb.ConfChange{
		Type:   raftpb.ConfChangeRemoveNode,
		NodeID: nodeId,
	}

	if err := rn.Node.ProposeConfChange(ctx, cc); err != nil {
		return errors.Wrap(err, "failed to propose conf change")
	}

	logger.Log.Infof("Proposed configuration change to remove node %d", nodeId)
	return nil
}
