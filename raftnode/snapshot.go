package raftnode

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/radhika-singh-10/state-bootstrap/kvstore"
	"github.com/radhika-singh-10/state-bootstrap/logger"
	"go.etcd.io/raft/v3/raftpb"
)

// Snapshot files are named by zero-padded index so the lexical order of a glob
// is also the index order.
func snapshotFileName(index uint64) string {
	return fmt.Sprintf("snapshot-%016x.snap", index)
}

func restoreStore(store *kvstore.KeyValueStore, data []byte) error {
	var state map[string]string
	if len(data) > 0 {
		if err := json.Unmarshal(data, &state); err != nil {
			return errors.Wrap(err, "failed to decode application state")
		}
	}
	return errors.Wrap(store.Restore(state), "failed to restore application state")
}

func loadSnapshot(dir string, store *kvstore.KeyValueStore) (*raftpb.Snapshot, error) {
	snapshotFiles, err := filepath.Glob(filepath.Join(dir, "*.snap"))
	if err != nil {
		return nil, err
	}

	if len(snapshotFiles) == 0 {
		logger.Log.Println("No snapshot found")
		return nil, nil
	}

	snapshotFile := snapshotFiles[len(snapshotFiles)-1]
	snapshotData, err := os.ReadFile(snapshotFile)
	if err != nil {
		return nil, err
	}

	var snapshot raftpb.Snapshot
	if err := snapshot.Unmarshal(snapshotData); err != nil {
		return nil, errors.Wrapf(err, "failed to decode snapshot %s", snapshotFile)
	}

	if err := restoreStore(store, snapshot.Data); err != nil {
		return nil, err
	}

	logger.Log.Infof("Loaded snapshot: %s", snapshotFile)
	return &snapshot, nil
}

// saveSnapshot writes the new snapshot before removing older ones.
func saveSnapshot(snapshotDir string, snapshot raftpb.Snapshot) error {
	snapshotFile := filepath.Join(snapshotDir, snapshotFileName(snapshot.Metadata.Index))

	data, err := snapshot.Marshal()
	if err != nil {
		return err
	}

	if err := os.WriteFile(snapshotFile, data, 0600); err != nil {
		return err
	}

	if err := deletePreviousSnapshots(snapshotDir, snapshotFile); err != nil {
		return err
	}

	logger.Log.Infof("Saved snapshot at index: %d", snapshot.Metadata.Index)
	return nil
}

func deletePreviousSnapshots(dir, keep string) error {
	snapshotFiles, err := filepath.Glob(filepath.Join(dir, "*.snap"))
	if err != nil {
		return err
	}
	for _, file := range snapshotFiles {
		if file == keep {
			continue
		}
		if err := os.Remove(file); err != nil {
			return err
		}
	}
	return nil
}
