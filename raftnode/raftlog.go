package raftnode

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/radhika-singh-10/state-bootstrap/logger"
	"go.etcd.io/raft/v3"
	"go.etcd.io/raft/v3/raftpb"
)

const (
	logFileName       = "node.log"
	hardStateFileName = "hardstate"
)

// logRecord is one committed entry in node.log. Data is base64 in JSON, so
// binary conf change payloads survive the round trip.
type logRecord struct {
	Index uint64 `json:"index"`
	Term  uint64 `json:"term"`
	Type  string `json:"type"`
	Data  []byte `json:"data"`
}

func (r logRecord) entry() raftpb.Entry {
	return raftpb.Entry{
		Index: r.Index,
		Term:  r.Term,
		Type:  raftpb.EntryType(raftpb.EntryType_value[r.Type]),
		Data:  r.Data,
	}
}

func readLogFile(logDir string) ([]raftpb.Entry, error) {
	path := filepath.Join(logDir, logFileName)
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to open log file %s", path)
	}
	defer file.Close()

	var entries []raftpb.Entry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 64*1024*1024)
	for scanner.Scan() {
		var record logRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			return nil, errors.Wrapf(err, "failed to unmarshal log entry in file %s", path)
		}
		entries = append(entries, record.entry())
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read log file %s", path)
	}
	return entries, nil
}

// loadRaftLog replays node.log into storage and returns the last logged index.
func loadRaftLog(logDir string, storage *raft.MemoryStorage) (uint64, error) {
	entries, err := readLogFile(logDir)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	if err := storage.Append(entries); err != nil {
		return 0, errors.Wrap(err, "failed to append log entries to raft storage")
	}

	last := entries[len(entries)-1].Index
	logger.Log.Infof("Loaded %d log entries (last index: %d)", len(entries), last)
	return last, nil
}

func writeRecords(file *os.File, entries []raftpb.Entry) error {
	writer := bufio.NewWriter(file)
	for _, entry := range entries {
		jsonData, err := json.Marshal(logRecord{
			Index: entry.Index,
			Term:  entry.Term,
			Type:  entry.Type.String(),
			Data:  entry.Data,
		})
		if err != nil {
			return err
		}
		if _, err := writer.Write(append(jsonData, '\n')); err != nil {
			return err
		}
	}
	return writer.Flush()
}

func appendToLogFile(logDir string, entries []raftpb.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	file, err := os.OpenFile(filepath.Join(logDir, logFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := writeRecords(file, entries); err != nil {
		return err
	}
	logger.Log.Debugf("Appended %d log entries (last index: %d)", len(entries), entries[len(entries)-1].Index)
	return file.Sync()
}

// compactLogFile drops every entry covered by the snapshot at appliedIndex.
func compactLogFile(logDir string, appliedIndex uint64) error {
	entries, err := readLogFile(logDir)
	if err != nil {
		return errors.Wrap(err, "failed to read log file for compaction")
	}

	var kept []raftpb.Entry
	for _, entry := range entries {
		if entry.Index > appliedIndex {
			kept = append(kept, entry)
		}
	}

	path := filepath.Join(logDir, logFileName)
	tmp, err := os.CreateTemp(logDir, logFileName+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "failed to create compacted log file")
	}
	if err := writeRecords(tmp, kept); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrap(err, "failed to write compacted log file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(err, "failed to replace log file")
	}

	logger.Log.Infof("Log file compacted, removed entries up to index: %d", appliedIndex)
	return nil
}

func saveHardState(dir string, hs raftpb.HardState) error {
	data, err := hs.Marshal()
	if err != nil {
		return err
	}
	path := filepath.Join(dir, hardStateFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func loadHardState(dir string) (*raftpb.HardState, error) {
	data, err := os.ReadFile(filepath.Join(dir, hardStateFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var hs raftpb.HardState
	if err := hs.Unmarshal(data); err != nil {
		return nil, errors.Wrap(err, "failed to decode hard state")
	}
	return &hs, nil
}
