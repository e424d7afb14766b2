package kvstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/radhika-singh-10/state-bootstrap/logger"
)

// JsonStore keeps every key in a single JSON object on disk. A missing file is
// an empty store.
type JsonStore struct {
	filePath string
	mu       sync.Mutex
}

func NewJsonStore(filePath string) *JsonStore {
	return &JsonStore{filePath: filePath}
}

func (js *JsonStore) Path() string {
	return js.filePath
}

func (js *JsonStore) Set(key, value string) error {
	js.mu.Lock()
	defer js.mu.Unlock()

	data, err := readData(js.filePath)
	if err != nil {
		return err
	}

	data[key] = value
	return writeData(data, js.filePath)
}

func (js *JsonStore) Get(key string) (string, bool, error) {
	js.mu.Lock()
	defer js.mu.Unlock()

	data, err := readData(js.filePath)
	if err != nil {
		return "", false, err
	}

	value, ok := data[key]
	return value, ok, nil
}

func (js *JsonStore) Delete(key string) error {
	js.mu.Lock()
	defer js.mu.Unlock()

	data, err := readData(js.filePath)
	if err != nil {
		return err
	}

	if _, ok := data[key]; !ok {
		return nil
	}
	delete(data, key)
	return writeData(data, js.filePath)
}

func (js *JsonStore) Dump() (map[string]string, error) {
	js.mu.Lock()
	defer js.mu.Unlock()

	return readData(js.filePath)
}

func (js *JsonStore) Restore(data map[string]string) error {
	js.mu.Lock()
	defer js.mu.Unlock()

	if data == nil {
		data = map[string]string{}
	}
	return writeData(data, js.filePath)
}

// writeData replaces the store file in one rename so readers never observe a
// partially written object.
func writeData(data map[string]string, filePath string) error {
	output, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		logger.Log.Errorln("Error marshalling JSON:", err)
		return errors.Wrap(err, "marshal store")
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "create store dir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(filePath)+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "create temp store file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(output); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		logger.Log.Errorln("Error writing file:", err)
		return errors.Wrap(err, "write temp store file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "close temp store file")
	}
	if err := os.Rename(tmpName, filePath); err != nil {
		os.Remove(tmpName)
		logger.Log.Errorln("Error writing file:", err)
		return errors.Wrapf(err, "replace store file %s", filePath)
	}
	return nil
}

func readData(filePath string) (map[string]string, error) {
	byteValue, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, errors.Wrapf(err, "read store file %s", filePath)
	}
	if len(byteValue) == 0 {
		return map[string]string{}, nil
	}

	var data map[string]string
	if err := json.Unmarshal(byteValue, &data); err != nil {
		return nil, errors.Wrapf(err, "decode store file %s", filePath)
	}
	if data == nil {
		data = map[string]string{}
	}
	return data, nil
}
