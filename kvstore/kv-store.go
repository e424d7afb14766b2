package kvstore

import (
	"github.com/radhika-singh-10/state-bootstrap/logger"
	"github.com/sirupsen/logrus"
)

// KeyValueStore logs every mutation against the underlying PersistentStore and
// hands failures back to the caller.
type KeyValueStore struct {
	PersistentStore PersistentStore
}

func NewKeyValueStore(store PersistentStore) *KeyValueStore {
	return &KeyValueStore{store}
}

func (kv *KeyValueStore) Set(key, value string) error {
	err := kv.PersistentStore.Set(key, value)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"key": key, "op": "set"}).WithError(err).Errorln("Unable to set key")
		return err
	}
	logger.Log.WithFields(logrus.Fields{"key": key, "op": "set", "bytes": len(value)}).Debugln("Key stored")
	return nil
}

func (kv *KeyValueStore) Get(key string) (string, bool, error) {
	value, ok, err := kv.PersistentStore.Get(key)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"key": key, "op": "get"}).WithError(err).Errorln("Unable to read key")
	}
	return value, ok, err
}

func (kv *KeyValueStore) Delete(key string) error {
	err := kv.PersistentStore.Delete(key)
	if err != nil {
		logger.Log.WithFields(logrus.Fields{"key": key, "op": "delete"}).WithError(err).Errorln("Unable to delete key")
		return err
	}
	logger.Log.WithFields(logrus.Fields{"key": key, "op": "delete"}).Debugln("Key deleted")
	return nil
}

func (kv *KeyValueStore) Dump() (map[string]string, error) {
	return kv.PersistentStore.Dump()
}

func (kv *KeyValueStore) Restore(data map[string]string) error {
	err := kv.PersistentStore.Restore(data)
	if err != nil {
		logger.Log.WithField("op", "restore").WithError(err).Errorln("Unable to restore store")
		return err
	}
	logger.Log.WithFields(logrus.Fields{"op": "restore", "keys": len(data)}).Infoln("Store restored")
	return nil
}
