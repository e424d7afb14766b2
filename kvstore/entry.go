package kvstore

// Entry is the single durable slot addressed by one fixed key. It never reads
// or writes any other key of the store.
type Entry struct {
	store PersistentStore
	key   string
}

func NewEntry(store PersistentStore, key string) (*Entry, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	return &Entry{store: store, key: key}, nil
}

func (e *Entry) Key() string {
	return e.key
}

// Read returns nil when the entry is absent.
func (e *Entry) Read() (*string, error) {
	value, ok, err := e.store.Get(e.key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &value, nil
}

// Write replaces the stored value.
func (e *Entry) Write(value string) error {
	return e.store.Set(e.key, value)
}

func (e *Entry) Remove() error {
	return e.store.Delete(e.key)
}
