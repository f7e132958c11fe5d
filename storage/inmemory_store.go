package storage

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var (
	ErrInvalidBackup = errors.New("Backup is not a JSON array of key/value entries")
)

// Entry is a single key and its value as it appears in a backup.
type Entry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// InmemoryStore keeps every key in a single map guarded by one lock. Each
// operation holds the lock for one map access only.
type InmemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewInmemoryStore() *InmemoryStore {
	return &InmemoryStore{
		values: make(map[string]string),
	}
}

// Set inserts the key, or overwrites its previous value.
func (i *InmemoryStore) Set(key, value string) {
	i.mu.Lock()
	i.values[key] = value
	i.mu.Unlock()
}

func (i *InmemoryStore) Get(key string) (string, bool) {
	i.mu.RLock()
	value, ok := i.values[key]
	i.mu.RUnlock()

	return value, ok
}

func (i *InmemoryStore) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()

	return len(i.values)
}

// Backup returns the store as a JSON array of {"key","value"} objects sorted by
// key. An array is used rather than an object so that keys never need escaping
// as sjson paths.
func (i *InmemoryStore) Backup() ([]byte, error) {
	entries := i.snapshot()

	out := []byte("[]")
	for _, entry := range entries {
		var err error

		out, err = sjson.SetBytes(out, "-1", entry)
		if err != nil {
			return nil, fmt.Errorf("Failed to back up key %q: %w", entry.Key, err)
		}
	}

	return out, nil
}

// Restore replaces the contents of the store with the entries of a backup.
// Later entries win when a key appears more than once.
func (i *InmemoryStore) Restore(values []byte) error {
	if !gjson.ValidBytes(values) {
		return ErrInvalidBackup
	}

	doc := gjson.ParseBytes(values)
	if !doc.IsArray() {
		return ErrInvalidBackup
	}

	restored := make(map[string]string)

	var err error
	doc.ForEach(func(_, entry gjson.Result) bool {
		key, value := entry.Get("key"), entry.Get("value")
		if key.Type != gjson.String || value.Type != gjson.String {
			err = fmt.Errorf("%w: bad entry %s", ErrInvalidBackup, entry.Raw)
			return false
		}

		restored[key.String()] = value.String()
		return true
	})

	if err != nil {
		return err
	}

	i.mu.Lock()
	i.values = restored
	i.mu.Unlock()

	return nil
}

func (i *InmemoryStore) snapshot() []Entry {
	i.mu.RLock()
	entries := make([]Entry, 0, len(i.values))
	for key, value := range i.values {
		entries = append(entries, Entry{Key: key, Value: value})
	}
	i.mu.RUnlock()

	sort.Slice(entries, func(a, b int) bool {
		return entries[a].Key < entries[b].Key
	})

	return entries
}

var _ Store = (*InmemoryStore)(nil)
