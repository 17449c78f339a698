package settings

import (
	"sync"

	"github.com/fgeck/wakeonlan-homelab/internal/state"
)

// MemoryStore keeps preferences in memory.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
	feed   *state.Feed[Change]
}

// NewMemoryStore creates a store holding initial, with defaults for missing keys.
func NewMemoryStore(initial map[string]string) *MemoryStore {
	values := make(map[string]string, len(Keys()))
	for _, k := range Keys() {
		values[k] = Default(k)
	}
	for k, v := range initial {
		if isKey(k) && v != "" {
			values[k] = v
		}
	}
	return &MemoryStore{values: values, feed: state.NewFeed[Change]()}
}

// Get implements Store.
func (s *MemoryStore) Get(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key]
}

// Set implements Store. Subscribers are notified only when the value changes.
func (s *MemoryStore) Set(key, value string) error {
	if err := Validate(key, value); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.values[key] == value {
		return nil
	}
	s.values[key] = value
	s.feed.Publish(Change{Key: key, Value: value})
	return nil
}

// Subscribe implements Store.
func (s *MemoryStore) Subscribe() (<-chan Change, func()) {
	return s.feed.Subscribe(len(Keys()) * 4)
}
