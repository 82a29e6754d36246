package boundary

import (
	"sync"

	"github.com/pkg/errors"
)

// MemoryStore is a RestartBoundary that lives as long as the value does.
// Share one MemoryStore between two pipelines to simulate a restart.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemory() *MemoryStore {
	return &MemoryStore{values: map[string]string{}}
}

func (m *MemoryStore) Persist(key, value string) error {
	if key == "" {
		return errors.New("boundary: empty key")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryStore) Read(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryStore) Clear(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// Keys returns the keys starting with prefix, sorted.
func (m *MemoryStore) Keys(prefix string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sortedKeys(m.values, prefix)
}
