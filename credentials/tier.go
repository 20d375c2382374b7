package credentials

import "sync"

// Tier is one backing store for a credential value. Implementations must
// treat absence as the empty string, never as an error.
type Tier interface {
	Get(key string) string
	Set(key, value string)
	Clear(key string)
}

// MemoryTier is the primary in-process tier.
type MemoryTier struct {
	values map[string]string
	lock   sync.RWMutex
}

var _ Tier = (*MemoryTier)(nil)

func NewMemoryTier() *MemoryTier {
	return &MemoryTier{values: make(map[string]string)}
}

func (m *MemoryTier) Get(key string) string {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.values[key]
}

func (m *MemoryTier) Set(key, value string) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.values[key] = value
}

func (m *MemoryTier) Clear(key string) {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.values, key)
}
