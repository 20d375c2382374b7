package session

import "sync"

// Cache persists the serialized session record between runs. The manager
// owns serialization; a cache only moves bytes. Load returns nil bytes
// when nothing is cached.
type Cache interface {
	Load() ([]byte, error)
	Save(data []byte) error
	Clear() error
}

// MemoryCache is the in-process cache implementation.
type MemoryCache struct {
	data []byte
	lock sync.RWMutex
}

var _ Cache = (*MemoryCache)(nil)

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

func (m *MemoryCache) Load() ([]byte, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	if m.data == nil {
		return nil, nil
	}
	out := make([]byte, len(m.data))
	copy(out, m.data)
	return out, nil
}

func (m *MemoryCache) Save(data []byte) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.data = make([]byte, len(data))
	copy(m.data, data)
	return nil
}

func (m *MemoryCache) Clear() error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.data = nil
	return nil
}
