package tierfake

import (
	"sync"

	"github.com/ledgerline/go-invoicing-client/credentials"
)

var _ credentials.Tier = (*FakeTier)(nil)

// FakeTier records every call so tests can assert mirroring behaviour.
type FakeTier struct {
	values map[string]string
	Sets   []string // keys written, in order
	Clears []string // keys cleared, in order
	lock   sync.Mutex
}

func NewFakeTier() *FakeTier {
	return &FakeTier{values: make(map[string]string)}
}

func (f *FakeTier) Get(key string) string {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.values[key]
}

func (f *FakeTier) Set(key, value string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.values[key] = value
	f.Sets = append(f.Sets, key)
}

func (f *FakeTier) Clear(key string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	delete(f.values, key)
	f.Clears = append(f.Clears, key)
}

// Drop removes a value without recording a clear, simulating an eviction
// of the primary tier (e.g. a fresh process with only cookies surviving).
func (f *FakeTier) Drop(key string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	delete(f.values, key)
}
