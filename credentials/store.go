// Package credentials owns durable storage of the access/refresh token
// pair. Every write lands in a primary tier and is mirrored to a secondary
// cookie-backed tier; reads fall back to the secondary on a primary miss
// and repair the primary from what they find. Absence of a token is the
// empty string, never an error.
package credentials

import "sync"

// Store is the two-tier credential store. The zero value is not usable;
// construct with NewStore.
type Store struct {
	primary   Tier
	secondary Tier
	lock      sync.Mutex
}

// NewStore builds a store over a primary and a secondary tier. The
// secondary may be nil, in which case mirroring and fallback are disabled.
func NewStore(primary, secondary Tier) *Store {
	return &Store{primary: primary, secondary: secondary}
}

// SetAccess writes the access token to both tiers. An empty token clears it
// from both.
func (s *Store) SetAccess(token string) {
	s.set(AccessCookieName, token)
}

// Access returns the current access token, or "" if none is stored.
func (s *Store) Access() string {
	return s.get(AccessCookieName)
}

// SetRefresh writes the refresh token to both tiers. An empty token clears
// it from both.
func (s *Store) SetRefresh(token string) {
	s.set(RefreshCookieName, token)
}

// Refresh returns the current refresh token, or "" if none is stored.
func (s *Store) Refresh() string {
	return s.get(RefreshCookieName)
}

// ClearAll removes both tokens from both tiers.
func (s *Store) ClearAll() {
	s.SetAccess("")
	s.SetRefresh("")
}

func (s *Store) set(key, value string) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if value == "" {
		s.primary.Clear(key)
		if s.secondary != nil {
			s.secondary.Clear(key)
		}
		return
	}
	s.primary.Set(key, value)
	if s.secondary != nil {
		s.secondary.Set(key, value)
	}
}

func (s *Store) get(key string) string {
	s.lock.Lock()
	defer s.lock.Unlock()

	if value := s.primary.Get(key); value != "" {
		return value
	}
	if s.secondary == nil {
		return ""
	}
	// Primary miss: repair it from the secondary so later reads are local.
	value := s.secondary.Get(key)
	if value != "" {
		s.primary.Set(key, value)
	}
	return value
}
