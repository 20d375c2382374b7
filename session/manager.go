// Package session owns the "is a user logged in" state. It restores a
// cached session optimistically at startup, validates it against the
// backend, and reacts to forced expiry by clearing everything and
// broadcasting one event to subscribers.
package session

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/ledgerline/go-invoicing-client/apiclient"
	"github.com/ledgerline/go-invoicing-client/credentials"
	"github.com/ledgerline/go-invoicing-client/token"
)

const (
	loginPath  = "/auth/login"
	signupPath = "/auth/signup"
	logoutPath = "/auth/logout"
	mePath     = "/auth/me"
)

// State is the lifecycle state of the session.
type State int

const (
	StateUnknown State = iota
	StateRestoring
	StateAuthenticated
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateRestoring:
		return "restoring"
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	}
	return "unknown"
}

// Dispatcher is the authenticated request surface the manager uses.
// Satisfied by apiclient.Client.
type Dispatcher interface {
	Get(ctx context.Context, path string, out any) error
	Post(ctx context.Context, path string, body, out any, options ...apiclient.RequestOption) error
}

// Manager is the only writer of authenticated state. Construct with New.
type Manager struct {
	api    Dispatcher
	creds  *credentials.Store
	cache  Cache
	logger zerolog.Logger

	lock        sync.Mutex
	state       State
	current     *Session
	subscribers map[int]chan struct{}
	nextSubID   int
	validated   chan struct{}
}

// Option modifies a Manager at construction time.
type Option func(*Manager)

func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// New builds a session manager over the authenticated dispatcher, the
// credential store and a session cache.
func New(api Dispatcher, creds *credentials.Store, cache Cache, options ...Option) (*Manager, error) {
	if api == nil {
		return nil, errors.New("[session.New] dispatcher is required")
	}
	if creds == nil {
		return nil, errors.New("[session.New] credential store is required")
	}
	if cache == nil {
		return nil, errors.New("[session.New] cache is required")
	}

	m := &Manager{
		api:         api,
		creds:       creds,
		cache:       cache,
		logger:      zerolog.Nop(),
		state:       StateUnknown,
		subscribers: make(map[int]chan struct{}),
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.state
}

// Current returns a copy of the active session record, or nil when no user
// is logged in.
func (m *Manager) Current() *Session {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.current == nil {
		return nil
	}
	s := *m.current
	return &s
}

// Subscribe registers interest in the session-expired event. The returned
// channel receives one value per forced-logout transition; call cancel to
// unsubscribe.
func (m *Manager) Subscribe() (<-chan struct{}, func()) {
	m.lock.Lock()
	defer m.lock.Unlock()
	id := m.nextSubID
	m.nextSubID++
	ch := make(chan struct{}, 1)
	m.subscribers[id] = ch
	cancel := func() {
		m.lock.Lock()
		defer m.lock.Unlock()
		delete(m.subscribers, id)
	}
	return ch, cancel
}

// Restore transitions Unknown -> Restoring and attempts to revive a cached
// session. With both a cached record and an access token present it
// transitions to Authenticated immediately (so callers are not blocked on
// the network) and validates against the backend in the background; await
// Validated() to observe the outcome. Missing or corrupted state drops
// straight to Anonymous with everything cleared. Restore never panics on
// bad cache contents.
func (m *Manager) Restore(ctx context.Context) State {
	m.lock.Lock()
	m.state = StateRestoring
	m.validated = make(chan struct{})
	validated := m.validated
	m.lock.Unlock()

	cached, ok := m.loadCached()
	if !ok {
		m.teardown("restore")
		close(validated)
		return StateAnonymous
	}

	m.lock.Lock()
	m.state = StateAuthenticated
	m.current = cached
	m.lock.Unlock()
	m.logger.Debug().Str("email", cached.Email).Msg("session restored from cache")

	go func() {
		defer close(validated)
		m.validate(ctx)
	}()
	return StateAuthenticated
}

// Validated reports completion of the background validation kicked off by
// the most recent Restore. It returns nil before Restore has run.
func (m *Manager) Validated() <-chan struct{} {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.validated
}

// loadCached reads and deserializes the cached session. It reports false
// when the cache is empty, unreadable, malformed, or when no usable token
// accompanies it.
func (m *Manager) loadCached() (*Session, bool) {
	raw, err := m.cache.Load()
	if err != nil || len(raw) == 0 {
		return nil, false
	}
	var cached Session
	if err := json.Unmarshal(raw, &cached); err != nil {
		m.logger.Warn().Err(err).Msg("cached session is corrupted")
		return nil, false
	}
	if cached.UserID == "" {
		return nil, false
	}

	access := m.creds.Access()
	if access == "" {
		return nil, false
	}
	// An expired access token is still restorable while a refresh token
	// exists; the first 401 will renew it. With neither, the record is dead.
	if token.Expired(access) && m.creds.Refresh() == "" {
		return nil, false
	}
	return &cached, true
}

type meResponse struct {
	UserID     string `json:"userId"`
	Email      string `json:"email"`
	BusinessID string `json:"businessId"`
	Role       string `json:"role"`
}

// validate checks the restored session against the backend and merges the
// server-authoritative fields into the cached record. Any failure clears
// the session; the expiry event itself is owned by the forced-expiry path.
func (m *Manager) validate(ctx context.Context) {
	var me meResponse
	if err := m.api.Get(ctx, mePath, &me); err != nil {
		m.logger.Warn().Err(err).Msg("session validation failed")
		m.teardown("validation")
		return
	}

	m.lock.Lock()
	if m.state == StateAuthenticated && m.current != nil {
		if me.UserID != "" {
			m.current.UserID = me.UserID
		}
		if me.Email != "" {
			m.current.Email = me.Email
		}
		if me.BusinessID != "" {
			m.current.BusinessID = me.BusinessID
		}
		if me.Role != "" {
			m.current.Role = me.Role
		}
		m.persistLocked()
	}
	m.lock.Unlock()
	m.logger.Debug().Msg("session validated")
}

// AuthResult is the backend payload for login and signup.
type AuthResult struct {
	User struct {
		ID        string `json:"id"`
		Email     string `json:"email"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Role      string `json:"role"`
	} `json:"user"`
	Business struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"business"`
	Tokens struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
		ExpiresIn    int    `json:"expiresIn"`
	} `json:"tokens"`
}

// LoginParams are the credentials for Login.
type LoginParams struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignupParams are the registration fields for Signup.
type SignupParams struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	BusinessName string `json:"businessName"`
}

// Login authenticates with the backend and, on success, stores the token
// pair and session record together. Any prior state is overwritten.
func (m *Manager) Login(ctx context.Context, params LoginParams) (*Session, error) {
	return m.authenticate(ctx, loginPath, params)
}

// Signup registers a new account; on success the user is logged in.
func (m *Manager) Signup(ctx context.Context, params SignupParams) (*Session, error) {
	return m.authenticate(ctx, signupPath, params)
}

func (m *Manager) authenticate(ctx context.Context, path string, body any) (*Session, error) {
	var result AuthResult
	if err := m.api.Post(ctx, path, body, &result); err != nil {
		return nil, errors.Wrapf(err, "[session] %s", path)
	}
	if result.Tokens.AccessToken == "" {
		return nil, errors.Errorf("[session] %s returned no access token", path)
	}

	record := &Session{
		UserID:       result.User.ID,
		Email:        result.User.Email,
		FirstName:    result.User.FirstName,
		LastName:     result.User.LastName,
		Role:         result.User.Role,
		BusinessID:   result.Business.ID,
		BusinessName: result.Business.Name,
	}

	m.lock.Lock()
	m.creds.SetAccess(result.Tokens.AccessToken)
	m.creds.SetRefresh(result.Tokens.RefreshToken)
	m.current = record
	m.state = StateAuthenticated
	m.persistLocked()
	m.lock.Unlock()

	m.logger.Info().Str("email", record.Email).Msg("logged in")
	out := *record
	return &out, nil
}

// Logout notifies the backend on a best-effort basis and unconditionally
// clears local state. A flaky network never blocks logging out.
func (m *Manager) Logout(ctx context.Context) {
	if err := m.api.Post(ctx, logoutPath, nil, nil); err != nil {
		m.logger.Debug().Err(err).Msg("logout notification failed")
	}
	m.teardown("logout")
}

// ForceExpire tears the session down after a terminal 401 and notifies
// subscribers. Wire it to the refresh coordinator's and dispatcher's
// session-expired callbacks. Repeat calls while already Anonymous are
// no-ops, so concurrent terminal failures produce one event.
func (m *Manager) ForceExpire() {
	m.lock.Lock()
	if m.state == StateAnonymous {
		m.lock.Unlock()
		return
	}
	m.state = StateAnonymous
	m.current = nil
	subs := make([]chan struct{}, 0, len(m.subscribers))
	for _, ch := range m.subscribers {
		subs = append(subs, ch)
	}
	m.lock.Unlock()

	m.creds.ClearAll()
	if err := m.cache.Clear(); err != nil {
		m.logger.Debug().Err(err).Msg("session cache clear failed")
	}
	m.logger.Info().Msg("session expired")

	for _, ch := range subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// teardown clears all local state without raising the expiry event.
func (m *Manager) teardown(reason string) {
	m.lock.Lock()
	m.state = StateAnonymous
	m.current = nil
	m.lock.Unlock()

	m.creds.ClearAll()
	if err := m.cache.Clear(); err != nil {
		m.logger.Debug().Err(err).Str("reason", reason).Msg("session cache clear failed")
	}
}

// persistLocked serializes the current session into the cache. Callers
// hold the manager lock.
func (m *Manager) persistLocked() {
	if m.current == nil {
		return
	}
	raw, err := json.Marshal(m.current)
	if err != nil {
		m.logger.Warn().Err(err).Msg("session serialization failed")
		return
	}
	if err := m.cache.Save(raw); err != nil {
		m.logger.Warn().Err(err).Msg("session cache save failed")
	}
}
