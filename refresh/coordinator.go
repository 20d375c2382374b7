// Package refresh exchanges a refresh token for a new token pair. The
// exchange is single-flight: however many requests hit a 401 at once, one
// network call is made and every caller shares its outcome. Most backends
// rotate the refresh token on use, so a second concurrent exchange would
// invalidate the first one's result even when both tokens were honest.
package refresh

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/ledgerline/go-invoicing-client/apiclient"
	"github.com/ledgerline/go-invoicing-client/apierror"
	"github.com/ledgerline/go-invoicing-client/credentials"
	"github.com/ledgerline/go-invoicing-client/metrics"
)

const refreshPath = "/auth/refresh-token"

// flightKey keys the single in-flight exchange. Keyed by process identity,
// not token value: a rotation mid-flight must not open a second slot.
const flightKey = "refresh-token"

// TokenPair is the payload of a successful exchange.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int    `json:"expiresIn,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	Tokens TokenPair `json:"tokens"`
}

// Coordinator owns the in-flight exchange handle. Construct with New.
type Coordinator struct {
	creds     *credentials.Store
	dispatch  Dispatcher
	onExpired func()
	logger    zerolog.Logger
	metrics   *metrics.Metrics
	group     singleflight.Group
}

// Dispatcher is the minimal request surface the coordinator needs. It must
// be a plain (no interceptor) path: a refresh call that itself 401s has to
// surface that 401, not recurse into another refresh. An apiclient.Client
// built without a refresher satisfies it.
type Dispatcher interface {
	Post(ctx context.Context, path string, body, out any, options ...apiclient.RequestOption) error
}

// Option modifies a Coordinator at construction time.
type Option func(*Coordinator)

// WithSessionExpiredFunc registers the callback fired when an exchange
// fails and the session is torn down.
func WithSessionExpiredFunc(fn func()) Option {
	return func(c *Coordinator) { c.onExpired = fn }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// New builds a coordinator over the credential store and a plain (no
// interceptor) dispatcher.
func New(creds *credentials.Store, dispatch Dispatcher, options ...Option) (*Coordinator, error) {
	if creds == nil {
		return nil, errors.New("[refresh.New] credential store is required")
	}
	if dispatch == nil {
		return nil, errors.New("[refresh.New] dispatcher is required")
	}
	c := &Coordinator{
		creds:    creds,
		dispatch: dispatch,
		logger:   zerolog.Nop(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// RefreshAccessToken exchanges the stored refresh token for a new pair and
// returns the new access token. Concurrent callers join the exchange
// already in flight and observe its result. On failure the credential
// store is cleared, the expiry callback fires, and every waiter receives
// the same error. The in-flight handle is released either way.
func (c *Coordinator) RefreshAccessToken(ctx context.Context) (string, error) {
	result, err, shared := c.group.Do(flightKey, func() (any, error) {
		return c.exchange(ctx)
	})
	if err != nil {
		return "", err
	}
	if shared {
		c.logger.Debug().Msg("joined in-flight token refresh")
	}
	return result.(string), nil
}

func (c *Coordinator) exchange(ctx context.Context) (any, error) {
	refreshToken := c.creds.Refresh()
	if refreshToken == "" {
		// No network call without a refresh token.
		return nil, apierror.ErrNoRefreshToken
	}

	var resp refreshResponse
	err := c.dispatch.Post(ctx, refreshPath, refreshRequest{RefreshToken: refreshToken}, &resp)
	if err != nil {
		c.metrics.ObserveRefresh("failure")
		c.logger.Warn().Err(err).Msg("token refresh rejected")
		c.creds.ClearAll()
		c.metrics.ObserveForcedExpiry()
		if c.onExpired != nil {
			c.onExpired()
		}
		return nil, errors.Wrap(err, "[RefreshAccessToken] exchange failed")
	}
	if resp.Tokens.AccessToken == "" {
		c.metrics.ObserveRefresh("failure")
		c.creds.ClearAll()
		if c.onExpired != nil {
			c.onExpired()
		}
		return nil, errors.New("[RefreshAccessToken] backend returned no access token")
	}

	c.creds.SetAccess(resp.Tokens.AccessToken)
	if resp.Tokens.RefreshToken != "" {
		c.creds.SetRefresh(resp.Tokens.RefreshToken)
	}
	c.metrics.ObserveRefresh("success")
	c.logger.Debug().Msg("token refresh succeeded")
	return resp.Tokens.AccessToken, nil
}
