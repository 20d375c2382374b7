// Package invoicingclient assembles the full authenticated client for the
// invoicing backend: credential store, request dispatcher, single-flight
// refresh coordinator and session lifecycle manager, wired together so a
// 401 anywhere renews the token pair once and replays the failed request.
package invoicingclient

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/ledgerline/go-invoicing-client/apiclient"
	"github.com/ledgerline/go-invoicing-client/credentials"
	"github.com/ledgerline/go-invoicing-client/internal/config"
	"github.com/ledgerline/go-invoicing-client/invoicing"
	"github.com/ledgerline/go-invoicing-client/metrics"
	"github.com/ledgerline/go-invoicing-client/refresh"
	"github.com/ledgerline/go-invoicing-client/session"
)

// Client is the assembled SDK. Fields are the individual subsystems;
// most applications only touch Sessions and Invoicing.
type Client struct {
	Credentials *credentials.Store
	API         *apiclient.Client
	Refresh     *refresh.Coordinator
	Sessions    *session.Manager
	Invoicing   *invoicing.Service
	Metrics     *metrics.Metrics
}

type settings struct {
	baseURL string
	logger  zerolog.Logger
	metrics *metrics.Metrics
	cache   session.Cache
}

// Option modifies the assembled client.
type Option func(*settings)

// WithBaseURL overrides the API_BASE_URL environment configuration.
func WithBaseURL(baseURL string) Option {
	return func(s *settings) { s.baseURL = baseURL }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithMetrics enables prometheus instrumentation across the subsystems.
// Register m.Collectors() with your registry.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *settings) { s.metrics = m }
}

// WithSessionCache replaces the in-memory session cache, e.g. with a
// file-backed implementation.
func WithSessionCache(cache session.Cache) Option {
	return func(s *settings) { s.cache = cache }
}

// New wires the whole stack. The refresh coordinator runs on a plain
// dispatcher with no interceptor; every other request path renews tokens
// on 401 and reports forced expiry to the session manager.
func New(options ...Option) (*Client, error) {
	cfg := config.New()
	s := settings{
		baseURL: cfg.GetBaseURL(),
		logger:  zerolog.Nop(),
		cache:   session.NewMemoryCache(),
	}
	for _, opt := range options {
		opt(&s)
	}

	base, err := url.Parse(s.baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "[invoicingclient.New] invalid base URL")
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, errors.Wrap(err, "[invoicingclient.New] cookiejar")
	}
	store := credentials.NewStore(
		credentials.NewMemoryTier(),
		credentials.NewCookieTier(jar, base),
	)

	// The session manager is constructed last but the expiry callback is
	// needed earlier; bind it through a pointer that is set below.
	var manager *session.Manager
	onExpired := func() {
		if manager != nil {
			manager.ForceExpire()
		}
	}

	plain, err := apiclient.New(s.baseURL, store,
		apiclient.WithHTTPClient(&http.Client{Jar: jar, Timeout: cfg.GetRefreshTimeout()}),
		apiclient.WithLogger(s.logger),
	)
	if err != nil {
		return nil, err
	}

	coordinator, err := refresh.New(store, plain,
		refresh.WithSessionExpiredFunc(onExpired),
		refresh.WithLogger(s.logger),
		refresh.WithMetrics(s.metrics),
	)
	if err != nil {
		return nil, err
	}

	api, err := apiclient.New(s.baseURL, store,
		apiclient.WithHTTPClient(&http.Client{Jar: jar, Timeout: cfg.GetHTTPTimeout()}),
		apiclient.WithRefresher(coordinator),
		apiclient.WithSessionExpiredFunc(onExpired),
		apiclient.WithLogger(s.logger),
		apiclient.WithMetrics(s.metrics),
	)
	if err != nil {
		return nil, err
	}

	manager, err = session.New(api, store, s.cache, session.WithLogger(s.logger))
	if err != nil {
		return nil, err
	}

	invoices, err := invoicing.NewService(api)
	if err != nil {
		return nil, err
	}

	return &Client{
		Credentials: store,
		API:         api,
		Refresh:     coordinator,
		Sessions:    manager,
		Invoicing:   invoices,
		Metrics:     s.metrics,
	}, nil
}
