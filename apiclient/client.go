// Package apiclient dispatches every outbound call to the invoicing
// backend. It injects the current access token as a bearer credential,
// decodes the uniform response envelope, and drives the refresh-and-retry
// policy on 401 responses.
package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/ledgerline/go-invoicing-client/credentials"
	"github.com/ledgerline/go-invoicing-client/metrics"
)

// Refresher exchanges the stored refresh token for a new access token.
// Implemented by refresh.Coordinator.
type Refresher interface {
	RefreshAccessToken(ctx context.Context) (string, error)
}

// Client issues authenticated requests against one backend origin.
//
// A Client built without WithRefresher is the "plain" dispatch path: 401s
// surface as ordinary errors with no refresh attempt. The refresh
// coordinator uses a plain client for the refresh call itself so a
// rejected refresh token cannot trigger another refresh.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	creds     *credentials.Store
	refresher Refresher
	onExpired func()
	logger    zerolog.Logger
	metrics   *metrics.Metrics
}

// Option modifies a Client at construction time.
type Option func(*Client)

// WithHTTPClient replaces the underlying transport. The default carries a
// 30 second timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRefresher attaches the response interceptor: 401s will trigger a
// single-flight refresh followed by at most one replay of the request.
func WithRefresher(r Refresher) Option {
	return func(c *Client) { c.refresher = r }
}

// WithSessionExpiredFunc registers the callback fired when a request ends
// in terminal expiry (no refresh token, or a second 401 after retry).
func WithSessionExpiredFunc(fn func()) Option {
	return func(c *Client) { c.onExpired = fn }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// New builds a client for the backend at baseURL. creds is required; the
// dispatcher reads the access token from it before every request.
func New(baseURL string, creds *credentials.Store, options ...Option) (*Client, error) {
	if creds == nil {
		return nil, errors.New("[apiclient.New] credential store is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "[apiclient.New] invalid base URL")
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, errors.New("[apiclient.New] base URL must be absolute")
	}

	c := &Client{
		baseURL: parsed,
		http:    &http.Client{Timeout: 30 * time.Second},
		creds:   creds,
		logger:  zerolog.Nop(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Get issues a GET and unmarshals the envelope's data into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.dispatch(ctx, http.MethodGet, path, nil, "", out, requestOptions{})
}

// Post issues a POST with a JSON body. Options can attach an idempotency
// key for state-mutating operations that must not double-apply on retry.
func (c *Client) Post(ctx context.Context, path string, body, out any, options ...RequestOption) error {
	ro := requestOptions{}
	for _, opt := range options {
		opt(&ro)
	}
	payload, err := marshalBody(body)
	if err != nil {
		return err
	}
	return c.dispatch(ctx, http.MethodPost, path, payload, contentTypeJSON, out, ro)
}

// Put issues a PUT with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	payload, err := marshalBody(body)
	if err != nil {
		return err
	}
	return c.dispatch(ctx, http.MethodPut, path, payload, contentTypeJSON, out, requestOptions{})
}

// Patch issues a PATCH with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	payload, err := marshalBody(body)
	if err != nil {
		return err
	}
	return c.dispatch(ctx, http.MethodPatch, path, payload, contentTypeJSON, out, requestOptions{})
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.dispatch(ctx, http.MethodDelete, path, nil, "", out, requestOptions{})
}

// PostForm issues a POST with a pre-encoded multipart body. contentType
// must be the multipart writer's FormDataContentType so the boundary
// reaches the backend; no default content type is applied.
func (c *Client) PostForm(ctx context.Context, path string, form []byte, contentType string, out any) error {
	return c.dispatch(ctx, http.MethodPost, path, form, contentType, out, requestOptions{})
}

// RequestOption modifies a single request.
type RequestOption func(*requestOptions)

type requestOptions struct {
	idempotencyKey string
}

// WithIdempotencyKey forwards key in the Idempotency-Key header so the
// backend can deduplicate repeated submissions of the same operation.
func WithIdempotencyKey(key string) RequestOption {
	return func(ro *requestOptions) { ro.idempotencyKey = key }
}
