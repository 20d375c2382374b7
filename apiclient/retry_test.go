package apiclient_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/go-invoicing-client/apiclient"
	"github.com/ledgerline/go-invoicing-client/apierror"
	"github.com/ledgerline/go-invoicing-client/credentials"
)

// fakeRefresher stands in for the refresh coordinator. On success it
// writes the new token into the store the way the coordinator does; on
// failure it tears the store down.
type fakeRefresher struct {
	store *credentials.Store
	token string
	err   error
	calls int32
}

func (f *fakeRefresher) RefreshAccessToken(ctx context.Context) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		f.store.ClearAll()
		return "", f.err
	}
	f.store.SetAccess(f.token)
	return f.token, nil
}

func (f *fakeRefresher) Calls() int32 {
	return atomic.LoadInt32(&f.calls)
}

// protectedBackend 401s every request whose bearer is not acceptToken.
func protectedBackend(acceptToken string, hits *int32) http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/data", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		if r.Header.Get("Authorization") != "Bearer "+acceptToken {
			writeEnvelopeError(w, http.StatusUnauthorized, "token expired", "")
			return
		}
		writeEnvelope(w, http.StatusOK, widget{ID: "d-1"})
	})
	return router
}

func TestUnauthorizedTriggersRefreshAndReplay(t *testing.T) {
	var hits int32
	server := httptest.NewServer(protectedBackend("new-token", &hits))
	defer server.Close()

	store := credentials.NewStore(credentials.NewMemoryTier(), nil)
	store.SetAccess("old-token")
	store.SetRefresh("refresh-1")

	refresher := &fakeRefresher{store: store, token: "new-token"}
	client := newClient(t, server.URL, store, apiclient.WithRefresher(refresher))

	var out widget
	require.NoError(t, client.Get(context.Background(), "/data", &out))
	require.Equal(t, "d-1", out.ID)
	require.EqualValues(t, 1, refresher.Calls())
	require.EqualValues(t, 2, atomic.LoadInt32(&hits), "original request plus one replay")
	require.Equal(t, "new-token", store.Access())
}

func TestSecondUnauthorizedIsTerminal(t *testing.T) {
	var hits int32
	// The backend rejects even the refreshed token.
	server := httptest.NewServer(protectedBackend("never-issued", &hits))
	defer server.Close()

	store := credentials.NewStore(credentials.NewMemoryTier(), nil)
	store.SetAccess("old-token")
	store.SetRefresh("refresh-1")

	var expiries int32
	refresher := &fakeRefresher{store: store, token: "new-token"}
	client := newClient(t, server.URL, store,
		apiclient.WithRefresher(refresher),
		apiclient.WithSessionExpiredFunc(func() { atomic.AddInt32(&expiries, 1) }),
	)

	err := client.Get(context.Background(), "/data", nil)
	require.Error(t, err)
	require.True(t, apierror.IsSessionExpired(err))
	require.Equal(t, http.StatusUnauthorized, apierror.StatusOf(err))

	require.EqualValues(t, 1, refresher.Calls(), "a second 401 must not trigger another refresh")
	require.EqualValues(t, 2, atomic.LoadInt32(&hits))
	require.EqualValues(t, 1, atomic.LoadInt32(&expiries))
	require.Empty(t, store.Access())
	require.Empty(t, store.Refresh())
}

func TestNoRefreshTokenGoesStraightToTerminal(t *testing.T) {
	var hits int32
	server := httptest.NewServer(protectedBackend("never-issued", &hits))
	defer server.Close()

	store := credentials.NewStore(credentials.NewMemoryTier(), nil)
	store.SetAccess("old-token")

	var expiries int32
	refresher := &fakeRefresher{store: store, token: "new-token"}
	client := newClient(t, server.URL, store,
		apiclient.WithRefresher(refresher),
		apiclient.WithSessionExpiredFunc(func() { atomic.AddInt32(&expiries, 1) }),
	)

	err := client.Get(context.Background(), "/data", nil)
	require.True(t, apierror.IsSessionExpired(err))
	require.EqualValues(t, 0, refresher.Calls(), "no refresh call may be made without a refresh token")
	require.EqualValues(t, 1, atomic.LoadInt32(&hits))
	require.EqualValues(t, 1, atomic.LoadInt32(&expiries))
	require.Empty(t, store.Access())
}

func TestRefreshFailureSurfacesSessionExpired(t *testing.T) {
	var hits int32
	server := httptest.NewServer(protectedBackend("never-issued", &hits))
	defer server.Close()

	store := credentials.NewStore(credentials.NewMemoryTier(), nil)
	store.SetAccess("old-token")
	store.SetRefresh("refresh-1")

	refresher := &fakeRefresher{store: store, err: apierror.FromResponse(http.StatusUnauthorized, "refresh token revoked", nil)}
	client := newClient(t, server.URL, store, apiclient.WithRefresher(refresher))

	err := client.Get(context.Background(), "/data", nil)
	require.True(t, apierror.IsSessionExpired(err))
	require.EqualValues(t, 1, refresher.Calls())
	require.EqualValues(t, 1, atomic.LoadInt32(&hits), "the failed request is not replayed after a failed refresh")
	require.Empty(t, store.Access())
}

func TestPlainClientDoesNotIntercept(t *testing.T) {
	var hits int32
	server := httptest.NewServer(protectedBackend("never-issued", &hits))
	defer server.Close()

	store := credentials.NewStore(credentials.NewMemoryTier(), nil)
	store.SetAccess("old-token")
	store.SetRefresh("refresh-1")

	client := newClient(t, server.URL, store) // no refresher: the plain path

	err := client.Get(context.Background(), "/data", nil)
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, apierror.StatusOf(err))
	require.False(t, apierror.IsSessionExpired(err), "the plain path surfaces a plain 401")
	require.EqualValues(t, 1, atomic.LoadInt32(&hits))
	require.Equal(t, "refresh-1", store.Refresh(), "the plain path never touches stored credentials")
}

func TestRetryStateIsPerRequest(t *testing.T) {
	// Two sequential requests each get their own retry budget.
	var hits int32
	var accept atomic.Value
	accept.Store("token-1")

	router := mux.NewRouter()
	router.HandleFunc("/data", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.Header.Get("Authorization") != "Bearer "+accept.Load().(string) {
			writeEnvelopeError(w, http.StatusUnauthorized, "token expired", "")
			return
		}
		writeEnvelope(w, http.StatusOK, widget{ID: "d-1"})
	})
	server := httptest.NewServer(router)
	defer server.Close()

	store := credentials.NewStore(credentials.NewMemoryTier(), nil)
	store.SetAccess("stale")
	store.SetRefresh("refresh-1")

	refresher := &fakeRefresher{store: store, token: "token-1"}
	client := newClient(t, server.URL, store, apiclient.WithRefresher(refresher))

	require.NoError(t, client.Get(context.Background(), "/data", nil))
	require.EqualValues(t, 1, refresher.Calls())

	// Rotate server-side again; the next request refreshes independently.
	accept.Store("token-2")
	refresher.token = "token-2"
	require.NoError(t, client.Get(context.Background(), "/data", nil))
	require.EqualValues(t, 2, refresher.Calls())
}
