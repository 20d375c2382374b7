package apiclient_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/go-invoicing-client/apiclient"
	"github.com/ledgerline/go-invoicing-client/apierror"
	"github.com/ledgerline/go-invoicing-client/credentials"
)

type widget struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func writeEnvelope(w http.ResponseWriter, status int, data any) {
	raw, _ := json.Marshal(data)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"success":true,"data":%s}`, raw)
}

func writeEnvelopeError(w http.ResponseWriter, status int, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if details != "" {
		fmt.Fprintf(w, `{"success":false,"error":%q,"details":%s}`, message, details)
		return
	}
	fmt.Fprintf(w, `{"success":false,"error":%q}`, message)
}

func newClient(t *testing.T, serverURL string, store *credentials.Store, options ...apiclient.Option) *apiclient.Client {
	t.Helper()
	client, err := apiclient.New(serverURL, store, options...)
	require.NoError(t, err)
	return client
}

func TestBearerInjection(t *testing.T) {
	var gotAuth string
	router := mux.NewRouter()
	router.HandleFunc("/widgets/{id}", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		writeEnvelope(w, http.StatusOK, widget{ID: mux.Vars(r)["id"], Name: "gear"})
	}).Methods(http.MethodGet)
	server := httptest.NewServer(router)
	defer server.Close()

	store := credentials.NewStore(credentials.NewMemoryTier(), nil)
	store.SetAccess("token-abc")
	client := newClient(t, server.URL, store)

	var out widget
	require.NoError(t, client.Get(context.Background(), "/widgets/w-1", &out))
	require.Equal(t, "Bearer token-abc", gotAuth)
	require.Equal(t, widget{ID: "w-1", Name: "gear"}, out)
}

func TestMissingTokenIsNotAnError(t *testing.T) {
	var gotAuth string
	var hadAuth bool
	router := mux.NewRouter()
	router.HandleFunc("/widgets", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, hadAuth = r.Header["Authorization"]
		writeEnvelope(w, http.StatusOK, []widget{})
	})
	server := httptest.NewServer(router)
	defer server.Close()

	client := newClient(t, server.URL, credentials.NewStore(credentials.NewMemoryTier(), nil))

	var out []widget
	require.NoError(t, client.Get(context.Background(), "/widgets", &out))
	require.False(t, hadAuth, "unauthenticated request must carry no Authorization header, got %q", gotAuth)
}

func TestErrorNormalization(t *testing.T) {
	router := mux.NewRouter()
	router.HandleFunc("/widgets", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelopeError(w, http.StatusUnprocessableEntity, "validation failed", `{"name":"required"}`)
	}).Methods(http.MethodPost)
	server := httptest.NewServer(router)
	defer server.Close()

	client := newClient(t, server.URL, credentials.NewStore(credentials.NewMemoryTier(), nil))

	err := client.Post(context.Background(), "/widgets", widget{}, nil)
	require.Error(t, err)

	var apiErr *apierror.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	require.Equal(t, "validation failed", apiErr.Message)
	require.JSONEq(t, `{"name":"required"}`, string(apiErr.Details))
	require.False(t, apierror.IsSessionExpired(err))
}

func TestTransportFailureHasNoStatus(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close() // refuse connections

	client := newClient(t, server.URL, credentials.NewStore(credentials.NewMemoryTier(), nil))

	err := client.Get(context.Background(), "/widgets", nil)
	require.Error(t, err)
	require.Equal(t, 0, apierror.StatusOf(err))
}

func TestIdempotencyKeyForwarded(t *testing.T) {
	var gotKey string
	router := mux.NewRouter()
	router.HandleFunc("/payments", func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Idempotency-Key")
		writeEnvelope(w, http.StatusCreated, widget{ID: "p-1"})
	}).Methods(http.MethodPost)
	server := httptest.NewServer(router)
	defer server.Close()

	client := newClient(t, server.URL, credentials.NewStore(credentials.NewMemoryTier(), nil))

	key, err := apiclient.NewIdempotencyKey()
	require.NoError(t, err)
	require.NoError(t, client.Post(context.Background(), "/payments", widget{}, nil,
		apiclient.WithIdempotencyKey(key)))
	require.Equal(t, key, gotKey)
}

func TestPostFormKeepsMultipartContentType(t *testing.T) {
	var gotContentType, gotField string
	router := mux.NewRouter()
	router.HandleFunc("/uploads", func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotField = r.FormValue("kind")
		writeEnvelope(w, http.StatusOK, nil)
	}).Methods(http.MethodPost)
	server := httptest.NewServer(router)
	defer server.Close()

	client := newClient(t, server.URL, credentials.NewStore(credentials.NewMemoryTier(), nil))

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	require.NoError(t, form.WriteField("kind", "logo"))
	require.NoError(t, form.Close())

	err := client.PostForm(context.Background(), "/uploads", buf.Bytes(), form.FormDataContentType(), nil)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(gotContentType, "multipart/form-data; boundary="))
	require.Equal(t, "logo", gotField)
}

func TestRequestIDAttached(t *testing.T) {
	var gotID string
	router := mux.NewRouter()
	router.HandleFunc("/widgets", func(w http.ResponseWriter, r *http.Request) {
		gotID = r.Header.Get("X-Request-ID")
		writeEnvelope(w, http.StatusOK, nil)
	})
	server := httptest.NewServer(router)
	defer server.Close()

	client := newClient(t, server.URL, credentials.NewStore(credentials.NewMemoryTier(), nil))
	require.NoError(t, client.Get(context.Background(), "/widgets", nil))
	require.NotEmpty(t, gotID)
}
