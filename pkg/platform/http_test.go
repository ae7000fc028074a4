package platform

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestClient(t *testing.T, h http.Handler) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewHTTPClient(HTTPConfig{
		APIURL:       srv.URL + "/",
		ClientID:     "seed-client",
		ClientSecret: "s3cret",
	}, NewMemoryTokenCache(), zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	return c
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.New()
	require.NoError(t, tok.Set(jwt.ExpirationKey, exp))
	raw, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, []byte("test-signing-key")))
	require.NoError(t, err)
	return string(raw)
}

func TestPatchAPIClientSendsExplicitNull(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/apiclients/sf-1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"OrderCheckoutIntegrationEventID":null}`, string(body))
		_ = json.NewEncoder(w).Encode(APIClient{ID: "sf-1", AppName: "Storefront - Acme"})
	})
	c := newTestClient(t, mux)

	out, err := c.PatchAPIClient(context.Background(), "tok", "sf-1", APIClientPatch{})
	require.NoError(t, err)
	assert.Equal(t, "sf-1", out.ID)
	assert.Nil(t, out.OrderCheckoutIntegrationEventID)
}

func TestListWalksEveryPage(t *testing.T) {
	var pages []string
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/buyers", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "Acme*", q.Get("Name"))
		assert.Equal(t, "true", q.Get("Active"))
		assert.Equal(t, "100", q.Get("pageSize"))
		page := q.Get("page")
		pages = append(pages, page)
		n, _ := strconv.Atoi(page)
		_ = json.NewEncoder(w).Encode(ListPage[Buyer]{
			Meta:  Meta{Page: n, PageSize: 100, TotalCount: 3, TotalPages: 3},
			Items: []Buyer{{ID: "b" + page, Name: "Acme " + page}},
		})
	})
	c := newTestClient(t, mux)

	buyers, err := c.ListBuyers(context.Background(), "tok", Filters{"Name": "Acme*", "Active": "true"})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, pages)
	require.Len(t, buyers, 3)
	assert.Equal(t, "b3", buyers[2].ID)
}

func TestListStopsOnEmptyResult(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/messagesenders", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(ListPage[MessageSender]{Meta: Meta{Page: 1, PageSize: 100}})
	})
	c := newTestClient(t, mux)

	senders, err := c.ListMessageSenders(context.Background(), "tok")
	require.NoError(t, err)
	assert.Empty(t, senders)
	assert.Equal(t, int32(1), calls.Load())
}

func TestErrorEnvelopeBecomesAPIError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/xpindices", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"Errors":[{"ErrorCode":"IdExists","Message":"index already defined"},{"ErrorCode":"InvalidRequest","Message":"bad key"}]}`)
	})
	mux.HandleFunc("/v1/messagesenders/gone", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	err := c.PutXpIndex(ctx, "tok", XpIndex{ThingType: "Product", Key: "Status"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, http.MethodPut, apiErr.Method)
	assert.Equal(t, "/v1/xpindices", apiErr.Path)
	require.Len(t, apiErr.Errors, 2)
	assert.True(t, apiErr.HasCode("IdExists"))
	assert.True(t, apiErr.HasCode("InvalidRequest"))
	assert.False(t, apiErr.HasCode("NotFound"))
	assert.True(t, IsIDExists(err))
	assert.False(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "index already defined")

	err = c.DeleteMessageSender(ctx, "tok", "gone")
	require.ErrorAs(t, err, &apiErr)
	assert.Empty(t, apiErr.Errors)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsIDExists(err))
	assert.Contains(t, err.Error(), "Not Found")
}

func TestAuthenticateCachesValidToken(t *testing.T) {
	var hits atomic.Int32
	token := signedToken(t, time.Now().Add(time.Hour))
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		assert.Equal(t, "seed-client", r.Form.Get("client_id"))
		assert.Equal(t, "s3cret", r.Form.Get("client_secret"))
		assert.Equal(t, RoleFullAccess, r.Form.Get("scope"))
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": token, "expires_in": 3600})
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	first, err := c.Authenticate(ctx)
	require.NoError(t, err)
	second, err := c.Authenticate(ctx)
	require.NoError(t, err)
	assert.Equal(t, token, first)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), hits.Load())
}

func TestAuthenticateRefetchesExpiredToken(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		// inside the skew window, so never cached
		tok := signedToken(t, time.Now().Add(10*time.Second))
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": tok, "expires_in": 3600})
	})
	c := newTestClient(t, mux)

	for i := 0; i < 2; i++ {
		_, err := c.Authenticate(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), hits.Load())
}

func TestAuthenticateRequiresCredentials(t *testing.T) {
	c, err := NewHTTPClient(HTTPConfig{APIURL: "http://platform.invalid"}, nil, nil)
	require.NoError(t, err)
	_, err = c.Authenticate(context.Background())
	assert.ErrorContains(t, err, "credentials")
}

func TestTokenTTL(t *testing.T) {
	now := time.Now().Truncate(time.Second)

	t.Run("exp claim wins over expires_in", func(t *testing.T) {
		ttl, err := tokenTTL(signedToken(t, now.Add(time.Hour)), 60, now)
		require.NoError(t, err)
		assert.Equal(t, time.Hour-tokenSkew, ttl)
	})

	t.Run("opaque token falls back to expires_in", func(t *testing.T) {
		ttl, err := tokenTTL("opaque-token", 600, now)
		require.NoError(t, err)
		assert.Equal(t, 600*time.Second-tokenSkew, ttl)
	})

	t.Run("expired token is not cached", func(t *testing.T) {
		_, err := tokenTTL(signedToken(t, now.Add(-time.Minute)), 3600, now)
		assert.Error(t, err)
	})

	t.Run("lifetime inside the skew is not cached", func(t *testing.T) {
		_, err := tokenTTL("opaque-token", 20, now)
		assert.Error(t, err)
	})
}
