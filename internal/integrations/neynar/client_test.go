package neynar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &Client{BaseURL: srv.URL, APIKey: "test-key", HTTPClient: srv.Client()}
}

func TestUserByAddress(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/farcaster/user/bulk-by-address", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "0xabc", r.URL.Query().Get("addresses"))
		assert.Equal(t, "7", r.URL.Query().Get("viewer_fid"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"0xabc":[{"fid":42,"username":"ada","display_name":"Ada","pfp_url":"https://img/ada.png"}]}`))
	})

	user, err := client.UserByAddress(context.Background(), " 0xABC ", 7)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, int64(42), user.Fid)
	assert.Equal(t, "ada", user.Username)
	assert.Equal(t, "Ada", user.DisplayName)
}

func TestUserByAddressNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"NotFound","message":"No users found"}`))
	})

	user, err := client.UserByAddress(context.Background(), "0xabc", 0)
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestUserByFid(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/farcaster/user/bulk", r.URL.Path)
		assert.Equal(t, "42", r.URL.Query().Get("fids"))
		_, _ = w.Write([]byte(`{"users":[{"fid":42,"username":"ada"}]}`))
	})

	user, err := client.UserByFid(context.Background(), 42)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "ada", user.Username)
}

func TestSearchUsers(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ad", r.URL.Query().Get("q"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"result":{"users":[{"fid":1,"username":"ada"},{"fid":2,"username":"adam"}]}}`))
	})

	users, err := client.SearchUsers(context.Background(), "ad", 50)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestAPIErrorsAreSurfaced(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"code":"RateLimit","message":"slow down"}`))
	})

	_, err := client.SearchUsers(context.Background(), "ada", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slow down")
}

func TestMissingAPIKey(t *testing.T) {
	client := &Client{BaseURL: "http://unused", HTTPClient: http.DefaultClient}
	_, err := client.UserByFid(context.Background(), 1)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}
