package tickets

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/tessera/internal/common"
)

func newRefresherWithServer(t *testing.T, handler http.HandlerFunc) (*TokenRefresher, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	refresher := NewTokenRefresher(&common.OAuthConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		TokenURL:     server.URL + "/oauth/token",
	}, common.GetLogger())
	refresher.retryDelay = 0 // no backoff in tests
	return refresher, server
}

func writeTokenResponse(w http.ResponseWriter, access, refresh string) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"access_token":%q,"refresh_token":%q,"token_type":"bearer","expires_in":3600}`, access, refresh)
}

func TestRefresh_RotatesTokenPair(t *testing.T) {
	refresher, _ := newRefresherWithServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "old-refresh", r.Form.Get("refresh_token"))
		// Client credentials ride in the form body, not a Basic auth header.
		assert.Equal(t, "client-id", r.Form.Get("client_id"))
		writeTokenResponse(w, "new-access", "new-refresh")
	})

	token, err := refresher.Refresh(context.Background(), "old-refresh")
	require.NoError(t, err)
	assert.Equal(t, "new-access", token.AccessToken)
	assert.Equal(t, "new-refresh", token.RefreshToken)
	assert.False(t, token.Expiry.IsZero())
}

func TestRefresh_KeepsOldRefreshTokenWhenNotRotated(t *testing.T) {
	refresher, _ := newRefresherWithServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"new-access","token_type":"bearer","expires_in":3600}`)
	})

	token, err := refresher.Refresh(context.Background(), "old-refresh")
	require.NoError(t, err)
	assert.Equal(t, "old-refresh", token.RefreshToken)
}

func TestRefresh_RetriesOnceOnServerError(t *testing.T) {
	var calls int32
	refresher, _ := newRefresherWithServer(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "upstream hiccup", http.StatusBadGateway)
			return
		}
		writeTokenResponse(w, "new-access", "new-refresh")
	})

	token, err := refresher.Refresh(context.Background(), "old-refresh")
	require.NoError(t, err)
	assert.Equal(t, "new-access", token.AccessToken)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestRefresh_RevokedGrantIsTerminal(t *testing.T) {
	var calls int32
	refresher, _ := newRefresherWithServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"invalid_grant"}`)
	})

	_, err := refresher.Refresh(context.Background(), "revoked-refresh")
	assert.Error(t, err)
	// No retry for a rejected grant.
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
