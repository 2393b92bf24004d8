package lms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pavel4en/lms-api-app/internal/httpx"
	"github.com/Pavel4en/lms-api-app/internal/report"
)

func newTokenServer(t *testing.T, exchanges *int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth/token", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "client_credentials", body["grant_type"])
		assert.Equal(t, "id", body["client_id"])
		assert.Equal(t, "secret", body["client_secret"])

		*exchanges++
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "expires_in": 3600})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func tokenClient(srv *httptest.Server) *Client {
	return New(srv.URL, srv.URL+"/oauth/token", "id", "secret", Options{
		Retry:    httpx.Disabled(),
		Reporter: report.Discard(),
	})
}

func TestEnsureTokenCachesUntilExpiry(t *testing.T) {
	exchanges := 0
	srv := newTokenServer(t, &exchanges)
	c := tokenClient(srv)

	now := time.Now()
	c.nowFunc = func() time.Time { return now }

	tok, err := c.ensureToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok", tok)
	assert.Equal(t, 1, exchanges)

	// Still valid: no new exchange.
	now = now.Add(30 * time.Minute)
	_, err = c.ensureToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, exchanges)

	// Expired: refreshed.
	now = now.Add(time.Hour)
	_, err = c.ensureToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, exchanges)
}

func TestEnsureTokenSingleFlight(t *testing.T) {
	exchanges := 0
	srv := newTokenServer(t, &exchanges)
	c := tokenClient(srv)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.ensureToken(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, exchanges, "concurrent callers must share one refresh")
}

func TestEnsureTokenPropagatesAuthFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth/token", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_client"}`, http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := tokenClient(srv)
	_, err := c.ensureToken(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token exchange failed")
}

func TestEnsureTokenRejectsEmptyToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth/token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"expires_in": 3600})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := tokenClient(srv)
	_, err := c.ensureToken(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no access_token")
}
