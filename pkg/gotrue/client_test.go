package gotrue

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jwalitptl/consultorio/pkg/circuitbreaker"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc, retries int) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{
		URL:        srv.URL + "/",
		AnonKey:    "anon",
		Module:     "odonto",
		Retries:    retries,
		RetryDelay: time.Millisecond,
	}, zerolog.Nop())
	require.NoError(t, err)
	return c
}

func TestNewClientRequiresConfig(t *testing.T) {
	_, err := NewClient(Config{URL: "http://x"}, zerolog.Nop())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSignInWithPassword(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/token", r.URL.Path)
		assert.Equal(t, "password", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "anon", r.Header.Get("apikey"))
		assert.Equal(t, "odonto", r.Header.Get("X-App-Module"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "a@b.com", body["email"])

		_, _ = w.Write([]byte(`{"access_token":"at","refresh_token":"rt","user":{"id":"u1","email":"a@b.com"}}`))
	}, 0)

	s, err := c.SignInWithPassword(context.Background(), "a@b.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "at", s.AccessToken)
	assert.Equal(t, "rt", s.RefreshToken)
	assert.Equal(t, "u1", s.User.ID)
}

func TestSignInProviderError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Email not confirmed"}`))
	}, 2)

	_, err := c.SignInWithPassword(context.Background(), "a@b.com", "secret")
	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, http.StatusBadRequest, pe.Status)
	assert.Equal(t, "invalid_grant", pe.Code)
	assert.Equal(t, "Email not confirmed", pe.Message)
}

func TestRetriesOn5xx(t *testing.T) {
	var attempts int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"at","refresh_token":"rt"}`))
	}, 1)

	s, err := c.RefreshSession(context.Background(), "rt-old")
	require.NoError(t, err)
	assert.Equal(t, "at", s.AccessToken)
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestSignUpWithoutSession(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/signup", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"u1","email":"a@b.com","confirmation_sent_at":"2025-01-01T00:00:00Z"}`))
	}, 0)

	s, err := c.SignUp(context.Background(), "a@b.com", "secret")
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestRecoverSendsRedirect(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/recover", r.URL.Path)
		assert.Equal(t, "https://app.example.com/reset/callback", r.URL.Query().Get("redirect_to"))
		_, _ = w.Write([]byte(`{}`))
	}, 0)

	assert.NoError(t, c.Recover(context.Background(), "a@b.com", "https://app.example.com/reset/callback"))
}

func TestBreakerOpensOnRepeated5xx(t *testing.T) {
	var attempts int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}, 0)

	for i := 0; i < 5; i++ {
		_, err := c.RefreshSession(context.Background(), "rt")
		require.Error(t, err)
	}
	_, err := c.RefreshSession(context.Background(), "rt")
	assert.True(t, circuitbreaker.IsOpen(err))
	assert.Equal(t, int32(5), atomic.LoadInt32(&attempts))
}
