package lulu

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTokenServer(t *testing.T, calls *atomic.Int64, expiresIn int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.FormValue("grant_type") != "client_credentials" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "token-abc",
			"expires_in":   expiresIn,
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestTokenIsCachedAcrossCalls(t *testing.T) {
	var calls atomic.Int64
	server := newTokenServer(t, &calls, 3600)
	mgr := NewTokenManager(server.URL, "key", "secret")

	for i := 0; i < 3; i++ {
		token, err := mgr.Token(context.Background())
		if err != nil {
			t.Fatalf("token call %d: %v", i, err)
		}
		if token != "token-abc" {
			t.Fatalf("token = %q", token)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("token endpoint hit %d times, want 1", calls.Load())
	}
}

func TestInvalidateForcesReauthentication(t *testing.T) {
	var calls atomic.Int64
	server := newTokenServer(t, &calls, 3600)
	mgr := NewTokenManager(server.URL, "key", "secret")

	if _, err := mgr.Token(context.Background()); err != nil {
		t.Fatalf("first token: %v", err)
	}
	mgr.Invalidate()
	if _, err := mgr.Token(context.Background()); err != nil {
		t.Fatalf("token after invalidate: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("token endpoint hit %d times, want 2", calls.Load())
	}
}

func TestExpiredTokenIsRefreshed(t *testing.T) {
	var calls atomic.Int64
	server := newTokenServer(t, &calls, 3600)
	mgr := NewTokenManager(server.URL, "key", "secret")

	clock := time.Now()
	mgr.now = func() time.Time { return clock }

	if _, err := mgr.Token(context.Background()); err != nil {
		t.Fatalf("first token: %v", err)
	}
	clock = clock.Add(2 * time.Hour)
	if _, err := mgr.Token(context.Background()); err != nil {
		t.Fatalf("token after expiry: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("token endpoint hit %d times, want 2", calls.Load())
	}
}

func TestMissingCredentials(t *testing.T) {
	mgr := NewTokenManager("http://unused", "", "")
	if _, err := mgr.Token(context.Background()); !errors.Is(err, ErrCredentialsMissing) {
		t.Fatalf("expected ErrCredentialsMissing, got %v", err)
	}
}
