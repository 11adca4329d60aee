package lulu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"bindery/internal/services"
)

// tokenRefreshLeeway is subtracted from the vendor's expires_in so a token
// is never used right at its expiry edge.
const tokenRefreshLeeway = 30 * time.Second

// ErrCredentialsMissing is returned when the client key or secret is not
// configured.
var ErrCredentialsMissing = errors.New("vendor client credentials not configured")

// HTTPDoer describes the HTTP client used for vendor API calls.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenManager exchanges client credentials for short-lived bearer tokens
// and caches them until shortly before expiry. Safe for concurrent use.
type TokenManager struct {
	tokenURL     string
	clientKey    string
	clientSecret string
	httpClient   HTTPDoer
	now          func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// TokenManagerOption customises TokenManager construction.
type TokenManagerOption func(*TokenManager)

// WithTokenHTTPClient overrides the HTTP client used for token exchange.
func WithTokenHTTPClient(client HTTPDoer) TokenManagerOption {
	return func(m *TokenManager) {
		m.httpClient = client
	}
}

// NewTokenManager builds a TokenManager for the vendor's token endpoint.
func NewTokenManager(tokenURL, clientKey, clientSecret string, opts ...TokenManagerOption) *TokenManager {
	mgr := &TokenManager{
		tokenURL:     strings.TrimSpace(tokenURL),
		clientKey:    strings.TrimSpace(clientKey),
		clientSecret: strings.TrimSpace(clientSecret),
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(mgr)
	}
	return mgr
}

// Token returns a valid bearer token, exchanging credentials when the
// cached one is absent or near expiry.
func (m *TokenManager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token != "" && m.now().Before(m.expiresAt) {
		return m.token, nil
	}
	return m.refreshLocked(ctx)
}

// Invalidate drops the cached token. Callers do this after a 401 so the
// next call re-authenticates instead of replaying a stale token.
func (m *TokenManager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	m.expiresAt = time.Time{}
}

func (m *TokenManager) refreshLocked(ctx context.Context) (string, error) {
	if m.clientKey == "" || m.clientSecret == "" {
		return "", ErrCredentialsMissing
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(m.clientKey, m.clientSecret)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "lulu", "authenticate", "token exchange failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "lulu", "authenticate", "read token response", err)
	}
	if resp.StatusCode != http.StatusOK {
		marker := services.ErrVendor
		if isTransientStatus(resp.StatusCode) {
			marker = services.ErrTransient
		}
		return "", services.Wrap(marker, "lulu", "authenticate",
			fmt.Sprintf("token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", services.Wrap(services.ErrVendor, "lulu", "authenticate", "decode token response", err)
	}
	if payload.AccessToken == "" {
		return "", services.Wrap(services.ErrVendor, "lulu", "authenticate", "token response missing access_token", nil)
	}

	lifetime := time.Duration(payload.ExpiresIn) * time.Second
	if lifetime <= tokenRefreshLeeway {
		lifetime = tokenRefreshLeeway * 2
	}
	m.token = payload.AccessToken
	m.expiresAt = m.now().Add(lifetime - tokenRefreshLeeway)
	return m.token, nil
}

func isTransientStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}
