package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aurashield/mentions-bot/internal/transport"
)

// Token is a cached bearer token. Tokens live in memory for the process
// lifetime and are never persisted.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

func (t Token) expired() bool {
	// Refresh a little early so a token never dies mid-request.
	return time.Now().After(t.ExpiresAt.Add(-30 * time.Second))
}

// Grant acquires a token for one platform. New platforms add a grant
// implementation, not new call sites.
type Grant interface {
	Acquire(ctx context.Context, client *transport.Client) (Token, error)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func parseTokenResponse(body []byte) (Token, error) {
	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return Token{}, fmt.Errorf("failed to parse token response: %w", err)
	}
	if tr.AccessToken == "" {
		return Token{}, fmt.Errorf("token response contained no access_token")
	}
	expiresIn := tr.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	return Token{
		Value:     tr.AccessToken,
		ExpiresAt: time.Now().Add(time.Duration(expiresIn) * time.Second),
	}, nil
}

// ClientCredentialsGrant posts grant_type=client_credentials with basic
// auth, the flow forum and microblog APIs use.
type ClientCredentialsGrant struct {
	Platform     string
	TokenURL     string
	ClientID     string
	ClientSecret string
}

func (g *ClientCredentialsGrant) Acquire(ctx context.Context, client *transport.Client) (Token, error) {
	resp, err := client.Execute(ctx, &transport.Request{
		Method:     "POST",
		URL:        g.TokenURL,
		Platform:   g.Platform,
		BasicAuth:  [2]string{g.ClientID, g.ClientSecret},
		FormData:   map[string]string{"grant_type": "client_credentials"},
		Idempotent: true,
	})
	if err != nil {
		return Token{}, fmt.Errorf("%s client-credentials grant failed: %w", g.Platform, err)
	}
	return parseTokenResponse(resp.Body())
}

// PasswordGrant exchanges resource-owner credentials, used for
// self-hosted forum instances that do not issue app-only tokens.
type PasswordGrant struct {
	Platform     string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
}

func (g *PasswordGrant) Acquire(ctx context.Context, client *transport.Client) (Token, error) {
	resp, err := client.Execute(ctx, &transport.Request{
		Method:    "POST",
		URL:       g.TokenURL,
		Platform:  g.Platform,
		BasicAuth: [2]string{g.ClientID, g.ClientSecret},
		FormData: map[string]string{
			"grant_type": "password",
			"username":   g.Username,
			"password":   g.Password,
		},
		Idempotent: true,
	})
	if err != nil {
		return Token{}, fmt.Errorf("%s password grant failed: %w", g.Platform, err)
	}
	return parseTokenResponse(resp.Body())
}

// RefreshTokenGrant trades a long-lived refresh token for a bearer
// token, the flow the video platform requires.
type RefreshTokenGrant struct {
	Platform     string
	TokenURL     string
	ClientID     string
	ClientSecret string
	RefreshToken string
}

func (g *RefreshTokenGrant) Acquire(ctx context.Context, client *transport.Client) (Token, error) {
	resp, err := client.Execute(ctx, &transport.Request{
		Method:   "POST",
		URL:      g.TokenURL,
		Platform: g.Platform,
		FormData: map[string]string{
			"grant_type":    "refresh_token",
			"client_id":     g.ClientID,
			"client_secret": g.ClientSecret,
			"refresh_token": g.RefreshToken,
		},
		Idempotent: true,
	})
	if err != nil {
		return Token{}, fmt.Errorf("%s refresh-token grant failed: %w", g.Platform, err)
	}
	return parseTokenResponse(resp.Body())
}

// Manager acquires and caches short-lived bearer tokens per platform.
// Constructed once per process and passed to connectors; access to the
// cache is synchronized so concurrent 401s do not trigger re-auth
// storms.
type Manager struct {
	client *transport.Client
	grants map[string]Grant

	mu     sync.Mutex
	tokens map[string]Token
}

// NewManager creates a credential manager over the given grants, keyed
// by platform identifier.
func NewManager(client *transport.Client, grants map[string]Grant) *Manager {
	return &Manager{
		client: client,
		grants: grants,
		tokens: make(map[string]Token),
	}
}

// Token returns a valid bearer token for the platform, acquiring one
// through the platform's grant on first use or after expiry. The
// refresh is single-flight: the cache lock is held across the grant
// call so concurrent callers wait for one acquisition.
func (m *Manager) Token(ctx context.Context, platform string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if tok, ok := m.tokens[platform]; ok && !tok.expired() {
		return tok.Value, nil
	}

	grant, ok := m.grants[platform]
	if !ok {
		return "", fmt.Errorf("no credential grant registered for platform %q", platform)
	}

	logrus.Debugf("Acquiring token for platform %s", platform)
	tok, err := grant.Acquire(ctx, m.client)
	if err != nil {
		return "", err
	}

	m.tokens[platform] = tok
	return tok.Value, nil
}

// Invalidate drops the cached token for a platform so the next Token
// call re-acquires.
func (m *Manager) Invalidate(platform string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, platform)
}

// Do runs an authenticated call. On a 401 it invalidates the cached
// token and retries the call once with a fresh one; a second
// consecutive 401 is surfaced as the terminal AuthError so a bad
// credential cannot loop forever.
func (m *Manager) Do(ctx context.Context, platform string, call func(token string) error) error {
	token, err := m.Token(ctx, platform)
	if err != nil {
		return err
	}

	err = call(token)
	var authErr *transport.AuthError
	if !errors.As(err, &authErr) {
		return err
	}

	logrus.Warnf("Token for %s rejected, re-acquiring once", platform)
	m.Invalidate(platform)

	token, tokenErr := m.Token(ctx, platform)
	if tokenErr != nil {
		return tokenErr
	}
	return call(token)
}
