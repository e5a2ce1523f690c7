package dataverse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const tokenURL = "https://login.microsoftonline.com/%s/oauth2/v2.0/token"

// TokenProvider supplies a bearer token for target calls.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed bearer token, used by tests and pre-issued runs.
type StaticToken string

func (t StaticToken) Token(ctx context.Context) (string, error) { return string(t), nil }

// TokenSource acquires app-only tokens via the OAuth 2.0 client-credentials
// grant, scoped to the target resource's default scope. Tokens are cached
// until shortly before expiry.
type TokenSource struct {
	// TenantID, ClientID and ClientSecret identify the confidential client.
	TenantID     string
	ClientID     string
	ClientSecret string

	// Resource is the target base URL the token is scoped to.
	Resource string

	// AuthorityURL overrides the token endpoint (for tests).
	AuthorityURL string

	httpClient  *http.Client
	accessToken string
	tokenExpiry time.Time
	tokenMu     sync.RWMutex
}

// NewTokenSource creates a token source for the given confidential client.
func NewTokenSource(tenantID, clientID, clientSecret, resource string) *TokenSource {
	return &TokenSource{
		TenantID:     tenantID,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Resource:     strings.TrimSuffix(resource, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// TokenResponse is the identity platform token payload.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Token returns a valid bearer token, fetching a fresh one when the cached
// token is missing or near expiry.
func (t *TokenSource) Token(ctx context.Context) (string, error) {
	t.tokenMu.RLock()
	if t.accessToken != "" && time.Now().Before(t.tokenExpiry) {
		token := t.accessToken
		t.tokenMu.RUnlock()
		return token, nil
	}
	t.tokenMu.RUnlock()

	t.tokenMu.Lock()
	defer t.tokenMu.Unlock()

	// Double-check after acquiring write lock
	if t.accessToken != "" && time.Now().Before(t.tokenExpiry) {
		return t.accessToken, nil
	}

	if err := t.acquireToken(ctx); err != nil {
		return "", err
	}
	return t.accessToken, nil
}

func (t *TokenSource) acquireToken(ctx context.Context) error {
	tokenEndpoint := t.AuthorityURL
	if tokenEndpoint == "" {
		tokenEndpoint = fmt.Sprintf(tokenURL, t.TenantID)
	}

	data := url.Values{}
	data.Set("client_id", t.ClientID)
	data.Set("client_secret", t.ClientSecret)
	data.Set("grant_type", "client_credentials")
	data.Set("scope", t.Resource+"/.default")

	req, err := http.NewRequestWithContext(ctx, "POST", tokenEndpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("token acquisition failed: %s", string(body))
	}

	var tokenResp TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return err
	}
	if tokenResp.AccessToken == "" {
		return fmt.Errorf("token acquisition returned no access token")
	}

	t.accessToken = tokenResp.AccessToken
	t.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn-60) * time.Second)
	return nil
}
