// internal/common/auth/keycloak.go
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"jobboard-workers/internal/common/errors"
)

// KeycloakClient validates bearer tokens against a realm's introspection
// endpoint. Active tokens are remembered for a short while so a burst of
// requests from one client costs a single round trip.
type KeycloakClient struct {
	introspectURL string
	form          url.Values
	httpClient    *http.Client

	cacheTTL time.Duration
	now      func() time.Time
	mu       sync.Mutex
	cache    map[string]cachedToken
}

type cachedToken struct {
	info    TokenInfo
	expires time.Time
}

type KeycloakOption func(*KeycloakClient)

// WithCacheTTL bounds how long an introspection result is reused. Zero
// disables the cache, so revocations are seen immediately.
func WithCacheTTL(ttl time.Duration) KeycloakOption {
	return func(k *KeycloakClient) { k.cacheTTL = ttl }
}

func WithHTTPClient(c *http.Client) KeycloakOption {
	return func(k *KeycloakClient) { k.httpClient = c }
}

func NewKeycloakClient(baseURL, realm, clientID, clientSecret string, opts ...KeycloakOption) *KeycloakClient {
	k := &KeycloakClient{
		introspectURL: fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token/introspect",
			strings.TrimSuffix(baseURL, "/"), url.PathEscape(realm)),
		form: url.Values{
			"client_id":       {clientID},
			"client_secret":   {clientSecret},
			"token_type_hint": {"access_token"},
		},
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cacheTTL:   30 * time.Second,
		now:        time.Now,
		cache:      make(map[string]cachedToken),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// ValidateToken checks that an access token is active and returns its claims.
func (k *KeycloakClient) ValidateToken(ctx context.Context, token string) (*TokenInfo, error) {
	if token == "" {
		return nil, errors.NewAuthenticationError("missing bearer token")
	}

	key := tokenKey(token)
	if info, ok := k.cached(key); ok {
		return info, nil
	}

	info, err := k.introspect(ctx, token)
	if err != nil {
		return nil, err
	}
	if !info.Active {
		return nil, errors.NewAuthenticationError("token is expired, revoked or malformed")
	}
	if info.Exp > 0 && !k.now().Before(time.Unix(info.Exp, 0)) {
		return nil, errors.NewAuthenticationError("token has expired")
	}
	k.remember(key, *info)
	return info, nil
}

func (k *KeycloakClient) introspect(ctx context.Context, token string) (*TokenInfo, error) {
	form := url.Values{"token": {token}}
	for name, v := range k.form {
		form[name] = v
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, k.introspectURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := k.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewExternalServiceError("keycloak", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, errors.NewExternalServiceError("keycloak", fmt.Errorf("introspection returned %d", resp.StatusCode))
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.NewAuthenticationError(fmt.Sprintf("introspection returned %d: %s", resp.StatusCode, body))
	}

	var info TokenInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, errors.NewExternalServiceError("keycloak", fmt.Errorf("decode introspection response: %w", err))
	}
	return &info, nil
}

func (k *KeycloakClient) cached(key string) (*TokenInfo, bool) {
	if k.cacheTTL <= 0 {
		return nil, false
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	c, ok := k.cache[key]
	if !ok {
		return nil, false
	}
	if !k.now().Before(c.expires) {
		delete(k.cache, key)
		return nil, false
	}
	info := c.info
	return &info, true
}

// remember keeps info until the cache TTL or the token's own expiry,
// whichever is first. Expired entries are swept on insert.
func (k *KeycloakClient) remember(key string, info TokenInfo) {
	if k.cacheTTL <= 0 {
		return
	}
	now := k.now()
	expires := now.Add(k.cacheTTL)
	if info.Exp > 0 {
		if exp := time.Unix(info.Exp, 0); exp.Before(expires) {
			expires = exp
		}
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	for other, c := range k.cache {
		if !now.Before(c.expires) {
			delete(k.cache, other)
		}
	}
	k.cache[key] = cachedToken{info: info, expires: expires}
}

// tokenKey avoids holding raw bearer tokens in memory longer than a request.
func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// TokenInfo holds the fields of the introspection response the API uses.
type TokenInfo struct {
	Active    bool   `json:"active"`
	Scope     string `json:"scope,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	Username  string `json:"username,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	Exp       int64  `json:"exp,omitempty"`
	Sub       string `json:"sub,omitempty"` // user id, recorded as the acting user
	Iss       string `json:"iss,omitempty"`
}

// HasScope reports whether scope appears in the space separated scope claim.
// An empty scope is always satisfied.
func (t *TokenInfo) HasScope(scope string) bool {
	if scope == "" {
		return true
	}
	for _, s := range strings.Fields(t.Scope) {
		if s == scope {
			return true
		}
	}
	return false
}
