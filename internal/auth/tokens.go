// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

// tokens.go - Token cache and refresh for Microsoft Graph access.
//
// The server does not run an interactive login. Tokens are provisioned into a
// JSON file (TOKEN_FILE, default tokens.json) and this package keeps them fresh
// by exchanging the refresh token against the Microsoft identity platform.
//
// Usage Example:
//   tm, err := auth.LoadTokens(auth.GetTokenPath("tokens.json"))
//   src := auth.NewTokenSource(auth.NewOAuth2Config(clientID, tenantID, redirectURI), tm, path)
//   token, err := src.Token(ctx)

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gebl/onenote-diagram-server/internal/logging"
)

const graphScope = "offline_access Notes.ReadWrite"

// ErrNoToken is returned when no usable access or refresh token is cached.
var ErrNoToken = errors.New("authentication required: no access token available")

// OAuth2Config holds Microsoft identity platform settings for a public client.
type OAuth2Config struct {
	ClientID    string
	TenantID    string
	RedirectURI string

	// TokenEndpoint overrides the identity platform token URL (tests).
	TokenEndpoint string
	HTTPClient    *http.Client
}

// TokenManager is the on-disk token cache format.
type TokenManager struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Expiry       int64  `json:"expiry"` // unix seconds
}

func NewOAuth2Config(clientID, tenantID, redirectURI string) *OAuth2Config {
	logging.AuthLogger.Debug("Initializing OAuth2 configuration",
		"client_id", maskSensitiveData(clientID),
		"tenant_id", tenantID,
		"redirect_uri", redirectURI)
	return &OAuth2Config{
		ClientID:    clientID,
		TenantID:    tenantID,
		RedirectURI: redirectURI,
	}
}

// TenantIDOrCommon returns the tenant ID or "common" if not set.
func (c *OAuth2Config) TenantIDOrCommon() string {
	if c.TenantID == "" {
		return "common"
	}
	return c.TenantID
}

func (c *OAuth2Config) tokenEndpoint() string {
	if c.TokenEndpoint != "" {
		return c.TokenEndpoint
	}
	return fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", url.PathEscape(c.TenantIDOrCommon()))
}

func (c *OAuth2Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// RefreshToken exchanges a refresh token for a new token pair.
func (c *OAuth2Config) RefreshToken(ctx context.Context, refreshToken string) (*TokenManager, error) {
	if refreshToken == "" {
		return nil, ErrNoToken
	}
	logging.AuthLogger.Info("Refreshing access token")

	data := url.Values{}
	data.Set("client_id", c.ClientID)
	data.Set("scope", graphScope)
	data.Set("refresh_token", refreshToken)
	data.Set("redirect_uri", c.RedirectURI)
	data.Set("grant_type", "refresh_token")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenEndpoint(), strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		logging.AuthLogger.Error("Error sending refresh request", "error", err)
		return nil, fmt.Errorf("send refresh request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read refresh response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		logging.AuthLogger.Error("Token refresh failed", "status", resp.StatusCode, "response_body", string(body))
		return nil, fmt.Errorf("token refresh failed: HTTP %d - %s", resp.StatusCode, string(body))
	}

	var res struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("decode refresh response: %w", err)
	}
	if res.RefreshToken == "" {
		// The identity platform may omit a rotated refresh token.
		res.RefreshToken = refreshToken
	}

	logging.AuthLogger.Info("Token refresh successful", "expires_in", res.ExpiresIn)
	return &TokenManager{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		Expiry:       time.Now().Unix() + res.ExpiresIn,
	}, nil
}

// IsExpired reports whether the access token expires within the next minute.
func (tm *TokenManager) IsExpired() bool {
	return time.Now().Unix() > tm.Expiry-60
}

// SaveTokens writes the token cache to path with owner-only permissions.
func (tm *TokenManager) SaveTokens(path string) error {
	logging.AuthLogger.Debug("Saving tokens", "path", path,
		"access_token", maskSensitiveData(tm.AccessToken),
		"expires_at", time.Unix(tm.Expiry, 0).Format(time.RFC3339))

	data, err := json.Marshal(tm)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// GetTokenPath returns TOKEN_FILE when set, otherwise defaultPath.
func GetTokenPath(defaultPath string) string {
	if envPath := os.Getenv("TOKEN_FILE"); envPath != "" {
		return envPath
	}
	return defaultPath
}

// LoadTokens reads the token cache from path.
func LoadTokens(path string) (*TokenManager, error) {
	f, err := os.Open(path)
	if err != nil {
		logging.AuthLogger.Debug("No token file found", "path", path, "error", err)
		return nil, err
	}
	defer f.Close()

	tm := &TokenManager{}
	if err := json.NewDecoder(f).Decode(tm); err != nil {
		return nil, fmt.Errorf("decode token file %s: %w", path, err)
	}
	logging.AuthLogger.Debug("Tokens loaded",
		"path", path,
		"access_token", maskSensitiveData(tm.AccessToken),
		"expires_at", time.Unix(tm.Expiry, 0).Format(time.RFC3339))
	return tm, nil
}

// TokenSource hands out a current access token, refreshing and persisting the
// cache when it has expired. Safe for concurrent use.
type TokenSource struct {
	mu        sync.Mutex
	oauth     *OAuth2Config
	tokens    *TokenManager
	tokenPath string
}

func NewTokenSource(oauth *OAuth2Config, tokens *TokenManager, tokenPath string) *TokenSource {
	if tokens == nil {
		tokens = &TokenManager{}
	}
	return &TokenSource{oauth: oauth, tokens: tokens, tokenPath: tokenPath}
}

// Token returns a valid access token, refreshing first if needed.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tokens.AccessToken != "" && !s.tokens.IsExpired() {
		return s.tokens.AccessToken, nil
	}
	if err := s.refreshLocked(ctx); err != nil {
		return "", err
	}
	return s.tokens.AccessToken, nil
}

// ForceRefresh refreshes regardless of the cached expiry, e.g. after a 401.
func (s *TokenSource) ForceRefresh(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.refreshLocked(ctx); err != nil {
		return "", err
	}
	return s.tokens.AccessToken, nil
}

func (s *TokenSource) refreshLocked(ctx context.Context) error {
	if s.oauth == nil || s.tokens.RefreshToken == "" {
		return ErrNoToken
	}
	fresh, err := s.oauth.RefreshToken(ctx, s.tokens.RefreshToken)
	if err != nil {
		return err
	}
	*s.tokens = *fresh

	if s.tokenPath != "" {
		if err := fresh.SaveTokens(s.tokenPath); err != nil {
			logging.AuthLogger.Warn("Failed to save refreshed tokens", "path", s.tokenPath, "error", err)
		}
	}
	return nil
}

// CanRefresh reports whether a refresh token is available.
func (s *TokenSource) CanRefresh() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.oauth != nil && s.tokens.RefreshToken != ""
}

func maskSensitiveData(value string) string {
	if value == "" {
		return "<empty>"
	}
	if len(value) <= 8 {
		return "***"
	}
	return value[:4] + "***" + value[len(value)-4:]
}
