// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

// client.go - Core Microsoft Graph API client for OneNote operations.
//
// Client bundles the Microsoft Graph SDK service client with a plain HTTP path
// used for the OneNote endpoints the SDK models poorly (XHTML page creation and
// multipart PATCH). Both paths draw bearer tokens from the same TokenSource.
//
// Usage Example:
//   graphClient, err := graph.NewClient(tokenSource)
//   resp, err := graphClient.Do(ctx, http.MethodGet, "pages/"+id+"/content", nil, nil)

package graph

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	abstractions "github.com/microsoft/kiota-abstractions-go"
	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"
	msgraphsdkcore "github.com/microsoftgraph/msgraph-sdk-go-core"

	"github.com/gebl/onenote-diagram-server/internal/logging"
)

// DefaultBaseURL is the Graph v1.0 service root.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

// TokenSource supplies bearer tokens. auth.TokenSource satisfies it.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	ForceRefresh(ctx context.Context) (string, error)
}

// Client handles Microsoft Graph API requests for OneNote.
type Client struct {
	GraphClient  *msgraphsdk.GraphServiceClient // Microsoft Graph SDK client
	AuthProvider *TokenSourceProvider           // kiota authentication provider
	HTTPClient   *http.Client
	BaseURL      string

	tokens TokenSource
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL points the client at another service root (tests, national clouds).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.BaseURL = strings.TrimRight(baseURL, "/") }
}

// WithHTTPClient replaces the HTTP client used for raw requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.HTTPClient = hc }
}

// NewClient creates a Graph client whose SDK and raw requests share tokens.
func NewClient(tokens TokenSource, opts ...Option) (*Client, error) {
	if tokens == nil {
		return nil, fmt.Errorf("token source is required")
	}
	c := &Client{
		HTTPClient: http.DefaultClient,
		BaseURL:    DefaultBaseURL,
		tokens:     tokens,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.AuthProvider = &TokenSourceProvider{Tokens: tokens}
	adapter, err := msgraphsdkcore.NewGraphRequestAdapterBase(c.AuthProvider, msgraphsdkcore.GraphClientOptions{
		GraphServiceVersion: "v1.0",
	})
	if err != nil {
		return nil, fmt.Errorf("create graph request adapter: %w", err)
	}
	adapter.SetBaseUrl(c.BaseURL)
	c.GraphClient = msgraphsdk.NewGraphServiceClient(adapter)

	logging.GraphLogger.Debug("Graph client created", "base_url", c.BaseURL)
	return c, nil
}

// TokenSourceProvider implements the kiota AuthenticationProvider interface
// on top of a TokenSource.
type TokenSourceProvider struct {
	Tokens TokenSource
}

// AuthenticateRequest adds the Authorization header to the request.
func (p *TokenSourceProvider) AuthenticateRequest(ctx context.Context, request *abstractions.RequestInformation, additionalAuthenticationContext map[string]interface{}) error {
	if request == nil {
		return fmt.Errorf("request cannot be nil")
	}
	if request.Headers == nil {
		return fmt.Errorf("request headers cannot be nil")
	}
	token, err := p.Tokens.Token(ctx)
	if err != nil {
		return err
	}
	if token == "" {
		return fmt.Errorf("access token cannot be empty")
	}
	request.Headers.Add("Authorization", "Bearer "+token)
	return nil
}

// Refresh forces a token refresh, used after the SDK reports an auth failure.
func (c *Client) Refresh(ctx context.Context) error {
	_, err := c.tokens.ForceRefresh(ctx)
	return err
}
