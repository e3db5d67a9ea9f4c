// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

// http.go - HTTP utilities for Microsoft Graph API client.
//
// Do sends an authenticated request relative to the service root. A 401 or 403
// triggers one token refresh and one replay of the buffered body.
//
// Usage Example:
//   resp, err := c.Do(ctx, http.MethodPost, "sections/"+id+"/pages", body, headers)
//   if err != nil {
//       return nil, err
//   }
//   defer resp.Body.Close()
//   if err := graph.CheckResponse(resp, "CreatePage"); err != nil {
//       return nil, err
//   }

package graph

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gebl/onenote-diagram-server/internal/logging"
)

// maxErrorBody bounds how much of a failed response is kept in an APIError.
const maxErrorBody = 4096

// APIError is a non-2xx Graph response.
type APIError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s failed: HTTP %d - %s", e.Operation, e.StatusCode, e.Body)
}

// IsAuthError reports whether err is a 401 or 403 APIError.
func IsAuthError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
}

// Do creates and executes an authenticated request with token refresh support.
// path is relative to BaseURL unless it is already absolute.
func (c *Client) Do(ctx context.Context, method, path string, body []byte, headers map[string]string) (*http.Response, error) {
	url := c.resolve(path)

	token, err := c.tokens.Token(ctx)
	if err != nil {
		logging.GraphLogger.Debug("No valid authentication token available", "error", err)
		return nil, err
	}

	resp, err := c.send(ctx, method, url, body, headers, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusForbidden {
		return resp, nil
	}

	logging.GraphLogger.Debug("Authentication rejected, refreshing token", "method", method, "url", url, "status", resp.StatusCode)
	token, refreshErr := c.tokens.ForceRefresh(ctx)
	if refreshErr != nil {
		logging.GraphLogger.Debug("Token refresh unavailable, returning original response", "error", refreshErr)
		return resp, nil
	}
	drain(resp)

	return c.send(ctx, method, url, body, headers, token)
}

func (c *Client) send(ctx context.Context, method, url string, body []byte, headers map[string]string, token string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", method, err)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	logging.GraphLogger.Debug("Sending Graph request", "method", method, "url", url, "body_size", len(body))
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	logging.GraphLogger.Debug("Response received", "status", resp.StatusCode)
	return resp, nil
}

func (c *Client) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.BaseURL + "/" + strings.TrimLeft(path, "/")
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
}

// CheckResponse turns a non-2xx response into an *APIError.
func CheckResponse(resp *http.Response, operation string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	logging.GraphLogger.Debug("Error response body", "operation", operation, "status", resp.StatusCode, "body", string(body))
	return &APIError{Operation: operation, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

// ReadResponseBody reads the entire response body.
func ReadResponseBody(resp *http.Response, operation string) ([]byte, error) {
	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response body: %w", operation, err)
	}
	return content, nil
}
