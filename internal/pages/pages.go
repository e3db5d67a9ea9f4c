// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

// pages.go - OneNote page operations backing the diagram publish pipeline.
//
// PageClient is the remote document store: it creates placeholder pages,
// patches their content with multipart bodies and reads them back while the
// pipeline waits for a new page to settle.
//
// Operations Supported:
// - CreatePage: POST an XHTML document into a section
// - PatchPageContent: PATCH a page with a multipart command body
// - GetPageContent: Retrieve page HTML content
//
// Usage Example:
//   pageClient := pages.NewPageClient(graphClient)
//   page, err := pageClient.CreatePage(ctx, sectionID, document)
//   if err != nil {
//       logging.PageLogger.Error("Failed to create page", "error", err)
//   }

package pages

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gebl/onenote-diagram-server/internal/graph"
	"github.com/gebl/onenote-diagram-server/internal/logging"
	"github.com/gebl/onenote-diagram-server/internal/publish"
)

// PageClient provides page-specific operations
type PageClient struct {
	*graph.Client
}

// NewPageClient creates a new PageClient
func NewPageClient(client *graph.Client) *PageClient {
	return &PageClient{Client: client}
}

var _ publish.Store = (*PageClient)(nil)

// CreatePage creates a new page in a section from a complete XHTML document.
// The document must carry its own <title>; the service derives the page title
// from it.
func (c *PageClient) CreatePage(ctx context.Context, sectionID, document string) (*publish.Page, error) {
	sectionID, err := graph.SanitizeOneNoteID(sectionID, "section ID")
	if err != nil {
		return nil, err
	}
	logging.PageLogger.Info("Starting CreatePage operation", "section_id", sectionID, "content_length", len(document))
	logging.LogContent(logging.PageLogger, slog.LevelDebug, "CreatePage content", "section_id", sectionID, "content", document)

	headers := map[string]string{"Content-Type": "application/xhtml+xml"}
	resp, err := c.Do(ctx, http.MethodPost, "me/onenote/sections/"+sectionID+"/pages", []byte(document), headers)
	if err != nil {
		logging.PageLogger.Error("Authenticated request failed for CreatePage", "section_id", sectionID, "error", err)
		return nil, err
	}
	defer resp.Body.Close()

	if err := graph.CheckResponse(resp, "CreatePage"); err != nil {
		logging.PageLogger.Error("HTTP response handling failed for CreatePage", "section_id", sectionID, "status", resp.StatusCode, "error", err)
		return nil, err
	}

	var page publish.Page
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		logging.PageLogger.Error("Failed to decode response for CreatePage", "section_id", sectionID, "error", err)
		return nil, fmt.Errorf("decode CreatePage response: %w", err)
	}
	if page.ID == "" {
		return nil, fmt.Errorf("CreatePage response carried no page ID")
	}

	logging.PageLogger.Info("CreatePage completed successfully", "section_id", sectionID, "page_id", page.ID)
	return &page, nil
}

// PatchPageContent sends a multipart command body to a page's content
// endpoint. boundary must be the one that delimits body.
func (c *PageClient) PatchPageContent(ctx context.Context, pageID string, body []byte, boundary string) error {
	pageID, err := graph.SanitizeOneNoteID(pageID, "page ID")
	if err != nil {
		return err
	}
	if boundary == "" {
		return fmt.Errorf("multipart boundary is required")
	}
	logging.PageLogger.Info("Starting PatchPageContent operation", "page_id", pageID, "body_size", len(body))

	headers := map[string]string{"Content-Type": "multipart/form-data; boundary=" + boundary}
	resp, err := c.Do(ctx, http.MethodPatch, "me/onenote/pages/"+pageID+"/content", body, headers)
	if err != nil {
		logging.PageLogger.Error("Authenticated request failed for PatchPageContent", "page_id", pageID, "error", err)
		return err
	}
	defer resp.Body.Close()

	if err := graph.CheckResponse(resp, "PatchPageContent"); err != nil {
		logging.PageLogger.Error("HTTP response handling failed for PatchPageContent", "page_id", pageID, "status", resp.StatusCode, "error", err)
		return err
	}

	logging.PageLogger.Info("PatchPageContent completed successfully", "page_id", pageID, "status", resp.StatusCode)
	return nil
}

// GetPageContent fetches the HTML content of a page using the Microsoft Graph
// SDK, or a raw GET when the client was built without one.
func (c *PageClient) GetPageContent(ctx context.Context, pageID string) (string, error) {
	pageID, err := graph.SanitizeOneNoteID(pageID, "page ID")
	if err != nil {
		return "", err
	}
	logging.PageLogger.Debug("Starting GetPageContent operation", "page_id", pageID)

	if c.GraphClient == nil {
		return c.getPageContentHTTP(ctx, pageID)
	}

	content, err := c.GraphClient.Me().Onenote().Pages().ByOnenotePageId(pageID).Content().Get(ctx, nil)
	if err != nil && isAuthFailure(err) {
		logging.PageLogger.Debug("Authentication error detected in SDK call, attempting token refresh", "page_id", pageID)
		if refreshErr := c.Refresh(ctx); refreshErr != nil {
			return "", fmt.Errorf("GetPageContent: authentication failed and token refresh failed: %w", refreshErr)
		}
		content, err = c.GraphClient.Me().Onenote().Pages().ByOnenotePageId(pageID).Content().Get(ctx, nil)
	}
	if err != nil {
		logging.PageLogger.Debug("SDK content retrieval failed", "page_id", pageID, "error", err)
		return "", fmt.Errorf("GetPageContent: %w", err)
	}

	logging.PageLogger.Debug("GetPageContent completed successfully via SDK", "page_id", pageID, "content_length", len(content))
	return string(content), nil
}

func (c *PageClient) getPageContentHTTP(ctx context.Context, pageID string) (string, error) {
	resp, err := c.Do(ctx, http.MethodGet, "me/onenote/pages/"+pageID+"/content", nil, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := graph.CheckResponse(resp, "GetPageContent"); err != nil {
		return "", err
	}
	content, err := graph.ReadResponseBody(resp, "GetPageContent")
	if err != nil {
		return "", err
	}
	logging.PageLogger.Debug("GetPageContent completed successfully via HTTP", "page_id", pageID, "content_length", len(content))
	return string(content), nil
}

// isAuthFailure matches the SDK's error text for rejected tokens.
func isAuthFailure(err error) bool {
	if graph.IsAuthError(err) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "JWT") || strings.Contains(msg, "401") || strings.Contains(msg, "403")
}
