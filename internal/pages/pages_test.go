// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

package pages

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gebl/onenote-diagram-server/internal/graph"
)

type staticTokens struct {
	token     string
	refreshes int32
}

func (s *staticTokens) Token(ctx context.Context) (string, error) {
	return s.token, nil
}

func (s *staticTokens) ForceRefresh(ctx context.Context) (string, error) {
	atomic.AddInt32(&s.refreshes, 1)
	return "", errors.New("no refresh token")
}

func newTestPageClient(t *testing.T, handler http.HandlerFunc, withSDK bool) *PageClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := graph.NewClient(&staticTokens{token: "test-token"}, graph.WithBaseURL(server.URL+"/v1.0"))
	require.NoError(t, err)
	if !withSDK {
		client.GraphClient = nil
	}
	return NewPageClient(client)
}

func TestNewPageClient(t *testing.T) {
	graphClient := &graph.Client{}
	pageClient := NewPageClient(graphClient)

	assert.NotNil(t, pageClient)
	assert.Equal(t, graphClient, pageClient.Client)
}

func TestCreatePage(t *testing.T) {
	t.Run("posts xhtml and decodes the page", func(t *testing.T) {
		var gotBody, gotType, gotAuth, gotPath string
		pc := newTestPageClient(t, func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.Method + " " + r.URL.Path
			gotType = r.Header.Get("Content-Type")
			gotAuth = r.Header.Get("Authorization")
			body, _ := io.ReadAll(r.Body)
			gotBody = string(body)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"0-ABC!12","title":"Flow","createdDateTime":"2025-01-01T00:00:00Z"}`))
		}, false)

		page, err := pc.CreatePage(context.Background(), " 0-SECTION!1 ", "<html><head><title>Flow</title></head></html>")
		require.NoError(t, err)
		assert.Equal(t, "0-ABC!12", page.ID)
		assert.Equal(t, "Flow", page.Title)

		assert.Equal(t, "POST /v1.0/me/onenote/sections/0-SECTION!1/pages", gotPath)
		assert.Equal(t, "application/xhtml+xml", gotType)
		assert.Equal(t, "Bearer test-token", gotAuth)
		assert.Equal(t, "<html><head><title>Flow</title></head></html>", gotBody)
	})

	t.Run("non-2xx becomes an APIError", func(t *testing.T) {
		pc := newTestPageClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":{"code":"20102","message":"section not found"}}`, http.StatusNotFound)
		}, false)

		_, err := pc.CreatePage(context.Background(), "0-SECTION!1", "<html/>")
		var apiErr *graph.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "CreatePage", apiErr.Operation)
		assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
		assert.Contains(t, apiErr.Body, "section not found")
	})

	t.Run("missing id is an error", func(t *testing.T) {
		pc := newTestPageClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"title":"Flow"}`))
		}, false)
		_, err := pc.CreatePage(context.Background(), "0-SECTION!1", "<html/>")
		assert.Error(t, err)
	})

	t.Run("unsafe section id never reaches the wire", func(t *testing.T) {
		var calls int32
		pc := newTestPageClient(t, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
		}, false)
		_, err := pc.CreatePage(context.Background(), "../../me", "<html/>")
		require.Error(t, err)
		assert.Zero(t, atomic.LoadInt32(&calls))
	})
}

func TestPatchPageContent(t *testing.T) {
	t.Run("sends multipart body with its boundary", func(t *testing.T) {
		body := []byte("--B1\r\npayload\r\n--B1--\r\n")
		var gotBody []byte
		var gotType, gotPath string
		pc := newTestPageClient(t, func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.Method + " " + r.URL.Path
			gotType = r.Header.Get("Content-Type")
			gotBody, _ = io.ReadAll(r.Body)
			w.WriteHeader(http.StatusNoContent)
		}, false)

		require.NoError(t, pc.PatchPageContent(context.Background(), "pg-1", body, "B1"))
		assert.Equal(t, "PATCH /v1.0/me/onenote/pages/pg-1/content", gotPath)
		assert.Equal(t, "multipart/form-data; boundary=B1", gotType)
		assert.Equal(t, body, gotBody)
	})

	t.Run("rejected patch", func(t *testing.T) {
		pc := newTestPageClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad command", http.StatusBadRequest)
		}, false)
		err := pc.PatchPageContent(context.Background(), "pg-1", []byte("x"), "B1")
		var apiErr *graph.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "PatchPageContent", apiErr.Operation)
		assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	})

	t.Run("boundary required", func(t *testing.T) {
		pc := newTestPageClient(t, func(w http.ResponseWriter, r *http.Request) {}, false)
		assert.Error(t, pc.PatchPageContent(context.Background(), "pg-1", []byte("x"), ""))
	})
}

func TestGetPageContent(t *testing.T) {
	const page = "<html><head><title>Flow</title></head><body></body></html>"

	t.Run("raw HTTP path", func(t *testing.T) {
		var gotPath string
		pc := newTestPageClient(t, func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(page))
		}, false)

		content, err := pc.GetPageContent(context.Background(), "pg-1")
		require.NoError(t, err)
		assert.Equal(t, page, content)
		assert.Equal(t, "/v1.0/me/onenote/pages/pg-1/content", gotPath)
	})

	t.Run("raw HTTP not found", func(t *testing.T) {
		pc := newTestPageClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		}, false)
		_, err := pc.GetPageContent(context.Background(), "pg-1")
		var apiErr *graph.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	})

	t.Run("SDK path", func(t *testing.T) {
		var gotAuth, gotPath string
		pc := newTestPageClient(t, func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotAuth = r.Header.Get("Authorization")
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(page))
		}, true)

		content, err := pc.GetPageContent(context.Background(), "pg-1")
		require.NoError(t, err)
		assert.Equal(t, page, content)
		assert.Equal(t, "/v1.0/me/onenote/pages/pg-1/content", gotPath)
		assert.Equal(t, "Bearer test-token", gotAuth)
	})

	t.Run("invalid id", func(t *testing.T) {
		pc := newTestPageClient(t, func(w http.ResponseWriter, r *http.Request) {}, false)
		_, err := pc.GetPageContent(context.Background(), "")
		assert.Error(t, err)
	})
}

func TestPageReady(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{"served page", "<html><head><title>Flow</title></head><body><p>x</p></body></html>", true},
		{"title with entities", "<html><head><title>A &amp; B</title></head></html>", true},
		{"empty title", "<html><head><title>  </title></head></html>", false},
		{"no title", "<html><body><p>x</p></body></html>", false},
		{"empty", "", false},
		{"error json", `{"error":{"code":"20102"}}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PageReady(tt.content))
		})
	}
}

func TestIsAuthFailure(t *testing.T) {
	assert.True(t, isAuthFailure(&graph.APIError{StatusCode: http.StatusUnauthorized}))
	assert.True(t, isAuthFailure(errors.New("InvalidAuthenticationToken: JWT is not well formed")))
	assert.False(t, isAuthFailure(errors.New("page not found")))
}
