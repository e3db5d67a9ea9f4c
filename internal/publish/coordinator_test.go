// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

package publish

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gebl/onenote-diagram-server/internal/render"
)

type mockRenderer struct {
	mock.Mock
}

func (m *mockRenderer) Render(ctx context.Context, markup string) (*render.Artifact, error) {
	args := m.Called(ctx, markup)
	artifact, _ := args.Get(0).(*render.Artifact)
	return artifact, args.Error(1)
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreatePage(ctx context.Context, containerID, document string) (*Page, error) {
	args := m.Called(ctx, containerID, document)
	page, _ := args.Get(0).(*Page)
	return page, args.Error(1)
}

func (m *mockStore) PatchPageContent(ctx context.Context, pageID string, body []byte, boundary string) error {
	return m.Called(ctx, pageID, body, boundary).Error(0)
}

func (m *mockStore) GetPageContent(ctx context.Context, pageID string) (string, error) {
	args := m.Called(ctx, pageID)
	return args.String(0), args.Error(1)
}

type recordingSettler struct {
	pageIDs []string
	err     error
}

func (s *recordingSettler) Settle(ctx context.Context, pageID string) error {
	s.pageIDs = append(s.pageIDs, pageID)
	return s.err
}

var testImage = []byte{0xFF, 0xD8, 0xFF, 0xE0, '\r', '\n', '-', '-', 0x00, 0x10, 'J', 'F', 'I', 'F', 0xFF, 0xD9}

func flowRequest() DiagramRequest {
	return DiagramRequest{Title: "Flow", Markup: "graph TD; A-->B", ContainerID: "sec-1"}
}

func TestPublish_Success(t *testing.T) {
	ctx := context.Background()
	renderer := &mockRenderer{}
	store := &mockStore{}
	settler := &recordingSettler{}

	renderer.On("Render", ctx, "graph TD; A-->B").Return(&render.Artifact{Bytes: testImage, MediaType: render.MediaTypeJPEG}, nil).Once()
	store.On("CreatePage", ctx, "sec-1", mock.MatchedBy(func(doc string) bool {
		return strings.Contains(doc, "<title>Flow</title>") && strings.Contains(doc, "graph TD; A--&gt;B")
	})).Return(&Page{ID: "pg-1", Title: "Flow"}, nil).Once()

	var patchedBody []byte
	var patchedBoundary string
	store.On("PatchPageContent", ctx, "pg-1", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		patchedBody = args.Get(2).([]byte)
		patchedBoundary = args.String(3)
	}).Return(nil).Once()

	page, err := NewCoordinator(renderer, store, settler).Publish(ctx, flowRequest())
	require.NoError(t, err)
	assert.Equal(t, &Page{ID: "pg-1", Title: "Flow"}, page)
	assert.Equal(t, []string{"pg-1"}, settler.pageIDs)

	require.NotEmpty(t, patchedBoundary)
	parts := readParts(t, patchedBody, patchedBoundary)
	require.Len(t, parts, 2)
	assert.Equal(t, testImage, parts["diagramImage"])

	renderer.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestPublish_RenderFailureNeverTouchesStore(t *testing.T) {
	ctx := context.Background()
	renderer := &mockRenderer{}
	store := &mockStore{}
	settler := &recordingSettler{}

	renderer.On("Render", ctx, mock.Anything).Return(nil, errors.New("wait for diagram: context deadline exceeded")).Once()

	page, err := NewCoordinator(renderer, store, settler).Publish(ctx, flowRequest())
	assert.Nil(t, page)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRenderFailure)
	assert.NotErrorIs(t, err, ErrStoreFailure)

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, StageRender, perr.Stage)
	assert.Empty(t, perr.PageID)
	assert.Contains(t, err.Error(), "context deadline exceeded")

	store.AssertNotCalled(t, "CreatePage", mock.Anything, mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "PatchPageContent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, settler.pageIDs)
}

func TestPublish_CreateFailureSkipsPatch(t *testing.T) {
	ctx := context.Background()
	renderer := &mockRenderer{}
	store := &mockStore{}
	settler := &recordingSettler{}

	renderer.On("Render", ctx, mock.Anything).Return(&render.Artifact{Bytes: testImage, MediaType: render.MediaTypeJPEG}, nil).Once()
	store.On("CreatePage", ctx, "sec-1", mock.Anything).Return(nil, errors.New("HTTP 404 section not found")).Once()

	_, err := NewCoordinator(renderer, store, settler).Publish(ctx, flowRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreFailure)

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, StageCreatePlaceholder, perr.Stage)

	store.AssertNotCalled(t, "PatchPageContent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, settler.pageIDs)
}

func TestPublish_PatchFailureLeavesPlaceholder(t *testing.T) {
	ctx := context.Background()
	renderer := &mockRenderer{}
	store := &mockStore{}

	renderer.On("Render", ctx, mock.Anything).Return(&render.Artifact{Bytes: testImage, MediaType: render.MediaTypeJPEG}, nil).Once()
	store.On("CreatePage", ctx, "sec-1", mock.Anything).Return(&Page{ID: "pg-1", Title: "Flow"}, nil).Once()
	store.On("PatchPageContent", ctx, "pg-1", mock.Anything, mock.Anything).Return(errors.New("HTTP 400 page not ready")).Once()

	_, err := NewCoordinator(renderer, store, &recordingSettler{}).Publish(ctx, flowRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPatchFailure)

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, StagePatch, perr.Stage)
	assert.Equal(t, "pg-1", perr.PageID)
	assert.Contains(t, err.Error(), "placeholder page pg-1")

	// No rollback: the placeholder is never deleted or re-created.
	store.AssertNumberOfCalls(t, "CreatePage", 1)
	store.AssertNumberOfCalls(t, "PatchPageContent", 1)
}

func TestPublish_SettleCancelled(t *testing.T) {
	ctx := context.Background()
	renderer := &mockRenderer{}
	store := &mockStore{}

	renderer.On("Render", ctx, mock.Anything).Return(&render.Artifact{Bytes: testImage, MediaType: render.MediaTypeJPEG}, nil).Once()
	store.On("CreatePage", ctx, "sec-1", mock.Anything).Return(&Page{ID: "pg-1", Title: "Flow"}, nil).Once()

	_, err := NewCoordinator(renderer, store, &recordingSettler{err: context.Canceled}).Publish(ctx, flowRequest())
	assert.ErrorIs(t, err, ErrPatchFailure)
	assert.ErrorIs(t, err, context.Canceled)
	store.AssertNotCalled(t, "PatchPageContent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPublish_InvalidRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     DiagramRequest
		wantErr string
	}{
		{"missing title", DiagramRequest{Markup: "graph TD; A-->B", ContainerID: "sec-1"}, "title is required"},
		{"missing markup", DiagramRequest{Title: "Flow", Markup: "  ", ContainerID: "sec-1"}, "markup is required"},
		{"missing container", DiagramRequest{Title: "Flow", Markup: "graph TD; A-->B"}, "container ID is required"},
		{"illegal container", DiagramRequest{Title: "Flow", Markup: "graph TD; A-->B", ContainerID: "../pages"}, "invalid characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			renderer := &mockRenderer{}
			store := &mockStore{}

			_, err := NewCoordinator(renderer, store, &recordingSettler{}).Publish(context.Background(), tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidRequest)
			assert.Contains(t, err.Error(), tt.wantErr)
			renderer.AssertNotCalled(t, "Render", mock.Anything, mock.Anything)
		})
	}
}

func TestPublish_PageTitleFallsBackToRequest(t *testing.T) {
	ctx := context.Background()
	renderer := &mockRenderer{}
	store := &mockStore{}
	renderer.On("Render", ctx, mock.Anything).Return(&render.Artifact{Bytes: testImage}, nil)
	store.On("CreatePage", ctx, "sec-1", mock.Anything).Return(&Page{ID: "pg-2"}, nil)
	store.On("PatchPageContent", ctx, "pg-2", mock.Anything, mock.Anything).Return(nil)

	page, err := NewCoordinator(renderer, store, &recordingSettler{}).Publish(ctx, flowRequest())
	require.NoError(t, err)
	assert.Equal(t, "Flow", page.Title)
}

func TestError_Kinds(t *testing.T) {
	cause := errors.New("cause")
	tests := []struct {
		stage Stage
		kind  error
	}{
		{StageValidate, ErrInvalidRequest},
		{StageRender, ErrRenderFailure},
		{StageCreatePlaceholder, ErrStoreFailure},
		{StageSettle, ErrPatchFailure},
		{StageBuildBody, ErrPatchFailure},
		{StagePatch, ErrPatchFailure},
	}
	for _, tt := range tests {
		t.Run(string(tt.stage), func(t *testing.T) {
			err := fail(tt.stage, "", cause)
			assert.ErrorIs(t, err, tt.kind)
			assert.ErrorIs(t, err, cause)
			assert.Contains(t, err.Error(), string(tt.stage))
		})
	}
}

func TestPlaceholderDocument(t *testing.T) {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	doc := PlaceholderDocument(DiagramRequest{
		Title:       "A & B",
		Markup:      "graph TD; A-->B<script>",
		Description: "# Context\n- first",
	}, created)

	assert.Contains(t, doc, "<title>A &amp; B</title>")
	assert.Contains(t, doc, `content="2025-03-01T12:00:00Z"`)
	assert.Contains(t, doc, "Context</h1>")
	assert.Contains(t, doc, "<pre data-id=\"diagram-source\">graph TD; A--&gt;B&lt;script&gt;</pre>")

	htmlDesc := PlaceholderDocument(DiagramRequest{
		Title:       "Flow",
		Markup:      "graph TD; A-->B",
		Description: "<p>a<br>b</div></body></html>",
	}, created)
	assert.Contains(t, htmlDesc, `<div data-id="diagram-description"><p>a<br/>b</p></div><p><b>Diagram source</b></p>`)
	assert.NotContains(t, htmlDesc, "<br>")
	assert.Equal(t, 1, strings.Count(htmlDesc, "</body>"))

	noDesc := PlaceholderDocument(DiagramRequest{Title: "Flow", Markup: "graph TD; A-->B"}, created)
	assert.NotContains(t, noDesc, "diagram-description")
}

// readParts parses body with the standard library reader and returns part bodies by form name.
func readParts(t *testing.T, body []byte, boundary string) map[string][]byte {
	t.Helper()
	reader := multipart.NewReader(bytes.NewReader(body), boundary)
	parts := map[string][]byte{}
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return parts
		}
		require.NoError(t, err)
		data, err := io.ReadAll(part)
		require.NoError(t, err)
		parts[part.FormName()] = data
	}
}

func TestMultipartContentTypeParses(t *testing.T) {
	m, err := BuildMultipart("Flow", &render.Artifact{Bytes: testImage, MediaType: render.MediaTypeJPEG})
	require.NoError(t, err)

	mediaType, params, err := mime.ParseMediaType(m.ContentType())
	require.NoError(t, err)
	assert.Equal(t, "multipart/form-data", mediaType)
	assert.Equal(t, m.Boundary, params["boundary"])
}
