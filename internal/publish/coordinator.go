// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

// coordinator.go - Diagram publish pipeline.
//
// Publish runs strictly in order:
//
//   RENDER -> CREATE_PLACEHOLDER -> SETTLE -> BUILD_BODY -> PATCH -> DONE
//
// and stops at the first failing stage. A render failure means the store is
// never called. A create failure means nothing is patched. Any failure after
// the placeholder exists leaves that text-only page in place and reports its
// ID. Nothing is retried and publish is not idempotent.
//
// Usage Example:
//   c := publish.NewCoordinator(renderer, store, publish.FixedDelay{Delay: 5 * time.Second})
//   page, err := c.Publish(ctx, publish.DiagramRequest{Title: "Flow", Markup: "graph TD; A-->B", ContainerID: id})
//   if errors.Is(err, publish.ErrPatchFailure) { ... }

package publish

import (
	"context"
	"log/slog"
	"time"

	"github.com/gebl/onenote-diagram-server/internal/logging"
	"github.com/gebl/onenote-diagram-server/internal/metrics"
	"github.com/gebl/onenote-diagram-server/internal/render"
)

// Store is the remote document store the pipeline writes to.
type Store interface {
	CreatePage(ctx context.Context, containerID, document string) (*Page, error)
	PatchPageContent(ctx context.Context, pageID string, body []byte, boundary string) error
	GetPageContent(ctx context.Context, pageID string) (string, error)
}

// Coordinator drives one publish per call. It holds no per-publish state, so
// concurrent calls are independent.
type Coordinator struct {
	renderer render.Renderer
	store    Store
	settler  Settler
	now      func() time.Time
}

func NewCoordinator(renderer render.Renderer, store Store, settler Settler) *Coordinator {
	if settler == nil {
		settler = FixedDelay{Delay: DefaultSettleDelay}
	}
	return &Coordinator{renderer: renderer, store: store, settler: settler, now: time.Now}
}

// Publish renders req.Markup and creates a page holding the image.
func (c *Coordinator) Publish(ctx context.Context, req DiagramRequest) (*Page, error) {
	logger := logging.PublishLogger.With("title", req.Title, "container_id", req.ContainerID)

	if err := req.Validate(); err != nil {
		return nil, c.failed(logger, fail(StageValidate, "", err))
	}

	start := time.Now()
	artifact, err := c.renderer.Render(ctx, req.Markup)
	metrics.ObserveStage(string(StageRender), start)
	if err != nil {
		return nil, c.failed(logger, fail(StageRender, "", err))
	}
	logger.Debug("Diagram rendered", "bytes", len(artifact.Bytes), "media_type", artifact.MediaType)

	start = time.Now()
	document := PlaceholderDocument(req, c.now())
	logging.LogContent(logger, slog.LevelDebug, "Placeholder document", "document", document)
	placeholder, err := c.store.CreatePage(ctx, req.ContainerID, document)
	metrics.ObserveStage(string(StageCreatePlaceholder), start)
	if err != nil {
		return nil, c.failed(logger, fail(StageCreatePlaceholder, "", err))
	}
	logger = logger.With("page_id", placeholder.ID)
	logger.Info("Placeholder page created")

	start = time.Now()
	err = c.settler.Settle(ctx, placeholder.ID)
	metrics.ObserveStage(string(StageSettle), start)
	if err != nil {
		return nil, c.failed(logger, fail(StageSettle, placeholder.ID, err))
	}

	body, err := BuildMultipart(req.Title, artifact)
	if err != nil {
		return nil, c.failed(logger, fail(StageBuildBody, placeholder.ID, err))
	}
	logger.Debug("Multipart body built", "boundary", body.Boundary, "bytes", len(body.Body))

	start = time.Now()
	err = c.store.PatchPageContent(ctx, placeholder.ID, body.Body, body.Boundary)
	metrics.ObserveStage(string(StagePatch), start)
	if err != nil {
		return nil, c.failed(logger, fail(StagePatch, placeholder.ID, err))
	}

	metrics.RecordPublish(metrics.OutcomeSuccess, string(StageDone))
	logger.Info("Diagram published")

	title := placeholder.Title
	if title == "" {
		title = req.Title
	}
	return &Page{ID: placeholder.ID, Title: title}, nil
}

func (c *Coordinator) failed(logger *slog.Logger, err *Error) error {
	metrics.RecordPublish(metrics.OutcomeFailure, string(err.Stage))
	logger.Error("Diagram publish failed", "stage", err.Stage, "placeholder_id", err.PageID, "error", err.Err)
	return err
}
