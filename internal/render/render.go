// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

// render.go - Diagram markup to raster image conversion.
//
// A Renderer turns diagram markup into a JPEG. SandboxRenderer does this by
// loading the markup into an isolated headless browser, waiting for the
// diagram element to appear and capturing it.
//
// Every sandbox a render starts is closed exactly once before Render returns,
// whether it succeeds, times out or fails to start. Concurrent renders are
// bounded by a weighted semaphore so bursts cannot spawn unbounded browsers.
//
// Usage Example:
//   r := render.NewSandboxRenderer(render.NewChromeLauncher(render.ChromeOptions{}), render.Options{})
//   artifact, err := r.Render(ctx, "graph TD; A-->B")

package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/gebl/onenote-diagram-server/internal/logging"
	"github.com/gebl/onenote-diagram-server/internal/metrics"
	"github.com/gebl/onenote-diagram-server/internal/utils"
)

const (
	MediaTypeJPEG = "image/jpeg"

	DefaultTimeout       = 5 * time.Second
	DefaultLoadTimeout   = 20 * time.Second
	DefaultJPEGQuality   = 80
	DefaultMaxConcurrent = 2
	DefaultScriptURL     = "https://cdn.jsdelivr.net/npm/mermaid@10/dist/mermaid.min.js"
)

var (
	// ErrEmptyMarkup is returned when markup is blank after normalization.
	ErrEmptyMarkup = errors.New("diagram markup is empty")
	// ErrEmptyCapture is returned when the sandbox produced no image bytes.
	ErrEmptyCapture = errors.New("diagram capture produced no image data")
)

// Artifact is an encoded diagram image.
type Artifact struct {
	Bytes     []byte
	MediaType string
}

// Renderer converts diagram markup into an image.
type Renderer interface {
	Render(ctx context.Context, markup string) (*Artifact, error)
}

// Sandbox is one isolated browser instance. Close must be safe to call after
// a failed or skipped Start.
type Sandbox interface {
	Start(ctx context.Context) error
	Load(ctx context.Context, document string) error
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
	// Capture returns a PNG of the element's bounds.
	Capture(ctx context.Context, selector string) ([]byte, error)
	Close() error
}

// Launcher allocates sandboxes. NewSandbox must not start a process.
type Launcher interface {
	NewSandbox(ctx context.Context) Sandbox
}

// Options tunes a SandboxRenderer. Zero values select the defaults.
type Options struct {
	ScriptURL     string
	Timeout       time.Duration // render wait after the library has loaded
	JPEGQuality   int
	MaxWidth      int // 0 disables downscaling
	MaxConcurrent int
}

// SandboxRenderer renders markup inside sandboxes obtained from a Launcher.
type SandboxRenderer struct {
	launcher Launcher
	opts     Options
	slots    *semaphore.Weighted
}

func NewSandboxRenderer(launcher Launcher, opts Options) *SandboxRenderer {
	if opts.ScriptURL == "" {
		opts.ScriptURL = DefaultScriptURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = DefaultJPEGQuality
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	return &SandboxRenderer{
		launcher: launcher,
		opts:     opts,
		slots:    semaphore.NewWeighted(int64(opts.MaxConcurrent)),
	}
}

// Render implements Renderer.
func (r *SandboxRenderer) Render(ctx context.Context, markup string) (*Artifact, error) {
	logger := logging.RenderLogger

	source, err := NormalizeMarkup(markup)
	if err != nil {
		return nil, err
	}
	logging.LogContent(logger, slog.LevelDebug, "Rendering diagram markup", "markup", source)

	if err := r.slots.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire render slot: %w", err)
	}
	defer r.slots.Release(1)

	started := time.Now()
	png, err := r.capture(ctx, source)
	if err != nil {
		logger.Warn("Diagram render failed", "error", err, "elapsed", time.Since(started))
		return nil, err
	}

	jpegBytes, err := utils.EncodeJPEG(png, r.opts.JPEGQuality, r.opts.MaxWidth)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	if len(jpegBytes) == 0 {
		return nil, fmt.Errorf("encode: %w", ErrEmptyCapture)
	}

	metrics.RenderBytes.Observe(float64(len(jpegBytes)))
	logger.Info("Diagram rendered", "png_bytes", len(png), "jpeg_bytes", len(jpegBytes), "elapsed", time.Since(started))
	return &Artifact{Bytes: jpegBytes, MediaType: MediaTypeJPEG}, nil
}

// capture drives one sandbox through start, load, wait and capture. The
// sandbox is released on every path out of this function.
func (r *SandboxRenderer) capture(ctx context.Context, source string) ([]byte, error) {
	sb := r.launcher.NewSandbox(ctx)
	defer func() {
		if err := sb.Close(); err != nil {
			logging.RenderLogger.Warn("Failed to close render sandbox", "error", err)
		}
	}()

	if err := sb.Start(ctx); err != nil {
		return nil, fmt.Errorf("start sandbox: %w", err)
	}
	if err := sb.Load(ctx, HostDocument(r.opts.ScriptURL, source)); err != nil {
		return nil, fmt.Errorf("load host document: %w", err)
	}
	if err := sb.WaitFor(ctx, DiagramSelector, r.opts.Timeout); err != nil {
		return nil, fmt.Errorf("wait for diagram: %w", err)
	}

	png, err := sb.Capture(ctx, DiagramSelector)
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	if len(png) == 0 {
		return nil, fmt.Errorf("capture: %w", ErrEmptyCapture)
	}
	return png, nil
}
