// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

// chrome.go - Headless Chrome sandboxes driven over the DevTools protocol.
//
// Each sandbox is a fresh browser context: a new local Chrome process, or a new
// target on an already running browser when RemoteURL is set.

package render

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/gebl/onenote-diagram-server/internal/logging"
)

const (
	viewportWidth  = 1600
	viewportHeight = 1200
	statusPoll     = 100 * time.Millisecond
)

// ChromeOptions selects how browsers are obtained.
type ChromeOptions struct {
	ExecPath  string // local Chrome binary; empty uses chromedp's lookup
	RemoteURL string // DevTools websocket URL of a running browser

	// LoadTimeout bounds fetching the Mermaid library, separately from the
	// render wait. Zero selects DefaultLoadTimeout.
	LoadTimeout time.Duration
}

// ChromeLauncher implements Launcher with chromedp.
type ChromeLauncher struct {
	opts ChromeOptions
}

func NewChromeLauncher(opts ChromeOptions) *ChromeLauncher {
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = DefaultLoadTimeout
	}
	return &ChromeLauncher{opts: opts}
}

// NewSandbox implements Launcher. No browser is started until Start.
func (l *ChromeLauncher) NewSandbox(ctx context.Context) Sandbox {
	return &chromeSandbox{opts: l.opts}
}

type chromeSandbox struct {
	opts ChromeOptions

	tabCtx    context.Context
	cancelFns []context.CancelFunc
	closeOnce sync.Once
}

func (s *chromeSandbox) Start(ctx context.Context) error {
	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if url := strings.TrimSpace(s.opts.RemoteURL); url != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, url)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
		)
		if path := strings.TrimSpace(s.opts.ExecPath); path != "" {
			opts = append(opts, chromedp.ExecPath(path))
		}
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, opts...)
	}
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	s.cancelFns = append(s.cancelFns, tabCancel, allocCancel)
	s.tabCtx = tabCtx

	// Running with no actions launches the browser and opens the tab.
	if err := chromedp.Run(tabCtx,
		emulation.SetDeviceMetricsOverride(viewportWidth, viewportHeight, 1, false),
	); err != nil {
		return err
	}
	logging.RenderLogger.Debug("Render sandbox started", "remote", s.opts.RemoteURL != "")
	return nil
}

// Load sets the host document and returns once its scripts have loaded, so
// the render wait that follows does not include the library download.
func (s *chromeSandbox) Load(ctx context.Context, document string) error {
	if s.tabCtx == nil {
		return errors.New("sandbox not started")
	}
	if err := chromedp.Run(s.tabCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, document).Do(ctx)
		}),
	); err != nil {
		return err
	}
	return s.waitForLibrary(ctx)
}

// libraryStateJS reports "loading" until the document has finished loading,
// then whether the Mermaid global exists.
const libraryStateJS = `document.readyState !== "complete" ? "loading" : (typeof window.mermaid === "undefined" ? "missing" : "loaded")`

func (s *chromeSandbox) waitForLibrary(ctx context.Context) error {
	timeout := s.opts.LoadTimeout
	if timeout <= 0 {
		timeout = DefaultLoadTimeout
	}
	loadCtx, cancel := context.WithTimeout(s.tabCtx, timeout)
	defer cancel()

	for {
		var state string
		if err := chromedp.Run(loadCtx, chromedp.Evaluate(libraryStateJS, &state)); err != nil {
			if errors.Is(loadCtx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("mermaid library did not load within %s: %w", timeout, context.DeadlineExceeded)
			}
			return err
		}
		done, err := libraryLoaded(state)
		if done || err != nil {
			return err
		}

		select {
		case <-loadCtx.Done():
			return fmt.Errorf("mermaid library did not load within %s: %w", timeout, context.DeadlineExceeded)
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(statusPoll):
		}
	}
}

// libraryLoaded interprets libraryStateJS.
func libraryLoaded(state string) (bool, error) {
	switch state {
	case "loaded":
		return true, nil
	case "missing":
		return true, errors.New("mermaid library failed to load")
	}
	return false, nil
}

// WaitFor polls the status the host document publishes so a Mermaid syntax
// error fails fast, then waits for selector to become visible.
func (s *chromeSandbox) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	if s.tabCtx == nil {
		return errors.New("sandbox not started")
	}
	waitCtx, cancel := context.WithTimeout(s.tabCtx, timeout)
	defer cancel()

	for {
		var status, diagErr string
		if err := chromedp.Run(waitCtx,
			chromedp.Evaluate(`document.documentElement.dataset.diagramStatus || ""`, &status),
			chromedp.Evaluate(`document.documentElement.dataset.diagramError || ""`, &diagErr),
		); err != nil {
			return timeoutOr(waitCtx, timeout, err)
		}

		switch status {
		case "ready":
			if err := chromedp.Run(waitCtx, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
				return timeoutOr(waitCtx, timeout, err)
			}
			return nil
		case "error":
			return fmt.Errorf("diagram syntax error: %s", truncate(diagErr, 200))
		}

		select {
		case <-waitCtx.Done():
			return timeoutOr(waitCtx, timeout, waitCtx.Err())
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(statusPoll):
		}
	}
}

func (s *chromeSandbox) Capture(ctx context.Context, selector string) ([]byte, error) {
	if s.tabCtx == nil {
		return nil, errors.New("sandbox not started")
	}
	var buf []byte
	if err := chromedp.Run(s.tabCtx, chromedp.Screenshot(selector, &buf, chromedp.NodeVisible, chromedp.ByQuery)); err != nil {
		return nil, err
	}
	return buf, nil
}

// Close tears down the tab and then the browser allocator.
func (s *chromeSandbox) Close() error {
	s.closeOnce.Do(func() {
		for _, cancel := range s.cancelFns {
			cancel()
		}
		logging.RenderLogger.Debug("Render sandbox closed", "started", s.tabCtx != nil)
	})
	return nil
}

func timeoutOr(ctx context.Context, timeout time.Duration, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("diagram did not render within %s: %w", timeout, context.DeadlineExceeded)
	}
	return err
}

func truncate(value string, max int) string {
	runes := []rune(strings.TrimSpace(value))
	if len(runes) <= max {
		return string(runes)
	}
	return string(runes[:max]) + "..."
}
