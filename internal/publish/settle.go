// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

package publish

import (
	"context"
	"errors"
	"fmt"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"github.com/gebl/onenote-diagram-server/internal/logging"
)

// Settler blocks until a freshly created page is expected to accept a content
// patch. Only context cancellation is reported as an error.
type Settler interface {
	Settle(ctx context.Context, pageID string) error
}

// FixedDelay waits a constant time without checking the page.
type FixedDelay struct {
	Delay time.Duration
}

func (f FixedDelay) Settle(ctx context.Context, pageID string) error {
	logging.PublishLogger.Debug("Waiting fixed settle delay", "page_id", pageID, "delay", f.Delay)
	timer := time.NewTimer(f.Delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// PageReader reads a page's content. Store satisfies it.
type PageReader interface {
	GetPageContent(ctx context.Context, pageID string) (string, error)
}

// PollUntilReady reads the page back with exponential backoff until it is
// served and Ready accepts it, or Timeout elapses. Reaching the timeout is not
// an error: the patch is attempted regardless.
type PollUntilReady struct {
	Reader  PageReader
	Ready   func(content string) bool // nil accepts any successful read
	Timeout time.Duration

	// NewBackOff overrides the backoff schedule (tests).
	NewBackOff func() backoff.BackOff
}

const (
	DefaultSettleDelay   = 5 * time.Second
	DefaultSettleTimeout = 30 * time.Second
)

var errNotReady = errors.New("page content not ready")

func (p *PollUntilReady) Settle(ctx context.Context, pageID string) error {
	logger := logging.PublishLogger
	timeout := p.timeout()

	// Reads share the deadline so a hung request cannot outlast it.
	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	attempts := 0
	op := func() error {
		attempts++
		content, err := p.Reader.GetPageContent(pollCtx, pageID)
		if err != nil {
			logger.Debug("Placeholder not readable yet", "page_id", pageID, "attempt", attempts, "error", err)
			return err
		}
		if p.Ready != nil && !p.Ready(content) {
			logger.Debug("Placeholder read but not ready", "page_id", pageID, "attempt", attempts)
			return errNotReady
		}
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(p.backOff(), pollCtx))
	if err == nil {
		logger.Debug("Placeholder settled", "page_id", pageID, "attempts", attempts)
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("settle page %s: %w", pageID, ctxErr)
	}
	logger.Warn("Placeholder did not confirm readiness before timeout, patching anyway",
		"page_id", pageID, "attempts", attempts, "timeout", timeout, "last_error", err)
	return nil
}

func (p *PollUntilReady) timeout() time.Duration {
	if p.Timeout <= 0 {
		return DefaultSettleTimeout
	}
	return p.Timeout
}

func (p *PollUntilReady) backOff() backoff.BackOff {
	if p.NewBackOff != nil {
		return p.NewBackOff()
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 4 * time.Second
	b.MaxElapsedTime = p.timeout()
	return b
}
