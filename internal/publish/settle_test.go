// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

package publish

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedDelay(t *testing.T) {
	start := time.Now()
	require.NoError(t, FixedDelay{Delay: 20 * time.Millisecond}.Settle(context.Background(), "pg-1"))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, FixedDelay{Delay: time.Hour}.Settle(ctx, "pg-1"), context.Canceled)
}

type scriptedReader struct {
	results []error
	calls   int32
}

func (r *scriptedReader) GetPageContent(ctx context.Context, pageID string) (string, error) {
	n := int(atomic.AddInt32(&r.calls, 1)) - 1
	if n < len(r.results) && r.results[n] != nil {
		return "", r.results[n]
	}
	return "<html><head><title>Flow</title></head></html>", nil
}

// blockingReader never answers before its context ends.
type blockingReader struct {
	calls int32
}

func (r *blockingReader) GetPageContent(ctx context.Context, pageID string) (string, error) {
	atomic.AddInt32(&r.calls, 1)
	<-ctx.Done()
	return "", ctx.Err()
}

func quickBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Millisecond
	b.MaxInterval = 5 * time.Millisecond
	b.MaxElapsedTime = 100 * time.Millisecond
	return b
}

func TestPollUntilReady(t *testing.T) {
	notFound := errors.New("HTTP 404")

	t.Run("returns once the page is readable", func(t *testing.T) {
		reader := &scriptedReader{results: []error{notFound, notFound}}
		p := &PollUntilReady{Reader: reader, NewBackOff: quickBackOff}

		require.NoError(t, p.Settle(context.Background(), "pg-1"))
		assert.EqualValues(t, 3, reader.calls)
	})

	t.Run("ready predicate gates success", func(t *testing.T) {
		reader := &scriptedReader{}
		var checks int32
		p := &PollUntilReady{
			Reader: reader,
			Ready: func(content string) bool {
				return atomic.AddInt32(&checks, 1) >= 2
			},
			NewBackOff: quickBackOff,
		}
		require.NoError(t, p.Settle(context.Background(), "pg-1"))
		assert.EqualValues(t, 2, reader.calls)
	})

	t.Run("timeout proceeds without error", func(t *testing.T) {
		reader := &scriptedReader{results: make([]error, 10000)}
		for i := range reader.results {
			reader.results[i] = notFound
		}
		p := &PollUntilReady{Reader: reader, NewBackOff: quickBackOff}

		require.NoError(t, p.Settle(context.Background(), "pg-1"))
		assert.Greater(t, atomic.LoadInt32(&reader.calls), int32(1))
	})

	t.Run("hung read is bounded by timeout and proceeds", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		reader := &blockingReader{}
		p := &PollUntilReady{Reader: reader, Timeout: 200 * time.Millisecond}

		start := time.Now()
		require.NoError(t, p.Settle(ctx, "pg-1"))
		assert.Less(t, time.Since(start), 2*time.Second)
		assert.GreaterOrEqual(t, atomic.LoadInt32(&reader.calls), int32(1))
		assert.NoError(t, ctx.Err())
	})

	t.Run("parent deadline during hung read is reported", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		p := &PollUntilReady{Reader: &blockingReader{}, Timeout: time.Hour}
		err := p.Settle(ctx, "pg-1")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("cancellation is reported", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		p := &PollUntilReady{Reader: &scriptedReader{results: []error{notFound}}, NewBackOff: quickBackOff}
		assert.ErrorIs(t, p.Settle(ctx, "pg-1"), context.Canceled)
	})

	t.Run("default schedule honours timeout", func(t *testing.T) {
		p := &PollUntilReady{Timeout: 2 * time.Second}
		b, ok := p.backOff().(*backoff.ExponentialBackOff)
		require.True(t, ok)
		assert.Equal(t, 2*time.Second, b.MaxElapsedTime)

		b, ok = (&PollUntilReady{}).backOff().(*backoff.ExponentialBackOff)
		require.True(t, ok)
		assert.Equal(t, DefaultSettleTimeout, b.MaxElapsedTime)
	})
}
