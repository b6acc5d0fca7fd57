package webhooks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRunsTasksAndDrainsOnClose(t *testing.T) {
	var mu sync.Mutex
	var got []string
	dispatch := func(_ context.Context, eventType, tenantID string, _ any) (Summary, error) {
		mu.Lock()
		got = append(got, eventType+"/"+tenantID)
		mu.Unlock()
		return Summary{}, nil
	}
	q := NewQueue(dispatch, 8, 2)
	require.NoError(t, q.Enqueue(t.Context(), EventPartnerCreated, "T", nil))
	require.NoError(t, q.Enqueue(t.Context(), EventPartnerUpdated, "T", nil))
	require.NoError(t, q.Close(t.Context()))

	assert.ElementsMatch(t, []string{"partner.created/T", "partner.updated/T"}, got)
	assert.ErrorIs(t, q.Enqueue(t.Context(), EventPartnerDeleted, "T", nil), ErrQueueClosed)
	assert.NoError(t, q.Close(t.Context()), "close is idempotent")
}

func TestQueueFullDropsWithoutBlocking(t *testing.T) {
	release := make(chan struct{})
	dispatch := func(context.Context, string, string, any) (Summary, error) {
		<-release
		return Summary{}, nil
	}
	q := NewQueue(dispatch, 1, 1)
	defer func() {
		close(release)
		_ = q.Close(context.Background())
	}()

	// One task occupies the worker, the next fills the buffer.
	require.NoError(t, q.Enqueue(t.Context(), "a.b", "T", nil))
	require.Eventually(t, func() bool { return q.Len() == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, q.Enqueue(t.Context(), "a.b", "T", nil))

	start := time.Now()
	err := q.Enqueue(t.Context(), "a.b", "T", nil)
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestQueueTaskOutlivesRequestContext(t *testing.T) {
	var sawCanceled atomic.Bool
	done := make(chan struct{})
	dispatch := func(ctx context.Context, _, _ string, _ any) (Summary, error) {
		sawCanceled.Store(ctx.Err() != nil)
		close(done)
		return Summary{}, errors.New("logged, not propagated")
	}
	q := NewQueue(dispatch, 1, 1)
	ctx, cancel := context.WithCancel(t.Context())
	require.NoError(t, q.Enqueue(ctx, "a.b", "T", nil))
	cancel()
	<-done
	require.NoError(t, q.Close(t.Context()))
	assert.False(t, sawCanceled.Load())
}

func TestQueueCloseHonorsDeadline(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	q := NewQueue(func(context.Context, string, string, any) (Summary, error) {
		<-release
		return Summary{}, nil
	}, 1, 1)
	require.NoError(t, q.Enqueue(t.Context(), "a.b", "T", nil))

	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Close(ctx), context.DeadlineExceeded)
}
