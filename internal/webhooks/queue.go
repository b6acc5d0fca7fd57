package webhooks

import (
	"context"
	"errors"
	"sync"

	"tenanthooks/internal/logging"
	"tenanthooks/internal/metrics"
)

var (
	ErrQueueFull   = errors.New("webhooks: dispatch queue full")
	ErrQueueClosed = errors.New("webhooks: dispatch queue closed")
)

// DispatchFunc matches (*Dispatcher).Dispatch.
type DispatchFunc func(ctx context.Context, eventType, tenantID string, data any) (Summary, error)

type task struct {
	ctx       context.Context
	eventType string
	tenantID  string
	data      any
}

// Queue runs dispatches in the background on a fixed pool of workers so that
// request handlers never wait on subscriber latency.
type Queue struct {
	dispatch DispatchFunc
	tasks    chan task
	wg       sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewQueue starts workers goroutines draining a buffer of size tasks.
func NewQueue(dispatch DispatchFunc, size, workers int) *Queue {
	if size <= 0 {
		size = 1
	}
	if workers <= 0 {
		workers = 1
	}
	q := &Queue{dispatch: dispatch, tasks: make(chan task, size)}
	q.wg.Add(workers)
	for range workers {
		go q.work()
	}
	return q
}

// Enqueue schedules a dispatch and returns immediately. Call it only after the
// triggering write has committed. The task keeps ctx values but not its
// cancellation.
func (q *Queue) Enqueue(ctx context.Context, eventType, tenantID string, data any) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		metrics.QueueDropped.WithLabelValues("closed").Inc()
		return ErrQueueClosed
	}
	t := task{ctx: context.WithoutCancel(ctx), eventType: eventType, tenantID: tenantID, data: data}
	metrics.QueueDepth.Inc()
	select {
	case q.tasks <- t:
		return nil
	default:
		metrics.QueueDepth.Dec()
		metrics.QueueDropped.WithLabelValues("full").Inc()
		logging.Ctx(ctx).Warn().Str("event_type", eventType).Str("tenant_id", tenantID).Msg("webhook queue full, dropping dispatch")
		return ErrQueueFull
	}
}

// Len reports tasks waiting for a worker.
func (q *Queue) Len() int { return len(q.tasks) }

// Close stops accepting tasks and waits for queued ones to finish or ctx to end.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.tasks)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) work() {
	defer q.wg.Done()
	for t := range q.tasks {
		metrics.QueueDepth.Dec()
		if _, err := q.dispatch(t.ctx, t.eventType, t.tenantID, t.data); err != nil {
			logging.Ctx(t.ctx).Error().Err(err).Str("event_type", t.eventType).Str("tenant_id", t.tenantID).Msg("background webhook dispatch failed")
		}
	}
}
