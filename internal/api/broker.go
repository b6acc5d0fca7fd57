package api

import (
	"context"
	"sync"

	"tenanthooks/internal/webhooks"
)

// ActivityEvent is one item on a tenant's webhook activity feed.
type ActivityEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

const activityDispatch = "webhook.dispatch"

// EventBroker fans activity events out to live subscribers of a tenant.
type EventBroker interface {
	Subscribe(tenantID string) chan ActivityEvent
	Unsubscribe(tenantID string, ch chan ActivityEvent)
	Publish(tenantID string, evt ActivityEvent)
}

// Broker is the in-process EventBroker. Slow subscribers miss events rather
// than block publishers.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan ActivityEvent]struct{} // tenantId -> set of channels
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan ActivityEvent]struct{}{}}
}

func (b *Broker) Subscribe(tenantID string) chan ActivityEvent {
	ch := make(chan ActivityEvent, 8)
	b.mu.Lock()
	if b.subs[tenantID] == nil {
		b.subs[tenantID] = map[chan ActivityEvent]struct{}{}
	}
	b.subs[tenantID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(tenantID string, ch chan ActivityEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.subs[tenantID]
	if _, ok := m[ch]; !ok {
		return
	}
	delete(m, ch)
	if len(m) == 0 {
		delete(b.subs, tenantID)
	}
	close(ch)
}

func (b *Broker) Publish(tenantID string, evt ActivityEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[tenantID] {
		select {
		case ch <- evt:
		default:
		}
	}
}

// ActivityFeed publishes dispatch summaries to the tenant's activity stream.
type ActivityFeed struct {
	Broker EventBroker
}

func (f ActivityFeed) PublishSummary(_ context.Context, s webhooks.Summary) {
	f.Broker.Publish(s.TenantID, ActivityEvent{Type: activityDispatch, Data: s})
}
