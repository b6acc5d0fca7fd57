package webhooks

import (
	"context"
	"errors"
	"fmt"

	"tenanthooks/internal/model"
)

var (
	// ErrEmptyEventType is returned when a lookup or dispatch names no event type.
	ErrEmptyEventType = errors.New("webhooks: empty event type")
	// ErrRegistryUnavailable wraps persistence failures during subscriber lookup.
	// It is distinct from "no subscribers", which is an empty result.
	ErrRegistryUnavailable = errors.New("webhooks: subscriber registry unavailable")
)

// SubscriptionFinder is the read the registry needs from persistence.
type SubscriptionFinder interface {
	FindActiveSubscriptions(ctx context.Context, eventType, tenantID string) ([]model.Webhook, error)
}

// Registry resolves the active subscriptions for an (event type, tenant) pair.
type Registry struct {
	finder SubscriptionFinder
}

func NewRegistry(f SubscriptionFinder) *Registry {
	return &Registry{finder: f}
}

// Subscribers returns every active webhook of tenantID whose event type equals
// eventType exactly. No match yields an empty slice and a nil error.
func (r *Registry) Subscribers(ctx context.Context, eventType, tenantID string) ([]model.Webhook, error) {
	if eventType == "" {
		return nil, ErrEmptyEventType
	}
	hooks, err := r.finder.FindActiveSubscriptions(ctx, eventType, tenantID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRegistryUnavailable, err)
	}
	out := make([]model.Webhook, 0, len(hooks))
	for _, h := range hooks {
		if h.Active && h.EventType == eventType && h.TenantID == tenantID {
			out = append(out, h)
		}
	}
	return out, nil
}
