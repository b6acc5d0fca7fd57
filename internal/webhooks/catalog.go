package webhooks

import (
	"context"
	_ "embed"

	"gopkg.in/yaml.v3"

	"tenanthooks/internal/logging"
	"tenanthooks/internal/model"
)

//go:embed default_events.yaml
var defaultEventsYAML []byte

// builtinEventNames backs the fallback when default_events.yaml is unusable.
var builtinEventNames = []string{
	EventPartnerCreated,
	EventPartnerUpdated,
	EventPartnerDeleted,
	EventUserCreated,
	EventUserUpdated,
}

var fallbackEventNames = loadFallbackNames(defaultEventsYAML)

func loadFallbackNames(doc []byte) []string {
	var parsed struct {
		Events []struct {
			Name        string `yaml:"name"`
			Description string `yaml:"description"`
		} `yaml:"events"`
	}
	if err := yaml.Unmarshal(doc, &parsed); err != nil {
		return append([]string(nil), builtinEventNames...)
	}
	names := make([]string, 0, len(parsed.Events))
	for _, e := range parsed.Events {
		if e.Name != "" {
			names = append(names, e.Name)
		}
	}
	if len(names) == 0 {
		return append([]string(nil), builtinEventNames...)
	}
	return names
}

// FallbackEventNames returns a copy of the names offered when the catalog
// cannot be read.
func FallbackEventNames() []string {
	return append([]string(nil), fallbackEventNames...)
}

// EventSource is the read side of the event definition store.
type EventSource interface {
	FindActiveEventNames(ctx context.Context, tenantID string) ([]string, error)
	FindAllEventDefinitions(ctx context.Context, tenantID string) ([]model.WebhookEvent, error)
}

// Catalog lists event type names usable for subscriptions. Reads degrade
// instead of failing.
type Catalog struct {
	src EventSource
}

func NewCatalog(src EventSource) *Catalog {
	return &Catalog{src: src}
}

// ListActiveNames returns the tenant's active event names, or the fallback
// list when the store cannot be read.
func (c *Catalog) ListActiveNames(ctx context.Context, tenantID string) []string {
	names, err := c.src.FindActiveEventNames(ctx, tenantID)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("tenant_id", tenantID).Msg("event catalog unavailable, using fallback names")
		return FallbackEventNames()
	}
	if names == nil {
		names = []string{}
	}
	return names
}

// ListAll returns every definition for the tenant, active or not. A store
// failure yields an empty slice.
func (c *Catalog) ListAll(ctx context.Context, tenantID string) []model.WebhookEvent {
	defs, err := c.src.FindAllEventDefinitions(ctx, tenantID)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("tenant_id", tenantID).Msg("event catalog unavailable")
		return []model.WebhookEvent{}
	}
	if defs == nil {
		defs = []model.WebhookEvent{}
	}
	return defs
}
