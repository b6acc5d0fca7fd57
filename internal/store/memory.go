package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tenanthooks/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu        sync.Mutex
	partners  map[string][]model.Partner      // tenant -> partners, insertion order
	hooks     map[string][]model.Webhook      // tenant -> webhooks, insertion order
	events    map[string][]model.WebhookEvent // tenant -> event definitions
	eventKeys map[string]map[string]string    // tenant -> lower(name) -> event id
	now       func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		partners:  map[string][]model.Partner{},
		hooks:     map[string][]model.Webhook{},
		events:    map[string][]model.WebhookEvent{},
		eventKeys: map[string]map[string]string{},
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

// Partners

func (m *Memory) CreatePartner(ctx context.Context, tenantID string, in model.PartnerInput) (model.Partner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	p := model.Partner{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Name:      in.Name,
		Email:     in.Email,
		Active:    model.BoolOr(in.Active, true),
		Metadata:  in.Metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.partners[tenantID] = append(m.partners[tenantID], p)
	return p, nil
}

func (m *Memory) GetPartner(ctx context.Context, tenantID, id string) (model.Partner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.partners[tenantID] {
		if p.ID == id {
			return p, nil
		}
	}
	return model.Partner{}, ErrNotFound
}

func (m *Memory) ListPartners(ctx context.Context, tenantID, cursor string, limit int) ([]model.Partner, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items, next := page(m.partners[tenantID], cursor, limit, func(p model.Partner) string { return p.ID })
	return items, next, nil
}

func (m *Memory) UpdatePartner(ctx context.Context, tenantID, id string, in model.PartnerInput) (model.Partner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.partners[tenantID]
	for i := range list {
		if list[i].ID != id {
			continue
		}
		list[i].Name = in.Name
		list[i].Email = in.Email
		list[i].Active = model.BoolOr(in.Active, list[i].Active)
		if in.Metadata != nil {
			list[i].Metadata = in.Metadata
		}
		list[i].UpdatedAt = m.now()
		return list[i], nil
	}
	return model.Partner{}, ErrNotFound
}

func (m *Memory) DeletePartner(ctx context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list, ok := remove(m.partners[tenantID], func(p model.Partner) bool { return p.ID == id })
	if !ok {
		return ErrNotFound
	}
	m.partners[tenantID] = list
	hooks := m.hooks[tenantID]
	for i := range hooks {
		if hooks[i].PartnerID == id {
			hooks[i].PartnerID = ""
		}
	}
	return nil
}

// checkPartner rejects a partner id that is not a partner of tenantID. Callers hold mu.
func (m *Memory) checkPartner(tenantID, id string) error {
	if id == "" {
		return nil
	}
	for _, p := range m.partners[tenantID] {
		if p.ID == id {
			return nil
		}
	}
	return fmt.Errorf("%w: partner %q", ErrInvalidReference, id)
}

// Webhooks

func (m *Memory) CreateWebhook(ctx context.Context, tenantID string, in model.WebhookInput) (model.Webhook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkPartner(tenantID, in.PartnerID); err != nil {
		return model.Webhook{}, err
	}
	now := m.now()
	h := model.Webhook{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		PartnerID: in.PartnerID,
		EventType: in.EventType,
		URL:       in.URL,
		Active:    model.BoolOr(in.Active, true),
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.hooks[tenantID] = append(m.hooks[tenantID], h)
	return h, nil
}

func (m *Memory) GetWebhook(ctx context.Context, tenantID, id string) (model.Webhook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range m.hooks[tenantID] {
		if h.ID == id {
			return h, nil
		}
	}
	return model.Webhook{}, ErrNotFound
}

func (m *Memory) ListWebhooks(ctx context.Context, tenantID, cursor string, limit int) ([]model.Webhook, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items, next := page(m.hooks[tenantID], cursor, limit, func(h model.Webhook) string { return h.ID })
	return items, next, nil
}

func (m *Memory) UpdateWebhook(ctx context.Context, tenantID, id string, in model.WebhookInput) (model.Webhook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkPartner(tenantID, in.PartnerID); err != nil {
		return model.Webhook{}, err
	}
	list := m.hooks[tenantID]
	for i := range list {
		if list[i].ID != id {
			continue
		}
		list[i].PartnerID = in.PartnerID
		list[i].EventType = in.EventType
		list[i].URL = in.URL
		list[i].Active = model.BoolOr(in.Active, list[i].Active)
		list[i].UpdatedAt = m.now()
		return list[i], nil
	}
	return model.Webhook{}, ErrNotFound
}

func (m *Memory) DeleteWebhook(ctx context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list, ok := remove(m.hooks[tenantID], func(h model.Webhook) bool { return h.ID == id })
	if !ok {
		return ErrNotFound
	}
	m.hooks[tenantID] = list
	return nil
}

func (m *Memory) FindActiveSubscriptions(ctx context.Context, eventType, tenantID string) ([]model.Webhook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Webhook{}
	for _, h := range m.hooks[tenantID] {
		if h.Active && h.EventType == eventType {
			out = append(out, h)
		}
	}
	return out, nil
}

// Webhook event catalog

func (m *Memory) CreateWebhookEvent(ctx context.Context, tenantID string, in model.WebhookEventInput) (model.WebhookEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(in.Name)
	keys := m.eventKeys[tenantID]
	if keys == nil {
		keys = map[string]string{}
		m.eventKeys[tenantID] = keys
	}
	if _, dup := keys[key]; dup {
		return model.WebhookEvent{}, ErrConflict
	}
	now := m.now()
	e := model.WebhookEvent{
		ID:          uuid.New().String(),
		TenantID:    tenantID,
		Name:        in.Name,
		Description: in.Description,
		Active:      model.BoolOr(in.Active, true),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	keys[key] = e.ID
	m.events[tenantID] = append(m.events[tenantID], e)
	return e, nil
}

func (m *Memory) UpdateWebhookEvent(ctx context.Context, tenantID, id string, in model.WebhookEventInput) (model.WebhookEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.events[tenantID]
	for i := range list {
		if list[i].ID != id {
			continue
		}
		oldKey, newKey := strings.ToLower(list[i].Name), strings.ToLower(in.Name)
		if owner, dup := m.eventKeys[tenantID][newKey]; dup && owner != id {
			return model.WebhookEvent{}, ErrConflict
		}
		delete(m.eventKeys[tenantID], oldKey)
		m.eventKeys[tenantID][newKey] = id
		list[i].Name = in.Name
		list[i].Description = in.Description
		list[i].Active = model.BoolOr(in.Active, list[i].Active)
		list[i].UpdatedAt = m.now()
		return list[i], nil
	}
	return model.WebhookEvent{}, ErrNotFound
}

func (m *Memory) DeleteWebhookEvent(ctx context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var name string
	list, ok := remove(m.events[tenantID], func(e model.WebhookEvent) bool {
		if e.ID == id {
			name = e.Name
			return true
		}
		return false
	})
	if !ok {
		return ErrNotFound
	}
	m.events[tenantID] = list
	delete(m.eventKeys[tenantID], strings.ToLower(name))
	return nil
}

func (m *Memory) FindActiveEventNames(ctx context.Context, tenantID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []string{}
	for _, e := range m.events[tenantID] {
		if e.Active {
			out = append(out, e.Name)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *Memory) FindAllEventDefinitions(ctx context.Context, tenantID string) ([]model.WebhookEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.WebhookEvent{}, m.events[tenantID]...), nil
}

// page slices list after the element whose id equals cursor. A cursor that
// no longer exists yields an empty last page.
func page[T any](list []T, cursor string, limit int, id func(T) string) ([]T, string) {
	limit = clampLimit(limit)
	start := 0
	if cursor != "" {
		start = -1
		for i := range list {
			if id(list[i]) == cursor {
				start = i + 1
				break
			}
		}
		if start < 0 {
			return []T{}, ""
		}
	}
	end := start + limit
	if end > len(list) {
		end = len(list)
	}
	items := append([]T{}, list[start:end]...)
	next := ""
	if end < len(list) {
		next = id(list[end-1])
	}
	return items, next
}

func remove[T any](list []T, match func(T) bool) ([]T, bool) {
	out := make([]T, 0, len(list))
	found := false
	for _, v := range list {
		if match(v) {
			found = true
			continue
		}
		out = append(out, v)
	}
	return out, found
}
