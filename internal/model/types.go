package model

import "time"

// Partner is an external counterparty owned by a tenant.
type Partner struct {
	ID        string         `json:"id"`
	TenantID  string         `json:"tenantId"`
	Name      string         `json:"name"`
	Email     string         `json:"email,omitempty"`
	Active    bool           `json:"active"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

type PartnerInput struct {
	Name     string         `json:"name" validate:"required,max=200"`
	Email    string         `json:"email,omitempty" validate:"omitempty,email"`
	Active   *bool          `json:"active,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Webhook is a tenant's subscription to one event type, delivered to one URL.
// Only active webhooks are eligible for delivery.
type Webhook struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenantId"`
	PartnerID string    `json:"partnerId,omitempty"`
	EventType string    `json:"eventType"`
	URL       string    `json:"url"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type WebhookInput struct {
	PartnerID string `json:"partnerId,omitempty"`
	EventType string `json:"eventType" validate:"required,max=120"`
	URL       string `json:"url" validate:"required,http_url"`
	Active    *bool  `json:"active,omitempty"`
}

// WebhookEvent declares that an event type name exists for a tenant.
// Names are unique per tenant, compared case-insensitively.
type WebhookEvent struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenantId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type WebhookEventInput struct {
	Name        string `json:"name" validate:"required,max=120"`
	Description string `json:"description,omitempty" validate:"max=500"`
	Active      *bool  `json:"active,omitempty"`
}

// BoolOr dereferences b, falling back to def when unset.
func BoolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}
