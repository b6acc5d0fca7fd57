package store

import (
	"context"
	"errors"

	"tenanthooks/internal/model"
)

// Store is the persistence interface used by the API server and the
// webhook dispatcher.
type Store interface {
	// Partners
	CreatePartner(ctx context.Context, tenantID string, in model.PartnerInput) (model.Partner, error)
	GetPartner(ctx context.Context, tenantID, id string) (model.Partner, error)
	ListPartners(ctx context.Context, tenantID, cursor string, limit int) ([]model.Partner, string, error)
	UpdatePartner(ctx context.Context, tenantID, id string, in model.PartnerInput) (model.Partner, error)
	DeletePartner(ctx context.Context, tenantID, id string) error

	// Webhooks (subscriptions)
	CreateWebhook(ctx context.Context, tenantID string, in model.WebhookInput) (model.Webhook, error)
	GetWebhook(ctx context.Context, tenantID, id string) (model.Webhook, error)
	ListWebhooks(ctx context.Context, tenantID, cursor string, limit int) ([]model.Webhook, string, error)
	UpdateWebhook(ctx context.Context, tenantID, id string, in model.WebhookInput) (model.Webhook, error)
	DeleteWebhook(ctx context.Context, tenantID, id string) error
	// FindActiveSubscriptions returns active webhooks for the tenant whose event
	// type equals eventType. No match is an empty slice, not an error.
	FindActiveSubscriptions(ctx context.Context, eventType, tenantID string) ([]model.Webhook, error)

	// Webhook event catalog
	CreateWebhookEvent(ctx context.Context, tenantID string, in model.WebhookEventInput) (model.WebhookEvent, error)
	UpdateWebhookEvent(ctx context.Context, tenantID, id string, in model.WebhookEventInput) (model.WebhookEvent, error)
	DeleteWebhookEvent(ctx context.Context, tenantID, id string) error
	FindActiveEventNames(ctx context.Context, tenantID string) ([]string, error)
	FindAllEventDefinitions(ctx context.Context, tenantID string) ([]model.WebhookEvent, error)

	Ping(ctx context.Context) error
}

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict reports a uniqueness violation, e.g. a duplicate event name.
	ErrConflict = errors.New("conflict")
	// ErrInvalidReference reports a foreign id that does not resolve within the
	// caller's tenant, e.g. a webhook's partner id.
	ErrInvalidReference = errors.New("invalid reference")
)

const (
	defaultPageSize = 100
	maxPageSize     = 500
)

func clampLimit(limit int) int {
	if limit <= 0 || limit > maxPageSize {
		return defaultPageSize
	}
	return limit
}
