package webhooks

import "context"

// Well-known event types emitted by business operations. Code that owns users
// or integration keys calls the matching method after its write commits, e.g.
//
//	d.UserCreated(ctx, tenantID, user)
//
// or schedules it with Queue.Enqueue(ctx, EventUserCreated, tenantID, user).
const (
	EventPartnerCreated        = "partner.created"
	EventPartnerUpdated        = "partner.updated"
	EventPartnerDeleted        = "partner.deleted"
	EventUserCreated           = "user.created"
	EventUserUpdated           = "user.updated"
	EventIntegrationKeyCreated = "integration_key.created"
	EventIntegrationKeyRevoked = "integration_key.revoked"
)

func (d *Dispatcher) PartnerCreated(ctx context.Context, tenantID string, data any) (Summary, error) {
	return d.Dispatch(ctx, EventPartnerCreated, tenantID, data)
}

func (d *Dispatcher) PartnerUpdated(ctx context.Context, tenantID string, data any) (Summary, error) {
	return d.Dispatch(ctx, EventPartnerUpdated, tenantID, data)
}

func (d *Dispatcher) PartnerDeleted(ctx context.Context, tenantID string, data any) (Summary, error) {
	return d.Dispatch(ctx, EventPartnerDeleted, tenantID, data)
}

func (d *Dispatcher) UserCreated(ctx context.Context, tenantID string, data any) (Summary, error) {
	return d.Dispatch(ctx, EventUserCreated, tenantID, data)
}

func (d *Dispatcher) UserUpdated(ctx context.Context, tenantID string, data any) (Summary, error) {
	return d.Dispatch(ctx, EventUserUpdated, tenantID, data)
}

func (d *Dispatcher) IntegrationKeyCreated(ctx context.Context, tenantID string, data any) (Summary, error) {
	return d.Dispatch(ctx, EventIntegrationKeyCreated, tenantID, data)
}

func (d *Dispatcher) IntegrationKeyRevoked(ctx context.Context, tenantID string, data any) (Summary, error) {
	return d.Dispatch(ctx, EventIntegrationKeyRevoked, tenantID, data)
}
