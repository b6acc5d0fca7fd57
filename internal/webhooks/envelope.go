package webhooks

import (
	"time"

	"github.com/goccy/go-json"
)

// TimestampLayout is the envelope timestamp format: UTC, millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Envelope is the body POSTed to every subscriber of one dispatch.
type Envelope struct {
	EventType string `json:"eventType"`
	Timestamp string `json:"timestamp"`
	TenantID  string `json:"tenantId"`
	Data      any    `json:"data"`
}

// Builder stamps envelopes with its clock.
type Builder struct {
	now func() time.Time
}

// NewBuilder returns a Builder using now, or the wall clock when now is nil.
func NewBuilder(now func() time.Time) *Builder {
	if now == nil {
		now = time.Now
	}
	return &Builder{now: now}
}

// Build wraps data without inspecting it.
func (b *Builder) Build(eventType, tenantID string, data any) Envelope {
	return Envelope{
		EventType: eventType,
		Timestamp: b.now().UTC().Format(TimestampLayout),
		TenantID:  tenantID,
		Data:      data,
	}
}

var defaultBuilder = NewBuilder(nil)

// BuildEnvelope builds an envelope stamped with the current time.
func BuildEnvelope(eventType, tenantID string, data any) Envelope {
	return defaultBuilder.Build(eventType, tenantID, data)
}

// Encode serializes the envelope. The returned bytes are shared read-only by
// all deliveries of a dispatch.
func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}
