package webhooks

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderStampsUTCMillis(t *testing.T) {
	loc := time.FixedZone("X", 3*3600)
	clock := func() time.Time { return time.Date(2025, 3, 4, 8, 30, 15, 123456789, loc) }
	env := NewBuilder(clock).Build("partner.created", "T", map[string]any{"id": "p1"})

	assert.Equal(t, "partner.created", env.EventType)
	assert.Equal(t, "T", env.TenantID)
	assert.Equal(t, "2025-03-04T05:30:15.123Z", env.Timestamp)
}

func TestEnvelopeEncodeShape(t *testing.T) {
	clock := func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }
	data := map[string]any{"id": "p1", "nested": map[string]any{"n": 1.5, "tags": []any{"a", "b"}}}
	body, err := NewBuilder(clock).Build("partner.created", "T", data).Encode()
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"eventType": "partner.created",
		"timestamp": "2025-01-02T03:04:05.000Z",
		"tenantId": "T",
		"data": {"id": "p1", "nested": {"n": 1.5, "tags": ["a", "b"]}}
	}`, string(body))
}

func TestEnvelopeDataPassThrough(t *testing.T) {
	raw := json.RawMessage(`{"keep":"as-is","n":[1,2,3]}`)
	body, err := BuildEnvelope("user.created", "T", raw).Encode()
	require.NoError(t, err)

	var decoded struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.JSONEq(t, string(raw), string(decoded.Data))
}

func TestEnvelopeNilData(t *testing.T) {
	body, err := BuildEnvelope("user.created", "T", nil).Encode()
	require.NoError(t, err)
	assert.Contains(t, string(body), `"data":null`)
}
