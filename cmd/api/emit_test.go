package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenanthooks/internal/model"
	"tenanthooks/internal/webhooks"
)

type recordingSubs struct{ eventType string }

func (r *recordingSubs) Subscribers(ctx context.Context, eventType, tenantID string) ([]model.Webhook, error) {
	r.eventType = eventType
	return nil, nil
}

func TestEmitFuncBindsEventType(t *testing.T) {
	subs := &recordingSubs{}
	d := webhooks.NewDispatcher(subs, webhooks.NewExecutor(webhooks.ExecutorConfig{}))

	for _, name := range append(wellKnownEvents, "order.shipped") {
		sum, err := emitFunc(d, name)(t.Context(), "t1", nil)
		require.NoError(t, err)
		assert.Equal(t, name, subs.eventType)
		assert.Equal(t, name, sum.EventType)
	}
}

func TestEmitCommandRequiresTenant(t *testing.T) {
	cmd := newEmitCmd()
	cmd.SetArgs([]string{"user.created"})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	assert.Error(t, cmd.Execute())
}
