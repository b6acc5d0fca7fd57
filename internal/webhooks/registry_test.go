package webhooks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenanthooks/internal/model"
	"tenanthooks/internal/store"
)

type failingFinder struct{ err error }

func (f failingFinder) FindActiveSubscriptions(context.Context, string, string) ([]model.Webhook, error) {
	return nil, f.err
}

type staticFinder []model.Webhook

func (s staticFinder) FindActiveSubscriptions(context.Context, string, string) ([]model.Webhook, error) {
	return s, nil
}

func TestRegistryExcludesInactive(t *testing.T) {
	mem := store.NewMemory()
	ctx := t.Context()
	off := false
	a := createHook(t, mem, "T", "partner.created", "http://a.example", nil)
	b := createHook(t, mem, "T", "partner.created", "http://b.example", nil)
	createHook(t, mem, "T", "partner.created", "http://c.example", &off)

	got, err := NewRegistry(mem).Subscribers(ctx, "partner.created", "T")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, hookIDs(got))
}

func TestRegistryNoMatchIsEmptyNotError(t *testing.T) {
	got, err := NewRegistry(store.NewMemory()).Subscribers(t.Context(), "partner.created", "T")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRegistryStoreFailure(t *testing.T) {
	boom := errors.New("connection reset")
	_, err := NewRegistry(failingFinder{err: boom}).Subscribers(t.Context(), "partner.created", "T")
	assert.ErrorIs(t, err, ErrRegistryUnavailable)
	assert.ErrorIs(t, err, boom)
}

func TestRegistryRejectsEmptyEventType(t *testing.T) {
	_, err := NewRegistry(failingFinder{err: errors.New("must not be called")}).Subscribers(t.Context(), "", "T")
	assert.ErrorIs(t, err, ErrEmptyEventType)
}

func TestRegistryFiltersMisbehavingFinder(t *testing.T) {
	finder := staticFinder{
		{ID: "1", TenantID: "T", EventType: "partner.created", Active: true},
		{ID: "2", TenantID: "T", EventType: "partner.created", Active: false},
		{ID: "3", TenantID: "U", EventType: "partner.created", Active: true},
		{ID: "4", TenantID: "T", EventType: "partner.updated", Active: true},
	}
	got, err := NewRegistry(finder).Subscribers(t.Context(), "partner.created", "T")
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, hookIDs(got))
}

func createHook(t *testing.T, s store.Store, tenant, eventType, url string, active *bool) model.Webhook {
	t.Helper()
	h, err := s.CreateWebhook(t.Context(), tenant, model.WebhookInput{EventType: eventType, URL: url, Active: active})
	require.NoError(t, err)
	return h
}

func hookIDs(hs []model.Webhook) []string {
	out := make([]string, 0, len(hs))
	for _, h := range hs {
		out = append(out, h.ID)
	}
	return out
}
