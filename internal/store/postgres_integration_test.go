//go:build postgres_integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"tenanthooks/internal/model"
)

func setupPostgres(t *testing.T) *Postgres {
	t.Helper()
	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("tenanthooks"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(ctr) })

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, Migrate(dsn, "up"))
	require.NoError(t, Migrate(dsn, "up"), "second run is a no-op")

	p, err := NewPostgres(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestPostgresSubscriptions(t *testing.T) {
	p := setupPostgres(t)
	ctx := t.Context()
	off := false

	a, err := p.CreateWebhook(ctx, "t1", model.WebhookInput{EventType: "partner.created", URL: "http://a.example/hook"})
	require.NoError(t, err)
	_, err = p.CreateWebhook(ctx, "t1", model.WebhookInput{EventType: "partner.created", URL: "http://c.example/hook", Active: &off})
	require.NoError(t, err)
	_, err = p.CreateWebhook(ctx, "t2", model.WebhookInput{EventType: "partner.created", URL: "http://b.example/hook"})
	require.NoError(t, err)

	got, err := p.FindActiveSubscriptions(ctx, "partner.created", "t1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, a.ID, got[0].ID)

	none, err := p.FindActiveSubscriptions(ctx, "partner.deleted", "t1")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	require.NoError(t, p.DeleteWebhook(ctx, "t1", a.ID))
	assert.ErrorIs(t, p.DeleteWebhook(ctx, "t1", a.ID), ErrNotFound)
}

func TestPostgresEventCatalog(t *testing.T) {
	p := setupPostgres(t)
	ctx := t.Context()
	off := false

	_, err := p.CreateWebhookEvent(ctx, "t1", model.WebhookEventInput{Name: "partner.created"})
	require.NoError(t, err)
	_, err = p.CreateWebhookEvent(ctx, "t1", model.WebhookEventInput{Name: "user.created", Active: &off})
	require.NoError(t, err)
	_, err = p.CreateWebhookEvent(ctx, "t1", model.WebhookEventInput{Name: "Partner.Created"})
	assert.ErrorIs(t, err, ErrConflict)

	names, err := p.FindActiveEventNames(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"partner.created"}, names)

	all, err := p.FindAllEventDefinitions(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestPostgresPartnerRoundTrip(t *testing.T) {
	p := setupPostgres(t)
	ctx := t.Context()

	pt, err := p.CreatePartner(ctx, "t1", model.PartnerInput{Name: "Acme", Metadata: map[string]any{"tier": "gold"}})
	require.NoError(t, err)
	got, err := p.GetPartner(ctx, "t1", pt.ID)
	require.NoError(t, err)
	assert.Equal(t, "gold", got.Metadata["tier"])

	_, err = p.GetPartner(ctx, "t2", pt.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresWebhookPartnerScopedToTenant(t *testing.T) {
	p := setupPostgres(t)
	ctx := t.Context()

	own, err := p.CreatePartner(ctx, "t1", model.PartnerInput{Name: "own"})
	require.NoError(t, err)
	foreign, err := p.CreatePartner(ctx, "t2", model.PartnerInput{Name: "foreign"})
	require.NoError(t, err)

	for _, id := range []string{foreign.ID, "does-not-exist", "00000000-0000-0000-0000-000000000000"} {
		_, err = p.CreateWebhook(ctx, "t1", model.WebhookInput{PartnerID: id, EventType: "partner.created", URL: "http://a.example/hook"})
		assert.ErrorIs(t, err, ErrInvalidReference, id)
	}

	h, err := p.CreateWebhook(ctx, "t1", model.WebhookInput{PartnerID: own.ID, EventType: "partner.created", URL: "http://a.example/hook"})
	require.NoError(t, err)
	require.NoError(t, p.DeletePartner(ctx, "t1", own.ID))
	got, err := p.GetWebhook(ctx, "t1", h.ID)
	require.NoError(t, err)
	assert.Empty(t, got.PartnerID)
}
