package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"tenanthooks/internal/model"
	"tenanthooks/internal/store/migrations"
)

type Postgres struct {
	db  *sql.DB
	dsn string
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Postgres{db: db, dsn: dsn}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }

// Migrate applies ("up") or rolls back ("down") the embedded schema.
func (p *Postgres) Migrate(action string) error {
	return Migrate(p.dsn, action)
}

// Migrate runs the embedded migrations against dsn.
func Migrate(dsn, action string) error {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("load migration files: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	switch action {
	case "", "up":
		err = m.Up()
	case "down":
		err = m.Down()
	default:
		return fmt.Errorf("unknown migrate action %q", action)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate %s: %w", action, err)
	}
	return nil
}

// Partners

const partnerCols = `id::text, tenant_id, name, COALESCE(email,''), active, metadata, created_at, updated_at`

func (p *Postgres) CreatePartner(ctx context.Context, tenantID string, in model.PartnerInput) (model.Partner, error) {
	row := p.db.QueryRowContext(ctx, `INSERT INTO partners (id, tenant_id, name, email, active, metadata)
        VALUES ($1,$2,$3,$4,$5,$6) RETURNING `+partnerCols,
		uuid.New(), tenantID, in.Name, nullIfEmpty(in.Email), model.BoolOr(in.Active, true), toJSON(in.Metadata))
	return scanPartner(row)
}

func (p *Postgres) GetPartner(ctx context.Context, tenantID, id string) (model.Partner, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+partnerCols+` FROM partners WHERE tenant_id=$1 AND id::text=$2`, tenantID, id)
	return scanPartner(row)
}

func (p *Postgres) ListPartners(ctx context.Context, tenantID, cursor string, limit int) ([]model.Partner, string, error) {
	limit = clampLimit(limit)
	rows, err := p.db.QueryContext(ctx, `SELECT `+partnerCols+` FROM partners
        WHERE tenant_id=$1 AND ($2 = '' OR id::text > $2) ORDER BY id::text LIMIT $3`, tenantID, cursor, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.Partner{}
	for rows.Next() {
		pt, err := scanPartner(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, pt)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	return out, nextCursor(len(out), limit, func() string { return out[len(out)-1].ID }), nil
}

func (p *Postgres) UpdatePartner(ctx context.Context, tenantID, id string, in model.PartnerInput) (model.Partner, error) {
	row := p.db.QueryRowContext(ctx, `UPDATE partners SET name=$3, email=$4, active=COALESCE($5, active),
        metadata=COALESCE($6, metadata), updated_at=now()
        WHERE tenant_id=$1 AND id::text=$2 RETURNING `+partnerCols,
		tenantID, id, in.Name, nullIfEmpty(in.Email), in.Active, toJSON(in.Metadata))
	return scanPartner(row)
}

func (p *Postgres) DeletePartner(ctx context.Context, tenantID, id string) error {
	return p.deleteByID(ctx, "partners", tenantID, id)
}

func scanPartner(s scanner) (model.Partner, error) {
	var pt model.Partner
	var meta []byte
	if err := s.Scan(&pt.ID, &pt.TenantID, &pt.Name, &pt.Email, &pt.Active, &meta, &pt.CreatedAt, &pt.UpdatedAt); err != nil {
		return model.Partner{}, mapErr(err)
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &pt.Metadata); err != nil {
			return model.Partner{}, fmt.Errorf("decode partner metadata: %w", err)
		}
	}
	return pt, nil
}

// Webhooks

const webhookCols = `id::text, tenant_id, COALESCE(partner_id::text,''), event_type, url, active, created_at, updated_at`

func (p *Postgres) CreateWebhook(ctx context.Context, tenantID string, in model.WebhookInput) (model.Webhook, error) {
	if err := p.checkPartner(ctx, tenantID, in.PartnerID); err != nil {
		return model.Webhook{}, err
	}
	row := p.db.QueryRowContext(ctx, `INSERT INTO webhooks (id, tenant_id, partner_id, event_type, url, active)
        VALUES ($1,$2,$3,$4,$5,$6) RETURNING `+webhookCols,
		uuid.New(), tenantID, nullIfEmpty(in.PartnerID), in.EventType, in.URL, model.BoolOr(in.Active, true))
	return scanWebhook(row)
}

func (p *Postgres) GetWebhook(ctx context.Context, tenantID, id string) (model.Webhook, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+webhookCols+` FROM webhooks WHERE tenant_id=$1 AND id::text=$2`, tenantID, id)
	return scanWebhook(row)
}

func (p *Postgres) ListWebhooks(ctx context.Context, tenantID, cursor string, limit int) ([]model.Webhook, string, error) {
	limit = clampLimit(limit)
	rows, err := p.db.QueryContext(ctx, `SELECT `+webhookCols+` FROM webhooks
        WHERE tenant_id=$1 AND ($2 = '' OR id::text > $2) ORDER BY id::text LIMIT $3`, tenantID, cursor, limit)
	if err != nil {
		return nil, "", err
	}
	out, err := collectWebhooks(rows)
	if err != nil {
		return nil, "", err
	}
	return out, nextCursor(len(out), limit, func() string { return out[len(out)-1].ID }), nil
}

func (p *Postgres) UpdateWebhook(ctx context.Context, tenantID, id string, in model.WebhookInput) (model.Webhook, error) {
	if err := p.checkPartner(ctx, tenantID, in.PartnerID); err != nil {
		return model.Webhook{}, err
	}
	row := p.db.QueryRowContext(ctx, `UPDATE webhooks SET partner_id=$3, event_type=$4, url=$5,
        active=COALESCE($6, active), updated_at=now()
        WHERE tenant_id=$1 AND id::text=$2 RETURNING `+webhookCols,
		tenantID, id, nullIfEmpty(in.PartnerID), in.EventType, in.URL, in.Active)
	return scanWebhook(row)
}

func (p *Postgres) DeleteWebhook(ctx context.Context, tenantID, id string) error {
	return p.deleteByID(ctx, "webhooks", tenantID, id)
}

// checkPartner rejects a partner id that is not a partner of tenantID. The
// foreign key alone is not tenant scoped.
func (p *Postgres) checkPartner(ctx context.Context, tenantID, partnerID string) error {
	if partnerID == "" {
		return nil
	}
	if _, err := p.GetPartner(ctx, tenantID, partnerID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: partner %q", ErrInvalidReference, partnerID)
		}
		return err
	}
	return nil
}

func (p *Postgres) FindActiveSubscriptions(ctx context.Context, eventType, tenantID string) ([]model.Webhook, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+webhookCols+` FROM webhooks
        WHERE event_type=$1 AND tenant_id=$2 AND active`, eventType, tenantID)
	if err != nil {
		return nil, err
	}
	return collectWebhooks(rows)
}

func collectWebhooks(rows *sql.Rows) ([]model.Webhook, error) {
	defer rows.Close()
	out := []model.Webhook{}
	for rows.Next() {
		h, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func scanWebhook(s scanner) (model.Webhook, error) {
	var h model.Webhook
	if err := s.Scan(&h.ID, &h.TenantID, &h.PartnerID, &h.EventType, &h.URL, &h.Active, &h.CreatedAt, &h.UpdatedAt); err != nil {
		return model.Webhook{}, mapErr(err)
	}
	return h, nil
}

// Webhook event catalog

const eventCols = `id::text, tenant_id, name, COALESCE(description,''), active, created_at, updated_at`

func (p *Postgres) CreateWebhookEvent(ctx context.Context, tenantID string, in model.WebhookEventInput) (model.WebhookEvent, error) {
	row := p.db.QueryRowContext(ctx, `INSERT INTO webhook_events (id, tenant_id, name, description, active)
        VALUES ($1,$2,$3,$4,$5) RETURNING `+eventCols,
		uuid.New(), tenantID, in.Name, nullIfEmpty(in.Description), model.BoolOr(in.Active, true))
	return scanEvent(row)
}

func (p *Postgres) UpdateWebhookEvent(ctx context.Context, tenantID, id string, in model.WebhookEventInput) (model.WebhookEvent, error) {
	row := p.db.QueryRowContext(ctx, `UPDATE webhook_events SET name=$3, description=$4,
        active=COALESCE($5, active), updated_at=now()
        WHERE tenant_id=$1 AND id::text=$2 RETURNING `+eventCols,
		tenantID, id, in.Name, nullIfEmpty(in.Description), in.Active)
	return scanEvent(row)
}

func (p *Postgres) DeleteWebhookEvent(ctx context.Context, tenantID, id string) error {
	return p.deleteByID(ctx, "webhook_events", tenantID, id)
}

func (p *Postgres) FindActiveEventNames(ctx context.Context, tenantID string) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT name FROM webhook_events WHERE tenant_id=$1 AND active ORDER BY name`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (p *Postgres) FindAllEventDefinitions(ctx context.Context, tenantID string) ([]model.WebhookEvent, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+eventCols+` FROM webhook_events WHERE tenant_id=$1 ORDER BY name`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.WebhookEvent{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEvent(s scanner) (model.WebhookEvent, error) {
	var e model.WebhookEvent
	if err := s.Scan(&e.ID, &e.TenantID, &e.Name, &e.Description, &e.Active, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return model.WebhookEvent{}, mapErr(err)
	}
	return e, nil
}

// Helpers

type scanner interface {
	Scan(dest ...any) error
}

func (p *Postgres) deleteByID(ctx context.Context, table, tenantID, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE tenant_id=$1 AND id::text=$2`, tenantID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// mapErr translates driver errors into store sentinels.
func mapErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
		case "23503", "22P02": // foreign_key_violation, invalid_text_representation
			return fmt.Errorf("%w: %s", ErrInvalidReference, pgErr.Message)
		}
	}
	return err
}

func nextCursor(n, limit int, last func() string) string {
	if n == limit && n > 0 {
		return last()
	}
	return ""
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func toJSON(m map[string]any) any {
	if m == nil {
		return nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return b
}
