package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Lead is a CRM lead mirroring one engagement for the candidate's pipeline.
// Exactly one lead exists per engagement; status moves NEW -> QUALIFIED ->
// WON/LOST as the engagement progresses.
type Lead struct {
	ID           uuid.UUID
	EngagementID uuid.UUID
	OwnerUserID  uuid.UUID
	Title        string
	Status       string
	ValueCents   *int64
	Metadata     []byte
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UpsertParams identifies the lead by engagement and carries the new status.
type UpsertParams struct {
	EngagementID uuid.UUID
	OwnerUserID  uuid.UUID
	Title        string
	Status       string
	ValueCents   *int64
	Metadata     []byte
}

// Repo implements CRM lead persistence with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new CRM lead repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

const leadColumns = `id, engagement_id, owner_user_id, title, status, value_cents, metadata, created_at, updated_at`

// Upsert creates the lead for an engagement or updates its status and value.
// Keyed on engagement_id so replays converge on the same row.
func (r *Repo) Upsert(ctx context.Context, params UpsertParams) (Lead, error) {
	query := `
		INSERT INTO crm_leads (engagement_id, owner_user_id, title, status, value_cents, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (engagement_id) DO UPDATE SET
			status = EXCLUDED.status,
			value_cents = COALESCE(EXCLUDED.value_cents, crm_leads.value_cents),
			metadata = COALESCE(EXCLUDED.metadata, crm_leads.metadata),
			updated_at = now()
		RETURNING ` + leadColumns

	row := r.pool.QueryRow(ctx, query,
		params.EngagementID, params.OwnerUserID, params.Title, params.Status, params.ValueCents, params.Metadata,
	)
	l, err := scanLead(row)
	if err != nil {
		return Lead{}, fmt.Errorf("upsert crm lead: %w", err)
	}
	return l, nil
}

// GetByEngagement retrieves the lead mirroring an engagement, if any.
func (r *Repo) GetByEngagement(ctx context.Context, engagementID uuid.UUID) (Lead, bool, error) {
	query := `SELECT ` + leadColumns + ` FROM crm_leads WHERE engagement_id = $1`
	row := r.pool.QueryRow(ctx, query, engagementID)
	l, err := scanLead(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lead{}, false, nil
		}
		return Lead{}, false, fmt.Errorf("get crm lead: %w", err)
	}
	return l, true, nil
}

// ListByOwner retrieves the owner's leads, newest first.
func (r *Repo) ListByOwner(ctx context.Context, ownerUserID uuid.UUID) ([]Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM crm_leads WHERE owner_user_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, ownerUserID)
	if err != nil {
		return nil, fmt.Errorf("list crm leads: %w", err)
	}
	defer rows.Close()

	var results []Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("scan crm lead: %w", err)
		}
		results = append(results, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate crm leads: %w", err)
	}
	return results, nil
}

func scanLead(row pgx.Row) (Lead, error) {
	var l Lead
	err := row.Scan(
		&l.ID, &l.EngagementID, &l.OwnerUserID, &l.Title, &l.Status,
		&l.ValueCents, &l.Metadata, &l.CreatedAt, &l.UpdatedAt,
	)
	return l, err
}
