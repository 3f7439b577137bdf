package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"marketplace_backend/platform/apperr"
)

const requestNotFoundMessage = "request not found"

const requestColumns = `
	id, requester_id, type, category, region, base_value, currency, status,
	designated_candidate_id, description, created_at, updated_at`

// Repo implements request persistence with PostgreSQL. Status changes
// triggered by engagement transitions happen in the engagement repository's
// transaction; this repository only creates and reads.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new request repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Create persists a new request in the open status.
func (r *Repo) Create(ctx context.Context, params CreateParams) (Request, error) {
	query := `
		INSERT INTO requests (requester_id, type, category, region, base_value, currency, designated_candidate_id, description, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + requestColumns

	row := r.pool.QueryRow(ctx, query,
		params.RequesterID, params.Type, params.Category, params.Region,
		params.BaseValue, params.Currency, params.DesignatedCandidateID, params.Description,
		StatusOpen,
	)
	req, err := scanRequest(row)
	if err != nil {
		return Request{}, fmt.Errorf("create request: %w", err)
	}
	return req, nil
}

// GetByID retrieves a request by its ID.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, id)
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, apperr.NotFound(requestNotFoundMessage)
		}
		return Request{}, fmt.Errorf("get request: %w", err)
	}
	return req, nil
}

// ListByRequester retrieves the requester's requests, newest first.
func (r *Repo) ListByRequester(ctx context.Context, requesterID uuid.UUID) ([]Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE requester_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, requesterID)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	var results []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		results = append(results, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate requests: %w", err)
	}
	return results, nil
}

// Close marks a request closed without a winning engagement.
func (r *Repo) Close(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE requests SET status = $2, updated_at = now() WHERE id = $1 AND status IN ($3, $4)`,
		id, StatusClosed, StatusOpen, StatusMatched,
	)
	if err != nil {
		return fmt.Errorf("close request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("request cannot be closed in its current status")
	}
	return nil
}

func scanRequest(row pgx.Row) (Request, error) {
	var req Request
	err := row.Scan(
		&req.ID, &req.RequesterID, &req.Type, &req.Category, &req.Region,
		&req.BaseValue, &req.Currency, &req.Status,
		&req.DesignatedCandidateID, &req.Description, &req.CreatedAt, &req.UpdatedAt,
	)
	return req, err
}
