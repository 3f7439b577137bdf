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

const candidateNotFoundMessage = "candidate profile not found"

const profileColumns = `
	id, user_id, display_name, phone, verified, active, regions, specializations,
	rating, total_deals, total_valuations, total_bookings, completed_count,
	created_at, updated_at`

// Repo implements candidate profile persistence with PostgreSQL.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new candidate profile repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// GetByID retrieves a candidate profile by its ID.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM candidate_profiles WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetByUserID retrieves the candidate profile owned by a user.
func (r *Repo) GetByUserID(ctx context.Context, userID uuid.UUID) (Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM candidate_profiles WHERE user_id = $1`
	return r.getOne(ctx, query, userID)
}

func (r *Repo) getOne(ctx context.Context, query string, arg any) (Profile, error) {
	row := r.pool.QueryRow(ctx, query, arg)
	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, apperr.NotFound(candidateNotFoundMessage)
		}
		return Profile{}, fmt.Errorf("get candidate profile: %w", err)
	}
	return p, nil
}

// ListPool retrieves the full matching pool: every verified, active profile.
// Eligibility beyond these flags is applied in memory by the matching engine.
func (r *Repo) ListPool(ctx context.Context) ([]Profile, error) {
	query := `
		SELECT ` + profileColumns + `
		FROM candidate_profiles
		WHERE verified = true AND active = true
		ORDER BY id ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list candidate pool: %w", err)
	}
	defer rows.Close()

	return scanProfiles(rows)
}

// Create registers a new candidate profile. Profiles start unverified.
func (r *Repo) Create(ctx context.Context, params CreateParams) (Profile, error) {
	query := `
		INSERT INTO candidate_profiles (user_id, display_name, phone, regions, specializations)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + profileColumns

	row := r.pool.QueryRow(ctx, query,
		params.UserID, params.DisplayName, params.Phone, params.Regions, params.Specializations,
	)
	p, err := scanProfile(row)
	if err != nil {
		return Profile{}, fmt.Errorf("create candidate profile: %w", err)
	}
	return p, nil
}

// Update applies partial profile updates for the owning user.
func (r *Repo) Update(ctx context.Context, params UpdateParams) (Profile, error) {
	query := `
		UPDATE candidate_profiles SET
			display_name = COALESCE($2, display_name),
			phone = COALESCE($3, phone),
			active = COALESCE($4, active),
			regions = COALESCE($5, regions),
			specializations = COALESCE($6, specializations),
			updated_at = now()
		WHERE user_id = $1
		RETURNING ` + profileColumns

	row := r.pool.QueryRow(ctx, query,
		params.UserID, params.DisplayName, params.Phone, params.Active, params.Regions, params.Specializations,
	)
	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, apperr.NotFound(candidateNotFoundMessage)
		}
		return Profile{}, fmt.Errorf("update candidate profile: %w", err)
	}
	return p, nil
}

// SetVerified flips the verification flag (back-office action).
func (r *Repo) SetVerified(ctx context.Context, id uuid.UUID, verified bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE candidate_profiles SET verified = $2, updated_at = now() WHERE id = $1`,
		id, verified,
	)
	if err != nil {
		return fmt.Errorf("set candidate verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(candidateNotFoundMessage)
	}
	return nil
}

// CompletionUpdate describes the aggregate update applied when an engagement
// of the given type completes for a candidate.
type CompletionUpdate struct {
	CandidateID uuid.UUID
	RequestType string
	// ReviewScore, when present, folds into the rating as an incremental
	// mean inside the same atomic statement.
	ReviewScore *float64
}

// counterColumn maps a request type to the volume counter it increments.
func counterColumn(requestType string) string {
	switch requestType {
	case "valuation":
		return "total_valuations"
	case "booking":
		return "total_bookings"
	default:
		return "total_deals"
	}
}

// ApplyCompletion increments the candidate's counters and folds the review
// score into the rating in a single atomic UPDATE. It runs on the caller's
// transaction so a failed engagement transition never half-applies aggregate
// statistics. The incremental mean is computed in SQL against the persisted
// completed_count, so concurrent completions for the same candidate serialize
// on the row and each review is applied exactly once.
func ApplyCompletion(ctx context.Context, tx pgx.Tx, update CompletionUpdate) error {
	column := counterColumn(update.RequestType)

	var query string
	var args []any
	if update.ReviewScore != nil {
		query = fmt.Sprintf(`
			UPDATE candidate_profiles SET
				%s = %s + 1,
				rating = rating + ($2 - rating) / (completed_count + 1),
				completed_count = completed_count + 1,
				updated_at = now()
			WHERE id = $1`, column, column)
		args = []any{update.CandidateID, *update.ReviewScore}
	} else {
		query = fmt.Sprintf(`
			UPDATE candidate_profiles SET
				%s = %s + 1,
				completed_count = completed_count + 1,
				updated_at = now()
			WHERE id = $1`, column, column)
		args = []any{update.CandidateID}
	}

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("apply candidate completion: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(candidateNotFoundMessage)
	}
	return nil
}

func scanProfile(row pgx.Row) (Profile, error) {
	var p Profile
	err := row.Scan(
		&p.ID, &p.UserID, &p.DisplayName, &p.Phone, &p.Verified, &p.Active,
		&p.Regions, &p.Specializations,
		&p.Rating, &p.TotalDeals, &p.TotalValuations, &p.TotalBookings, &p.CompletedCount,
		&p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

func scanProfiles(rows pgx.Rows) ([]Profile, error) {
	var results []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan candidate profile: %w", err)
		}
		results = append(results, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidate profiles: %w", err)
	}
	return results, nil
}
