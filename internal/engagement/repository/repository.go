package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	candrepo "marketplace_backend/internal/candidates/repository"
	"marketplace_backend/internal/engagement/domain"
	"marketplace_backend/platform/apperr"
)

const engagementNotFoundMessage = "engagement not found"

const engagementColumns = `
	id, request_id, request_type, requester_id, candidate_id, candidate_user_id,
	state, terms, base_value, currency,
	standard_fee, override_fee, effective_fee, introducer_share, fulfiller_share,
	final_value, review_score, payment_intent_id,
	created_at, updated_at`

// Repo implements engagement persistence with PostgreSQL. All state
// transitions run in a single transaction together with their audit record
// and any authoritative aggregate updates.
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a new engagement repository.
func New(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// GetByID retrieves an engagement by its ID.
func (r *Repo) GetByID(ctx context.Context, id uuid.UUID) (Engagement, error) {
	query := `SELECT ` + engagementColumns + ` FROM engagements WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, id)
	e, err := scanEngagement(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Engagement{}, apperr.NotFound(engagementNotFoundMessage)
		}
		return Engagement{}, fmt.Errorf("get engagement: %w", err)
	}
	return e, nil
}

// ListByRequest retrieves all engagements attached to a request.
func (r *Repo) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]Engagement, error) {
	query := `SELECT ` + engagementColumns + ` FROM engagements WHERE request_id = $1 ORDER BY created_at ASC, id ASC`
	return r.list(ctx, query, requestID)
}

// ListForUser retrieves engagements where the user is either the candidate
// or the requester, newest first.
func (r *Repo) ListForUser(ctx context.Context, userID uuid.UUID) ([]Engagement, error) {
	query := `
		SELECT ` + engagementColumns + `
		FROM engagements
		WHERE candidate_user_id = $1 OR requester_id = $1
		ORDER BY created_at DESC, id ASC`
	return r.list(ctx, query, userID)
}

func (r *Repo) list(ctx context.Context, query string, arg any) ([]Engagement, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list engagements: %w", err)
	}
	defer rows.Close()

	var results []Engagement
	for rows.Next() {
		e, err := scanEngagement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan engagement: %w", err)
		}
		results = append(results, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate engagements: %w", err)
	}
	return results, nil
}

// CreateBatch inserts one engagement per matched candidate, all in the
// initial state, with a creation audit record each. Runs in one transaction
// so a request never ends up with a partially created fan-out.
func (r *Repo) CreateBatch(ctx context.Context, params []CreateParams) ([]Engagement, error) {
	if len(params) == 0 {
		return nil, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin create engagements: %w", err)
	}
	defer tx.Rollback(ctx)

	insert := `
		INSERT INTO engagements (
			request_id, request_type, requester_id, candidate_id, candidate_user_id,
			base_value, currency, terms, state
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + engagementColumns

	created := make([]Engagement, 0, len(params))
	for _, p := range params {
		row := tx.QueryRow(ctx, insert,
			p.RequestID, p.RequestType, p.RequesterID, p.CandidateID, p.CandidateUserID,
			p.BaseValue, p.Currency, p.Terms, domain.StateCreated,
		)
		e, err := scanEngagement(row)
		if err != nil {
			return nil, fmt.Errorf("create engagement: %w", err)
		}
		if err := insertActivity(ctx, tx, activityInsert{
			EngagementID: e.ID,
			RequestID:    e.RequestID,
			Event:        "create",
			FromState:    "",
			ToState:      string(domain.StateCreated),
			ActorID:      p.RequesterID,
			ActorRole:    "requester",
		}); err != nil {
			return nil, err
		}
		created = append(created, e)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit create engagements: %w", err)
	}
	return created, nil
}

// Transition applies one guarded state transition atomically: the state and
// field updates, the audit record, any candidate aggregate update, and any
// request status change commit together or not at all. The persisted state
// must still equal p.From; otherwise the write affects zero rows and the
// caller receives a stale-state conflict with no effects applied.
func (r *Repo) Transition(ctx context.Context, p TransitionParams) (Engagement, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Engagement{}, fmt.Errorf("begin transition: %w", err)
	}
	defer tx.Rollback(ctx)

	if p.GuardSingleWinner {
		if err := guardSingleWinner(ctx, tx, p.ID); err != nil {
			return Engagement{}, err
		}
	}

	update := `
		UPDATE engagements SET
			state = $3,
			terms = COALESCE($4, terms),
			standard_fee = COALESCE($5, standard_fee),
			override_fee = COALESCE($6, override_fee),
			effective_fee = COALESCE($7, effective_fee),
			introducer_share = COALESCE($8, introducer_share),
			fulfiller_share = COALESCE($9, fulfiller_share),
			final_value = COALESCE($10, final_value),
			review_score = COALESCE($11, review_score),
			payment_intent_id = COALESCE($12, payment_intent_id),
			updated_at = now()
		WHERE id = $1 AND state = $2
		RETURNING ` + engagementColumns

	row := tx.QueryRow(ctx, update,
		p.ID, p.From, p.To,
		p.Fields.Terms,
		p.Fields.StandardFee, p.Fields.OverrideFee, p.Fields.EffectiveFee,
		p.Fields.IntroducerShare, p.Fields.FulfillerShare,
		p.Fields.FinalValue, p.Fields.ReviewScore, p.Fields.PaymentIntentID,
	)
	e, err := scanEngagement(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Engagement{}, r.staleOrMissing(ctx, p.ID, p.From)
		}
		return Engagement{}, fmt.Errorf("transition engagement: %w", err)
	}

	if err := insertActivity(ctx, tx, activityInsert{
		EngagementID: e.ID,
		RequestID:    e.RequestID,
		Event:        string(p.Event),
		FromState:    string(p.From),
		ToState:      string(p.To),
		ActorID:      p.ActorID,
		ActorRole:    p.ActorRole,
		Note:         p.Note,
	}); err != nil {
		return Engagement{}, err
	}

	if p.Completion != nil {
		err := candrepo.ApplyCompletion(ctx, tx, candrepo.CompletionUpdate{
			CandidateID: p.Completion.CandidateID,
			RequestType: p.Completion.RequestType,
			ReviewScore: p.Completion.ReviewScore,
		})
		if err != nil {
			return Engagement{}, err
		}
	}

	if p.RequestStatus != "" {
		_, err := tx.Exec(ctx,
			`UPDATE requests SET status = $2, updated_at = now() WHERE id = $1`,
			e.RequestID, p.RequestStatus,
		)
		if err != nil {
			return Engagement{}, fmt.Errorf("update request status: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Engagement{}, fmt.Errorf("commit transition: %w", err)
	}
	return e, nil
}

// guardSingleWinner rejects completion when another engagement for the same
// request has already completed. The parent request row is locked first:
// locking only completed siblings is not enough, because two concurrent
// completions of different ACCEPTED engagements would each see zero completed
// rows in their snapshot and both commit. The request row always exists, so
// both transactions contend on it and the second re-reads after the first
// commits.
func guardSingleWinner(ctx context.Context, tx pgx.Tx, engagementID uuid.UUID) error {
	var requestID uuid.UUID
	err := tx.QueryRow(ctx, `
		SELECT id FROM requests
		WHERE id = (SELECT request_id FROM engagements WHERE id = $1)
		FOR UPDATE`,
		engagementID,
	).Scan(&requestID)
	if err != nil {
		return fmt.Errorf("lock request for completion: %w", err)
	}

	var siblingID uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT id FROM engagements
		WHERE request_id = $1 AND id <> $2 AND state = $3
		LIMIT 1`,
		requestID, engagementID, domain.StateCompleted,
	).Scan(&siblingID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("check completed siblings: %w", err)
	}
	return apperr.InvalidTransition(string(domain.StateAccepted), string(domain.EventComplete)).
		WithDetails("another engagement for this request is already completed")
}

// staleOrMissing distinguishes a vanished engagement from a concurrent
// transition that won the race.
func (r *Repo) staleOrMissing(ctx context.Context, id uuid.UUID, expected domain.State) error {
	var current string
	err := r.pool.QueryRow(ctx, `SELECT state FROM engagements WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(engagementNotFoundMessage)
	}
	if err != nil {
		return fmt.Errorf("read engagement state: %w", err)
	}
	return apperr.Stale(fmt.Sprintf("engagement state changed: expected %s, now %s", expected, current))
}

type activityInsert struct {
	EngagementID uuid.UUID
	RequestID    uuid.UUID
	Event        string
	FromState    string
	ToState      string
	ActorID      uuid.UUID
	ActorRole    string
	Note         *string
}

func insertActivity(ctx context.Context, tx pgx.Tx, a activityInsert) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO activity_log (id, engagement_id, request_id, event, from_state, to_state, actor_id, actor_role, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		ulid.Make().String(),
		a.EngagementID, a.RequestID, a.Event, a.FromState, a.ToState, a.ActorID, a.ActorRole, a.Note,
	)
	if err != nil {
		return fmt.Errorf("insert activity record: %w", err)
	}
	return nil
}

// ListActivity retrieves the append-only audit trail for an engagement in
// chronological order (ULIDs sort by creation time).
func (r *Repo) ListActivity(ctx context.Context, engagementID uuid.UUID) ([]ActivityRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, engagement_id, request_id, event, from_state, to_state, actor_id, actor_role, note, created_at
		FROM activity_log
		WHERE engagement_id = $1
		ORDER BY id ASC`,
		engagementID,
	)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	var results []ActivityRecord
	for rows.Next() {
		var a ActivityRecord
		err := rows.Scan(
			&a.ID, &a.EngagementID, &a.RequestID, &a.Event, &a.FromState, &a.ToState,
			&a.ActorID, &a.ActorRole, &a.Note, &a.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan activity record: %w", err)
		}
		results = append(results, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity records: %w", err)
	}
	return results, nil
}

func scanEngagement(row pgx.Row) (Engagement, error) {
	var e Engagement
	err := row.Scan(
		&e.ID, &e.RequestID, &e.RequestType, &e.RequesterID, &e.CandidateID, &e.CandidateUserID,
		&e.State, &e.Terms, &e.BaseValue, &e.Currency,
		&e.StandardFee, &e.OverrideFee, &e.EffectiveFee, &e.IntroducerShare, &e.FulfillerShare,
		&e.FinalValue, &e.ReviewScore, &e.PaymentIntentID,
		&e.CreatedAt, &e.UpdatedAt,
	)
	return e, err
}
