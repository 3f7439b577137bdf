package repository

import (
	"time"

	"github.com/google/uuid"

	"marketplace_backend/internal/engagement/domain"
)

// Engagement links a request to a candidate as it progresses toward
// completion or termination. Monetary figures are integer cents; commission
// fields are nil until computed at acceptance and finalized at completion.
type Engagement struct {
	ID              uuid.UUID
	RequestID       uuid.UUID
	RequestType     string
	RequesterID     uuid.UUID
	CandidateID     uuid.UUID
	CandidateUserID uuid.UUID
	State           domain.State
	Terms           *string
	BaseValue       *int64
	Currency        string
	StandardFee     *int64
	OverrideFee     *int64
	EffectiveFee    *int64
	IntroducerShare *int64
	FulfillerShare  *int64
	FinalValue      *int64
	ReviewScore     *float64
	PaymentIntentID *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CreateParams holds the fields for one engagement produced by matching.
type CreateParams struct {
	RequestID       uuid.UUID
	RequestType     string
	RequesterID     uuid.UUID
	CandidateID     uuid.UUID
	CandidateUserID uuid.UUID
	BaseValue       *int64
	Currency        string
	Terms           *string
}

// UpdateFields carries the column updates applied together with a state
// transition. Nil fields are left unchanged.
type UpdateFields struct {
	Terms           *string
	OverrideFee     *int64
	StandardFee     *int64
	EffectiveFee    *int64
	IntroducerShare *int64
	FulfillerShare  *int64
	FinalValue      *int64
	ReviewScore     *float64
	PaymentIntentID *string
}

// RequestStatus values a transition may set on the owning request.
const (
	RequestStatusMatched   = "MATCHED"
	RequestStatusCompleted = "COMPLETED"
)

// TransitionParams describes one guarded state transition. The persisted
// state must equal From when the update runs; a mismatch is reported as a
// stale-state conflict without any side effects.
type TransitionParams struct {
	ID        uuid.UUID
	From      domain.State
	To        domain.State
	Event     domain.Event
	ActorID   uuid.UUID
	ActorRole string
	Note      *string
	Fields    UpdateFields
	// Completion, when set, applies the candidate's counter and rating
	// update inside the same transaction as the state write.
	Completion *CompletionUpdate
	// RequestStatus, when non-empty, updates the owning request's status
	// inside the same transaction.
	RequestStatus string
	// GuardSingleWinner rejects the transition when another engagement for
	// the same request has already completed.
	GuardSingleWinner bool
}

// CompletionUpdate mirrors the candidate aggregate update applied on
// completion; see the candidates repository for the atomic SQL.
type CompletionUpdate struct {
	CandidateID uuid.UUID
	RequestType string
	ReviewScore *float64
}

// ActivityRecord is an immutable audit log entry written on every engagement
// transition. IDs are ULIDs so records sort lexicographically by time.
type ActivityRecord struct {
	ID           string
	EngagementID uuid.UUID
	RequestID    uuid.UUID
	Event        string
	FromState    string
	ToState      string
	ActorID      uuid.UUID
	ActorRole    string
	Note         *string
	CreatedAt    time.Time
}
