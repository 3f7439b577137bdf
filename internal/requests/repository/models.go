package repository

import (
	"time"

	"github.com/google/uuid"
)

// Request statuses. A request opens at creation, is marked matched once at
// least one engagement dispatches, completes when its winning engagement
// completes, and may be closed administratively.
const (
	StatusOpen      = "OPEN"
	StatusMatched   = "MATCHED"
	StatusCompleted = "COMPLETED"
	StatusClosed    = "CLOSED"
)

// Request is the originating ask for a match: a property submission, a
// valuation request, a booking, or a referral. Money is integer cents.
type Request struct {
	ID                    uuid.UUID
	RequesterID           uuid.UUID
	Type                  string
	Category              string
	Region                string
	BaseValue             *int64
	Currency              string
	Status                string
	DesignatedCandidateID *uuid.UUID
	Description           *string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// CreateParams holds the fields for a new request.
type CreateParams struct {
	RequesterID           uuid.UUID
	Type                  string
	Category              string
	Region                string
	BaseValue             *int64
	Currency              string
	DesignatedCandidateID *uuid.UUID
	Description           *string
}
