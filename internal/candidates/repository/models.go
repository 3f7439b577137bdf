package repository

import (
	"time"

	"github.com/google/uuid"
)

// Profile is a provider/agent profile eligible to fulfill requests.
// Counters and rating are mutated only through atomic SQL updates
// (ApplyCompletion); application code never read-modify-writes them.
type Profile struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	DisplayName     string
	Phone           string
	Verified        bool
	Active          bool
	Regions         []string
	Specializations []string
	Rating          float64
	TotalDeals      int64
	TotalValuations int64
	TotalBookings   int64
	CompletedCount  int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CreateParams holds the fields for registering a new candidate profile.
type CreateParams struct {
	UserID          uuid.UUID
	DisplayName     string
	Phone           string
	Regions         []string
	Specializations []string
}

// UpdateParams holds optional profile updates; nil fields are left unchanged.
type UpdateParams struct {
	UserID          uuid.UUID
	DisplayName     *string
	Phone           *string
	Active          *bool
	Regions         []string
	Specializations []string
}
