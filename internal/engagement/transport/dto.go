// Package transport defines the HTTP DTOs for the engagement module.
package transport

import (
	"time"

	"github.com/google/uuid"

	"marketplace_backend/internal/engagement/repository"
)

// UpdateTermsRequest revises the engagement terms.
type UpdateTermsRequest struct {
	Terms string `json:"terms" validate:"required,max=2000"`
}

// AcceptRequest optionally overrides the standard fee. Overrides are
// validated against the configured ceiling before being applied.
type AcceptRequest struct {
	OverrideFee *int64 `json:"overrideFee" validate:"omitempty,gt=0"`
}

// NoteRequest carries an optional free-text note for terminating events.
type NoteRequest struct {
	Note *string `json:"note" validate:"omitempty,max=2000"`
}

// CompleteRequest finalizes an engagement.
type CompleteRequest struct {
	FinalValue  *int64   `json:"finalValue" validate:"omitempty,gt=0"`
	ReviewScore *float64 `json:"reviewScore" validate:"omitempty,gte=0,lte=5"`
	Note        *string  `json:"note" validate:"omitempty,max=2000"`
}

// CommissionResponse is the computed split attached to an engagement.
type CommissionResponse struct {
	StandardFee     int64  `json:"standardFee"`
	OverrideFee     *int64 `json:"overrideFee,omitempty"`
	EffectiveFee    int64  `json:"effectiveFee"`
	IntroducerShare int64  `json:"introducerShare"`
	FulfillerShare  int64  `json:"fulfillerShare"`
}

// EngagementResponse is the engagement representation returned to clients.
type EngagementResponse struct {
	ID              uuid.UUID           `json:"id"`
	RequestID       uuid.UUID           `json:"requestId"`
	RequestType     string              `json:"requestType"`
	CandidateID     uuid.UUID           `json:"candidateId"`
	State           string              `json:"state"`
	Terms           *string             `json:"terms,omitempty"`
	BaseValue       *int64              `json:"baseValue,omitempty"`
	Currency        string              `json:"currency"`
	FinalValue      *int64              `json:"finalValue,omitempty"`
	Commission      *CommissionResponse `json:"commission,omitempty"`
	PaymentIntentID *string             `json:"paymentIntentId,omitempty"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

// FromEngagement maps a repository engagement to its response shape.
func FromEngagement(e repository.Engagement) EngagementResponse {
	resp := EngagementResponse{
		ID:              e.ID,
		RequestID:       e.RequestID,
		RequestType:     e.RequestType,
		CandidateID:     e.CandidateID,
		State:           string(e.State),
		Terms:           e.Terms,
		BaseValue:       e.BaseValue,
		Currency:        e.Currency,
		FinalValue:      e.FinalValue,
		PaymentIntentID: e.PaymentIntentID,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
	if e.EffectiveFee != nil && e.StandardFee != nil && e.IntroducerShare != nil && e.FulfillerShare != nil {
		resp.Commission = &CommissionResponse{
			StandardFee:     *e.StandardFee,
			OverrideFee:     e.OverrideFee,
			EffectiveFee:    *e.EffectiveFee,
			IntroducerShare: *e.IntroducerShare,
			FulfillerShare:  *e.FulfillerShare,
		}
	}
	return resp
}

// FromEngagements maps a slice of engagements.
func FromEngagements(items []repository.Engagement) []EngagementResponse {
	out := make([]EngagementResponse, 0, len(items))
	for _, e := range items {
		out = append(out, FromEngagement(e))
	}
	return out
}

// ActivityResponse is one audit record.
type ActivityResponse struct {
	ID        string    `json:"id"`
	Event     string    `json:"event"`
	FromState string    `json:"fromState,omitempty"`
	ToState   string    `json:"toState"`
	ActorID   uuid.UUID `json:"actorId"`
	ActorRole string    `json:"actorRole"`
	Note      *string   `json:"note,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// FromActivity maps audit records to their response shape.
func FromActivity(items []repository.ActivityRecord) []ActivityResponse {
	out := make([]ActivityResponse, 0, len(items))
	for _, a := range items {
		out = append(out, ActivityResponse{
			ID:        a.ID,
			Event:     a.Event,
			FromState: a.FromState,
			ToState:   a.ToState,
			ActorID:   a.ActorID,
			ActorRole: a.ActorRole,
			Note:      a.Note,
			CreatedAt: a.CreatedAt,
		})
	}
	return out
}
