// Package transport defines the HTTP DTOs for the requests module.
package transport

import (
	"time"

	"github.com/google/uuid"

	engtransport "marketplace_backend/internal/engagement/transport"
	"marketplace_backend/internal/requests/repository"
	"marketplace_backend/internal/requests/service"
)

// CreateRequestRequest creates a request and triggers matching.
type CreateRequestRequest struct {
	Type                  string     `json:"type" validate:"required,oneof=property_submission valuation booking referral"`
	Category              string     `json:"category" validate:"omitempty,max=100"`
	Region                string     `json:"region" validate:"required,max=100"`
	BaseValue             *int64     `json:"baseValue" validate:"omitempty,gt=0"`
	Currency              string     `json:"currency" validate:"omitempty,len=3"`
	DesignatedCandidateID *uuid.UUID `json:"designatedCandidateId"`
	Description           *string    `json:"description" validate:"omitempty,max=4000"`
}

// RequestResponse is the request representation returned to clients.
type RequestResponse struct {
	ID                    uuid.UUID  `json:"id"`
	Type                  string     `json:"type"`
	Category              string     `json:"category,omitempty"`
	Region                string     `json:"region"`
	BaseValue             *int64     `json:"baseValue,omitempty"`
	Currency              string     `json:"currency"`
	Status                string     `json:"status"`
	DesignatedCandidateID *uuid.UUID `json:"designatedCandidateId,omitempty"`
	Description           *string    `json:"description,omitempty"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
}

// FromRequest maps a repository request to its response shape.
func FromRequest(r repository.Request) RequestResponse {
	return RequestResponse{
		ID:                    r.ID,
		Type:                  r.Type,
		Category:              r.Category,
		Region:                r.Region,
		BaseValue:             r.BaseValue,
		Currency:              r.Currency,
		Status:                r.Status,
		DesignatedCandidateID: r.DesignatedCandidateID,
		Description:           r.Description,
		CreatedAt:             r.CreatedAt,
		UpdatedAt:             r.UpdatedAt,
	}
}

// FromRequests maps a slice of requests.
func FromRequests(items []repository.Request) []RequestResponse {
	out := make([]RequestResponse, 0, len(items))
	for _, r := range items {
		out = append(out, FromRequest(r))
	}
	return out
}

// CreateResponse reports the created request and its matching outcome.
// Zero matched candidates is a successful creation, not an error.
type CreateResponse struct {
	Request    RequestResponse                  `json:"request"`
	Matches    []engtransport.EngagementResponse `json:"matches"`
	PoolSize   int                              `json:"poolSize"`
	Eligible   int                              `json:"eligible"`
	Dispatched int                              `json:"dispatched"`
}

// FromCreateResult maps a creation outcome.
func FromCreateResult(res service.CreateResult) CreateResponse {
	return CreateResponse{
		Request:    FromRequest(res.Request),
		Matches:    engtransport.FromEngagements(res.Matches),
		PoolSize:   res.PoolSize,
		Eligible:   res.Eligible,
		Dispatched: res.Dispatched,
	}
}

// DetailResponse is a request with its engagements.
type DetailResponse struct {
	Request     RequestResponse                  `json:"request"`
	Engagements []engtransport.EngagementResponse `json:"engagements"`
}

// FromDetail maps a request detail view.
func FromDetail(d service.Detail) DetailResponse {
	return DetailResponse{
		Request:     FromRequest(d.Request),
		Engagements: engtransport.FromEngagements(d.Engagements),
	}
}
