// Package service maps engagement lifecycle changes onto the CRM lead
// status vocabulary (NEW, QUALIFIED, WON, LOST).
package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"marketplace_backend/internal/crm/repository"
	"marketplace_backend/platform/logger"
)

// Lead status vocabulary. Engagement states map onto these four values.
const (
	StatusNew       = "NEW"
	StatusQualified = "QUALIFIED"
	StatusWon       = "WON"
	StatusLost      = "LOST"
)

// UpsertInput carries everything needed to create or move a lead.
type UpsertInput struct {
	EngagementID uuid.UUID
	OwnerUserID  uuid.UUID
	Title        string
	Status       string
	ValueCents   *int64
	Metadata     map[string]any
}

// Service provides CRM lead operations for the fan-out coordinator.
type Service struct {
	repo *repository.Repo
	log  *logger.Logger
}

// New creates a new CRM lead service.
func New(repo *repository.Repo, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Upsert creates or updates the lead mirroring an engagement.
func (s *Service) Upsert(ctx context.Context, input UpsertInput) error {
	if input.Status != StatusNew && input.Status != StatusQualified &&
		input.Status != StatusWon && input.Status != StatusLost {
		return fmt.Errorf("unknown crm lead status %q", input.Status)
	}

	var metadata []byte
	if input.Metadata != nil {
		encoded, err := json.Marshal(input.Metadata)
		if err != nil {
			return fmt.Errorf("encode crm lead metadata: %w", err)
		}
		metadata = encoded
	}

	_, err := s.repo.Upsert(ctx, repository.UpsertParams{
		EngagementID: input.EngagementID,
		OwnerUserID:  input.OwnerUserID,
		Title:        input.Title,
		Status:       input.Status,
		ValueCents:   input.ValueCents,
		Metadata:     metadata,
	})
	if err != nil {
		s.log.DatabaseError("crm_lead_upsert", err)
		return err
	}
	return nil
}

// ListMine retrieves the caller's leads.
func (s *Service) ListMine(ctx context.Context, ownerUserID uuid.UUID) ([]repository.Lead, error) {
	return s.repo.ListByOwner(ctx, ownerUserID)
}
