package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"marketplace_backend/internal/candidates/repository"
	"marketplace_backend/internal/candidates/transport"
	"marketplace_backend/platform/logger"
	"marketplace_backend/platform/phone"
)

// Service provides business logic for candidate profiles.
type Service struct {
	repo *repository.Repo
	log  *logger.Logger
}

// New creates a new candidate profile service.
func New(repo *repository.Repo, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// GetByID retrieves a candidate profile by ID.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (transport.ProfileResponse, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return transport.ProfileResponse{}, err
	}
	return toResponse(p), nil
}

// GetMine retrieves the calling user's candidate profile.
func (s *Service) GetMine(ctx context.Context, userID uuid.UUID) (transport.ProfileResponse, error) {
	p, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return transport.ProfileResponse{}, err
	}
	return toResponse(p), nil
}

// Register creates a candidate profile for the calling user.
// New profiles start unverified and are excluded from matching until a
// back-office verification flips the flag.
func (s *Service) Register(ctx context.Context, userID uuid.UUID, req transport.RegisterProfileRequest) (transport.ProfileResponse, error) {
	p, err := s.repo.Create(ctx, repository.CreateParams{
		UserID:          userID,
		DisplayName:     req.DisplayName,
		Phone:           phone.NormalizeE164(req.Phone),
		Regions:         req.Regions,
		Specializations: req.Specializations,
	})
	if err != nil {
		return transport.ProfileResponse{}, err
	}

	s.log.Info("candidate profile registered", "id", p.ID, "userId", userID)
	return toResponse(p), nil
}

// UpdateMine applies partial updates to the calling user's profile.
func (s *Service) UpdateMine(ctx context.Context, userID uuid.UUID, req transport.UpdateProfileRequest) (transport.ProfileResponse, error) {
	params := repository.UpdateParams{
		UserID:          userID,
		DisplayName:     req.DisplayName,
		Active:          req.Active,
		Regions:         req.Regions,
		Specializations: req.Specializations,
	}
	if req.Phone != nil {
		normalized := phone.NormalizeE164(*req.Phone)
		params.Phone = &normalized
	}

	p, err := s.repo.Update(ctx, params)
	if err != nil {
		return transport.ProfileResponse{}, err
	}

	s.log.Info("candidate profile updated", "id", p.ID, "userId", userID)
	return toResponse(p), nil
}

// SetVerified flips verification for a profile (admin only).
func (s *Service) SetVerified(ctx context.Context, id uuid.UUID, verified bool) error {
	if err := s.repo.SetVerified(ctx, id, verified); err != nil {
		return err
	}
	s.log.Info("candidate verification changed", "id", id, "verified", verified)
	return nil
}

// Pool returns the raw matching pool for the matching engine.
func (s *Service) Pool(ctx context.Context) ([]repository.Profile, error) {
	return s.repo.ListPool(ctx)
}

func toResponse(p repository.Profile) transport.ProfileResponse {
	return transport.ProfileResponse{
		ID:              p.ID,
		UserID:          p.UserID,
		DisplayName:     p.DisplayName,
		Phone:           p.Phone,
		Verified:        p.Verified,
		Active:          p.Active,
		Regions:         p.Regions,
		Specializations: p.Specializations,
		Rating:          p.Rating,
		TotalDeals:      p.TotalDeals,
		TotalValuations: p.TotalValuations,
		TotalBookings:   p.TotalBookings,
		CompletedCount:  p.CompletedCount,
		CreatedAt:       p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       p.UpdatedAt.Format(time.RFC3339),
	}
}
