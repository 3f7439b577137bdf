// Package service creates requests and runs the synchronous matching
// pipeline: eligibility filter, deterministic ranking, bounded dispatch.
package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	candrepo "marketplace_backend/internal/candidates/repository"
	"marketplace_backend/internal/engagement/domain"
	engrepo "marketplace_backend/internal/engagement/repository"
	engsvc "marketplace_backend/internal/engagement/service"
	domainevents "marketplace_backend/internal/events"
	"marketplace_backend/internal/matching"
	"marketplace_backend/internal/requests/repository"
	"marketplace_backend/platform/apperr"
	"marketplace_backend/platform/config"
	"marketplace_backend/platform/events"
	"marketplace_backend/platform/logger"
)

// dispatchConcurrency bounds parallel candidate dispatches for one request.
const dispatchConcurrency = 8

// Repository is the request persistence surface the service needs.
type Repository interface {
	Create(ctx context.Context, params repository.CreateParams) (repository.Request, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Request, error)
	ListByRequester(ctx context.Context, requesterID uuid.UUID) ([]repository.Request, error)
	Close(ctx context.Context, id uuid.UUID) error
}

// CandidatePool supplies the matching pool.
type CandidatePool interface {
	ListPool(ctx context.Context) ([]candrepo.Profile, error)
	GetByID(ctx context.Context, id uuid.UUID) (candrepo.Profile, error)
}

// Engagements is the engagement surface the requests module drives.
type Engagements interface {
	CreateForMatches(ctx context.Context, params []engrepo.CreateParams) ([]engrepo.Engagement, error)
	Dispatch(ctx context.Context, e engrepo.Engagement) (engrepo.Engagement, error)
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]engrepo.Engagement, error)
}

// CreateInput carries the fields for a new request.
type CreateInput struct {
	Type                  string
	Category              string
	Region                string
	BaseValue             *int64
	Currency              string
	DesignatedCandidateID *uuid.UUID
	Description           *string
}

// CreateResult is the outcome of request creation. Zero matches is a valid,
// reportable outcome, not a failure.
type CreateResult struct {
	Request    repository.Request
	Matches    []engrepo.Engagement
	PoolSize   int
	Eligible   int
	Dispatched int
}

// Detail is a request with its engagements, scoped to the viewer.
type Detail struct {
	Request     repository.Request
	Engagements []engrepo.Engagement
}

// Service coordinates request creation and matching.
type Service struct {
	repo        Repository
	pool        CandidatePool
	engagements Engagements
	matchCfg    config.MatchingConfig
	bus         events.Bus
	log         *logger.Logger
}

// New creates a requests service.
func New(
	repo Repository,
	pool CandidatePool,
	engagements Engagements,
	matchCfg config.MatchingConfig,
	bus events.Bus,
	log *logger.Logger,
) *Service {
	return &Service{
		repo:        repo,
		pool:        pool,
		engagements: engagements,
		matchCfg:    matchCfg,
		bus:         bus,
		log:         log,
	}
}

var knownTypes = map[string]bool{
	"property_submission": true,
	"valuation":           true,
	"booking":             true,
	"referral":            true,
}

// Create persists the request, matches it against the candidate pool, and
// dispatches one engagement per ranked candidate. Matching runs
// synchronously at creation time; there is no background matcher.
func (s *Service) Create(ctx context.Context, requesterID uuid.UUID, input CreateInput) (CreateResult, error) {
	if !knownTypes[input.Type] {
		return CreateResult{}, apperr.Validation("unknown request type")
	}
	if strings.TrimSpace(input.Region) == "" {
		return CreateResult{}, apperr.Validation("region is required")
	}
	if input.BaseValue != nil && *input.BaseValue <= 0 {
		return CreateResult{}, apperr.Validation("base value must be positive")
	}
	if input.Type == "referral" && input.DesignatedCandidateID == nil {
		return CreateResult{}, apperr.Validation("referral requests require a designated candidate")
	}

	currency := input.Currency
	if currency == "" {
		currency = "EUR"
	}

	pool, err := s.candidatePool(ctx, input)
	if err != nil {
		return CreateResult{}, err
	}

	rules := matching.RuleSetFor(s.matchCfg, input.Type)
	view := matching.RequestView{Type: input.Type, Category: input.Category, Region: input.Region}
	eligible := matching.Filter(view, pool, rules)
	top := matching.Take(matching.Rank(eligible, input.Type), rules.TopN)

	req, err := s.repo.Create(ctx, repository.CreateParams{
		RequesterID:           requesterID,
		Type:                  input.Type,
		Category:              input.Category,
		Region:                input.Region,
		BaseValue:             input.BaseValue,
		Currency:              currency,
		DesignatedCandidateID: input.DesignatedCandidateID,
		Description:           input.Description,
	})
	if err != nil {
		return CreateResult{}, err
	}

	matches, dispatched := s.dispatch(ctx, req, top)

	s.log.MatchRun(req.ID.String(), req.Type, len(pool), len(eligible), dispatched)
	s.bus.Publish(ctx, domainevents.RequestCreated{
		BaseEvent:   events.NewBaseEvent(),
		RequestID:   req.ID,
		RequesterID: req.RequesterID,
		RequestType: req.Type,
		Region:      req.Region,
		PoolSize:    len(pool),
		Eligible:    len(eligible),
		Dispatched:  dispatched,
	})

	if dispatched > 0 {
		req.Status = repository.StatusMatched
	}
	return CreateResult{
		Request:    req,
		Matches:    matches,
		PoolSize:   len(pool),
		Eligible:   len(eligible),
		Dispatched: dispatched,
	}, nil
}

// candidatePool resolves the matching pool: the designated candidate for
// referrals, otherwise every verified active profile. The designated
// candidate still passes through the eligibility filter.
func (s *Service) candidatePool(ctx context.Context, input CreateInput) ([]candrepo.Profile, error) {
	if input.DesignatedCandidateID == nil {
		return s.pool.ListPool(ctx)
	}
	p, err := s.pool.GetByID(ctx, *input.DesignatedCandidateID)
	if err != nil {
		return nil, err
	}
	return []candrepo.Profile{p}, nil
}

// dispatch creates the engagements and moves each to PENDING concurrently.
// A single failed dispatch is logged and skipped; the remaining candidates
// are independent of it.
func (s *Service) dispatch(ctx context.Context, req repository.Request, top []candrepo.Profile) ([]engrepo.Engagement, int) {
	if len(top) == 0 {
		return nil, 0
	}

	params := make([]engrepo.CreateParams, 0, len(top))
	for _, p := range top {
		params = append(params, engrepo.CreateParams{
			RequestID:       req.ID,
			RequestType:     req.Type,
			RequesterID:     req.RequesterID,
			CandidateID:     p.ID,
			CandidateUserID: p.UserID,
			BaseValue:       req.BaseValue,
			Currency:        req.Currency,
		})
	}

	created, err := s.engagements.CreateForMatches(ctx, params)
	if err != nil {
		s.log.DatabaseError("create_engagements", err)
		return nil, 0
	}

	dispatched := make([]engrepo.Engagement, len(created))
	var g errgroup.Group
	g.SetLimit(dispatchConcurrency)
	for i, e := range created {
		g.Go(func() error {
			d, err := s.engagements.Dispatch(ctx, e)
			if err != nil {
				s.log.Warn("dispatch failed",
					"engagement_id", e.ID.String(),
					"request_id", req.ID.String(),
					"error", err.Error(),
				)
				dispatched[i] = e
				return nil
			}
			dispatched[i] = d
			return nil
		})
	}
	_ = g.Wait()

	count := 0
	for _, e := range dispatched {
		if e.State == domain.StatePending {
			count++
		}
	}
	return dispatched, count
}

// Get retrieves a request with its engagements. The requester sees every
// engagement; a matched candidate sees only their own.
func (s *Service) Get(ctx context.Context, id uuid.UUID, actor engsvc.Actor) (Detail, error) {
	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Detail{}, err
	}

	items, err := s.engagements.ListByRequest(ctx, id)
	if err != nil {
		return Detail{}, err
	}

	if req.RequesterID == actor.UserID || hasRole(actor, "admin") {
		return Detail{Request: req, Engagements: items}, nil
	}

	var mine []engrepo.Engagement
	for _, e := range items {
		if e.CandidateUserID == actor.UserID {
			mine = append(mine, e)
		}
	}
	if len(mine) == 0 {
		return Detail{}, apperr.Forbidden("not a party to this request")
	}
	return Detail{Request: req, Engagements: mine}, nil
}

// ListMine retrieves the caller's requests.
func (s *Service) ListMine(ctx context.Context, requesterID uuid.UUID) ([]repository.Request, error) {
	return s.repo.ListByRequester(ctx, requesterID)
}

// Close closes the caller's request without a winner.
func (s *Service) Close(ctx context.Context, id uuid.UUID, actor engsvc.Actor) error {
	req, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if req.RequesterID != actor.UserID && !hasRole(actor, "admin") {
		return apperr.Forbidden("only the requester can close a request")
	}
	return s.repo.Close(ctx, id)
}

func hasRole(actor engsvc.Actor, role string) bool {
	for _, r := range actor.Roles {
		if r == role {
			return true
		}
	}
	return false
}
