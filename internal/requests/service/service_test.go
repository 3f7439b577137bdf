package service

import (
	"context"
	"testing"

	"github.com/google/uuid"

	candrepo "marketplace_backend/internal/candidates/repository"
	"marketplace_backend/internal/engagement/domain"
	engrepo "marketplace_backend/internal/engagement/repository"
	engsvc "marketplace_backend/internal/engagement/service"
	"marketplace_backend/internal/requests/repository"
	"marketplace_backend/platform/apperr"
	"marketplace_backend/platform/config"
	"marketplace_backend/platform/events"
	"marketplace_backend/platform/logger"
)

type fakeRepo struct {
	requests map[uuid.UUID]repository.Request
	closed   []uuid.UUID
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{requests: make(map[uuid.UUID]repository.Request)}
}

func (f *fakeRepo) Create(ctx context.Context, params repository.CreateParams) (repository.Request, error) {
	req := repository.Request{
		ID:                    uuid.New(),
		RequesterID:           params.RequesterID,
		Type:                  params.Type,
		Category:              params.Category,
		Region:                params.Region,
		BaseValue:             params.BaseValue,
		Currency:              params.Currency,
		Status:                repository.StatusOpen,
		DesignatedCandidateID: params.DesignatedCandidateID,
		Description:           params.Description,
	}
	f.requests[req.ID] = req
	return req, nil
}

func (f *fakeRepo) GetByID(ctx context.Context, id uuid.UUID) (repository.Request, error) {
	req, ok := f.requests[id]
	if !ok {
		return repository.Request{}, apperr.NotFound("request not found")
	}
	return req, nil
}

func (f *fakeRepo) ListByRequester(ctx context.Context, requesterID uuid.UUID) ([]repository.Request, error) {
	var out []repository.Request
	for _, req := range f.requests {
		if req.RequesterID == requesterID {
			out = append(out, req)
		}
	}
	return out, nil
}

func (f *fakeRepo) Close(ctx context.Context, id uuid.UUID) error {
	f.closed = append(f.closed, id)
	return nil
}

type fakePool struct {
	profiles []candrepo.Profile
}

func (f *fakePool) ListPool(ctx context.Context) ([]candrepo.Profile, error) {
	return f.profiles, nil
}

func (f *fakePool) GetByID(ctx context.Context, id uuid.UUID) (candrepo.Profile, error) {
	for _, p := range f.profiles {
		if p.ID == id {
			return p, nil
		}
	}
	return candrepo.Profile{}, apperr.NotFound("candidate profile not found")
}

// fakeEngagements records created engagements and moves each dispatched one
// to PENDING. failDispatch simulates a partially failed fan-out.
type fakeEngagements struct {
	created      []engrepo.CreateParams
	failDispatch map[uuid.UUID]bool
	byRequest    map[uuid.UUID][]engrepo.Engagement
}

func newFakeEngagements() *fakeEngagements {
	return &fakeEngagements{
		failDispatch: make(map[uuid.UUID]bool),
		byRequest:    make(map[uuid.UUID][]engrepo.Engagement),
	}
}

func (f *fakeEngagements) CreateForMatches(ctx context.Context, params []engrepo.CreateParams) ([]engrepo.Engagement, error) {
	out := make([]engrepo.Engagement, 0, len(params))
	for _, p := range params {
		e := engrepo.Engagement{
			ID:              uuid.New(),
			RequestID:       p.RequestID,
			RequestType:     p.RequestType,
			RequesterID:     p.RequesterID,
			CandidateID:     p.CandidateID,
			CandidateUserID: p.CandidateUserID,
			BaseValue:       p.BaseValue,
			Currency:        p.Currency,
			State:           domain.StateCreated,
		}
		f.created = append(f.created, p)
		f.byRequest[p.RequestID] = append(f.byRequest[p.RequestID], e)
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeEngagements) Dispatch(ctx context.Context, e engrepo.Engagement) (engrepo.Engagement, error) {
	if f.failDispatch[e.CandidateID] {
		return engrepo.Engagement{}, apperr.Internal("dispatch failed")
	}
	e.State = domain.StatePending
	return e, nil
}

func (f *fakeEngagements) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]engrepo.Engagement, error) {
	return f.byRequest[requestID], nil
}

type matchConfig struct{}

func (matchConfig) GetMatchRule(requestType string) config.MatchRule {
	switch requestType {
	case "property_submission":
		return config.MatchRule{TopN: 2, RequireSpecialization: true}
	case "valuation":
		return config.MatchRule{TopN: 5, MinRating: 4.0, MinVolume: 5}
	case "referral":
		return config.MatchRule{TopN: 1, RequireSpecialization: true}
	default:
		return config.MatchRule{TopN: 5}
	}
}

func (matchConfig) GetRegionWildcard() string { return "nationwide" }

func profile(rating float64, region, specialization string) candrepo.Profile {
	return candrepo.Profile{
		ID:              uuid.New(),
		UserID:          uuid.New(),
		Verified:        true,
		Active:          true,
		Regions:         []string{region},
		Specializations: []string{specialization},
		Rating:          rating,
	}
}

func newService(pool *fakePool, eng *fakeEngagements) (*Service, *fakeRepo) {
	repo := newFakeRepo()
	log := logger.New("test")
	bus := events.NewInMemoryBus(log)
	return New(repo, pool, eng, matchConfig{}, bus, log), repo
}

func TestCreate_RejectsUnknownType(t *testing.T) {
	svc, _ := newService(&fakePool{}, newFakeEngagements())

	_, err := svc.Create(context.Background(), uuid.New(), CreateInput{Type: "auction", Region: "north"})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreate_ReferralRequiresDesignatedCandidate(t *testing.T) {
	svc, _ := newService(&fakePool{}, newFakeEngagements())

	_, err := svc.Create(context.Background(), uuid.New(), CreateInput{Type: "referral", Region: "north"})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreate_DispatchesTopRankedCandidates(t *testing.T) {
	low := profile(3.0, "north", "residential")
	mid := profile(4.0, "north", "residential")
	high := profile(4.8, "nationwide", "residential")
	wrongRegion := profile(5.0, "south", "residential")

	eng := newFakeEngagements()
	svc, _ := newService(&fakePool{profiles: []candrepo.Profile{low, mid, high, wrongRegion}}, eng)

	result, err := svc.Create(context.Background(), uuid.New(), CreateInput{
		Type:     "property_submission",
		Category: "residential",
		Region:   "north",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if result.PoolSize != 4 || result.Eligible != 3 {
		t.Fatalf("expected pool 4 eligible 3, got pool %d eligible %d", result.PoolSize, result.Eligible)
	}
	if result.Dispatched != 2 {
		t.Fatalf("expected 2 dispatched, got %d", result.Dispatched)
	}
	if len(eng.created) != 2 {
		t.Fatalf("expected 2 engagements created, got %d", len(eng.created))
	}
	if eng.created[0].CandidateID != high.ID || eng.created[1].CandidateID != mid.ID {
		t.Fatal("expected candidates ranked by rating descending")
	}
	if result.Request.Status != repository.StatusMatched {
		t.Fatalf("expected request status %s, got %s", repository.StatusMatched, result.Request.Status)
	}
}

func TestCreate_ZeroMatchesIsReportedNotFailed(t *testing.T) {
	svc, _ := newService(&fakePool{}, newFakeEngagements())

	result, err := svc.Create(context.Background(), uuid.New(), CreateInput{
		Type:     "property_submission",
		Category: "residential",
		Region:   "north",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if result.Dispatched != 0 || len(result.Matches) != 0 {
		t.Fatalf("expected zero matches, got %d dispatched", result.Dispatched)
	}
	if result.Request.Status != repository.StatusOpen {
		t.Fatalf("expected request to stay %s, got %s", repository.StatusOpen, result.Request.Status)
	}
}

func TestCreate_DesignatedCandidateStillFiltered(t *testing.T) {
	designated := profile(4.5, "north", "residential")
	designated.Verified = false

	eng := newFakeEngagements()
	svc, _ := newService(&fakePool{profiles: []candrepo.Profile{designated}}, eng)

	result, err := svc.Create(context.Background(), uuid.New(), CreateInput{
		Type:                  "referral",
		Category:              "residential",
		Region:                "north",
		DesignatedCandidateID: &designated.ID,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if result.Dispatched != 0 {
		t.Fatalf("unverified designated candidate must not be dispatched, got %d", result.Dispatched)
	}
}

func TestCreate_FailedDispatchSkipsCandidateOnly(t *testing.T) {
	a := profile(4.9, "north", "residential")
	b := profile(4.1, "north", "residential")

	eng := newFakeEngagements()
	eng.failDispatch[a.ID] = true
	svc, _ := newService(&fakePool{profiles: []candrepo.Profile{a, b}}, eng)

	result, err := svc.Create(context.Background(), uuid.New(), CreateInput{
		Type:     "property_submission",
		Category: "residential",
		Region:   "north",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if result.Dispatched != 1 {
		t.Fatalf("expected 1 dispatched after one failure, got %d", result.Dispatched)
	}
	if len(result.Matches) != 2 {
		t.Fatalf("expected both engagements reported, got %d", len(result.Matches))
	}
}

func TestGet_CandidateSeesOnlyOwnEngagement(t *testing.T) {
	winner := profile(4.9, "north", "residential")
	other := profile(4.2, "north", "residential")

	eng := newFakeEngagements()
	svc, _ := newService(&fakePool{profiles: []candrepo.Profile{winner, other}}, eng)

	requesterID := uuid.New()
	result, err := svc.Create(context.Background(), requesterID, CreateInput{
		Type:     "property_submission",
		Category: "residential",
		Region:   "north",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	detail, err := svc.Get(context.Background(), result.Request.ID, engsvc.Actor{UserID: requesterID})
	if err != nil {
		t.Fatalf("Get as requester: %v", err)
	}
	if len(detail.Engagements) != 2 {
		t.Fatalf("requester should see all engagements, got %d", len(detail.Engagements))
	}

	detail, err = svc.Get(context.Background(), result.Request.ID, engsvc.Actor{UserID: winner.UserID})
	if err != nil {
		t.Fatalf("Get as candidate: %v", err)
	}
	if len(detail.Engagements) != 1 || detail.Engagements[0].CandidateUserID != winner.UserID {
		t.Fatal("candidate should see only their own engagement")
	}

	if _, err := svc.Get(context.Background(), result.Request.ID, engsvc.Actor{UserID: uuid.New()}); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden for stranger, got %v", err)
	}
}

func TestClose_RequesterOnly(t *testing.T) {
	svc, repo := newService(&fakePool{}, newFakeEngagements())

	requesterID := uuid.New()
	result, err := svc.Create(context.Background(), requesterID, CreateInput{
		Type:   "booking",
		Region: "north",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := svc.Close(context.Background(), result.Request.ID, engsvc.Actor{UserID: uuid.New()}); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden for stranger, got %v", err)
	}
	if err := svc.Close(context.Background(), result.Request.ID, engsvc.Actor{UserID: requesterID}); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(repo.closed) != 1 {
		t.Fatalf("expected one close, got %d", len(repo.closed))
	}
}
