package service

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"marketplace_backend/internal/commission"
	"marketplace_backend/internal/engagement/domain"
	"marketplace_backend/internal/engagement/repository"
	"marketplace_backend/internal/fanout"
	"marketplace_backend/internal/payments"
	"marketplace_backend/platform/apperr"
	"marketplace_backend/platform/logger"
)

// fakeRepo holds a single engagement in memory. stateForGet can lag behind
// the persisted state to simulate the losing side of a concurrent race: the
// caller reads one state while the row has already moved on.
type fakeRepo struct {
	engagement  repository.Engagement
	stateForGet domain.State

	completedSibling bool

	transitions []repository.TransitionParams
	completions []repository.CompletionUpdate
}

func (f *fakeRepo) GetByID(ctx context.Context, id uuid.UUID) (repository.Engagement, error) {
	e := f.engagement
	if f.stateForGet != "" {
		e.State = f.stateForGet
	}
	return e, nil
}

func (f *fakeRepo) CreateBatch(ctx context.Context, params []repository.CreateParams) ([]repository.Engagement, error) {
	return nil, nil
}

func (f *fakeRepo) Transition(ctx context.Context, p repository.TransitionParams) (repository.Engagement, error) {
	if p.GuardSingleWinner && f.completedSibling {
		return repository.Engagement{}, apperr.InvalidTransition(string(p.From), string(p.Event))
	}
	if f.engagement.State != p.From {
		return repository.Engagement{}, apperr.Stale("engagement state changed")
	}

	f.transitions = append(f.transitions, p)
	if p.Completion != nil {
		f.completions = append(f.completions, *p.Completion)
	}

	f.engagement.State = p.To
	if p.Fields.StandardFee != nil {
		f.engagement.StandardFee = p.Fields.StandardFee
	}
	if p.Fields.EffectiveFee != nil {
		f.engagement.EffectiveFee = p.Fields.EffectiveFee
	}
	if p.Fields.IntroducerShare != nil {
		f.engagement.IntroducerShare = p.Fields.IntroducerShare
	}
	if p.Fields.FulfillerShare != nil {
		f.engagement.FulfillerShare = p.Fields.FulfillerShare
	}
	return f.engagement, nil
}

func (f *fakeRepo) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]repository.Engagement, error) {
	return []repository.Engagement{f.engagement}, nil
}

func (f *fakeRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]repository.Engagement, error) {
	return []repository.Engagement{f.engagement}, nil
}

func (f *fakeRepo) ListActivity(ctx context.Context, engagementID uuid.UUID) ([]repository.ActivityRecord, error) {
	return nil, nil
}

type fakeFanout struct {
	applied []fanout.Transition
}

func (f *fakeFanout) Apply(ctx context.Context, t fanout.Transition) {
	f.applied = append(f.applied, t)
}

// fakeProvider counts intent creations so tests can pin down exactly when
// the payment collaborator is reached.
type fakeProvider struct {
	calls    int
	intentID string
}

func (f *fakeProvider) CreateIntent(ctx context.Context, req payments.IntentRequest) (string, error) {
	f.calls++
	return f.intentID, nil
}

func testRates() commission.Rates {
	return commission.Rates{StandardRateBps: 500, IntroducerSplitBps: 2000, MaxOverrideMultiple: 3}
}

func newFixture(state domain.State, requestType string, baseValue *int64) (*fakeRepo, *fakeFanout, *Service, Actor, Actor) {
	repo := &fakeRepo{
		engagement: repository.Engagement{
			ID:              uuid.New(),
			RequestID:       uuid.New(),
			RequestType:     requestType,
			RequesterID:     uuid.New(),
			CandidateID:     uuid.New(),
			CandidateUserID: uuid.New(),
			State:           state,
			BaseValue:       baseValue,
			Currency:        "EUR",
		},
	}
	fan := &fakeFanout{}
	svc := New(repo, fan, payments.Disabled{}, testRates(), logger.New("development"))
	requester := Actor{UserID: repo.engagement.RequesterID}
	candidate := Actor{UserID: repo.engagement.CandidateUserID}
	return repo, fan, svc, requester, candidate
}

func ptr[T any](v T) *T { return &v }

func TestAccept_ComputesCommissionAndFansOut(t *testing.T) {
	repo, fan, svc, _, candidate := newFixture(domain.StatePending, "valuation", ptr(int64(20_000_000)))

	e, err := svc.Accept(context.Background(), repo.engagement.ID, candidate, nil)
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	if e.State != domain.StateAccepted {
		t.Fatalf("expected ACCEPTED, got %s", e.State)
	}
	if e.EffectiveFee == nil || *e.EffectiveFee != 1_000_000 {
		t.Fatalf("expected effective fee 1000000, got %v", e.EffectiveFee)
	}
	if *e.IntroducerShare+*e.FulfillerShare != *e.EffectiveFee {
		t.Fatal("commission shares must reconcile")
	}
	if len(fan.applied) != 1 {
		t.Fatalf("expected 1 fan-out, got %d", len(fan.applied))
	}
	if fan.applied[0].Event != domain.EventAccept {
		t.Fatalf("wrong fan-out event: %s", fan.applied[0].Event)
	}
}

func TestAccept_RejectsExcessiveOverride(t *testing.T) {
	repo, fan, svc, _, candidate := newFixture(domain.StatePending, "valuation", ptr(int64(20_000_000)))

	_, err := svc.Accept(context.Background(), repo.engagement.ID, candidate, ptr(int64(9_000_000)))
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(repo.transitions) != 0 || len(fan.applied) != 0 {
		t.Fatal("rejected override must apply no effects")
	}
}

func TestAccept_StaleRaceLoserGetsConflict(t *testing.T) {
	// The loser of a concurrent accept race read PENDING, but the row has
	// already moved to ACCEPTED by the time the guarded write runs.
	repo, fan, svc, _, candidate := newFixture(domain.StateAccepted, "valuation", nil)
	repo.stateForGet = domain.StatePending

	_, err := svc.Accept(context.Background(), repo.engagement.ID, candidate, nil)
	if !apperr.Is(err, apperr.KindStale) {
		t.Fatalf("expected stale-state conflict, got %v", err)
	}
	if len(fan.applied) != 0 {
		t.Fatal("stale transition must apply no effects")
	}
}

func TestAccept_TerminalStateMakesNoPaymentCall(t *testing.T) {
	// Accepting an engagement that already reached a terminal state must be
	// rejected before the payment provider is consulted: a failed transition
	// that leaves an intent behind would charge for nothing.
	repo, fan, svc, _, candidate := newFixture(domain.StateCompleted, "booking", ptr(int64(5_000_000)))
	provider := &fakeProvider{intentID: "pi_terminal"}
	svc = New(repo, fan, provider, testRates(), logger.New("development"))

	_, err := svc.Accept(context.Background(), repo.engagement.ID, candidate, nil)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if provider.calls != 0 {
		t.Fatalf("payment provider must not be called, got %d calls", provider.calls)
	}
	if len(repo.transitions) != 0 || len(fan.applied) != 0 {
		t.Fatal("rejected accept must apply no effects")
	}
}

func TestAccept_BookingObtainsPaymentIntent(t *testing.T) {
	repo, _, svc, _, candidate := newFixture(domain.StatePending, "booking", ptr(int64(5_000_000)))
	provider := &fakeProvider{intentID: "pi_123"}
	svc = New(repo, &fakeFanout{}, provider, testRates(), logger.New("development"))

	_, err := svc.Accept(context.Background(), repo.engagement.ID, candidate, nil)
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	if provider.calls != 1 {
		t.Fatalf("expected 1 intent creation, got %d", provider.calls)
	}
	got := repo.transitions[0].Fields.PaymentIntentID
	if got == nil || *got != "pi_123" {
		t.Fatalf("expected payment intent id persisted, got %v", got)
	}
}

func TestAccept_OverrideWithoutBaseValueIsEffectiveFee(t *testing.T) {
	// With no base value there is no standard fee; a positive override is the
	// effective fee and still splits between introducer and fulfiller.
	repo, _, svc, _, candidate := newFixture(domain.StatePending, "valuation", nil)

	e, err := svc.Accept(context.Background(), repo.engagement.ID, candidate, ptr(int64(1_000_000)))
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	if e.EffectiveFee == nil || *e.EffectiveFee != 1_000_000 {
		t.Fatalf("expected effective fee 1000000, got %v", e.EffectiveFee)
	}
	if e.IntroducerShare == nil || e.FulfillerShare == nil {
		t.Fatal("expected shares persisted")
	}
	if *e.IntroducerShare+*e.FulfillerShare != *e.EffectiveFee {
		t.Fatal("commission shares must reconcile")
	}
}

func TestComplete_IsIdempotent(t *testing.T) {
	repo, fan, svc, requester, _ := newFixture(domain.StateAccepted, "valuation", ptr(int64(20_000_000)))

	_, err := svc.Complete(context.Background(), repo.engagement.ID, requester, CompleteInput{ReviewScore: ptr(5.0)})
	if err != nil {
		t.Fatalf("first completion failed: %v", err)
	}
	if len(repo.completions) != 1 {
		t.Fatalf("expected 1 aggregate update, got %d", len(repo.completions))
	}

	// Replaying the completion must fail before any write: the engagement is
	// terminal, counters and rating must not double-apply.
	_, err = svc.Complete(context.Background(), repo.engagement.ID, requester, CompleteInput{ReviewScore: ptr(5.0)})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if len(repo.completions) != 1 {
		t.Fatalf("aggregate update must not replay, got %d", len(repo.completions))
	}
	if len(fan.applied) != 1 {
		t.Fatalf("fan-out must not replay, got %d", len(fan.applied))
	}
}

func TestComplete_FinalValueOverridesBase(t *testing.T) {
	repo, _, svc, requester, _ := newFixture(domain.StateAccepted, "property_submission", ptr(int64(20_000_000)))

	e, err := svc.Complete(context.Background(), repo.engagement.ID, requester, CompleteInput{
		FinalValue: ptr(int64(30_000_000)),
	})
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	// 300,000.00 at 5% -> 15,000.00.
	if e.EffectiveFee == nil || *e.EffectiveFee != 1_500_000 {
		t.Fatalf("expected finalized fee 1500000, got %v", e.EffectiveFee)
	}
	last := repo.transitions[len(repo.transitions)-1]
	if last.RequestStatus != repository.RequestStatusCompleted {
		t.Fatal("completion must close the request")
	}
	if !last.GuardSingleWinner {
		t.Fatal("completion must carry the single-winner guard")
	}
}

func TestComplete_SingleWinnerRejected(t *testing.T) {
	repo, fan, svc, requester, _ := newFixture(domain.StateAccepted, "referral", ptr(int64(10_000_000)))
	repo.completedSibling = true

	_, err := svc.Complete(context.Background(), repo.engagement.ID, requester, CompleteInput{})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if len(repo.completions) != 0 || len(fan.applied) != 0 {
		t.Fatal("second winner must apply no effects")
	}
}

func TestComplete_RequesterOnly(t *testing.T) {
	repo, _, svc, _, candidate := newFixture(domain.StateAccepted, "valuation", nil)

	_, err := svc.Complete(context.Background(), repo.engagement.ID, candidate, CompleteInput{})
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestWithdraw_CandidateOnly(t *testing.T) {
	repo, _, svc, requester, candidate := newFixture(domain.StatePending, "valuation", nil)

	if _, err := svc.Withdraw(context.Background(), repo.engagement.ID, requester, nil); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("requester must not withdraw, got %v", err)
	}
	e, err := svc.Withdraw(context.Background(), repo.engagement.ID, candidate, nil)
	if err != nil {
		t.Fatalf("candidate withdraw failed: %v", err)
	}
	if e.State != domain.StateWithdrawn {
		t.Fatalf("expected WITHDRAWN, got %s", e.State)
	}
}

func TestCancel_RequesterOnly(t *testing.T) {
	repo, _, svc, requester, candidate := newFixture(domain.StatePending, "booking", nil)

	if _, err := svc.Cancel(context.Background(), repo.engagement.ID, candidate, nil); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("candidate must not cancel, got %v", err)
	}
	e, err := svc.Cancel(context.Background(), repo.engagement.ID, requester, nil)
	if err != nil {
		t.Fatalf("requester cancel failed: %v", err)
	}
	if e.State != domain.StateCancelled {
		t.Fatalf("expected CANCELLED, got %s", e.State)
	}
}

func TestTransition_StrangerForbidden(t *testing.T) {
	repo, _, svc, _, _ := newFixture(domain.StatePending, "valuation", nil)

	stranger := Actor{UserID: uuid.New()}
	if _, err := svc.Accept(context.Background(), repo.engagement.ID, stranger, nil); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestDispatch_MarksRequestMatched(t *testing.T) {
	repo, fan, svc, _, _ := newFixture(domain.StateCreated, "property_submission", nil)

	e, err := svc.Dispatch(context.Background(), repo.engagement)
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if e.State != domain.StatePending {
		t.Fatalf("expected PENDING, got %s", e.State)
	}
	if repo.transitions[0].RequestStatus != repository.RequestStatusMatched {
		t.Fatal("dispatch must mark the request matched")
	}
	if len(fan.applied) != 1 || fan.applied[0].Event != domain.EventDispatch {
		t.Fatal("dispatch must fan out")
	}
}
