// Package service orchestrates engagement transitions: it validates the
// actor, consults the state machine, performs the guarded authoritative
// write, and hands the committed transition to the fan-out coordinator.
package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"marketplace_backend/internal/commission"
	"marketplace_backend/internal/engagement/domain"
	"marketplace_backend/internal/engagement/repository"
	"marketplace_backend/internal/fanout"
	"marketplace_backend/internal/payments"
	"marketplace_backend/platform/apperr"
	"marketplace_backend/platform/logger"
)

// Repository is the persistence surface the service needs.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (repository.Engagement, error)
	CreateBatch(ctx context.Context, params []repository.CreateParams) ([]repository.Engagement, error)
	Transition(ctx context.Context, p repository.TransitionParams) (repository.Engagement, error)
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]repository.Engagement, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]repository.Engagement, error)
	ListActivity(ctx context.Context, engagementID uuid.UUID) ([]repository.ActivityRecord, error)
}

// Fanout applies downstream effects after the authoritative write commits.
type Fanout interface {
	Apply(ctx context.Context, t fanout.Transition)
}

// Actor is the authenticated party performing a transition.
type Actor struct {
	UserID uuid.UUID
	Roles  []string
}

func (a Actor) isAdmin() bool {
	for _, r := range a.Roles {
		if r == "admin" {
			return true
		}
	}
	return false
}

// Service coordinates engagement lifecycle operations.
type Service struct {
	repo     Repository
	fan      Fanout
	payments payments.Provider
	rates    commission.Rates
	log      *logger.Logger
}

// New creates an engagement service.
func New(repo Repository, fan Fanout, provider payments.Provider, rates commission.Rates, log *logger.Logger) *Service {
	return &Service{repo: repo, fan: fan, payments: provider, rates: rates, log: log}
}

// CreateForMatches persists one engagement per matched candidate, in the
// initial state. Dispatch happens separately per engagement.
func (s *Service) CreateForMatches(ctx context.Context, params []repository.CreateParams) ([]repository.Engagement, error) {
	return s.repo.CreateBatch(ctx, params)
}

// Dispatch moves a freshly created engagement to PENDING and notifies the
// candidate. Called by the requests module during matching fan-out.
func (s *Service) Dispatch(ctx context.Context, e repository.Engagement) (repository.Engagement, error) {
	return s.transition(ctx, e, domain.EventDispatch, Actor{UserID: e.RequesterID}, "requester", repository.TransitionParams{
		RequestStatus: repository.RequestStatusMatched,
	})
}

// Get retrieves an engagement visible to the actor.
func (s *Service) Get(ctx context.Context, id uuid.UUID, actor Actor) (repository.Engagement, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return repository.Engagement{}, err
	}
	if _, err := s.roleOf(e, actor); err != nil {
		return repository.Engagement{}, err
	}
	return e, nil
}

// ListMine retrieves the actor's engagements on either side.
func (s *Service) ListMine(ctx context.Context, actor Actor) ([]repository.Engagement, error) {
	return s.repo.ListForUser(ctx, actor.UserID)
}

// Activity retrieves the audit trail of an engagement visible to the actor.
func (s *Service) Activity(ctx context.Context, id uuid.UUID, actor Actor) ([]repository.ActivityRecord, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.roleOf(e, actor); err != nil {
		return nil, err
	}
	return s.repo.ListActivity(ctx, id)
}

// UpdateTerms revises the engagement terms while PENDING and re-notifies
// the counterpart.
func (s *Service) UpdateTerms(ctx context.Context, id uuid.UUID, actor Actor, terms string) (repository.Engagement, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return repository.Engagement{}, err
	}
	role, err := s.roleOf(e, actor)
	if err != nil {
		return repository.Engagement{}, err
	}

	trimmed := strings.TrimSpace(terms)
	if trimmed == "" {
		return repository.Engagement{}, apperr.Validation("terms must not be empty")
	}

	return s.transition(ctx, e, domain.EventUpdateTerms, actor, role, repository.TransitionParams{
		Fields: repository.UpdateFields{Terms: &trimmed},
	})
}

// Accept moves a PENDING engagement to ACCEPTED. When the base value is
// known the commission split is computed now; a caller-supplied fee override
// is validated, never trusted verbatim. Booking engagements additionally
// obtain a payment intent before the state commits.
func (s *Service) Accept(ctx context.Context, id uuid.UUID, actor Actor, overrideFee *int64) (repository.Engagement, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return repository.Engagement{}, err
	}
	role, err := s.roleOf(e, actor)
	if err != nil {
		return repository.Engagement{}, err
	}
	// Gate on the state machine before touching the payment provider: an
	// accept rejected here must leave no intent behind.
	if _, err := domain.Next(e.State, domain.EventAccept); err != nil {
		return repository.Engagement{}, err
	}

	var fields repository.UpdateFields
	if e.BaseValue != nil {
		b, err := commission.Compute(*e.BaseValue, overrideFee, s.rates)
		if err != nil {
			return repository.Engagement{}, err
		}
		fields = breakdownFields(b)
	} else if overrideFee != nil {
		if *overrideFee <= 0 {
			return repository.Engagement{}, apperr.Validation("fee override must be positive")
		}
		// No base value means no standard fee to anchor on: the validated
		// override is the effective fee and splits like any other.
		introducer, fulfiller := commission.Split(*overrideFee, s.rates.IntroducerSplitBps)
		fields.OverrideFee = overrideFee
		fields.EffectiveFee = overrideFee
		fields.IntroducerShare = &introducer
		fields.FulfillerShare = &fulfiller
	}

	var intentID string
	if e.RequestType == "booking" && e.BaseValue != nil {
		created, err := s.payments.CreateIntent(ctx, payments.IntentRequest{
			EngagementID: e.ID,
			AmountCents:  *e.BaseValue,
			Currency:     e.Currency,
			Metadata:     map[string]string{"requestId": e.RequestID.String()},
		})
		if err != nil {
			return repository.Engagement{}, apperr.Wrap(apperr.KindInternal, "payment intent creation failed", err)
		}
		if created != "" {
			intentID = created
			fields.PaymentIntentID = &intentID
		}
	}

	updated, err := s.transition(ctx, e, domain.EventAccept, actor, role, repository.TransitionParams{
		Fields: fields,
	})
	if err != nil {
		// The guarded write lost a race after the intent was already created.
		// Surface the orphan so it can be voided out of band.
		if intentID != "" {
			s.log.Warn("payment intent orphaned by failed accept",
				"engagement_id", e.ID.String(),
				"payment_intent_id", intentID,
				"error", err.Error(),
			)
		}
		return repository.Engagement{}, err
	}
	return updated, nil
}

// Reject terminates a PENDING or ACCEPTED engagement.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, actor Actor, note *string) (repository.Engagement, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return repository.Engagement{}, err
	}
	role, err := s.roleOf(e, actor)
	if err != nil {
		return repository.Engagement{}, err
	}
	return s.transition(ctx, e, domain.EventReject, actor, role, repository.TransitionParams{Note: note})
}

// Withdraw is the candidate-initiated retraction.
func (s *Service) Withdraw(ctx context.Context, id uuid.UUID, actor Actor, note *string) (repository.Engagement, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return repository.Engagement{}, err
	}
	role, err := s.roleOf(e, actor)
	if err != nil {
		return repository.Engagement{}, err
	}
	if role != "candidate" && !actor.isAdmin() {
		return repository.Engagement{}, apperr.Forbidden("only the candidate can withdraw")
	}
	return s.transition(ctx, e, domain.EventWithdraw, actor, role, repository.TransitionParams{Note: note})
}

// Cancel is the requester-initiated termination, distinct from withdraw.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actor Actor, note *string) (repository.Engagement, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return repository.Engagement{}, err
	}
	role, err := s.roleOf(e, actor)
	if err != nil {
		return repository.Engagement{}, err
	}
	if role != "requester" && !actor.isAdmin() {
		return repository.Engagement{}, apperr.Forbidden("only the requester can cancel")
	}
	return s.transition(ctx, e, domain.EventCancel, actor, role, repository.TransitionParams{Note: note})
}

// CompleteInput carries the completion payload.
type CompleteInput struct {
	// FinalValue, when set, replaces the base value for the final commission
	// computation.
	FinalValue *int64
	// ReviewScore, when set, folds into the candidate's rating (0-5).
	ReviewScore *float64
	Note        *string
}

// Complete finalizes an ACCEPTED engagement: the commission is recomputed
// against the final value, the candidate's counters and rating update
// atomically, and the request closes. A request that already has a completed
// engagement rejects further completions.
func (s *Service) Complete(ctx context.Context, id uuid.UUID, actor Actor, input CompleteInput) (repository.Engagement, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return repository.Engagement{}, err
	}
	role, err := s.roleOf(e, actor)
	if err != nil {
		return repository.Engagement{}, err
	}
	if role != "requester" && !actor.isAdmin() {
		return repository.Engagement{}, apperr.Forbidden("only the requester can mark completion")
	}
	if input.FinalValue != nil && *input.FinalValue <= 0 {
		return repository.Engagement{}, apperr.Validation("final value must be positive")
	}
	if input.ReviewScore != nil && (*input.ReviewScore < 0 || *input.ReviewScore > 5) {
		return repository.Engagement{}, apperr.Validation("review score must be between 0 and 5")
	}

	finalValue := e.BaseValue
	if input.FinalValue != nil {
		finalValue = input.FinalValue
	}

	var fields repository.UpdateFields
	fields.FinalValue = input.FinalValue
	fields.ReviewScore = input.ReviewScore
	if finalValue != nil {
		b, err := commission.Compute(*finalValue, e.OverrideFee, s.rates)
		if err != nil {
			return repository.Engagement{}, err
		}
		fields = breakdownFields(b)
		fields.FinalValue = input.FinalValue
		fields.ReviewScore = input.ReviewScore
	}

	return s.transition(ctx, e, domain.EventComplete, actor, role, repository.TransitionParams{
		Note:   input.Note,
		Fields: fields,
		Completion: &repository.CompletionUpdate{
			CandidateID: e.CandidateID,
			RequestType: e.RequestType,
			ReviewScore: input.ReviewScore,
		},
		RequestStatus:     repository.RequestStatusCompleted,
		GuardSingleWinner: true,
	})
}

// transition resolves the successor state, performs the guarded write with
// the provided extras, logs, and fans out. The state machine rejects the
// event before any write when the transition is undefined.
func (s *Service) transition(ctx context.Context, e repository.Engagement, event domain.Event, actor Actor, role string, extras repository.TransitionParams) (repository.Engagement, error) {
	to, err := domain.Next(e.State, event)
	if err != nil {
		return repository.Engagement{}, err
	}

	extras.ID = e.ID
	extras.From = e.State
	extras.To = to
	extras.Event = event
	extras.ActorID = actor.UserID
	extras.ActorRole = role

	updated, err := s.repo.Transition(ctx, extras)
	if err != nil {
		return repository.Engagement{}, err
	}

	s.log.Transition(updated.ID.String(), string(e.State), string(to), role)

	s.fan.Apply(ctx, fanout.Transition{
		Engagement:  updated,
		From:        e.State,
		Event:       event,
		Effects:     domain.EffectsFor(event, updated.RequestType),
		ActorUserID: actor.UserID,
	})
	return updated, nil
}

// roleOf authorizes the actor as a party to the engagement.
func (s *Service) roleOf(e repository.Engagement, actor Actor) (string, error) {
	switch {
	case actor.UserID == e.CandidateUserID:
		return "candidate", nil
	case actor.UserID == e.RequesterID:
		return "requester", nil
	case actor.isAdmin():
		return "admin", nil
	default:
		return "", apperr.Forbidden("not a party to this engagement")
	}
}

func breakdownFields(b commission.Breakdown) repository.UpdateFields {
	standard := b.StandardFee
	effective := b.EffectiveFee
	introducer := b.IntroducerShare
	fulfiller := b.FulfillerShare
	return repository.UpdateFields{
		StandardFee:     &standard,
		OverrideFee:     b.OverrideFee,
		EffectiveFee:    &effective,
		IntroducerShare: &introducer,
		FulfillerShare:  &fulfiller,
	}
}
