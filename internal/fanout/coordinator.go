// Package fanout applies the downstream effects of a committed engagement
// transition: CRM lead upsert, in-app notification, real-time event. The
// authoritative write has already happened when Apply runs; every step here
// is best-effort, and a failed step is logged and parked in the outbox for
// out-of-band retry without failing the overall operation.
package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"marketplace_backend/internal/crm/service"
	"marketplace_backend/internal/engagement/domain"
	"marketplace_backend/internal/engagement/repository"
	domainevents "marketplace_backend/internal/events"
	"marketplace_backend/internal/notification/inapp"
	"marketplace_backend/internal/notification/outbox"
	"marketplace_backend/platform/events"
	"marketplace_backend/platform/logger"
)

// retryDelay is the initial delay before the outbox dispatcher retries a
// failed effect.
const retryDelay = 30 * time.Second

// Transition carries everything the coordinator needs about one committed
// state change.
type Transition struct {
	Engagement  repository.Engagement
	From        domain.State
	Event       domain.Event
	Effects     []domain.Effect
	ActorUserID uuid.UUID
}

// CRM is the lead collaborator surface the coordinator uses.
type CRM interface {
	Upsert(ctx context.Context, input service.UpsertInput) error
}

// Notifier creates in-app notification records.
type Notifier interface {
	Create(ctx context.Context, p inapp.CreateParams) (inapp.Notification, error)
}

// Outbox parks failed effects for retry.
type Outbox interface {
	Insert(ctx context.Context, p outbox.InsertParams) (uuid.UUID, error)
}

// Coordinator performs the ordered best-effort downstream batch.
type Coordinator struct {
	crm      CRM
	notifier Notifier
	outbox   Outbox
	bus      events.Bus
	log      *logger.Logger
}

// New creates a fan-out coordinator.
func New(crm CRM, notifier Notifier, ob Outbox, bus events.Bus, log *logger.Logger) *Coordinator {
	return &Coordinator{crm: crm, notifier: notifier, outbox: ob, bus: bus, log: log}
}

// Apply runs the transition's downstream effects in order, then emits the
// real-time event. It never returns an error: the state change is already
// authoritative, so failures are logged and parked, not propagated.
func (c *Coordinator) Apply(ctx context.Context, t Transition) {
	for _, effect := range t.Effects {
		if !domain.IsDownstream(effect) {
			continue
		}
		if err := c.applyEffect(ctx, effect, t); err != nil {
			c.park(ctx, effect, t, err)
		}
	}

	c.bus.Publish(ctx, domainevents.EngagementStateChanged{
		BaseEvent:       events.NewBaseEvent(),
		EngagementID:    t.Engagement.ID,
		RequestID:       t.Engagement.RequestID,
		RequestType:     t.Engagement.RequestType,
		FromState:       string(t.From),
		ToState:         string(t.Engagement.State),
		Event:           string(t.Event),
		ActorUserID:     t.ActorUserID,
		CandidateUserID: t.Engagement.CandidateUserID,
		RequesterID:     t.Engagement.RequesterID,
	})
}

func (c *Coordinator) applyEffect(ctx context.Context, effect domain.Effect, t Transition) error {
	switch effect {
	case domain.EffectCRMNew:
		return c.upsertLead(ctx, t, service.StatusNew)
	case domain.EffectCRMQualified:
		return c.upsertLead(ctx, t, service.StatusQualified)
	case domain.EffectCRMWon:
		return c.upsertLead(ctx, t, service.StatusWon)
	case domain.EffectCRMLost:
		return c.upsertLead(ctx, t, service.StatusLost)
	case domain.EffectNotifyCandidate:
		return c.notify(ctx, t, t.Engagement.CandidateUserID)
	case domain.EffectNotifyRequester:
		return c.notify(ctx, t, t.Engagement.RequesterID)
	case domain.EffectNotifyCounterpart:
		return c.notify(ctx, t, counterpart(t))
	default:
		return fmt.Errorf("unknown downstream effect %q", effect)
	}
}

// counterpart resolves the party that did not perform the transition.
func counterpart(t Transition) uuid.UUID {
	if t.ActorUserID == t.Engagement.CandidateUserID {
		return t.Engagement.RequesterID
	}
	return t.Engagement.CandidateUserID
}

func (c *Coordinator) upsertLead(ctx context.Context, t Transition, status string) error {
	e := t.Engagement

	value := e.BaseValue
	if e.FinalValue != nil {
		value = e.FinalValue
	}

	return c.crm.Upsert(ctx, service.UpsertInput{
		EngagementID: e.ID,
		OwnerUserID:  e.CandidateUserID,
		Title:        leadTitle(e),
		Status:       status,
		ValueCents:   value,
		Metadata: map[string]any{
			"requestId":   e.RequestID.String(),
			"requestType": e.RequestType,
			"state":       string(e.State),
		},
	})
}

func leadTitle(e repository.Engagement) string {
	return strings.ReplaceAll(e.RequestType, "_", " ") + " lead"
}

func (c *Coordinator) notify(ctx context.Context, t Transition, userID uuid.UUID) error {
	title, content := notificationText(t)
	engagementID := t.Engagement.ID
	_, err := c.notifier.Create(ctx, inapp.CreateParams{
		UserID:       userID,
		Title:        title,
		Content:      content,
		EngagementID: &engagementID,
		Category:     "engagement",
	})
	return err
}

func notificationText(t Transition) (title, content string) {
	label := strings.ReplaceAll(t.Engagement.RequestType, "_", " ")
	switch t.Event {
	case domain.EventDispatch:
		return "New " + label + " request", "You have been matched to a new " + label + " request."
	case domain.EventUpdateTerms:
		return "Engagement terms updated", "The terms of your " + label + " engagement were updated."
	case domain.EventAccept:
		return "Engagement accepted", "Your " + label + " engagement was accepted."
	case domain.EventReject:
		return "Engagement rejected", "Your " + label + " engagement was rejected."
	case domain.EventWithdraw:
		return "Provider withdrew", "The provider withdrew from your " + label + " request."
	case domain.EventCancel:
		return "Engagement cancelled", "The requester cancelled your " + label + " engagement."
	case domain.EventComplete:
		return "Engagement completed", "Your " + label + " engagement was marked complete."
	default:
		return "Engagement updated", "Your " + label + " engagement was updated."
	}
}

// retryPayload is the snapshot stored with a parked effect. It carries
// everything needed to re-run that one effect without re-reading state.
type retryPayload struct {
	EngagementID    uuid.UUID `json:"engagementId"`
	RequestID       uuid.UUID `json:"requestId"`
	RequestType     string    `json:"requestType"`
	State           string    `json:"state"`
	Event           string    `json:"event"`
	ActorUserID     uuid.UUID `json:"actorUserId"`
	CandidateUserID uuid.UUID `json:"candidateUserId"`
	RequesterID     uuid.UUID `json:"requesterId"`
	BaseValue       *int64    `json:"baseValue,omitempty"`
	FinalValue      *int64    `json:"finalValue,omitempty"`
}

// park records a failed downstream effect in the outbox and logs it. The
// overall operation still succeeds.
func (c *Coordinator) park(ctx context.Context, effect domain.Effect, t Transition, cause error) {
	c.log.EffectFailure(t.Engagement.ID.String(), string(effect), cause)

	msg := cause.Error()
	_, err := c.outbox.Insert(ctx, outbox.InsertParams{
		EngagementID: t.Engagement.ID,
		Effect:       string(effect),
		Payload: retryPayload{
			EngagementID:    t.Engagement.ID,
			RequestID:       t.Engagement.RequestID,
			RequestType:     t.Engagement.RequestType,
			State:           string(t.Engagement.State),
			Event:           string(t.Event),
			ActorUserID:     t.ActorUserID,
			CandidateUserID: t.Engagement.CandidateUserID,
			RequesterID:     t.Engagement.RequesterID,
			BaseValue:       t.Engagement.BaseValue,
			FinalValue:      t.Engagement.FinalValue,
		},
		RunAt:     time.Now().UTC().Add(retryDelay),
		LastError: &msg,
	})
	if err != nil {
		// Both the effect and its parking failed; the log line is the only
		// remaining trace.
		c.log.Error("park downstream effect failed",
			"engagement_id", t.Engagement.ID.String(),
			"effect", string(effect),
			"error", err.Error(),
		)
	}
}

// Retry re-runs one parked effect from its outbox snapshot. Used by the
// background dispatcher; a returned error keeps the record for another try.
func (c *Coordinator) Retry(ctx context.Context, rec outbox.Record) error {
	var p retryPayload
	if err := json.Unmarshal(rec.Payload, &p); err != nil {
		return fmt.Errorf("decode outbox payload: %w", err)
	}

	t := Transition{
		Engagement: repository.Engagement{
			ID:              p.EngagementID,
			RequestID:       p.RequestID,
			RequestType:     p.RequestType,
			State:           domain.State(p.State),
			CandidateUserID: p.CandidateUserID,
			RequesterID:     p.RequesterID,
			BaseValue:       p.BaseValue,
			FinalValue:      p.FinalValue,
		},
		Event:       domain.Event(p.Event),
		ActorUserID: p.ActorUserID,
	}
	return c.applyEffect(ctx, domain.Effect(rec.Effect), t)
}
