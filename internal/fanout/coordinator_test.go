package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"

	"marketplace_backend/internal/crm/service"
	"marketplace_backend/internal/engagement/domain"
	"marketplace_backend/internal/engagement/repository"
	"marketplace_backend/internal/notification/inapp"
	"marketplace_backend/internal/notification/outbox"
	"marketplace_backend/platform/events"
	"marketplace_backend/platform/logger"
)

type fakeCRM struct {
	calls []service.UpsertInput
	err   error
}

func (f *fakeCRM) Upsert(ctx context.Context, input service.UpsertInput) error {
	f.calls = append(f.calls, input)
	return f.err
}

type fakeNotifier struct {
	calls []inapp.CreateParams
	err   error
}

func (f *fakeNotifier) Create(ctx context.Context, p inapp.CreateParams) (inapp.Notification, error) {
	f.calls = append(f.calls, p)
	return inapp.Notification{}, f.err
}

type fakeOutbox struct {
	records []outbox.InsertParams
}

func (f *fakeOutbox) Insert(ctx context.Context, p outbox.InsertParams) (uuid.UUID, error) {
	f.records = append(f.records, p)
	return uuid.New(), nil
}

type fakeBus struct {
	published []events.Event
}

func (f *fakeBus) Publish(ctx context.Context, event events.Event)          { f.published = append(f.published, event) }
func (f *fakeBus) PublishSync(ctx context.Context, event events.Event) error { f.published = append(f.published, event); return nil }
func (f *fakeBus) Subscribe(eventName string, handler events.Handler)       {}

func testTransition(event domain.Event) Transition {
	candidateUser := uuid.New()
	requester := uuid.New()
	return Transition{
		Engagement: repository.Engagement{
			ID:              uuid.New(),
			RequestID:       uuid.New(),
			RequestType:     "valuation",
			RequesterID:     requester,
			CandidateUserID: candidateUser,
			State:           domain.StatePending,
		},
		From:        domain.StateCreated,
		Event:       event,
		Effects:     domain.EffectsFor(event, "valuation"),
		ActorUserID: requester,
	}
}

func newCoordinator(crm *fakeCRM, notifier *fakeNotifier, ob *fakeOutbox, bus *fakeBus) *Coordinator {
	return New(crm, notifier, ob, bus, logger.New("development"))
}

func TestApply_DispatchRunsLeadThenNotification(t *testing.T) {
	crm := &fakeCRM{}
	notifier := &fakeNotifier{}
	ob := &fakeOutbox{}
	bus := &fakeBus{}

	tr := testTransition(domain.EventDispatch)
	newCoordinator(crm, notifier, ob, bus).Apply(context.Background(), tr)

	if len(crm.calls) != 1 {
		t.Fatalf("expected 1 crm upsert, got %d", len(crm.calls))
	}
	if crm.calls[0].Status != service.StatusNew {
		t.Fatalf("expected NEW lead, got %s", crm.calls[0].Status)
	}
	if len(notifier.calls) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notifier.calls))
	}
	if notifier.calls[0].UserID != tr.Engagement.CandidateUserID {
		t.Fatal("dispatch must notify the candidate")
	}
	if len(ob.records) != 0 {
		t.Fatalf("no effects should be parked, got %d", len(ob.records))
	}
	if len(bus.published) != 1 {
		t.Fatalf("expected 1 real-time event, got %d", len(bus.published))
	}
}

func TestApply_FailedEffectIsParkedNotFatal(t *testing.T) {
	crm := &fakeCRM{err: errors.New("crm unavailable")}
	notifier := &fakeNotifier{}
	ob := &fakeOutbox{}
	bus := &fakeBus{}

	tr := testTransition(domain.EventDispatch)
	newCoordinator(crm, notifier, ob, bus).Apply(context.Background(), tr)

	// CRM failed but the notification still ran and the event still went out.
	if len(notifier.calls) != 1 {
		t.Fatalf("later effects must still run, got %d notifications", len(notifier.calls))
	}
	if len(bus.published) != 1 {
		t.Fatal("real-time event must still be published")
	}
	if len(ob.records) != 1 {
		t.Fatalf("failed effect must be parked, got %d records", len(ob.records))
	}
	if ob.records[0].Effect != string(domain.EffectCRMNew) {
		t.Fatalf("wrong parked effect: %s", ob.records[0].Effect)
	}
	if ob.records[0].EngagementID != tr.Engagement.ID {
		t.Fatal("parked record must reference the engagement")
	}
}

func TestApply_CounterpartResolution(t *testing.T) {
	cases := []struct {
		name      string
		actorIs   string
		wantOther string
	}{
		{"requester acts, candidate notified", "requester", "candidate"},
		{"candidate acts, requester notified", "candidate", "requester"},
	}

	for _, tc := range cases {
		crm := &fakeCRM{}
		notifier := &fakeNotifier{}
		tr := testTransition(domain.EventUpdateTerms)
		if tc.actorIs == "candidate" {
			tr.ActorUserID = tr.Engagement.CandidateUserID
		} else {
			tr.ActorUserID = tr.Engagement.RequesterID
		}

		newCoordinator(crm, notifier, &fakeOutbox{}, &fakeBus{}).Apply(context.Background(), tr)

		if len(notifier.calls) != 1 {
			t.Fatalf("%s: expected 1 notification, got %d", tc.name, len(notifier.calls))
		}
		want := tr.Engagement.RequesterID
		if tc.wantOther == "candidate" {
			want = tr.Engagement.CandidateUserID
		}
		if notifier.calls[0].UserID != want {
			t.Fatalf("%s: notified wrong party", tc.name)
		}
	}
}

func TestApply_SkipsAuthoritativeEffects(t *testing.T) {
	crm := &fakeCRM{}
	notifier := &fakeNotifier{}

	// Completion carries authoritative effects (commission, counters) that
	// the coordinator must not touch; they were applied in the transaction.
	tr := testTransition(domain.EventComplete)
	tr.Engagement.State = domain.StateCompleted
	tr.Effects = domain.EffectsFor(domain.EventComplete, "valuation")

	newCoordinator(crm, notifier, &fakeOutbox{}, &fakeBus{}).Apply(context.Background(), tr)

	if len(crm.calls) != 1 || crm.calls[0].Status != service.StatusWon {
		t.Fatal("completion must move the lead to WON")
	}
	if len(notifier.calls) != 1 {
		t.Fatalf("completion must notify the counterpart once, got %d", len(notifier.calls))
	}
}

func TestRetry_ReappliesParkedEffect(t *testing.T) {
	crm := &fakeCRM{err: errors.New("crm unavailable")}
	notifier := &fakeNotifier{}
	ob := &fakeOutbox{}
	co := newCoordinator(crm, notifier, ob, &fakeBus{})

	tr := testTransition(domain.EventDispatch)
	co.Apply(context.Background(), tr)
	if len(ob.records) != 1 {
		t.Fatalf("expected 1 parked record, got %d", len(ob.records))
	}

	// The CRM recovers; the retry must re-run the lead upsert from the
	// snapshot alone.
	crm.err = nil
	parked := ob.records[0]
	rec := outbox.Record{
		ID:           uuid.New(),
		EngagementID: parked.EngagementID,
		Effect:       parked.Effect,
		Payload:      mustMarshal(t, parked.Payload),
	}
	if err := co.Retry(context.Background(), rec); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if len(crm.calls) != 2 {
		t.Fatalf("expected retried upsert, got %d calls", len(crm.calls))
	}
	if crm.calls[1].EngagementID != tr.Engagement.ID {
		t.Fatal("retried upsert must target the original engagement")
	}
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return data
}
