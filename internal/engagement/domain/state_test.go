package domain

import (
	"testing"

	"marketplace_backend/platform/apperr"
)

func TestNext_DefinedTransitions(t *testing.T) {
	cases := []struct {
		from  State
		event Event
		to    State
	}{
		{StateCreated, EventDispatch, StatePending},
		{StatePending, EventUpdateTerms, StatePending},
		{StatePending, EventAccept, StateAccepted},
		{StatePending, EventReject, StateRejected},
		{StatePending, EventWithdraw, StateWithdrawn},
		{StatePending, EventCancel, StateCancelled},
		{StateAccepted, EventComplete, StateCompleted},
		{StateAccepted, EventReject, StateRejected},
		{StateAccepted, EventWithdraw, StateWithdrawn},
		{StateAccepted, EventCancel, StateCancelled},
	}

	for _, tc := range cases {
		got, err := Next(tc.from, tc.event)
		if err != nil {
			t.Fatalf("%s + %s: unexpected error: %v", tc.from, tc.event, err)
		}
		if got != tc.to {
			t.Fatalf("%s + %s: expected %s, got %s", tc.from, tc.event, tc.to, got)
		}
	}
}

// Every (state, event) pair either matches the table exactly or fails with a
// conflict; there are no silent no-ops and no undeclared successors.
func TestNext_ExhaustiveSoundness(t *testing.T) {
	defined := map[State]map[Event]State{
		StateCreated: {EventDispatch: StatePending},
		StatePending: {
			EventUpdateTerms: StatePending,
			EventAccept:      StateAccepted,
			EventReject:      StateRejected,
			EventWithdraw:    StateWithdrawn,
			EventCancel:      StateCancelled,
		},
		StateAccepted: {
			EventComplete: StateCompleted,
			EventReject:   StateRejected,
			EventWithdraw: StateWithdrawn,
			EventCancel:   StateCancelled,
		},
	}

	for _, from := range States() {
		for _, event := range Events() {
			got, err := Next(from, event)
			want, ok := defined[from][event]
			if ok {
				if err != nil {
					t.Fatalf("%s + %s: expected %s, got error %v", from, event, want, err)
				}
				if got != want {
					t.Fatalf("%s + %s: expected %s, got %s", from, event, want, got)
				}
				continue
			}
			if !apperr.Is(err, apperr.KindConflict) {
				t.Fatalf("%s + %s: expected conflict, got %v (state %q)", from, event, err, got)
			}
		}
	}
}

func TestTerminalStatesAdmitNothing(t *testing.T) {
	for _, from := range []State{StateRejected, StateCompleted, StateWithdrawn, StateCancelled} {
		if !IsTerminal(from) {
			t.Fatalf("%s must be terminal", from)
		}
		for _, event := range Events() {
			if _, err := Next(from, event); err == nil {
				t.Fatalf("%s + %s: terminal state must not transition", from, event)
			}
		}
	}
	for _, from := range []State{StateCreated, StatePending, StateAccepted} {
		if IsTerminal(from) {
			t.Fatalf("%s must not be terminal", from)
		}
	}
}

func TestEffectsFor_PaymentIntentIsBookingOnly(t *testing.T) {
	has := func(effects []Effect, e Effect) bool {
		for _, x := range effects {
			if x == e {
				return true
			}
		}
		return false
	}

	if !has(EffectsFor(EventAccept, "booking"), EffectPaymentIntent) {
		t.Fatal("accepting a booking must request a payment intent")
	}
	for _, rt := range []string{"valuation", "property_submission", "referral"} {
		if has(EffectsFor(EventAccept, rt), EffectPaymentIntent) {
			t.Fatalf("%s acceptance must not request a payment intent", rt)
		}
	}
}

func TestEffectsFor_AuthoritativeBeforeDownstream(t *testing.T) {
	for _, event := range Events() {
		effects := EffectsFor(event, "booking")
		seenDownstream := false
		for _, e := range effects {
			if IsDownstream(e) {
				seenDownstream = true
			} else if seenDownstream {
				t.Fatalf("%s: authoritative effect %s listed after downstream effects", event, e)
			}
		}
	}
}
