// Package domain defines the engagement lifecycle: a single finite state
// machine shared by referral, submission-interest, valuation-bid, and booking
// engagements, with per-transition side-effect sets. The per-type differences
// live entirely in the effect bindings, not in the transition structure.
package domain

import (
	"marketplace_backend/platform/apperr"
)

// State is an engagement lifecycle state.
type State string

const (
	StateCreated   State = "CREATED"
	StatePending   State = "PENDING"
	StateAccepted  State = "ACCEPTED"
	StateRejected  State = "REJECTED"
	StateCompleted State = "COMPLETED"
	StateWithdrawn State = "WITHDRAWN"
	StateCancelled State = "CANCELLED"
)

// Event is an action attempted against an engagement.
type Event string

const (
	EventDispatch    Event = "dispatch"
	EventUpdateTerms Event = "update_terms"
	EventAccept      Event = "accept"
	EventReject      Event = "reject"
	EventWithdraw    Event = "withdraw"
	EventCancel      Event = "cancel"
	EventComplete    Event = "complete"
)

// transitions is the single transition table. Any (state, event) pair absent
// here is invalid; there are no silent no-ops.
var transitions = map[State]map[Event]State{
	StateCreated: {
		EventDispatch: StatePending,
	},
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

// terminal states admit no further transitions.
var terminal = map[State]bool{
	StateRejected:  true,
	StateCompleted: true,
	StateWithdrawn: true,
	StateCancelled: true,
}

// IsTerminal reports whether no transition is defined out of the state.
func IsTerminal(s State) bool {
	return terminal[s]
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	if terminal[s] {
		return true
	}
	_, ok := transitions[s]
	return ok
}

// Next returns the successor state for applying event to from, or an
// InvalidTransition error. Transitions from terminal states always fail.
func Next(from State, event Event) (State, error) {
	if allowed, ok := transitions[from]; ok {
		if to, ok := allowed[event]; ok {
			return to, nil
		}
	}
	return "", apperr.InvalidTransition(string(from), string(event))
}

// Events lists every defined event, for exhaustive soundness checks.
func Events() []Event {
	return []Event{
		EventDispatch, EventUpdateTerms, EventAccept,
		EventReject, EventWithdraw, EventCancel, EventComplete,
	}
}

// States lists every defined state.
func States() []State {
	return []State{
		StateCreated, StatePending, StateAccepted,
		StateRejected, StateCompleted, StateWithdrawn, StateCancelled,
	}
}
