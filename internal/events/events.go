// Package events defines the domain events exchanged between modules over
// the in-memory bus. Events are observational: authoritative state has
// already committed when an event is published.
package events

import (
	"github.com/google/uuid"

	"marketplace_backend/platform/events"
)

// Event names for subscription.
const (
	RequestCreatedName         = "request.created"
	EngagementStateChangedName = "engagement.state_changed"
)

// RequestCreated is published after a request is persisted and matching has
// run, whether or not any candidates were dispatched.
type RequestCreated struct {
	events.BaseEvent
	RequestID   uuid.UUID
	RequesterID uuid.UUID
	RequestType string
	Region      string
	PoolSize    int
	Eligible    int
	Dispatched  int
}

// EventName returns the unique event identifier.
func (e RequestCreated) EventName() string { return RequestCreatedName }

// EngagementStateChanged is published after an engagement transition
// commits. Subscribers push real-time updates; they never mutate state.
type EngagementStateChanged struct {
	events.BaseEvent
	EngagementID    uuid.UUID
	RequestID       uuid.UUID
	RequestType     string
	FromState       string
	ToState         string
	Event           string
	ActorUserID     uuid.UUID
	CandidateUserID uuid.UUID
	RequesterID     uuid.UUID
}

// EventName returns the unique event identifier.
func (e EngagementStateChanged) EventName() string { return EngagementStateChangedName }
