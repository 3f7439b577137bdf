// Package payments defines the payment collaborator boundary. The core
// supplies an amount and currency and receives an opaque intent handle back;
// capture, refunds, and webhooks live entirely outside this system.
package payments

import (
	"context"

	"github.com/google/uuid"
)

// IntentRequest describes the payment intent the core asks for when a
// booking engagement is accepted.
type IntentRequest struct {
	EngagementID uuid.UUID
	AmountCents  int64
	Currency     string
	Metadata     map[string]string
}

// Provider creates payment intents with an external payment system.
type Provider interface {
	// CreateIntent returns an opaque intent handle. The core never inspects
	// capture state behind it.
	CreateIntent(ctx context.Context, req IntentRequest) (string, error)
}

// Disabled is the Provider used when no payment backend is configured.
// Bookings proceed without an intent handle.
type Disabled struct{}

// CreateIntent returns an empty handle.
func (Disabled) CreateIntent(ctx context.Context, req IntentRequest) (string, error) {
	return "", nil
}
