// Package notification provides in-app notifications, the effect outbox,
// and the SSE stream that pushes committed engagement transitions to both
// parties in real time.
package notification

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	domainevents "marketplace_backend/internal/events"
	apphttp "marketplace_backend/internal/http"
	"marketplace_backend/internal/notification/handler"
	"marketplace_backend/internal/notification/inapp"
	"marketplace_backend/internal/notification/outbox"
	"marketplace_backend/internal/notification/sse"
	"marketplace_backend/platform/events"
	"marketplace_backend/platform/logger"
)

// Module is the notification bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	inapp   *inapp.Service
	sse     *sse.Service
	outbox  *outbox.Repository
}

// NewModule creates the notification module and subscribes the SSE bridge
// to engagement state changes on the bus.
func NewModule(pool *pgxpool.Pool, bus events.Bus, log *logger.Logger) *Module {
	inappRepo := inapp.NewRepository(pool)
	inappSvc := inapp.NewService(inappRepo)
	sseSvc := sse.New(log)
	outboxRepo := outbox.New(pool)
	h := handler.New(inappSvc, sseSvc)

	m := &Module{
		handler: h,
		inapp:   inappSvc,
		sse:     sseSvc,
		outbox:  outboxRepo,
	}

	bus.Subscribe(domainevents.EngagementStateChangedName, events.HandlerFunc(m.pushStateChange))
	return m
}

// pushStateChange bridges bus events onto the SSE streams of both parties.
// Delivery is best-effort; a disconnected party simply misses the push.
func (m *Module) pushStateChange(ctx context.Context, event events.Event) error {
	change, ok := event.(domainevents.EngagementStateChanged)
	if !ok {
		return nil
	}

	sseEvent := sse.Event{
		Type:         eventTypeFor(change.Event),
		EngagementID: change.EngagementID,
		RequestID:    change.RequestID,
		Data: map[string]any{
			"fromState": change.FromState,
			"toState":   change.ToState,
		},
	}
	m.sse.Publish(change.CandidateUserID, sseEvent)
	m.sse.Publish(change.RequesterID, sseEvent)
	return nil
}

func eventTypeFor(event string) sse.EventType {
	switch event {
	case "dispatch":
		return sse.EventEngagementDispatched
	case "accept":
		return sse.EventEngagementAccepted
	case "reject":
		return sse.EventEngagementRejected
	case "withdraw":
		return sse.EventEngagementWithdrawn
	case "cancel":
		return sse.EventEngagementCancelled
	case "complete":
		return sse.EventEngagementCompleted
	default:
		return sse.EventEngagementUpdated
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "notification"
}

// InApp returns the in-app notification service for the fan-out coordinator.
func (m *Module) InApp() *inapp.Service {
	return m.inapp
}

// Outbox returns the effect outbox repository.
func (m *Module) Outbox() *outbox.Repository {
	return m.outbox
}

// SSE returns the real-time push service.
func (m *Module) SSE() *sse.Service {
	return m.sse
}

// RegisterRoutes mounts notification routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/notifications")
	group.GET("", m.handler.List)
	group.POST("/:id/read", m.handler.MarkRead)
	group.POST("/read-all", m.handler.MarkAllRead)
	group.GET("/stream", m.handler.Stream())
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
