// Package requests provides the request bounded context module. Request
// creation runs the matching pipeline synchronously and dispatches an
// engagement to every ranked candidate.
package requests

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	candrepo "marketplace_backend/internal/candidates/repository"
	engrepo "marketplace_backend/internal/engagement/repository"
	engsvc "marketplace_backend/internal/engagement/service"
	apphttp "marketplace_backend/internal/http"
	"marketplace_backend/internal/requests/handler"
	"marketplace_backend/internal/requests/repository"
	"marketplace_backend/internal/requests/service"
	"marketplace_backend/platform/config"
	"marketplace_backend/platform/events"
	"marketplace_backend/platform/logger"
	"marketplace_backend/platform/validator"
)

// engagementAdapter combines the engagement service (creation, dispatch)
// and repository (request-scoped reads) into the surface the requests
// module drives.
type engagementAdapter struct {
	svc  *engsvc.Service
	repo *engrepo.Repo
}

func (a engagementAdapter) CreateForMatches(ctx context.Context, params []engrepo.CreateParams) ([]engrepo.Engagement, error) {
	return a.svc.CreateForMatches(ctx, params)
}

func (a engagementAdapter) Dispatch(ctx context.Context, e engrepo.Engagement) (engrepo.Engagement, error) {
	return a.svc.Dispatch(ctx, e)
}

func (a engagementAdapter) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]engrepo.Engagement, error) {
	return a.repo.ListByRequest(ctx, requestID)
}

// Module is the requests bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the requests module.
func NewModule(
	pool *pgxpool.Pool,
	candidates *candrepo.Repo,
	engagements *engsvc.Service,
	engagementRepo *engrepo.Repo,
	matchCfg config.MatchingConfig,
	bus events.Bus,
	val *validator.Validator,
	log *logger.Logger,
) *Module {
	repo := repository.New(pool)
	adapter := engagementAdapter{svc: engagements, repo: engagementRepo}
	svc := service.New(repo, candidates, adapter, matchCfg, bus, log)
	h := handler.New(svc, val)

	return &Module{handler: h, service: svc}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "requests"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts request routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/requests")
	group.POST("", m.handler.Create)
	group.GET("", m.handler.ListMine)
	group.GET("/:id", m.handler.Get)
	group.POST("/:id/close", m.handler.Close)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
