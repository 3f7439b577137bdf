// Package engagement provides the engagement bounded context module: the
// state machine, guarded transitions, commission figures, and the HTTP
// surface for accept/reject/withdraw/cancel/complete actions.
package engagement

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"marketplace_backend/internal/commission"
	"marketplace_backend/internal/engagement/handler"
	"marketplace_backend/internal/engagement/repository"
	"marketplace_backend/internal/engagement/service"
	"marketplace_backend/internal/fanout"
	apphttp "marketplace_backend/internal/http"
	"marketplace_backend/internal/payments"
	"marketplace_backend/platform/config"
	"marketplace_backend/platform/logger"
	"marketplace_backend/platform/validator"
)

// Module is the engagement bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repo
}

// NewModule creates and initializes the engagement module.
func NewModule(
	pool *pgxpool.Pool,
	fan *fanout.Coordinator,
	provider payments.Provider,
	cfg config.CommissionConfig,
	val *validator.Validator,
	log *logger.Logger,
) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, fan, provider, commission.RatesFrom(cfg), log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "engagement"
}

// Service returns the service layer for other modules (requests dispatch).
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository returns the repository for direct reads (request detail view).
func (m *Module) Repository() *repository.Repo {
	return m.repo
}

// RegisterRoutes mounts engagement routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/engagements")
	group.GET("", m.handler.ListMine)
	group.GET("/:id", m.handler.Get)
	group.GET("/:id/activity", m.handler.Activity)
	group.PATCH("/:id/terms", m.handler.UpdateTerms)
	group.POST("/:id/accept", m.handler.Accept)
	group.POST("/:id/reject", m.handler.Reject)
	group.POST("/:id/withdraw", m.handler.Withdraw)
	group.POST("/:id/cancel", m.handler.Cancel)
	group.POST("/:id/complete", m.handler.Complete)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
