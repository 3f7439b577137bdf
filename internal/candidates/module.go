// Package candidates provides the candidate profile bounded context module.
// Profiles carry the eligibility flags, region coverage, specializations, and
// aggregate counters the matching engine ranks on.
package candidates

import (
	"marketplace_backend/internal/candidates/handler"
	"marketplace_backend/internal/candidates/repository"
	"marketplace_backend/internal/candidates/service"
	apphttp "marketplace_backend/internal/http"
	"marketplace_backend/platform/logger"
	"marketplace_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the candidates bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	repo    *repository.Repo
}

// NewModule creates and initializes the candidates module with all its dependencies.
func NewModule(pool *pgxpool.Pool, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
		repo:    repo,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "candidates"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// Repository returns the repository for direct access if needed.
func (m *Module) Repository() *repository.Repo {
	return m.repo
}

// RegisterRoutes mounts candidate profile routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/candidates")
	group.POST("", m.handler.Register)
	group.GET("/me", m.handler.GetMine)
	group.PUT("/me", m.handler.UpdateMine)
	group.GET("/:id", m.handler.GetByID)

	ctx.Admin.PATCH("/candidates/:id/verify", m.handler.SetVerified)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
