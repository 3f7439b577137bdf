// Package crm provides the CRM lead collaborator: one lead per engagement,
// moved through NEW/QUALIFIED/WON/LOST by the fan-out coordinator, plus a
// read surface for the candidate's pipeline.
package crm

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"marketplace_backend/internal/crm/repository"
	"marketplace_backend/internal/crm/service"
	apphttp "marketplace_backend/internal/http"
	"marketplace_backend/platform/httpkit"
	"marketplace_backend/platform/logger"
)

// Module is the CRM bounded context module implementing http.Module.
type Module struct {
	service *service.Service
}

// NewModule creates and initializes the CRM module.
func NewModule(pool *pgxpool.Pool, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, log)
	return &Module{service: svc}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "crm"
}

// Service returns the service layer for the fan-out coordinator.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts the lead pipeline read route.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/crm/leads", m.listLeads)
}

func (m *Module) listLeads(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	leads, err := m.service.ListMine(c.Request.Context(), identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, leads)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
