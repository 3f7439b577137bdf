package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"marketplace_backend/internal/engagement/service"
	"marketplace_backend/internal/engagement/transport"
	"marketplace_backend/platform/httpkit"
	"marketplace_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid engagement ID"
)

// Handler handles HTTP requests for engagements.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new engagement handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

func actorFrom(ident httpkit.Identity) service.Actor {
	return service.Actor{UserID: ident.UserID(), Roles: ident.Roles()}
}

func (h *Handler) engagementID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return uuid.Nil, false
	}
	return id, true
}

// Get retrieves one engagement visible to the caller.
// GET /api/v1/engagements/:id
func (h *Handler) Get(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	id, ok := h.engagementID(c)
	if !ok {
		return
	}

	e, err := h.svc.Get(c.Request.Context(), id, actorFrom(identity))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.FromEngagement(e))
}

// ListMine retrieves the caller's engagements on either side.
// GET /api/v1/engagements
func (h *Handler) ListMine(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	items, err := h.svc.ListMine(c.Request.Context(), actorFrom(identity))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.FromEngagements(items))
}

// Activity retrieves the engagement's audit trail.
// GET /api/v1/engagements/:id/activity
func (h *Handler) Activity(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	id, ok := h.engagementID(c)
	if !ok {
		return
	}

	items, err := h.svc.Activity(c.Request.Context(), id, actorFrom(identity))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.FromActivity(items))
}

// UpdateTerms revises the terms of a pending engagement.
// PATCH /api/v1/engagements/:id/terms
func (h *Handler) UpdateTerms(c *gin.Context) {
	var req transport.UpdateTermsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	id, ok := h.engagementID(c)
	if !ok {
		return
	}

	e, err := h.svc.UpdateTerms(c.Request.Context(), id, actorFrom(identity), req.Terms)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.FromEngagement(e))
}

// Accept moves a pending engagement to accepted.
// POST /api/v1/engagements/:id/accept
func (h *Handler) Accept(c *gin.Context) {
	var req transport.AcceptRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
		if err := h.val.Struct(req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
			return
		}
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	id, ok := h.engagementID(c)
	if !ok {
		return
	}

	e, err := h.svc.Accept(c.Request.Context(), id, actorFrom(identity), req.OverrideFee)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.FromEngagement(e))
}

// Reject terminates an engagement as rejected.
// POST /api/v1/engagements/:id/reject
func (h *Handler) Reject(c *gin.Context) {
	h.terminate(c, func(ctx *gin.Context, id uuid.UUID, actor service.Actor, note *string) (any, error) {
		e, err := h.svc.Reject(ctx.Request.Context(), id, actor, note)
		return transport.FromEngagement(e), err
	})
}

// Withdraw is the candidate-initiated retraction.
// POST /api/v1/engagements/:id/withdraw
func (h *Handler) Withdraw(c *gin.Context) {
	h.terminate(c, func(ctx *gin.Context, id uuid.UUID, actor service.Actor, note *string) (any, error) {
		e, err := h.svc.Withdraw(ctx.Request.Context(), id, actor, note)
		return transport.FromEngagement(e), err
	})
}

// Cancel is the requester-initiated termination.
// POST /api/v1/engagements/:id/cancel
func (h *Handler) Cancel(c *gin.Context) {
	h.terminate(c, func(ctx *gin.Context, id uuid.UUID, actor service.Actor, note *string) (any, error) {
		e, err := h.svc.Cancel(ctx.Request.Context(), id, actor, note)
		return transport.FromEngagement(e), err
	})
}

func (h *Handler) terminate(c *gin.Context, apply func(*gin.Context, uuid.UUID, service.Actor, *string) (any, error)) {
	var req transport.NoteRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
		if err := h.val.Struct(req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
			return
		}
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	id, ok := h.engagementID(c)
	if !ok {
		return
	}

	result, err := apply(c, id, actorFrom(identity), req.Note)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Complete finalizes an accepted engagement.
// POST /api/v1/engagements/:id/complete
func (h *Handler) Complete(c *gin.Context) {
	var req transport.CompleteRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}
		if err := h.val.Struct(req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
			return
		}
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}
	id, ok := h.engagementID(c)
	if !ok {
		return
	}

	e, err := h.svc.Complete(c.Request.Context(), id, actorFrom(identity), service.CompleteInput{
		FinalValue:  req.FinalValue,
		ReviewScore: req.ReviewScore,
		Note:        req.Note,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.FromEngagement(e))
}
