package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/dto"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/service"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/pkg/response"
)

// ReferralLeadHandler referral lead registry HTTP handler
type ReferralLeadHandler struct {
	leadSvc service.ReferralLeadService
}

// NewReferralLeadHandler creates a ReferralLeadHandler
func NewReferralLeadHandler(leadSvc service.ReferralLeadService) *ReferralLeadHandler {
	return &ReferralLeadHandler{leadSvc: leadSvc}
}

// CreateReferral doctor refers a contact
// POST /api/v1/referrals
func (h *ReferralLeadHandler) CreateReferral(c *gin.Context) {
	var req dto.CreateReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "invalid request body")
		return
	}

	doctorID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	lead, err := h.leadSvc.CreateReferral(c.Request.Context(), doctorID, &req)
	if err != nil {
		h.handleLeadError(c, err)
		return
	}

	response.Created(c, lead)
}

// SubmitContactForm public website contact form
// POST /api/v1/contact
func (h *ReferralLeadHandler) SubmitContactForm(c *gin.Context) {
	var req dto.ContactFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "name and an email or phone are required")
		return
	}

	if _, err := h.leadSvc.CreateContactFormLead(c.Request.Context(), &req); err != nil {
		h.handleLeadError(c, err)
		return
	}

	// the public caller gets no lead details back
	response.Created(c, nil)
}

// CreateProspect rep or admin enters a prospect by hand
// POST /api/v1/referral-leads
func (h *ReferralLeadHandler) CreateProspect(c *gin.Context) {
	var req dto.CreateManualProspectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "invalid request body")
		return
	}

	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	lead, err := h.leadSvc.CreateManualProspect(c.Request.Context(), actor, &req)
	if err != nil {
		h.handleLeadError(c, err)
		return
	}

	response.Created(c, lead)
}

// Dashboard role-scoped pipeline view
// GET /api/v1/referral-leads/dashboard
func (h *ReferralLeadHandler) Dashboard(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	dashboard, err := h.leadSvc.Dashboard(c.Request.Context(), actor)
	if err != nil {
		h.handleLeadError(c, err)
		return
	}

	response.OK(c, dashboard)
}

// GetLead
// GET /api/v1/referral-leads/:id
func (h *ReferralLeadHandler) GetLead(c *gin.Context) {
	id, ok := MustGetUUIDParam(c, "id")
	if !ok {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	lead, err := h.leadSvc.Get(c.Request.Context(), id, actor)
	if err != nil {
		h.handleLeadError(c, err)
		return
	}

	response.OK(c, lead)
}

// UpdateStatus move a lead through the pipeline. Never issues credit.
// PATCH /api/v1/referral-leads/:id/status
func (h *ReferralLeadHandler) UpdateStatus(c *gin.Context) {
	id, ok := MustGetUUIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateLeadStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "invalid request body")
		return
	}

	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	lead, err := h.leadSvc.UpdateStatus(c.Request.Context(), id, &req, actor)
	if err != nil {
		h.handleLeadError(c, err)
		return
	}

	response.OK(c, lead)
}

// DeleteProspect delete a manually entered prospect
// DELETE /api/v1/referral-leads/:id
func (h *ReferralLeadHandler) DeleteProspect(c *gin.Context) {
	id, ok := MustGetUUIDParam(c, "id")
	if !ok {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	if err := h.leadSvc.DeleteManualProspect(c.Request.Context(), id, actor); err != nil {
		h.handleLeadError(c, err)
		return
	}

	response.OK(c, nil)
}

func (h *ReferralLeadHandler) handleLeadError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrLeadNotFound):
		response.NotFound(c, 21001, err.Error())
	case errors.Is(err, service.ErrLeadForbidden):
		response.Forbidden(c, 21002, err.Error())
	case errors.Is(err, service.ErrInvalidLeadStatus):
		response.BadRequest(c, 21003, err.Error())
	case errors.Is(err, service.ErrIllegalTransition):
		response.Conflict(c, 21004, err.Error())
	case errors.Is(err, service.ErrLeadNotManual):
		response.Conflict(c, 21005, err.Error())
	default:
		response.FromError(c, err)
	}
}
