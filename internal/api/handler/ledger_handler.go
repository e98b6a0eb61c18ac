package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/dto"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/service"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/pkg/response"
)

// LedgerHandler credit ledger and crediting authority HTTP handler
type LedgerHandler struct {
	ledgerSvc    service.LedgerService
	creditingSvc service.CreditingService
}

// NewLedgerHandler creates a LedgerHandler
func NewLedgerHandler(ledgerSvc service.LedgerService, creditingSvc service.CreditingService) *LedgerHandler {
	return &LedgerHandler{ledgerSvc: ledgerSvc, creditingSvc: creditingSvc}
}

// GetMySummary the caller's own credit summary
// GET /api/v1/credits/me
func (h *LedgerHandler) GetMySummary(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	summary, err := h.ledgerSvc.Summarize(c.Request.Context(), actor.UserID, actor)
	if err != nil {
		h.handleLedgerError(c, err)
		return
	}

	response.OK(c, summary)
}

// GetSummary a doctor's credit summary
// GET /api/v1/credits/:doctorId
func (h *LedgerHandler) GetSummary(c *gin.Context) {
	doctorID, ok := MustGetUUIDParam(c, "doctorId")
	if !ok {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	summary, err := h.ledgerSvc.Summarize(c.Request.Context(), doctorID, actor)
	if err != nil {
		h.handleLedgerError(c, err)
		return
	}

	response.OK(c, summary)
}

// ListEntries raw ledger entries in append order
// GET /api/v1/credits/:doctorId/entries
func (h *LedgerHandler) ListEntries(c *gin.Context) {
	doctorID, ok := MustGetUUIDParam(c, "doctorId")
	if !ok {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	entries, err := h.ledgerSvc.ListEntries(c.Request.Context(), doctorID, actor)
	if err != nil {
		h.handleLedgerError(c, err)
		return
	}

	response.OK(c, gin.H{"list": entries})
}

// AppendEntry admin manual adjustment or reversal
// POST /api/v1/credits/:doctorId/entries
func (h *LedgerHandler) AppendEntry(c *gin.Context) {
	doctorID, ok := MustGetUUIDParam(c, "doctorId")
	if !ok {
		return
	}

	var req dto.AppendLedgerEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "invalid request body")
		return
	}

	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	entry, err := h.ledgerSvc.Append(c.Request.Context(), doctorID, &req, actor)
	if err != nil {
		h.handleLedgerError(c, err)
		return
	}

	response.Created(c, entry)
}

// CreditReferral issue referral credit for a lead, exactly once
// POST /api/v1/credits/referral
func (h *LedgerHandler) CreditReferral(c *gin.Context) {
	var req dto.AddManualCreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "invalid request body")
		return
	}

	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.creditingSvc.AddManualCredit(c.Request.Context(), actor, &req)
	if err != nil {
		h.handleLedgerError(c, err)
		return
	}

	response.Created(c, result)
}

func (h *LedgerHandler) handleLedgerError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidAmount):
		response.BadRequest(c, 22001, err.Error())
	case errors.Is(err, service.ErrInvalidEntry):
		response.BadRequest(c, 22002, err.Error())
	case errors.Is(err, service.ErrCurrencyMismatch):
		response.BadRequest(c, 22003, err.Error())
	case errors.Is(err, service.ErrInsufficientCredits):
		response.Conflict(c, 22004, err.Error())
	case errors.Is(err, service.ErrInvalidReversal):
		response.BadRequest(c, 22005, err.Error())
	case errors.Is(err, service.ErrAlreadyReversed):
		response.Conflict(c, 22006, err.Error())
	case errors.Is(err, service.ErrAlreadyCredited):
		response.Conflict(c, 22007, err.Error())
	case errors.Is(err, service.ErrLedgerForbidden):
		response.Forbidden(c, 22008, err.Error())
	case errors.Is(err, service.ErrReferralDoctorMismatch):
		response.BadRequest(c, 22009, err.Error())
	case errors.Is(err, service.ErrCreditForbidden):
		response.Forbidden(c, 22010, err.Error())
	case errors.Is(err, service.ErrLeadNotFound):
		response.NotFound(c, 21001, err.Error())
	case errors.Is(err, service.ErrDoctorNotFound):
		response.NotFound(c, 20008, err.Error())
	default:
		response.FromError(c, err)
	}
}
