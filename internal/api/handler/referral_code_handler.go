package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/dto"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/service"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/pkg/response"
)

// ReferralCodeHandler referral code registry HTTP handler
type ReferralCodeHandler struct {
	codeSvc service.ReferralCodeService
}

// NewReferralCodeHandler creates a ReferralCodeHandler
func NewReferralCodeHandler(codeSvc service.ReferralCodeService) *ReferralCodeHandler {
	return &ReferralCodeHandler{codeSvc: codeSvc}
}

// IssueCode issue a new code for a sales rep
// POST /api/v1/referral-codes
func (h *ReferralCodeHandler) IssueCode(c *gin.Context) {
	var req dto.IssueReferralCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "invalid request body")
		return
	}

	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	code, err := h.codeSvc.Issue(c.Request.Context(), &req, actor)
	if err != nil {
		h.handleCodeError(c, err)
		return
	}

	response.Created(c, code)
}

// ListCodes codes owned by a sales rep
// GET /api/v1/referral-codes?salesRepId=
func (h *ReferralCodeHandler) ListCodes(c *gin.Context) {
	var q dto.ListReferralCodesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, 10001, "invalid query parameters")
		return
	}

	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	codes, err := h.codeSvc.ListForSalesRep(c.Request.Context(), q.SalesRepID, actor)
	if err != nil {
		h.handleCodeError(c, err)
		return
	}

	response.OK(c, gin.H{"list": codes})
}

// RedeemCode doctor redeems a code during onboarding
// POST /api/v1/referral-codes/redeem
func (h *ReferralCodeHandler) RedeemCode(c *gin.Context) {
	var req dto.RedeemReferralCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 20001, service.ErrInvalidCode.Error())
		return
	}

	doctorID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	code, err := h.codeSvc.Redeem(c.Request.Context(), req.Code, doctorID)
	if err != nil {
		h.handleCodeError(c, err)
		return
	}

	response.OK(c, code)
}

// RevokeCode
// POST /api/v1/referral-codes/:id/revoke
func (h *ReferralCodeHandler) RevokeCode(c *gin.Context) {
	h.byID(c, h.codeSvc.Revoke)
}

// RetireCode
// POST /api/v1/referral-codes/:id/retire
func (h *ReferralCodeHandler) RetireCode(c *gin.Context) {
	h.byID(c, h.codeSvc.Retire)
}

// GetCode
// GET /api/v1/referral-codes/:id
func (h *ReferralCodeHandler) GetCode(c *gin.Context) {
	h.byID(c, h.codeSvc.Get)
}

// LookupCode find a code by its typed value
// GET /api/v1/referral-codes/lookup?code=
func (h *ReferralCodeHandler) LookupCode(c *gin.Context) {
	var q dto.LookupReferralCodeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, 20001, service.ErrInvalidCode.Error())
		return
	}

	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	code, err := h.codeSvc.Lookup(c.Request.Context(), q.Code, actor)
	if err != nil {
		h.handleCodeError(c, err)
		return
	}

	response.OK(c, code)
}

func (h *ReferralCodeHandler) byID(c *gin.Context, op func(ctx context.Context, codeID string, actor service.Actor) (*dto.ReferralCodeResponse, error)) {
	id, ok := MustGetUUIDParam(c, "id")
	if !ok {
		return
	}

	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	code, err := op(c.Request.Context(), id, actor)
	if err != nil {
		h.handleCodeError(c, err)
		return
	}

	response.OK(c, code)
}

func (h *ReferralCodeHandler) handleCodeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCode):
		response.BadRequest(c, 20001, err.Error())
	case errors.Is(err, service.ErrCodeNotFound):
		response.NotFound(c, 20002, err.Error())
	case errors.Is(err, service.ErrCodeUnavailable):
		response.Conflict(c, 20003, err.Error())
	case errors.Is(err, service.ErrDoctorAlreadyAttributed):
		response.Conflict(c, 20004, err.Error())
	case errors.Is(err, service.ErrCodeGenerationExhausted):
		response.Error(c, http.StatusInternalServerError, 20005, err.Error())
	case errors.Is(err, service.ErrCodeForbidden):
		response.Forbidden(c, 20006, err.Error())
	case errors.Is(err, service.ErrSalesRepRequired):
		response.BadRequest(c, 20007, err.Error())
	case errors.Is(err, service.ErrDoctorNotFound):
		response.NotFound(c, 20008, err.Error())
	default:
		response.FromError(c, err)
	}
}
