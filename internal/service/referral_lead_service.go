package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/config"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/dto"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/model"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/repository"
	pkgerrors "github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/pkg/errors"
)

// ── referral lead module errors ──

var (
	ErrLeadNotFound      = pkgerrors.New(pkgerrors.ErrNotFound, "referral lead not found")
	ErrLeadForbidden     = pkgerrors.New(pkgerrors.ErrForbidden, "not allowed to access this referral lead")
	ErrInvalidLeadStatus = pkgerrors.New(pkgerrors.ErrValidation, "unknown referral lead status")
	ErrIllegalTransition = pkgerrors.New(pkgerrors.ErrConflict, "status change moves the lead backwards in the pipeline")
	ErrLeadNotManual     = pkgerrors.New(pkgerrors.ErrConflict, "only manually entered prospects can be deleted")
)

// Dashboard buckets
const (
	bucketQueue    = "queue"
	bucketActive   = "active"
	bucketHistoric = "historic"
)

// ReferralLeadService merged pipeline of referrals, contact-form leads and
// manual prospects
type ReferralLeadService interface {
	CreateReferral(ctx context.Context, referrerDoctorID string, req *dto.CreateReferralRequest) (*dto.LeadResponse, error)
	CreateContactFormLead(ctx context.Context, req *dto.ContactFormRequest) (*dto.LeadResponse, error)
	CreateManualProspect(ctx context.Context, actor Actor, req *dto.CreateManualProspectRequest) (*dto.LeadResponse, error)
	// UpdateStatus never creates credit, including for "converted"
	UpdateStatus(ctx context.Context, leadID string, req *dto.UpdateLeadStatusRequest, actor Actor) (*dto.LeadResponse, error)
	RecordEligibility(ctx context.Context, leadID string, hasAccount bool, totalOrders int, accountID string) (*dto.LeadResponse, error)
	// RecordOrderEligibility refreshes the lead of an ordering user on the
	// caller's transaction. A user with no lead is not an error.
	RecordOrderEligibility(ctx context.Context, txRepo *repository.Repository, user *model.User, totalOrders int) error
	DeleteManualProspect(ctx context.Context, leadID string, actor Actor) error
	Dashboard(ctx context.Context, actor Actor) (*dto.LeadDashboardResponse, error)
	Get(ctx context.Context, leadID string, actor Actor) (*dto.LeadResponse, error)
}

type referralLeadService struct {
	repo       *repository.Repository
	policy     TransitionPolicy
	staleAfter time.Duration
	logger     *zap.Logger
}

// NewReferralLeadService creates a ReferralLeadService
func NewReferralLeadService(cfg *config.Config, repo *repository.Repository, logger *zap.Logger) ReferralLeadService {
	return &referralLeadService{
		repo:       repo,
		policy:     policyFor(cfg.Referral.EnforceTransitions),
		staleAfter: cfg.Referral.DashboardStaleAfter,
		logger:     logger,
	}
}

// ────────────────────── Create ──────────────────────

func (s *referralLeadService) CreateReferral(ctx context.Context, referrerDoctorID string, req *dto.CreateReferralRequest) (*dto.LeadResponse, error) {
	var salesRepID *string
	doctor, err := s.repo.User.GetByID(ctx, referrerDoctorID)
	switch {
	case err == nil:
		salesRepID = doctor.SalesRepID
	case errors.Is(err, gorm.ErrRecordNotFound):
		// unattributed doctor: the lead waits for an admin to assign a rep
	default:
		s.logger.Error("load referring doctor failed", zap.String("doctor_id", referrerDoctorID), zap.Error(err))
		return nil, err
	}

	lead := &model.ReferralLead{
		LeadID:               uuid.NewString(),
		Kind:                 model.LeadKindReferral,
		ReferrerDoctorID:     &referrerDoctorID,
		SalesRepID:           salesRepID,
		ReferredContactName:  strings.TrimSpace(req.ContactName),
		ReferredContactEmail: normalizeEmail(req.ContactEmail),
		ReferredContactPhone: model.StrPtr(strings.TrimSpace(req.ContactPhone)),
		Status:               model.LeadStatusPending,
		Notes:                model.StrPtr(strings.TrimSpace(req.Notes)),
	}
	lead.CreatedBy = &referrerDoctorID
	lead.UpdatedBy = &referrerDoctorID

	return s.create(ctx, lead)
}

func (s *referralLeadService) CreateContactFormLead(ctx context.Context, req *dto.ContactFormRequest) (*dto.LeadResponse, error) {
	lead := &model.ReferralLead{
		LeadID:               uuid.NewString(),
		Kind:                 model.LeadKindContactForm,
		ReferredContactName:  strings.TrimSpace(req.Name),
		ReferredContactEmail: normalizeEmail(req.Email),
		ReferredContactPhone: model.StrPtr(strings.TrimSpace(req.Phone)),
		Status:               model.LeadStatusContactForm,
		Notes:                model.StrPtr(strings.TrimSpace(req.Message)),
	}
	return s.create(ctx, lead)
}

func (s *referralLeadService) CreateManualProspect(ctx context.Context, actor Actor, req *dto.CreateManualProspectRequest) (*dto.LeadResponse, error) {
	status := req.Status
	if status == "" {
		status = model.LeadStatusPending
	}
	if !model.IsValidLeadStatus(status) {
		return nil, ErrInvalidLeadStatus
	}

	var salesRepID *string
	switch actor.Role {
	case model.RoleSalesRep:
		if req.SalesRepID != "" && req.SalesRepID != actor.UserID {
			return nil, ErrLeadForbidden
		}
		salesRepID = &actor.UserID
	case model.RoleAdmin:
		salesRepID = model.StrPtr(req.SalesRepID)
	default:
		return nil, ErrLeadForbidden
	}

	lead := &model.ReferralLead{
		LeadID:               uuid.NewString(),
		Kind:                 model.LeadKindManual,
		SalesRepID:           salesRepID,
		ReferredContactName:  strings.TrimSpace(req.ContactName),
		ReferredContactEmail: normalizeEmail(req.ContactEmail),
		ReferredContactPhone: model.StrPtr(strings.TrimSpace(req.ContactPhone)),
		Status:               status,
		Notes:                model.StrPtr(strings.TrimSpace(req.Notes)),
	}
	lead.CreatedBy = &actor.UserID
	lead.UpdatedBy = &actor.UserID

	return s.create(ctx, lead)
}

func (s *referralLeadService) create(ctx context.Context, lead *model.ReferralLead) (*dto.LeadResponse, error) {
	now := time.Now()
	lead.CreatedAt = now
	lead.UpdatedAt = now

	if err := s.repo.ReferralLead.Create(ctx, lead); err != nil {
		s.logger.Error("create referral lead failed", zap.String("kind", lead.Kind), zap.Error(err))
		return nil, err
	}

	s.logger.Info("referral lead created",
		zap.String("lead_id", lead.LeadID),
		zap.String("kind", lead.Kind),
		zap.String("status", lead.Status),
	)
	return toLeadResponse(lead), nil
}

// ────────────────────── UpdateStatus ──────────────────────

func (s *referralLeadService) UpdateStatus(ctx context.Context, leadID string, req *dto.UpdateLeadStatusRequest, actor Actor) (*dto.LeadResponse, error) {
	if actor.Role != model.RoleSalesRep && actor.Role != model.RoleAdmin {
		return nil, ErrLeadForbidden
	}
	if !model.IsValidLeadStatus(req.Status) {
		return nil, ErrInvalidLeadStatus
	}

	lead, err := s.getScoped(ctx, leadID, actor)
	if err != nil {
		return nil, err
	}

	if !s.policy.Allow(lead.Status, req.Status) {
		return nil, ErrIllegalTransition
	}

	from := lead.Status
	lead.Status = req.Status
	if req.Notes != nil {
		lead.Notes = model.StrPtr(strings.TrimSpace(*req.Notes))
	}
	lead.UpdatedAt = time.Now()
	lead.UpdatedBy = &actor.UserID

	if err := s.repo.ReferralLead.Update(ctx, lead); err != nil {
		s.logger.Error("update referral lead status failed", zap.String("lead_id", leadID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("referral lead status changed",
		zap.String("lead_id", leadID),
		zap.String("from", from),
		zap.String("to", lead.Status),
		zap.String("actor_id", actor.UserID),
	)
	return toLeadResponse(lead), nil
}

// ────────────────────── RecordEligibility ──────────────────────

func (s *referralLeadService) RecordEligibility(ctx context.Context, leadID string, hasAccount bool, totalOrders int, accountID string) (*dto.LeadResponse, error) {
	var updated *model.ReferralLead
	err := runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		lead, err := txRepo.ReferralLead.GetByIDForUpdate(ctx, leadID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrLeadNotFound
			}
			return err
		}

		if err := s.storeEligibility(ctx, txRepo, lead, hasAccount, totalOrders, accountID); err != nil {
			return err
		}
		updated = lead
		return nil
	})
	if err != nil {
		return nil, err
	}
	return toLeadResponse(updated), nil
}

// RecordOrderEligibility finds the lead by linked account first and then by
// email
func (s *referralLeadService) RecordOrderEligibility(ctx context.Context, txRepo *repository.Repository, user *model.User, totalOrders int) error {
	lead, err := txRepo.ReferralLead.FindByAccountForUpdate(ctx, user.UserID)
	if errors.Is(err, gorm.ErrRecordNotFound) && user.Email != "" {
		lead, err = txRepo.ReferralLead.FindByEmailForUpdate(ctx, user.Email)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		s.logger.Error("find lead for order failed", zap.String("user_id", user.UserID), zap.Error(err))
		return err
	}
	return s.storeEligibility(ctx, txRepo, lead, true, totalOrders, user.UserID)
}

func (s *referralLeadService) storeEligibility(ctx context.Context, txRepo *repository.Repository, lead *model.ReferralLead, hasAccount bool, totalOrders int, accountID string) error {
	applyEligibility(lead, hasAccount, totalOrders, accountID)
	if err := txRepo.ReferralLead.Update(ctx, lead); err != nil {
		s.logger.Error("record lead eligibility failed", zap.String("lead_id", lead.LeadID), zap.Error(err))
		return err
	}
	return nil
}

// applyEligibility sets the eligibility snapshot. A lead that was already
// credited never becomes eligible again.
func applyEligibility(lead *model.ReferralLead, hasAccount bool, totalOrders int, accountID string) {
	if totalOrders < 0 {
		totalOrders = 0
	}
	lead.ReferredContactHasAccount = hasAccount
	lead.ReferredContactTotalOrders = totalOrders
	lead.ReferredContactEligibleForCredit = hasAccount && totalOrders >= 1 && !lead.IsCredited()
	if accountID != "" {
		lead.ReferredContactAccountID = &accountID
	}
	lead.UpdatedAt = time.Now()
}

// ────────────────────── Delete ──────────────────────

func (s *referralLeadService) DeleteManualProspect(ctx context.Context, leadID string, actor Actor) error {
	if actor.Role != model.RoleSalesRep && actor.Role != model.RoleAdmin {
		return ErrLeadForbidden
	}

	lead, err := s.getScoped(ctx, leadID, actor)
	if err != nil {
		return err
	}
	if lead.Kind != model.LeadKindManual {
		return ErrLeadNotManual
	}

	if err := s.repo.ReferralLead.Delete(ctx, leadID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrLeadNotFound
		}
		s.logger.Error("delete manual prospect failed", zap.String("lead_id", leadID), zap.Error(err))
		return err
	}

	s.logger.Info("manual prospect deleted", zap.String("lead_id", leadID), zap.String("actor_id", actor.UserID))
	return nil
}

// ────────────────────── Dashboard ──────────────────────

func (s *referralLeadService) Dashboard(ctx context.Context, actor Actor) (*dto.LeadDashboardResponse, error) {
	var filter repository.LeadFilter
	switch {
	case actor.Role == model.RoleDoctor:
		filter.ReferrerDoctorID = actor.UserID
	case actor.Role == model.RoleSalesRep:
		filter.SalesRepID = actor.UserID
	case actor.SeesAll():
	default:
		return nil, ErrLeadForbidden
	}

	leads, err := s.repo.ReferralLead.List(ctx, filter)
	if err != nil {
		s.logger.Error("list referral leads failed", zap.String("actor_id", actor.UserID), zap.Error(err))
		return nil, err
	}

	resp := &dto.LeadDashboardResponse{
		Queue:             []dto.LeadResponse{},
		Active:            []dto.LeadResponse{},
		Historic:          []dto.LeadResponse{},
		GeneratedAt:       formatTime(time.Now()),
		StaleAfterSeconds: int(s.staleAfter / time.Second),
	}
	for i := range leads {
		item := *toLeadResponse(&leads[i])
		switch classifyLead(&leads[i]) {
		case bucketHistoric:
			resp.Historic = append(resp.Historic, item)
		case bucketQueue:
			resp.Queue = append(resp.Queue, item)
		default:
			resp.Active = append(resp.Active, item)
		}
	}
	return resp, nil
}

// classifyLead assigns a lead to exactly one dashboard bucket
func classifyLead(lead *model.ReferralLead) string {
	if lead.IsCredited() ||
		(lead.Status == model.LeadStatusConverted && lead.ReferredContactTotalOrders > 0) {
		return bucketHistoric
	}
	if lead.Status == model.LeadStatusPending || lead.Status == model.LeadStatusContactForm {
		return bucketQueue
	}
	return bucketActive
}

// ────────────────────── Get ──────────────────────

func (s *referralLeadService) Get(ctx context.Context, leadID string, actor Actor) (*dto.LeadResponse, error) {
	lead, err := s.getScoped(ctx, leadID, actor)
	if err != nil {
		return nil, err
	}
	return toLeadResponse(lead), nil
}

// ── helpers ──

// getScoped loads a lead the actor may see: doctors their own referrals,
// reps the leads assigned to them, admins and sales leads everything
func (s *referralLeadService) getScoped(ctx context.Context, leadID string, actor Actor) (*model.ReferralLead, error) {
	lead, err := s.repo.ReferralLead.GetByID(ctx, leadID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLeadNotFound
		}
		s.logger.Error("get referral lead failed", zap.String("lead_id", leadID), zap.Error(err))
		return nil, err
	}

	switch {
	case actor.SeesAll():
		return lead, nil
	case actor.Role == model.RoleDoctor && model.StrVal(lead.ReferrerDoctorID) == actor.UserID:
		return lead, nil
	case actor.Role == model.RoleSalesRep && model.StrVal(lead.SalesRepID) == actor.UserID:
		return lead, nil
	}
	return nil, ErrLeadForbidden
}

func normalizeEmail(email string) *string {
	return model.StrPtr(strings.ToLower(strings.TrimSpace(email)))
}

func toLeadResponse(lead *model.ReferralLead) *dto.LeadResponse {
	var amount *string
	if lead.CreditIssuedAmount != nil {
		s := lead.CreditIssuedAmount.StringFixed(2)
		amount = &s
	}
	return &dto.LeadResponse{
		ID:                               lead.LeadID,
		Kind:                             lead.Kind,
		ReferrerDoctorID:                 lead.ReferrerDoctorID,
		SalesRepID:                       lead.SalesRepID,
		ReferredContactName:              lead.ReferredContactName,
		ReferredContactEmail:             lead.ReferredContactEmail,
		ReferredContactPhone:             lead.ReferredContactPhone,
		Status:                           lead.Status,
		Notes:                            lead.Notes,
		ReferredContactHasAccount:        lead.ReferredContactHasAccount,
		ReferredContactAccountID:         lead.ReferredContactAccountID,
		ReferredContactTotalOrders:       lead.ReferredContactTotalOrders,
		ReferredContactEligibleForCredit: lead.ReferredContactEligibleForCredit,
		CreditIssuedAt:                   formatTimePtr(lead.CreditIssuedAt),
		CreditIssuedAmount:               amount,
		CreditIssuedBy:                   lead.CreditIssuedBy,
		CreatedAt:                        formatTime(lead.CreatedAt),
		UpdatedAt:                        formatTime(lead.UpdatedAt),
	}
}
