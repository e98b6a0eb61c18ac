package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/dto"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/model"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/repository"
	pkgerrors "github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/pkg/errors"
)

// ── crediting authority errors ──

var (
	ErrCreditForbidden        = pkgerrors.New(pkgerrors.ErrForbidden, "only admins may issue referral credit")
	ErrReferralDoctorMismatch = pkgerrors.New(pkgerrors.ErrValidation, "referral belongs to a different doctor")
)

// CreditingService the only path that turns a referral into ledger credit.
// It is invoked by a human; nothing credits a referral automatically.
type CreditingService interface {
	AddManualCredit(ctx context.Context, actor Actor, req *dto.AddManualCreditRequest) (*dto.ManualCreditResponse, error)
}

type creditingService struct {
	repo   *repository.Repository
	ledger *ledgerService
	logger *zap.Logger
}

func newCreditingService(repo *repository.Repository, ledger *ledgerService, logger *zap.Logger) *creditingService {
	return &creditingService{repo: repo, ledger: ledger, logger: logger}
}

// ────────────────────── AddManualCredit ──────────────────────

func (s *creditingService) AddManualCredit(ctx context.Context, actor Actor, req *dto.AddManualCreditRequest) (*dto.ManualCreditResponse, error) {
	if !actor.IsAdmin() {
		return nil, ErrCreditForbidden
	}
	if _, err := centAmount(req.Amount); err != nil {
		return nil, err
	}

	var (
		entry *model.CreditLedgerEntry
		lead  *model.ReferralLead
	)

	unlock := s.ledger.locks.Lock(req.DoctorID)
	err := runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		var err error
		lead, err = txRepo.ReferralLead.GetByIDForUpdate(ctx, req.ReferralID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrLeadNotFound
			}
			return err
		}
		if lead.ReferrerDoctorID != nil && *lead.ReferrerDoctorID != req.DoctorID {
			return ErrReferralDoctorMismatch
		}
		if lead.IsCredited() {
			return ErrAlreadyCredited
		}

		description := strings.TrimSpace(req.Description)
		if description == "" {
			description = "Referral credit: " + lead.ReferredContactName
		}

		entry = &model.CreditLedgerEntry{
			DoctorID:        req.DoctorID,
			SalesRepID:      lead.SalesRepID,
			ReferralID:      &lead.LeadID,
			Amount:          req.Amount,
			Direction:       model.DirectionCredit,
			Reason:          model.ReasonReferralBonus,
			Description:     description,
			FirstOrderBonus: lead.ReferredContactTotalOrders >= 1,
			Metadata: datatypes.JSONMap{
				"source":               "crediting_authority",
				"lead_status":          lead.Status,
				"eligible_at_issue":    lead.ReferredContactEligibleForCredit,
				"has_account_at_issue": lead.ReferredContactHasAccount,
				"orders_at_issue":      lead.ReferredContactTotalOrders,
			},
			CreatedBy: &actor.UserID,
		}
		if err := s.ledger.appendLocked(ctx, txRepo, entry); err != nil {
			return err
		}

		now := time.Now()
		amount := entry.Amount
		lead.CreditIssuedAt = &now
		lead.CreditIssuedAmount = &amount
		lead.CreditIssuedBy = &actor.UserID
		lead.ReferredContactEligibleForCredit = false
		lead.UpdatedAt = now
		lead.UpdatedBy = &actor.UserID

		if err := txRepo.ReferralLead.Update(ctx, lead); err != nil {
			s.logger.Error("stamp lead credit failed", zap.String("lead_id", lead.LeadID), zap.Error(err))
			return err
		}
		return nil
	})
	unlock()
	if err != nil {
		return nil, err
	}

	s.ledger.invalidate(ctx, req.DoctorID)
	s.logger.Info("referral credited",
		zap.String("lead_id", lead.LeadID),
		zap.String("doctor_id", req.DoctorID),
		zap.String("entry_id", entry.EntryID),
		zap.String("amount", entry.Amount.String()),
		zap.Bool("first_order_bonus", entry.FirstOrderBonus),
		zap.String("actor_id", actor.UserID),
	)

	return &dto.ManualCreditResponse{
		Entry: *toLedgerEntryResponse(entry),
		Lead:  *toLeadResponse(lead),
	}, nil
}
