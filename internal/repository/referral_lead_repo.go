package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/model"
)

// LeadFilter role scope of a lead listing; empty fields do not filter
type LeadFilter struct {
	ReferrerDoctorID string
	SalesRepID       string
}

// ReferralLeadRepository referral lead access
type ReferralLeadRepository interface {
	Create(ctx context.Context, lead *model.ReferralLead) error
	GetByID(ctx context.Context, id string) (*model.ReferralLead, error)
	// GetByIDForUpdate locks the row; call on a transaction (Repository.WithTx)
	GetByIDForUpdate(ctx context.Context, id string) (*model.ReferralLead, error)
	// FindByAccountForUpdate newest lead linked to the contact's account, locked
	FindByAccountForUpdate(ctx context.Context, accountID string) (*model.ReferralLead, error)
	// FindByEmailForUpdate newest lead with the contact email (case-insensitive), locked
	FindByEmailForUpdate(ctx context.Context, email string) (*model.ReferralLead, error)
	List(ctx context.Context, filter LeadFilter) ([]model.ReferralLead, error)
	Update(ctx context.Context, lead *model.ReferralLead) error
	Delete(ctx context.Context, id string) error
}

type referralLeadRepo struct {
	db *gorm.DB
}

// NewReferralLeadRepo creates a ReferralLeadRepository
func NewReferralLeadRepo(db *gorm.DB) ReferralLeadRepository {
	return &referralLeadRepo{db: db}
}

func (r *referralLeadRepo) Create(ctx context.Context, lead *model.ReferralLead) error {
	return r.db.WithContext(ctx).Create(lead).Error
}

func (r *referralLeadRepo) GetByID(ctx context.Context, id string) (*model.ReferralLead, error) {
	var lead model.ReferralLead
	err := r.db.WithContext(ctx).
		Where("lead_id = ?", id).
		First(&lead).Error
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

func (r *referralLeadRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.ReferralLead, error) {
	var lead model.ReferralLead
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("lead_id = ?", id).
		First(&lead).Error
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

func (r *referralLeadRepo) FindByAccountForUpdate(ctx context.Context, accountID string) (*model.ReferralLead, error) {
	var lead model.ReferralLead
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("referred_contact_account_id = ?", accountID).
		Order("created_at DESC").
		First(&lead).Error
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

func (r *referralLeadRepo) FindByEmailForUpdate(ctx context.Context, email string) (*model.ReferralLead, error) {
	var lead model.ReferralLead
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("LOWER(referred_contact_email) = ?", strings.ToLower(strings.TrimSpace(email))).
		Order("created_at DESC").
		First(&lead).Error
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

func (r *referralLeadRepo) List(ctx context.Context, filter LeadFilter) ([]model.ReferralLead, error) {
	var leads []model.ReferralLead
	db := r.db.WithContext(ctx).Model(&model.ReferralLead{})
	if filter.ReferrerDoctorID != "" {
		db = db.Where("referrer_doctor_id = ?", filter.ReferrerDoctorID)
	}
	if filter.SalesRepID != "" {
		db = db.Where("sales_rep_id = ?", filter.SalesRepID)
	}
	err := db.Order("updated_at DESC").Find(&leads).Error
	return leads, err
}

func (r *referralLeadRepo) Update(ctx context.Context, lead *model.ReferralLead) error {
	return r.db.WithContext(ctx).Save(lead).Error
}

func (r *referralLeadRepo) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).
		Where("lead_id = ?", id).
		Delete(&model.ReferralLead{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
