package repository

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/model"
)

// ReferralCodeRepository referral code access. State changes are conditional
// updates; the returned row count tells the caller whether it won.
type ReferralCodeRepository interface {
	Create(ctx context.Context, code *model.ReferralCode) error
	GetByID(ctx context.Context, id string) (*model.ReferralCode, error)
	GetByCode(ctx context.Context, code string) (*model.ReferralCode, error)
	ListBySalesRep(ctx context.Context, salesRepID string) ([]model.ReferralCode, error)
	// Assign moves an available code to assigned for doctorID
	Assign(ctx context.Context, code, doctorID string, event model.CodeHistoryEvent) (int64, error)
	// Transition moves a code whose status is in from to the terminal status to
	Transition(ctx context.Context, id string, from []string, to string, event model.CodeHistoryEvent) (int64, error)
}

type referralCodeRepo struct {
	db *gorm.DB
}

// NewReferralCodeRepo creates a ReferralCodeRepository
func NewReferralCodeRepo(db *gorm.DB) ReferralCodeRepository {
	return &referralCodeRepo{db: db}
}

func (r *referralCodeRepo) Create(ctx context.Context, code *model.ReferralCode) error {
	return r.db.WithContext(ctx).Create(code).Error
}

func (r *referralCodeRepo) GetByID(ctx context.Context, id string) (*model.ReferralCode, error) {
	var code model.ReferralCode
	err := r.db.WithContext(ctx).
		Where("referral_code_id = ?", id).
		First(&code).Error
	if err != nil {
		return nil, err
	}
	return &code, nil
}

func (r *referralCodeRepo) GetByCode(ctx context.Context, code string) (*model.ReferralCode, error) {
	var rc model.ReferralCode
	err := r.db.WithContext(ctx).
		Where("code = ?", code).
		First(&rc).Error
	if err != nil {
		return nil, err
	}
	return &rc, nil
}

func (r *referralCodeRepo) ListBySalesRep(ctx context.Context, salesRepID string) ([]model.ReferralCode, error) {
	var codes []model.ReferralCode
	err := r.db.WithContext(ctx).
		Where("sales_rep_id = ?", salesRepID).
		Order("issued_at DESC").
		Find(&codes).Error
	return codes, err
}

func (r *referralCodeRepo) Assign(ctx context.Context, code, doctorID string, event model.CodeHistoryEvent) (int64, error) {
	entry, err := historyAppend(event)
	if err != nil {
		return 0, err
	}
	res := r.db.WithContext(ctx).
		Model(&model.ReferralCode{}).
		Where("code = ? AND status = ?", code, model.CodeStatusAvailable).
		Updates(map[string]interface{}{
			"status":      model.CodeStatusAssigned,
			"doctor_id":   doctorID,
			"redeemed_at": event.At,
			"history":     entry,
			"updated_at":  event.At,
			"updated_by":  doctorID,
		})
	return res.RowsAffected, res.Error
}

func (r *referralCodeRepo) Transition(ctx context.Context, id string, from []string, to string, event model.CodeHistoryEvent) (int64, error) {
	entry, err := historyAppend(event)
	if err != nil {
		return 0, err
	}
	res := r.db.WithContext(ctx).
		Model(&model.ReferralCode{}).
		Where("referral_code_id = ? AND status IN ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"history":    entry,
			"updated_at": time.Now(),
			"updated_by": event.ActorID,
		})
	return res.RowsAffected, res.Error
}

// historyAppend appends one event to the jsonb history array in place
func historyAppend(event model.CodeHistoryEvent) (interface{}, error) {
	b, err := json.Marshal([]model.CodeHistoryEvent{event})
	if err != nil {
		return nil, err
	}
	return gorm.Expr("history || ?::jsonb", string(b)), nil
}
