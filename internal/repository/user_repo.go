package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/model"
)

// UserRepository account attribution access
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	ListByIDs(ctx context.Context, ids []string) ([]model.User, error)
	// ListIDsBySalesReps ids of users attributed to any of the given reps
	ListIDsBySalesReps(ctx context.Context, salesRepIDs []string) ([]string, error)
	// SetAttribution stamps the rep and referring doctor on code redemption
	SetAttribution(ctx context.Context, userID string, salesRepID, referrerDoctorID *string) error
}

type userRepo struct {
	db *gorm.DB
}

// NewUserRepo creates a UserRepository
func NewUserRepo(db *gorm.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("user_id = ?", id).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) ListByIDs(ctx context.Context, ids []string) ([]model.User, error) {
	var users []model.User
	if len(ids) == 0 {
		return users, nil
	}
	err := r.db.WithContext(ctx).
		Where("user_id IN ?", ids).
		Find(&users).Error
	return users, err
}

func (r *userRepo) ListIDsBySalesReps(ctx context.Context, salesRepIDs []string) ([]string, error) {
	var ids []string
	if len(salesRepIDs) == 0 {
		return ids, nil
	}
	err := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("sales_rep_id IN ?", salesRepIDs).
		Pluck("user_id", &ids).Error
	return ids, err
}

func (r *userRepo) SetAttribution(ctx context.Context, userID string, salesRepID, referrerDoctorID *string) error {
	updates := map[string]interface{}{
		"sales_rep_id": salesRepID,
		"updated_at":   time.Now(),
	}
	if referrerDoctorID != nil {
		updates["referrer_doctor_id"] = referrerDoctorID
	}
	res := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("user_id = ?", userID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
