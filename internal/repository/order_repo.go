package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/model"
)

// SalesByRepFilter window and exclusions of the sales aggregation.
// From is inclusive, To exclusive; nil means unbounded.
type SalesByRepFilter struct {
	From              *time.Time
	To                *time.Time
	ExcludeSalesRepID string
	ExcludeDoctorIDs  []string
}

// SalesByRepRow one aggregated row
type SalesByRepRow struct {
	SalesRepID   string
	SalesRepName string
	OrderCount   int64
	Revenue      decimal.Decimal
}

// OrderRepository order access
type OrderRepository interface {
	// LockUser serialises order intake of one user until the surrounding
	// transaction ends (pg_advisory_xact_lock)
	LockUser(ctx context.Context, userID string) error
	// CreateIdempotent inserts the order and its items. When the order carries
	// an idempotency key that the user already used, nothing is written and
	// created is false.
	CreateIdempotent(ctx context.Context, order *model.Order) (created bool, err error)
	GetByID(ctx context.Context, id string) (*model.Order, error)
	GetByUserAndKey(ctx context.Context, userID, key string) (*model.Order, error)
	CountQualifyingByUser(ctx context.Context, userID string) (int64, error)
	ListByUsers(ctx context.Context, userIDs []string) ([]model.Order, error)
	ListAll(ctx context.Context, offset, limit int) ([]model.Order, error)
	// Cancel marks a non-canceled order canceled; 0 rows means it already was
	Cancel(ctx context.Context, id, reason string, at time.Time) (int64, error)
	SalesByRep(ctx context.Context, filter SalesByRepFilter) ([]SalesByRepRow, error)
}

type orderRepo struct {
	db *gorm.DB
}

// NewOrderRepo creates an OrderRepository
func NewOrderRepo(db *gorm.DB) OrderRepository {
	return &orderRepo{db: db}
}

func (r *orderRepo) LockUser(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).
		Exec("SELECT pg_advisory_xact_lock(hashtext('order:' || ?))", userID).Error
}

func (r *orderRepo) CreateIdempotent(ctx context.Context, order *model.Order) (bool, error) {
	db := r.db.WithContext(ctx)

	if order.IdempotencyKey == nil {
		if err := db.Create(order).Error; err != nil {
			return false, err
		}
		return true, nil
	}

	res := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "idempotency_key"}},
		TargetWhere: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "idempotency_key IS NOT NULL"},
		}},
		DoNothing: true,
	}).Omit(clause.Associations).Create(order)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	if len(order.Items) > 0 {
		for i := range order.Items {
			order.Items[i].OrderID = order.OrderID
		}
		if err := db.Create(&order.Items).Error; err != nil {
			return false, err
		}
	}
	return true, nil
}

func (r *orderRepo) GetByID(ctx context.Context, id string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("order_id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepo) GetByUserAndKey(ctx context.Context, userID, key string) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepo) CountQualifyingByUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("user_id = ? AND status <> ?", userID, model.OrderStatusCanceled).
		Count(&n).Error
	return n, err
}

func (r *orderRepo) ListByUsers(ctx context.Context, userIDs []string) ([]model.Order, error) {
	var orders []model.Order
	if len(userIDs) == 0 {
		return orders, nil
	}
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("user_id IN ?", userIDs).
		Order("created_at DESC").
		Find(&orders).Error
	return orders, err
}

func (r *orderRepo) ListAll(ctx context.Context, offset, limit int) ([]model.Order, error) {
	var orders []model.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

func (r *orderRepo) Cancel(ctx context.Context, id, reason string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("order_id = ? AND status <> ?", id, model.OrderStatusCanceled).
		Updates(map[string]interface{}{
			"status":        model.OrderStatusCanceled,
			"cancel_reason": reason,
			"canceled_at":   at,
			"updated_at":    at,
		})
	return res.RowsAffected, res.Error
}

func (r *orderRepo) SalesByRep(ctx context.Context, filter SalesByRepFilter) ([]SalesByRepRow, error) {
	var rows []SalesByRepRow
	db := r.db.WithContext(ctx).
		Table("orders AS o").
		Select("o.sales_rep_id AS sales_rep_id, COALESCE(MAX(u.name), '') AS sales_rep_name, "+
			"COUNT(*) AS order_count, COALESCE(SUM(o.total), 0) AS revenue").
		Joins("LEFT JOIN users u ON u.user_id = o.sales_rep_id").
		Where("o.status <> ? AND o.sales_rep_id IS NOT NULL", model.OrderStatusCanceled)

	if filter.From != nil {
		db = db.Where("o.created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		db = db.Where("o.created_at < ?", *filter.To)
	}
	if filter.ExcludeSalesRepID != "" {
		db = db.Where("o.sales_rep_id <> ?", filter.ExcludeSalesRepID)
	}
	if len(filter.ExcludeDoctorIDs) > 0 {
		db = db.Where("o.user_id NOT IN ?", filter.ExcludeDoctorIDs)
	}

	err := db.Group("o.sales_rep_id").
		Order("revenue DESC, o.sales_rep_id ASC").
		Scan(&rows).Error
	return rows, err
}
