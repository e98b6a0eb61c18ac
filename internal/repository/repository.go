package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository aggregate of every repository
type Repository struct {
	db *gorm.DB

	User         UserRepository
	ReferralCode ReferralCodeRepository
	ReferralLead ReferralLeadRepository
	Ledger       LedgerRepository
	Order        OrderRepository
}

// NewRepository creates the aggregate
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:           db,
		User:         NewUserRepo(db),
		ReferralCode: NewReferralCodeRepo(db),
		ReferralLead: NewReferralLeadRepo(db),
		Ledger:       NewLedgerRepo(db),
		Order:        NewOrderRepo(db),
	}
}

// BeginTx starts a transaction. Returns (nil, nil) when the aggregate has no
// database (unit tests with in-memory repositories); callers must nil-check tx.
func (r *Repository) BeginTx(ctx context.Context) (*gorm.DB, error) {
	if r.db == nil {
		return nil, nil
	}
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return tx, nil
}

// WithTx returns a copy whose repositories all run on tx.
// A nil tx returns the receiver unchanged.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{
		db:           tx,
		User:         NewUserRepo(tx),
		ReferralCode: NewReferralCodeRepo(tx),
		ReferralLead: NewReferralLeadRepo(tx),
		Ledger:       NewLedgerRepo(tx),
		Order:        NewOrderRepo(tx),
	}
}
