package repository

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/model"
)

// LedgerTotals aggregate sums of one doctor's ledger
type LedgerTotals struct {
	Credits decimal.Decimal
	Debits  decimal.Decimal
}

// Available credits minus debits, not clamped
func (t LedgerTotals) Available() decimal.Decimal {
	return t.Credits.Sub(t.Debits)
}

// LedgerRepository append-only ledger access. There is no update or delete.
type LedgerRepository interface {
	// LockDoctor serialises ledger writers of one doctor until the
	// surrounding transaction ends (pg_advisory_xact_lock)
	LockDoctor(ctx context.Context, doctorID string) error
	Create(ctx context.Context, entry *model.CreditLedgerEntry) error
	GetByID(ctx context.Context, id string) (*model.CreditLedgerEntry, error)
	// ListByDoctor entries ordered by (issued_at, seq)
	ListByDoctor(ctx context.Context, doctorID string) ([]model.CreditLedgerEntry, error)
	Totals(ctx context.Context, doctorID string) (LedgerTotals, error)
	// Currency of the doctor's first entry, "" for an empty ledger
	Currency(ctx context.Context, doctorID string) (string, error)
	ExistsReversalOf(ctx context.Context, entryID string) (bool, error)
}

type ledgerRepo struct {
	db *gorm.DB
}

// NewLedgerRepo creates a LedgerRepository
func NewLedgerRepo(db *gorm.DB) LedgerRepository {
	return &ledgerRepo{db: db}
}

func (r *ledgerRepo) LockDoctor(ctx context.Context, doctorID string) error {
	return r.db.WithContext(ctx).
		Exec("SELECT pg_advisory_xact_lock(hashtext(?))", doctorID).Error
}

func (r *ledgerRepo) Create(ctx context.Context, entry *model.CreditLedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *ledgerRepo) GetByID(ctx context.Context, id string) (*model.CreditLedgerEntry, error) {
	var entry model.CreditLedgerEntry
	err := r.db.WithContext(ctx).
		Where("entry_id = ?", id).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *ledgerRepo) ListByDoctor(ctx context.Context, doctorID string) ([]model.CreditLedgerEntry, error) {
	var entries []model.CreditLedgerEntry
	err := r.db.WithContext(ctx).
		Where("doctor_id = ?", doctorID).
		Order("issued_at ASC, seq ASC").
		Find(&entries).Error
	return entries, err
}

func (r *ledgerRepo) Totals(ctx context.Context, doctorID string) (LedgerTotals, error) {
	var totals LedgerTotals
	err := r.db.WithContext(ctx).
		Model(&model.CreditLedgerEntry{}).
		Select(
			"COALESCE(SUM(CASE WHEN direction = ? THEN amount ELSE 0 END), 0) AS credits, "+
				"COALESCE(SUM(CASE WHEN direction = ? THEN amount ELSE 0 END), 0) AS debits",
			model.DirectionCredit, model.DirectionDebit,
		).
		Where("doctor_id = ?", doctorID).
		Scan(&totals).Error
	return totals, err
}

func (r *ledgerRepo) Currency(ctx context.Context, doctorID string) (string, error) {
	var currencies []string
	err := r.db.WithContext(ctx).
		Model(&model.CreditLedgerEntry{}).
		Where("doctor_id = ?", doctorID).
		Order("issued_at ASC, seq ASC").
		Limit(1).
		Pluck("currency", &currencies).Error
	if err != nil || len(currencies) == 0 {
		return "", err
	}
	return currencies[0], nil
}

func (r *ledgerRepo) ExistsReversalOf(ctx context.Context, entryID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.CreditLedgerEntry{}).
		Where("reverses_entry_id = ?", entryID).
		Count(&n).Error
	return n > 0, err
}
