package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Entry directions
const (
	DirectionCredit = "credit"
	DirectionDebit  = "debit"
)

// Entry reasons
const (
	ReasonReferralBonus    = "referral_bonus"
	ReasonManualAdjustment = "manual_adjustment"
	ReasonReversal         = "reversal"
)

// CreditLedgerEntry credit_ledger_entries. Rows are never updated or deleted;
// corrections are new entries.
type CreditLedgerEntry struct {
	EntryID         string            `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"entry_id"`
	Seq             int64             `gorm:"not null"                                       json:"seq,string"`
	DoctorID        string            `gorm:"type:uuid;not null"                             json:"doctor_id"`
	SalesRepID      *string           `gorm:"type:uuid"                                      json:"sales_rep_id,omitempty"`
	ReferralID      *string           `gorm:"type:uuid"                                      json:"referral_id,omitempty"`
	OrderID         *string           `gorm:"type:uuid"                                      json:"order_id,omitempty"`
	ReversesEntryID *string           `gorm:"type:uuid"                                      json:"reverses_entry_id,omitempty"`
	Amount          decimal.Decimal   `gorm:"type:numeric(12,2);not null"                    json:"amount"`
	Currency        string            `gorm:"type:char(3);not null"                          json:"currency"`
	Direction       string            `gorm:"type:varchar(10);not null"                      json:"direction"`
	Reason          string            `gorm:"type:varchar(30);not null"                      json:"reason"`
	Description     string            `gorm:"type:text"                                      json:"description,omitempty"`
	FirstOrderBonus bool              `gorm:"not null;default:false"                         json:"first_order_bonus"`
	IssuedAt        time.Time         `gorm:"not null"                                       json:"issued_at"`
	Metadata        datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'"               json:"metadata,omitempty"`
	CreatedBy       *string           `gorm:"type:uuid"                                      json:"created_by,omitempty"`
	CreatedAt       time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

// TableName table name
func (CreditLedgerEntry) TableName() string { return "credit_ledger_entries" }

// IsCredit reports the entry direction
func (e *CreditLedgerEntry) IsCredit() bool { return e.Direction == DirectionCredit }
