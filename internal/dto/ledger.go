package dto

import "github.com/shopspring/decimal"

// ── credit ledger module DTO ──

// AppendLedgerEntryRequest admin manual adjustment or reversal
type AppendLedgerEntryRequest struct {
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"          binding:"omitempty,len=3,alpha"`
	Direction       string          `json:"direction"         binding:"required,oneof=credit debit"`
	Reason          string          `json:"reason"            binding:"required,oneof=manual_adjustment reversal"`
	Description     string          `json:"description"       binding:"omitempty,max=500"`
	OrderID         string          `json:"order_id"          binding:"omitempty,uuid"`
	ReversesEntryID string          `json:"reverses_entry_id" binding:"omitempty,uuid"`
}

// LedgerEntryResponse ledger entry
type LedgerEntryResponse struct {
	ID              string                 `json:"id"`
	Seq             int64                  `json:"seq,string"`
	DoctorID        string                 `json:"doctor_id"`
	SalesRepID      *string                `json:"sales_rep_id,omitempty"`
	ReferralID      *string                `json:"referral_id,omitempty"`
	OrderID         *string                `json:"order_id,omitempty"`
	ReversesEntryID *string                `json:"reverses_entry_id,omitempty"`
	Amount          decimal.Decimal        `json:"amount"`
	Currency        string                 `json:"currency"`
	Direction       string                 `json:"direction"`
	Reason          string                 `json:"reason"`
	Description     string                 `json:"description,omitempty"`
	FirstOrderBonus bool                   `json:"first_order_bonus"`
	IssuedAt        string                 `json:"issued_at"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}

// CreditAllocation FIFO state of one credit entry
type CreditAllocation struct {
	EntryID   string          `json:"entry_id"`
	Amount    decimal.Decimal `json:"amount"`
	Consumed  decimal.Decimal `json:"consumed"`
	Remaining decimal.Decimal `json:"remaining"`
	IsUsed    bool            `json:"is_used"`
}

// DebitAllocationPart share of a debit taken from one credit
type DebitAllocationPart struct {
	CreditEntryID string          `json:"credit_entry_id"`
	Amount        decimal.Decimal `json:"amount"`
}

// DebitAllocation FIFO breakdown of one debit entry
type DebitAllocation struct {
	EntryID     string                `json:"entry_id"`
	Amount      decimal.Decimal       `json:"amount"`
	Allocations []DebitAllocationPart `json:"allocations"`
	Unallocated decimal.Decimal       `json:"unallocated"`
}

// AllocationResponse audit allocation; informational only
type AllocationResponse struct {
	Credits []CreditAllocation `json:"credits"`
	Debits  []DebitAllocation  `json:"debits"`
}

// DoctorCreditSummaryResponse derived doctor balance
type DoctorCreditSummaryResponse struct {
	DoctorID          string                `json:"doctor_id"`
	Currency          string                `json:"currency"`
	TotalCredits      decimal.Decimal       `json:"total_credits"`
	TotalDebits       decimal.Decimal       `json:"total_debits"`
	AvailableCredits  decimal.Decimal       `json:"available_credits"`
	FirstOrderBonuses int                   `json:"first_order_bonuses"`
	Ledger            []LedgerEntryResponse `json:"ledger"`
	Allocation        AllocationResponse    `json:"allocation"`
	GeneratedAt       string                `json:"generated_at"`
}

// ── crediting authority DTO ──

// AddManualCreditRequest POST /credits/referral
type AddManualCreditRequest struct {
	DoctorID    string          `json:"doctor_id"   binding:"required,uuid"`
	ReferralID  string          `json:"referral_id" binding:"required,uuid"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description" binding:"omitempty,max=500"`
}

// ManualCreditResponse the issued entry and the stamped lead
type ManualCreditResponse struct {
	Entry LedgerEntryResponse `json:"entry"`
	Lead  LeadResponse        `json:"lead"`
}
