package model

import (
	"time"

	"gorm.io/datatypes"
)

// Referral code statuses. revoked and retired are terminal.
const (
	CodeStatusAvailable = "available"
	CodeStatusAssigned  = "assigned"
	CodeStatusRevoked   = "revoked"
	CodeStatusRetired   = "retired"
)

// Code history actions
const (
	CodeActionIssued   = "issued"
	CodeActionRedeemed = "redeemed"
	CodeActionRevoked  = "revoked"
	CodeActionRetired  = "retired"
)

// CodeHistoryEvent one entry of a code's audit trail
type CodeHistoryEvent struct {
	Action  string    `json:"action"`
	ActorID string    `json:"actor_id"`
	At      time.Time `json:"at"`
	Note    string    `json:"note,omitempty"`
}

// ReferralCode referral_codes
type ReferralCode struct {
	ReferralCodeID   string                               `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"referral_code_id"`
	SalesRepID       string                               `gorm:"type:uuid;not null"                             json:"sales_rep_id"`
	Code             string                               `gorm:"type:varchar(5);not null"                       json:"code"`
	Status           string                               `gorm:"type:varchar(20);not null;default:available"    json:"status"`
	ReferrerDoctorID *string                              `gorm:"type:uuid"                                      json:"referrer_doctor_id,omitempty"`
	DoctorID         *string                              `gorm:"type:uuid"                                      json:"doctor_id,omitempty"`
	IssuedAt         time.Time                            `gorm:"not null"                                       json:"issued_at"`
	RedeemedAt       *time.Time                           `json:"redeemed_at,omitempty"`
	History          datatypes.JSONSlice[CodeHistoryEvent] `gorm:"type:jsonb;not null;default:'[]'"               json:"history"`
	BaseModel
}

// TableName table name
func (ReferralCode) TableName() string { return "referral_codes" }

// IsTerminal reports whether the code can no longer change state
func (c *ReferralCode) IsTerminal() bool {
	return c.Status == CodeStatusRevoked || c.Status == CodeStatusRetired
}
