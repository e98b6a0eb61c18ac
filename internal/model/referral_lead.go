package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Lead kinds
const (
	LeadKindReferral    = "referral"
	LeadKindContactForm = "contact_form"
	LeadKindManual      = "manual"
)

// Lead statuses, in pipeline order. "nuture" is the literal stored and
// filtered on by existing dashboards and must not be corrected.
const (
	LeadStatusPending        = "pending"
	LeadStatusContactForm    = "contact_form"
	LeadStatusContacted      = "contacted"
	LeadStatusAccountCreated = "account_created"
	LeadStatusNurture        = "nuture"
	LeadStatusConverted      = "converted"
)

// LeadStatuses every accepted status, in pipeline order
var LeadStatuses = []string{
	LeadStatusPending,
	LeadStatusContactForm,
	LeadStatusContacted,
	LeadStatusAccountCreated,
	LeadStatusNurture,
	LeadStatusConverted,
}

// IsValidLeadStatus reports whether s is a known lead status
func IsValidLeadStatus(s string) bool {
	for _, v := range LeadStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// ReferralLead referral_leads: referrals, contact-form leads and manual prospects
type ReferralLead struct {
	LeadID                           string           `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"lead_id"`
	Kind                             string           `gorm:"type:varchar(20);not null"                      json:"kind"`
	ReferrerDoctorID                 *string          `gorm:"type:uuid"                                      json:"referrer_doctor_id,omitempty"`
	SalesRepID                       *string          `gorm:"type:uuid"                                      json:"sales_rep_id,omitempty"`
	ReferredContactName              string           `gorm:"type:varchar(200);not null"                     json:"referred_contact_name"`
	ReferredContactEmail             *string          `gorm:"type:varchar(255)"                              json:"referred_contact_email,omitempty"`
	ReferredContactPhone             *string          `gorm:"type:varchar(50)"                               json:"referred_contact_phone,omitempty"`
	Status                           string           `gorm:"type:varchar(20);not null"                      json:"status"`
	Notes                            *string          `gorm:"type:text"                                      json:"notes,omitempty"`
	ReferredContactHasAccount        bool             `gorm:"not null;default:false"                         json:"referred_contact_has_account"`
	ReferredContactAccountID         *string          `gorm:"type:uuid"                                      json:"referred_contact_account_id,omitempty"`
	ReferredContactTotalOrders       int              `gorm:"not null;default:0"                             json:"referred_contact_total_orders"`
	ReferredContactEligibleForCredit bool             `gorm:"not null;default:false"                         json:"referred_contact_eligible_for_credit"`
	CreditIssuedAt                   *time.Time       `json:"credit_issued_at,omitempty"`
	CreditIssuedAmount               *decimal.Decimal `gorm:"type:numeric(12,2)"                             json:"credit_issued_amount,omitempty"`
	CreditIssuedBy                   *string          `gorm:"type:uuid"                                      json:"credit_issued_by,omitempty"`
	BaseModel
}

// TableName table name
func (ReferralLead) TableName() string { return "referral_leads" }

// IsCredited reports whether the Crediting Authority already paid this lead
func (l *ReferralLead) IsCredited() bool { return l.CreditIssuedAt != nil }
