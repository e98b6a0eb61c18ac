package dto

// ── referral code module DTO ──

// IssueReferralCodeRequest issue a code. Sales reps may omit sales_rep_id.
type IssueReferralCodeRequest struct {
	SalesRepID       string `json:"sales_rep_id"       binding:"omitempty,uuid"`
	ReferrerDoctorID string `json:"referrer_doctor_id" binding:"omitempty,uuid"`
}

// RedeemReferralCodeRequest redeem a code during doctor onboarding
type RedeemReferralCodeRequest struct {
	Code string `json:"code" binding:"required,referral_code"`
}

// ListReferralCodesQuery GET /referral-codes
type ListReferralCodesQuery struct {
	SalesRepID string `form:"salesRepId" binding:"omitempty,uuid"`
}

// LookupReferralCodeQuery GET /referral-codes/lookup
type LookupReferralCodeQuery struct {
	Code string `form:"code" binding:"required,referral_code"`
}

// CodeHistoryResponse one audit event
type CodeHistoryResponse struct {
	Action  string `json:"action"`
	ActorID string `json:"actor_id"`
	At      string `json:"at"`
	Note    string `json:"note,omitempty"`
}

// ReferralCodeResponse referral code
type ReferralCodeResponse struct {
	ID               string                `json:"id"`
	SalesRepID       string                `json:"sales_rep_id"`
	Code             string                `json:"code"`
	Status           string                `json:"status"`
	ReferrerDoctorID *string               `json:"referrer_doctor_id,omitempty"`
	DoctorID         *string               `json:"doctor_id,omitempty"`
	IssuedAt         string                `json:"issued_at"`
	RedeemedAt       *string               `json:"redeemed_at,omitempty"`
	History          []CodeHistoryResponse `json:"history"`
}
