package dto

// ── referral lead module DTO ──

// CreateReferralRequest a doctor refers a contact
type CreateReferralRequest struct {
	ContactName  string `json:"contact_name"  binding:"required,min=1,max=200"`
	ContactEmail string `json:"contact_email" binding:"omitempty,email,max=255"`
	ContactPhone string `json:"contact_phone" binding:"omitempty,max=50"`
	Notes        string `json:"notes"         binding:"omitempty,max=2000"`
}

// ContactFormRequest public website contact form
type ContactFormRequest struct {
	Name    string `json:"name"    binding:"required,min=1,max=200"`
	Email   string `json:"email"   binding:"required_without=Phone,omitempty,email,max=255"`
	Phone   string `json:"phone"   binding:"required_without=Email,omitempty,max=50"`
	Message string `json:"message" binding:"omitempty,max=2000"`
}

// CreateManualProspectRequest a rep or admin enters a prospect by hand
type CreateManualProspectRequest struct {
	ContactName  string `json:"contact_name"  binding:"required,min=1,max=200"`
	ContactEmail string `json:"contact_email" binding:"omitempty,email,max=255"`
	ContactPhone string `json:"contact_phone" binding:"omitempty,max=50"`
	Status       string `json:"status"        binding:"omitempty"`
	SalesRepID   string `json:"sales_rep_id"  binding:"omitempty,uuid"`
	Notes        string `json:"notes"         binding:"omitempty,max=2000"`
}

// UpdateLeadStatusRequest PATCH /referral-leads/:id/status
type UpdateLeadStatusRequest struct {
	Status string  `json:"status" binding:"required"`
	Notes  *string `json:"notes"  binding:"omitempty,max=2000"`
}

// LeadResponse referral lead
type LeadResponse struct {
	ID                               string  `json:"id"`
	Kind                             string  `json:"kind"`
	ReferrerDoctorID                 *string `json:"referrer_doctor_id,omitempty"`
	SalesRepID                       *string `json:"sales_rep_id,omitempty"`
	ReferredContactName              string  `json:"referred_contact_name"`
	ReferredContactEmail             *string `json:"referred_contact_email,omitempty"`
	ReferredContactPhone             *string `json:"referred_contact_phone,omitempty"`
	Status                           string  `json:"status"`
	Notes                            *string `json:"notes,omitempty"`
	ReferredContactHasAccount        bool    `json:"referred_contact_has_account"`
	ReferredContactAccountID         *string `json:"referred_contact_account_id,omitempty"`
	ReferredContactTotalOrders       int     `json:"referred_contact_total_orders"`
	ReferredContactEligibleForCredit bool    `json:"referred_contact_eligible_for_credit"`
	CreditIssuedAt                   *string `json:"credit_issued_at,omitempty"`
	CreditIssuedAmount               *string `json:"credit_issued_amount,omitempty"`
	CreditIssuedBy                   *string `json:"credit_issued_by,omitempty"`
	CreatedAt                        string  `json:"created_at"`
	UpdatedAt                        string  `json:"updated_at"`
}

// LeadDashboardResponse role-scoped pipeline view. Clients poll; the view
// may lag writes by at most stale_after_seconds.
type LeadDashboardResponse struct {
	Queue             []LeadResponse `json:"queue"`
	Active            []LeadResponse `json:"active"`
	Historic          []LeadResponse `json:"historic"`
	GeneratedAt       string         `json:"generated_at"`
	StaleAfterSeconds int            `json:"stale_after_seconds"`
}
