package handler

import "github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/service"

// Handler aggregate of every HTTP handler
type Handler struct {
	ReferralCode *ReferralCodeHandler
	ReferralLead *ReferralLeadHandler
	Ledger       *LedgerHandler
	Order        *OrderHandler
	Export       *ExportHandler
}

// NewHandler creates the Handler aggregate
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		ReferralCode: NewReferralCodeHandler(svc.ReferralCode),
		ReferralLead: NewReferralLeadHandler(svc.ReferralLead),
		Ledger:       NewLedgerHandler(svc.Ledger, svc.Crediting),
		Order:        NewOrderHandler(svc.Order),
		Export:       NewExportHandler(svc.Export),
	}
}
