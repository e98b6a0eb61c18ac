package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ── order module DTO ──

// OrderItemRequest line item priced by the catalog collaborator
type OrderItemRequest struct {
	SKU       string          `json:"sku"        binding:"required,max=100"`
	Name      string          `json:"name"       binding:"omitempty,max=255"`
	Quantity  int             `json:"quantity"   binding:"required,min=1"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// ShippingAddress stored as jsonb with the order
type ShippingAddress struct {
	Name       string `json:"name"        binding:"omitempty,max=200"`
	Line1      string `json:"line1"       binding:"required,max=200"`
	Line2      string `json:"line2"       binding:"omitempty,max=200"`
	City       string `json:"city"        binding:"required,max=100"`
	State      string `json:"state"       binding:"omitempty,max=100"`
	PostalCode string `json:"postal_code" binding:"required,max=20"`
	Country    string `json:"country"     binding:"omitempty,len=2"`
}

// CreateOrderRequest POST /orders. Total, when sent, must match the
// recomputed total within the configured tolerance.
type CreateOrderRequest struct {
	Items                  []OrderItemRequest `json:"items"                   binding:"required,min=1,dive"`
	ShippingTotal          decimal.Decimal    `json:"shipping_total"`
	TaxTotal               *decimal.Decimal   `json:"tax_total"`
	Total                  *decimal.Decimal   `json:"total"`
	ReferralCode           string             `json:"referral_code"           binding:"omitempty,referral_code"`
	ShippingAddress        *ShippingAddress   `json:"shipping_address"`
	PhysicianCertification bool               `json:"physician_certification"`
}

// EstimateOrderRequest POST /orders/estimate
type EstimateOrderRequest struct {
	Items         []OrderItemRequest `json:"items"          binding:"required,min=1,dive"`
	ShippingTotal decimal.Decimal    `json:"shipping_total"`
	TaxTotal      *decimal.Decimal   `json:"tax_total"`
}

// OrderEstimateResponse computed totals
type OrderEstimateResponse struct {
	Subtotal      decimal.Decimal `json:"subtotal"`
	ShippingTotal decimal.Decimal `json:"shipping_total"`
	TaxTotal      decimal.Decimal `json:"tax_total"`
	Total         decimal.Decimal `json:"total"`
}

// CancelOrderRequest POST /orders/:orderId/cancel
type CancelOrderRequest struct {
	Reason string `json:"reason" binding:"omitempty,max=500"`
}

// OrderItemResponse line item
type OrderItemResponse struct {
	ID        string          `json:"id,omitempty"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// OrderResponse order projection. Source is "local" or "external".
type OrderResponse struct {
	ID                     string              `json:"id"`
	UserID                 string              `json:"user_id"`
	Status                 string              `json:"status"`
	Currency               string              `json:"currency"`
	Items                  []OrderItemResponse `json:"items"`
	Subtotal               decimal.Decimal     `json:"subtotal"`
	ShippingTotal          decimal.Decimal     `json:"shipping_total"`
	TaxTotal               decimal.Decimal     `json:"tax_total"`
	Total                  decimal.Decimal     `json:"total"`
	ReferralCode           *string             `json:"referral_code,omitempty"`
	SalesRepID             *string             `json:"sales_rep_id,omitempty"`
	ShippingAddress        *ShippingAddress    `json:"shipping_address,omitempty"`
	PhysicianCertification bool                `json:"physician_certification"`
	IsFirstOrder           bool                `json:"is_first_order"`
	CancelReason           *string             `json:"cancel_reason,omitempty"`
	CanceledAt             *string             `json:"canceled_at,omitempty"`
	CreatedAt              string              `json:"created_at"` // RFC3339 UTC, sorts lexically
	Source                 string              `json:"source"`
}

// SalesRepOrdersQuery GET /orders/sales-rep. Paging applies to scope=all.
type SalesRepOrdersQuery struct {
	PaginationRequest
	Scope                string   `form:"scope"                binding:"omitempty,oneof=mine all"`
	SalesRepID           string   `form:"salesRepId"           binding:"omitempty,uuid"`
	IncludeDoctors       *bool    `form:"includeDoctors"`
	IncludeSelfOrders    bool     `form:"includeSelfOrders"`
	AlternateSalesRepIDs []string `form:"alternateSalesRepIds" binding:"omitempty,dive,uuid"`
}

// SalesByRepQuery GET /sales-by-rep; dates are YYYY-MM-DD local calendar days
type SalesByRepQuery struct {
	ExcludeSalesRepID string   `form:"excludeSalesRepId" binding:"omitempty,uuid"`
	ExcludeDoctorIDs  []string `form:"excludeDoctorIds"`
	PeriodStart       string   `form:"periodStart"       binding:"omitempty,datetime=2006-01-02"`
	PeriodEnd         string   `form:"periodEnd"         binding:"omitempty,datetime=2006-01-02"`
	TimeZone          string   `form:"timeZone"          binding:"omitempty,timezone"`
}

// SalesByRepRow revenue attributed to one rep
type SalesByRepRow struct {
	SalesRepID   string          `json:"sales_rep_id"`
	SalesRepName string          `json:"sales_rep_name,omitempty"`
	OrderCount   int64           `json:"order_count"`
	Revenue      decimal.Decimal `json:"revenue"`
}

// SalesByRepResponse aggregation result
type SalesByRepResponse struct {
	Rows         []SalesByRepRow `json:"rows"`
	TotalOrders  int64           `json:"total_orders"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	PeriodStart  string          `json:"period_start,omitempty"`
	PeriodEnd    string          `json:"period_end,omitempty"`
	TimeZone     string          `json:"time_zone"`
}

// ── external storefront orders ──

// ExternalOrder strict shape of an order payload from the storefront
// collaborator. Payloads that fail validation are dropped.
type ExternalOrder struct {
	ID        string              `json:"id"         validate:"required,max=100"`
	UserID    string              `json:"user_id"    validate:"required"`
	Status    string              `json:"status"     validate:"required,oneof=paid canceled"`
	Currency  string              `json:"currency"   validate:"omitempty,len=3"`
	Total     decimal.Decimal     `json:"total"`
	Items     []ExternalOrderItem `json:"items"      validate:"dive"`
	CreatedAt time.Time           `json:"created_at" validate:"required"`
}

// ExternalOrderItem line item of an external order
type ExternalOrderItem struct {
	SKU       string          `json:"sku"      validate:"required"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity" validate:"min=1"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}
