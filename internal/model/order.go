package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Order statuses. Every non-canceled order is qualifying.
const (
	OrderStatusPaid     = "paid"
	OrderStatusCanceled = "canceled"
)

// Order orders
type Order struct {
	OrderID                string          `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"order_id"`
	UserID                 string          `gorm:"type:uuid;not null"                             json:"user_id"`
	IdempotencyKey         *string         `gorm:"type:varchar(255)"                              json:"idempotency_key,omitempty"`
	Status                 string          `gorm:"type:varchar(20);not null;default:paid"         json:"status"`
	Currency               string          `gorm:"type:char(3);not null;default:USD"              json:"currency"`
	Subtotal               decimal.Decimal `gorm:"type:numeric(12,2);not null"                    json:"subtotal"`
	ShippingTotal          decimal.Decimal `gorm:"type:numeric(12,2);not null"                    json:"shipping_total"`
	TaxTotal               decimal.Decimal `gorm:"type:numeric(12,2);not null"                    json:"tax_total"`
	Total                  decimal.Decimal `gorm:"type:numeric(12,2);not null"                    json:"total"`
	ReferralCode           *string         `gorm:"type:varchar(5)"                                json:"referral_code,omitempty"`
	SalesRepID             *string         `gorm:"type:uuid"                                      json:"sales_rep_id,omitempty"`
	ShippingAddress        datatypes.JSON  `gorm:"type:jsonb"                                     json:"shipping_address,omitempty"`
	PhysicianCertification bool            `gorm:"not null;default:false"                         json:"physician_certification"`
	IsFirstOrder           bool            `gorm:"not null;default:false"                         json:"is_first_order"`
	CancelReason           *string         `gorm:"type:varchar(500)"                              json:"cancel_reason,omitempty"`
	CanceledAt             *time.Time      `json:"canceled_at,omitempty"`
	CreatedAt              time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
	UpdatedAt              time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"updated_at"`

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items"`
}

// TableName table name
func (Order) TableName() string { return "orders" }

// IsQualifying reports whether the order counts toward eligibility and sales
func (o *Order) IsQualifying() bool { return o.Status != OrderStatusCanceled }

// OrderItem order_items
type OrderItem struct {
	OrderItemID string          `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"order_item_id"`
	OrderID     string          `gorm:"type:uuid;not null"                             json:"order_id"`
	SKU         string          `gorm:"column:sku;type:varchar(100);not null"          json:"sku"`
	Name        string          `gorm:"type:varchar(255);not null"                     json:"name"`
	Quantity    int             `gorm:"not null"                                       json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(12,2);not null"                    json:"unit_price"`
	LineTotal   decimal.Decimal `gorm:"type:numeric(12,2);not null"                    json:"line_total"`
}

// TableName table name
func (OrderItem) TableName() string { return "order_items" }
