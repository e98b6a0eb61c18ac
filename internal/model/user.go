package model

import "time"

// Roles carried in bearer tokens
const (
	RoleDoctor    = "doctor"
	RoleSalesRep  = "sales_rep"
	RoleSalesLead = "sales_lead"
	RoleAdmin     = "admin"
)

// User account attribution row (users). Identity and credentials are owned by
// the storefront auth service; only the attribution columns are written here.
type User struct {
	UserID           string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"user_id"`
	Name             string    `gorm:"type:varchar(200);not null"                     json:"name"`
	Email            string    `gorm:"type:varchar(255);not null"                     json:"email"`
	Role             string    `gorm:"type:varchar(20);not null"                      json:"role"`
	SalesRepID       *string   `gorm:"type:uuid"                                      json:"sales_rep_id,omitempty"`
	ReferrerDoctorID *string   `gorm:"type:uuid"                                      json:"referrer_doctor_id,omitempty"`
	CreatedAt        time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
	UpdatedAt        time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"updated_at"`
}

// TableName table name
func (User) TableName() string { return "users" }
