package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionCreateCustomer      = "CREATE_CUSTOMER"
	ActionCreateCustomerGroup = "CREATE_CUSTOMER_GROUP"
	ActionCreateProduct       = "CREATE_PRODUCT"
	ActionCreateOrder         = "CREATE_ORDER"
	ActionUpdateOrderStatus   = "UPDATE_ORDER_STATUS"
	ActionCancelOrder         = "CANCEL_ORDER"
	ActionRecordPayment       = "RECORD_PAYMENT"
	ActionCreateReturn        = "CREATE_RETURN"
	ActionImportStock         = "IMPORT_STOCK"
	ActionAdjustStock         = "ADJUST_STOCK"
)

// AuditLog tracks Who, What, and When for ledger changes
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // nil for system actions
	User       *User      `gorm:"foreignKey:UserID" json:"user"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"` // code or name
	Details    string     `gorm:"type:jsonb" json:"details"`
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}
