package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderReturn documents goods coming back from a completed order.
// RefundAmount is the credit granted to the customer and may differ from
// TotalAmount. The part that exceeds the order's remaining debt is
// CustomerCredit: it lowers Customer.TotalDebt without touching the order.
type OrderReturn struct {
	ID             uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Code           string            `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	OrderID        uuid.UUID         `gorm:"type:uuid;not null;index" json:"order_id"`
	CustomerID     uuid.UUID         `gorm:"type:uuid;not null;index" json:"customer_id"`
	UserID         *uuid.UUID        `gorm:"type:uuid;index" json:"user_id"`
	Items          []OrderReturnItem `gorm:"foreignKey:ReturnID" json:"items"`
	TotalAmount    decimal.Decimal   `gorm:"type:decimal(18,4);not null" json:"total_amount"`
	RefundAmount   decimal.Decimal   `gorm:"type:decimal(18,4);not null;default:0" json:"refund_amount"`
	CustomerCredit decimal.Decimal   `gorm:"type:decimal(18,4);not null;default:0" json:"customer_credit"`
	Reason         string            `gorm:"type:text" json:"reason"`
	CreatedAt      time.Time         `json:"created_at"`
}

type OrderReturnItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ReturnID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"return_id"`
	OrderItemID uuid.UUID       `gorm:"type:uuid;not null;index" json:"order_item_id"`
	ProductID   uuid.UUID       `gorm:"type:uuid;not null" json:"product_id"`
	Quantity    int             `gorm:"type:int;not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"unit_price"`
	Total       decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"total"`
}
