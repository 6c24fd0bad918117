package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the order workflow state.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusApproved  OrderStatus = "APPROVED"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// orderTransitions lists every legal status move. CANCELLED and COMPLETED have
// no outgoing edges.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:  {OrderStatusApproved, OrderStatusCancelled},
	OrderStatusApproved: {OrderStatusCompleted, OrderStatusCancelled},
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusApproved, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether the order may move from s to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s OrderStatus) Terminal() bool {
	return len(orderTransitions[s]) == 0
}

// Order is a sales order. Customer fields are snapshotted at creation so the
// order stays readable after the customer record changes.
//
// Invariants: Total = Subtotal - Discount and
// PaidAmount + DebtAmount + RefundedAmount = Total.
type Order struct {
	ID              uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Code            string          `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	CustomerID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"customer_id"`
	Customer        *Customer       `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	CustomerName    string          `gorm:"type:varchar(255);not null" json:"customer_name"`
	CustomerPhone   string          `gorm:"type:varchar(50)" json:"customer_phone"`
	CustomerAddress string          `gorm:"type:text" json:"customer_address"`
	CreatedByID     *uuid.UUID      `gorm:"type:uuid;index" json:"created_by_id"`
	CreatedBy       *User           `gorm:"foreignKey:CreatedByID" json:"created_by,omitempty"`
	Status          OrderStatus     `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`
	Subtotal        decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"subtotal"`
	Discount        decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"discount"`
	Total           decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"total"`
	PaidAmount      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"paid_amount"`
	DebtAmount      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"debt_amount"`
	RefundedAmount  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"refunded_amount"`
	Note            string          `gorm:"type:text" json:"note"`
	OrderDate       time.Time       `gorm:"index" json:"order_date"`
	Items           []OrderItem     `gorm:"foreignKey:OrderID" json:"items"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// OrderItem is an immutable order line.
type OrderItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"order_id"`
	LineNo      int             `gorm:"type:int;not null" json:"line_no"`
	ProductID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"product_id"`
	ProductName string          `gorm:"type:varchar(255);not null" json:"product_name"`
	Unit        string          `gorm:"type:varchar(50)" json:"unit"`
	Quantity    int             `gorm:"type:int;not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"unit_price"`
	Total       decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"total"`
}
