package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PriceType selects which product price column applies to a customer group.
type PriceType string

const (
	PriceTypeWholesale    PriceType = "WHOLESALE"
	PriceTypeMediumDealer PriceType = "MEDIUM_DEALER"
	PriceTypeLargeDealer  PriceType = "LARGE_DEALER"
	PriceTypeRetail       PriceType = "RETAIL"
)

// Valid reports whether p is one of the known price types.
func (p PriceType) Valid() bool {
	switch p {
	case PriceTypeWholesale, PriceTypeMediumDealer, PriceTypeLargeDealer, PriceTypeRetail:
		return true
	}
	return false
}

// CustomerGroup decides the price tier of its customers
type CustomerGroup struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"name"`
	PriceType   PriceType `gorm:"type:varchar(20);not null;default:'RETAIL'" json:"price_type"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Customer is a buyer. TotalDebt is maintained by the ledger only and always
// equals the sum of DebtAmount over the customer's non-cancelled orders minus
// the CustomerCredit of their returns. A negative balance is money owed to
// the customer.
type Customer struct {
	ID        uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Code      string          `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	Name      string          `gorm:"type:varchar(255);not null" json:"name"`
	Phone     string          `gorm:"type:varchar(50)" json:"phone"`
	Email     string          `gorm:"type:varchar(255)" json:"email"`
	Address   string          `gorm:"type:text" json:"address"`
	GroupID   *uuid.UUID      `gorm:"type:uuid;index" json:"group_id"`
	Group     *CustomerGroup  `gorm:"foreignKey:GroupID" json:"group,omitempty"`
	TotalDebt decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"total_debt"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	DeletedAt gorm.DeletedAt  `gorm:"index" json:"-"`
}

// PriceType returns the group's price type, RETAIL when the customer has no group.
func (c *Customer) PriceType() PriceType {
	if c == nil || c.Group == nil || c.Group.PriceType == "" {
		return PriceTypeRetail
	}
	return c.Group.PriceType
}
