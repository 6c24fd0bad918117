package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a sellable catalog item with one price column per PriceType.
// Stock is only changed through the stock ledger (import, adjust, return).
type Product struct {
	ID                uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SKU               string          `gorm:"type:varchar(100);uniqueIndex;not null" json:"sku"`
	Name              string          `gorm:"type:varchar(255);not null" json:"name"`
	Unit              string          `gorm:"type:varchar(50)" json:"unit"`
	WholesalePrice    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"wholesale_price"`
	MediumDealerPrice decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"medium_dealer_price"`
	LargeDealerPrice  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"large_dealer_price"`
	RetailPrice       decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"retail_price"`
	Stock             int             `gorm:"type:int;default:0;not null;check:stock >= 0" json:"stock"`
	MinStock          int             `gorm:"type:int;default:0;not null" json:"min_stock"`
	Active            bool            `gorm:"default:true;not null" json:"active"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// StockLogType enum simulation
type StockLogType string

const (
	StockLogImport StockLogType = "IMPORT"
	StockLogAdjust StockLogType = "ADJUST"
	StockLogReturn StockLogType = "RETURN"
)

// StockLog (thẻ kho) is the append-only audit trail of stock changes.
// The row with the highest Seq is the newest; its AfterQty always equals the
// product's current Stock. Seq orders rows written within the same instant.
type StockLog struct {
	ID        uuid.UUID    `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Seq       int64        `gorm:"autoIncrement;not null;uniqueIndex" json:"seq"`
	ProductID uuid.UUID    `gorm:"type:uuid;not null;index" json:"product_id"`
	Product   *Product     `gorm:"foreignKey:ProductID" json:"-"`
	Type      StockLogType `gorm:"type:varchar(10);not null" json:"type"`
	Quantity  int          `gorm:"type:int;not null" json:"quantity"` // signed delta
	BeforeQty int          `gorm:"type:int;not null" json:"before_qty"`
	AfterQty  int          `gorm:"type:int;not null" json:"after_qty"`
	UserID    *uuid.UUID   `gorm:"type:uuid;index" json:"user_id"`
	User      *User        `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Reference string       `gorm:"type:varchar(100)" json:"reference"` // order code for RETURN
	Note      string       `gorm:"type:text" json:"note"`
	CreatedAt time.Time    `gorm:"index" json:"created_at"`
}
