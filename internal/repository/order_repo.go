package repository

import (
	"context"
	"fmt"

	"salesledger/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderFilter narrows order listings. CreatedByID is set by the HTTP layer
// for sales users, who only see their own orders.
type OrderFilter struct {
	Status      model.OrderStatus
	CustomerID  *uuid.UUID
	CreatedByID *uuid.UUID
	Page        int
	Limit       int
}

type OrderRepository interface {
	// Create inserts the order together with its Items.
	Create(ctx context.Context, order *model.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.OrderStatus) error
	ApplyPayment(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error
	ApplyRefund(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error
	List(ctx context.Context, filter OrderFilter) ([]model.Order, int64, error)
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	return translateWriteError(GetDB(ctx, r.db).Omit("Customer", "CreatedBy").Create(order).Error)
}

func (r *orderRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	var order model.Order
	if err := GetDB(ctx, r.db).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("line_no ASC") }).
		Preload("Customer").
		Preload("Customer.Group").
		Preload("CreatedBy").
		First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByIDForUpdate locks the order row; items are loaded without locking
// since they never change.
func (r *orderRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	db := GetDB(ctx, r.db)
	var order model.Order
	if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	if err := db.Where("order_id = ?", id).Order("line_no ASC").Find(&order.Items).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateStatus is a compare-and-set on the current status.
func (r *orderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.OrderStatus) error {
	result := GetDB(ctx, r.db).Model(&model.Order{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: order %s is no longer %s", ErrStaleRow, id, from)
	}
	return nil
}

// ApplyPayment moves amount from debt to paid, guarded so debt cannot go negative.
func (r *orderRepository) ApplyPayment(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	result := GetDB(ctx, r.db).Model(&model.Order{}).
		Where("id = ? AND debt_amount >= ?", id, amount).
		Updates(map[string]interface{}{
			"paid_amount": gorm.Expr("paid_amount + ?", amount),
			"debt_amount": gorm.Expr("debt_amount - ?", amount),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: order %s debt below %s", ErrStaleRow, id, amount)
	}
	return nil
}

// ApplyRefund moves amount from debt to refunded. Callers pass at most the
// debt read under the row lock; the excess of a refund is a customer credit
// and never reaches the order.
func (r *orderRepository) ApplyRefund(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	result := GetDB(ctx, r.db).Model(&model.Order{}).
		Where("id = ? AND debt_amount >= ?", id, amount).
		Updates(map[string]interface{}{
			"refunded_amount": gorm.Expr("refunded_amount + ?", amount),
			"debt_amount":     gorm.Expr("debt_amount - ?", amount),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: order %s debt below %s", ErrStaleRow, id, amount)
	}
	return nil
}

func (r *orderRepository) List(ctx context.Context, filter OrderFilter) ([]model.Order, int64, error) {
	var orders []model.Order
	var total int64

	query := GetDB(ctx, r.db).Model(&model.Order{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.CreatedByID != nil {
		query = query.Where("created_by_id = ?", *filter.CreatedByID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	if err := query.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("line_no ASC") }).
		Order("order_date DESC, created_at DESC").
		Offset(offset).Limit(filter.Limit).
		Find(&orders).Error; err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}
