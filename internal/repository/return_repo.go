package repository

import (
	"context"

	"salesledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReturnRepository is append-only.
type ReturnRepository interface {
	// Create inserts the return together with its Items.
	Create(ctx context.Context, ret *model.OrderReturn) error
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]model.OrderReturn, error)
	// ReturnedQuantities sums returned quantity per order item across all returns of the order.
	ReturnedQuantities(ctx context.Context, orderID uuid.UUID) (map[uuid.UUID]int, error)
}

type returnRepository struct {
	db *gorm.DB
}

func NewReturnRepository(db *gorm.DB) ReturnRepository {
	return &returnRepository{db: db}
}

func (r *returnRepository) Create(ctx context.Context, ret *model.OrderReturn) error {
	return translateWriteError(GetDB(ctx, r.db).Create(ret).Error)
}

func (r *returnRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]model.OrderReturn, error) {
	var returns []model.OrderReturn
	if err := GetDB(ctx, r.db).Preload("Items").
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&returns).Error; err != nil {
		return nil, err
	}
	return returns, nil
}

func (r *returnRepository) ReturnedQuantities(ctx context.Context, orderID uuid.UUID) (map[uuid.UUID]int, error) {
	var rows []struct {
		OrderItemID uuid.UUID
		Quantity    int
	}
	if err := GetDB(ctx, r.db).Table("order_return_items").
		Select("order_return_items.order_item_id AS order_item_id, SUM(order_return_items.quantity) AS quantity").
		Joins("JOIN order_returns ON order_returns.id = order_return_items.return_id").
		Where("order_returns.order_id = ?", orderID).
		Group("order_return_items.order_item_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	returned := make(map[uuid.UUID]int, len(rows))
	for _, row := range rows {
		returned[row.OrderItemID] = row.Quantity
	}
	return returned, nil
}
