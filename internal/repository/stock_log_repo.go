package repository

import (
	"context"

	"salesledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StockLogRepository is append-only.
type StockLogRepository interface {
	Create(ctx context.Context, log *model.StockLog) error
	ListByProduct(ctx context.Context, productID uuid.UUID, page, limit int) ([]model.StockLog, int64, error)
	AllByProduct(ctx context.Context, productID uuid.UUID) ([]model.StockLog, error)
}

type stockLogRepository struct {
	db *gorm.DB
}

func NewStockLogRepository(db *gorm.DB) StockLogRepository {
	return &stockLogRepository{db: db}
}

func (r *stockLogRepository) Create(ctx context.Context, log *model.StockLog) error {
	return GetDB(ctx, r.db).Create(log).Error
}

func (r *stockLogRepository) ListByProduct(ctx context.Context, productID uuid.UUID, page, limit int) ([]model.StockLog, int64, error) {
	var logs []model.StockLog
	var total int64

	query := GetDB(ctx, r.db).Model(&model.StockLog{}).Where("product_id = ?", productID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.Preload("User").Order("seq DESC").Offset(offset).Limit(limit).Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

// AllByProduct returns the full trail oldest first.
// Both listings order by seq; created_at can tie inside one transaction.
func (r *stockLogRepository) AllByProduct(ctx context.Context, productID uuid.UUID) ([]model.StockLog, error) {
	var logs []model.StockLog
	if err := GetDB(ctx, r.db).Preload("User").
		Where("product_id = ?", productID).
		Order("seq ASC").
		Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
