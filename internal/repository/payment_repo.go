package repository

import (
	"context"

	"salesledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaymentRepository is append-only.
type PaymentRepository interface {
	Create(ctx context.Context, payment *model.Payment) error
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]model.Payment, error)
}

type paymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(ctx context.Context, payment *model.Payment) error {
	return GetDB(ctx, r.db).Create(payment).Error
}

func (r *paymentRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]model.Payment, error) {
	var payments []model.Payment
	if err := GetDB(ctx, r.db).Where("order_id = ?", orderID).Order("paid_at ASC, created_at ASC").Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}
