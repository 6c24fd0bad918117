package service

import (
	"context"
	"fmt"
	"time"

	"salesledger/internal/apperr"
	"salesledger/internal/events"
	"salesledger/internal/model"
	"salesledger/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type RecordPaymentRequest struct {
	Amount      decimal.Decimal     `json:"amount"`
	Method      model.PaymentMethod `json:"method"`
	PaymentDate *time.Time          `json:"payment_date"`
	Note        string              `json:"note"`
}

type PaymentService interface {
	RecordPayment(ctx context.Context, userID string, orderID uuid.UUID, req RecordPaymentRequest) (*model.Payment, error)
	ListPayments(ctx context.Context, orderID uuid.UUID) ([]model.Payment, error)
}

type paymentService struct {
	orderRepo    repository.OrderRepository
	customerRepo repository.CustomerRepository
	paymentRepo  repository.PaymentRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
	publisher    events.Publisher
}

func NewPaymentService(
	orderRepo repository.OrderRepository,
	customerRepo repository.CustomerRepository,
	paymentRepo repository.PaymentRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	publisher events.Publisher,
) PaymentService {
	return &paymentService{
		orderRepo:    orderRepo,
		customerRepo: customerRepo,
		paymentRepo:  paymentRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
		publisher:    publisher,
	}
}

// RecordPayment applies amount against the order's debt. The debt check and
// the write happen under the order row lock, so concurrent payments cannot
// jointly overpay.
func (s *paymentService) RecordPayment(ctx context.Context, userID string, orderID uuid.UUID, req RecordPaymentRequest) (*model.Payment, error) {
	if !req.Amount.IsPositive() {
		return nil, apperr.ConstraintViolation("payment amount must be greater than zero")
	}
	if !req.Method.Valid() {
		return nil, apperr.ConstraintViolation("unknown payment method %q", req.Method)
	}

	uid := actorID(userID)
	paidAt := time.Now()
	if req.PaymentDate != nil && !req.PaymentDate.IsZero() {
		paidAt = *req.PaymentDate
	}

	var payment *model.Payment
	var order *model.Order
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		order, err = s.orderRepo.FindByIDForUpdate(txCtx, orderID)
		if err != nil {
			return lookupError(err, "order", orderID)
		}
		if order.Status == model.OrderStatusCancelled {
			return apperr.InvalidState("order %s is CANCELLED", order.Code)
		}
		if !order.DebtAmount.IsPositive() {
			return apperr.InvalidState("order %s has no outstanding debt", order.Code)
		}
		if req.Amount.GreaterThan(order.DebtAmount) {
			return apperr.ConstraintViolation("payment %s exceeds outstanding debt %s on order %s", req.Amount, order.DebtAmount, order.Code)
		}

		if err := s.orderRepo.ApplyPayment(txCtx, order.ID, req.Amount); err != nil {
			return staleError(err)
		}
		if err := s.customerRepo.AdjustDebt(txCtx, order.CustomerID, req.Amount.Neg()); err != nil {
			return fmt.Errorf("failed to update customer debt: %w", err)
		}

		payment = &model.Payment{
			OrderID:     order.ID,
			CustomerID:  order.CustomerID,
			Amount:      req.Amount,
			Method:      req.Method,
			PaidAt:      paidAt,
			Note:        req.Note,
			CreatedByID: uid,
		}
		if err := s.paymentRepo.Create(txCtx, payment); err != nil {
			return fmt.Errorf("failed to record payment: %w", err)
		}

		order.PaidAmount = order.PaidAmount.Add(req.Amount)
		order.DebtAmount = order.DebtAmount.Sub(req.Amount)

		return writeAudit(txCtx, s.auditRepo, uid, model.ActionRecordPayment, order.ID.String(), order.Code, map[string]interface{}{
			"payment_id":  payment.ID,
			"amount":      req.Amount,
			"method":      req.Method,
			"debt_amount": order.DebtAmount,
		})
	})
	if err != nil {
		logUnexpected("RecordPayment", orderID, err)
		return nil, err
	}

	publish(ctx, s.publisher, events.Event{Event: events.PaymentRecorded, Data: map[string]interface{}{
		"payment_id":  payment.ID,
		"order_id":    order.ID,
		"code":        order.Code,
		"customer_id": order.CustomerID,
		"amount":      payment.Amount,
		"method":      payment.Method,
		"paid_amount": order.PaidAmount,
		"debt_amount": order.DebtAmount,
	}})

	return payment, nil
}

func (s *paymentService) ListPayments(ctx context.Context, orderID uuid.UUID) ([]model.Payment, error) {
	if _, err := s.orderRepo.FindByID(ctx, orderID); err != nil {
		return nil, lookupError(err, "order", orderID)
	}
	return s.paymentRepo.ListByOrder(ctx, orderID)
}
