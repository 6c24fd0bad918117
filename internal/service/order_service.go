package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"salesledger/internal/apperr"
	"salesledger/internal/events"
	"salesledger/internal/logger"
	"salesledger/internal/model"
	"salesledger/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DTOs
type OrderLineRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Quantity  int       `json:"quantity"`
	// UnitPrice overrides the customer's tier price when set.
	UnitPrice *decimal.Decimal `json:"unit_price"`
}

type CreateOrderRequest struct {
	CustomerID uuid.UUID          `json:"customer_id" binding:"required"`
	Items      []OrderLineRequest `json:"items" binding:"dive"`
	Discount   decimal.Decimal    `json:"discount"`
	PaidAmount decimal.Decimal    `json:"paid_amount"`
	Note       string             `json:"note"`
	OrderDate  *time.Time         `json:"order_date"`
}

type UpdateOrderStatusRequest struct {
	Status model.OrderStatus `json:"status" binding:"required"`
}

const initialPaymentNote = "Paid at order creation"

type OrderService interface {
	CreateOrder(ctx context.Context, userID string, req CreateOrderRequest) (*model.Order, error)
	UpdateOrderStatus(ctx context.Context, userID string, orderID uuid.UUID, status model.OrderStatus) (*model.Order, error)
	CancelOrder(ctx context.Context, userID string, orderID uuid.UUID) error
	// CancelOwnPendingOrder is the sales-role cancel: only the creator may
	// cancel, and only while the order is PENDING.
	CancelOwnPendingOrder(ctx context.Context, userID string, orderID uuid.UUID) error
	GetOrder(ctx context.Context, orderID uuid.UUID) (*model.Order, error)
	ListOrders(ctx context.Context, filter repository.OrderFilter) ([]model.Order, int64, error)
}

type orderService struct {
	orderRepo    repository.OrderRepository
	customerRepo repository.CustomerRepository
	productRepo  repository.ProductRepository
	paymentRepo  repository.PaymentRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
	publisher    events.Publisher
	codeAttempts int
	newCode      codeFunc
}

func NewOrderService(
	orderRepo repository.OrderRepository,
	customerRepo repository.CustomerRepository,
	productRepo repository.ProductRepository,
	paymentRepo repository.PaymentRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	publisher events.Publisher,
	codeAttempts int,
) OrderService {
	return &orderService{
		orderRepo:    orderRepo,
		customerRepo: customerRepo,
		productRepo:  productRepo,
		paymentRepo:  paymentRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
		publisher:    publisher,
		codeAttempts: codeAttempts,
		newCode:      generateCode,
	}
}

func (s *orderService) CreateOrder(ctx context.Context, userID string, req CreateOrderRequest) (*model.Order, error) {
	if len(req.Items) == 0 {
		return nil, apperr.ConstraintViolation("order must have at least one item")
	}
	for i, line := range req.Items {
		if line.Quantity < 1 {
			return nil, apperr.ConstraintViolation("item %d: quantity must be at least 1", i+1)
		}
		if line.UnitPrice != nil && line.UnitPrice.IsNegative() {
			return nil, apperr.ConstraintViolation("item %d: unit price must not be negative", i+1)
		}
	}
	if req.Discount.IsNegative() {
		return nil, apperr.ConstraintViolation("discount must not be negative")
	}
	if req.PaidAmount.IsNegative() {
		return nil, apperr.ConstraintViolation("paid amount must not be negative")
	}

	uid := actorID(userID)
	orderDate := time.Now()
	if req.OrderDate != nil && !req.OrderDate.IsZero() {
		orderDate = *req.OrderDate
	}

	var created *model.Order
	err := runWithCode(ctx, s.txManager, s.codeAttempts, orderCodePrefix, s.newCode, func(txCtx context.Context, code string) error {
		customer, err := s.customerRepo.FindByID(txCtx, req.CustomerID)
		if err != nil {
			return lookupError(err, "customer", req.CustomerID)
		}
		priceType := customer.PriceType()

		order := &model.Order{
			ID:              uuid.New(),
			Code:            code,
			CustomerID:      customer.ID,
			CustomerName:    customer.Name,
			CustomerPhone:   customer.Phone,
			CustomerAddress: customer.Address,
			CreatedByID:     uid,
			Status:          model.OrderStatusPending,
			Discount:        req.Discount,
			PaidAmount:      req.PaidAmount,
			Note:            req.Note,
			OrderDate:       orderDate,
			Items:           make([]model.OrderItem, 0, len(req.Items)),
		}

		subtotal := decimal.Zero
		for i, line := range req.Items {
			product, err := s.productRepo.FindByID(txCtx, line.ProductID)
			if err != nil {
				return lookupError(err, "product", line.ProductID)
			}
			if !product.Active {
				return apperr.InvalidState("product %s (%s) is inactive", product.SKU, product.ID)
			}

			unitPrice := LinePrice(product, priceType, line.UnitPrice)
			lineTotal := unitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
			subtotal = subtotal.Add(lineTotal)

			order.Items = append(order.Items, model.OrderItem{
				ID:          uuid.New(),
				OrderID:     order.ID,
				LineNo:      i + 1,
				ProductID:   product.ID,
				ProductName: product.Name,
				Unit:        product.Unit,
				Quantity:    line.Quantity,
				UnitPrice:   unitPrice,
				Total:       lineTotal,
			})
		}

		if req.Discount.GreaterThan(subtotal) {
			return apperr.ConstraintViolation("discount %s exceeds subtotal %s", req.Discount, subtotal)
		}
		order.Subtotal = subtotal
		order.Total = subtotal.Sub(req.Discount)
		if req.PaidAmount.GreaterThan(order.Total) {
			return apperr.ConstraintViolation("paid amount %s exceeds total %s", req.PaidAmount, order.Total)
		}
		order.DebtAmount = order.Total.Sub(req.PaidAmount)

		if err := s.orderRepo.Create(txCtx, order); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		if order.DebtAmount.IsPositive() {
			if err := s.customerRepo.AdjustDebt(txCtx, customer.ID, order.DebtAmount); err != nil {
				return fmt.Errorf("failed to update customer debt: %w", err)
			}
		}

		if req.PaidAmount.IsPositive() {
			payment := &model.Payment{
				OrderID:     order.ID,
				CustomerID:  customer.ID,
				Amount:      req.PaidAmount,
				Method:      model.PaymentMethodCash,
				PaidAt:      orderDate,
				Note:        initialPaymentNote,
				CreatedByID: uid,
			}
			if err := s.paymentRepo.Create(txCtx, payment); err != nil {
				return fmt.Errorf("failed to record initial payment: %w", err)
			}
		}

		if err := writeAudit(txCtx, s.auditRepo, uid, model.ActionCreateOrder, order.ID.String(), order.Code, map[string]interface{}{
			"customer_id": customer.ID,
			"items":       len(order.Items),
			"subtotal":    order.Subtotal,
			"discount":    order.Discount,
			"total":       order.Total,
			"paid_amount": order.PaidAmount,
			"debt_amount": order.DebtAmount,
		}); err != nil {
			return err
		}

		order.Customer = customer
		created = order
		return nil
	})
	if err != nil {
		logUnexpected("CreateOrder", req, err)
		return nil, err
	}

	publish(ctx, s.publisher, events.Event{Event: events.OrderCreated, Data: orderEventData(created)})

	// The order is committed; a failed reload must not look like a failed create.
	loaded, err := s.orderRepo.FindByID(ctx, created.ID)
	if err != nil {
		logger.LogError("service", "CreateOrder", "reload after commit", created.Code, err)
		return created, nil
	}
	return loaded, nil
}

func (s *orderService) UpdateOrderStatus(ctx context.Context, userID string, orderID uuid.UUID, status model.OrderStatus) (*model.Order, error) {
	if !status.Valid() {
		return nil, apperr.ConstraintViolation("unknown order status %q", status)
	}
	if status == model.OrderStatusCancelled {
		if err := s.CancelOrder(ctx, userID, orderID); err != nil {
			return nil, err
		}
		return s.GetOrder(ctx, orderID)
	}

	uid := actorID(userID)
	var from model.OrderStatus
	var code string
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orderRepo.FindByIDForUpdate(txCtx, orderID)
		if err != nil {
			return lookupError(err, "order", orderID)
		}
		if !order.Status.CanTransitionTo(status) {
			return apperr.InvalidState("order %s cannot move from %s to %s", order.Code, order.Status, status)
		}
		from, code = order.Status, order.Code

		if err := s.orderRepo.UpdateStatus(txCtx, order.ID, order.Status, status); err != nil {
			return staleError(err)
		}
		return writeAudit(txCtx, s.auditRepo, uid, model.ActionUpdateOrderStatus, order.ID.String(), order.Code, map[string]interface{}{
			"from": from,
			"to":   status,
		})
	})
	if err != nil {
		logUnexpected("UpdateOrderStatus", orderID, err)
		return nil, err
	}

	publish(ctx, s.publisher, events.Event{Event: events.OrderStatusChanged, Data: map[string]interface{}{
		"order_id": orderID,
		"code":     code,
		"from":     from,
		"to":       status,
	}})

	return s.GetOrder(ctx, orderID)
}

func (s *orderService) CancelOrder(ctx context.Context, userID string, orderID uuid.UUID) error {
	return s.cancel(ctx, userID, orderID, nil)
}

func (s *orderService) CancelOwnPendingOrder(ctx context.Context, userID string, orderID uuid.UUID) error {
	uid := actorID(userID)
	return s.cancel(ctx, userID, orderID, func(order *model.Order) error {
		if uid == nil || order.CreatedByID == nil || *order.CreatedByID != *uid {
			return apperr.Forbidden("order %s was created by another user", order.Code)
		}
		if order.Status != model.OrderStatusPending {
			return apperr.InvalidState("order %s is %s, only PENDING orders can be cancelled by sales", order.Code, order.Status)
		}
		return nil
	})
}

// cancel runs check against the locked order before the generic transition rules.
func (s *orderService) cancel(ctx context.Context, userID string, orderID uuid.UUID, check func(*model.Order) error) error {
	uid := actorID(userID)
	var cancelled *model.Order
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orderRepo.FindByIDForUpdate(txCtx, orderID)
		if err != nil {
			return lookupError(err, "order", orderID)
		}
		if check != nil {
			if err := check(order); err != nil {
				return err
			}
		}
		if !order.Status.CanTransitionTo(model.OrderStatusCancelled) {
			return apperr.InvalidState("order %s is %s and cannot be cancelled", order.Code, order.Status)
		}

		if err := s.orderRepo.UpdateStatus(txCtx, order.ID, order.Status, model.OrderStatusCancelled); err != nil {
			return staleError(err)
		}
		if order.DebtAmount.IsPositive() {
			if err := s.customerRepo.AdjustDebt(txCtx, order.CustomerID, order.DebtAmount.Neg()); err != nil {
				return fmt.Errorf("failed to revert customer debt: %w", err)
			}
		}
		if err := writeAudit(txCtx, s.auditRepo, uid, model.ActionCancelOrder, order.ID.String(), order.Code, map[string]interface{}{
			"from":          order.Status,
			"reverted_debt": order.DebtAmount,
		}); err != nil {
			return err
		}

		order.Status = model.OrderStatusCancelled
		cancelled = order
		return nil
	})
	if err != nil {
		logUnexpected("CancelOrder", orderID, err)
		return err
	}

	publish(ctx, s.publisher, events.Event{Event: events.OrderCancelled, Data: orderEventData(cancelled)})
	return nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID uuid.UUID) (*model.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, lookupError(err, "order", orderID)
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter repository.OrderFilter) ([]model.Order, int64, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, apperr.ConstraintViolation("unknown order status %q", filter.Status)
	}
	filter.Page, filter.Limit = normalizePage(filter.Page, filter.Limit)
	return s.orderRepo.List(ctx, filter)
}

// staleError maps a lost compare-and-set to a retryable abort. Under the row
// lock this only happens when the lock was not honoured by the store.
func staleError(err error) error {
	if errors.Is(err, repository.ErrStaleRow) {
		return fmt.Errorf("%w: %v", apperr.ErrTransactionAborted, err)
	}
	return err
}

func orderEventData(order *model.Order) map[string]interface{} {
	return map[string]interface{}{
		"order_id":    order.ID,
		"code":        order.Code,
		"customer_id": order.CustomerID,
		"status":      order.Status,
		"total":       order.Total,
		"paid_amount": order.PaidAmount,
		"debt_amount": order.DebtAmount,
	}
}
