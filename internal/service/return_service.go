package service

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"salesledger/internal/apperr"
	"salesledger/internal/events"
	"salesledger/internal/model"
	"salesledger/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ReturnLineRequest struct {
	OrderItemID uuid.UUID `json:"order_item_id" binding:"required"`
	Quantity    int       `json:"quantity"`
}

type CreateReturnRequest struct {
	Items        []ReturnLineRequest `json:"items" binding:"dive"`
	RefundAmount decimal.Decimal     `json:"refund_amount"`
	Reason       string              `json:"reason"`
}

type ReturnService interface {
	CreateReturn(ctx context.Context, userID string, orderID uuid.UUID, req CreateReturnRequest) (*model.OrderReturn, error)
	ListReturns(ctx context.Context, orderID uuid.UUID) ([]model.OrderReturn, error)
}

type returnService struct {
	orderRepo    repository.OrderRepository
	customerRepo repository.CustomerRepository
	productRepo  repository.ProductRepository
	returnRepo   repository.ReturnRepository
	stockLogRepo repository.StockLogRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
	publisher    events.Publisher
	codeAttempts int
	newCode      codeFunc
}

func NewReturnService(
	orderRepo repository.OrderRepository,
	customerRepo repository.CustomerRepository,
	productRepo repository.ProductRepository,
	returnRepo repository.ReturnRepository,
	stockLogRepo repository.StockLogRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	publisher events.Publisher,
	codeAttempts int,
) ReturnService {
	return &returnService{
		orderRepo:    orderRepo,
		customerRepo: customerRepo,
		productRepo:  productRepo,
		returnRepo:   returnRepo,
		stockLogRepo: stockLogRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
		publisher:    publisher,
		codeAttempts: codeAttempts,
		newCode:      generateCode,
	}
}

// CreateReturn restocks the returned quantities and credits RefundAmount to
// the customer. The credit first pays down the order's remaining debt; any
// excess (e.g. on a fully paid order) is kept on the return as
// CustomerCredit. Returned quantities are checked cumulatively against every
// earlier return of the same order.
func (s *returnService) CreateReturn(ctx context.Context, userID string, orderID uuid.UUID, req CreateReturnRequest) (*model.OrderReturn, error) {
	if len(req.Items) == 0 {
		return nil, apperr.ConstraintViolation("return must have at least one item")
	}
	for i, line := range req.Items {
		if line.Quantity < 1 {
			return nil, apperr.ConstraintViolation("item %d: quantity must be at least 1", i+1)
		}
	}
	if req.RefundAmount.IsNegative() {
		return nil, apperr.ConstraintViolation("refund amount must not be negative")
	}
	uid := actorID(userID)

	var created *model.OrderReturn
	var order *model.Order
	var changes []StockChange
	err := runWithCode(ctx, s.txManager, s.codeAttempts, returnCodePrefix, s.newCode, func(txCtx context.Context, code string) error {
		var err error
		order, err = s.orderRepo.FindByIDForUpdate(txCtx, orderID)
		if err != nil {
			return lookupError(err, "order", orderID)
		}
		if order.Status != model.OrderStatusCompleted {
			return apperr.InvalidState("order %s is %s, returns require COMPLETED", order.Code, order.Status)
		}

		items := make(map[uuid.UUID]*model.OrderItem, len(order.Items))
		for i := range order.Items {
			items[order.Items[i].ID] = &order.Items[i]
		}
		requested := make(map[uuid.UUID]int, len(req.Items))
		for _, line := range req.Items {
			if _, ok := items[line.OrderItemID]; !ok {
				return apperr.NotFound("order item %s on order %s", line.OrderItemID, order.Code)
			}
			requested[line.OrderItemID] += line.Quantity
		}

		returned, err := s.returnRepo.ReturnedQuantities(txCtx, order.ID)
		if err != nil {
			return fmt.Errorf("failed to load previous returns: %w", err)
		}
		for itemID, qty := range requested {
			item := items[itemID]
			if returned[itemID]+qty > item.Quantity {
				return apperr.ConstraintViolation("line %d (%s): returning %d with %d already returned exceeds purchased %d",
					item.LineNo, item.ProductName, qty, returned[itemID], item.Quantity)
			}
		}
		orderCredit, customerCredit := splitRefund(req.RefundAmount, order.DebtAmount)

		ret := &model.OrderReturn{
			ID:             uuid.New(),
			Code:           code,
			OrderID:        order.ID,
			CustomerID:     order.CustomerID,
			UserID:         uid,
			RefundAmount:   req.RefundAmount,
			CustomerCredit: customerCredit,
			Reason:         req.Reason,
			Items:          make([]model.OrderReturnItem, 0, len(req.Items)),
		}
		total := decimal.Zero
		restock := make(map[uuid.UUID]int)
		for _, line := range req.Items {
			item := items[line.OrderItemID]
			lineTotal := item.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
			total = total.Add(lineTotal)
			ret.Items = append(ret.Items, model.OrderReturnItem{
				ID:          uuid.New(),
				ReturnID:    ret.ID,
				OrderItemID: item.ID,
				ProductID:   item.ProductID,
				Quantity:    line.Quantity,
				UnitPrice:   item.UnitPrice,
				Total:       lineTotal,
			})
			restock[item.ProductID] += line.Quantity
		}
		ret.TotalAmount = total

		if err := s.returnRepo.Create(txCtx, ret); err != nil {
			return fmt.Errorf("failed to create return: %w", err)
		}

		productIDs := make([]uuid.UUID, 0, len(restock))
		for id := range restock {
			productIDs = append(productIDs, id)
		}
		sort.Slice(productIDs, func(i, j int) bool { return bytes.Compare(productIDs[i][:], productIDs[j][:]) < 0 })

		changes = make([]StockChange, 0, len(productIDs))
		for _, id := range productIDs {
			product, err := s.productRepo.FindByIDForUpdate(txCtx, id)
			if err != nil {
				return lookupError(err, "product", id)
			}
			change, err := applyStockMove(txCtx, s.productRepo, s.stockLogRepo, product, stockMove{
				logType:   model.StockLogReturn,
				delta:     restock[id],
				userID:    uid,
				reference: order.Code,
				note:      fmt.Sprintf("Return %s", ret.Code),
			})
			if err != nil {
				return err
			}
			changes = append(changes, change)
		}

		if orderCredit.IsPositive() {
			if err := s.orderRepo.ApplyRefund(txCtx, order.ID, orderCredit); err != nil {
				return staleError(err)
			}
		}
		if req.RefundAmount.IsPositive() {
			if err := s.customerRepo.AdjustDebt(txCtx, order.CustomerID, req.RefundAmount.Neg()); err != nil {
				return fmt.Errorf("failed to update customer debt: %w", err)
			}
		}

		if err := writeAudit(txCtx, s.auditRepo, uid, model.ActionCreateReturn, ret.ID.String(), ret.Code, map[string]interface{}{
			"order_code":      order.Code,
			"total_amount":    ret.TotalAmount,
			"refund_amount":   ret.RefundAmount,
			"order_credit":    orderCredit,
			"customer_credit": customerCredit,
			"items":           len(ret.Items),
		}); err != nil {
			return err
		}

		created = ret
		return nil
	})
	if err != nil {
		logUnexpected("CreateReturn", req, err)
		return nil, err
	}

	evts := []events.Event{{Event: events.ReturnCreated, Data: map[string]interface{}{
		"return_id":       created.ID,
		"code":            created.Code,
		"order_id":        order.ID,
		"order_code":      order.Code,
		"customer_id":     order.CustomerID,
		"total_amount":    created.TotalAmount,
		"refund_amount":   created.RefundAmount,
		"customer_credit": created.CustomerCredit,
	}}}
	publish(ctx, s.publisher, append(evts, stockEvents(model.StockLogReturn, changes...)...)...)

	return created, nil
}

// splitRefund divides a refund into the part that pays down the order's
// remaining debt and the excess credited to the customer.
func splitRefund(refund, orderDebt decimal.Decimal) (orderCredit, customerCredit decimal.Decimal) {
	if !orderDebt.IsPositive() {
		return decimal.Zero, refund
	}
	orderCredit = decimal.Min(refund, orderDebt)
	return orderCredit, refund.Sub(orderCredit)
}

func (s *returnService) ListReturns(ctx context.Context, orderID uuid.UUID) ([]model.OrderReturn, error) {
	if _, err := s.orderRepo.FindByID(ctx, orderID); err != nil {
		return nil, lookupError(err, "order", orderID)
	}
	return s.returnRepo.ListByOrder(ctx, orderID)
}
