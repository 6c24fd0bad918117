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
)

// DTOs
type StockImportRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Quantity  int       `json:"quantity"`
	Note      string    `json:"note"`
}

type BulkStockImportLine struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Quantity  int       `json:"quantity"`
}

type BulkStockImportRequest struct {
	Items []BulkStockImportLine `json:"items" binding:"dive"`
	Note  string                `json:"note"`
}

type StockAdjustRequest struct {
	ProductID   uuid.UUID `json:"product_id" binding:"required"`
	NewQuantity *int      `json:"new_quantity" binding:"required"`
	Note        string    `json:"note"`
}

// StockChange reports one applied stock movement.
type StockChange struct {
	ProductID uuid.UUID `json:"product_id"`
	Before    int       `json:"before"`
	After     int       `json:"after"`
	Delta     int       `json:"delta"`
	// Low is set when After dropped below the product's MinStock.
	Low bool `json:"low"`
}

type StockService interface {
	ImportStock(ctx context.Context, userID string, req StockImportRequest) (StockChange, error)
	BulkImportStock(ctx context.Context, userID string, req BulkStockImportRequest) ([]StockChange, error)
	AdjustStock(ctx context.Context, userID string, req StockAdjustRequest) (StockChange, error)
	ListStockLogs(ctx context.Context, productID uuid.UUID, page, limit int) ([]model.StockLog, int64, error)
	ExportStockLogs(ctx context.Context, productID uuid.UUID) (*StockLogExport, error)
}

type stockService struct {
	productRepo  repository.ProductRepository
	stockLogRepo repository.StockLogRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
	publisher    events.Publisher
}

func NewStockService(
	productRepo repository.ProductRepository,
	stockLogRepo repository.StockLogRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	publisher events.Publisher,
) StockService {
	return &stockService{
		productRepo:  productRepo,
		stockLogRepo: stockLogRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
		publisher:    publisher,
	}
}

// stockMove is one stock log entry to apply to a product locked by the caller.
type stockMove struct {
	logType   model.StockLogType
	delta     int
	userID    *uuid.UUID
	reference string
	note      string
}

// applyStockMove writes the new absolute stock and its log entry, and keeps
// product.Stock in sync so repeated moves on the same product chain correctly.
func applyStockMove(ctx context.Context, productRepo repository.ProductRepository, logRepo repository.StockLogRepository, product *model.Product, move stockMove) (StockChange, error) {
	before := product.Stock
	after := before + move.delta
	if after < 0 {
		return StockChange{}, apperr.ConstraintViolation("stock of %s would become negative (%d %+d)", product.SKU, before, move.delta)
	}

	if err := productRepo.UpdateStock(ctx, product.ID, after); err != nil {
		return StockChange{}, fmt.Errorf("failed to update stock of %s: %w", product.SKU, err)
	}
	entry := &model.StockLog{
		ProductID: product.ID,
		Type:      move.logType,
		Quantity:  move.delta,
		BeforeQty: before,
		AfterQty:  after,
		UserID:    move.userID,
		Reference: move.reference,
		Note:      move.note,
	}
	if err := logRepo.Create(ctx, entry); err != nil {
		return StockChange{}, fmt.Errorf("failed to write stock log: %w", err)
	}

	product.Stock = after
	return StockChange{
		ProductID: product.ID,
		Before:    before,
		After:     after,
		Delta:     move.delta,
		Low:       after < product.MinStock,
	}, nil
}

func (s *stockService) ImportStock(ctx context.Context, userID string, req StockImportRequest) (StockChange, error) {
	if req.Quantity <= 0 {
		return StockChange{}, apperr.ConstraintViolation("import quantity must be greater than zero")
	}
	uid := actorID(userID)

	var change StockChange
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		product, err := s.productRepo.FindByIDForUpdate(txCtx, req.ProductID)
		if err != nil {
			return lookupError(err, "product", req.ProductID)
		}
		change, err = applyStockMove(txCtx, s.productRepo, s.stockLogRepo, product, stockMove{
			logType: model.StockLogImport,
			delta:   req.Quantity,
			userID:  uid,
			note:    req.Note,
		})
		if err != nil {
			return err
		}
		return writeAudit(txCtx, s.auditRepo, uid, model.ActionImportStock, product.ID.String(), product.SKU, change)
	})
	if err != nil {
		logUnexpected("ImportStock", req, err)
		return StockChange{}, err
	}

	publish(ctx, s.publisher, stockEvents(model.StockLogImport, change)...)
	return change, nil
}

// BulkImportStock locks every product in ascending id order before touching
// any of them, so concurrent batches cannot deadlock and a missing product
// rejects the batch before any write.
func (s *stockService) BulkImportStock(ctx context.Context, userID string, req BulkStockImportRequest) ([]StockChange, error) {
	if len(req.Items) == 0 {
		return nil, apperr.ConstraintViolation("bulk import must have at least one item")
	}
	for i, line := range req.Items {
		if line.Quantity <= 0 {
			return nil, apperr.ConstraintViolation("item %d: import quantity must be greater than zero", i+1)
		}
	}
	uid := actorID(userID)

	ids := make([]uuid.UUID, 0, len(req.Items))
	seen := make(map[uuid.UUID]bool, len(req.Items))
	for _, line := range req.Items {
		if !seen[line.ProductID] {
			seen[line.ProductID] = true
			ids = append(ids, line.ProductID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })

	var changes []StockChange
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		products := make(map[uuid.UUID]*model.Product, len(ids))
		for _, id := range ids {
			product, err := s.productRepo.FindByIDForUpdate(txCtx, id)
			if err != nil {
				return lookupError(err, "product", id)
			}
			products[id] = product
		}

		changes = make([]StockChange, 0, len(req.Items))
		for _, line := range req.Items {
			change, err := applyStockMove(txCtx, s.productRepo, s.stockLogRepo, products[line.ProductID], stockMove{
				logType: model.StockLogImport,
				delta:   line.Quantity,
				userID:  uid,
				note:    req.Note,
			})
			if err != nil {
				return err
			}
			changes = append(changes, change)
		}

		return writeAudit(txCtx, s.auditRepo, uid, model.ActionImportStock, "", "bulk", map[string]interface{}{
			"lines":   len(req.Items),
			"changes": changes,
		})
	})
	if err != nil {
		logUnexpected("BulkImportStock", req, err)
		return nil, err
	}

	publish(ctx, s.publisher, stockEvents(model.StockLogImport, changes...)...)
	return changes, nil
}

func (s *stockService) AdjustStock(ctx context.Context, userID string, req StockAdjustRequest) (StockChange, error) {
	if req.NewQuantity == nil {
		return StockChange{}, apperr.ConstraintViolation("new quantity is required")
	}
	if *req.NewQuantity < 0 {
		return StockChange{}, apperr.ConstraintViolation("new quantity must not be negative")
	}
	uid := actorID(userID)

	var change StockChange
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		product, err := s.productRepo.FindByIDForUpdate(txCtx, req.ProductID)
		if err != nil {
			return lookupError(err, "product", req.ProductID)
		}
		change, err = applyStockMove(txCtx, s.productRepo, s.stockLogRepo, product, stockMove{
			logType: model.StockLogAdjust,
			delta:   *req.NewQuantity - product.Stock,
			userID:  uid,
			note:    req.Note,
		})
		if err != nil {
			return err
		}
		return writeAudit(txCtx, s.auditRepo, uid, model.ActionAdjustStock, product.ID.String(), product.SKU, change)
	})
	if err != nil {
		logUnexpected("AdjustStock", req, err)
		return StockChange{}, err
	}

	publish(ctx, s.publisher, stockEvents(model.StockLogAdjust, change)...)
	return change, nil
}

func (s *stockService) ListStockLogs(ctx context.Context, productID uuid.UUID, page, limit int) ([]model.StockLog, int64, error) {
	if _, err := s.productRepo.FindByID(ctx, productID); err != nil {
		return nil, 0, lookupError(err, "product", productID)
	}
	page, limit = normalizePage(page, limit)
	return s.stockLogRepo.ListByProduct(ctx, productID, page, limit)
}

func stockEvents(logType model.StockLogType, changes ...StockChange) []events.Event {
	evts := make([]events.Event, 0, len(changes))
	for _, c := range changes {
		data := map[string]interface{}{
			"product_id": c.ProductID,
			"type":       logType,
			"before":     c.Before,
			"after":      c.After,
			"delta":      c.Delta,
		}
		evts = append(evts, events.Event{Event: events.StockChanged, Data: data})
		if c.Low {
			evts = append(evts, events.Event{Event: events.StockLow, Data: data})
		}
	}
	return evts
}
