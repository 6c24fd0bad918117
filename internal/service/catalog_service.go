package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"salesledger/internal/apperr"
	"salesledger/internal/model"
	"salesledger/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DTOs
type CreateProductRequest struct {
	SKU               string          `json:"sku" binding:"required"`
	Name              string          `json:"name" binding:"required"`
	Unit              string          `json:"unit"`
	WholesalePrice    decimal.Decimal `json:"wholesale_price"`
	MediumDealerPrice decimal.Decimal `json:"medium_dealer_price"`
	LargeDealerPrice  decimal.Decimal `json:"large_dealer_price"`
	RetailPrice       decimal.Decimal `json:"retail_price"`
	// InitialStock seeds the stock level; later changes go through the stock ledger.
	InitialStock int   `json:"initial_stock" binding:"gte=0"`
	MinStock     int   `json:"min_stock" binding:"gte=0"`
	Active       *bool `json:"active"`
}

type CreateCustomerGroupRequest struct {
	Name        string          `json:"name" binding:"required"`
	PriceType   model.PriceType `json:"price_type" binding:"required"`
	Description string          `json:"description"`
}

type CreateCustomerRequest struct {
	Code    string     `json:"code"`
	Name    string     `json:"name" binding:"required"`
	Phone   string     `json:"phone"`
	Email   string     `json:"email" binding:"omitempty,email"`
	Address string     `json:"address"`
	GroupID *uuid.UUID `json:"group_id"`
}

type CatalogService interface {
	CreateProduct(ctx context.Context, userID string, req CreateProductRequest) (*model.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*model.Product, error)
	ListProducts(ctx context.Context, search string, page, limit int) ([]model.Product, int64, error)

	CreateCustomerGroup(ctx context.Context, userID string, req CreateCustomerGroupRequest) (*model.CustomerGroup, error)
	ListCustomerGroups(ctx context.Context) ([]model.CustomerGroup, error)

	CreateCustomer(ctx context.Context, userID string, req CreateCustomerRequest) (*model.Customer, error)
	GetCustomer(ctx context.Context, id uuid.UUID) (*model.Customer, error)
	ListCustomers(ctx context.Context, search string, page, limit int) ([]model.Customer, int64, error)
}

type catalogService struct {
	productRepo  repository.ProductRepository
	customerRepo repository.CustomerRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
	codeAttempts int
	newCode      codeFunc
}

func NewCatalogService(
	productRepo repository.ProductRepository,
	customerRepo repository.CustomerRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	codeAttempts int,
) CatalogService {
	return &catalogService{
		productRepo:  productRepo,
		customerRepo: customerRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
		codeAttempts: codeAttempts,
		newCode:      generateCode,
	}
}

func (s *catalogService) CreateProduct(ctx context.Context, userID string, req CreateProductRequest) (*model.Product, error) {
	for name, price := range map[string]decimal.Decimal{
		"wholesale_price":     req.WholesalePrice,
		"medium_dealer_price": req.MediumDealerPrice,
		"large_dealer_price":  req.LargeDealerPrice,
		"retail_price":        req.RetailPrice,
	} {
		if price.IsNegative() {
			return nil, apperr.ConstraintViolation("%s must not be negative", name)
		}
	}
	if req.InitialStock < 0 || req.MinStock < 0 {
		return nil, apperr.ConstraintViolation("stock levels must not be negative")
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	product := &model.Product{
		ID:                uuid.New(),
		SKU:               strings.TrimSpace(req.SKU),
		Name:              req.Name,
		Unit:              req.Unit,
		WholesalePrice:    req.WholesalePrice,
		MediumDealerPrice: req.MediumDealerPrice,
		LargeDealerPrice:  req.LargeDealerPrice,
		RetailPrice:       req.RetailPrice,
		Stock:             req.InitialStock,
		MinStock:          req.MinStock,
		Active:            active,
	}

	uid := actorID(userID)
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.productRepo.Create(txCtx, product); err != nil {
			return fmt.Errorf("failed to create product: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, uid, model.ActionCreateProduct, product.ID.String(), product.SKU, req)
	})
	if err != nil {
		logUnexpected("CreateProduct", req, err)
		return nil, err
	}
	return product, nil
}

func (s *catalogService) GetProduct(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "product", id)
	}
	return product, nil
}

func (s *catalogService) ListProducts(ctx context.Context, search string, page, limit int) ([]model.Product, int64, error) {
	page, limit = normalizePage(page, limit)
	return s.productRepo.List(ctx, strings.TrimSpace(search), page, limit)
}

func (s *catalogService) CreateCustomerGroup(ctx context.Context, userID string, req CreateCustomerGroupRequest) (*model.CustomerGroup, error) {
	if !req.PriceType.Valid() {
		return nil, apperr.ConstraintViolation("unknown price type %q", req.PriceType)
	}
	group := &model.CustomerGroup{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(req.Name),
		PriceType:   req.PriceType,
		Description: req.Description,
	}

	uid := actorID(userID)
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.customerRepo.CreateGroup(txCtx, group); err != nil {
			return fmt.Errorf("failed to create customer group: %w", err)
		}
		return writeAudit(txCtx, s.auditRepo, uid, model.ActionCreateCustomerGroup, group.ID.String(), group.Name, req)
	})
	if err != nil {
		logUnexpected("CreateCustomerGroup", req, err)
		return nil, err
	}
	return group, nil
}

func (s *catalogService) ListCustomerGroups(ctx context.Context) ([]model.CustomerGroup, error) {
	return s.customerRepo.ListGroups(ctx)
}

// CreateCustomer generates a CUS-date-suffix code when none is supplied.
func (s *catalogService) CreateCustomer(ctx context.Context, userID string, req CreateCustomerRequest) (*model.Customer, error) {
	uid := actorID(userID)
	create := func(txCtx context.Context, code string) (*model.Customer, error) {
		customer := &model.Customer{
			ID:      uuid.New(),
			Code:    code,
			Name:    strings.TrimSpace(req.Name),
			Phone:   req.Phone,
			Email:   req.Email,
			Address: req.Address,
			GroupID: req.GroupID,
		}
		if req.GroupID != nil {
			group, err := s.customerRepo.FindGroupByID(txCtx, *req.GroupID)
			if err != nil {
				return nil, lookupError(err, "customer group", *req.GroupID)
			}
			customer.Group = group
		}
		if err := s.customerRepo.Create(txCtx, customer); err != nil {
			return nil, fmt.Errorf("failed to create customer: %w", err)
		}
		if err := writeAudit(txCtx, s.auditRepo, uid, model.ActionCreateCustomer, customer.ID.String(), customer.Code, req); err != nil {
			return nil, err
		}
		return customer, nil
	}

	var customer *model.Customer
	var err error
	if code := strings.TrimSpace(req.Code); code != "" {
		err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
			var createErr error
			customer, createErr = create(txCtx, code)
			return createErr
		})
		if errors.Is(err, repository.ErrDuplicateCode) {
			err = apperr.ConstraintViolation("customer code %s already exists", code)
		}
	} else {
		err = runWithCode(ctx, s.txManager, s.codeAttempts, "CUS", s.newCode, func(txCtx context.Context, code string) error {
			var createErr error
			customer, createErr = create(txCtx, code)
			return createErr
		})
	}
	if err != nil {
		logUnexpected("CreateCustomer", req, err)
		return nil, err
	}
	return customer, nil
}

func (s *catalogService) GetCustomer(ctx context.Context, id uuid.UUID) (*model.Customer, error) {
	customer, err := s.customerRepo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "customer", id)
	}
	return customer, nil
}

func (s *catalogService) ListCustomers(ctx context.Context, search string, page, limit int) ([]model.Customer, int64, error) {
	page, limit = normalizePage(page, limit)
	return s.customerRepo.List(ctx, strings.TrimSpace(search), page, limit)
}
