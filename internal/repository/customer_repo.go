package repository

import (
	"context"

	"salesledger/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CustomerRepository has no setter for TotalDebt: debt only moves through AdjustDebt.
type CustomerRepository interface {
	Create(ctx context.Context, customer *model.Customer) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Customer, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Customer, error)
	List(ctx context.Context, search string, page, limit int) ([]model.Customer, int64, error)
	AdjustDebt(ctx context.Context, id uuid.UUID, delta decimal.Decimal) error
	CreateGroup(ctx context.Context, group *model.CustomerGroup) error
	FindGroupByID(ctx context.Context, id uuid.UUID) (*model.CustomerGroup, error)
	ListGroups(ctx context.Context) ([]model.CustomerGroup, error)
}

type customerRepository struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) CustomerRepository {
	return &customerRepository{db: db}
}

func (r *customerRepository) Create(ctx context.Context, customer *model.Customer) error {
	return translateWriteError(GetDB(ctx, r.db).Omit("TotalDebt", "Group").Create(customer).Error)
}

func (r *customerRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Customer, error) {
	var customer model.Customer
	if err := GetDB(ctx, r.db).Preload("Group").First(&customer, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *customerRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Customer, error) {
	var customer model.Customer
	if err := GetDB(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&customer).Error; err != nil {
		return nil, err
	}
	if customer.GroupID != nil {
		group, err := r.FindGroupByID(ctx, *customer.GroupID)
		if err != nil {
			return nil, err
		}
		customer.Group = group
	}
	return &customer, nil
}

func (r *customerRepository) List(ctx context.Context, search string, page, limit int) ([]model.Customer, int64, error) {
	var customers []model.Customer
	var total int64

	query := GetDB(ctx, r.db).Model(&model.Customer{})
	if search != "" {
		query = query.Where("name ILIKE ? OR code ILIKE ? OR phone ILIKE ?", "%"+search+"%", "%"+search+"%", "%"+search+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.Preload("Group").Order("created_at DESC").Offset(offset).Limit(limit).Find(&customers).Error; err != nil {
		return nil, 0, err
	}

	return customers, total, nil
}

// AdjustDebt applies a relative change to total_debt in a single UPDATE.
func (r *customerRepository) AdjustDebt(ctx context.Context, id uuid.UUID, delta decimal.Decimal) error {
	if delta.IsZero() {
		return nil
	}
	result := GetDB(ctx, r.db).Model(&model.Customer{}).Where("id = ?", id).
		Update("total_debt", gorm.Expr("total_debt + ?", delta))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *customerRepository) CreateGroup(ctx context.Context, group *model.CustomerGroup) error {
	return translateWriteError(GetDB(ctx, r.db).Create(group).Error)
}

func (r *customerRepository) FindGroupByID(ctx context.Context, id uuid.UUID) (*model.CustomerGroup, error) {
	var group model.CustomerGroup
	if err := GetDB(ctx, r.db).First(&group, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

func (r *customerRepository) ListGroups(ctx context.Context) ([]model.CustomerGroup, error) {
	var groups []model.CustomerGroup
	if err := GetDB(ctx, r.db).Order("name ASC").Find(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}
