package persistence

import (
	"context"

	"github.com/erp/arap/internal/domain/finance"
	"github.com/erp/arap/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormCustomerCreditLimitRepository implements finance.CustomerCreditLimitRepository using GORM
type GormCustomerCreditLimitRepository struct {
	db *gorm.DB
}

// NewGormCustomerCreditLimitRepository creates a new GormCustomerCreditLimitRepository
func NewGormCustomerCreditLimitRepository(db *gorm.DB) *GormCustomerCreditLimitRepository {
	return &GormCustomerCreditLimitRepository{db: db}
}

// FindByCustomer finds the credit roll-up of a customer
func (r *GormCustomerCreditLimitRepository) FindByCustomer(ctx context.Context, customerID uuid.UUID) (*finance.CustomerCreditLimit, error) {
	return r.findOne(r.db.WithContext(ctx), customerID)
}

// FindByCustomerForUpdate finds the credit roll-up and locks its row
func (r *GormCustomerCreditLimitRepository) FindByCustomerForUpdate(ctx context.Context, customerID uuid.UUID) (*finance.CustomerCreditLimit, error) {
	return r.findOne(forUpdate(r.db.WithContext(ctx)), customerID)
}

func (r *GormCustomerCreditLimitRepository) findOne(db *gorm.DB, customerID uuid.UUID) (*finance.CustomerCreditLimit, error) {
	var model models.CustomerCreditLimitModel
	if err := db.First(&model, "customer_id = ?", customerID).Error; err != nil {
		return nil, translateError(err, "credit limit")
	}
	return model.ToDomain(), nil
}

// Save creates or updates the roll-up with an optimistic version check.
// Two first-time inserts for one customer collide on the unique customer_id.
func (r *GormCustomerCreditLimitRepository) Save(ctx context.Context, credit *finance.CustomerCreditLimit) error {
	return saveVersioned(ctx, r.db, credit, models.CustomerCreditLimitModelFromDomain(credit))
}

// GormSupplierBalanceRepository implements finance.SupplierBalanceRepository using GORM
type GormSupplierBalanceRepository struct {
	db *gorm.DB
}

// NewGormSupplierBalanceRepository creates a new GormSupplierBalanceRepository
func NewGormSupplierBalanceRepository(db *gorm.DB) *GormSupplierBalanceRepository {
	return &GormSupplierBalanceRepository{db: db}
}

func (r *GormSupplierBalanceRepository) FindBySupplier(ctx context.Context, supplierID uuid.UUID) (*finance.SupplierBalance, error) {
	return r.findOne(r.db.WithContext(ctx), supplierID)
}

func (r *GormSupplierBalanceRepository) FindBySupplierForUpdate(ctx context.Context, supplierID uuid.UUID) (*finance.SupplierBalance, error) {
	return r.findOne(forUpdate(r.db.WithContext(ctx)), supplierID)
}

func (r *GormSupplierBalanceRepository) findOne(db *gorm.DB, supplierID uuid.UUID) (*finance.SupplierBalance, error) {
	var model models.SupplierBalanceModel
	if err := db.First(&model, "supplier_id = ?", supplierID).Error; err != nil {
		return nil, translateError(err, "supplier balance")
	}
	return model.ToDomain(), nil
}

func (r *GormSupplierBalanceRepository) Save(ctx context.Context, balance *finance.SupplierBalance) error {
	return saveVersioned(ctx, r.db, balance, models.SupplierBalanceModelFromDomain(balance))
}

var (
	_ finance.CustomerCreditLimitRepository = (*GormCustomerCreditLimitRepository)(nil)
	_ finance.SupplierBalanceRepository     = (*GormSupplierBalanceRepository)(nil)
)
