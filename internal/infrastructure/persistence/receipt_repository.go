package persistence

import (
	"context"

	"github.com/erp/arap/internal/domain/finance"
	"github.com/erp/arap/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormCustomerPaymentReceiveRepository implements finance.CustomerPaymentReceiveRepository using GORM
type GormCustomerPaymentReceiveRepository struct {
	db *gorm.DB
}

// NewGormCustomerPaymentReceiveRepository creates a new GormCustomerPaymentReceiveRepository
func NewGormCustomerPaymentReceiveRepository(db *gorm.DB) *GormCustomerPaymentReceiveRepository {
	return &GormCustomerPaymentReceiveRepository{db: db}
}

// FindByID finds a receipt by its ID
func (r *GormCustomerPaymentReceiveRepository) FindByID(ctx context.Context, id uuid.UUID) (*finance.CustomerPaymentReceive, error) {
	return r.findOne(r.db.WithContext(ctx), "id = ?", id)
}

// FindByIDForUpdate finds a receipt and locks its row
func (r *GormCustomerPaymentReceiveRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*finance.CustomerPaymentReceive, error) {
	return r.findOne(forUpdate(r.db.WithContext(ctx)), "id = ?", id)
}

// FindByReceiptNumber finds a receipt by its document number
func (r *GormCustomerPaymentReceiveRepository) FindByReceiptNumber(ctx context.Context, number string) (*finance.CustomerPaymentReceive, error) {
	return r.findOne(r.db.WithContext(ctx), "receipt_number = ?", number)
}

func (r *GormCustomerPaymentReceiveRepository) findOne(db *gorm.DB, query string, arg any) (*finance.CustomerPaymentReceive, error) {
	var model models.CustomerPaymentReceiveModel
	if err := db.Where(query, arg).First(&model).Error; err != nil {
		return nil, translateError(err, "receipt")
	}
	return model.ToDomain(), nil
}

// FindByCustomer returns all live receipts of a customer, newest first
func (r *GormCustomerPaymentReceiveRepository) FindByCustomer(ctx context.Context, customerID uuid.UUID) ([]*finance.CustomerPaymentReceive, error) {
	var rows []models.CustomerPaymentReceiveModel
	if err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("receipt_date DESC, created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return receiptsToDomain(rows), nil
}

// FindWithUnallocated returns receipts that still carry unallocated money, oldest first
func (r *GormCustomerPaymentReceiveRepository) FindWithUnallocated(ctx context.Context, customerID uuid.UUID) ([]*finance.CustomerPaymentReceive, error) {
	var rows []models.CustomerPaymentReceiveModel
	if err := r.db.WithContext(ctx).
		Where("customer_id = ? AND status <> ? AND unallocated_amount > 0", customerID, finance.ReceiptStatusCancelled).
		Order("receipt_date ASC, created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return receiptsToDomain(rows), nil
}

// Save creates or updates a receipt with an optimistic version check
func (r *GormCustomerPaymentReceiveRepository) Save(ctx context.Context, receipt *finance.CustomerPaymentReceive) error {
	return saveVersioned(ctx, r.db, receipt, models.CustomerPaymentReceiveModelFromDomain(receipt))
}

func receiptsToDomain(rows []models.CustomerPaymentReceiveModel) []*finance.CustomerPaymentReceive {
	receipts := make([]*finance.CustomerPaymentReceive, len(rows))
	for i := range rows {
		receipts[i] = rows[i].ToDomain()
	}
	return receipts
}

// GormCustomerPaymentAllocationRepository implements finance.CustomerPaymentAllocationRepository using GORM
type GormCustomerPaymentAllocationRepository struct {
	db *gorm.DB
}

// NewGormCustomerPaymentAllocationRepository creates a new GormCustomerPaymentAllocationRepository
func NewGormCustomerPaymentAllocationRepository(db *gorm.DB) *GormCustomerPaymentAllocationRepository {
	return &GormCustomerPaymentAllocationRepository{db: db}
}

// FindByID finds an allocation by its ID
func (r *GormCustomerPaymentAllocationRepository) FindByID(ctx context.Context, id uuid.UUID) (*finance.CustomerPaymentAllocation, error) {
	return r.findOne(r.db.WithContext(ctx), id)
}

// FindByIDForUpdate finds an allocation and locks its row
func (r *GormCustomerPaymentAllocationRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*finance.CustomerPaymentAllocation, error) {
	return r.findOne(forUpdate(r.db.WithContext(ctx)), id)
}

func (r *GormCustomerPaymentAllocationRepository) findOne(db *gorm.DB, id uuid.UUID) (*finance.CustomerPaymentAllocation, error) {
	var model models.CustomerPaymentAllocationModel
	if err := db.First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "allocation")
	}
	return model.ToDomain(), nil
}

// FindByReceipt returns the allocations drawn from a receipt, in creation order
func (r *GormCustomerPaymentAllocationRepository) FindByReceipt(ctx context.Context, receiptID uuid.UUID) ([]*finance.CustomerPaymentAllocation, error) {
	return r.findMany(ctx, "payment_receive_id = ?", receiptID)
}

// FindBySale returns the allocations applied against a sale, in creation order
func (r *GormCustomerPaymentAllocationRepository) FindBySale(ctx context.Context, saleID uuid.UUID) ([]*finance.CustomerPaymentAllocation, error) {
	return r.findMany(ctx, "sale_id = ?", saleID)
}

func (r *GormCustomerPaymentAllocationRepository) findMany(ctx context.Context, query string, arg any) ([]*finance.CustomerPaymentAllocation, error) {
	var rows []models.CustomerPaymentAllocationModel
	if err := r.db.WithContext(ctx).
		Where(query, arg).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	allocations := make([]*finance.CustomerPaymentAllocation, len(rows))
	for i := range rows {
		allocations[i] = rows[i].ToDomain()
	}
	return allocations, nil
}

// Save creates or updates an allocation with an optimistic version check
func (r *GormCustomerPaymentAllocationRepository) Save(ctx context.Context, allocation *finance.CustomerPaymentAllocation) error {
	return saveVersioned(ctx, r.db, allocation, models.CustomerPaymentAllocationModelFromDomain(allocation))
}

var (
	_ finance.CustomerPaymentReceiveRepository    = (*GormCustomerPaymentReceiveRepository)(nil)
	_ finance.CustomerPaymentAllocationRepository = (*GormCustomerPaymentAllocationRepository)(nil)
)
