package persistence

import (
	"context"

	"github.com/erp/arap/internal/domain/finance"
	"github.com/erp/arap/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormPurchasePaymentRepository implements finance.PurchasePaymentRepository using GORM
type GormPurchasePaymentRepository struct {
	db *gorm.DB
}

// NewGormPurchasePaymentRepository creates a new GormPurchasePaymentRepository
func NewGormPurchasePaymentRepository(db *gorm.DB) *GormPurchasePaymentRepository {
	return &GormPurchasePaymentRepository{db: db}
}

// FindByID finds a supplier payment by its ID
func (r *GormPurchasePaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*finance.PurchasePayment, error) {
	return r.findOne(r.db.WithContext(ctx), id)
}

// FindByIDForUpdate finds a supplier payment and locks its row
func (r *GormPurchasePaymentRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*finance.PurchasePayment, error) {
	return r.findOne(forUpdate(r.db.WithContext(ctx)), id)
}

func (r *GormPurchasePaymentRepository) findOne(db *gorm.DB, id uuid.UUID) (*finance.PurchasePayment, error) {
	var model models.PurchasePaymentModel
	if err := db.First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "purchase payment")
	}
	return model.ToDomain(), nil
}

// FindBySupplier returns all live payments to a supplier, oldest first
func (r *GormPurchasePaymentRepository) FindBySupplier(ctx context.Context, supplierID uuid.UUID) ([]*finance.PurchasePayment, error) {
	var rows []models.PurchasePaymentModel
	if err := r.db.WithContext(ctx).
		Where("supplier_id = ?", supplierID).
		Order("payment_date ASC, created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	payments := make([]*finance.PurchasePayment, len(rows))
	for i := range rows {
		payments[i] = rows[i].ToDomain()
	}
	return payments, nil
}

// Save creates or updates a supplier payment with an optimistic version check
func (r *GormPurchasePaymentRepository) Save(ctx context.Context, payment *finance.PurchasePayment) error {
	return saveVersioned(ctx, r.db, payment, models.PurchasePaymentModelFromDomain(payment))
}

// GormPurchasePaymentAllocationRepository implements finance.PurchasePaymentAllocationRepository using GORM
type GormPurchasePaymentAllocationRepository struct {
	db *gorm.DB
}

// NewGormPurchasePaymentAllocationRepository creates a new GormPurchasePaymentAllocationRepository
func NewGormPurchasePaymentAllocationRepository(db *gorm.DB) *GormPurchasePaymentAllocationRepository {
	return &GormPurchasePaymentAllocationRepository{db: db}
}

func (r *GormPurchasePaymentAllocationRepository) FindByID(ctx context.Context, id uuid.UUID) (*finance.PurchasePaymentAllocation, error) {
	return r.findOne(r.db.WithContext(ctx), id)
}

func (r *GormPurchasePaymentAllocationRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*finance.PurchasePaymentAllocation, error) {
	return r.findOne(forUpdate(r.db.WithContext(ctx)), id)
}

func (r *GormPurchasePaymentAllocationRepository) findOne(db *gorm.DB, id uuid.UUID) (*finance.PurchasePaymentAllocation, error) {
	var model models.PurchasePaymentAllocationModel
	if err := db.First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "allocation")
	}
	return model.ToDomain(), nil
}

func (r *GormPurchasePaymentAllocationRepository) FindByPayment(ctx context.Context, paymentID uuid.UUID) ([]*finance.PurchasePaymentAllocation, error) {
	return r.findMany(ctx, "purchase_payment_id = ?", paymentID)
}

func (r *GormPurchasePaymentAllocationRepository) FindByOrder(ctx context.Context, orderID uuid.UUID) ([]*finance.PurchasePaymentAllocation, error) {
	return r.findMany(ctx, "purchase_order_id = ?", orderID)
}

func (r *GormPurchasePaymentAllocationRepository) findMany(ctx context.Context, query string, arg any) ([]*finance.PurchasePaymentAllocation, error) {
	var rows []models.PurchasePaymentAllocationModel
	if err := r.db.WithContext(ctx).
		Where(query, arg).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	allocations := make([]*finance.PurchasePaymentAllocation, len(rows))
	for i := range rows {
		allocations[i] = rows[i].ToDomain()
	}
	return allocations, nil
}

func (r *GormPurchasePaymentAllocationRepository) Save(ctx context.Context, allocation *finance.PurchasePaymentAllocation) error {
	return saveVersioned(ctx, r.db, allocation, models.PurchasePaymentAllocationModelFromDomain(allocation))
}

var (
	_ finance.PurchasePaymentRepository           = (*GormPurchasePaymentRepository)(nil)
	_ finance.PurchasePaymentAllocationRepository = (*GormPurchasePaymentAllocationRepository)(nil)
)
