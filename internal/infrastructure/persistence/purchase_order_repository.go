package persistence

import (
	"context"
	"fmt"

	"github.com/erp/arap/internal/domain/trade"
	"github.com/erp/arap/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormPurchaseOrderRepository implements trade.PurchaseOrderRepository using GORM
type GormPurchaseOrderRepository struct {
	db *gorm.DB
}

// NewGormPurchaseOrderRepository creates a new GormPurchaseOrderRepository
func NewGormPurchaseOrderRepository(db *gorm.DB) *GormPurchaseOrderRepository {
	return &GormPurchaseOrderRepository{db: db}
}

// FindByID finds a purchase order by its ID
func (r *GormPurchaseOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*trade.PurchaseOrder, error) {
	return r.findOne(r.db.WithContext(ctx), id)
}

// FindByIDForUpdate finds a purchase order and locks its row
func (r *GormPurchaseOrderRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*trade.PurchaseOrder, error) {
	return r.findOne(forUpdate(r.db.WithContext(ctx)), id)
}

func (r *GormPurchaseOrderRepository) findOne(db *gorm.DB, id uuid.UUID) (*trade.PurchaseOrder, error) {
	var model models.PurchaseOrderModel
	if err := db.First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "purchase order")
	}
	return model.ToDomain(), nil
}

// FindOutstandingBySupplier returns the supplier's open orders in waterfall order
func (r *GormPurchaseOrderRepository) FindOutstandingBySupplier(ctx context.Context, supplierID uuid.UUID) ([]*trade.PurchaseOrder, error) {
	return r.findOutstanding(r.db.WithContext(ctx), supplierID)
}

// FindOutstandingBySupplierForUpdate locks every returned order
func (r *GormPurchaseOrderRepository) FindOutstandingBySupplierForUpdate(ctx context.Context, supplierID uuid.UUID) ([]*trade.PurchaseOrder, error) {
	return r.findOutstanding(forUpdate(r.db.WithContext(ctx)), supplierID)
}

func (r *GormPurchaseOrderRepository) findOutstanding(db *gorm.DB, supplierID uuid.UUID) ([]*trade.PurchaseOrder, error) {
	var rows []models.PurchaseOrderModel
	if err := db.
		Where("supplier_id = ? AND payment_status IN ? AND outstanding_amount > 0", supplierID, trade.OpenPaymentStatuses()).
		Order(fmt.Sprintf(waterfallOrder, "order_date")).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	orders := make([]*trade.PurchaseOrder, len(rows))
	for i := range rows {
		orders[i] = rows[i].ToDomain()
	}
	return orders, nil
}

// ListSupplierIDs returns every supplier with at least one live purchase order
func (r *GormPurchaseOrderRepository) ListSupplierIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.PurchaseOrderModel{}).
		Distinct().
		Order("supplier_id").
		Pluck("supplier_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// Save creates or updates a purchase order with an optimistic version check
func (r *GormPurchaseOrderRepository) Save(ctx context.Context, order *trade.PurchaseOrder) error {
	return saveVersioned(ctx, r.db, order, models.PurchaseOrderModelFromDomain(order))
}

// Ensure GormPurchaseOrderRepository implements trade.PurchaseOrderRepository
var _ trade.PurchaseOrderRepository = (*GormPurchaseOrderRepository)(nil)
