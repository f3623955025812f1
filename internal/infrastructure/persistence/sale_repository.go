package persistence

import (
	"context"
	"fmt"

	"github.com/erp/arap/internal/domain/trade"
	"github.com/erp/arap/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// waterfallOrder is the settlement order of open documents: earliest due
// first, undated last, then by document date and insertion.
const waterfallOrder = "due_date IS NULL, due_date ASC, %s ASC, created_at ASC, id ASC"

// GormSaleRepository implements trade.SaleRepository using GORM
type GormSaleRepository struct {
	db *gorm.DB
}

// NewGormSaleRepository creates a new GormSaleRepository
func NewGormSaleRepository(db *gorm.DB) *GormSaleRepository {
	return &GormSaleRepository{db: db}
}

// FindByID finds a sale by its ID
func (r *GormSaleRepository) FindByID(ctx context.Context, id uuid.UUID) (*trade.Sale, error) {
	return r.findOne(r.db.WithContext(ctx), id)
}

// FindByIDForUpdate finds a sale and locks its row
func (r *GormSaleRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*trade.Sale, error) {
	return r.findOne(forUpdate(r.db.WithContext(ctx)), id)
}

func (r *GormSaleRepository) findOne(db *gorm.DB, id uuid.UUID) (*trade.Sale, error) {
	var model models.SaleModel
	if err := db.First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "sale")
	}
	return model.ToDomain(), nil
}

// FindOutstandingByCustomer returns the customer's open sales in waterfall order
func (r *GormSaleRepository) FindOutstandingByCustomer(ctx context.Context, customerID uuid.UUID) ([]*trade.Sale, error) {
	return r.findOutstanding(r.db.WithContext(ctx), customerID)
}

// FindOutstandingByCustomerForUpdate is FindOutstandingByCustomer holding row locks on every returned sale
func (r *GormSaleRepository) FindOutstandingByCustomerForUpdate(ctx context.Context, customerID uuid.UUID) ([]*trade.Sale, error) {
	return r.findOutstanding(forUpdate(r.db.WithContext(ctx)), customerID)
}

func (r *GormSaleRepository) findOutstanding(db *gorm.DB, customerID uuid.UUID) ([]*trade.Sale, error) {
	var rows []models.SaleModel
	if err := db.
		Where("customer_id = ? AND payment_status IN ? AND outstanding_amount > 0", customerID, trade.OpenPaymentStatuses()).
		Order(fmt.Sprintf(waterfallOrder, "sale_date")).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return salesToDomain(rows), nil
}

// FindPaidByCustomer returns the customer's settled sales, oldest first
func (r *GormSaleRepository) FindPaidByCustomer(ctx context.Context, customerID uuid.UUID) ([]*trade.Sale, error) {
	var rows []models.SaleModel
	if err := r.db.WithContext(ctx).
		Where("customer_id = ? AND payment_status IN ?", customerID,
			[]trade.PaymentStatus{trade.PaymentStatusPaid, trade.PaymentStatusOverpaid}).
		Order("sale_date ASC, created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return salesToDomain(rows), nil
}

// ListCustomerIDs returns every customer with at least one live sale
func (r *GormSaleRepository) ListCustomerIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.SaleModel{}).
		Distinct().
		Order("customer_id").
		Pluck("customer_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// Save creates or updates a sale with an optimistic version check
func (r *GormSaleRepository) Save(ctx context.Context, sale *trade.Sale) error {
	return saveVersioned(ctx, r.db, sale, models.SaleModelFromDomain(sale))
}

func salesToDomain(rows []models.SaleModel) []*trade.Sale {
	sales := make([]*trade.Sale, len(rows))
	for i := range rows {
		sales[i] = rows[i].ToDomain()
	}
	return sales
}

// Ensure GormSaleRepository implements trade.SaleRepository
var _ trade.SaleRepository = (*GormSaleRepository)(nil)
