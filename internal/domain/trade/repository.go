package trade

import (
	"context"

	"github.com/google/uuid"
)

// SaleRepository defines persistence for sales.
// Outstanding queries return rows in waterfall order:
// due_date ASC (nulls last), sale_date ASC, then insertion order.
type SaleRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Sale, error)
	// FindByIDForUpdate loads the sale holding a row lock until the transaction ends
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Sale, error)
	FindOutstandingByCustomer(ctx context.Context, customerID uuid.UUID) ([]*Sale, error)
	FindOutstandingByCustomerForUpdate(ctx context.Context, customerID uuid.UUID) ([]*Sale, error)
	// FindPaidByCustomer returns settled sales, used for payment behaviour metrics
	FindPaidByCustomer(ctx context.Context, customerID uuid.UUID) ([]*Sale, error)
	ListCustomerIDs(ctx context.Context) ([]uuid.UUID, error)
	Save(ctx context.Context, sale *Sale) error
}

// PurchaseOrderRepository defines persistence for purchase orders.
// Outstanding queries return rows ordered due_date ASC (nulls last), order_date ASC.
type PurchaseOrderRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*PurchaseOrder, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*PurchaseOrder, error)
	FindOutstandingBySupplier(ctx context.Context, supplierID uuid.UUID) ([]*PurchaseOrder, error)
	FindOutstandingBySupplierForUpdate(ctx context.Context, supplierID uuid.UUID) ([]*PurchaseOrder, error)
	ListSupplierIDs(ctx context.Context) ([]uuid.UUID, error)
	Save(ctx context.Context, order *PurchaseOrder) error
}
