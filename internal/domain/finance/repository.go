package finance

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CustomerPaymentReceiveRepository defines persistence for customer receipts
type CustomerPaymentReceiveRepository interface {
	// FindByID finds a receipt by ID, excluding soft-deleted rows
	FindByID(ctx context.Context, id uuid.UUID) (*CustomerPaymentReceive, error)

	// FindByIDForUpdate finds a receipt and holds a row lock until the transaction ends
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*CustomerPaymentReceive, error)

	// FindByReceiptNumber finds a receipt by its document number
	FindByReceiptNumber(ctx context.Context, number string) (*CustomerPaymentReceive, error)

	// FindByCustomer returns all live receipts of a customer
	FindByCustomer(ctx context.Context, customerID uuid.UUID) ([]*CustomerPaymentReceive, error)

	// FindWithUnallocated returns receipts of a customer that still carry unallocated money, oldest first
	FindWithUnallocated(ctx context.Context, customerID uuid.UUID) ([]*CustomerPaymentReceive, error)

	// Save creates or updates a receipt with an optimistic version check
	Save(ctx context.Context, receipt *CustomerPaymentReceive) error
}

// CustomerPaymentAllocationRepository defines persistence for receivable allocations.
// Soft-deleted rows are never returned.
type CustomerPaymentAllocationRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*CustomerPaymentAllocation, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*CustomerPaymentAllocation, error)

	// FindByReceipt returns the allocations drawn from a receipt
	FindByReceipt(ctx context.Context, receiptID uuid.UUID) ([]*CustomerPaymentAllocation, error)

	// FindBySale returns the allocations applied against a sale
	FindBySale(ctx context.Context, saleID uuid.UUID) ([]*CustomerPaymentAllocation, error)

	Save(ctx context.Context, allocation *CustomerPaymentAllocation) error
}

// PurchasePaymentRepository defines persistence for supplier payments
type PurchasePaymentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*PurchasePayment, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*PurchasePayment, error)
	FindBySupplier(ctx context.Context, supplierID uuid.UUID) ([]*PurchasePayment, error)
	Save(ctx context.Context, payment *PurchasePayment) error
}

// PurchasePaymentAllocationRepository defines persistence for payable allocations
type PurchasePaymentAllocationRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*PurchasePaymentAllocation, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*PurchasePaymentAllocation, error)
	FindByPayment(ctx context.Context, paymentID uuid.UUID) ([]*PurchasePaymentAllocation, error)
	FindByOrder(ctx context.Context, orderID uuid.UUID) ([]*PurchasePaymentAllocation, error)
	Save(ctx context.Context, allocation *PurchasePaymentAllocation) error
}

// CustomerCreditLimitRepository defines persistence for customer credit roll-ups
type CustomerCreditLimitRepository interface {
	FindByCustomer(ctx context.Context, customerID uuid.UUID) (*CustomerCreditLimit, error)

	// FindByCustomerForUpdate locks the roll-up row for a recompute
	FindByCustomerForUpdate(ctx context.Context, customerID uuid.UUID) (*CustomerCreditLimit, error)

	Save(ctx context.Context, credit *CustomerCreditLimit) error
}

// SupplierBalanceRepository defines persistence for supplier balances
type SupplierBalanceRepository interface {
	FindBySupplier(ctx context.Context, supplierID uuid.UUID) (*SupplierBalance, error)
	FindBySupplierForUpdate(ctx context.Context, supplierID uuid.UUID) (*SupplierBalance, error)
	Save(ctx context.Context, balance *SupplierBalance) error
}

// CustomerAgingSnapshotRepository defines persistence for aging snapshots.
// Snapshots are insert-only.
type CustomerAgingSnapshotRepository interface {
	Create(ctx context.Context, snapshot *CustomerAgingSnapshot) error

	// Exists reports whether a snapshot of the given type was taken for the customer on date's calendar day
	Exists(ctx context.Context, customerID uuid.UUID, snapshotType SnapshotType, date time.Time) (bool, error)

	// FindLatestByCustomer returns the most recent snapshot of a customer
	FindLatestByCustomer(ctx context.Context, customerID uuid.UUID) (*CustomerAgingSnapshot, error)

	// FindByDate returns all snapshots taken on date's calendar day, ordered by customer
	FindByDate(ctx context.Context, date time.Time) ([]*CustomerAgingSnapshot, error)
}

// CustomerPaymentScheduleRepository defines persistence for installment plans
type CustomerPaymentScheduleRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*CustomerPaymentSchedule, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*CustomerPaymentSchedule, error)
	FindActiveByCustomer(ctx context.Context, customerID uuid.UUID) ([]*CustomerPaymentSchedule, error)
	Save(ctx context.Context, schedule *CustomerPaymentSchedule) error
}
