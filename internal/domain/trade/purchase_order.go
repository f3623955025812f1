package trade

import (
	"time"

	"github.com/erp/arap/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PurchaseOrder is a supplier document that purchase payments are allocated against.
type PurchaseOrder struct {
	shared.BaseAggregateRoot
	Ledger
	OrderNumber     string
	SupplierID      uuid.UUID
	OrderDate       time.Time
	DueDate         *time.Time
	LastPaymentDate *time.Time
}

// NewPurchaseOrder creates an unpaid purchase order
func NewPurchaseOrder(supplierID uuid.UUID, orderNumber string, total decimal.Decimal, orderDate time.Time, dueDate *time.Time, now time.Time) (*PurchaseOrder, error) {
	if supplierID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_SUPPLIER", "Supplier ID cannot be empty")
	}
	if orderNumber == "" {
		return nil, shared.NewDomainError("INVALID_ORDER_NUMBER", "Order number cannot be empty")
	}
	ledger, err := newLedger(total)
	if err != nil {
		return nil, err
	}
	return &PurchaseOrder{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(now),
		Ledger:            ledger,
		OrderNumber:       orderNumber,
		SupplierID:        supplierID,
		OrderDate:         orderDate,
		DueDate:           dueDate,
	}, nil
}

func (o *PurchaseOrder) PartyID() uuid.UUID      { return o.SupplierID }
func (o *PurchaseOrder) DocumentNumber() string  { return o.OrderNumber }
func (o *PurchaseOrder) DocumentDate() time.Time { return o.OrderDate }
func (o *PurchaseOrder) GetDueDate() *time.Time  { return o.DueDate }

// Settle recomputes the payment status from the applied sum.
func (o *PurchaseOrder) Settle(appliedSum decimal.Decimal, now time.Time) {
	previous := o.PaidAmount
	o.UpdatePaymentStatus(appliedSum)
	if o.PaidAmount.GreaterThan(previous) {
		paidAt := now
		o.LastPaymentDate = &paidAt
	}
	o.Touch(now)
}

// DaysOverdue returns the days an open order is past due; settled orders report zero.
func (o *PurchaseOrder) DaysOverdue(asOf time.Time) int {
	if !o.PaymentStatus.IsOpen() {
		return 0
	}
	return daysPastDue(o.DueDate, asOf)
}

var _ LedgerEntity = (*PurchaseOrder)(nil)
