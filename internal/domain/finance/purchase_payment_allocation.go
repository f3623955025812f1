package finance

import (
	"time"

	"github.com/erp/arap/internal/domain/shared"
	"github.com/erp/arap/internal/domain/shared/valueobject"
	"github.com/erp/arap/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PurchasePaymentAllocation assigns part of a supplier payment to one purchase order.
type PurchasePaymentAllocation struct {
	shared.BaseAggregateRoot
	AllocationLifecycle
	PurchasePaymentID uuid.UUID
	PurchaseOrderID   uuid.UUID
	SupplierID        uuid.UUID
	OrderNumber       string
	Notes             string
	CreatedBy         uuid.UUID
}

// NewPurchasePaymentAllocation creates a pending allocation
func NewPurchasePaymentAllocation(payment *PurchasePayment, order *trade.PurchaseOrder, amount decimal.Decimal, createdBy uuid.UUID, now time.Time) (*PurchasePaymentAllocation, error) {
	amount = valueobject.Round(amount)
	if err := payment.CheckAllocation(order, amount); err != nil {
		return nil, err
	}
	return &PurchasePaymentAllocation{
		BaseAggregateRoot:   shared.NewBaseAggregateRoot(now),
		AllocationLifecycle: newAllocationLifecycle(amount),
		PurchasePaymentID:   payment.ID,
		PurchaseOrderID:     order.ID,
		SupplierID:          payment.SupplierID,
		OrderNumber:         order.OrderNumber,
		CreatedBy:           createdBy,
	}, nil
}

func (a *PurchasePaymentAllocation) Apply(approver *uuid.UUID, now time.Time) error {
	if err := a.apply(approver, now); err != nil {
		return err
	}
	a.Touch(now)
	a.AddDomainEvent(a.event(EventTypeAllocationApplied, now))
	return nil
}

func (a *PurchasePaymentAllocation) Reverse(reversedBy uuid.UUID, reason string, now time.Time) error {
	if err := a.reverse(reversedBy, reason, now); err != nil {
		return err
	}
	a.Touch(now)
	e := a.event(EventTypeAllocationReversed, now)
	e.Reason = reason
	a.AddDomainEvent(e)
	return nil
}

func (a *PurchasePaymentAllocation) Cancel(reason string, now time.Time) (bool, error) {
	wasApplied, err := a.cancel(reason, now)
	if err != nil {
		return false, err
	}
	a.Touch(now)
	e := a.event(EventTypeAllocationCancelled, now)
	e.Reason = reason
	e.WasApplied = wasApplied
	a.AddDomainEvent(e)
	return wasApplied, nil
}

func (a *PurchasePaymentAllocation) SoftDelete(now time.Time) (bool, error) {
	wasApplied, err := a.softDelete(now)
	if err != nil {
		return false, err
	}
	a.Touch(now)
	e := a.event(EventTypeAllocationDeleted, now)
	e.WasApplied = wasApplied
	a.AddDomainEvent(e)
	return wasApplied, nil
}

func (a *PurchasePaymentAllocation) event(eventType string, now time.Time) *AllocationEvent {
	return newAllocationEvent(eventType, AggregateTypePurchasePaymentAllocation, SidePayable,
		a.ID, a.PurchasePaymentID, a.PurchaseOrderID, a.SupplierID, a.AllocatedAmount, now)
}
