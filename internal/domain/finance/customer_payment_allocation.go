package finance

import (
	"time"

	"github.com/erp/arap/internal/domain/shared"
	"github.com/erp/arap/internal/domain/shared/valueobject"
	"github.com/erp/arap/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CustomerPaymentAllocation assigns part of a receipt to one sale.
type CustomerPaymentAllocation struct {
	shared.BaseAggregateRoot
	AllocationLifecycle
	PaymentReceiveID uuid.UUID
	SaleID           uuid.UUID
	CustomerID       uuid.UUID
	InvoiceNumber    string
	Notes            string
	CreatedBy        uuid.UUID
}

// NewCustomerPaymentAllocation creates a pending allocation after checking the
// receipt has the balance, the sale has the outstanding, and both belong to one customer.
func NewCustomerPaymentAllocation(receipt *CustomerPaymentReceive, sale *trade.Sale, amount decimal.Decimal, createdBy uuid.UUID, now time.Time) (*CustomerPaymentAllocation, error) {
	amount = valueobject.Round(amount)
	if err := receipt.CheckAllocation(sale, amount); err != nil {
		return nil, err
	}
	return &CustomerPaymentAllocation{
		BaseAggregateRoot:   shared.NewBaseAggregateRoot(now),
		AllocationLifecycle: newAllocationLifecycle(amount),
		PaymentReceiveID:    receipt.ID,
		SaleID:              sale.ID,
		CustomerID:          receipt.CustomerID,
		InvoiceNumber:       sale.InvoiceNumber,
		CreatedBy:           createdBy,
	}, nil
}

// Apply moves pending to applied, stamping the approver when one is given.
func (a *CustomerPaymentAllocation) Apply(approver *uuid.UUID, now time.Time) error {
	if err := a.apply(approver, now); err != nil {
		return err
	}
	a.Touch(now)
	a.AddDomainEvent(a.event(EventTypeAllocationApplied, now))
	return nil
}

// Reverse moves applied to reversed; the ledger gets the amount back once the caller recomputes.
func (a *CustomerPaymentAllocation) Reverse(reversedBy uuid.UUID, reason string, now time.Time) error {
	if err := a.reverse(reversedBy, reason, now); err != nil {
		return err
	}
	a.Touch(now)
	e := a.event(EventTypeAllocationReversed, now)
	e.Reason = reason
	a.AddDomainEvent(e)
	return nil
}

// Cancel moves pending or applied to cancelled and reports whether a recompute is needed.
func (a *CustomerPaymentAllocation) Cancel(reason string, now time.Time) (bool, error) {
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

// SoftDelete removes the allocation from the active set and reports whether a recompute is needed.
func (a *CustomerPaymentAllocation) SoftDelete(now time.Time) (bool, error) {
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

func (a *CustomerPaymentAllocation) event(eventType string, now time.Time) *AllocationEvent {
	return newAllocationEvent(eventType, AggregateTypeCustomerPaymentAllocation, SideReceivable,
		a.ID, a.PaymentReceiveID, a.SaleID, a.CustomerID, a.AllocatedAmount, now)
}
