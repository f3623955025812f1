package finance

import (
	"fmt"
	"time"

	"github.com/erp/arap/internal/domain/shared"
	"github.com/erp/arap/internal/domain/shared/valueobject"
	"github.com/erp/arap/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReceiptStatus represents the status of a customer payment receipt
type ReceiptStatus string

const (
	ReceiptStatusPending   ReceiptStatus = "pending"
	ReceiptStatusVerified  ReceiptStatus = "verified"
	ReceiptStatusAllocated ReceiptStatus = "allocated"
	ReceiptStatusCompleted ReceiptStatus = "completed"
	ReceiptStatusCancelled ReceiptStatus = "cancelled"
)

// IsValid checks if the status is valid
func (s ReceiptStatus) IsValid() bool {
	switch s {
	case ReceiptStatusPending, ReceiptStatusVerified, ReceiptStatusAllocated, ReceiptStatusCompleted, ReceiptStatusCancelled:
		return true
	}
	return false
}

// IsReceived reports whether the money is confirmed in hand
func (s ReceiptStatus) IsReceived() bool {
	return s == ReceiptStatusVerified || s == ReceiptStatusAllocated || s == ReceiptStatusCompleted
}

// AllocationState is the derived split of a receipt across documents
type AllocationState string

const (
	AllocationStateUnallocated        AllocationState = "unallocated"
	AllocationStatePartiallyAllocated AllocationState = "partially_allocated"
	AllocationStateFullyAllocated     AllocationState = "fully_allocated"
)

// PaymentMethod represents how the money arrived
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodGiro         PaymentMethod = "giro"
	PaymentMethodCheque       PaymentMethod = "cheque"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodEWallet      PaymentMethod = "e_wallet"
)

// IsValid checks if the payment method is valid
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodBankTransfer, PaymentMethodGiro, PaymentMethodCheque, PaymentMethodCard, PaymentMethodEWallet:
		return true
	}
	return false
}

// CustomerPaymentReceive is money received from a customer, before or while
// it is tied to invoices. AllocatedAmount, UnallocatedAmount and
// AllocationStatus are caches refreshed only by UpdateAllocationAmounts.
type CustomerPaymentReceive struct {
	shared.BaseAggregateRoot
	ReceiptNumber      string
	CustomerID         uuid.UUID
	TotalAmount        decimal.Decimal
	AllocatedAmount    decimal.Decimal
	UnallocatedAmount  decimal.Decimal
	Status             ReceiptStatus
	AllocationStatus   AllocationState
	PaymentMethod      PaymentMethod
	ReceiptDate        time.Time
	Reference          string
	Notes              string
	ReceivedBy         uuid.UUID
	VerifiedBy         *uuid.UUID
	VerifiedAt         *time.Time
	CancelledAt        *time.Time
	CancellationReason string
	DeletedAt          *time.Time
}

// NewCustomerPaymentReceive creates a pending, fully unallocated receipt
func NewCustomerPaymentReceive(
	receiptNumber string,
	customerID uuid.UUID,
	amount decimal.Decimal,
	method PaymentMethod,
	receiptDate time.Time,
	receivedBy uuid.UUID,
	now time.Time,
) (*CustomerPaymentReceive, error) {
	if receiptNumber == "" {
		return nil, shared.NewDomainError("INVALID_RECEIPT_NUMBER", "Receipt number cannot be empty")
	}
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CUSTOMER", "Customer ID cannot be empty")
	}
	if !method.IsValid() {
		return nil, shared.NewDomainError("INVALID_PAYMENT_METHOD", "Payment method is not valid")
	}
	amount = valueobject.Round(amount)
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount.WithMessage("Receipt amount must be positive")
	}

	return &CustomerPaymentReceive{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(now),
		ReceiptNumber:     receiptNumber,
		CustomerID:        customerID,
		TotalAmount:       amount,
		AllocatedAmount:   decimal.Zero,
		UnallocatedAmount: amount,
		Status:            ReceiptStatusPending,
		AllocationStatus:  AllocationStateUnallocated,
		PaymentMethod:     method,
		ReceiptDate:       receiptDate,
		ReceivedBy:        receivedBy,
	}, nil
}

// Verify confirms the money arrived. Only pending receipts can be verified.
func (r *CustomerPaymentReceive) Verify(verifiedBy uuid.UUID, now time.Time) error {
	if r.Status != ReceiptStatusPending {
		return ErrWrongState.WithMessage(fmt.Sprintf("Cannot verify receipt in %s status", r.Status))
	}
	r.Status = ReceiptStatusVerified
	by := verifiedBy
	at := now
	r.VerifiedBy = &by
	r.VerifiedAt = &at
	r.Touch(now)
	return nil
}

// CheckAllocatable validates that amount can still be taken from this receipt.
func (r *CustomerPaymentReceive) CheckAllocatable(amount decimal.Decimal) error {
	if r.DeletedAt != nil || r.Status == ReceiptStatusCancelled {
		return ErrWrongState.WithMessage(fmt.Sprintf("Receipt %s is not open for allocation", r.ReceiptNumber))
	}
	if r.AllocationStatus == AllocationStateFullyAllocated {
		return ErrInsufficientUnallocated.WithMessage(fmt.Sprintf("Receipt %s is fully allocated", r.ReceiptNumber))
	}
	amount = valueobject.Round(amount)
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	if amount.GreaterThan(r.UnallocatedAmount) {
		return ErrInsufficientUnallocated.WithMessage(fmt.Sprintf("Amount %s exceeds unallocated balance %s", amount.StringFixed(2), r.UnallocatedAmount.StringFixed(2)))
	}
	return nil
}

// CheckAllocation validates an allocation of amount from this receipt to sale.
// Payment and sale must belong to the same customer.
func (r *CustomerPaymentReceive) CheckAllocation(sale *trade.Sale, amount decimal.Decimal) error {
	if sale.CustomerID != r.CustomerID {
		return ErrPartyMismatch.WithMessage(fmt.Sprintf("Sale %s does not belong to the receipt's customer", sale.InvoiceNumber))
	}
	if err := r.CheckAllocatable(amount); err != nil {
		return err
	}
	return checkCapacity(amount, r.UnallocatedAmount, sale.OutstandingAmount)
}

// UpdateAllocationAmounts re-derives the split from the receipt's child
// allocations. Only applied, non-deleted allocations count. Idempotent.
func (r *CustomerPaymentReceive) UpdateAllocationAmounts(allocations []*CustomerPaymentAllocation, now time.Time) {
	before := r.AllocationStatus

	r.AllocatedAmount = SumApplied(allocations)
	r.UnallocatedAmount = r.TotalAmount.Sub(r.AllocatedAmount)

	switch {
	case r.AllocatedAmount.IsZero():
		r.AllocationStatus = AllocationStateUnallocated
	case r.UnallocatedAmount.IsZero():
		r.AllocationStatus = AllocationStateFullyAllocated
	default:
		r.AllocationStatus = AllocationStatePartiallyAllocated
	}

	switch r.AllocationStatus {
	case AllocationStateFullyAllocated:
		r.Status = ReceiptStatusCompleted
	case AllocationStatePartiallyAllocated:
		r.Status = ReceiptStatusAllocated
	}

	if r.AllocationStatus != before {
		r.Touch(now)
		if r.AllocationStatus == AllocationStateFullyAllocated {
			r.AddDomainEvent(&ReceiptFullyAllocatedEvent{
				BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeReceiptFullyAllocated, AggregateTypeCustomerPaymentReceive, r.ID, now),
				ReceiptID:       r.ID,
				ReceiptNumber:   r.ReceiptNumber,
				CustomerID:      r.CustomerID,
				TotalAmount:     r.TotalAmount,
			})
		}
	}
}

// Cancel voids a receipt that has nothing applied.
func (r *CustomerPaymentReceive) Cancel(reason string, now time.Time) error {
	if r.Status != ReceiptStatusPending && r.Status != ReceiptStatusVerified {
		return ErrWrongState.WithMessage(fmt.Sprintf("Cannot cancel receipt in %s status", r.Status))
	}
	if r.AllocatedAmount.GreaterThan(decimal.Zero) {
		return ErrWrongState.WithMessage("Cannot cancel a receipt with applied allocations")
	}
	r.Status = ReceiptStatusCancelled
	at := now
	r.CancelledAt = &at
	r.CancellationReason = reason
	r.Touch(now)
	return nil
}

// SoftDelete hides a receipt that has nothing applied. Receipts are never hard-deleted.
func (r *CustomerPaymentReceive) SoftDelete(now time.Time) error {
	if r.DeletedAt != nil {
		return ErrWrongState.WithMessage("Receipt already deleted")
	}
	if r.AllocatedAmount.GreaterThan(decimal.Zero) {
		return ErrWrongState.WithMessage("Cannot delete a receipt with applied allocations")
	}
	at := now
	r.DeletedAt = &at
	r.Touch(now)
	return nil
}

// Money returns the receipt total as Money
func (r *CustomerPaymentReceive) Money() valueobject.Money {
	return valueobject.NewMoneyIDR(r.TotalAmount)
}

// UnallocatedMoney returns the unallocated balance as Money
func (r *CustomerPaymentReceive) UnallocatedMoney() valueobject.Money {
	return valueobject.NewMoneyIDR(r.UnallocatedAmount)
}
