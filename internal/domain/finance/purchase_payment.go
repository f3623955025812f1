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

// PurchasePaymentStatus represents the status of a supplier payment
type PurchasePaymentStatus string

const (
	PurchasePaymentStatusPending   PurchasePaymentStatus = "pending"
	PurchasePaymentStatusCompleted PurchasePaymentStatus = "completed"
	PurchasePaymentStatusCancelled PurchasePaymentStatus = "cancelled"
	PurchasePaymentStatusFailed    PurchasePaymentStatus = "failed"
)

// IsValid checks if the status is valid
func (s PurchasePaymentStatus) IsValid() bool {
	switch s {
	case PurchasePaymentStatusPending, PurchasePaymentStatusCompleted, PurchasePaymentStatusCancelled, PurchasePaymentStatusFailed:
		return true
	}
	return false
}

// PaymentType classifies a supplier payment by how much of it is applied.
type PaymentType string

const (
	PaymentTypeAdvance     PaymentType = "advance"
	PaymentTypePartial     PaymentType = "partial"
	PaymentTypeFull        PaymentType = "full"
	PaymentTypeOverpayment PaymentType = "overpayment"
)

// DerivePaymentType compares the applied sum with the payment amount.
func DerivePaymentType(amount, applied decimal.Decimal) PaymentType {
	switch {
	case applied.IsZero():
		return PaymentTypeAdvance
	case applied.LessThan(amount):
		return PaymentTypePartial
	case applied.Equal(amount):
		return PaymentTypeFull
	default:
		return PaymentTypeOverpayment
	}
}

// PurchasePayment is money paid to a supplier.
type PurchasePayment struct {
	shared.BaseAggregateRoot
	PaymentNumber      string
	SupplierID         uuid.UUID
	Amount             decimal.Decimal
	AllocatedAmount    decimal.Decimal
	Status             PurchasePaymentStatus
	PaymentType        PaymentType
	PaymentMethod      PaymentMethod
	PaymentDate        time.Time
	Reference          string
	Notes              string
	PaidBy             uuid.UUID
	CompletedAt        *time.Time
	FailedAt           *time.Time
	FailureReason      string
	CancelledAt        *time.Time
	CancellationReason string
	DeletedAt          *time.Time
}

// NewPurchasePayment creates a pending advance payment
func NewPurchasePayment(
	paymentNumber string,
	supplierID uuid.UUID,
	amount decimal.Decimal,
	method PaymentMethod,
	paymentDate time.Time,
	paidBy uuid.UUID,
	now time.Time,
) (*PurchasePayment, error) {
	if paymentNumber == "" {
		return nil, shared.NewDomainError("INVALID_PAYMENT_NUMBER", "Payment number cannot be empty")
	}
	if supplierID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_SUPPLIER", "Supplier ID cannot be empty")
	}
	if !method.IsValid() {
		return nil, shared.NewDomainError("INVALID_PAYMENT_METHOD", "Payment method is not valid")
	}
	amount = valueobject.Round(amount)
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount.WithMessage("Payment amount must be positive")
	}
	return &PurchasePayment{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(now),
		PaymentNumber:     paymentNumber,
		SupplierID:        supplierID,
		Amount:            amount,
		AllocatedAmount:   decimal.Zero,
		Status:            PurchasePaymentStatusPending,
		PaymentType:       PaymentTypeAdvance,
		PaymentMethod:     method,
		PaymentDate:       paymentDate,
		PaidBy:            paidBy,
	}, nil
}

// UnallocatedAmount returns the part of the payment not applied to any order
func (p *PurchasePayment) UnallocatedAmount() decimal.Decimal {
	return p.Amount.Sub(p.AllocatedAmount)
}

// UpdatePaymentType re-derives the applied sum and payment type from the
// payment's child allocations. Idempotent.
func (p *PurchasePayment) UpdatePaymentType(allocations []*PurchasePaymentAllocation, now time.Time) {
	applied := SumApplied(allocations)
	if applied.Equal(p.AllocatedAmount) && p.PaymentType == DerivePaymentType(p.Amount, applied) {
		return
	}
	p.AllocatedAmount = applied
	p.PaymentType = DerivePaymentType(p.Amount, applied)
	p.Touch(now)
}

// CheckAllocation validates an allocation of amount from this payment to order.
func (p *PurchasePayment) CheckAllocation(order *trade.PurchaseOrder, amount decimal.Decimal) error {
	if order.SupplierID != p.SupplierID {
		return ErrPartyMismatch.WithMessage(fmt.Sprintf("Order %s does not belong to the payment's supplier", order.OrderNumber))
	}
	if p.DeletedAt != nil || (p.Status != PurchasePaymentStatusPending && p.Status != PurchasePaymentStatusCompleted) {
		return ErrWrongState.WithMessage(fmt.Sprintf("Payment %s is not open for allocation", p.PaymentNumber))
	}
	return checkCapacity(amount, p.UnallocatedAmount(), order.OutstandingAmount)
}

// Complete marks a pending payment as settled with the bank
func (p *PurchasePayment) Complete(now time.Time) error {
	if p.Status != PurchasePaymentStatusPending {
		return ErrWrongState.WithMessage(fmt.Sprintf("Cannot complete payment in %s status", p.Status))
	}
	p.Status = PurchasePaymentStatusCompleted
	at := now
	p.CompletedAt = &at
	p.Touch(now)
	p.addSettledEvent(now)
	return nil
}

// Fail marks a pending payment as failed. Applied allocations must be reversed first.
func (p *PurchasePayment) Fail(reason string, now time.Time) error {
	if err := p.requireReleasable(); err != nil {
		return err
	}
	p.Status = PurchasePaymentStatusFailed
	at := now
	p.FailedAt = &at
	p.FailureReason = reason
	p.Touch(now)
	p.addSettledEvent(now)
	return nil
}

// Cancel voids a pending payment. Applied allocations must be reversed first.
func (p *PurchasePayment) Cancel(reason string, now time.Time) error {
	if err := p.requireReleasable(); err != nil {
		return err
	}
	p.Status = PurchasePaymentStatusCancelled
	at := now
	p.CancelledAt = &at
	p.CancellationReason = reason
	p.Touch(now)
	p.addSettledEvent(now)
	return nil
}

func (p *PurchasePayment) requireReleasable() error {
	if p.Status != PurchasePaymentStatusPending {
		return ErrWrongState.WithMessage(fmt.Sprintf("Payment is %s, expected pending", p.Status))
	}
	if p.AllocatedAmount.GreaterThan(decimal.Zero) {
		return ErrWrongState.WithMessage("Payment still has applied allocations")
	}
	return nil
}

func (p *PurchasePayment) addSettledEvent(now time.Time) {
	p.AddDomainEvent(&PurchasePaymentSettledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePurchasePaymentSettled, AggregateTypePurchasePayment, p.ID, now),
		PaymentID:       p.ID,
		SupplierID:      p.SupplierID,
		Status:          p.Status,
		Amount:          p.Amount,
	})
}

// IsCompleted reports whether the payment counts toward the supplier's paid total
func (p *PurchasePayment) IsCompleted() bool {
	return p.Status == PurchasePaymentStatusCompleted && p.DeletedAt == nil
}
