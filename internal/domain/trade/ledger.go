package trade

import (
	"time"

	"github.com/erp/arap/internal/domain/shared"
	"github.com/erp/arap/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus is the settlement state of a ledger document.
// It is a cache of the applied allocation sum and is only changed by UpdatePaymentStatus
// (and, on the receivable side, RefreshOverdue).
type PaymentStatus string

const (
	PaymentStatusUnpaid   PaymentStatus = "unpaid"
	PaymentStatusPartial  PaymentStatus = "partial"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusOverpaid PaymentStatus = "overpaid"
	// PaymentStatusOverdue marks an unpaid or partial sale that is past its due date.
	PaymentStatusOverdue PaymentStatus = "overdue"
)

// IsValid checks if the status is valid
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusUnpaid, PaymentStatusPartial, PaymentStatusPaid, PaymentStatusOverpaid, PaymentStatusOverdue:
		return true
	}
	return false
}

// IsOpen reports whether money is still owed under this status.
func (s PaymentStatus) IsOpen() bool {
	return s == PaymentStatusUnpaid || s == PaymentStatusPartial || s == PaymentStatusOverdue
}

// OpenPaymentStatuses lists the statuses repositories filter on for outstanding documents.
func OpenPaymentStatuses() []PaymentStatus {
	return []PaymentStatus{PaymentStatusUnpaid, PaymentStatusPartial, PaymentStatusOverdue}
}

// DerivePaymentStatus maps an applied amount against a document total.
func DerivePaymentStatus(total, applied decimal.Decimal) PaymentStatus {
	switch {
	case applied.LessThanOrEqual(decimal.Zero):
		return PaymentStatusUnpaid
	case applied.LessThan(total):
		return PaymentStatusPartial
	case applied.Equal(total):
		return PaymentStatusPaid
	default:
		return PaymentStatusOverpaid
	}
}

// LedgerEntity is anything with an outstanding balance that payments are allocated to.
type LedgerEntity interface {
	GetID() uuid.UUID
	PartyID() uuid.UUID
	DocumentNumber() string
	DocumentDate() time.Time
	GetDueDate() *time.Time
	GetTotalAmount() decimal.Decimal
	GetPaidAmount() decimal.Decimal
	GetOutstandingAmount() decimal.Decimal
	GetPaymentStatus() PaymentStatus
	// UpdatePaymentStatus re-derives paid/outstanding/status from the sum of
	// applied allocations targeting this entity.
	UpdatePaymentStatus(appliedSum decimal.Decimal)
}

// Ledger holds the monetary totals shared by sales and purchase orders.
type Ledger struct {
	TotalAmount       decimal.Decimal
	PaidAmount        decimal.Decimal
	OutstandingAmount decimal.Decimal
	PaymentStatus     PaymentStatus
}

func newLedger(total decimal.Decimal) (Ledger, error) {
	total = valueobject.Round(total)
	if total.LessThanOrEqual(decimal.Zero) {
		return Ledger{}, shared.NewDomainError("INVALID_AMOUNT", "Total amount must be positive")
	}
	return Ledger{
		TotalAmount:       total,
		PaidAmount:        decimal.Zero,
		OutstandingAmount: total,
		PaymentStatus:     PaymentStatusUnpaid,
	}, nil
}

func (l *Ledger) GetTotalAmount() decimal.Decimal       { return l.TotalAmount }
func (l *Ledger) GetPaidAmount() decimal.Decimal        { return l.PaidAmount }
func (l *Ledger) GetOutstandingAmount() decimal.Decimal { return l.OutstandingAmount }
func (l *Ledger) GetPaymentStatus() PaymentStatus       { return l.PaymentStatus }

// UpdatePaymentStatus is a full recompute: paid is replaced, never incremented.
// Outstanding may go negative when the applied sum exceeds the total.
func (l *Ledger) UpdatePaymentStatus(appliedSum decimal.Decimal) {
	l.PaidAmount = valueobject.Round(appliedSum)
	l.OutstandingAmount = l.TotalAmount.Sub(l.PaidAmount)
	l.PaymentStatus = DerivePaymentStatus(l.TotalAmount, l.PaidAmount)
}

// IsOutstanding reports whether the document still has a positive balance owed.
func (l *Ledger) IsOutstanding() bool {
	return l.PaymentStatus.IsOpen() && l.OutstandingAmount.GreaterThan(decimal.Zero)
}

// daysPastDue counts whole days from due to ref; zero when there is no due date or it is not yet due.
func daysPastDue(due *time.Time, ref time.Time) int {
	if due == nil {
		return 0
	}
	days := shared.DaysBetween(*due, ref)
	if days < 0 {
		return 0
	}
	return days
}
