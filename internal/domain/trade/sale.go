package trade

import (
	"time"

	"github.com/erp/arap/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Sale is a customer invoice that receipts are allocated against.
type Sale struct {
	shared.BaseAggregateRoot
	Ledger
	InvoiceNumber   string
	CustomerID      uuid.UUID
	SaleDate        time.Time
	DueDate         *time.Time
	LastPaymentDate *time.Time
	CompletedAt     *time.Time
}

// NewSale creates an unpaid sale
func NewSale(customerID uuid.UUID, invoiceNumber string, total decimal.Decimal, saleDate time.Time, dueDate *time.Time, now time.Time) (*Sale, error) {
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CUSTOMER", "Customer ID cannot be empty")
	}
	if invoiceNumber == "" {
		return nil, shared.NewDomainError("INVALID_INVOICE_NUMBER", "Invoice number cannot be empty")
	}
	if dueDate != nil && dueDate.Before(shared.StartOfDay(saleDate)) {
		return nil, shared.NewDomainError("INVALID_DUE_DATE", "Due date cannot be before the sale date")
	}
	ledger, err := newLedger(total)
	if err != nil {
		return nil, err
	}
	return &Sale{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(now),
		Ledger:            ledger,
		InvoiceNumber:     invoiceNumber,
		CustomerID:        customerID,
		SaleDate:          saleDate,
		DueDate:           dueDate,
	}, nil
}

func (s *Sale) PartyID() uuid.UUID      { return s.CustomerID }
func (s *Sale) DocumentNumber() string  { return s.InvoiceNumber }
func (s *Sale) DocumentDate() time.Time { return s.SaleDate }
func (s *Sale) GetDueDate() *time.Time  { return s.DueDate }

// Settle recomputes the payment status from the applied sum and stamps the
// payment and completion dates, then refreshes the overdue flag.
func (s *Sale) Settle(appliedSum decimal.Decimal, now time.Time) {
	previous := s.PaidAmount
	s.UpdatePaymentStatus(appliedSum)
	if s.PaidAmount.GreaterThan(previous) {
		paidAt := now
		s.LastPaymentDate = &paidAt
	}
	switch s.PaymentStatus {
	case PaymentStatusPaid, PaymentStatusOverpaid:
		if s.CompletedAt == nil {
			completed := now
			s.CompletedAt = &completed
		}
	default:
		s.CompletedAt = nil
	}
	s.RefreshOverdue(now)
	s.Touch(now)
}

// RefreshOverdue flips an open sale between overdue and unpaid/partial
// depending on whether its due date has passed. Returns true if the status changed.
func (s *Sale) RefreshOverdue(asOf time.Time) bool {
	if !s.PaymentStatus.IsOpen() {
		return false
	}
	before := s.PaymentStatus
	if daysPastDue(s.DueDate, asOf) > 0 {
		s.PaymentStatus = PaymentStatusOverdue
	} else {
		s.PaymentStatus = DerivePaymentStatus(s.TotalAmount, s.PaidAmount)
	}
	return before != s.PaymentStatus
}

// DaysOverdue returns the days past due. For a settled sale the count stops
// at the date it was settled, so a late payment stays late.
func (s *Sale) DaysOverdue(asOf time.Time) int {
	ref := asOf
	if !s.PaymentStatus.IsOpen() {
		if settled := s.SettledAt(); settled != nil {
			ref = *settled
		}
	}
	return daysPastDue(s.DueDate, ref)
}

// SettledAt returns the last payment date, falling back to the completion date.
func (s *Sale) SettledAt() *time.Time {
	if s.LastPaymentDate != nil {
		return s.LastPaymentDate
	}
	return s.CompletedAt
}

// IsPaid reports whether the sale is fully settled.
func (s *Sale) IsPaid() bool {
	return s.PaymentStatus == PaymentStatusPaid || s.PaymentStatus == PaymentStatusOverpaid
}

var _ LedgerEntity = (*Sale)(nil)
