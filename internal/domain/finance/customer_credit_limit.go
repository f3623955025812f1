package finance

import (
	"time"

	"github.com/erp/arap/internal/domain/shared"
	"github.com/erp/arap/internal/domain/shared/valueobject"
	"github.com/erp/arap/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CustomerCreditLimit is the per-customer receivable roll-up. Every figure
// except CreditLimit is derived by Recompute from sales and receipts and
// is never adjusted incrementally.
type CustomerCreditLimit struct {
	shared.BaseAggregateRoot
	CustomerID            uuid.UUID
	CreditLimit           decimal.Decimal
	TotalOutstanding      decimal.Decimal
	TotalPaid             decimal.Decimal
	AvailableCredit       decimal.Decimal
	UtilizationPercentage decimal.Decimal
	OverdueAmount         decimal.Decimal
	DaysOverdue           int
	CreditStatus          CreditStatus
	LastCalculatedAt      *time.Time
	LimitUpdatedBy        *uuid.UUID
	LimitUpdatedAt        *time.Time
}

// NewCustomerCreditLimit creates the roll-up row for a new customer
func NewCustomerCreditLimit(customerID uuid.UUID, creditLimit decimal.Decimal, now time.Time) (*CustomerCreditLimit, error) {
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CUSTOMER", "Customer ID cannot be empty")
	}
	if creditLimit.IsNegative() {
		return nil, shared.NewDomainError("INVALID_CREDIT_LIMIT", "Credit limit cannot be negative")
	}
	limit := valueobject.Round(creditLimit)
	return &CustomerCreditLimit{
		BaseAggregateRoot:     shared.NewBaseAggregateRoot(now),
		CustomerID:            customerID,
		CreditLimit:           limit,
		TotalOutstanding:      decimal.Zero,
		TotalPaid:             decimal.Zero,
		AvailableCredit:       limit,
		UtilizationPercentage: decimal.Zero,
		OverdueAmount:         decimal.Zero,
		CreditStatus:          CreditStatusCurrent,
	}, nil
}

// Recompute re-derives the roll-up from the customer's sales and receipts as of now.
// Only open sales with a positive balance count as outstanding; only receipts whose
// money is confirmed count as paid. Calling it twice with the same inputs is a no-op.
func (c *CustomerCreditLimit) Recompute(sales []*trade.Sale, receipts []*CustomerPaymentReceive, now time.Time) {
	outstanding := decimal.Zero
	overdue := decimal.Zero
	maxDays := 0
	for _, s := range sales {
		if s.CustomerID != c.CustomerID || !s.IsOutstanding() {
			continue
		}
		outstanding = outstanding.Add(s.OutstandingAmount)
		if days := s.DaysOverdue(now); days > 0 {
			overdue = overdue.Add(s.OutstandingAmount)
			if days > maxDays {
				maxDays = days
			}
		}
	}

	paid := decimal.Zero
	for _, r := range receipts {
		if r.CustomerID != c.CustomerID || r.DeletedAt != nil || !r.Status.IsReceived() {
			continue
		}
		paid = paid.Add(r.TotalAmount)
	}

	c.TotalOutstanding = outstanding
	c.OverdueAmount = overdue
	c.DaysOverdue = maxDays
	c.TotalPaid = paid
	c.refreshStatus(now)
}

// AdjustCreditLimit changes the limit and re-derives the status against the current figures.
func (c *CustomerCreditLimit) AdjustCreditLimit(limit decimal.Decimal, actor uuid.UUID, now time.Time) error {
	if limit.IsNegative() {
		return shared.NewDomainError("INVALID_CREDIT_LIMIT", "Credit limit cannot be negative")
	}
	c.CreditLimit = valueobject.Round(limit)
	by := actor
	at := now
	c.LimitUpdatedBy = &by
	c.LimitUpdatedAt = &at
	c.refreshStatus(now)
	return nil
}

func (c *CustomerCreditLimit) refreshStatus(now time.Time) {
	available := c.CreditLimit.Sub(c.TotalOutstanding)
	if available.IsNegative() {
		available = decimal.Zero
	}
	c.AvailableCredit = available
	c.UtilizationPercentage = valueobject.Percent(c.TotalOutstanding, c.CreditLimit)

	before := c.CreditStatus
	c.CreditStatus = DeriveCreditStatus(c.Position(), CreditStatusCurrent)
	at := now
	c.LastCalculatedAt = &at
	c.Touch(now)

	if before != c.CreditStatus {
		c.AddDomainEvent(&CreditStatusChangedEvent{
			BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeCreditStatusChanged, AggregateTypeCustomerCreditLimit, c.ID, now),
			Side:             SideReceivable,
			PartyID:          c.CustomerID,
			FromStatus:       before,
			ToStatus:         c.CreditStatus,
			TotalOutstanding: c.TotalOutstanding,
		})
	}
}

// Position returns the inputs of the status rules
func (c *CustomerCreditLimit) Position() CreditPosition {
	return CreditPosition{
		CreditLimit:           c.CreditLimit,
		TotalOutstanding:      c.TotalOutstanding,
		UtilizationPercentage: c.UtilizationPercentage,
		MaxDaysOverdue:        c.DaysOverdue,
	}
}

// CanTakeCredit reports whether a new sale of amount fits the limit.
func (c *CustomerCreditLimit) CanTakeCredit(amount decimal.Decimal) bool {
	if c.CreditStatus == CreditStatusBlocked || c.CreditStatus == CreditStatusDefaulted {
		return false
	}
	if c.CreditLimit.IsZero() {
		return true
	}
	return amount.LessThanOrEqual(c.AvailableCredit)
}
