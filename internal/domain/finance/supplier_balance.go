package finance

import (
	"time"

	"github.com/erp/arap/internal/domain/shared"
	"github.com/erp/arap/internal/domain/shared/valueobject"
	"github.com/erp/arap/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SupplierBalance is the per-supplier payable roll-up, derived from purchase
// orders and purchase payments.
type SupplierBalance struct {
	shared.BaseAggregateRoot
	SupplierID            uuid.UUID
	CreditLimit           decimal.Decimal
	TotalOutstanding      decimal.Decimal
	TotalPaid             decimal.Decimal
	AdvanceBalance        decimal.Decimal
	OverdueAmount         decimal.Decimal
	MaxDaysOverdue        int
	UtilizationPercentage decimal.Decimal
	PaymentStatus         CreditStatus
	LastPaymentDate       *time.Time
	LastCalculatedAt      *time.Time
}

// NewSupplierBalance creates the roll-up row for a new supplier
func NewSupplierBalance(supplierID uuid.UUID, creditLimit decimal.Decimal, now time.Time) (*SupplierBalance, error) {
	if supplierID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_SUPPLIER", "Supplier ID cannot be empty")
	}
	if creditLimit.IsNegative() {
		return nil, shared.NewDomainError("INVALID_CREDIT_LIMIT", "Credit limit cannot be negative")
	}
	return &SupplierBalance{
		BaseAggregateRoot:     shared.NewBaseAggregateRoot(now),
		SupplierID:            supplierID,
		CreditLimit:           valueobject.Round(creditLimit),
		TotalOutstanding:      decimal.Zero,
		TotalPaid:             decimal.Zero,
		AdvanceBalance:        decimal.Zero,
		OverdueAmount:         decimal.Zero,
		UtilizationPercentage: decimal.Zero,
		PaymentStatus:         CreditStatusGood,
	}, nil
}

// Recompute re-derives the balance:
//
//	total_outstanding = Σ outstanding of open orders
//	total_paid        = Σ amount of completed payments
//	advance_balance   = Σ amount of completed payments still typed advance
//
// then applies the status priority rules. Idempotent.
func (b *SupplierBalance) Recompute(orders []*trade.PurchaseOrder, payments []*PurchasePayment, now time.Time) {
	outstanding := decimal.Zero
	overdue := decimal.Zero
	maxDays := 0
	for _, o := range orders {
		if o.SupplierID != b.SupplierID || !o.IsOutstanding() {
			continue
		}
		outstanding = outstanding.Add(o.OutstandingAmount)
		if days := o.DaysOverdue(now); days > 0 {
			overdue = overdue.Add(o.OutstandingAmount)
			if days > maxDays {
				maxDays = days
			}
		}
	}

	paid := decimal.Zero
	advance := decimal.Zero
	var lastPayment *time.Time
	for _, p := range payments {
		if p.SupplierID != b.SupplierID || !p.IsCompleted() {
			continue
		}
		paid = paid.Add(p.Amount)
		if p.PaymentType == PaymentTypeAdvance {
			advance = advance.Add(p.Amount)
		}
		if lastPayment == nil || p.PaymentDate.After(*lastPayment) {
			d := p.PaymentDate
			lastPayment = &d
		}
	}

	b.TotalOutstanding = outstanding
	b.OverdueAmount = overdue
	b.MaxDaysOverdue = maxDays
	b.TotalPaid = paid
	b.AdvanceBalance = advance
	b.LastPaymentDate = lastPayment
	b.refreshStatus(now)
}

// AdjustCreditLimit changes the limit granted by the supplier and re-derives the status.
func (b *SupplierBalance) AdjustCreditLimit(limit decimal.Decimal, now time.Time) error {
	if limit.IsNegative() {
		return shared.NewDomainError("INVALID_CREDIT_LIMIT", "Credit limit cannot be negative")
	}
	b.CreditLimit = valueobject.Round(limit)
	b.refreshStatus(now)
	return nil
}

func (b *SupplierBalance) refreshStatus(now time.Time) {
	b.UtilizationPercentage = valueobject.Percent(b.TotalOutstanding, b.CreditLimit)
	before := b.PaymentStatus
	b.PaymentStatus = DeriveCreditStatus(CreditPosition{
		CreditLimit:           b.CreditLimit,
		TotalOutstanding:      b.TotalOutstanding,
		UtilizationPercentage: b.UtilizationPercentage,
		MaxDaysOverdue:        b.MaxDaysOverdue,
	}, CreditStatusGood)
	at := now
	b.LastCalculatedAt = &at
	b.Touch(now)

	if before != b.PaymentStatus {
		b.AddDomainEvent(&CreditStatusChangedEvent{
			BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeCreditStatusChanged, AggregateTypeSupplierBalance, b.ID, now),
			Side:             SidePayable,
			PartyID:          b.SupplierID,
			FromStatus:       before,
			ToStatus:         b.PaymentStatus,
			TotalOutstanding: b.TotalOutstanding,
		})
	}
}

// NetPayable is what is owed after netting unapplied advances.
func (b *SupplierBalance) NetPayable() decimal.Decimal {
	return b.TotalOutstanding.Sub(b.AdvanceBalance)
}
