package finance

import (
	"time"

	"github.com/erp/arap/internal/domain/shared"
	"github.com/erp/arap/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SnapshotType is the cadence a snapshot was generated for
type SnapshotType string

const (
	SnapshotTypeDaily   SnapshotType = "daily"
	SnapshotTypeWeekly  SnapshotType = "weekly"
	SnapshotTypeMonthly SnapshotType = "monthly"
	SnapshotTypeManual  SnapshotType = "manual"
)

// IsValid checks if the snapshot type is valid
func (t SnapshotType) IsValid() bool {
	switch t {
	case SnapshotTypeDaily, SnapshotTypeWeekly, SnapshotTypeMonthly, SnapshotTypeManual:
		return true
	}
	return false
}

// RiskLevel grades a customer's receivable risk
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "low"
	RiskLevelMedium   RiskLevel = "medium"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelCritical RiskLevel = "critical"
)

// CollectionStatus is the collection action a risk level calls for.
// CollectionStatusWriteOff is set by hand and never derived.
type CollectionStatus string

const (
	CollectionStatusCurrent    CollectionStatus = "current"
	CollectionStatusFollowUp   CollectionStatus = "follow_up"
	CollectionStatusCollection CollectionStatus = "collection"
	CollectionStatusLegal      CollectionStatus = "legal"
	CollectionStatusWriteOff   CollectionStatus = "write_off"
)

// riskLadder pairs risk levels with collection statuses; escalation moves one rung up.
var riskLadder = []struct {
	risk       RiskLevel
	collection CollectionStatus
}{
	{RiskLevelLow, CollectionStatusCurrent},
	{RiskLevelMedium, CollectionStatusFollowUp},
	{RiskLevelHigh, CollectionStatusCollection},
	{RiskLevelCritical, CollectionStatusLegal},
}

// Aging thresholds
const (
	AgingCurrentMaxDays = 30
	Aging31To60MaxDays  = 60
	Aging61To90MaxDays  = 90
	Aging91To120MaxDays = 120
)

var (
	// EscalationUtilization is the credit utilization above which risk escalates one level.
	EscalationUtilization = decimal.NewFromInt(90)

	reliabilityCritical = decimal.NewFromInt(50)
	reliabilityHigh     = decimal.NewFromInt(70)
	reliabilityMedium   = decimal.NewFromInt(85)
	hundred             = decimal.NewFromInt(100)
)

// AgingBuckets holds outstanding amounts by days past due.
type AgingBuckets struct {
	Current     decimal.Decimal `json:"current"`
	Days31To60  decimal.Decimal `json:"days_31_60"`
	Days61To90  decimal.Decimal `json:"days_61_90"`
	Days91To120 decimal.Decimal `json:"days_91_120"`
	Over120     decimal.Decimal `json:"over_120"`
}

func newAgingBuckets() AgingBuckets {
	return AgingBuckets{
		Current:     decimal.Zero,
		Days31To60:  decimal.Zero,
		Days61To90:  decimal.Zero,
		Days91To120: decimal.Zero,
		Over120:     decimal.Zero,
	}
}

// Add places amount in the bucket for daysOverdue and reports whether it counts as overdue.
func (b *AgingBuckets) Add(daysOverdue int, amount decimal.Decimal) bool {
	switch {
	case daysOverdue <= AgingCurrentMaxDays:
		b.Current = b.Current.Add(amount)
		return false
	case daysOverdue <= Aging31To60MaxDays:
		b.Days31To60 = b.Days31To60.Add(amount)
	case daysOverdue <= Aging61To90MaxDays:
		b.Days61To90 = b.Days61To90.Add(amount)
	case daysOverdue <= Aging91To120MaxDays:
		b.Days91To120 = b.Days91To120.Add(amount)
	default:
		b.Over120 = b.Over120.Add(amount)
	}
	return true
}

// Total sums all buckets
func (b AgingBuckets) Total() decimal.Decimal {
	return b.Current.Add(b.Days31To60).Add(b.Days61To90).Add(b.Days91To120).Add(b.Over120)
}

// PaymentBehavior summarizes how a customer paid its settled sales.
type PaymentBehavior struct {
	PaidInvoicesCount int
	AverageDaysToPay  decimal.Decimal
	LatePaymentsCount int
	ReliabilityScore  decimal.Decimal
}

// CustomerAgingSnapshot is an immutable point-in-time classification of a
// customer's receivables. It is only ever created, never updated.
type CustomerAgingSnapshot struct {
	shared.BaseAggregateRoot
	AgingBuckets
	PaymentBehavior
	CustomerID                  uuid.UUID
	SnapshotDate                time.Time
	SnapshotType                SnapshotType
	TotalOutstanding            decimal.Decimal
	TotalInvoicesCount          int
	OverdueInvoicesCount        int
	DaysOldestInvoice           int
	CreditLimit                 decimal.Decimal
	AvailableCredit             decimal.Decimal
	CreditUtilizationPercentage decimal.Decimal
	RiskLevel                   RiskLevel
	CollectionStatus            CollectionStatus
	GeneratedBy                 uuid.UUID
}

// GenerateForCustomer classifies the customer's outstanding sales into aging buckets,
// measures payment behaviour over paid sales and derives the risk cascade.
// Sales that are not open or carry no positive balance are skipped, as are
// sales of other customers. credit may be nil for a customer without a roll-up.
func GenerateForCustomer(
	customerID uuid.UUID,
	snapshotType SnapshotType,
	generatedBy uuid.UUID,
	outstanding []*trade.Sale,
	paid []*trade.Sale,
	credit *CustomerCreditLimit,
	now time.Time,
) (*CustomerAgingSnapshot, error) {
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CUSTOMER", "Customer ID cannot be empty")
	}
	if !snapshotType.IsValid() {
		return nil, shared.NewDomainError("INVALID_SNAPSHOT_TYPE", "Invalid snapshot type")
	}

	snap := &CustomerAgingSnapshot{
		BaseAggregateRoot:           shared.NewBaseAggregateRoot(now),
		AgingBuckets:                newAgingBuckets(),
		CustomerID:                  customerID,
		SnapshotDate:                shared.StartOfDay(now),
		SnapshotType:                snapshotType,
		CreditLimit:                 decimal.Zero,
		AvailableCredit:             decimal.Zero,
		CreditUtilizationPercentage: decimal.Zero,
		GeneratedBy:                 generatedBy,
	}

	for _, s := range outstanding {
		if s.CustomerID != customerID || !s.IsOutstanding() {
			continue
		}
		days := s.DaysOverdue(now)
		snap.TotalInvoicesCount++
		if snap.AgingBuckets.Add(days, s.OutstandingAmount) {
			snap.OverdueInvoicesCount++
		}
		if days > snap.DaysOldestInvoice {
			snap.DaysOldestInvoice = days
		}
	}
	snap.TotalOutstanding = snap.AgingBuckets.Total()

	if credit != nil {
		snap.CreditLimit = credit.CreditLimit
		snap.AvailableCredit = credit.AvailableCredit
		snap.CreditUtilizationPercentage = credit.UtilizationPercentage
	}

	snap.PaymentBehavior = measurePaymentBehavior(customerID, paid, now)
	snap.RiskLevel, snap.CollectionStatus = snap.deriveRisk()

	snap.AddDomainEvent(&AgingSnapshotGeneratedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeAgingSnapshotGenerated, AggregateTypeCustomerAgingSnapshot, snap.ID, now),
		CustomerID:       customerID,
		RiskLevel:        snap.RiskLevel,
		CollectionStatus: snap.CollectionStatus,
		TotalOutstanding: snap.TotalOutstanding,
	})
	return snap, nil
}

// measurePaymentBehavior scores paid sales. With no paid history the score is 100.
func measurePaymentBehavior(customerID uuid.UUID, paid []*trade.Sale, now time.Time) PaymentBehavior {
	b := PaymentBehavior{
		AverageDaysToPay: decimal.Zero,
		ReliabilityScore: hundred,
	}
	totalDays := 0
	for _, s := range paid {
		if s.CustomerID != customerID || !s.IsPaid() {
			continue
		}
		b.PaidInvoicesCount++
		settled := now
		if at := s.SettledAt(); at != nil {
			settled = *at
		}
		if d := shared.DaysBetween(s.SaleDate, settled); d > 0 {
			totalDays += d
		}
		if s.DaysOverdue(now) > 0 {
			b.LatePaymentsCount++
		}
	}
	if b.PaidInvoicesCount == 0 {
		return b
	}
	count := decimal.NewFromInt(int64(b.PaidInvoicesCount))
	b.AverageDaysToPay = decimal.NewFromInt(int64(totalDays)).Div(count).Round(2)
	onTime := decimal.NewFromInt(int64(b.PaidInvoicesCount - b.LatePaymentsCount))
	b.ReliabilityScore = onTime.Div(count).Mul(hundred).Round(2)
	return b
}

func (s *CustomerAgingSnapshot) deriveRisk() (RiskLevel, CollectionStatus) {
	rung := 0
	switch {
	case s.Over120.IsPositive() || s.ReliabilityScore.LessThan(reliabilityCritical):
		rung = 3
	case s.Days91To120.IsPositive() || s.ReliabilityScore.LessThan(reliabilityHigh):
		rung = 2
	case s.Days61To90.IsPositive() || s.ReliabilityScore.LessThan(reliabilityMedium) || s.OverdueInvoicesCount > 0:
		rung = 1
	}
	if s.CreditUtilizationPercentage.GreaterThan(EscalationUtilization) && rung < len(riskLadder)-1 {
		rung++
	}
	return riskLadder[rung].risk, riskLadder[rung].collection
}

// OverdueAmount is the outstanding amount older than the current bucket.
func (s *CustomerAgingSnapshot) OverdueAmount() decimal.Decimal {
	return s.TotalOutstanding.Sub(s.Current)
}

// NeedsAttention reports whether collection work is required
func (s *CustomerAgingSnapshot) NeedsAttention() bool {
	return s.RiskLevel == RiskLevelHigh || s.RiskLevel == RiskLevelCritical
}
