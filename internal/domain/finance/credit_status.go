package finance

import (
	"github.com/shopspring/decimal"
)

// CreditStatus is the derived standing of a customer or supplier.
// Customers are "current" when healthy, suppliers are "good".
type CreditStatus string

const (
	CreditStatusCurrent   CreditStatus = "current"
	CreditStatusGood      CreditStatus = "good"
	CreditStatusWarning   CreditStatus = "warning"
	CreditStatusSuspended CreditStatus = "suspended"
	CreditStatusDefaulted CreditStatus = "defaulted"
	CreditStatusBlocked   CreditStatus = "blocked"
)

// IsValid checks if the status is valid
func (s CreditStatus) IsValid() bool {
	switch s {
	case CreditStatusCurrent, CreditStatusGood, CreditStatusWarning, CreditStatusSuspended, CreditStatusDefaulted, CreditStatusBlocked:
		return true
	}
	return false
}

// Thresholds of the status priority rules.
const (
	WarningDaysOverdue   = 30
	SuspendedDaysOverdue = 60
	DefaultedDaysOverdue = 90
)

// NearLimitPercentage is the utilization at which a party is flagged as warning.
var NearLimitPercentage = decimal.NewFromInt(80)

// CreditPosition is the input to the status rules.
type CreditPosition struct {
	CreditLimit           decimal.Decimal
	TotalOutstanding      decimal.Decimal
	UtilizationPercentage decimal.Decimal
	MaxDaysOverdue        int
}

// OverLimit reports whether a positive limit is exceeded. A zero limit means no limit.
func (p CreditPosition) OverLimit() bool {
	return p.CreditLimit.GreaterThan(decimal.Zero) && p.TotalOutstanding.GreaterThan(p.CreditLimit)
}

// NearLimit reports whether utilization reached the warning threshold.
func (p CreditPosition) NearLimit() bool {
	return p.CreditLimit.GreaterThan(decimal.Zero) && p.UtilizationPercentage.GreaterThanOrEqual(NearLimitPercentage)
}

// DeriveCreditStatus applies the priority rules, first match wins:
// over limit, overdue > 90d, overdue > 60d, overdue > 30d or near limit, else healthy.
func DeriveCreditStatus(p CreditPosition, healthy CreditStatus) CreditStatus {
	switch {
	case p.OverLimit():
		return CreditStatusBlocked
	case p.MaxDaysOverdue > DefaultedDaysOverdue:
		return CreditStatusDefaulted
	case p.MaxDaysOverdue > SuspendedDaysOverdue:
		return CreditStatusSuspended
	case p.MaxDaysOverdue > WarningDaysOverdue || p.NearLimit():
		return CreditStatusWarning
	default:
		return healthy
	}
}
