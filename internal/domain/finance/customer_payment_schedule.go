package finance

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/erp/arap/internal/domain/shared"
	"github.com/erp/arap/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Frequency is the spacing between installments
type Frequency string

const (
	FrequencyWeekly    Frequency = "weekly"
	FrequencyBiWeekly  Frequency = "bi_weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyCustom    Frequency = "custom"
)

// IsValid checks if the frequency is valid
func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyWeekly, FrequencyBiWeekly, FrequencyMonthly, FrequencyQuarterly, FrequencyCustom:
		return true
	}
	return false
}

// Days returns the installment spacing. Months and quarters are fixed day counts.
func (f Frequency) Days(customDays int) int {
	switch f {
	case FrequencyWeekly:
		return 7
	case FrequencyBiWeekly:
		return 14
	case FrequencyMonthly:
		return 30
	case FrequencyQuarterly:
		return 90
	default:
		return customDays
	}
}

// ScheduleStatus represents the status of a payment schedule
type ScheduleStatus string

const (
	ScheduleStatusActive    ScheduleStatus = "active"
	ScheduleStatusCompleted ScheduleStatus = "completed"
	ScheduleStatusSuspended ScheduleStatus = "suspended"
	ScheduleStatusCancelled ScheduleStatus = "cancelled"
	ScheduleStatusDefaulted ScheduleStatus = "defaulted"
)

// IsTerminal reports whether the schedule can no longer change
func (s ScheduleStatus) IsTerminal() bool {
	return s == ScheduleStatusCompleted || s == ScheduleStatusCancelled || s == ScheduleStatusDefaulted
}

// SchedulePayment records one installment paid against a schedule
type SchedulePayment struct {
	Installment int             `json:"installment"`
	Amount      decimal.Decimal `json:"amount"`
	Reference   string          `json:"reference"`
	LateFee     decimal.Decimal `json:"late_fee"`
	DaysLate    int             `json:"days_late"`
	PaidAt      time.Time       `json:"paid_at"`
}

// SchedulePayments is the installment history, stored as JSONB
type SchedulePayments []SchedulePayment

// Value implements driver.Valuer for JSONB storage
func (p SchedulePayments) Value() (driver.Value, error) {
	if p == nil {
		return "[]", nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for JSONB retrieval
func (p *SchedulePayments) Scan(value any) error {
	if value == nil {
		*p = SchedulePayments{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("failed to scan SchedulePayments: unsupported type")
	}
	if len(raw) == 0 {
		*p = SchedulePayments{}
		return nil
	}
	return json.Unmarshal(raw, p)
}

// ScheduleTerms are the commercial terms of an installment plan
type ScheduleTerms struct {
	TotalAmount       decimal.Decimal
	TotalInstallments int
	Frequency         Frequency
	CustomDays        int
	FirstPaymentDate  time.Time
	GracePeriodDays   int
	LateFeePercentage decimal.Decimal
	LateFeeAmount     decimal.Decimal
}

func (t ScheduleTerms) validate() error {
	if valueobject.Round(t.TotalAmount).LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount.WithMessage("Schedule total must be positive")
	}
	if t.TotalInstallments <= 0 {
		return shared.NewDomainError("INVALID_INSTALLMENTS", "Schedule needs at least one installment")
	}
	if !t.Frequency.IsValid() {
		return shared.NewDomainError("INVALID_FREQUENCY", "Invalid payment frequency")
	}
	if t.Frequency == FrequencyCustom && t.CustomDays <= 0 {
		return shared.NewDomainError("INVALID_FREQUENCY", "Custom frequency requires a positive day count")
	}
	if t.GracePeriodDays < 0 {
		return shared.NewDomainError("INVALID_GRACE_PERIOD", "Grace period cannot be negative")
	}
	if t.LateFeePercentage.IsNegative() || t.LateFeeAmount.IsNegative() {
		return shared.NewDomainError("INVALID_LATE_FEE", "Late fees cannot be negative")
	}
	return nil
}

// CustomerPaymentSchedule is an installment plan that advances one step per
// recorded payment. It is independent of allocations.
type CustomerPaymentSchedule struct {
	shared.BaseAggregateRoot
	CustomerID            uuid.UUID
	SaleID                *uuid.UUID
	TotalAmount           decimal.Decimal
	PaidAmount            decimal.Decimal
	RemainingAmount       decimal.Decimal
	InstallmentAmount     decimal.Decimal
	TotalInstallments     int
	CompletedInstallments int
	Frequency             Frequency
	CustomDays            int
	StartDate             time.Time
	NextPaymentDate       *time.Time
	LastPaymentDate       *time.Time
	GracePeriodDays       int
	LateFeePercentage     decimal.Decimal
	LateFeeAmount         decimal.Decimal
	TotalLateFees         decimal.Decimal
	Status                ScheduleStatus
	Payments              SchedulePayments
	StatusReason          string
	CreatedBy             uuid.UUID
}

// NewCustomerPaymentSchedule creates an active schedule whose first installment is due on FirstPaymentDate.
func NewCustomerPaymentSchedule(customerID uuid.UUID, saleID *uuid.UUID, terms ScheduleTerms, createdBy uuid.UUID, now time.Time) (*CustomerPaymentSchedule, error) {
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CUSTOMER", "Customer ID cannot be empty")
	}
	if err := terms.validate(); err != nil {
		return nil, err
	}
	total := valueobject.Round(terms.TotalAmount)
	first := terms.FirstPaymentDate
	return &CustomerPaymentSchedule{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(now),
		CustomerID:        customerID,
		SaleID:            saleID,
		TotalAmount:       total,
		PaidAmount:        decimal.Zero,
		RemainingAmount:   total,
		InstallmentAmount: valueobject.Round(total.Div(decimal.NewFromInt(int64(terms.TotalInstallments)))),
		TotalInstallments: terms.TotalInstallments,
		Frequency:         terms.Frequency,
		CustomDays:        terms.CustomDays,
		StartDate:         first,
		NextPaymentDate:   &first,
		GracePeriodDays:   terms.GracePeriodDays,
		LateFeePercentage: terms.LateFeePercentage,
		LateFeeAmount:     valueobject.Round(terms.LateFeeAmount),
		TotalLateFees:     decimal.Zero,
		Status:            ScheduleStatusActive,
		Payments:          SchedulePayments{},
		CreatedBy:         createdBy,
	}, nil
}

// ProcessPayment records one installment. A late fee is charged only when the
// installment is overdue beyond the grace period; it is tracked in TotalLateFees
// and does not reduce the amount credited or affect completion.
func (s *CustomerPaymentSchedule) ProcessPayment(amount decimal.Decimal, reference string, now time.Time) (decimal.Decimal, error) {
	if s.Status != ScheduleStatusActive {
		return decimal.Zero, ErrWrongState.WithMessage("Payments can only be recorded on an active schedule")
	}
	amount = valueobject.Round(amount)
	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, ErrInvalidAmount
	}

	daysLate := s.DaysOverdue(now)
	fee := decimal.Zero
	if daysLate > s.GracePeriodDays {
		fee = s.lateFee(amount)
		s.TotalLateFees = s.TotalLateFees.Add(fee)
	}

	s.PaidAmount = s.PaidAmount.Add(amount)
	s.RemainingAmount = decimal.Max(decimal.Zero, s.TotalAmount.Sub(s.PaidAmount))
	s.CompletedInstallments++
	paidAt := now
	s.LastPaymentDate = &paidAt
	s.Payments = append(s.Payments, SchedulePayment{
		Installment: s.CompletedInstallments,
		Amount:      amount,
		Reference:   reference,
		LateFee:     fee,
		DaysLate:    daysLate,
		PaidAt:      now,
	})

	if s.CompletedInstallments >= s.TotalInstallments {
		s.Status = ScheduleStatusCompleted
		s.NextPaymentDate = nil
		s.AddDomainEvent(&PaymentScheduleCompletedEvent{
			BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentScheduleCompleted, AggregateTypeCustomerPaymentSchedule, s.ID, now),
			ScheduleID:      s.ID,
			CustomerID:      s.CustomerID,
			PaidAmount:      s.PaidAmount,
			TotalLateFees:   s.TotalLateFees,
		})
	} else if s.NextPaymentDate != nil {
		next := s.NextPaymentDate.AddDate(0, 0, s.Frequency.Days(s.CustomDays))
		s.NextPaymentDate = &next
	}
	s.Touch(now)
	return fee, nil
}

func (s *CustomerPaymentSchedule) lateFee(amount decimal.Decimal) decimal.Decimal {
	if s.LateFeePercentage.IsPositive() {
		return valueobject.PercentOf(amount, s.LateFeePercentage)
	}
	return s.LateFeeAmount
}

// IsOverdue reports whether the next installment is past due
func (s *CustomerPaymentSchedule) IsOverdue(now time.Time) bool {
	return s.DaysOverdue(now) > 0
}

// DaysOverdue is the number of days the next installment is past due.
func (s *CustomerPaymentSchedule) DaysOverdue(now time.Time) int {
	if s.Status != ScheduleStatusActive || s.NextPaymentDate == nil {
		return 0
	}
	days := shared.DaysBetween(*s.NextPaymentDate, now)
	if days < 0 {
		return 0
	}
	return days
}

// Suspend pauses an active schedule
func (s *CustomerPaymentSchedule) Suspend(reason string, now time.Time) error {
	if s.Status != ScheduleStatusActive {
		return ErrWrongState.WithMessage("Only active schedules can be suspended")
	}
	s.Status = ScheduleStatusSuspended
	s.StatusReason = reason
	s.Touch(now)
	return nil
}

// Resume reactivates a suspended schedule
func (s *CustomerPaymentSchedule) Resume(now time.Time) error {
	if s.Status != ScheduleStatusSuspended {
		return ErrWrongState.WithMessage("Only suspended schedules can be resumed")
	}
	s.Status = ScheduleStatusActive
	s.StatusReason = ""
	s.Touch(now)
	return nil
}

// Cancel stops the schedule for good
func (s *CustomerPaymentSchedule) Cancel(reason string, now time.Time) error {
	if s.Status.IsTerminal() {
		return ErrAlreadyTerminal
	}
	s.Status = ScheduleStatusCancelled
	s.StatusReason = reason
	s.NextPaymentDate = nil
	s.Touch(now)
	return nil
}

// MarkDefaulted closes an active or suspended schedule as defaulted
func (s *CustomerPaymentSchedule) MarkDefaulted(reason string, now time.Time) error {
	if s.Status.IsTerminal() {
		return ErrAlreadyTerminal
	}
	s.Status = ScheduleStatusDefaulted
	s.StatusReason = reason
	s.NextPaymentDate = nil
	s.Touch(now)
	return nil
}

// ProgressPercentage is the share of installments completed
func (s *CustomerPaymentSchedule) ProgressPercentage() decimal.Decimal {
	return valueobject.Percent(decimal.NewFromInt(int64(s.CompletedInstallments)), decimal.NewFromInt(int64(s.TotalInstallments)))
}
