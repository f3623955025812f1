package models

import (
	"time"

	"github.com/erp/arap/internal/domain/finance"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CustomerCreditLimitModel is the persistence model for a customer credit roll-up.
// One row per customer.
type CustomerCreditLimitModel struct {
	AggregateModel
	CustomerID            uuid.UUID            `gorm:"type:uuid;not null;uniqueIndex"`
	CreditLimit           decimal.Decimal      `gorm:"type:decimal(18,2);not null;default:0"`
	TotalOutstanding      decimal.Decimal      `gorm:"type:decimal(18,2);not null;default:0"`
	TotalPaid             decimal.Decimal      `gorm:"type:decimal(18,2);not null;default:0"`
	AvailableCredit       decimal.Decimal      `gorm:"type:decimal(18,2);not null;default:0"`
	UtilizationPercentage decimal.Decimal      `gorm:"type:decimal(7,2);not null;default:0"`
	OverdueAmount         decimal.Decimal      `gorm:"type:decimal(18,2);not null;default:0"`
	DaysOverdue           int                  `gorm:"not null;default:0"`
	CreditStatus          finance.CreditStatus `gorm:"type:varchar(20);not null;default:'current';index"`
	LastCalculatedAt      *time.Time
	LimitUpdatedBy        *uuid.UUID `gorm:"type:uuid"`
	LimitUpdatedAt        *time.Time
}

// TableName returns the table name for GORM
func (CustomerCreditLimitModel) TableName() string {
	return "customer_credit_limits"
}

// ToDomain converts the persistence model to a domain CustomerCreditLimit entity.
func (m *CustomerCreditLimitModel) ToDomain() *finance.CustomerCreditLimit {
	return &finance.CustomerCreditLimit{
		BaseAggregateRoot:     m.ToAggregateRoot(),
		CustomerID:            m.CustomerID,
		CreditLimit:           m.CreditLimit,
		TotalOutstanding:      m.TotalOutstanding,
		TotalPaid:             m.TotalPaid,
		AvailableCredit:       m.AvailableCredit,
		UtilizationPercentage: m.UtilizationPercentage,
		OverdueAmount:         m.OverdueAmount,
		DaysOverdue:           m.DaysOverdue,
		CreditStatus:          m.CreditStatus,
		LastCalculatedAt:      m.LastCalculatedAt,
		LimitUpdatedBy:        m.LimitUpdatedBy,
		LimitUpdatedAt:        m.LimitUpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain CustomerCreditLimit entity.
func (m *CustomerCreditLimitModel) FromDomain(c *finance.CustomerCreditLimit) {
	m.FromDomainAggregateRoot(c.BaseAggregateRoot)
	m.CustomerID = c.CustomerID
	m.CreditLimit = c.CreditLimit
	m.TotalOutstanding = c.TotalOutstanding
	m.TotalPaid = c.TotalPaid
	m.AvailableCredit = c.AvailableCredit
	m.UtilizationPercentage = c.UtilizationPercentage
	m.OverdueAmount = c.OverdueAmount
	m.DaysOverdue = c.DaysOverdue
	m.CreditStatus = c.CreditStatus
	m.LastCalculatedAt = c.LastCalculatedAt
	m.LimitUpdatedBy = c.LimitUpdatedBy
	m.LimitUpdatedAt = c.LimitUpdatedAt
}

// CustomerCreditLimitModelFromDomain creates a new persistence model from a domain credit roll-up.
func CustomerCreditLimitModelFromDomain(c *finance.CustomerCreditLimit) *CustomerCreditLimitModel {
	m := &CustomerCreditLimitModel{}
	m.FromDomain(c)
	return m
}

// SupplierBalanceModel is the persistence model for a supplier balance. One row per supplier.
type SupplierBalanceModel struct {
	AggregateModel
	SupplierID            uuid.UUID            `gorm:"type:uuid;not null;uniqueIndex"`
	CreditLimit           decimal.Decimal      `gorm:"type:decimal(18,2);not null;default:0"`
	TotalOutstanding      decimal.Decimal      `gorm:"type:decimal(18,2);not null;default:0"`
	TotalPaid             decimal.Decimal      `gorm:"type:decimal(18,2);not null;default:0"`
	AdvanceBalance        decimal.Decimal      `gorm:"type:decimal(18,2);not null;default:0"`
	OverdueAmount         decimal.Decimal      `gorm:"type:decimal(18,2);not null;default:0"`
	MaxDaysOverdue        int                  `gorm:"not null;default:0"`
	UtilizationPercentage decimal.Decimal      `gorm:"type:decimal(7,2);not null;default:0"`
	PaymentStatus         finance.CreditStatus `gorm:"type:varchar(20);not null;default:'current'"`
	LastPaymentDate       *time.Time
	LastCalculatedAt      *time.Time
}

// TableName returns the table name for GORM
func (SupplierBalanceModel) TableName() string {
	return "supplier_balances"
}

// ToDomain converts the persistence model to a domain SupplierBalance entity.
func (m *SupplierBalanceModel) ToDomain() *finance.SupplierBalance {
	return &finance.SupplierBalance{
		BaseAggregateRoot:     m.ToAggregateRoot(),
		SupplierID:            m.SupplierID,
		CreditLimit:           m.CreditLimit,
		TotalOutstanding:      m.TotalOutstanding,
		TotalPaid:             m.TotalPaid,
		AdvanceBalance:        m.AdvanceBalance,
		OverdueAmount:         m.OverdueAmount,
		MaxDaysOverdue:        m.MaxDaysOverdue,
		UtilizationPercentage: m.UtilizationPercentage,
		PaymentStatus:         m.PaymentStatus,
		LastPaymentDate:       m.LastPaymentDate,
		LastCalculatedAt:      m.LastCalculatedAt,
	}
}

// FromDomain populates the persistence model from a domain SupplierBalance entity.
func (m *SupplierBalanceModel) FromDomain(b *finance.SupplierBalance) {
	m.FromDomainAggregateRoot(b.BaseAggregateRoot)
	m.SupplierID = b.SupplierID
	m.CreditLimit = b.CreditLimit
	m.TotalOutstanding = b.TotalOutstanding
	m.TotalPaid = b.TotalPaid
	m.AdvanceBalance = b.AdvanceBalance
	m.OverdueAmount = b.OverdueAmount
	m.MaxDaysOverdue = b.MaxDaysOverdue
	m.UtilizationPercentage = b.UtilizationPercentage
	m.PaymentStatus = b.PaymentStatus
	m.LastPaymentDate = b.LastPaymentDate
	m.LastCalculatedAt = b.LastCalculatedAt
}

// SupplierBalanceModelFromDomain creates a new persistence model from a domain supplier balance.
func SupplierBalanceModelFromDomain(b *finance.SupplierBalance) *SupplierBalanceModel {
	m := &SupplierBalanceModel{}
	m.FromDomain(b)
	return m
}

// CustomerAgingSnapshotModel is the persistence model for an aging snapshot. Rows are never updated.
type CustomerAgingSnapshotModel struct {
	AggregateModel
	CustomerID                  uuid.UUID                `gorm:"type:uuid;not null;index:idx_aging_customer_date,priority:1"`
	SnapshotDate                time.Time                `gorm:"not null;index:idx_aging_customer_date,priority:2"`
	SnapshotType                finance.SnapshotType     `gorm:"type:varchar(20);not null"`
	CurrentAmount               decimal.Decimal          `gorm:"column:current_amount;type:decimal(18,2);not null;default:0"`
	Days31To60                  decimal.Decimal          `gorm:"column:days_31_60;type:decimal(18,2);not null;default:0"`
	Days61To90                  decimal.Decimal          `gorm:"column:days_61_90;type:decimal(18,2);not null;default:0"`
	Days91To120                 decimal.Decimal          `gorm:"column:days_91_120;type:decimal(18,2);not null;default:0"`
	Over120                     decimal.Decimal          `gorm:"column:over_120;type:decimal(18,2);not null;default:0"`
	TotalOutstanding            decimal.Decimal          `gorm:"type:decimal(18,2);not null;default:0"`
	TotalInvoicesCount          int                      `gorm:"not null;default:0"`
	OverdueInvoicesCount        int                      `gorm:"not null;default:0"`
	DaysOldestInvoice           int                      `gorm:"not null;default:0"`
	PaidInvoicesCount           int                      `gorm:"not null;default:0"`
	AverageDaysToPay            decimal.Decimal          `gorm:"type:decimal(7,2);not null;default:0"`
	LatePaymentsCount           int                      `gorm:"not null;default:0"`
	ReliabilityScore            decimal.Decimal          `gorm:"type:decimal(5,2);not null;default:100"`
	CreditLimit                 decimal.Decimal          `gorm:"type:decimal(18,2);not null;default:0"`
	AvailableCredit             decimal.Decimal          `gorm:"type:decimal(18,2);not null;default:0"`
	CreditUtilizationPercentage decimal.Decimal          `gorm:"type:decimal(7,2);not null;default:0"`
	RiskLevel                   finance.RiskLevel        `gorm:"type:varchar(20);not null;index"`
	CollectionStatus            finance.CollectionStatus `gorm:"type:varchar(20);not null"`
	GeneratedBy                 uuid.UUID                `gorm:"type:uuid;not null"`
}

// TableName returns the table name for GORM
func (CustomerAgingSnapshotModel) TableName() string {
	return "customer_aging_snapshots"
}

// ToDomain converts the persistence model to a domain CustomerAgingSnapshot entity.
func (m *CustomerAgingSnapshotModel) ToDomain() *finance.CustomerAgingSnapshot {
	return &finance.CustomerAgingSnapshot{
		BaseAggregateRoot: m.ToAggregateRoot(),
		AgingBuckets: finance.AgingBuckets{
			Current:     m.CurrentAmount,
			Days31To60:  m.Days31To60,
			Days61To90:  m.Days61To90,
			Days91To120: m.Days91To120,
			Over120:     m.Over120,
		},
		PaymentBehavior: finance.PaymentBehavior{
			PaidInvoicesCount: m.PaidInvoicesCount,
			AverageDaysToPay:  m.AverageDaysToPay,
			LatePaymentsCount: m.LatePaymentsCount,
			ReliabilityScore:  m.ReliabilityScore,
		},
		CustomerID:                  m.CustomerID,
		SnapshotDate:                m.SnapshotDate,
		SnapshotType:                m.SnapshotType,
		TotalOutstanding:            m.TotalOutstanding,
		TotalInvoicesCount:          m.TotalInvoicesCount,
		OverdueInvoicesCount:        m.OverdueInvoicesCount,
		DaysOldestInvoice:           m.DaysOldestInvoice,
		CreditLimit:                 m.CreditLimit,
		AvailableCredit:             m.AvailableCredit,
		CreditUtilizationPercentage: m.CreditUtilizationPercentage,
		RiskLevel:                   m.RiskLevel,
		CollectionStatus:            m.CollectionStatus,
		GeneratedBy:                 m.GeneratedBy,
	}
}

// FromDomain populates the persistence model from a domain CustomerAgingSnapshot entity.
func (m *CustomerAgingSnapshotModel) FromDomain(s *finance.CustomerAgingSnapshot) {
	m.FromDomainAggregateRoot(s.BaseAggregateRoot)
	m.CustomerID = s.CustomerID
	m.SnapshotDate = s.SnapshotDate
	m.SnapshotType = s.SnapshotType
	m.CurrentAmount = s.Current
	m.Days31To60 = s.Days31To60
	m.Days61To90 = s.Days61To90
	m.Days91To120 = s.Days91To120
	m.Over120 = s.Over120
	m.TotalOutstanding = s.TotalOutstanding
	m.TotalInvoicesCount = s.TotalInvoicesCount
	m.OverdueInvoicesCount = s.OverdueInvoicesCount
	m.DaysOldestInvoice = s.DaysOldestInvoice
	m.PaidInvoicesCount = s.PaidInvoicesCount
	m.AverageDaysToPay = s.AverageDaysToPay
	m.LatePaymentsCount = s.LatePaymentsCount
	m.ReliabilityScore = s.ReliabilityScore
	m.CreditLimit = s.CreditLimit
	m.AvailableCredit = s.AvailableCredit
	m.CreditUtilizationPercentage = s.CreditUtilizationPercentage
	m.RiskLevel = s.RiskLevel
	m.CollectionStatus = s.CollectionStatus
	m.GeneratedBy = s.GeneratedBy
}

// CustomerAgingSnapshotModelFromDomain creates a new persistence model from a domain snapshot.
func CustomerAgingSnapshotModelFromDomain(s *finance.CustomerAgingSnapshot) *CustomerAgingSnapshotModel {
	m := &CustomerAgingSnapshotModel{}
	m.FromDomain(s)
	return m
}

// CustomerPaymentScheduleModel is the persistence model for an installment plan.
type CustomerPaymentScheduleModel struct {
	AggregateModel
	CustomerID            uuid.UUID         `gorm:"type:uuid;not null;index"`
	SaleID                *uuid.UUID        `gorm:"type:uuid;index"`
	TotalAmount           decimal.Decimal   `gorm:"type:decimal(18,2);not null"`
	PaidAmount            decimal.Decimal   `gorm:"type:decimal(18,2);not null;default:0"`
	RemainingAmount       decimal.Decimal   `gorm:"type:decimal(18,2);not null"`
	InstallmentAmount     decimal.Decimal   `gorm:"type:decimal(18,2);not null"`
	TotalInstallments     int               `gorm:"not null"`
	CompletedInstallments int               `gorm:"not null;default:0"`
	Frequency             finance.Frequency `gorm:"type:varchar(20);not null"`
	CustomDays            int               `gorm:"not null;default:0"`
	StartDate             time.Time         `gorm:"not null"`
	NextPaymentDate       *time.Time        `gorm:"index"`
	LastPaymentDate       *time.Time
	GracePeriodDays       int                      `gorm:"not null;default:0"`
	LateFeePercentage     decimal.Decimal          `gorm:"type:decimal(5,2);not null;default:0"`
	LateFeeAmount         decimal.Decimal          `gorm:"type:decimal(18,2);not null;default:0"`
	TotalLateFees         decimal.Decimal          `gorm:"type:decimal(18,2);not null;default:0"`
	Status                finance.ScheduleStatus   `gorm:"type:varchar(20);not null;default:'active';index"`
	Payments              finance.SchedulePayments `gorm:"type:jsonb;default:'[]'"`
	StatusReason          string                   `gorm:"type:varchar(500)"`
	CreatedBy             uuid.UUID                `gorm:"type:uuid;not null"`
}

// TableName returns the table name for GORM
func (CustomerPaymentScheduleModel) TableName() string {
	return "customer_payment_schedules"
}

// ToDomain converts the persistence model to a domain CustomerPaymentSchedule entity.
func (m *CustomerPaymentScheduleModel) ToDomain() *finance.CustomerPaymentSchedule {
	return &finance.CustomerPaymentSchedule{
		BaseAggregateRoot:     m.ToAggregateRoot(),
		CustomerID:            m.CustomerID,
		SaleID:                m.SaleID,
		TotalAmount:           m.TotalAmount,
		PaidAmount:            m.PaidAmount,
		RemainingAmount:       m.RemainingAmount,
		InstallmentAmount:     m.InstallmentAmount,
		TotalInstallments:     m.TotalInstallments,
		CompletedInstallments: m.CompletedInstallments,
		Frequency:             m.Frequency,
		CustomDays:            m.CustomDays,
		StartDate:             m.StartDate,
		NextPaymentDate:       m.NextPaymentDate,
		LastPaymentDate:       m.LastPaymentDate,
		GracePeriodDays:       m.GracePeriodDays,
		LateFeePercentage:     m.LateFeePercentage,
		LateFeeAmount:         m.LateFeeAmount,
		TotalLateFees:         m.TotalLateFees,
		Status:                m.Status,
		Payments:              m.Payments,
		StatusReason:          m.StatusReason,
		CreatedBy:             m.CreatedBy,
	}
}

// FromDomain populates the persistence model from a domain CustomerPaymentSchedule entity.
func (m *CustomerPaymentScheduleModel) FromDomain(s *finance.CustomerPaymentSchedule) {
	m.FromDomainAggregateRoot(s.BaseAggregateRoot)
	m.CustomerID = s.CustomerID
	m.SaleID = s.SaleID
	m.TotalAmount = s.TotalAmount
	m.PaidAmount = s.PaidAmount
	m.RemainingAmount = s.RemainingAmount
	m.InstallmentAmount = s.InstallmentAmount
	m.TotalInstallments = s.TotalInstallments
	m.CompletedInstallments = s.CompletedInstallments
	m.Frequency = s.Frequency
	m.CustomDays = s.CustomDays
	m.StartDate = s.StartDate
	m.NextPaymentDate = s.NextPaymentDate
	m.LastPaymentDate = s.LastPaymentDate
	m.GracePeriodDays = s.GracePeriodDays
	m.LateFeePercentage = s.LateFeePercentage
	m.LateFeeAmount = s.LateFeeAmount
	m.TotalLateFees = s.TotalLateFees
	m.Status = s.Status
	m.Payments = s.Payments
	m.StatusReason = s.StatusReason
	m.CreatedBy = s.CreatedBy
}

// CustomerPaymentScheduleModelFromDomain creates a new persistence model from a domain schedule.
func CustomerPaymentScheduleModelFromDomain(s *finance.CustomerPaymentSchedule) *CustomerPaymentScheduleModel {
	m := &CustomerPaymentScheduleModel{}
	m.FromDomain(s)
	return m
}

// AllModels lists every table owned by this module, for AutoMigrate.
func AllModels() []any {
	return []any{
		&SaleModel{},
		&PurchaseOrderModel{},
		&CustomerPaymentReceiveModel{},
		&CustomerPaymentAllocationModel{},
		&PurchasePaymentModel{},
		&PurchasePaymentAllocationModel{},
		&CustomerCreditLimitModel{},
		&SupplierBalanceModel{},
		&CustomerAgingSnapshotModel{},
		&CustomerPaymentScheduleModel{},
	}
}
