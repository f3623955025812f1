package models

import (
	"time"

	"github.com/erp/arap/internal/domain/finance"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CustomerPaymentReceiveModel is the persistence model for a customer receipt.
type CustomerPaymentReceiveModel struct {
	AggregateModel
	ReceiptNumber      string                  `gorm:"type:varchar(50);not null;uniqueIndex"`
	CustomerID         uuid.UUID               `gorm:"type:uuid;not null;index"`
	TotalAmount        decimal.Decimal         `gorm:"type:decimal(18,2);not null"`
	AllocatedAmount    decimal.Decimal         `gorm:"type:decimal(18,2);not null;default:0"`
	UnallocatedAmount  decimal.Decimal         `gorm:"type:decimal(18,2);not null"`
	Status             finance.ReceiptStatus   `gorm:"type:varchar(20);not null;default:'pending';index"`
	AllocationStatus   finance.AllocationState `gorm:"type:varchar(30);not null;default:'unallocated'"`
	PaymentMethod      finance.PaymentMethod   `gorm:"type:varchar(20);not null"`
	ReceiptDate        time.Time               `gorm:"not null;index"`
	Reference          string                  `gorm:"type:varchar(100)"`
	Notes              string                  `gorm:"type:text"`
	ReceivedBy         uuid.UUID               `gorm:"type:uuid;not null"`
	VerifiedBy         *uuid.UUID              `gorm:"type:uuid"`
	VerifiedAt         *time.Time
	CancelledAt        *time.Time
	CancellationReason string         `gorm:"type:varchar(500)"`
	DeletedAt          gorm.DeletedAt `gorm:"index"`
}

// TableName returns the table name for GORM
func (CustomerPaymentReceiveModel) TableName() string {
	return "customer_payment_receives"
}

// ToDomain converts the persistence model to a domain CustomerPaymentReceive entity.
func (m *CustomerPaymentReceiveModel) ToDomain() *finance.CustomerPaymentReceive {
	return &finance.CustomerPaymentReceive{
		BaseAggregateRoot:  m.ToAggregateRoot(),
		ReceiptNumber:      m.ReceiptNumber,
		CustomerID:         m.CustomerID,
		TotalAmount:        m.TotalAmount,
		AllocatedAmount:    m.AllocatedAmount,
		UnallocatedAmount:  m.UnallocatedAmount,
		Status:             m.Status,
		AllocationStatus:   m.AllocationStatus,
		PaymentMethod:      m.PaymentMethod,
		ReceiptDate:        m.ReceiptDate,
		Reference:          m.Reference,
		Notes:              m.Notes,
		ReceivedBy:         m.ReceivedBy,
		VerifiedBy:         m.VerifiedBy,
		VerifiedAt:         m.VerifiedAt,
		CancelledAt:        m.CancelledAt,
		CancellationReason: m.CancellationReason,
		DeletedAt:          fromDeletedAt(m.DeletedAt),
	}
}

// FromDomain populates the persistence model from a domain CustomerPaymentReceive entity.
func (m *CustomerPaymentReceiveModel) FromDomain(r *finance.CustomerPaymentReceive) {
	m.FromDomainAggregateRoot(r.BaseAggregateRoot)
	m.ReceiptNumber = r.ReceiptNumber
	m.CustomerID = r.CustomerID
	m.TotalAmount = r.TotalAmount
	m.AllocatedAmount = r.AllocatedAmount
	m.UnallocatedAmount = r.UnallocatedAmount
	m.Status = r.Status
	m.AllocationStatus = r.AllocationStatus
	m.PaymentMethod = r.PaymentMethod
	m.ReceiptDate = r.ReceiptDate
	m.Reference = r.Reference
	m.Notes = r.Notes
	m.ReceivedBy = r.ReceivedBy
	m.VerifiedBy = r.VerifiedBy
	m.VerifiedAt = r.VerifiedAt
	m.CancelledAt = r.CancelledAt
	m.CancellationReason = r.CancellationReason
	m.DeletedAt = toDeletedAt(r.DeletedAt)
}

// CustomerPaymentReceiveModelFromDomain creates a new persistence model from a domain receipt.
func CustomerPaymentReceiveModelFromDomain(r *finance.CustomerPaymentReceive) *CustomerPaymentReceiveModel {
	m := &CustomerPaymentReceiveModel{}
	m.FromDomain(r)
	return m
}

// AllocationColumns are the lifecycle columns shared by both allocation tables.
type AllocationColumns struct {
	AllocatedAmount    decimal.Decimal          `gorm:"type:decimal(18,2);not null"`
	Status             finance.AllocationStatus `gorm:"type:varchar(20);not null;default:'pending';index"`
	AppliedAt          *time.Time
	ApprovedBy         *uuid.UUID `gorm:"type:uuid"`
	ApprovedAt         *time.Time
	ReversedBy         *uuid.UUID `gorm:"type:uuid"`
	ReversedAt         *time.Time
	ReversalReason     string `gorm:"type:varchar(500)"`
	CancelledAt        *time.Time
	CancellationReason string         `gorm:"type:varchar(500)"`
	DeletedAt          gorm.DeletedAt `gorm:"index"`
}

func (c AllocationColumns) toDomain() finance.AllocationLifecycle {
	return finance.AllocationLifecycle{
		AllocatedAmount:    c.AllocatedAmount,
		Status:             c.Status,
		AppliedAt:          c.AppliedAt,
		ApprovedBy:         c.ApprovedBy,
		ApprovedAt:         c.ApprovedAt,
		ReversedBy:         c.ReversedBy,
		ReversedAt:         c.ReversedAt,
		ReversalReason:     c.ReversalReason,
		CancelledAt:        c.CancelledAt,
		CancellationReason: c.CancellationReason,
		DeletedAt:          fromDeletedAt(c.DeletedAt),
	}
}

func allocationColumnsFromDomain(l finance.AllocationLifecycle) AllocationColumns {
	return AllocationColumns{
		AllocatedAmount:    l.AllocatedAmount,
		Status:             l.Status,
		AppliedAt:          l.AppliedAt,
		ApprovedBy:         l.ApprovedBy,
		ApprovedAt:         l.ApprovedAt,
		ReversedBy:         l.ReversedBy,
		ReversedAt:         l.ReversedAt,
		ReversalReason:     l.ReversalReason,
		CancelledAt:        l.CancelledAt,
		CancellationReason: l.CancellationReason,
		DeletedAt:          toDeletedAt(l.DeletedAt),
	}
}

// CustomerPaymentAllocationModel is the persistence model for a receivable allocation.
type CustomerPaymentAllocationModel struct {
	AggregateModel
	AllocationColumns
	PaymentReceiveID uuid.UUID `gorm:"type:uuid;not null;index"`
	SaleID           uuid.UUID `gorm:"type:uuid;not null;index"`
	CustomerID       uuid.UUID `gorm:"type:uuid;not null;index"`
	InvoiceNumber    string    `gorm:"type:varchar(50);not null"`
	Notes            string    `gorm:"type:text"`
	CreatedBy        uuid.UUID `gorm:"type:uuid;not null"`
}

// TableName returns the table name for GORM
func (CustomerPaymentAllocationModel) TableName() string {
	return "customer_payment_allocations"
}

// ToDomain converts the persistence model to a domain CustomerPaymentAllocation entity.
func (m *CustomerPaymentAllocationModel) ToDomain() *finance.CustomerPaymentAllocation {
	return &finance.CustomerPaymentAllocation{
		BaseAggregateRoot:   m.ToAggregateRoot(),
		AllocationLifecycle: m.AllocationColumns.toDomain(),
		PaymentReceiveID:    m.PaymentReceiveID,
		SaleID:              m.SaleID,
		CustomerID:          m.CustomerID,
		InvoiceNumber:       m.InvoiceNumber,
		Notes:               m.Notes,
		CreatedBy:           m.CreatedBy,
	}
}

// FromDomain populates the persistence model from a domain CustomerPaymentAllocation entity.
func (m *CustomerPaymentAllocationModel) FromDomain(a *finance.CustomerPaymentAllocation) {
	m.FromDomainAggregateRoot(a.BaseAggregateRoot)
	m.AllocationColumns = allocationColumnsFromDomain(a.AllocationLifecycle)
	m.PaymentReceiveID = a.PaymentReceiveID
	m.SaleID = a.SaleID
	m.CustomerID = a.CustomerID
	m.InvoiceNumber = a.InvoiceNumber
	m.Notes = a.Notes
	m.CreatedBy = a.CreatedBy
}

// CustomerPaymentAllocationModelFromDomain creates a new persistence model from a domain allocation.
func CustomerPaymentAllocationModelFromDomain(a *finance.CustomerPaymentAllocation) *CustomerPaymentAllocationModel {
	m := &CustomerPaymentAllocationModel{}
	m.FromDomain(a)
	return m
}

// PurchasePaymentModel is the persistence model for a supplier payment.
type PurchasePaymentModel struct {
	AggregateModel
	PaymentNumber      string                        `gorm:"type:varchar(50);not null;uniqueIndex"`
	SupplierID         uuid.UUID                     `gorm:"type:uuid;not null;index"`
	Amount             decimal.Decimal               `gorm:"type:decimal(18,2);not null"`
	AllocatedAmount    decimal.Decimal               `gorm:"type:decimal(18,2);not null;default:0"`
	Status             finance.PurchasePaymentStatus `gorm:"type:varchar(20);not null;default:'pending';index"`
	PaymentType        finance.PaymentType           `gorm:"type:varchar(20);not null;default:'advance'"`
	PaymentMethod      finance.PaymentMethod         `gorm:"type:varchar(20);not null"`
	PaymentDate        time.Time                     `gorm:"not null;index"`
	Reference          string                        `gorm:"type:varchar(100)"`
	Notes              string                        `gorm:"type:text"`
	PaidBy             uuid.UUID                     `gorm:"type:uuid;not null"`
	CompletedAt        *time.Time
	FailedAt           *time.Time
	FailureReason      string `gorm:"type:varchar(500)"`
	CancelledAt        *time.Time
	CancellationReason string         `gorm:"type:varchar(500)"`
	DeletedAt          gorm.DeletedAt `gorm:"index"`
}

// TableName returns the table name for GORM
func (PurchasePaymentModel) TableName() string {
	return "purchase_payments"
}

// ToDomain converts the persistence model to a domain PurchasePayment entity.
func (m *PurchasePaymentModel) ToDomain() *finance.PurchasePayment {
	return &finance.PurchasePayment{
		BaseAggregateRoot:  m.ToAggregateRoot(),
		PaymentNumber:      m.PaymentNumber,
		SupplierID:         m.SupplierID,
		Amount:             m.Amount,
		AllocatedAmount:    m.AllocatedAmount,
		Status:             m.Status,
		PaymentType:        m.PaymentType,
		PaymentMethod:      m.PaymentMethod,
		PaymentDate:        m.PaymentDate,
		Reference:          m.Reference,
		Notes:              m.Notes,
		PaidBy:             m.PaidBy,
		CompletedAt:        m.CompletedAt,
		FailedAt:           m.FailedAt,
		FailureReason:      m.FailureReason,
		CancelledAt:        m.CancelledAt,
		CancellationReason: m.CancellationReason,
		DeletedAt:          fromDeletedAt(m.DeletedAt),
	}
}

// FromDomain populates the persistence model from a domain PurchasePayment entity.
func (m *PurchasePaymentModel) FromDomain(p *finance.PurchasePayment) {
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	m.PaymentNumber = p.PaymentNumber
	m.SupplierID = p.SupplierID
	m.Amount = p.Amount
	m.AllocatedAmount = p.AllocatedAmount
	m.Status = p.Status
	m.PaymentType = p.PaymentType
	m.PaymentMethod = p.PaymentMethod
	m.PaymentDate = p.PaymentDate
	m.Reference = p.Reference
	m.Notes = p.Notes
	m.PaidBy = p.PaidBy
	m.CompletedAt = p.CompletedAt
	m.FailedAt = p.FailedAt
	m.FailureReason = p.FailureReason
	m.CancelledAt = p.CancelledAt
	m.CancellationReason = p.CancellationReason
	m.DeletedAt = toDeletedAt(p.DeletedAt)
}

// PurchasePaymentModelFromDomain creates a new persistence model from a domain payment.
func PurchasePaymentModelFromDomain(p *finance.PurchasePayment) *PurchasePaymentModel {
	m := &PurchasePaymentModel{}
	m.FromDomain(p)
	return m
}

// PurchasePaymentAllocationModel is the persistence model for a payable allocation.
type PurchasePaymentAllocationModel struct {
	AggregateModel
	AllocationColumns
	PurchasePaymentID uuid.UUID `gorm:"type:uuid;not null;index"`
	PurchaseOrderID   uuid.UUID `gorm:"type:uuid;not null;index"`
	SupplierID        uuid.UUID `gorm:"type:uuid;not null;index"`
	OrderNumber       string    `gorm:"type:varchar(50);not null"`
	Notes             string    `gorm:"type:text"`
	CreatedBy         uuid.UUID `gorm:"type:uuid;not null"`
}

// TableName returns the table name for GORM
func (PurchasePaymentAllocationModel) TableName() string {
	return "purchase_payment_allocations"
}

// ToDomain converts the persistence model to a domain PurchasePaymentAllocation entity.
func (m *PurchasePaymentAllocationModel) ToDomain() *finance.PurchasePaymentAllocation {
	return &finance.PurchasePaymentAllocation{
		BaseAggregateRoot:   m.ToAggregateRoot(),
		AllocationLifecycle: m.AllocationColumns.toDomain(),
		PurchasePaymentID:   m.PurchasePaymentID,
		PurchaseOrderID:     m.PurchaseOrderID,
		SupplierID:          m.SupplierID,
		OrderNumber:         m.OrderNumber,
		Notes:               m.Notes,
		CreatedBy:           m.CreatedBy,
	}
}

// FromDomain populates the persistence model from a domain PurchasePaymentAllocation entity.
func (m *PurchasePaymentAllocationModel) FromDomain(a *finance.PurchasePaymentAllocation) {
	m.FromDomainAggregateRoot(a.BaseAggregateRoot)
	m.AllocationColumns = allocationColumnsFromDomain(a.AllocationLifecycle)
	m.PurchasePaymentID = a.PurchasePaymentID
	m.PurchaseOrderID = a.PurchaseOrderID
	m.SupplierID = a.SupplierID
	m.OrderNumber = a.OrderNumber
	m.Notes = a.Notes
	m.CreatedBy = a.CreatedBy
}

// PurchasePaymentAllocationModelFromDomain creates a new persistence model from a domain allocation.
func PurchasePaymentAllocationModelFromDomain(a *finance.PurchasePaymentAllocation) *PurchasePaymentAllocationModel {
	m := &PurchasePaymentAllocationModel{}
	m.FromDomain(a)
	return m
}
