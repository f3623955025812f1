package models

import (
	"time"

	"github.com/erp/arap/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LedgerColumns are the settlement columns shared by sales and purchase orders.
type LedgerColumns struct {
	TotalAmount       decimal.Decimal     `gorm:"type:decimal(18,2);not null"`
	PaidAmount        decimal.Decimal     `gorm:"type:decimal(18,2);not null;default:0"`
	OutstandingAmount decimal.Decimal     `gorm:"type:decimal(18,2);not null"`
	PaymentStatus     trade.PaymentStatus `gorm:"type:varchar(20);not null;default:'unpaid';index"`
}

func (c LedgerColumns) toDomain() trade.Ledger {
	return trade.Ledger{
		TotalAmount:       c.TotalAmount,
		PaidAmount:        c.PaidAmount,
		OutstandingAmount: c.OutstandingAmount,
		PaymentStatus:     c.PaymentStatus,
	}
}

func ledgerColumnsFromDomain(l trade.Ledger) LedgerColumns {
	return LedgerColumns{
		TotalAmount:       l.TotalAmount,
		PaidAmount:        l.PaidAmount,
		OutstandingAmount: l.OutstandingAmount,
		PaymentStatus:     l.PaymentStatus,
	}
}

// SaleModel is the persistence model for the Sale aggregate root.
type SaleModel struct {
	AggregateModel
	LedgerColumns
	InvoiceNumber   string     `gorm:"type:varchar(50);not null;uniqueIndex"`
	CustomerID      uuid.UUID  `gorm:"type:uuid;not null;index"`
	SaleDate        time.Time  `gorm:"not null"`
	DueDate         *time.Time `gorm:"index"`
	LastPaymentDate *time.Time
	CompletedAt     *time.Time
	DeletedAt       gorm.DeletedAt `gorm:"index"`
}

// TableName returns the table name for GORM
func (SaleModel) TableName() string {
	return "sales"
}

// ToDomain converts the persistence model to a domain Sale entity.
func (m *SaleModel) ToDomain() *trade.Sale {
	return &trade.Sale{
		BaseAggregateRoot: m.ToAggregateRoot(),
		Ledger:            m.LedgerColumns.toDomain(),
		InvoiceNumber:     m.InvoiceNumber,
		CustomerID:        m.CustomerID,
		SaleDate:          m.SaleDate,
		DueDate:           m.DueDate,
		LastPaymentDate:   m.LastPaymentDate,
		CompletedAt:       m.CompletedAt,
	}
}

// FromDomain populates the persistence model from a domain Sale entity.
func (m *SaleModel) FromDomain(s *trade.Sale) {
	m.FromDomainAggregateRoot(s.BaseAggregateRoot)
	m.LedgerColumns = ledgerColumnsFromDomain(s.Ledger)
	m.InvoiceNumber = s.InvoiceNumber
	m.CustomerID = s.CustomerID
	m.SaleDate = s.SaleDate
	m.DueDate = s.DueDate
	m.LastPaymentDate = s.LastPaymentDate
	m.CompletedAt = s.CompletedAt
}

// SaleModelFromDomain creates a new persistence model from a domain Sale entity.
func SaleModelFromDomain(s *trade.Sale) *SaleModel {
	m := &SaleModel{}
	m.FromDomain(s)
	return m
}

// PurchaseOrderModel is the persistence model for the PurchaseOrder aggregate root.
type PurchaseOrderModel struct {
	AggregateModel
	LedgerColumns
	OrderNumber     string     `gorm:"type:varchar(50);not null;uniqueIndex"`
	SupplierID      uuid.UUID  `gorm:"type:uuid;not null;index"`
	OrderDate       time.Time  `gorm:"not null"`
	DueDate         *time.Time `gorm:"index"`
	LastPaymentDate *time.Time
	DeletedAt       gorm.DeletedAt `gorm:"index"`
}

// TableName returns the table name for GORM
func (PurchaseOrderModel) TableName() string {
	return "purchase_orders"
}

// ToDomain converts the persistence model to a domain PurchaseOrder entity.
func (m *PurchaseOrderModel) ToDomain() *trade.PurchaseOrder {
	return &trade.PurchaseOrder{
		BaseAggregateRoot: m.ToAggregateRoot(),
		Ledger:            m.LedgerColumns.toDomain(),
		OrderNumber:       m.OrderNumber,
		SupplierID:        m.SupplierID,
		OrderDate:         m.OrderDate,
		DueDate:           m.DueDate,
		LastPaymentDate:   m.LastPaymentDate,
	}
}

// FromDomain populates the persistence model from a domain PurchaseOrder entity.
func (m *PurchaseOrderModel) FromDomain(o *trade.PurchaseOrder) {
	m.FromDomainAggregateRoot(o.BaseAggregateRoot)
	m.LedgerColumns = ledgerColumnsFromDomain(o.Ledger)
	m.OrderNumber = o.OrderNumber
	m.SupplierID = o.SupplierID
	m.OrderDate = o.OrderDate
	m.DueDate = o.DueDate
	m.LastPaymentDate = o.LastPaymentDate
}

// PurchaseOrderModelFromDomain creates a new persistence model from a domain PurchaseOrder entity.
func PurchaseOrderModelFromDomain(o *trade.PurchaseOrder) *PurchaseOrderModel {
	m := &PurchaseOrderModel{}
	m.FromDomain(o)
	return m
}
