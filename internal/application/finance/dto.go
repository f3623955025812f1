package finance

import (
	"time"

	"github.com/erp/arap/internal/domain/finance"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ===================== Requests =====================

// RecordReceiptRequest represents money received from a customer
type RecordReceiptRequest struct {
	ReceiptNumber string          `json:"receipt_number" validate:"required,max=50"`
	CustomerID    uuid.UUID       `json:"customer_id" validate:"required"`
	Amount        decimal.Decimal `json:"amount" validate:"required,gt=0"`
	PaymentMethod string          `json:"payment_method" validate:"required,oneof=cash bank_transfer giro cheque card e_wallet"`
	ReceiptDate   time.Time       `json:"receipt_date" validate:"required"`
	Reference     string          `json:"reference" validate:"max=100"`
	Notes         string          `json:"notes" validate:"max=500"`
}

// AllocateToSaleRequest represents a manual allocation of part of a receipt to one sale
type AllocateToSaleRequest struct {
	ReceiptID      uuid.UUID       `json:"receipt_id" validate:"required"`
	SaleID         uuid.UUID       `json:"sale_id" validate:"required"`
	Amount         decimal.Decimal `json:"amount" validate:"required,gt=0"`
	Notes          string          `json:"notes" validate:"max=500"`
	IdempotencyKey string          `json:"idempotency_key" validate:"max=128"`
}

// AllocationLineRequest is one requested line of a multi-document manual allocation
type AllocationLineRequest struct {
	DocumentID uuid.UUID       `json:"document_id" validate:"required"`
	Amount     decimal.Decimal `json:"amount" validate:"required,gt=0"`
}

// ManualAllocationRequest allocates a payment to several named documents at once.
// Either every line is applied or none is.
type ManualAllocationRequest struct {
	PaymentID      uuid.UUID               `json:"payment_id" validate:"required"`
	Lines          []AllocationLineRequest `json:"lines" validate:"required,min=1,dive"`
	IdempotencyKey string                  `json:"idempotency_key" validate:"max=128"`
}

// ReleaseAllocationRequest reverses or cancels an allocation
type ReleaseAllocationRequest struct {
	AllocationID uuid.UUID `json:"allocation_id" validate:"required"`
	Reason       string    `json:"reason" validate:"max=500"`
}

// RecordPurchasePaymentRequest represents money paid to a supplier
type RecordPurchasePaymentRequest struct {
	PaymentNumber string          `json:"payment_number" validate:"required,max=50"`
	SupplierID    uuid.UUID       `json:"supplier_id" validate:"required"`
	Amount        decimal.Decimal `json:"amount" validate:"required,gt=0"`
	PaymentMethod string          `json:"payment_method" validate:"required,oneof=cash bank_transfer giro cheque card e_wallet"`
	PaymentDate   time.Time       `json:"payment_date" validate:"required"`
	Reference     string          `json:"reference" validate:"max=100"`
	Notes         string          `json:"notes" validate:"max=500"`
}

// AllocateToPurchaseOrderRequest represents a manual allocation of a supplier payment to one order
type AllocateToPurchaseOrderRequest struct {
	PaymentID       uuid.UUID       `json:"payment_id" validate:"required"`
	PurchaseOrderID uuid.UUID       `json:"purchase_order_id" validate:"required"`
	Amount          decimal.Decimal `json:"amount" validate:"required,gt=0"`
	Notes           string          `json:"notes" validate:"max=500"`
	IdempotencyKey  string          `json:"idempotency_key" validate:"max=128"`
}

// AdjustCreditLimitRequest sets a new limit for a customer or supplier
type AdjustCreditLimitRequest struct {
	PartyID     uuid.UUID       `json:"party_id" validate:"required"`
	CreditLimit decimal.Decimal `json:"credit_limit" validate:"gte=0"`
}

// GenerateAgingRequest requests an aging snapshot for one customer
type GenerateAgingRequest struct {
	CustomerID   uuid.UUID `json:"customer_id" validate:"required"`
	SnapshotType string    `json:"snapshot_type" validate:"required,oneof=daily weekly monthly manual"`
}

// CreateScheduleRequest creates an installment plan
type CreateScheduleRequest struct {
	CustomerID        uuid.UUID       `json:"customer_id" validate:"required"`
	SaleID            *uuid.UUID      `json:"sale_id"`
	TotalAmount       decimal.Decimal `json:"total_amount" validate:"required,gt=0"`
	TotalInstallments int             `json:"total_installments" validate:"required,gt=0,lte=360"`
	Frequency         string          `json:"frequency" validate:"required,oneof=weekly bi_weekly monthly quarterly custom"`
	CustomDays        int             `json:"custom_days" validate:"required_if=Frequency custom,gte=0"`
	FirstPaymentDate  time.Time       `json:"first_payment_date" validate:"required"`
	GracePeriodDays   int             `json:"grace_period_days" validate:"gte=0"`
	LateFeePercentage decimal.Decimal `json:"late_fee_percentage" validate:"gte=0,lte=100"`
	LateFeeAmount     decimal.Decimal `json:"late_fee_amount" validate:"gte=0"`
}

// RecordSchedulePaymentRequest records one installment payment
type RecordSchedulePaymentRequest struct {
	ScheduleID uuid.UUID       `json:"schedule_id" validate:"required"`
	Amount     decimal.Decimal `json:"amount" validate:"required,gt=0"`
	Reference  string          `json:"reference" validate:"max=100"`
}

// ===================== Responses =====================

// ReceiptResponse represents a customer receipt
type ReceiptResponse struct {
	ID                uuid.UUID               `json:"id"`
	ReceiptNumber     string                  `json:"receipt_number"`
	CustomerID        uuid.UUID               `json:"customer_id"`
	TotalAmount       decimal.Decimal         `json:"total_amount"`
	AllocatedAmount   decimal.Decimal         `json:"allocated_amount"`
	UnallocatedAmount decimal.Decimal         `json:"unallocated_amount"`
	Status            finance.ReceiptStatus   `json:"status"`
	AllocationStatus  finance.AllocationState `json:"allocation_status"`
	PaymentMethod     finance.PaymentMethod   `json:"payment_method"`
	ReceiptDate       time.Time               `json:"receipt_date"`
	Reference         string                  `json:"reference,omitempty"`
	VerifiedAt        *time.Time              `json:"verified_at,omitempty"`
	Allocations       []AllocationResponse    `json:"allocations,omitempty"`
	Version           int                     `json:"version"`
}

// AllocationResponse represents one allocation on either side
type AllocationResponse struct {
	ID              uuid.UUID                `json:"id"`
	Side            finance.Side             `json:"side"`
	PaymentID       uuid.UUID                `json:"payment_id"`
	DocumentID      uuid.UUID                `json:"document_id"`
	DocumentNumber  string                   `json:"document_number"`
	PartyID         uuid.UUID                `json:"party_id"`
	AllocatedAmount decimal.Decimal          `json:"allocated_amount"`
	Status          finance.AllocationStatus `json:"status"`
	AppliedAt       *time.Time               `json:"applied_at,omitempty"`
	ReversedAt      *time.Time               `json:"reversed_at,omitempty"`
	ReversalReason  string                   `json:"reversal_reason,omitempty"`
	CancelledAt     *time.Time               `json:"cancelled_at,omitempty"`
}

// AllocationResult is the outcome of an allocation run on either side
type AllocationResult struct {
	PaymentID            uuid.UUID            `json:"payment_id"`
	Allocations          []AllocationResponse `json:"allocations"`
	TotalAllocated       decimal.Decimal      `json:"total_allocated"`
	RemainingUnallocated decimal.Decimal      `json:"remaining_unallocated"`
	FullyAllocated       bool                 `json:"fully_allocated"`
	DocumentsFullyPaid   []uuid.UUID          `json:"documents_fully_paid"`
}

// AllocationPreview is a waterfall plan computed without writing anything
type AllocationPreview struct {
	PaymentID            uuid.UUID                   `json:"payment_id"`
	Lines                []finance.PlannedAllocation `json:"lines"`
	TotalAllocated       decimal.Decimal             `json:"total_allocated"`
	RemainingUnallocated decimal.Decimal             `json:"remaining_unallocated"`
	FullyAllocated       bool                        `json:"fully_allocated"`
}

// PurchasePaymentResponse represents a supplier payment
type PurchasePaymentResponse struct {
	ID                uuid.UUID                     `json:"id"`
	PaymentNumber     string                        `json:"payment_number"`
	SupplierID        uuid.UUID                     `json:"supplier_id"`
	Amount            decimal.Decimal               `json:"amount"`
	AllocatedAmount   decimal.Decimal               `json:"allocated_amount"`
	UnallocatedAmount decimal.Decimal               `json:"unallocated_amount"`
	Status            finance.PurchasePaymentStatus `json:"status"`
	PaymentType       finance.PaymentType           `json:"payment_type"`
	PaymentMethod     finance.PaymentMethod         `json:"payment_method"`
	PaymentDate       time.Time                     `json:"payment_date"`
	Allocations       []AllocationResponse          `json:"allocations,omitempty"`
	Version           int                           `json:"version"`
}

// CreditLimitResponse represents a customer's credit position
type CreditLimitResponse struct {
	CustomerID            uuid.UUID            `json:"customer_id"`
	CreditLimit           decimal.Decimal      `json:"credit_limit"`
	TotalOutstanding      decimal.Decimal      `json:"total_outstanding"`
	TotalPaid             decimal.Decimal      `json:"total_paid"`
	AvailableCredit       decimal.Decimal      `json:"available_credit"`
	UtilizationPercentage decimal.Decimal      `json:"utilization_percentage"`
	OverdueAmount         decimal.Decimal      `json:"overdue_amount"`
	DaysOverdue           int                  `json:"days_overdue"`
	CreditStatus          finance.CreditStatus `json:"credit_status"`
	LastCalculatedAt      *time.Time           `json:"last_calculated_at,omitempty"`
}

// SupplierBalanceResponse represents what is owed to a supplier
type SupplierBalanceResponse struct {
	SupplierID            uuid.UUID            `json:"supplier_id"`
	CreditLimit           decimal.Decimal      `json:"credit_limit"`
	TotalOutstanding      decimal.Decimal      `json:"total_outstanding"`
	TotalPaid             decimal.Decimal      `json:"total_paid"`
	AdvanceBalance        decimal.Decimal      `json:"advance_balance"`
	OverdueAmount         decimal.Decimal      `json:"overdue_amount"`
	MaxDaysOverdue        int                  `json:"max_days_overdue"`
	UtilizationPercentage decimal.Decimal      `json:"utilization_percentage"`
	PaymentStatus         finance.CreditStatus `json:"payment_status"`
	LastPaymentDate       *time.Time           `json:"last_payment_date,omitempty"`
}

// ScheduleResponse represents an installment plan
type ScheduleResponse struct {
	ID                    uuid.UUID              `json:"id"`
	CustomerID            uuid.UUID              `json:"customer_id"`
	SaleID                *uuid.UUID             `json:"sale_id,omitempty"`
	TotalAmount           decimal.Decimal        `json:"total_amount"`
	PaidAmount            decimal.Decimal        `json:"paid_amount"`
	RemainingAmount       decimal.Decimal        `json:"remaining_amount"`
	InstallmentAmount     decimal.Decimal        `json:"installment_amount"`
	CompletedInstallments int                    `json:"completed_installments"`
	TotalInstallments     int                    `json:"total_installments"`
	TotalLateFees         decimal.Decimal        `json:"total_late_fees"`
	NextPaymentDate       *time.Time             `json:"next_payment_date,omitempty"`
	Status                finance.ScheduleStatus `json:"status"`
	ProgressPercentage    decimal.Decimal        `json:"progress_percentage"`
}

// SchedulePaymentResult is the outcome of one installment payment
type SchedulePaymentResult struct {
	Schedule ScheduleResponse `json:"schedule"`
	LateFee  decimal.Decimal  `json:"late_fee"`
}

// AgingSnapshotResponse represents one customer's aging snapshot
type AgingSnapshotResponse struct {
	ID                   uuid.UUID                `json:"id"`
	CustomerID           uuid.UUID                `json:"customer_id"`
	SnapshotDate         time.Time                `json:"snapshot_date"`
	SnapshotType         finance.SnapshotType     `json:"snapshot_type"`
	Buckets              finance.AgingBuckets     `json:"buckets"`
	TotalOutstanding     decimal.Decimal          `json:"total_outstanding"`
	TotalInvoicesCount   int                      `json:"total_invoices_count"`
	OverdueInvoicesCount int                      `json:"overdue_invoices_count"`
	DaysOldestInvoice    int                      `json:"days_oldest_invoice"`
	ReliabilityScore     decimal.Decimal          `json:"reliability_score"`
	RiskLevel            finance.RiskLevel        `json:"risk_level"`
	CollectionStatus     finance.CollectionStatus `json:"collection_status"`
}

// AgingExportResult describes a stored aging workbook
type AgingExportResult struct {
	Location  string `json:"location"`
	Customers int    `json:"customers"`
}

// BatchResult summarizes a batch job over many parties
type BatchResult struct {
	Processed int         `json:"processed"`
	Skipped   int         `json:"skipped"`
	Failed    []uuid.UUID `json:"failed,omitempty"`
}

// ===================== Mappers =====================

func toReceiptResponse(r *finance.CustomerPaymentReceive, allocs []*finance.CustomerPaymentAllocation) *ReceiptResponse {
	resp := &ReceiptResponse{
		ID:                r.ID,
		ReceiptNumber:     r.ReceiptNumber,
		CustomerID:        r.CustomerID,
		TotalAmount:       r.TotalAmount,
		AllocatedAmount:   r.AllocatedAmount,
		UnallocatedAmount: r.UnallocatedAmount,
		Status:            r.Status,
		AllocationStatus:  r.AllocationStatus,
		PaymentMethod:     r.PaymentMethod,
		ReceiptDate:       r.ReceiptDate,
		Reference:         r.Reference,
		VerifiedAt:        r.VerifiedAt,
		Version:           r.Version,
	}
	for _, a := range allocs {
		resp.Allocations = append(resp.Allocations, toReceivableAllocationResponse(a))
	}
	return resp
}

func toReceivableAllocationResponse(a *finance.CustomerPaymentAllocation) AllocationResponse {
	return AllocationResponse{
		ID:              a.ID,
		Side:            finance.SideReceivable,
		PaymentID:       a.PaymentReceiveID,
		DocumentID:      a.SaleID,
		DocumentNumber:  a.InvoiceNumber,
		PartyID:         a.CustomerID,
		AllocatedAmount: a.AllocatedAmount,
		Status:          a.Status,
		AppliedAt:       a.AppliedAt,
		ReversedAt:      a.ReversedAt,
		ReversalReason:  a.ReversalReason,
		CancelledAt:     a.CancelledAt,
	}
}

func toPayableAllocationResponse(a *finance.PurchasePaymentAllocation) AllocationResponse {
	return AllocationResponse{
		ID:              a.ID,
		Side:            finance.SidePayable,
		PaymentID:       a.PurchasePaymentID,
		DocumentID:      a.PurchaseOrderID,
		DocumentNumber:  a.OrderNumber,
		PartyID:         a.SupplierID,
		AllocatedAmount: a.AllocatedAmount,
		Status:          a.Status,
		AppliedAt:       a.AppliedAt,
		ReversedAt:      a.ReversedAt,
		ReversalReason:  a.ReversalReason,
		CancelledAt:     a.CancelledAt,
	}
}

func toPurchasePaymentResponse(p *finance.PurchasePayment, allocs []*finance.PurchasePaymentAllocation) *PurchasePaymentResponse {
	resp := &PurchasePaymentResponse{
		ID:                p.ID,
		PaymentNumber:     p.PaymentNumber,
		SupplierID:        p.SupplierID,
		Amount:            p.Amount,
		AllocatedAmount:   p.AllocatedAmount,
		UnallocatedAmount: p.UnallocatedAmount(),
		Status:            p.Status,
		PaymentType:       p.PaymentType,
		PaymentMethod:     p.PaymentMethod,
		PaymentDate:       p.PaymentDate,
		Version:           p.Version,
	}
	for _, a := range allocs {
		resp.Allocations = append(resp.Allocations, toPayableAllocationResponse(a))
	}
	return resp
}

func toCreditLimitResponse(c *finance.CustomerCreditLimit) *CreditLimitResponse {
	return &CreditLimitResponse{
		CustomerID:            c.CustomerID,
		CreditLimit:           c.CreditLimit,
		TotalOutstanding:      c.TotalOutstanding,
		TotalPaid:             c.TotalPaid,
		AvailableCredit:       c.AvailableCredit,
		UtilizationPercentage: c.UtilizationPercentage,
		OverdueAmount:         c.OverdueAmount,
		DaysOverdue:           c.DaysOverdue,
		CreditStatus:          c.CreditStatus,
		LastCalculatedAt:      c.LastCalculatedAt,
	}
}

func toSupplierBalanceResponse(b *finance.SupplierBalance) *SupplierBalanceResponse {
	return &SupplierBalanceResponse{
		SupplierID:            b.SupplierID,
		CreditLimit:           b.CreditLimit,
		TotalOutstanding:      b.TotalOutstanding,
		TotalPaid:             b.TotalPaid,
		AdvanceBalance:        b.AdvanceBalance,
		OverdueAmount:         b.OverdueAmount,
		MaxDaysOverdue:        b.MaxDaysOverdue,
		UtilizationPercentage: b.UtilizationPercentage,
		PaymentStatus:         b.PaymentStatus,
		LastPaymentDate:       b.LastPaymentDate,
	}
}

func toAgingSnapshotResponse(s *finance.CustomerAgingSnapshot) *AgingSnapshotResponse {
	return &AgingSnapshotResponse{
		ID:                   s.ID,
		CustomerID:           s.CustomerID,
		SnapshotDate:         s.SnapshotDate,
		SnapshotType:         s.SnapshotType,
		Buckets:              s.AgingBuckets,
		TotalOutstanding:     s.TotalOutstanding,
		TotalInvoicesCount:   s.TotalInvoicesCount,
		OverdueInvoicesCount: s.OverdueInvoicesCount,
		DaysOldestInvoice:    s.DaysOldestInvoice,
		ReliabilityScore:     s.ReliabilityScore,
		RiskLevel:            s.RiskLevel,
		CollectionStatus:     s.CollectionStatus,
	}
}

func toScheduleResponse(s *finance.CustomerPaymentSchedule) ScheduleResponse {
	return ScheduleResponse{
		ID:                    s.ID,
		CustomerID:            s.CustomerID,
		SaleID:                s.SaleID,
		TotalAmount:           s.TotalAmount,
		PaidAmount:            s.PaidAmount,
		RemainingAmount:       s.RemainingAmount,
		InstallmentAmount:     s.InstallmentAmount,
		CompletedInstallments: s.CompletedInstallments,
		TotalInstallments:     s.TotalInstallments,
		TotalLateFees:         s.TotalLateFees,
		NextPaymentDate:       s.NextPaymentDate,
		Status:                s.Status,
		ProgressPercentage:    s.ProgressPercentage(),
	}
}

func toManualLines(lines []AllocationLineRequest) []finance.ManualLine {
	out := make([]finance.ManualLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, finance.ManualLine{TargetID: l.DocumentID, Amount: l.Amount})
	}
	return out
}
