package finance

import (
	"time"

	"github.com/erp/arap/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeAllocationApplied        = "AllocationApplied"
	EventTypeAllocationReversed       = "AllocationReversed"
	EventTypeAllocationCancelled      = "AllocationCancelled"
	EventTypeAllocationDeleted        = "AllocationDeleted"
	EventTypeReceiptFullyAllocated    = "ReceiptFullyAllocated"
	EventTypeCreditStatusChanged      = "CreditStatusChanged"
	EventTypePaymentScheduleCompleted = "PaymentScheduleCompleted"
	EventTypeAgingSnapshotGenerated   = "AgingSnapshotGenerated"
	EventTypePurchasePaymentSettled   = "PurchasePaymentSettled"
)

// Aggregate types
const (
	AggregateTypeCustomerPaymentAllocation = "CustomerPaymentAllocation"
	AggregateTypePurchasePaymentAllocation = "PurchasePaymentAllocation"
	AggregateTypeCustomerPaymentReceive    = "CustomerPaymentReceive"
	AggregateTypePurchasePayment           = "PurchasePayment"
	AggregateTypeCustomerCreditLimit       = "CustomerCreditLimit"
	AggregateTypeSupplierBalance           = "SupplierBalance"
	AggregateTypeCustomerPaymentSchedule   = "CustomerPaymentSchedule"
	AggregateTypeCustomerAgingSnapshot     = "CustomerAgingSnapshot"
)

// Side distinguishes receivable from payable allocations in shared events.
type Side string

const (
	SideReceivable Side = "receivable"
	SidePayable    Side = "payable"
)

// AllocationEvent carries one allocation lifecycle transition.
type AllocationEvent struct {
	shared.BaseDomainEvent
	Side         Side            `json:"side"`
	AllocationID uuid.UUID       `json:"allocation_id"`
	PaymentID    uuid.UUID       `json:"payment_id"`
	DocumentID   uuid.UUID       `json:"document_id"`
	PartyID      uuid.UUID       `json:"party_id"`
	Amount       decimal.Decimal `json:"amount"`
	Reason       string          `json:"reason,omitempty"`
	// WasApplied is set on cancel/delete when the applied amount left the balance.
	WasApplied bool `json:"was_applied,omitempty"`
}

func newAllocationEvent(eventType, aggType string, side Side, allocationID, paymentID, documentID, partyID uuid.UUID, amount decimal.Decimal, now time.Time) *AllocationEvent {
	return &AllocationEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, aggType, allocationID, now),
		Side:            side,
		AllocationID:    allocationID,
		PaymentID:       paymentID,
		DocumentID:      documentID,
		PartyID:         partyID,
		Amount:          amount,
	}
}

// ReceiptFullyAllocatedEvent is raised when a receipt's unallocated balance reaches zero.
type ReceiptFullyAllocatedEvent struct {
	shared.BaseDomainEvent
	ReceiptID     uuid.UUID       `json:"receipt_id"`
	ReceiptNumber string          `json:"receipt_number"`
	CustomerID    uuid.UUID       `json:"customer_id"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
}

// CreditStatusChangedEvent is raised when a recompute moves a customer's or supplier's status.
type CreditStatusChangedEvent struct {
	shared.BaseDomainEvent
	Side             Side            `json:"side"`
	PartyID          uuid.UUID       `json:"party_id"`
	FromStatus       CreditStatus    `json:"from_status"`
	ToStatus         CreditStatus    `json:"to_status"`
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
}

// PaymentScheduleCompletedEvent is raised on the final installment.
type PaymentScheduleCompletedEvent struct {
	shared.BaseDomainEvent
	ScheduleID    uuid.UUID       `json:"schedule_id"`
	CustomerID    uuid.UUID       `json:"customer_id"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	TotalLateFees decimal.Decimal `json:"total_late_fees"`
}

// AgingSnapshotGeneratedEvent is raised when a snapshot row is created.
type AgingSnapshotGeneratedEvent struct {
	shared.BaseDomainEvent
	CustomerID       uuid.UUID        `json:"customer_id"`
	RiskLevel        RiskLevel        `json:"risk_level"`
	CollectionStatus CollectionStatus `json:"collection_status"`
	TotalOutstanding decimal.Decimal  `json:"total_outstanding"`
}

// PurchasePaymentSettledEvent is raised when a purchase payment leaves pending.
type PurchasePaymentSettledEvent struct {
	shared.BaseDomainEvent
	PaymentID  uuid.UUID             `json:"payment_id"`
	SupplierID uuid.UUID             `json:"supplier_id"`
	Status     PurchasePaymentStatus `json:"status"`
	Amount     decimal.Decimal       `json:"amount"`
}
