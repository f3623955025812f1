package event

import (
	"github.com/erp/arap/internal/domain/finance"
)

// NewFinanceSerializer returns a serializer that knows every event raised
// by the allocation, balance, schedule and aging aggregates.
func NewFinanceSerializer() *EventSerializer {
	s := NewEventSerializer()

	for _, t := range []string{
		finance.EventTypeAllocationApplied,
		finance.EventTypeAllocationReversed,
		finance.EventTypeAllocationCancelled,
		finance.EventTypeAllocationDeleted,
	} {
		s.Register(t, &finance.AllocationEvent{})
	}
	s.Register(finance.EventTypeReceiptFullyAllocated, &finance.ReceiptFullyAllocatedEvent{})
	s.Register(finance.EventTypeCreditStatusChanged, &finance.CreditStatusChangedEvent{})
	s.Register(finance.EventTypePaymentScheduleCompleted, &finance.PaymentScheduleCompletedEvent{})
	s.Register(finance.EventTypeAgingSnapshotGenerated, &finance.AgingSnapshotGeneratedEvent{})
	s.Register(finance.EventTypePurchasePaymentSettled, &finance.PurchasePaymentSettledEvent{})

	return s
}
