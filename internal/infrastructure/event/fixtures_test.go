package event

import (
	"context"
	"sync"
	"time"

	"github.com/erp/arap/internal/domain/finance"
	"github.com/erp/arap/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

var occurredAt = time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

func appliedEvent() *finance.AllocationEvent {
	id := uuid.New()
	return &finance.AllocationEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(finance.EventTypeAllocationApplied,
			finance.AggregateTypeCustomerPaymentAllocation, id, occurredAt),
		Side:         finance.SideReceivable,
		AllocationID: id,
		PaymentID:    uuid.New(),
		DocumentID:   uuid.New(),
		PartyID:      uuid.New(),
		Amount:       decimal.NewFromInt(250000),
	}
}

func creditChangedEvent() *finance.CreditStatusChangedEvent {
	id := uuid.New()
	return &finance.CreditStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(finance.EventTypeCreditStatusChanged,
			finance.AggregateTypeCustomerCreditLimit, id, occurredAt),
		Side:             finance.SideReceivable,
		PartyID:          id,
		FromStatus:       finance.CreditStatusGood,
		ToStatus:         finance.CreditStatusWarning,
		TotalOutstanding: decimal.NewFromInt(800000),
	}
}

// recordingHandler remembers what it handled
type recordingHandler struct {
	types   []string
	mu      sync.Mutex
	handled []shared.DomainEvent
	err     error
	panics  bool
}

func (h *recordingHandler) Handle(_ context.Context, e shared.DomainEvent) error {
	if h.panics {
		panic("boom")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, e)
	return h.err
}

func (h *recordingHandler) EventTypes() []string { return h.types }

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

type mockIdempotencyStore struct {
	mock.Mock
}

func (m *mockIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *mockIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *mockIdempotencyStore) Forget(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *mockIdempotencyStore) Close() error {
	return m.Called().Error(0)
}
