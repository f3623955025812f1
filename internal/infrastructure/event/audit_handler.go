package event

import (
	"context"
	"fmt"

	"github.com/erp/arap/internal/domain/shared"
	"go.uber.org/zap"
)

// AuditHandler writes every event it receives to the audit log as a
// structured entry carrying the JSON payload.
type AuditHandler struct {
	serializer *EventSerializer
	logger     *zap.Logger
	eventTypes []string
}

// NewAuditHandler creates a handler for all types the serializer knows
func NewAuditHandler(serializer *EventSerializer, logger *zap.Logger) *AuditHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditHandler{
		serializer: serializer,
		logger:     logger.Named("audit"),
		eventTypes: serializer.RegisteredTypes(),
	}
}

// EventTypes implements shared.EventHandler
func (h *AuditHandler) EventTypes() []string {
	return h.eventTypes
}

// Handle implements shared.EventHandler
func (h *AuditHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	payload, err := h.serializer.Serialize(event)
	if err != nil {
		return fmt.Errorf("audit %s: %w", event.EventID(), err)
	}
	h.logger.Info(event.EventType(),
		zap.String("event_id", event.EventID().String()),
		zap.String("aggregate_type", event.AggregateType()),
		zap.String("aggregate_id", event.AggregateID().String()),
		zap.Time("occurred_at", event.OccurredAt()),
		zap.ByteString("payload", payload),
	)
	return nil
}

var _ shared.EventHandler = (*AuditHandler)(nil)
