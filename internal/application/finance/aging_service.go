package finance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/arap/internal/domain/finance"
	"github.com/erp/arap/internal/domain/shared"
	"github.com/erp/arap/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AgingWorkbookWriter renders aging snapshots into a report file.
type AgingWorkbookWriter interface {
	Write(snapshots []*finance.CustomerAgingSnapshot, asOf time.Time) ([]byte, error)
	ContentType() string
	Extension() string
}

// ReportStore persists rendered reports and returns where they were put.
type ReportStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (location string, err error)
}

// AgingService takes point-in-time aging snapshots of customer receivables.
type AgingService struct {
	serviceSupport
	writer AgingWorkbookWriter
	store  ReportStore
}

// NewAgingService creates a new AgingService
func NewAgingService(scope TransactionScope, clock shared.Clock, logger *zap.Logger) *AgingService {
	return &AgingService{
		serviceSupport: newServiceSupport(scope, clock, logger.Named("aging")),
	}
}

// SetExporter wires the workbook writer and the store used by Export
func (s *AgingService) SetExporter(writer AgingWorkbookWriter, store ReportStore) {
	s.writer = writer
	s.store = store
}

// Generate takes a snapshot for one customer. Scheduled types are taken at
// most once per customer and day; manual snapshots are always allowed.
func (s *AgingService) Generate(ctx context.Context, actor uuid.UUID, req GenerateAgingRequest) (*AgingSnapshotResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "aging", "generate")
	defer span.End()

	if err := validateRequest(req); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrCustomerID, req.CustomerID.String(),
		telemetry.SpanAttrSnapshotType, req.SnapshotType,
	)

	snapshot, err := s.generate(ctx, actor, req.CustomerID, finance.SnapshotType(req.SnapshotType))
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetOK(span)
	return toAgingSnapshotResponse(snapshot), nil
}

func (s *AgingService) generate(ctx context.Context, actor, customerID uuid.UUID, snapshotType finance.SnapshotType) (*finance.CustomerAgingSnapshot, error) {
	var snapshot *finance.CustomerAgingSnapshot
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		now := s.clock.Now()
		if snapshotType != finance.SnapshotTypeManual {
			exists, err := repos.AgingSnapshotRepo().Exists(ctx, customerID, snapshotType, now)
			if err != nil {
				return err
			}
			if exists {
				return shared.ErrAlreadyExists.WithMessage(fmt.Sprintf("A %s aging snapshot already exists for today", snapshotType))
			}
		}

		outstanding, err := repos.SaleRepo().FindOutstandingByCustomer(ctx, customerID)
		if err != nil {
			return fmt.Errorf("failed to load outstanding sales: %w", err)
		}
		paid, err := repos.SaleRepo().FindPaidByCustomer(ctx, customerID)
		if err != nil {
			return fmt.Errorf("failed to load paid sales: %w", err)
		}
		credit, err := repos.CreditLimitRepo().FindByCustomer(ctx, customerID)
		switch {
		case errors.Is(err, shared.ErrNotFound):
			credit = nil
		case err != nil:
			return err
		}

		snapshot, err = finance.GenerateForCustomer(customerID, snapshotType, actor, outstanding, paid, credit, now)
		if err != nil {
			return err
		}
		return repos.AgingSnapshotRepo().Create(ctx, snapshot)
	})
	if err != nil {
		return nil, err
	}

	s.publishDomainEvents(ctx, shared.CollectEvents(snapshot))
	s.logger.Debug("aging snapshot generated",
		zap.String("customer_id", customerID.String()),
		zap.String("risk_level", string(snapshot.RiskLevel)),
		zap.String("collection_status", string(snapshot.CollectionStatus)),
	)
	return snapshot, nil
}

// GenerateAll takes a snapshot of the given type for every customer with sales.
// Customers that already have one for today are skipped.
func (s *AgingService) GenerateAll(ctx context.Context, actor uuid.UUID, snapshotType finance.SnapshotType) (*BatchResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "aging", "generate_all")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrSnapshotType, string(snapshotType))

	if !snapshotType.IsValid() {
		err := shared.ErrInvalidInput.WithMessage("snapshot_type: must be one of daily weekly monthly manual")
		telemetry.RecordError(span, err)
		return nil, err
	}

	var ids []uuid.UUID
	if err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		ids, err = repos.SaleRepo().ListCustomerIDs(ctx)
		return err
	}); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrBatchSize, len(ids))

	result, err := s.runBatch(ctx, "aging generation", ids, func(ctx context.Context, id uuid.UUID) error {
		_, err := s.generate(ctx, actor, id, snapshotType)
		if errors.Is(err, shared.ErrAlreadyExists) {
			return errSkipped
		}
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return result, err
	}
	telemetry.SetOK(span)
	return result, nil
}

// Latest returns the most recent snapshot of a customer
func (s *AgingService) Latest(ctx context.Context, customerID uuid.UUID) (*AgingSnapshotResponse, error) {
	var resp *AgingSnapshotResponse
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		snapshot, err := repos.AgingSnapshotRepo().FindLatestByCustomer(ctx, customerID)
		if err != nil {
			return err
		}
		resp = toAgingSnapshotResponse(snapshot)
		return nil
	})
	return resp, err
}

// Export renders every snapshot taken on date into a workbook and stores it.
func (s *AgingService) Export(ctx context.Context, date time.Time) (*AgingExportResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "aging", "export")
	defer span.End()

	if s.writer == nil || s.store == nil {
		err := shared.ErrInvalidState.WithMessage("aging export is not configured")
		telemetry.RecordError(span, err)
		return nil, err
	}

	var snapshots []*finance.CustomerAgingSnapshot
	if err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		snapshots, err = repos.AgingSnapshotRepo().FindByDate(ctx, date)
		return err
	}); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	data, err := s.writer.Write(snapshots, date)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to render aging workbook: %w", err)
	}
	key := fmt.Sprintf("aging/aging-%s.%s", shared.StartOfDay(date).Format("2006-01-02"), s.writer.Extension())
	location, err := s.store.Put(ctx, key, data, s.writer.ContentType())
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to store aging workbook: %w", err)
	}

	s.logger.Info("aging workbook exported",
		zap.String("location", location),
		zap.Int("customers", len(snapshots)),
	)
	telemetry.SetOK(span)
	return &AgingExportResult{Location: location, Customers: len(snapshots)}, nil
}
