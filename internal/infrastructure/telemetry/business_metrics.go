package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/erp/arap/internal/domain/finance"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// AllocationMetrics records allocation outcomes and the outstanding AR/AP totals.
type AllocationMetrics struct {
	logger *zap.Logger

	appliedTotal  *Counter
	releasedTotal *Counter
	rejectedTotal *Counter
	amount        *Histogram

	outstanding *AmountGauge

	provider OutstandingProvider
	stopChan chan struct{}
	stopOnce sync.Once
	runOnce  sync.Once
}

// OutstandingProvider reports the open balance of all live documents per side.
type OutstandingProvider interface {
	OutstandingTotals(ctx context.Context) (receivable, payable decimal.Decimal, err error)
}

// AllocationMetricsConfig holds configuration for allocation metrics.
type AllocationMetricsConfig struct {
	Meter    metric.Meter
	Logger   *zap.Logger
	Provider OutstandingProvider
}

// NewAllocationMetrics creates the allocation instruments on cfg.Meter.
func NewAllocationMetrics(cfg AllocationMetricsConfig) (*AllocationMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	am := &AllocationMetrics{
		logger:   logger,
		provider: cfg.Provider,
		stopChan: make(chan struct{}),
	}

	set := NewInstrumentSet(cfg.Meter, "arap")
	am.appliedTotal = set.Counter("allocation_applied_total",
		"Allocations applied against invoices or purchase orders", "{allocations}")
	am.releasedTotal = set.Counter("allocation_released_total",
		"Applied allocations reversed, cancelled or deleted", "{allocations}")
	am.rejectedTotal = set.Counter("allocation_rejected_total",
		"Allocation requests rejected by a business rule", "{requests}")
	am.amount = set.Histogram("allocation_amount",
		"Amount moved by a single allocation", "IDR", AmountBuckets)
	am.outstanding = set.AmountGauge("outstanding_amount", "Open balance of live documents")
	if err := set.Err(); err != nil {
		return nil, err
	}
	return am, nil
}

func (am *AllocationMetrics) RecordAllocationApplied(ctx context.Context, side finance.Side, amount decimal.Decimal) {
	am.appliedTotal.Inc(ctx, AttrSide.String(string(side)))
	am.amount.RecordAmount(ctx, amount, AttrSide.String(string(side)), AttrStatus.String(string(finance.AllocationStatusApplied)))
}

func (am *AllocationMetrics) RecordAllocationReleased(ctx context.Context, side finance.Side, status finance.AllocationStatus, amount decimal.Decimal) {
	am.releasedTotal.Inc(ctx, AttrSide.String(string(side)), AttrStatus.String(string(status)))
	am.amount.RecordAmount(ctx, amount, AttrSide.String(string(side)), AttrStatus.String(string(status)))
}

func (am *AllocationMetrics) RecordAllocationRejected(ctx context.Context, side finance.Side, code string) {
	am.rejectedTotal.Inc(ctx, AttrSide.String(string(side)), AttrErrorCode.String(code))
}

// RecordOutstanding sets the outstanding gauge of one side.
func (am *AllocationMetrics) RecordOutstanding(ctx context.Context, side finance.Side, amount decimal.Decimal) {
	am.outstanding.Record(ctx, amount, AttrSide.String(string(side)))
}

// StartPeriodicCollection polls the outstanding provider every interval until
// Stop is called or ctx is done. Only the first call starts a collector.
func (am *AllocationMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	am.runOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}
		go am.runPeriodicCollection(ctx, interval)
	})
}

func (am *AllocationMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	am.collectOutstanding(ctx)
	for {
		select {
		case <-am.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			am.collectOutstanding(ctx)
		}
	}
}

func (am *AllocationMetrics) collectOutstanding(ctx context.Context) {
	if am.provider == nil {
		return
	}
	receivable, payable, err := am.provider.OutstandingTotals(ctx)
	if err != nil {
		am.logger.Warn("Failed to collect outstanding totals", zap.Error(err))
		return
	}
	am.RecordOutstanding(ctx, finance.SideReceivable, receivable)
	am.RecordOutstanding(ctx, finance.SidePayable, payable)
}

// Stop stops the periodic collection.
func (am *AllocationMetrics) Stop() {
	am.stopOnce.Do(func() {
		close(am.stopChan)
	})
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewAllocationMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
