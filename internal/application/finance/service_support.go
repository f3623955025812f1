package finance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/erp/arap/internal/domain/finance"
	"github.com/erp/arap/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultLockTTL        = 30 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour
	defaultConcurrency    = 4

	idempotencyKeyPrefix = "arap:request:"
)

// AllocationMetrics receives allocation outcomes for business metrics.
// The telemetry package provides the OpenTelemetry implementation.
type AllocationMetrics interface {
	RecordAllocationApplied(ctx context.Context, side finance.Side, amount decimal.Decimal)
	RecordAllocationReleased(ctx context.Context, side finance.Side, status finance.AllocationStatus, amount decimal.Decimal)
	RecordAllocationRejected(ctx context.Context, side finance.Side, code string)
}

type noopAllocationMetrics struct{}

func (noopAllocationMetrics) RecordAllocationApplied(context.Context, finance.Side, decimal.Decimal) {}
func (noopAllocationMetrics) RecordAllocationReleased(context.Context, finance.Side, finance.AllocationStatus, decimal.Decimal) {}
func (noopAllocationMetrics) RecordAllocationRejected(context.Context, finance.Side, string) {}

// serviceSupport carries the collaborators every service in this package shares.
// Optional collaborators are wired with setters after construction.
type serviceSupport struct {
	scope  TransactionScope
	clock  shared.Clock
	logger *zap.Logger

	eventPublisher shared.EventPublisher
	idempotency    shared.IdempotencyStore
	idempotencyTTL time.Duration
	locker         shared.Locker
	lockTTL        time.Duration
	metrics        AllocationMetrics
	concurrency    int
}

func newServiceSupport(scope TransactionScope, clock shared.Clock, logger *zap.Logger) serviceSupport {
	if clock == nil {
		clock = shared.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return serviceSupport{
		scope:          scope,
		clock:          clock,
		logger:         logger,
		idempotencyTTL: defaultIdempotencyTTL,
		locker:         shared.NoopLocker{},
		lockTTL:        defaultLockTTL,
		metrics:        noopAllocationMetrics{},
		concurrency:    defaultConcurrency,
	}
}

// SetEventPublisher sets the event publisher for domain events
func (s *serviceSupport) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetIdempotencyStore enables idempotency keys on allocation requests
func (s *serviceSupport) SetIdempotencyStore(store shared.IdempotencyStore, ttl time.Duration) {
	s.idempotency = store
	if ttl > 0 {
		s.idempotencyTTL = ttl
	}
}

// SetLocker sets the distributed lock used to serialize work per customer or supplier
func (s *serviceSupport) SetLocker(locker shared.Locker, ttl time.Duration) {
	if locker == nil {
		locker = shared.NoopLocker{}
	}
	s.locker = locker
	if ttl > 0 {
		s.lockTTL = ttl
	}
}

// SetMetrics sets the business metrics sink
func (s *serviceSupport) SetMetrics(metrics AllocationMetrics) {
	if metrics == nil {
		metrics = noopAllocationMetrics{}
	}
	s.metrics = metrics
}

// SetConcurrency bounds the number of parties a batch job works on at once
func (s *serviceSupport) SetConcurrency(n int) {
	if n > 0 {
		s.concurrency = n
	}
}

// publishDomainEvents publishes events collected during a committed transaction.
// Publish failures are logged and never fail the operation.
func (s *serviceSupport) publishDomainEvents(ctx context.Context, events []shared.DomainEvent) {
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("failed to publish domain events",
			zap.Int("count", len(events)),
			zap.Error(err),
		)
	}
}

// runIdempotent runs fn at most once per key within the TTL. A failed run
// forgets the key so the request can be retried.
func (s *serviceSupport) runIdempotent(ctx context.Context, key string, fn func() error) error {
	if key == "" || s.idempotency == nil {
		return fn()
	}
	key = idempotencyKeyPrefix + key
	fresh, err := s.idempotency.MarkProcessed(ctx, key, s.idempotencyTTL)
	if err != nil {
		return fmt.Errorf("failed to record idempotency key: %w", err)
	}
	if !fresh {
		return shared.ErrDuplicateRequest
	}
	if err := fn(); err != nil {
		if ferr := s.idempotency.Forget(context.WithoutCancel(ctx), key); ferr != nil {
			s.logger.Warn("failed to forget idempotency key", zap.String("key", key), zap.Error(ferr))
		}
		return err
	}
	return nil
}

// withLock holds the named distributed lock while fn runs.
func (s *serviceSupport) withLock(ctx context.Context, key string, fn func() error) error {
	release, err := s.locker.Acquire(ctx, key, s.lockTTL)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := release(context.WithoutCancel(ctx)); rerr != nil {
			s.logger.Warn("failed to release lock", zap.String("key", key), zap.Error(rerr))
		}
	}()
	return fn()
}

// logRejected logs a rule violation at Warn and counts it; other errors are logged at Error.
func (s *serviceSupport) logRejected(ctx context.Context, side finance.Side, op string, err error) {
	if code := shared.CodeOf(err); code != "" {
		s.metrics.RecordAllocationRejected(ctx, side, code)
		s.logger.Warn(op+" rejected", zap.String("code", code), zap.String("reason", err.Error()))
		return
	}
	s.logger.Error(op+" failed", zap.Error(err))
}

func receivableLockKey(customerID fmt.Stringer) string {
	return "arap:receivable:" + customerID.String()
}

func payableLockKey(supplierID fmt.Stringer) string {
	return "arap:payable:" + supplierID.String()
}

// errSkipped tells runBatch that a party needed no work.
var errSkipped = errors.New("skipped")

// runBatch calls fn for every id with bounded concurrency. A failing party is
// logged and reported in the result without stopping the others; only a
// cancelled context aborts the batch.
func (s *serviceSupport) runBatch(ctx context.Context, job string, ids []uuid.UUID, fn func(ctx context.Context, id uuid.UUID) error) (*BatchResult, error) {
	result := &BatchResult{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			err := fn(gctx, id)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				result.Processed++
			case errors.Is(err, errSkipped):
				result.Skipped++
			default:
				result.Failed = append(result.Failed, id)
				s.logger.Error(job+" failed for party", zap.String("party_id", id.String()), zap.Error(err))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}
	s.logger.Info(job+" finished",
		zap.Int("processed", result.Processed),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", len(result.Failed)),
	)
	return result, nil
}
