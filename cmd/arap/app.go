package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	financeapp "github.com/erp/arap/internal/application/finance"
	"github.com/erp/arap/internal/domain/shared"
	"github.com/erp/arap/internal/infrastructure/cache"
	"github.com/erp/arap/internal/infrastructure/config"
	"github.com/erp/arap/internal/infrastructure/event"
	"github.com/erp/arap/internal/infrastructure/export"
	"github.com/erp/arap/internal/infrastructure/lock"
	"github.com/erp/arap/internal/infrastructure/logger"
	"github.com/erp/arap/internal/infrastructure/persistence"
	"github.com/erp/arap/internal/infrastructure/storage"
	"github.com/erp/arap/internal/infrastructure/telemetry"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// app owns every long-lived dependency of one CLI invocation.
type app struct {
	cfg *config.Config
	log *zap.Logger

	meters      *telemetry.MeterProvider
	db          *persistence.Database
	redisClient *redis.Client
	idempotency shared.IdempotencyStore
	bus         *event.InMemoryEventBus

	receivable *financeapp.ReceivableAllocationService
	payable    *financeapp.PayableAllocationService
	balance    *financeapp.BalanceService
	aging      *financeapp.AgingService

	closers []func(context.Context) error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}
	if err := a.initTelemetry(ctx); err != nil {
		return nil, err
	}
	if err := a.initDatabase(ctx); err != nil {
		return a, err
	}
	if err := a.initCoordination(ctx); err != nil {
		return a, err
	}
	if err := a.initServices(ctx); err != nil {
		return a, err
	}
	return a, nil
}

func (a *app) initTelemetry(ctx context.Context) error {
	bootLog, err := logger.New(&logger.Config{
		Level:  a.cfg.Log.Level,
		Format: a.cfg.Log.Format,
		Output: a.cfg.Log.Output,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	telCfg := telemetry.Config{
		Enabled:           a.cfg.Telemetry.Enabled,
		CollectorEndpoint: a.cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     a.cfg.Telemetry.SamplingRatio,
		ServiceName:       a.cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          a.cfg.Telemetry.Insecure,
	}

	logProvider, err := telemetry.NewLoggerProvider(ctx, telCfg, bootLog)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, logProvider.Shutdown)

	// the service logger tees into the OTLP log pipeline when telemetry is on
	a.log, err = logger.New(&logger.Config{
		Level:  a.cfg.Log.Level,
		Format: a.cfg.Log.Format,
		Output: a.cfg.Log.Output,
	}, logProvider.Core(a.cfg.Telemetry.ServiceName, logger.ParseLevel(a.cfg.Log.Level)))
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	tracer, err := telemetry.NewTracerProvider(ctx, telCfg, a.log)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, tracer.Shutdown)

	meters, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           a.cfg.Telemetry.Enabled && a.cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: a.cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    a.cfg.Telemetry.MetricsInterval,
		ServiceName:       a.cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          a.cfg.Telemetry.Insecure,
	}, a.log)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, meters.Shutdown)
	a.meters = meters
	return nil
}

func (a *app) initDatabase(ctx context.Context) error {
	dbSystem := "postgresql"
	if a.cfg.Database.Driver == "sqlite" {
		dbSystem = "sqlite"
	}
	tracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         a.cfg.Telemetry.Enabled && a.cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      a.cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: a.cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:        dbSystem,
	}, a.log)

	db, err := persistence.NewDatabase(&a.cfg.Database,
		persistence.WithZapLogger(a.log),
		persistence.WithTracing(tracing),
	)
	if err != nil {
		return err
	}
	a.db = db
	a.closers = append(a.closers, func(context.Context) error { return db.Close() })

	if a.cfg.Database.Driver == "sqlite" {
		if err := db.AutoMigrate(); err != nil {
			return err
		}
	}

	if a.meters.IsEnabled() {
		dbMetrics, err := telemetry.NewDBMetrics(a.meters.Meter("arap/db"), telemetry.DBMetricsConfig{
			SlowQueryThreshold: a.cfg.Telemetry.DBSlowQueryThresh,
		}, a.log)
		if err != nil {
			return err
		}
		if err := dbMetrics.Register(ctx, db.DB); err != nil {
			return err
		}
		a.closers = append(a.closers, func(context.Context) error {
			dbMetrics.Stop()
			return nil
		})
	}

	a.log.Info("database connected", zap.String("driver", a.cfg.Database.Driver))
	return nil
}

func (a *app) initCoordination(ctx context.Context) error {
	if a.cfg.Redis.Enabled {
		client, err := cache.NewRedisClient(ctx, a.cfg.Redis)
		if err != nil {
			return err
		}
		a.redisClient = client
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
	}

	store, err := cache.NewIdempotencyStore(a.cfg.Allocation, a.redisClient, a.log)
	if err != nil {
		return err
	}
	a.idempotency = store
	a.closers = append(a.closers, func(context.Context) error { return store.Close() })

	a.bus = event.NewInMemoryEventBus(a.log)
	audit := event.NewAuditHandler(event.NewFinanceSerializer(), a.log)
	a.bus.Subscribe(event.NewIdempotentHandler(audit, store, a.cfg.Allocation.IdempotencyTTL, a.log))
	if err := a.bus.Start(ctx); err != nil {
		return err
	}
	a.closers = append(a.closers, a.bus.Stop)
	return nil
}

func (a *app) initServices(ctx context.Context) error {
	scope := persistence.NewGormTransactionScope(a.db.DB)
	clock := shared.SystemClock{}

	a.receivable = financeapp.NewReceivableAllocationService(scope, clock, a.log)
	a.payable = financeapp.NewPayableAllocationService(scope, clock, a.log)
	a.balance = financeapp.NewBalanceService(scope, clock, a.log)
	a.aging = financeapp.NewAgingService(scope, clock, a.log)

	var locker shared.Locker = shared.NoopLocker{}
	if a.redisClient != nil {
		locker = lock.NewRedisLocker(a.redisClient,
			lock.WithRetry(a.cfg.Allocation.LockRetryInterval, a.cfg.Allocation.LockRetryCount),
			lock.WithLogger(a.log),
		)
	}

	var metrics financeapp.AllocationMetrics
	if a.meters.IsEnabled() {
		am, err := telemetry.NewAllocationMetrics(telemetry.AllocationMetricsConfig{
			Meter:    a.meters.Meter("arap/allocation"),
			Logger:   a.log,
			Provider: telemetry.NewGormOutstandingProvider(a.db.DB),
		})
		if err != nil {
			return err
		}
		am.StartPeriodicCollection(ctx, a.cfg.Telemetry.MetricsInterval)
		a.closers = append(a.closers, func(context.Context) error {
			am.Stop()
			return nil
		})
		metrics = am
	}

	type configurable interface {
		SetEventPublisher(shared.EventPublisher)
		SetIdempotencyStore(shared.IdempotencyStore, time.Duration)
		SetLocker(shared.Locker, time.Duration)
		SetMetrics(financeapp.AllocationMetrics)
		SetConcurrency(int)
	}
	for _, svc := range []configurable{a.receivable, a.payable, a.balance, a.aging} {
		svc.SetEventPublisher(a.bus)
		svc.SetIdempotencyStore(a.idempotency, a.cfg.Allocation.IdempotencyTTL)
		svc.SetLocker(locker, a.cfg.Allocation.LockTTL)
		svc.SetMetrics(metrics)
		svc.SetConcurrency(a.cfg.Jobs.Concurrency)
	}

	return a.useReportStore(ctx)
}

// useReportStore points the aging export at S3 or the local export directory
func (a *app) useReportStore(ctx context.Context) error {
	store, err := a.reportStore(ctx)
	if err != nil {
		return err
	}
	a.aging.SetExporter(export.NewAgingWorkbook(), store)
	return nil
}

func (a *app) reportStore(ctx context.Context) (financeapp.ReportStore, error) {
	if a.cfg.Storage.Enabled {
		s3Store, err := storage.NewS3ReportStore(ctx, a.cfg.Storage, a.log)
		if err != nil {
			return nil, err
		}
		if err := s3Store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return s3Store, nil
	}
	return storage.NewLocalReportStore(a.cfg.Aging.ExportDir, a.log)
}

// close releases dependencies in reverse order of creation
func (a *app) close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
	return errors.Join(errs...)
}
