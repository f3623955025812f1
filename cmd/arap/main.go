// Command arap runs the AR/AP allocation and reconciliation batch jobs.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/erp/arap/internal/domain/finance"
	"github.com/erp/arap/internal/domain/shared/valueobject"
	"github.com/erp/arap/internal/infrastructure/config"
	"github.com/erp/arap/internal/infrastructure/logger"
	"github.com/erp/arap/internal/infrastructure/scheduler"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const version = "1.0.0"

func main() {
	os.Exit(runMain())
}

func runMain() int {
	configPath := flag.String("config", "", "Path to config file (default: ./config.toml or /etc/arap/config.toml)")
	actorFlag := flag.String("actor", "", "User ID recorded on created records (default: system)")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		return 2
	}

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}

	actor := uuid.Nil
	if *actorFlag != "" {
		if actor, err = uuid.Parse(*actorFlag); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid -actor: %v\n", err)
			return 2
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if a != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := a.close(shutdownCtx); err != nil {
				fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
			}
		}()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		return 1
	}

	a.log.Info("arap starting",
		zap.String("command", args[0]),
		zap.String("env", cfg.App.Env),
		zap.String("version", version),
	)
	if err := a.run(ctx, actor, args[0], args[1:]); err != nil {
		a.log.Error("command failed", zap.String("command", args[0]), zap.Error(err))
		return 1
	}
	return 0
}

func (a *app) run(ctx context.Context, actor uuid.UUID, command string, args []string) error {
	if command == "run-scheduler" {
		ctx, _ = logger.WithActorID(ctx, a.log, actor.String())
		return a.runScheduler(ctx, actor)
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Jobs.Timeout)
	defer cancel()
	ctx, _ = logger.WithActorID(ctx, a.log, actor.String())

	switch command {
	case "auto-allocate":
		return a.autoAllocate(ctx, actor, args)
	case "recompute-balances":
		return a.recomputeBalances(ctx)
	case "generate-aging":
		return a.generateAging(ctx, actor, args)
	case "export-aging":
		return a.exportAging(ctx, args)
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *app) autoAllocate(ctx context.Context, actor uuid.UUID, args []string) error {
	fs := flag.NewFlagSet("auto-allocate", flag.ContinueOnError)
	receipt := fs.String("receipt", "", "Customer receipt ID")
	payment := fs.String("payment", "", "Purchase payment ID")
	if err := fs.Parse(args); err != nil {
		return err
	}

	switch {
	case *receipt != "":
		id, err := uuid.Parse(*receipt)
		if err != nil {
			return fmt.Errorf("invalid -receipt: %w", err)
		}
		result, err := a.receivable.AutoAllocatePayments(ctx, actor, id)
		if err != nil {
			return err
		}
		logger.L(ctx).Info("receipt allocated",
			zap.String("receipt_id", id.String()),
			zap.Int("allocations", len(result.Allocations)),
			zap.String("allocated", valueobject.FormatIDR(result.TotalAllocated)),
			zap.String("remaining", valueobject.FormatIDR(result.RemainingUnallocated)),
		)
		return printJSON(result)
	case *payment != "":
		id, err := uuid.Parse(*payment)
		if err != nil {
			return fmt.Errorf("invalid -payment: %w", err)
		}
		result, err := a.payable.AutoAllocatePurchasePayment(ctx, actor, id)
		if err != nil {
			return err
		}
		logger.L(ctx).Info("payment allocated",
			zap.String("payment_id", id.String()),
			zap.Int("allocations", len(result.Allocations)),
			zap.String("allocated", valueobject.FormatIDR(result.TotalAllocated)),
		)
		return printJSON(result)
	default:
		return errors.New("auto-allocate needs -receipt or -payment")
	}
}

func (a *app) recomputeBalances(ctx context.Context) error {
	customers, err := a.balance.RecomputeAllCustomers(ctx)
	if err != nil {
		return err
	}
	suppliers, err := a.balance.RecomputeAllSuppliers(ctx)
	if err != nil {
		return err
	}
	logger.L(ctx).Info("balances recomputed",
		zap.Int("customers", customers.Processed),
		zap.Int("customers_failed", len(customers.Failed)),
		zap.Int("suppliers", suppliers.Processed),
		zap.Int("suppliers_failed", len(suppliers.Failed)),
	)
	if n := len(customers.Failed) + len(suppliers.Failed); n > 0 {
		return fmt.Errorf("%d parties failed to recompute", n)
	}
	return nil
}

func (a *app) generateAging(ctx context.Context, actor uuid.UUID, args []string) error {
	fs := flag.NewFlagSet("generate-aging", flag.ContinueOnError)
	snapshotType := fs.String("type", string(finance.SnapshotTypeDaily), "Snapshot type: daily, weekly, monthly or manual")
	if err := fs.Parse(args); err != nil {
		return err
	}

	result, err := a.aging.GenerateAll(ctx, actor, finance.SnapshotType(*snapshotType))
	if err != nil {
		return err
	}
	logger.L(ctx).Info("aging snapshots generated",
		zap.String("type", *snapshotType),
		zap.Int("processed", result.Processed),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", len(result.Failed)),
	)
	if len(result.Failed) > 0 {
		return fmt.Errorf("%d customers failed", len(result.Failed))
	}
	return nil
}

func (a *app) exportAging(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export-aging", flag.ContinueOnError)
	date := fs.String("date", "", "Snapshot date YYYY-MM-DD (default: today)")
	out := fs.String("out", "", "Local export directory, overrides aging.export_dir")
	if err := fs.Parse(args); err != nil {
		return err
	}

	asOf := time.Now()
	if *date != "" {
		parsed, err := time.ParseInLocation(time.DateOnly, *date, time.Local)
		if err != nil {
			return fmt.Errorf("invalid -date: %w", err)
		}
		asOf = parsed
	}
	if *out != "" {
		a.cfg.Aging.ExportDir = *out
		a.cfg.Storage.Enabled = false
		if err := a.useReportStore(ctx); err != nil {
			return err
		}
	}

	result, err := a.aging.Export(ctx, asOf)
	if err != nil {
		return err
	}
	logger.L(ctx).Info("aging exported",
		zap.String("location", result.Location),
		zap.Int("customers", result.Customers),
	)
	return printJSON(result)
}

// runScheduler blocks until interrupted, running the nightly recompute,
// daily aging and export jobs.
func (a *app) runScheduler(ctx context.Context, actor uuid.UUID) error {
	sched, err := scheduler.NewDailyScheduler(scheduler.Config{
		DailySchedule: a.cfg.Jobs.DailySchedule,
		JobTimeout:    a.cfg.Jobs.Timeout,
		RetryAttempts: a.cfg.Jobs.RetryAttempts,
		RetryDelay:    a.cfg.Jobs.RetryDelay,
	}, nil, a.log)
	if err != nil {
		return err
	}
	sched.Register("recompute-balances", a.recomputeBalances)
	sched.Register("generate-aging", func(ctx context.Context) error {
		return a.generateAging(ctx, actor, nil)
	})
	sched.Register("export-aging", func(ctx context.Context) error {
		_, err := a.aging.Export(ctx, time.Now())
		return err
	})

	if err := sched.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return sched.Stop(stopCtx)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: arap [-config path] [-actor uuid] <command> [flags]

Commands:
  auto-allocate -receipt <id> | -payment <id>
                          Allocate a receipt or purchase payment oldest-first
  recompute-balances      Recompute every customer credit and supplier balance
  generate-aging [-type daily|weekly|monthly|manual]
                          Take aging snapshots for every customer with open sales
  export-aging [-date YYYY-MM-DD] [-out dir]
                          Write the aging workbook of a day
  run-scheduler           Run the daily jobs at jobs.daily_schedule until stopped`)
}
