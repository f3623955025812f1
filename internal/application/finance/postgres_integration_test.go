//go:build integration

package finance_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	appfinance "github.com/erp/arap/internal/application/finance"
	"github.com/erp/arap/internal/domain/finance"
	"github.com/erp/arap/internal/domain/shared"
	"github.com/erp/arap/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newPostgresHarness starts a throwaway PostgreSQL container so row locks are real
func newPostgresHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("arap_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("admin123"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(10)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.AllModels()...))

	return newHarnessOn(t, db)
}

func TestPostgres_ConcurrentAllocationsFromOneReceipt(t *testing.T) {
	h := newPostgresHarness(t)
	customerID := uuid.New()
	receipt := h.recordReceipt(customerID, "RCV-001", 100000)

	const workers = 8
	sales := make([]uuid.UUID, workers)
	for i := range sales {
		sales[i] = h.seedSale(customerID, fmt.Sprintf("INV-%03d", i+1), 30000, daysAgo(10), dueIn(20)).ID
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for _, saleID := range sales {
		wg.Add(1)
		go func(saleID uuid.UUID) {
			defer wg.Done()
			_, err := h.receivable.AllocateToSale(h.ctx, testActor, appfinance.AllocateToSaleRequest{
				ReceiptID: receipt.ID,
				SaleID:    saleID,
				Amount:    idr(30000),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, finance.ErrInsufficientUnallocated), errors.Is(err, shared.ErrConcurrencyConflict):
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(saleID)
	}
	wg.Wait()

	assert.Equal(t, 3, succeeded)
	got, err := h.receivable.GetReceipt(h.ctx, receipt.ID)
	require.NoError(t, err)
	requireDecimal(t, 90000, got.AllocatedAmount)
	requireDecimal(t, 10000, got.UnallocatedAmount)

	applied := decimal.Zero
	for _, a := range got.Allocations {
		if a.Status == finance.AllocationStatusApplied {
			applied = applied.Add(a.AllocatedAmount)
		}
	}
	requireDecimal(t, 90000, applied)
}

func TestPostgres_ConcurrentReceiptsNeverOverpayOneSale(t *testing.T) {
	h := newPostgresHarness(t)
	customerID := uuid.New()
	sale := h.seedSale(customerID, "INV-001", 50000, daysAgo(10), dueIn(20))

	const workers = 5
	receipts := make([]uuid.UUID, workers)
	for i := range receipts {
		receipts[i] = h.recordReceipt(customerID, fmt.Sprintf("RCV-%03d", i+1), 20000).ID
	}

	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i, receiptID := range receipts {
		wg.Add(1)
		go func(i int, receiptID uuid.UUID) {
			defer wg.Done()
			_, errs[i] = h.receivable.AllocateToSale(h.ctx, testActor, appfinance.AllocateToSaleRequest{
				ReceiptID: receiptID,
				SaleID:    sale.ID,
				Amount:    idr(20000),
			})
		}(i, receiptID)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, finance.ErrExceedsLedgerTotal) || errors.Is(err, shared.ErrConcurrencyConflict), "unexpected error: %v", err)
	}
	assert.Equal(t, 2, succeeded)

	reloaded := h.sale(sale.ID)
	requireDecimal(t, 40000, reloaded.PaidAmount)
	requireDecimal(t, 10000, reloaded.OutstandingAmount)
}
