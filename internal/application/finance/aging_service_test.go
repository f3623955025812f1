package finance_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	appfinance "github.com/erp/arap/internal/application/finance"
	"github.com/erp/arap/internal/domain/finance"
	"github.com/erp/arap/internal/domain/shared"
	"github.com/erp/arap/internal/infrastructure/export"
	"github.com/erp/arap/internal/infrastructure/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func TestAging_OneInvoiceFortyFiveDaysOverdue(t *testing.T) {
	h := newHarness(t)
	customerID := uuid.New()
	h.seedSale(customerID, "INV-001", 200000, daysAgo(75), pastDue(45))

	snap, err := h.aging.Generate(h.ctx, testActor, appfinance.GenerateAgingRequest{
		CustomerID:   customerID,
		SnapshotType: "daily",
	})
	require.NoError(t, err)

	requireDecimal(t, 0, snap.Buckets.Current)
	requireDecimal(t, 200000, snap.Buckets.Days31To60)
	requireDecimal(t, 0, snap.Buckets.Days61To90)
	requireDecimal(t, 0, snap.Buckets.Days91To120)
	requireDecimal(t, 0, snap.Buckets.Over120)
	requireDecimal(t, 200000, snap.TotalOutstanding)
	assert.Equal(t, 1, snap.TotalInvoicesCount)
	assert.Equal(t, 1, snap.OverdueInvoicesCount)
	assert.Equal(t, 45, snap.DaysOldestInvoice)
	requireDecimal(t, 100, snap.ReliabilityScore)
	assert.Equal(t, finance.RiskLevelMedium, snap.RiskLevel)
	assert.Equal(t, finance.CollectionStatusFollowUp, snap.CollectionStatus)
	assert.True(t, snap.SnapshotDate.Equal(shared.StartOfDay(testNow)))
	assert.Contains(t, h.publisher.types(), finance.EventTypeAgingSnapshotGenerated)

	latest, err := h.aging.Latest(h.ctx, customerID)
	require.NoError(t, err)
	assert.Equal(t, snap.ID, latest.ID)
}

func TestAging_OncePerTypeAndDay(t *testing.T) {
	h := newHarness(t)
	customerID := uuid.New()
	h.seedSale(customerID, "INV-001", 10000, daysAgo(5), dueIn(25))
	req := appfinance.GenerateAgingRequest{CustomerID: customerID, SnapshotType: "daily"}

	_, err := h.aging.Generate(h.ctx, testActor, req)
	require.NoError(t, err)
	_, err = h.aging.Generate(h.ctx, testActor, req)
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)

	t.Run("another type is independent", func(t *testing.T) {
		_, err := h.aging.Generate(h.ctx, testActor, appfinance.GenerateAgingRequest{CustomerID: customerID, SnapshotType: "weekly"})
		require.NoError(t, err)
	})

	t.Run("manual snapshots are never deduplicated", func(t *testing.T) {
		manual := appfinance.GenerateAgingRequest{CustomerID: customerID, SnapshotType: "manual"}
		_, err := h.aging.Generate(h.ctx, testActor, manual)
		require.NoError(t, err)
		_, err = h.aging.Generate(h.ctx, testActor, manual)
		require.NoError(t, err)
	})

	t.Run("next day is allowed again", func(t *testing.T) {
		h.clock.Advance(24 * time.Hour)
		_, err := h.aging.Generate(h.ctx, testActor, req)
		require.NoError(t, err)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := h.aging.Generate(h.ctx, testActor, appfinance.GenerateAgingRequest{CustomerID: customerID, SnapshotType: "hourly"})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}

func TestAging_LatePayerIsCritical(t *testing.T) {
	h := newHarness(t)
	customerID := uuid.New()
	sale := h.seedSale(customerID, "INV-001", 30000, daysAgo(70), pastDue(40))
	receipt := h.recordReceipt(customerID, "RCV-001", 30000)
	_, err := h.receivable.AllocateToSale(h.ctx, testActor, appfinance.AllocateToSaleRequest{
		ReceiptID: receipt.ID,
		SaleID:    sale.ID,
		Amount:    idr(30000),
	})
	require.NoError(t, err)

	snap, err := h.aging.Generate(h.ctx, testActor, appfinance.GenerateAgingRequest{CustomerID: customerID, SnapshotType: "manual"})
	require.NoError(t, err)
	requireDecimal(t, 0, snap.TotalOutstanding)
	requireDecimal(t, 0, snap.ReliabilityScore)
	assert.Equal(t, finance.RiskLevelCritical, snap.RiskLevel)
	assert.Equal(t, finance.CollectionStatusLegal, snap.CollectionStatus)
}

func TestAging_GenerateAllAndExport(t *testing.T) {
	h := newHarness(t)
	first, second := uuid.New(), uuid.New()
	h.seedSale(first, "INV-001", 50000, daysAgo(100), pastDue(70))
	h.seedSale(second, "INV-002", 25000, daysAgo(3), dueIn(27))

	_, err := h.aging.Export(h.ctx, testNow)
	assert.ErrorIs(t, err, shared.ErrInvalidState)

	result, err := h.aging.GenerateAll(h.ctx, testActor, finance.SnapshotTypeDaily)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
	assert.Zero(t, result.Skipped)

	again, err := h.aging.GenerateAll(h.ctx, testActor, finance.SnapshotTypeDaily)
	require.NoError(t, err)
	assert.Zero(t, again.Processed)
	assert.Equal(t, 2, again.Skipped)

	_, err = h.aging.GenerateAll(h.ctx, testActor, finance.SnapshotType("yearly"))
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	dir := t.TempDir()
	store, err := storage.NewLocalReportStore(dir, zap.NewNop())
	require.NoError(t, err)
	h.aging.SetExporter(export.NewAgingWorkbook(), store)

	exported, err := h.aging.Export(h.ctx, testNow)
	require.NoError(t, err)
	assert.Equal(t, 2, exported.Customers)
	assert.Equal(t, filepath.Join(dir, "aging", "aging-2024-06-03.xlsx"), exported.Location)

	data, err := os.ReadFile(exported.Location)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenFile(exported.Location)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Aging")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}
