package persistence

import (
	"context"
	"testing"
	"time"

	appfinance "github.com/erp/arap/internal/application/finance"
	"github.com/erp/arap/internal/domain/finance"
	"github.com/erp/arap/internal/domain/shared"
	"github.com/erp/arap/internal/domain/trade"
	"github.com/erp/arap/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var (
	testDay   = time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	testActor = uuid.MustParse("0b6f7d2c-54a1-4b83-a1c2-98e4f0c3d5a7")
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.AllModels()...))
	return db
}

func amount(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func daysFrom(days int) *time.Time {
	d := testDay.AddDate(0, 0, days)
	return &d
}

func saveSale(t *testing.T, repo *GormSaleRepository, customerID uuid.UUID, number string, total int64, saleDate time.Time, due *time.Time) *trade.Sale {
	t.Helper()
	s, err := trade.NewSale(customerID, number, amount(total), saleDate, due, testDay)
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), s))
	return s
}

func TestGormSaleRepository_SaveAndFind(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormSaleRepository(db)
	ctx := context.Background()
	customerID := uuid.New()

	sale := saveSale(t, repo, customerID, "INV-001", 1000, testDay, daysFrom(30))
	assert.Equal(t, 1, sale.GetVersion())

	found, err := repo.FindByID(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, "INV-001", found.InvoiceNumber)
	assert.True(t, found.TotalAmount.Equal(amount(1000)))
	assert.True(t, found.OutstandingAmount.Equal(amount(1000)))
	assert.Equal(t, trade.PaymentStatusUnpaid, found.PaymentStatus)
	require.NotNil(t, found.DueDate)
	assert.True(t, found.DueDate.Equal(*daysFrom(30)))

	t.Run("update bumps version", func(t *testing.T) {
		found.Settle(amount(400), testDay.Add(time.Hour))
		require.NoError(t, repo.Save(ctx, found))
		assert.Equal(t, 2, found.GetVersion())

		reloaded, err := repo.FindByIDForUpdate(ctx, sale.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, reloaded.GetVersion())
		assert.True(t, reloaded.PaidAmount.Equal(amount(400)))
		assert.Equal(t, trade.PaymentStatusPartial, reloaded.PaymentStatus)
	})

	t.Run("stale copy is rejected", func(t *testing.T) {
		// sale still carries version 1
		sale.Settle(amount(1000), testDay.Add(2*time.Hour))
		err := repo.Save(ctx, sale)
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
		assert.Equal(t, 1, sale.GetVersion())
	})

	t.Run("duplicate invoice number", func(t *testing.T) {
		dup, err := trade.NewSale(customerID, "INV-001", amount(5), testDay, nil, testDay)
		require.NoError(t, err)
		err = repo.Save(ctx, dup)
		assert.ErrorIs(t, err, shared.ErrAlreadyExists)
	})

	t.Run("missing sale", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormSaleRepository_FindOutstandingByCustomer(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormSaleRepository(db)
	ctx := context.Background()
	customerID := uuid.New()

	undated := saveSale(t, repo, customerID, "INV-UNDATED", 100, testDay.AddDate(0, 0, -20), nil)
	late := saveSale(t, repo, customerID, "INV-LATE", 100, testDay.AddDate(0, 0, -10), daysFrom(20))
	early := saveSale(t, repo, customerID, "INV-EARLY", 100, testDay, daysFrom(5))
	sameDueOlder := saveSale(t, repo, customerID, "INV-SAME", 100, testDay.AddDate(0, 0, -3), daysFrom(20))
	saveSale(t, repo, uuid.New(), "INV-OTHER", 100, testDay, daysFrom(1))

	paid := saveSale(t, repo, customerID, "INV-PAID", 100, testDay, daysFrom(1))
	paid.Settle(amount(100), testDay)
	require.NoError(t, repo.Save(ctx, paid))

	open, err := repo.FindOutstandingByCustomerForUpdate(ctx, customerID)
	require.NoError(t, err)

	var ids []uuid.UUID
	for _, s := range open {
		ids = append(ids, s.ID)
	}
	// same due date: the older sale date wins
	assert.Equal(t, []uuid.UUID{early.ID, late.ID, sameDueOlder.ID, undated.ID}, ids)

	settled, err := repo.FindPaidByCustomer(ctx, customerID)
	require.NoError(t, err)
	require.Len(t, settled, 1)
	assert.Equal(t, paid.ID, settled[0].ID)

	customers, err := repo.ListCustomerIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, customers, 2)
	assert.Contains(t, customers, customerID)
}

func TestGormPurchaseOrderRepository_FindOutstandingBySupplier(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormPurchaseOrderRepository(db)
	ctx := context.Background()
	supplierID := uuid.New()

	newOrder := func(number string, due *time.Time) *trade.PurchaseOrder {
		o, err := trade.NewPurchaseOrder(supplierID, number, amount(500), testDay, due, testDay)
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, o))
		return o
	}
	second := newOrder("PO-002", daysFrom(14))
	first := newOrder("PO-001", daysFrom(7))
	last := newOrder("PO-003", nil)

	open, err := repo.FindOutstandingBySupplier(ctx, supplierID)
	require.NoError(t, err)
	require.Len(t, open, 3)
	assert.Equal(t, first.ID, open[0].ID)
	assert.Equal(t, second.ID, open[1].ID)
	assert.Equal(t, last.ID, open[2].ID)

	first.Settle(amount(500), testDay)
	require.NoError(t, repo.Save(ctx, first))

	open, err = repo.FindOutstandingBySupplier(ctx, supplierID)
	require.NoError(t, err)
	assert.Len(t, open, 2)
}

func TestGormReceiptRepositories(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	sales := NewGormSaleRepository(db)
	receipts := NewGormCustomerPaymentReceiveRepository(db)
	allocations := NewGormCustomerPaymentAllocationRepository(db)
	customerID := uuid.New()

	sale := saveSale(t, sales, customerID, "INV-100", 1000, testDay, daysFrom(30))
	receipt, err := finance.NewCustomerPaymentReceive("RCV-100", customerID, amount(600), finance.PaymentMethodBankTransfer, testDay, testActor, testDay)
	require.NoError(t, err)
	receipt.Reference = "TRF-8812"
	require.NoError(t, receipts.Save(ctx, receipt))

	alloc, err := finance.NewCustomerPaymentAllocation(receipt, sale, amount(250), testActor, testDay)
	require.NoError(t, err)
	require.NoError(t, alloc.Apply(&testActor, testDay))
	require.NoError(t, allocations.Save(ctx, alloc))

	t.Run("receipt round trip", func(t *testing.T) {
		found, err := receipts.FindByReceiptNumber(ctx, "RCV-100")
		require.NoError(t, err)
		assert.Equal(t, receipt.ID, found.ID)
		assert.Equal(t, "TRF-8812", found.Reference)
		assert.Equal(t, finance.ReceiptStatusPending, found.Status)
		assert.True(t, found.UnallocatedAmount.Equal(amount(600)))

		withMoney, err := receipts.FindWithUnallocated(ctx, customerID)
		require.NoError(t, err)
		require.Len(t, withMoney, 1)

		byCustomer, err := receipts.FindByCustomer(ctx, customerID)
		require.NoError(t, err)
		assert.Len(t, byCustomer, 1)
	})

	t.Run("allocation round trip", func(t *testing.T) {
		found, err := allocations.FindByIDForUpdate(ctx, alloc.ID)
		require.NoError(t, err)
		assert.Equal(t, finance.AllocationStatusApplied, found.Status)
		assert.Equal(t, "INV-100", found.InvoiceNumber)
		require.NotNil(t, found.ApprovedBy)
		assert.Equal(t, testActor, *found.ApprovedBy)

		bySale, err := allocations.FindBySale(ctx, sale.ID)
		require.NoError(t, err)
		assert.Len(t, bySale, 1)
	})

	t.Run("soft deleted allocations disappear", func(t *testing.T) {
		_, err := alloc.SoftDelete(testDay.Add(time.Hour))
		require.NoError(t, err)
		require.NoError(t, allocations.Save(ctx, alloc))

		byReceipt, err := allocations.FindByReceipt(ctx, receipt.ID)
		require.NoError(t, err)
		assert.Empty(t, byReceipt)

		_, err = allocations.FindByID(ctx, alloc.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("fully allocated receipts are skipped", func(t *testing.T) {
		other, err := finance.NewCustomerPaymentReceive("RCV-101", customerID, amount(100), finance.PaymentMethodCash, testDay, testActor, testDay)
		require.NoError(t, err)
		other.AllocatedAmount = amount(100)
		other.UnallocatedAmount = decimal.Zero
		require.NoError(t, receipts.Save(ctx, other))

		withMoney, err := receipts.FindWithUnallocated(ctx, customerID)
		require.NoError(t, err)
		require.Len(t, withMoney, 1)
		assert.Equal(t, receipt.ID, withMoney[0].ID)
	})
}

func TestGormPurchasePaymentRepositories(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	orders := NewGormPurchaseOrderRepository(db)
	payments := NewGormPurchasePaymentRepository(db)
	allocations := NewGormPurchasePaymentAllocationRepository(db)
	supplierID := uuid.New()

	order, err := trade.NewPurchaseOrder(supplierID, "PO-900", amount(800), testDay, daysFrom(10), testDay)
	require.NoError(t, err)
	require.NoError(t, orders.Save(ctx, order))

	payment, err := finance.NewPurchasePayment("PAY-900", supplierID, amount(300), finance.PaymentMethodGiro, testDay, testActor, testDay)
	require.NoError(t, err)
	require.NoError(t, payments.Save(ctx, payment))
	require.NoError(t, payment.Complete(testDay.Add(time.Hour)))
	require.NoError(t, payments.Save(ctx, payment))

	alloc, err := finance.NewPurchasePaymentAllocation(payment, order, amount(300), testActor, testDay)
	require.NoError(t, err)
	require.NoError(t, allocations.Save(ctx, alloc))

	found, err := payments.FindByIDForUpdate(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, finance.PurchasePaymentStatusCompleted, found.Status)
	assert.Equal(t, 2, found.GetVersion())
	require.NotNil(t, found.CompletedAt)

	bySupplier, err := payments.FindBySupplier(ctx, supplierID)
	require.NoError(t, err)
	assert.Len(t, bySupplier, 1)

	byOrder, err := allocations.FindByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, byOrder, 1)
	assert.Equal(t, "PO-900", byOrder[0].OrderNumber)
	assert.Equal(t, finance.AllocationStatusPending, byOrder[0].Status)

	byPayment, err := allocations.FindByPayment(ctx, payment.ID)
	require.NoError(t, err)
	assert.Len(t, byPayment, 1)
}

func TestGormBalanceRepositories(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	t.Run("credit limit is unique per customer", func(t *testing.T) {
		repo := NewGormCustomerCreditLimitRepository(db)
		customerID := uuid.New()

		_, err := repo.FindByCustomer(ctx, customerID)
		assert.ErrorIs(t, err, shared.ErrNotFound)

		credit, err := finance.NewCustomerCreditLimit(customerID, amount(5000), testDay)
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, credit))

		found, err := repo.FindByCustomerForUpdate(ctx, customerID)
		require.NoError(t, err)
		assert.True(t, found.CreditLimit.Equal(amount(5000)))
		assert.Equal(t, finance.CreditStatusCurrent, found.CreditStatus)

		dup, err := finance.NewCustomerCreditLimit(customerID, amount(1), testDay)
		require.NoError(t, err)
		assert.ErrorIs(t, repo.Save(ctx, dup), shared.ErrAlreadyExists)
	})

	t.Run("supplier balance round trip", func(t *testing.T) {
		repo := NewGormSupplierBalanceRepository(db)
		supplierID := uuid.New()

		balance, err := finance.NewSupplierBalance(supplierID, decimal.Zero, testDay)
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, balance))

		found, err := repo.FindBySupplier(ctx, supplierID)
		require.NoError(t, err)
		assert.Equal(t, supplierID, found.SupplierID)
		assert.True(t, found.CreditLimit.IsZero())

		found.TotalOutstanding = amount(700)
		require.NoError(t, repo.Save(ctx, found))

		again, err := repo.FindBySupplierForUpdate(ctx, supplierID)
		require.NoError(t, err)
		assert.True(t, again.TotalOutstanding.Equal(amount(700)))
		assert.Equal(t, 2, again.GetVersion())
	})
}

func TestGormCustomerAgingSnapshotRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormCustomerAgingSnapshotRepository(db)
	ctx := context.Background()
	customerA := uuid.New()
	customerB := uuid.New()

	sale, err := trade.NewSale(customerA, "INV-AGE", amount(900), testDay.AddDate(0, 0, -70), daysFrom(-40), testDay)
	require.NoError(t, err)

	snapA, err := finance.GenerateForCustomer(customerA, finance.SnapshotTypeDaily, testActor, []*trade.Sale{sale}, nil, nil, testDay)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, snapA))

	snapB, err := finance.GenerateForCustomer(customerB, finance.SnapshotTypeDaily, testActor, nil, nil, nil, testDay)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, snapB))

	exists, err := repo.Exists(ctx, customerA, finance.SnapshotTypeDaily, testDay.Add(5*time.Hour))
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.Exists(ctx, customerA, finance.SnapshotTypeWeekly, testDay)
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = repo.Exists(ctx, customerA, finance.SnapshotTypeDaily, testDay.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.False(t, exists)

	latest, err := repo.FindLatestByCustomer(ctx, customerA)
	require.NoError(t, err)
	assert.Equal(t, snapA.ID, latest.ID)
	assert.True(t, latest.Days31To60.Equal(amount(900)))
	assert.True(t, latest.TotalOutstanding.Equal(amount(900)))
	assert.Equal(t, snapA.RiskLevel, latest.RiskLevel)

	onDay, err := repo.FindByDate(ctx, testDay)
	require.NoError(t, err)
	assert.Len(t, onDay, 2)

	_, err = repo.FindLatestByCustomer(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormCustomerPaymentScheduleRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGormCustomerPaymentScheduleRepository(db)
	ctx := context.Background()
	customerID := uuid.New()

	schedule, err := finance.NewCustomerPaymentSchedule(customerID, nil, finance.ScheduleTerms{
		TotalAmount:       amount(1200),
		TotalInstallments: 3,
		Frequency:         finance.FrequencyMonthly,
		FirstPaymentDate:  testDay,
		GracePeriodDays:   5,
		LateFeePercentage: decimal.Zero,
		LateFeeAmount:     decimal.Zero,
	}, testActor, testDay)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, schedule))

	_, err = schedule.ProcessPayment(amount(400), "TRF-1", testDay)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, schedule))

	found, err := repo.FindByIDForUpdate(ctx, schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, found.CompletedInstallments)
	assert.True(t, found.RemainingAmount.Equal(amount(800)))
	require.Len(t, found.Payments, 1)
	assert.Equal(t, "TRF-1", found.Payments[0].Reference)

	active, err := repo.FindActiveByCustomer(ctx, customerID)
	require.NoError(t, err)
	require.Len(t, active, 1)

	require.NoError(t, found.Cancel("renegotiated", testDay))
	require.NoError(t, repo.Save(ctx, found))

	active, err = repo.FindActiveByCustomer(ctx, customerID)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestGormTransactionScope(t *testing.T) {
	db := setupTestDB(t)
	scope := NewGormTransactionScope(db)
	ctx := context.Background()
	customerID := uuid.New()

	t.Run("commits every repository write", func(t *testing.T) {
		err := scope.Execute(ctx, func(repos appfinance.TransactionalRepositories) error {
			s, err := trade.NewSale(customerID, "INV-TX1", amount(10), testDay, nil, testDay)
			if err != nil {
				return err
			}
			return repos.SaleRepo().Save(ctx, s)
		})
		require.NoError(t, err)

		var count int64
		require.NoError(t, db.Model(&models.SaleModel{}).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("rolls back on error", func(t *testing.T) {
		err := scope.Execute(ctx, func(repos appfinance.TransactionalRepositories) error {
			s, err := trade.NewSale(customerID, "INV-TX2", amount(10), testDay, nil, testDay)
			if err != nil {
				return err
			}
			if err := repos.SaleRepo().Save(ctx, s); err != nil {
				return err
			}
			return assert.AnError
		})
		assert.ErrorIs(t, err, assert.AnError)

		var count int64
		require.NoError(t, db.Model(&models.SaleModel{}).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})
}
