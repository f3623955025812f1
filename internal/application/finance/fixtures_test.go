package finance_test

import (
	"context"
	"sync"
	"testing"
	"time"

	appfinance "github.com/erp/arap/internal/application/finance"
	"github.com/erp/arap/internal/domain/finance"
	"github.com/erp/arap/internal/domain/shared"
	"github.com/erp/arap/internal/domain/trade"
	"github.com/erp/arap/internal/infrastructure/persistence"
	"github.com/erp/arap/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var (
	testNow   = time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC)
	testActor = uuid.MustParse("5c8d1e3a-7f42-4b9e-9a61-2d0c4e8f7b15")
)

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

type harness struct {
	t          *testing.T
	ctx        context.Context
	db         *gorm.DB
	clock      *shared.FixedClock
	publisher  *recordingPublisher
	receivable *appfinance.ReceivableAllocationService
	payable    *appfinance.PayableAllocationService
	balance    *appfinance.BalanceService
	aging      *appfinance.AgingService
	schedules  *appfinance.ScheduleService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.AllModels()...))
	return newHarnessOn(t, db)
}

// newHarnessOn wires every service to an already migrated database
func newHarnessOn(t *testing.T, db *gorm.DB) *harness {
	t.Helper()
	scope := persistence.NewGormTransactionScope(db)
	clock := shared.NewFixedClock(testNow)
	logger := zap.NewNop()
	publisher := &recordingPublisher{}

	h := &harness{
		t:          t,
		ctx:        context.Background(),
		db:         db,
		clock:      clock,
		publisher:  publisher,
		receivable: appfinance.NewReceivableAllocationService(scope, clock, logger),
		payable:    appfinance.NewPayableAllocationService(scope, clock, logger),
		balance:    appfinance.NewBalanceService(scope, clock, logger),
		aging:      appfinance.NewAgingService(scope, clock, logger),
		schedules:  appfinance.NewScheduleService(scope, clock, logger),
	}
	h.receivable.SetEventPublisher(publisher)
	h.payable.SetEventPublisher(publisher)
	h.balance.SetEventPublisher(publisher)
	h.aging.SetEventPublisher(publisher)
	h.schedules.SetEventPublisher(publisher)
	return h
}

func idr(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func daysAgo(days int) time.Time {
	return testNow.AddDate(0, 0, -days)
}

func dueIn(days int) *time.Time {
	d := testNow.AddDate(0, 0, days)
	return &d
}

// seedSale stores an unpaid sale dated saleDate with the given due date
func (h *harness) seedSale(customerID uuid.UUID, number string, total int64, saleDate time.Time, due *time.Time) *trade.Sale {
	h.t.Helper()
	sale, err := trade.NewSale(customerID, number, idr(total), saleDate, due, saleDate)
	require.NoError(h.t, err)
	require.NoError(h.t, persistence.NewGormSaleRepository(h.db).Save(h.ctx, sale))
	return sale
}

func (h *harness) seedOrder(supplierID uuid.UUID, number string, total int64, orderDate time.Time, due *time.Time) *trade.PurchaseOrder {
	h.t.Helper()
	order, err := trade.NewPurchaseOrder(supplierID, number, idr(total), orderDate, due, orderDate)
	require.NoError(h.t, err)
	require.NoError(h.t, persistence.NewGormPurchaseOrderRepository(h.db).Save(h.ctx, order))
	return order
}

func (h *harness) sale(id uuid.UUID) *trade.Sale {
	h.t.Helper()
	sale, err := persistence.NewGormSaleRepository(h.db).FindByID(h.ctx, id)
	require.NoError(h.t, err)
	return sale
}

func (h *harness) order(id uuid.UUID) *trade.PurchaseOrder {
	h.t.Helper()
	order, err := persistence.NewGormPurchaseOrderRepository(h.db).FindByID(h.ctx, id)
	require.NoError(h.t, err)
	return order
}

func (h *harness) credit(customerID uuid.UUID) *finance.CustomerCreditLimit {
	h.t.Helper()
	credit, err := persistence.NewGormCustomerCreditLimitRepository(h.db).FindByCustomer(h.ctx, customerID)
	require.NoError(h.t, err)
	return credit
}

func (h *harness) recordReceipt(customerID uuid.UUID, number string, amount int64) *appfinance.ReceiptResponse {
	h.t.Helper()
	resp, err := h.receivable.RecordReceipt(h.ctx, testActor, appfinance.RecordReceiptRequest{
		ReceiptNumber: number,
		CustomerID:    customerID,
		Amount:        idr(amount),
		PaymentMethod: "bank_transfer",
		ReceiptDate:   testNow,
	})
	require.NoError(h.t, err)
	return resp
}

func (h *harness) recordPayment(supplierID uuid.UUID, number string, amount int64) *appfinance.PurchasePaymentResponse {
	h.t.Helper()
	resp, err := h.payable.RecordPayment(h.ctx, testActor, appfinance.RecordPurchasePaymentRequest{
		PaymentNumber: number,
		SupplierID:    supplierID,
		Amount:        idr(amount),
		PaymentMethod: "bank_transfer",
		PaymentDate:   testNow,
	})
	require.NoError(h.t, err)
	return resp
}

// allocationCount counts allocation rows of either side, soft-deleted included
func (h *harness) allocationCount(model any) int64 {
	h.t.Helper()
	var n int64
	require.NoError(h.t, h.db.Unscoped().Model(model).Count(&n).Error)
	return n
}

// requireDecimal compares decimals by value
func requireDecimal(t *testing.T, want int64, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, idr(want).Equal(got), "want %d, got %s", want, got.String())
}
