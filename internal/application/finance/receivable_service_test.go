package finance_test

import (
	"errors"
	"sync"
	"testing"

	appfinance "github.com/erp/arap/internal/application/finance"
	"github.com/erp/arap/internal/domain/finance"
	"github.com/erp/arap/internal/domain/shared"
	"github.com/erp/arap/internal/domain/trade"
	"github.com/erp/arap/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoOpenSales seeds 60,000 (older) and 50,000 (newer) for the customer.
func twoOpenSales(h *harness, customerID uuid.UUID) (*trade.Sale, *trade.Sale) {
	first := h.seedSale(customerID, "INV-001", 60000, daysAgo(20), dueIn(10))
	second := h.seedSale(customerID, "INV-002", 50000, daysAgo(10), dueIn(20))
	return first, second
}

func requireSplit(t *testing.T, r *appfinance.ReceiptResponse) {
	t.Helper()
	assert.True(t, r.AllocatedAmount.Add(r.UnallocatedAmount).Equal(r.TotalAmount),
		"allocated %s + unallocated %s != total %s", r.AllocatedAmount, r.UnallocatedAmount, r.TotalAmount)
}

func TestReceivable_AutoAllocateOldestFirst(t *testing.T) {
	h := newHarness(t)
	customerID := uuid.New()
	first, second := twoOpenSales(h, customerID)
	receipt := h.recordReceipt(customerID, "RCV-001", 100000)

	result, err := h.receivable.AutoAllocatePayments(h.ctx, testActor, receipt.ID)
	require.NoError(t, err)

	require.Len(t, result.Allocations, 2)
	assert.Equal(t, first.ID, result.Allocations[0].DocumentID)
	requireDecimal(t, 60000, result.Allocations[0].AllocatedAmount)
	assert.Equal(t, finance.AllocationStatusApplied, result.Allocations[0].Status)
	assert.Equal(t, second.ID, result.Allocations[1].DocumentID)
	requireDecimal(t, 40000, result.Allocations[1].AllocatedAmount)
	requireDecimal(t, 100000, result.TotalAllocated)
	requireDecimal(t, 0, result.RemainingUnallocated)
	assert.True(t, result.FullyAllocated)
	assert.Equal(t, []uuid.UUID{first.ID}, result.DocumentsFullyPaid)

	got, err := h.receivable.GetReceipt(h.ctx, receipt.ID)
	require.NoError(t, err)
	assert.Equal(t, finance.AllocationStateFullyAllocated, got.AllocationStatus)
	assert.Equal(t, finance.ReceiptStatusCompleted, got.Status)
	requireDecimal(t, 0, got.UnallocatedAmount)
	requireSplit(t, got)
	assert.Len(t, got.Allocations, 2)

	assert.Equal(t, trade.PaymentStatusPaid, h.sale(first.ID).PaymentStatus)
	s2 := h.sale(second.ID)
	assert.Equal(t, trade.PaymentStatusPartial, s2.PaymentStatus)
	requireDecimal(t, 10000, s2.OutstandingAmount)
	requireDecimal(t, 40000, s2.PaidAmount)

	credit := h.credit(customerID)
	requireDecimal(t, 10000, credit.TotalOutstanding)

	types := h.publisher.types()
	assert.Contains(t, types, finance.EventTypeAllocationApplied)
	assert.Contains(t, types, finance.EventTypeReceiptFullyAllocated)
}

func TestReceivable_ReverseRestoresBalances(t *testing.T) {
	h := newHarness(t)
	customerID := uuid.New()
	_, second := twoOpenSales(h, customerID)
	receipt := h.recordReceipt(customerID, "RCV-001", 100000)

	result, err := h.receivable.AutoAllocatePayments(h.ctx, testActor, receipt.ID)
	require.NoError(t, err)
	partial := result.Allocations[1]
	h.publisher.reset()

	reversed, err := h.receivable.ReverseAllocation(h.ctx, testActor, appfinance.ReleaseAllocationRequest{
		AllocationID: partial.ID,
		Reason:       "wrong invoice",
	})
	require.NoError(t, err)
	assert.Equal(t, finance.AllocationStatusReversed, reversed.Status)
	assert.Equal(t, "wrong invoice", reversed.ReversalReason)
	require.NotNil(t, reversed.ReversedAt)

	s2 := h.sale(second.ID)
	requireDecimal(t, 50000, s2.OutstandingAmount)
	assert.Equal(t, trade.PaymentStatusUnpaid, s2.PaymentStatus)

	got, err := h.receivable.GetReceipt(h.ctx, receipt.ID)
	require.NoError(t, err)
	requireDecimal(t, 40000, got.UnallocatedAmount)
	assert.Equal(t, finance.AllocationStatePartiallyAllocated, got.AllocationStatus)
	requireSplit(t, got)

	requireDecimal(t, 50000, h.credit(customerID).TotalOutstanding)
	assert.Contains(t, h.publisher.types(), finance.EventTypeAllocationReversed)

	t.Run("reversal is final", func(t *testing.T) {
		_, err := h.receivable.ReverseAllocation(h.ctx, testActor, appfinance.ReleaseAllocationRequest{AllocationID: partial.ID})
		assert.ErrorIs(t, err, finance.ErrAlreadyTerminal)
	})

	t.Run("reallocating the freed amount", func(t *testing.T) {
		again, err := h.receivable.AutoAllocatePayments(h.ctx, testActor, receipt.ID)
		require.NoError(t, err)
		require.Len(t, again.Allocations, 1)
		requireDecimal(t, 40000, again.Allocations[0].AllocatedAmount)
		assert.True(t, again.FullyAllocated)
	})
}

func TestReceivable_ApplyThenReverseRoundTrip(t *testing.T) {
	h := newHarness(t)
	customerID := uuid.New()
	sale := h.seedSale(customerID, "INV-001", 75000, daysAgo(5), dueIn(25))
	receipt := h.recordReceipt(customerID, "RCV-001", 30000)
	before := h.sale(sale.ID)

	result, err := h.receivable.AllocateToSale(h.ctx, testActor, appfinance.AllocateToSaleRequest{
		ReceiptID: receipt.ID,
		SaleID:    sale.ID,
		Amount:    idr(30000),
	})
	require.NoError(t, err)
	require.Len(t, result.Allocations, 1)

	_, err = h.receivable.ReverseAllocation(h.ctx, testActor, appfinance.ReleaseAllocationRequest{AllocationID: result.Allocations[0].ID})
	require.NoError(t, err)

	after := h.sale(sale.ID)
	assert.True(t, before.PaidAmount.Equal(after.PaidAmount))
	assert.True(t, before.OutstandingAmount.Equal(after.OutstandingAmount))
	assert.Equal(t, before.PaymentStatus, after.PaymentStatus)

	got, err := h.receivable.GetReceipt(h.ctx, receipt.ID)
	require.NoError(t, err)
	requireDecimal(t, 0, got.AllocatedAmount)
	requireDecimal(t, 30000, got.UnallocatedAmount)
	assert.Equal(t, finance.AllocationStateUnallocated, got.AllocationStatus)
}

func TestReceivable_AllocateToSaleRejections(t *testing.T) {
	h := newHarness(t)
	customerID := uuid.New()
	sale := h.seedSale(customerID, "INV-001", 200000, daysAgo(3), dueIn(27))
	small := h.seedSale(customerID, "INV-002", 20000, daysAgo(2), dueIn(28))
	other := h.seedSale(uuid.New(), "INV-900", 50000, daysAgo(2), dueIn(28))
	receipt := h.recordReceipt(customerID, "RCV-001", 100000)

	tests := []struct {
		name    string
		saleID  uuid.UUID
		amount  int64
		wantErr error
	}{
		{"amount above unallocated", sale.ID, 150000, finance.ErrInsufficientUnallocated},
		{"amount above outstanding", small.ID, 25000, finance.ErrExceedsLedgerTotal},
		{"sale of another customer", other.ID, 10000, finance.ErrPartyMismatch},
		{"zero amount", sale.ID, 0, shared.ErrInvalidInput},
		{"unknown sale", uuid.New(), 10000, shared.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.receivable.AllocateToSale(h.ctx, testActor, appfinance.AllocateToSaleRequest{
				ReceiptID: receipt.ID,
				SaleID:    tt.saleID,
				Amount:    idr(tt.amount),
			})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.Zero(t, h.allocationCount(&models.CustomerPaymentAllocationModel{}))
	got, err := h.receivable.GetReceipt(h.ctx, receipt.ID)
	require.NoError(t, err)
	requireDecimal(t, 100000, got.UnallocatedAmount)
	requireDecimal(t, 200000, h.sale(sale.ID).OutstandingAmount)

	// nothing was recomputed
	_, err = h.balance.GetCreditLimit(h.ctx, customerID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestReceivable_SubCentAmountsAreRejected(t *testing.T) {
	h := newHarness(t)
	customerID := uuid.New()
	sale := h.seedSale(customerID, "INV-001", 50000, daysAgo(3), dueIn(27))
	receipt := h.recordReceipt(customerID, "RCV-001", 50000)

	for _, amount := range []string{"0.004", "0.001"} {
		_, err := h.receivable.AllocateToSale(h.ctx, testActor, appfinance.AllocateToSaleRequest{
			ReceiptID: receipt.ID,
			SaleID:    sale.ID,
			Amount:    decimal.RequireFromString(amount),
		})
		assert.ErrorIs(t, err, finance.ErrInvalidAmount, amount)

		_, err = h.receivable.AllocateManual(h.ctx, testActor, appfinance.ManualAllocationRequest{
			PaymentID: receipt.ID,
			Lines:     []appfinance.AllocationLineRequest{{DocumentID: sale.ID, Amount: decimal.RequireFromString(amount)}},
		})
		assert.ErrorIs(t, err, finance.ErrInvalidAmount, amount)
	}
	assert.Zero(t, h.allocationCount(&models.CustomerPaymentAllocationModel{}))

	result, err := h.receivable.AllocateToSale(h.ctx, testActor, appfinance.AllocateToSaleRequest{
		ReceiptID: receipt.ID,
		SaleID:    sale.ID,
		Amount:    decimal.RequireFromString("10000.004"),
	})
	require.NoError(t, err)
	requireDecimal(t, 10000, result.TotalAllocated)
	requireDecimal(t, 10000, h.sale(sale.ID).PaidAmount)
}

func TestReceivable_AllocateManualIsAllOrNothing(t *testing.T) {
	h := newHarness(t)
	customerID := uuid.New()
	first, second := twoOpenSales(h, customerID)
	receipt := h.recordReceipt(customerID, "RCV-001", 100000)

	_, err := h.receivable.AllocateManual(h.ctx, testActor, appfinance.ManualAllocationRequest{
		PaymentID: receipt.ID,
		Lines: []appfinance.AllocationLineRequest{
			{DocumentID: first.ID, Amount: idr(30000)},
			{DocumentID: second.ID, Amount: idr(55000)},
		},
	})
	require.Error(t, err)
	assert.Zero(t, h.allocationCount(&models.CustomerPaymentAllocationModel{}))
	requireDecimal(t, 60000, h.sale(first.ID).OutstandingAmount)

	result, err := h.receivable.AllocateManual(h.ctx, testActor, appfinance.ManualAllocationRequest{
		PaymentID: receipt.ID,
		Lines: []appfinance.AllocationLineRequest{
			{DocumentID: second.ID, Amount: idr(20000)},
			{DocumentID: first.ID, Amount: idr(30000)},
		},
	})
	require.NoError(t, err)
	require.Len(t, result.Allocations, 2)
	requireDecimal(t, 50000, result.TotalAllocated)
	requireDecimal(t, 50000, result.RemainingUnallocated)
	assert.False(t, result.FullyAllocated)
	requireDecimal(t, 30000, h.sale(first.ID).OutstandingAmount)
	requireDecimal(t, 30000, h.sale(second.ID).OutstandingAmount)
}

func TestReceivable_PreviewWritesNothing(t *testing.T) {
	h := newHarness(t)
	customerID := uuid.New()
	first, second := twoOpenSales(h, customerID)
	receipt := h.recordReceipt(customerID, "RCV-001", 80000)

	preview, err := h.receivable.PreviewAutoAllocation(h.ctx, receipt.ID)
	require.NoError(t, err)
	require.Len(t, preview.Lines, 2)
	assert.Equal(t, first.ID, preview.Lines[0].TargetID)
	requireDecimal(t, 60000, preview.Lines[0].Amount)
	assert.Equal(t, second.ID, preview.Lines[1].TargetID)
	requireDecimal(t, 20000, preview.Lines[1].Amount)
	assert.True(t, preview.FullyAllocated)

	assert.Zero(t, h.allocationCount(&models.CustomerPaymentAllocationModel{}))
	requireDecimal(t, 60000, h.sale(first.ID).OutstandingAmount)
}

func TestReceivable_CancelAndDeleteAllocation(t *testing.T) {
	h := newHarness(t)
	customerID := uuid.New()
	first, second := twoOpenSales(h, customerID)
	receipt := h.recordReceipt(customerID, "RCV-001", 100000)

	result, err := h.receivable.AutoAllocatePayments(h.ctx, testActor, receipt.ID)
	require.NoError(t, err)

	t.Run("cancel applied allocation runs the cascade", func(t *testing.T) {
		cancelled, err := h.receivable.CancelAllocation(h.ctx, testActor, appfinance.ReleaseAllocationRequest{
			AllocationID: result.Allocations[0].ID,
			Reason:       "customer dispute",
		})
		require.NoError(t, err)
		assert.Equal(t, finance.AllocationStatusCancelled, cancelled.Status)
		requireDecimal(t, 60000, h.sale(first.ID).OutstandingAmount)
		assert.Equal(t, trade.PaymentStatusUnpaid, h.sale(first.ID).PaymentStatus)
	})

	t.Run("delete applied allocation leaves balances like a reversal", func(t *testing.T) {
		err := h.receivable.DeleteAllocation(h.ctx, testActor, result.Allocations[1].ID)
		require.NoError(t, err)
		requireDecimal(t, 50000, h.sale(second.ID).OutstandingAmount)

		got, err := h.receivable.GetReceipt(h.ctx, receipt.ID)
		require.NoError(t, err)
		requireDecimal(t, 100000, got.UnallocatedAmount)
		assert.Equal(t, finance.AllocationStateUnallocated, got.AllocationStatus)
		requireDecimal(t, 110000, h.credit(customerID).TotalOutstanding)
	})

	t.Run("unknown allocation", func(t *testing.T) {
		_, err := h.receivable.CancelAllocation(h.ctx, testActor, appfinance.ReleaseAllocationRequest{AllocationID: uuid.New()})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestReceivable_ReceiptLifecycle(t *testing.T) {
	h := newHarness(t)
	customerID := uuid.New()
	h.seedSale(customerID, "INV-001", 60000, daysAgo(20), dueIn(10))

	t.Run("duplicate receipt number", func(t *testing.T) {
		h.recordReceipt(customerID, "RCV-DUP", 1000)
		_, err := h.receivable.RecordReceipt(h.ctx, testActor, appfinance.RecordReceiptRequest{
			ReceiptNumber: "RCV-DUP",
			CustomerID:    customerID,
			Amount:        idr(1000),
			PaymentMethod: "cash",
			ReceiptDate:   testNow,
		})
		assert.ErrorIs(t, err, shared.ErrAlreadyExists)
	})

	t.Run("invalid method is rejected before any write", func(t *testing.T) {
		_, err := h.receivable.RecordReceipt(h.ctx, testActor, appfinance.RecordReceiptRequest{
			ReceiptNumber: "RCV-BAD",
			CustomerID:    customerID,
			Amount:        idr(1000),
			PaymentMethod: "barter",
			ReceiptDate:   testNow,
		})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("verify counts the receipt as paid", func(t *testing.T) {
		receipt := h.recordReceipt(customerID, "RCV-VER", 25000)
		verified, err := h.receivable.VerifyReceipt(h.ctx, testActor, receipt.ID)
		require.NoError(t, err)
		assert.Equal(t, finance.ReceiptStatusVerified, verified.Status)
		require.NotNil(t, verified.VerifiedAt)
		requireDecimal(t, 25000, h.credit(customerID).TotalPaid)

		_, err = h.receivable.VerifyReceipt(h.ctx, testActor, receipt.ID)
		assert.ErrorIs(t, err, finance.ErrWrongState)
	})

	t.Run("cancel cascades to nothing when unapplied", func(t *testing.T) {
		receipt := h.recordReceipt(customerID, "RCV-CAN", 5000)
		cancelled, err := h.receivable.CancelReceipt(h.ctx, testActor, receipt.ID, "duplicate entry")
		require.NoError(t, err)
		assert.Equal(t, finance.ReceiptStatusCancelled, cancelled.Status)

		_, err = h.receivable.AutoAllocatePayments(h.ctx, testActor, receipt.ID)
		assert.ErrorIs(t, err, finance.ErrWrongState)
	})

	t.Run("cancel refused once money is applied", func(t *testing.T) {
		receipt := h.recordReceipt(customerID, "RCV-APP", 10000)
		_, err := h.receivable.AutoAllocatePayments(h.ctx, testActor, receipt.ID)
		require.NoError(t, err)

		_, err = h.receivable.CancelReceipt(h.ctx, testActor, receipt.ID, "too late")
		assert.ErrorIs(t, err, finance.ErrWrongState)
	})
}

func TestReceivable_ConcurrentAllocationsNeverOverdraw(t *testing.T) {
	h := newHarness(t)
	customerID := uuid.New()
	first := h.seedSale(customerID, "INV-001", 100000, daysAgo(5), dueIn(25))
	second := h.seedSale(customerID, "INV-002", 100000, daysAgo(4), dueIn(26))
	receipt := h.recordReceipt(customerID, "RCV-001", 100000)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, saleID := range []uuid.UUID{first.ID, second.ID} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = h.receivable.AllocateToSale(h.ctx, testActor, appfinance.AllocateToSaleRequest{
				ReceiptID: receipt.ID,
				SaleID:    saleID,
				Amount:    idr(80000),
			})
		}()
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			failures++
			assert.True(t, errors.Is(err, finance.ErrInsufficientUnallocated) || errors.Is(err, shared.ErrConcurrencyConflict), err.Error())
		}
	}
	assert.Equal(t, 1, failures)

	got, err := h.receivable.GetReceipt(h.ctx, receipt.ID)
	require.NoError(t, err)
	requireDecimal(t, 80000, got.AllocatedAmount)
	requireSplit(t, got)
}
