package finance_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	appfinance "github.com/erp/arap/internal/application/finance"
	"github.com/erp/arap/internal/domain/finance"
	"github.com/erp/arap/internal/domain/shared"
	"github.com/erp/arap/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func pastDue(days int) *time.Time {
	d := daysAgo(days)
	return &d
}

func TestBalance_RecomputeCustomerCreditIsIdempotent(t *testing.T) {
	h := newHarness(t)
	customerID := uuid.New()
	late := h.seedSale(customerID, "INV-001", 80000, daysAgo(75), pastDue(45))
	h.seedSale(customerID, "INV-002", 20000, daysAgo(5), dueIn(25))

	first, err := h.balance.RecomputeCustomerCredit(h.ctx, customerID)
	require.NoError(t, err)
	requireDecimal(t, 100000, first.TotalOutstanding)
	requireDecimal(t, 80000, first.OverdueAmount)
	assert.Equal(t, 45, first.DaysOverdue)
	assert.Equal(t, finance.CreditStatusWarning, first.CreditStatus)
	assert.Equal(t, trade.PaymentStatusOverdue, h.sale(late.ID).PaymentStatus)
	assert.Contains(t, h.publisher.types(), finance.EventTypeCreditStatusChanged)

	h.publisher.reset()
	second, err := h.balance.RecomputeCustomerCredit(h.ctx, customerID)
	require.NoError(t, err)
	assert.True(t, first.TotalOutstanding.Equal(second.TotalOutstanding))
	assert.True(t, first.OverdueAmount.Equal(second.OverdueAmount))
	assert.Equal(t, first.DaysOverdue, second.DaysOverdue)
	assert.Equal(t, first.CreditStatus, second.CreditStatus)
	assert.NotContains(t, h.publisher.types(), finance.EventTypeCreditStatusChanged)
}

func TestBalance_CreditStatusFollowsDaysOverdue(t *testing.T) {
	tests := []struct {
		name    string
		overdue int
		want    finance.CreditStatus
	}{
		{"not yet due", 0, finance.CreditStatusCurrent},
		{"thirty days is still current", 30, finance.CreditStatusCurrent},
		{"past thirty days", 31, finance.CreditStatusWarning},
		{"past sixty days", 61, finance.CreditStatusSuspended},
		{"past ninety days", 91, finance.CreditStatusDefaulted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			customerID := uuid.New()
			h.seedSale(customerID, "INV-001", 10000, daysAgo(tt.overdue+30), pastDue(tt.overdue))

			credit, err := h.balance.RecomputeCustomerCredit(h.ctx, customerID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, credit.CreditStatus)
		})
	}
}

func TestBalance_AdjustCreditLimit(t *testing.T) {
	h := newHarness(t)
	customerID := uuid.New()
	h.seedSale(customerID, "INV-001", 85000, daysAgo(5), dueIn(25))

	credit, err := h.balance.AdjustCreditLimit(h.ctx, testActor, appfinance.AdjustCreditLimitRequest{
		PartyID:     customerID,
		CreditLimit: idr(100000),
	})
	require.NoError(t, err)
	requireDecimal(t, 100000, credit.CreditLimit)
	requireDecimal(t, 15000, credit.AvailableCredit)
	requireDecimal(t, 85, credit.UtilizationPercentage)
	assert.Equal(t, finance.CreditStatusWarning, credit.CreditStatus)

	credit, err = h.balance.AdjustCreditLimit(h.ctx, testActor, appfinance.AdjustCreditLimitRequest{
		PartyID:     customerID,
		CreditLimit: idr(50000),
	})
	require.NoError(t, err)
	assert.Equal(t, finance.CreditStatusBlocked, credit.CreditStatus)
	requireDecimal(t, 0, credit.AvailableCredit)

	credit, err = h.balance.AdjustCreditLimit(h.ctx, testActor, appfinance.AdjustCreditLimitRequest{
		PartyID:     customerID,
		CreditLimit: idr(0),
	})
	require.NoError(t, err)
	assert.Equal(t, finance.CreditStatusCurrent, credit.CreditStatus)

	stored := h.credit(customerID)
	require.NotNil(t, stored.LimitUpdatedBy)
	assert.Equal(t, testActor, *stored.LimitUpdatedBy)

	_, err = h.balance.AdjustCreditLimit(h.ctx, testActor, appfinance.AdjustCreditLimitRequest{
		PartyID:     customerID,
		CreditLimit: idr(-1),
	})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestBalance_SupplierBalance(t *testing.T) {
	h := newHarness(t)
	supplierID := uuid.New()
	h.seedOrder(supplierID, "PO-001", 120000, daysAgo(100), pastDue(65))

	_, err := h.balance.GetSupplierBalance(h.ctx, supplierID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	balance, err := h.balance.RecomputeSupplierBalance(h.ctx, supplierID)
	require.NoError(t, err)
	requireDecimal(t, 120000, balance.TotalOutstanding)
	requireDecimal(t, 120000, balance.OverdueAmount)
	assert.Equal(t, 65, balance.MaxDaysOverdue)
	assert.Equal(t, finance.CreditStatusSuspended, balance.PaymentStatus)

	balance, err = h.balance.AdjustSupplierCreditLimit(h.ctx, testActor, appfinance.AdjustCreditLimitRequest{
		PartyID:     supplierID,
		CreditLimit: idr(100000),
	})
	require.NoError(t, err)
	requireDecimal(t, 100000, balance.CreditLimit)
	assert.Equal(t, finance.CreditStatusBlocked, balance.PaymentStatus)
}

func endedSpan(t *testing.T, sr *tracetest.SpanRecorder, name string) sdktrace.ReadOnlySpan {
	t.Helper()
	for _, span := range sr.Ended() {
		if span.Name() == name {
			return span
		}
	}
	require.Failf(t, "span not recorded", "no ended span named %q", name)
	return nil
}

func TestBalance_AdjustCreditLimitSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})

	h := newHarness(t)
	supplierID := uuid.New()
	h.seedOrder(supplierID, "PO-001", 20000, daysAgo(3), dueIn(27))

	_, err := h.balance.AdjustSupplierCreditLimit(h.ctx, testActor, appfinance.AdjustCreditLimitRequest{
		PartyID:     supplierID,
		CreditLimit: idr(50000),
	})
	require.NoError(t, err)
	span := endedSpan(t, sr, "balance.adjust_supplier_credit_limit")
	assert.Equal(t, codes.Ok, span.Status().Code)
	assert.Contains(t, attrValues(span), supplierID.String())

	sr.Reset()
	_, err = h.balance.AdjustSupplierCreditLimit(h.ctx, testActor, appfinance.AdjustCreditLimitRequest{
		PartyID:     supplierID,
		CreditLimit: idr(-1),
	})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
	assert.Equal(t, codes.Error, endedSpan(t, sr, "balance.adjust_supplier_credit_limit").Status().Code)

	sr.Reset()
	_, err = h.balance.AdjustCreditLimit(h.ctx, testActor, appfinance.AdjustCreditLimitRequest{
		PartyID:     uuid.New(),
		CreditLimit: idr(50000),
	})
	require.NoError(t, err)
	assert.Equal(t, codes.Ok, endedSpan(t, sr, "balance.adjust_credit_limit").Status().Code)
}

func attrValues(span sdktrace.ReadOnlySpan) []string {
	values := make([]string, 0, len(span.Attributes()))
	for _, attr := range span.Attributes() {
		values = append(values, attr.Value.Emit())
	}
	return values
}

func TestBalance_RecomputeAll(t *testing.T) {
	h := newHarness(t)
	customers := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for i, id := range customers {
		h.seedSale(id, fmt.Sprintf("INV-%03d", i+1), 10000, daysAgo(3), dueIn(27))
	}
	suppliers := []uuid.UUID{uuid.New(), uuid.New()}
	for i, id := range suppliers {
		h.seedOrder(id, fmt.Sprintf("PO-%03d", i+1), 5000, daysAgo(3), dueIn(27))
	}
	h.balance.SetConcurrency(2)

	result, err := h.balance.RecomputeAllCustomers(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Processed)
	assert.Empty(t, result.Failed)
	for _, id := range customers {
		requireDecimal(t, 10000, h.credit(id).TotalOutstanding)
	}

	result, err = h.balance.RecomputeAllSuppliers(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
	for _, id := range suppliers {
		balance, err := h.balance.GetSupplierBalance(h.ctx, id)
		require.NoError(t, err)
		requireDecimal(t, 5000, balance.TotalOutstanding)
	}
}
