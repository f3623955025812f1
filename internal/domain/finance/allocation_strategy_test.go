package finance

import (
	"testing"
	"time"

	"github.com/erp/arap/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func target(number string, outstanding int64, due *time.Time, docDate time.Time, seq int) AllocationTarget {
	return AllocationTarget{
		ID:                uuid.New(),
		Number:            number,
		OutstandingAmount: dec(outstanding),
		DueDate:           due,
		DocumentDate:      docDate,
		Sequence:          seq,
	}
}

func TestStrategyType(t *testing.T) {
	assert.True(t, StrategyTypeWaterfall.IsValid())
	assert.True(t, StrategyTypeManual.IsValid())
	assert.False(t, StrategyType("lifo").IsValid())

	s, err := NewAllocationStrategy(StrategyTypeWaterfall, nil)
	require.NoError(t, err)
	assert.Equal(t, StrategyTypeWaterfall, s.Type())

	_, err = NewAllocationStrategy("lifo", nil)
	assert.Error(t, err)
}

func TestWaterfallStrategy(t *testing.T) {
	strategy := NewWaterfallStrategy()

	t.Run("rejects non-positive amount", func(t *testing.T) {
		_, err := strategy.Plan(valueobject.ZeroIDR(), nil)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("no targets leaves everything remaining", func(t *testing.T) {
		plan, err := strategy.Plan(valueobject.NewMoneyIDRFromInt(1000), nil)
		require.NoError(t, err)
		assert.Empty(t, plan.Allocations)
		assert.True(t, plan.RemainingAmount.Equal(dec(1000)))
		assert.False(t, plan.FullyAllocated)
	})

	t.Run("orders by due date with undated last", func(t *testing.T) {
		undated := target("INV-UNDATED", 100, nil, day0.AddDate(0, 0, -90), 0)
		late := target("INV-LATE", 100, dueIn(20), day0, 1)
		early := target("INV-EARLY", 100, dueIn(10), day0, 2)

		plan, err := strategy.Plan(valueobject.NewMoneyIDRFromInt(250), []AllocationTarget{undated, late, early})
		require.NoError(t, err)
		require.Len(t, plan.Allocations, 3)
		assert.Equal(t, early.ID, plan.Allocations[0].TargetID)
		assert.Equal(t, late.ID, plan.Allocations[1].TargetID)
		assert.Equal(t, undated.ID, plan.Allocations[2].TargetID)
		assert.True(t, plan.Allocations[2].Amount.Equal(dec(50)))
		assert.Equal(t, []uuid.UUID{early.ID, late.ID}, plan.TargetsFullyPaid)
		assert.Equal(t, []uuid.UUID{undated.ID}, plan.TargetsPartiallyPaid)
		assert.True(t, plan.FullyAllocated)
	})

	t.Run("ties break on document date then row order", func(t *testing.T) {
		due := dueIn(30)
		second := target("INV-B", 100, due, day0, 1)
		first := target("INV-A", 100, due, day0, 0)
		older := target("INV-OLD", 100, due, day0.AddDate(0, 0, -1), 2)

		plan, err := strategy.Plan(valueobject.NewMoneyIDRFromInt(300), []AllocationTarget{second, first, older})
		require.NoError(t, err)
		require.Len(t, plan.Allocations, 3)
		assert.Equal(t, "INV-OLD", plan.Allocations[0].TargetNumber)
		assert.Equal(t, "INV-A", plan.Allocations[1].TargetNumber)
		assert.Equal(t, "INV-B", plan.Allocations[2].TargetNumber)
	})

	t.Run("never touches a later document while an earlier one is short", func(t *testing.T) {
		a := target("INV-A", 600, dueIn(1), day0, 0)
		b := target("INV-B", 500, dueIn(2), day0, 1)
		c := target("INV-C", 500, dueIn(3), day0, 2)

		plan, err := strategy.Plan(valueobject.NewMoneyIDRFromInt(1000), []AllocationTarget{c, b, a})
		require.NoError(t, err)
		require.Len(t, plan.Allocations, 2)
		assert.True(t, plan.Allocations[0].Amount.Equal(dec(600)))
		assert.True(t, plan.Allocations[1].Amount.Equal(dec(400)))
		assert.True(t, plan.RemainingAmount.IsZero())
	})

	t.Run("skips documents without a balance", func(t *testing.T) {
		settled := target("INV-PAID", 0, dueIn(1), day0, 0)
		open := target("INV-OPEN", 100, dueIn(2), day0, 1)
		plan, err := strategy.Plan(valueobject.NewMoneyIDRFromInt(150), []AllocationTarget{settled, open})
		require.NoError(t, err)
		require.Len(t, plan.Allocations, 1)
		assert.Equal(t, open.ID, plan.Allocations[0].TargetID)
		assert.True(t, plan.RemainingAmount.Equal(dec(50)))
		assert.False(t, plan.FullyAllocated)
	})

	t.Run("does not reorder the caller's slice", func(t *testing.T) {
		targets := []AllocationTarget{
			target("INV-2", 100, dueIn(2), day0, 0),
			target("INV-1", 100, dueIn(1), day0, 1),
		}
		_, err := strategy.Plan(valueobject.NewMoneyIDRFromInt(100), targets)
		require.NoError(t, err)
		assert.Equal(t, "INV-2", targets[0].Number)
	})
}

func TestManualStrategy(t *testing.T) {
	a := target("INV-A", 500, dueIn(1), day0, 0)
	b := target("INV-B", 300, dueIn(2), day0, 1)
	targets := []AllocationTarget{a, b}
	amount := valueobject.NewMoneyIDRFromInt(600)

	t.Run("allocates exactly the requested lines", func(t *testing.T) {
		plan, err := NewManualStrategy([]ManualLine{
			{TargetID: b.ID, Amount: dec(300)},
			{TargetID: a.ID, Amount: dec(200)},
		}).Plan(amount, targets)
		require.NoError(t, err)
		require.Len(t, plan.Allocations, 2)
		assert.Equal(t, b.ID, plan.Allocations[0].TargetID)
		assert.True(t, plan.TotalAllocated.Equal(dec(500)))
		assert.True(t, plan.RemainingAmount.Equal(dec(100)))
	})

	t.Run("plans lines at money scale", func(t *testing.T) {
		plan, err := NewManualStrategy([]ManualLine{
			{TargetID: a.ID, Amount: decimal.RequireFromString("199.995")},
		}).Plan(amount, targets)
		require.NoError(t, err)
		require.Len(t, plan.Allocations, 1)
		assert.True(t, plan.Allocations[0].Amount.Equal(dec(200)))
		assert.True(t, plan.RemainingAmount.Equal(dec(400)))
	})

	tests := []struct {
		name  string
		lines []ManualLine
		want  error
	}{
		{"empty", nil, ErrInvalidAmount},
		{"zero line", []ManualLine{{TargetID: a.ID, Amount: decimal.Zero}}, ErrInvalidAmount},
		{"sub-cent line", []ManualLine{{TargetID: a.ID, Amount: decimal.RequireFromString("0.004")}}, ErrInvalidAmount},
		{"sub-cent line after a valid one", []ManualLine{
			{TargetID: b.ID, Amount: dec(100)},
			{TargetID: a.ID, Amount: decimal.RequireFromString("0.001")},
		}, ErrInvalidAmount},
		{"unknown document", []ManualLine{{TargetID: uuid.New(), Amount: dec(10)}}, ErrPartyMismatch},
		{"above outstanding", []ManualLine{{TargetID: b.ID, Amount: dec(301)}}, ErrExceedsLedgerTotal},
		{"repeated lines above outstanding", []ManualLine{
			{TargetID: b.ID, Amount: dec(200)},
			{TargetID: b.ID, Amount: dec(200)},
		}, ErrExceedsLedgerTotal},
		{"above payment", []ManualLine{
			{TargetID: a.ID, Amount: dec(400)},
			{TargetID: b.ID, Amount: dec(300)},
		}, ErrInsufficientUnallocated},
	}
	for _, tt := range tests {
		t.Run("rejects "+tt.name, func(t *testing.T) {
			plan, err := NewManualStrategy(tt.lines).Plan(amount, targets)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, plan)
		})
	}
}
