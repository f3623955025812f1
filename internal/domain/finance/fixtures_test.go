package finance

import (
	"testing"
	"time"

	"github.com/erp/arap/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var (
	day0  = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	actor = uuid.MustParse("7a1c1f8e-2b36-4c5e-9d0a-3f6e2a9b8c01")
)

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func decimalFromString(t *testing.T, v string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(v)
	require.NoError(t, err)
	return d
}

func dueIn(days int) *time.Time {
	d := day0.AddDate(0, 0, days)
	return &d
}

func newSale(t *testing.T, customerID uuid.UUID, number string, total int64, due *time.Time) *trade.Sale {
	t.Helper()
	s, err := trade.NewSale(customerID, number, dec(total), day0, due, day0)
	require.NoError(t, err)
	return s
}

func newReceipt(t *testing.T, customerID uuid.UUID, amount int64) *CustomerPaymentReceive {
	t.Helper()
	r, err := NewCustomerPaymentReceive("RCV-001", customerID, dec(amount), PaymentMethodBankTransfer, day0, actor, day0)
	require.NoError(t, err)
	return r
}

// receivableBook runs the allocation cascade in memory the way the service does inside a transaction.
type receivableBook struct {
	receipt *CustomerPaymentReceive
	sales   []*trade.Sale
	allocs  []*CustomerPaymentAllocation
}

func (b *receivableBook) sale(id uuid.UUID) *trade.Sale {
	for _, s := range b.sales {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (b *receivableBook) allocate(saleID uuid.UUID, amount decimal.Decimal, now time.Time) (*CustomerPaymentAllocation, error) {
	a, err := NewCustomerPaymentAllocation(b.receipt, b.sale(saleID), amount, actor, now)
	if err != nil {
		return nil, err
	}
	if err := a.Apply(&actor, now); err != nil {
		return nil, err
	}
	b.allocs = append(b.allocs, a)
	b.recompute(now)
	return a, nil
}

func (b *receivableBook) recompute(now time.Time) {
	b.receipt.UpdateAllocationAmounts(b.allocs, now)
	for _, s := range b.sales {
		var forSale []*CustomerPaymentAllocation
		for _, a := range b.allocs {
			if a.SaleID == s.ID {
				forSale = append(forSale, a)
			}
		}
		s.Settle(SumApplied(forSale), now)
	}
}
