package finance

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/erp/arap/internal/domain/finance"
	"github.com/erp/arap/internal/domain/shared"
	"github.com/erp/arap/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// The helpers below run the recompute cascade that follows every allocation
// transition. They must be called inside TransactionScope.Execute after the
// parent payment and the documents are locked. Each one re-derives its
// target from the persisted children, so calling it twice is harmless.

// refreshReceipt re-derives the receipt split from its allocations and saves it.
func refreshReceipt(ctx context.Context, repos TransactionalRepositories, receipt *finance.CustomerPaymentReceive, now time.Time) error {
	allocs, err := repos.ReceiptAllocationRepo().FindByReceipt(ctx, receipt.ID)
	if err != nil {
		return fmt.Errorf("failed to load allocations of receipt %s: %w", receipt.ReceiptNumber, err)
	}
	receipt.UpdateAllocationAmounts(allocs, now)
	if err := repos.ReceiptRepo().Save(ctx, receipt); err != nil {
		return fmt.Errorf("failed to save receipt %s: %w", receipt.ReceiptNumber, err)
	}
	return nil
}

// refreshSale re-derives paid/outstanding/status of a sale from its allocations and saves it.
func refreshSale(ctx context.Context, repos TransactionalRepositories, sale *trade.Sale, now time.Time) error {
	allocs, err := repos.ReceiptAllocationRepo().FindBySale(ctx, sale.ID)
	if err != nil {
		return fmt.Errorf("failed to load allocations of sale %s: %w", sale.InvoiceNumber, err)
	}
	sale.Settle(finance.SumApplied(allocs), now)
	if err := repos.SaleRepo().Save(ctx, sale); err != nil {
		return fmt.Errorf("failed to save sale %s: %w", sale.InvoiceNumber, err)
	}
	return nil
}

// refreshPurchasePayment re-derives the applied sum and payment type of a supplier payment.
func refreshPurchasePayment(ctx context.Context, repos TransactionalRepositories, payment *finance.PurchasePayment, now time.Time) error {
	allocs, err := repos.PurchaseAllocationRepo().FindByPayment(ctx, payment.ID)
	if err != nil {
		return fmt.Errorf("failed to load allocations of payment %s: %w", payment.PaymentNumber, err)
	}
	payment.UpdatePaymentType(allocs, now)
	if err := repos.PurchasePaymentRepo().Save(ctx, payment); err != nil {
		return fmt.Errorf("failed to save payment %s: %w", payment.PaymentNumber, err)
	}
	return nil
}

// refreshPurchaseOrder re-derives paid/outstanding/status of a purchase order.
func refreshPurchaseOrder(ctx context.Context, repos TransactionalRepositories, order *trade.PurchaseOrder, now time.Time) error {
	allocs, err := repos.PurchaseAllocationRepo().FindByOrder(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("failed to load allocations of order %s: %w", order.OrderNumber, err)
	}
	order.Settle(finance.SumApplied(allocs), now)
	if err := repos.PurchaseOrderRepo().Save(ctx, order); err != nil {
		return fmt.Errorf("failed to save order %s: %w", order.OrderNumber, err)
	}
	return nil
}

// recomputeCustomerCredit rebuilds the customer's credit roll-up, creating it
// with no limit on first use.
func recomputeCustomerCredit(ctx context.Context, repos TransactionalRepositories, customerID uuid.UUID, now time.Time) (*finance.CustomerCreditLimit, error) {
	credit, err := repos.CreditLimitRepo().FindByCustomerForUpdate(ctx, customerID)
	if errors.Is(err, shared.ErrNotFound) {
		credit, err = finance.NewCustomerCreditLimit(customerID, decimal.Zero, now)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load credit limit of customer %s: %w", customerID, err)
	}
	sales, err := repos.SaleRepo().FindOutstandingByCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load outstanding sales: %w", err)
	}
	receipts, err := repos.ReceiptRepo().FindByCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load receipts: %w", err)
	}
	credit.Recompute(sales, receipts, now)
	if err := repos.CreditLimitRepo().Save(ctx, credit); err != nil {
		return nil, fmt.Errorf("failed to save credit limit of customer %s: %w", customerID, err)
	}
	return credit, nil
}

// recomputeSupplierBalance rebuilds the supplier's balance, creating it with
// no limit on first use.
func recomputeSupplierBalance(ctx context.Context, repos TransactionalRepositories, supplierID uuid.UUID, now time.Time) (*finance.SupplierBalance, error) {
	balance, err := repos.SupplierBalanceRepo().FindBySupplierForUpdate(ctx, supplierID)
	if errors.Is(err, shared.ErrNotFound) {
		balance, err = finance.NewSupplierBalance(supplierID, decimal.Zero, now)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load balance of supplier %s: %w", supplierID, err)
	}
	orders, err := repos.PurchaseOrderRepo().FindOutstandingBySupplier(ctx, supplierID)
	if err != nil {
		return nil, fmt.Errorf("failed to load outstanding orders: %w", err)
	}
	payments, err := repos.PurchasePaymentRepo().FindBySupplier(ctx, supplierID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payments: %w", err)
	}
	balance.Recompute(orders, payments, now)
	if err := repos.SupplierBalanceRepo().Save(ctx, balance); err != nil {
		return nil, fmt.Errorf("failed to save balance of supplier %s: %w", supplierID, err)
	}
	return balance, nil
}

// lockSales locks the given sales in ascending ID order and returns them by ID.
func lockSales(ctx context.Context, repos TransactionalRepositories, ids []uuid.UUID) (map[uuid.UUID]*trade.Sale, error) {
	sales := make(map[uuid.UUID]*trade.Sale, len(ids))
	for _, id := range sortedIDs(ids) {
		sale, err := repos.SaleRepo().FindByIDForUpdate(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to lock sale %s: %w", id, err)
		}
		sales[id] = sale
	}
	return sales, nil
}

// lockPurchaseOrders locks the given orders in ascending ID order and returns them by ID.
func lockPurchaseOrders(ctx context.Context, repos TransactionalRepositories, ids []uuid.UUID) (map[uuid.UUID]*trade.PurchaseOrder, error) {
	orders := make(map[uuid.UUID]*trade.PurchaseOrder, len(ids))
	for _, id := range sortedIDs(ids) {
		order, err := repos.PurchaseOrderRepo().FindByIDForUpdate(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to lock purchase order %s: %w", id, err)
		}
		orders[id] = order
	}
	return orders, nil
}

// sortedIDs returns the distinct ids in ascending byte order.
func sortedIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	slices.SortFunc(out, func(a, b uuid.UUID) int {
		return bytes.Compare(a[:], b[:])
	})
	return out
}
