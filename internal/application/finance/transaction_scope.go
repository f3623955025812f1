package finance

import (
	"context"

	"github.com/erp/arap/internal/domain/finance"
	"github.com/erp/arap/internal/domain/trade"
)

// TransactionScope provides transactional access to the allocation repositories.
// Every repository handed to fn shares one database transaction, so the
// allocation row, the payment split, the document status and the balance
// roll-up commit or roll back together.
type TransactionScope interface {
	// Execute runs fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to all repositories within a transaction.
//
// Lock order used by the services inside a transaction:
//   - the parent receipt or payment (FindByIDForUpdate)
//   - the target documents, ascending by ID
//   - the allocation rows, re-read after the documents are held
//   - the balance roll-up row of the party
type TransactionalRepositories interface {
	// SaleRepo returns the sale repository scoped to the current transaction
	SaleRepo() trade.SaleRepository
	// PurchaseOrderRepo returns the purchase order repository scoped to the current transaction
	PurchaseOrderRepo() trade.PurchaseOrderRepository
	// ReceiptRepo returns the customer receipt repository scoped to the current transaction
	ReceiptRepo() finance.CustomerPaymentReceiveRepository
	// ReceiptAllocationRepo returns the receivable allocation repository scoped to the current transaction
	ReceiptAllocationRepo() finance.CustomerPaymentAllocationRepository
	// PurchasePaymentRepo returns the supplier payment repository scoped to the current transaction
	PurchasePaymentRepo() finance.PurchasePaymentRepository
	// PurchaseAllocationRepo returns the payable allocation repository scoped to the current transaction
	PurchaseAllocationRepo() finance.PurchasePaymentAllocationRepository
	// CreditLimitRepo returns the customer credit roll-up repository scoped to the current transaction
	CreditLimitRepo() finance.CustomerCreditLimitRepository
	// SupplierBalanceRepo returns the supplier balance repository scoped to the current transaction
	SupplierBalanceRepo() finance.SupplierBalanceRepository
	// AgingSnapshotRepo returns the aging snapshot repository scoped to the current transaction
	AgingSnapshotRepo() finance.CustomerAgingSnapshotRepository
	// ScheduleRepo returns the payment schedule repository scoped to the current transaction
	ScheduleRepo() finance.CustomerPaymentScheduleRepository
}

// Repositories bundles plain repositories for NoOpTransactionScope.
type Repositories struct {
	Sales               trade.SaleRepository
	PurchaseOrders      trade.PurchaseOrderRepository
	Receipts            finance.CustomerPaymentReceiveRepository
	ReceiptAllocations  finance.CustomerPaymentAllocationRepository
	PurchasePayments    finance.PurchasePaymentRepository
	PurchaseAllocations finance.PurchasePaymentAllocationRepository
	CreditLimits        finance.CustomerCreditLimitRepository
	SupplierBalances    finance.SupplierBalanceRepository
	AgingSnapshots      finance.CustomerAgingSnapshotRepository
	Schedules           finance.CustomerPaymentScheduleRepository
}

// NoOpTransactionScope is a transaction scope that doesn't actually use transactions.
// This is useful for testing with in-memory or mocked repositories.
type NoOpTransactionScope struct {
	repos Repositories
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(repos Repositories) *NoOpTransactionScope {
	return &NoOpTransactionScope{repos: repos}
}

// Execute runs the function without a real transaction.
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

func (s *NoOpTransactionScope) SaleRepo() trade.SaleRepository {
	return s.repos.Sales
}

func (s *NoOpTransactionScope) PurchaseOrderRepo() trade.PurchaseOrderRepository {
	return s.repos.PurchaseOrders
}

func (s *NoOpTransactionScope) ReceiptRepo() finance.CustomerPaymentReceiveRepository {
	return s.repos.Receipts
}

func (s *NoOpTransactionScope) ReceiptAllocationRepo() finance.CustomerPaymentAllocationRepository {
	return s.repos.ReceiptAllocations
}

func (s *NoOpTransactionScope) PurchasePaymentRepo() finance.PurchasePaymentRepository {
	return s.repos.PurchasePayments
}

func (s *NoOpTransactionScope) PurchaseAllocationRepo() finance.PurchasePaymentAllocationRepository {
	return s.repos.PurchaseAllocations
}

func (s *NoOpTransactionScope) CreditLimitRepo() finance.CustomerCreditLimitRepository {
	return s.repos.CreditLimits
}

func (s *NoOpTransactionScope) SupplierBalanceRepo() finance.SupplierBalanceRepository {
	return s.repos.SupplierBalances
}

func (s *NoOpTransactionScope) AgingSnapshotRepo() finance.CustomerAgingSnapshotRepository {
	return s.repos.AgingSnapshots
}

func (s *NoOpTransactionScope) ScheduleRepo() finance.CustomerPaymentScheduleRepository {
	return s.repos.Schedules
}

// Ensure NoOpTransactionScope implements both interfaces
var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
