package persistence

import (
	"context"

	appfinance "github.com/erp/arap/internal/application/finance"
	"github.com/erp/arap/internal/domain/finance"
	"github.com/erp/arap/internal/domain/trade"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// Every repository handed to the callback shares the one *gorm.DB transaction.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// If the function succeeds, the transaction is committed.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appfinance.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

func (r *gormTransactionalRepositories) SaleRepo() trade.SaleRepository {
	return NewGormSaleRepository(r.tx)
}

func (r *gormTransactionalRepositories) PurchaseOrderRepo() trade.PurchaseOrderRepository {
	return NewGormPurchaseOrderRepository(r.tx)
}

func (r *gormTransactionalRepositories) ReceiptRepo() finance.CustomerPaymentReceiveRepository {
	return NewGormCustomerPaymentReceiveRepository(r.tx)
}

func (r *gormTransactionalRepositories) ReceiptAllocationRepo() finance.CustomerPaymentAllocationRepository {
	return NewGormCustomerPaymentAllocationRepository(r.tx)
}

func (r *gormTransactionalRepositories) PurchasePaymentRepo() finance.PurchasePaymentRepository {
	return NewGormPurchasePaymentRepository(r.tx)
}

func (r *gormTransactionalRepositories) PurchaseAllocationRepo() finance.PurchasePaymentAllocationRepository {
	return NewGormPurchasePaymentAllocationRepository(r.tx)
}

func (r *gormTransactionalRepositories) CreditLimitRepo() finance.CustomerCreditLimitRepository {
	return NewGormCustomerCreditLimitRepository(r.tx)
}

func (r *gormTransactionalRepositories) SupplierBalanceRepo() finance.SupplierBalanceRepository {
	return NewGormSupplierBalanceRepository(r.tx)
}

func (r *gormTransactionalRepositories) AgingSnapshotRepo() finance.CustomerAgingSnapshotRepository {
	return NewGormCustomerAgingSnapshotRepository(r.tx)
}

func (r *gormTransactionalRepositories) ScheduleRepo() finance.CustomerPaymentScheduleRepository {
	return NewGormCustomerPaymentScheduleRepository(r.tx)
}

// Ensure GormTransactionScope implements TransactionScope
var _ appfinance.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalRepositories implements TransactionalRepositories
var _ appfinance.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
