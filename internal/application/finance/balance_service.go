package finance

import (
	"context"
	"fmt"

	"github.com/erp/arap/internal/domain/finance"
	"github.com/erp/arap/internal/domain/shared"
	"github.com/erp/arap/internal/domain/shared/valueobject"
	"github.com/erp/arap/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BalanceService maintains the customer credit roll-ups and supplier balances
// outside of the allocation cascade: nightly recomputes and limit changes.
type BalanceService struct {
	serviceSupport
}

// NewBalanceService creates a new BalanceService
func NewBalanceService(scope TransactionScope, clock shared.Clock, logger *zap.Logger) *BalanceService {
	return &BalanceService{
		serviceSupport: newServiceSupport(scope, clock, logger.Named("balance")),
	}
}

// RecomputeCustomerCredit refreshes the overdue flag of the customer's open
// sales and rebuilds the credit roll-up from them.
func (s *BalanceService) RecomputeCustomerCredit(ctx context.Context, customerID uuid.UUID) (*CreditLimitResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "balance", "recompute_customer")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrCustomerID, customerID.String())

	var credit *finance.CustomerCreditLimit
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		now := s.clock.Now()
		sales, err := repos.SaleRepo().FindOutstandingByCustomerForUpdate(ctx, customerID)
		if err != nil {
			return fmt.Errorf("failed to lock outstanding sales: %w", err)
		}
		for _, sale := range sales {
			if !sale.RefreshOverdue(now) {
				continue
			}
			sale.Touch(now)
			if err := repos.SaleRepo().Save(ctx, sale); err != nil {
				return fmt.Errorf("failed to save sale %s: %w", sale.InvoiceNumber, err)
			}
		}
		credit, err = recomputeCustomerCredit(ctx, repos, customerID, now)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publishDomainEvents(ctx, shared.CollectEvents(credit))
	s.logger.Debug("customer credit recomputed",
		zap.String("customer_id", customerID.String()),
		zap.String("credit_status", string(credit.CreditStatus)),
		zap.String("outstanding", valueobject.FormatIDR(credit.TotalOutstanding)),
	)
	telemetry.SetOK(span)
	return toCreditLimitResponse(credit), nil
}

// RecomputeSupplierBalance rebuilds the supplier balance from open orders and payments.
func (s *BalanceService) RecomputeSupplierBalance(ctx context.Context, supplierID uuid.UUID) (*SupplierBalanceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "balance", "recompute_supplier")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrSupplierID, supplierID.String())

	var balance *finance.SupplierBalance
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		balance, err = recomputeSupplierBalance(ctx, repos, supplierID, s.clock.Now())
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publishDomainEvents(ctx, shared.CollectEvents(balance))
	telemetry.SetOK(span)
	return toSupplierBalanceResponse(balance), nil
}

// AdjustCreditLimit sets the credit limit of a customer. Zero means no limit.
func (s *BalanceService) AdjustCreditLimit(ctx context.Context, actor uuid.UUID, req AdjustCreditLimitRequest) (*CreditLimitResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "balance", "adjust_credit_limit")
	defer span.End()

	if err := validateRequest(req); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrCustomerID, req.PartyID.String(),
		telemetry.SpanAttrAmount, req.CreditLimit.String(),
	)

	var credit *finance.CustomerCreditLimit
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		now := s.clock.Now()
		var err error
		credit, err = recomputeCustomerCredit(ctx, repos, req.PartyID, now)
		if err != nil {
			return err
		}
		if err := credit.AdjustCreditLimit(req.CreditLimit, actor, now); err != nil {
			return err
		}
		return repos.CreditLimitRepo().Save(ctx, credit)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publishDomainEvents(ctx, shared.CollectEvents(credit))
	s.logger.Info("credit limit adjusted",
		zap.String("customer_id", req.PartyID.String()),
		zap.String("credit_limit", valueobject.FormatIDR(credit.CreditLimit)),
		zap.String("actor", actor.String()),
	)
	telemetry.SetOK(span)
	return toCreditLimitResponse(credit), nil
}

// AdjustSupplierCreditLimit sets the limit a supplier grants us. Zero means no limit.
func (s *BalanceService) AdjustSupplierCreditLimit(ctx context.Context, actor uuid.UUID, req AdjustCreditLimitRequest) (*SupplierBalanceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "balance", "adjust_supplier_credit_limit")
	defer span.End()

	if err := validateRequest(req); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrSupplierID, req.PartyID.String(),
		telemetry.SpanAttrAmount, req.CreditLimit.String(),
	)

	var balance *finance.SupplierBalance
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		now := s.clock.Now()
		var err error
		balance, err = recomputeSupplierBalance(ctx, repos, req.PartyID, now)
		if err != nil {
			return err
		}
		if err := balance.AdjustCreditLimit(req.CreditLimit, now); err != nil {
			return err
		}
		return repos.SupplierBalanceRepo().Save(ctx, balance)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publishDomainEvents(ctx, shared.CollectEvents(balance))
	s.logger.Info("supplier credit limit adjusted",
		zap.String("supplier_id", req.PartyID.String()),
		zap.String("credit_limit", valueobject.FormatIDR(balance.CreditLimit)),
		zap.String("actor", actor.String()),
	)
	telemetry.SetOK(span)
	return toSupplierBalanceResponse(balance), nil
}

// GetCreditLimit returns the stored credit roll-up of a customer
func (s *BalanceService) GetCreditLimit(ctx context.Context, customerID uuid.UUID) (*CreditLimitResponse, error) {
	var resp *CreditLimitResponse
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		credit, err := repos.CreditLimitRepo().FindByCustomer(ctx, customerID)
		if err != nil {
			return err
		}
		resp = toCreditLimitResponse(credit)
		return nil
	})
	return resp, err
}

// GetSupplierBalance returns the stored balance of a supplier
func (s *BalanceService) GetSupplierBalance(ctx context.Context, supplierID uuid.UUID) (*SupplierBalanceResponse, error) {
	var resp *SupplierBalanceResponse
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		balance, err := repos.SupplierBalanceRepo().FindBySupplier(ctx, supplierID)
		if err != nil {
			return err
		}
		resp = toSupplierBalanceResponse(balance)
		return nil
	})
	return resp, err
}

// RecomputeAllCustomers recomputes every customer that has sales, each under
// its receivable lock.
func (s *BalanceService) RecomputeAllCustomers(ctx context.Context) (*BatchResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "balance", "recompute_all_customers")
	defer span.End()

	var ids []uuid.UUID
	if err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		ids, err = repos.SaleRepo().ListCustomerIDs(ctx)
		return err
	}); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrBatchSize, len(ids))

	return s.runBatch(ctx, "customer recompute", ids, func(ctx context.Context, id uuid.UUID) error {
		return s.withLock(ctx, receivableLockKey(id), func() error {
			_, err := s.RecomputeCustomerCredit(ctx, id)
			return err
		})
	})
}

// RecomputeAllSuppliers recomputes every supplier that has purchase orders.
func (s *BalanceService) RecomputeAllSuppliers(ctx context.Context) (*BatchResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "balance", "recompute_all_suppliers")
	defer span.End()

	var ids []uuid.UUID
	if err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		ids, err = repos.PurchaseOrderRepo().ListSupplierIDs(ctx)
		return err
	}); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrBatchSize, len(ids))

	return s.runBatch(ctx, "supplier recompute", ids, func(ctx context.Context, id uuid.UUID) error {
		return s.withLock(ctx, payableLockKey(id), func() error {
			_, err := s.RecomputeSupplierBalance(ctx, id)
			return err
		})
	})
}
