package finance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/arap/internal/domain/finance"
	"github.com/erp/arap/internal/domain/shared"
	"github.com/erp/arap/internal/domain/shared/valueobject"
	"github.com/erp/arap/internal/domain/trade"
	"github.com/erp/arap/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReceivableAllocationService ties customer receipts to sales.
// Every mutation runs in one transaction together with its recompute cascade:
// receipt split, sale payment status, customer credit roll-up.
type ReceivableAllocationService struct {
	serviceSupport
}

// NewReceivableAllocationService creates a new ReceivableAllocationService
func NewReceivableAllocationService(scope TransactionScope, clock shared.Clock, logger *zap.Logger) *ReceivableAllocationService {
	return &ReceivableAllocationService{
		serviceSupport: newServiceSupport(scope, clock, logger.Named("receivable")),
	}
}

// ===================== Receipts =====================

// RecordReceipt records money received from a customer as a pending, unallocated receipt
func (s *ReceivableAllocationService) RecordReceipt(ctx context.Context, actor uuid.UUID, req RecordReceiptRequest) (*ReceiptResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "receivable", "record_receipt")
	defer span.End()

	if err := validateRequest(req); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrCustomerID, req.CustomerID.String(),
		telemetry.SpanAttrAmount, req.Amount.String(),
	)

	now := s.clock.Now()
	receipt, err := finance.NewCustomerPaymentReceive(
		req.ReceiptNumber,
		req.CustomerID,
		req.Amount,
		finance.PaymentMethod(req.PaymentMethod),
		req.ReceiptDate,
		actor,
		now,
	)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	receipt.Reference = req.Reference
	receipt.Notes = req.Notes

	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		_, err := repos.ReceiptRepo().FindByReceiptNumber(ctx, req.ReceiptNumber)
		switch {
		case err == nil:
			return shared.ErrAlreadyExists.WithMessage(fmt.Sprintf("Receipt number %s is already used", req.ReceiptNumber))
		case !errors.Is(err, shared.ErrNotFound):
			return err
		}
		return repos.ReceiptRepo().Save(ctx, receipt)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("receipt recorded",
		zap.String("receipt_number", receipt.ReceiptNumber),
		zap.String("customer_id", receipt.CustomerID.String()),
		zap.String("amount", valueobject.FormatIDR(receipt.TotalAmount)),
	)
	telemetry.SetOK(span)
	return toReceiptResponse(receipt, nil), nil
}

// GetReceipt returns a receipt with its allocations
func (s *ReceivableAllocationService) GetReceipt(ctx context.Context, receiptID uuid.UUID) (*ReceiptResponse, error) {
	var resp *ReceiptResponse
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		receipt, err := repos.ReceiptRepo().FindByID(ctx, receiptID)
		if err != nil {
			return err
		}
		allocs, err := repos.ReceiptAllocationRepo().FindByReceipt(ctx, receiptID)
		if err != nil {
			return err
		}
		resp = toReceiptResponse(receipt, allocs)
		return nil
	})
	return resp, err
}

// VerifyReceipt confirms the money of a pending receipt arrived
func (s *ReceivableAllocationService) VerifyReceipt(ctx context.Context, actor, receiptID uuid.UUID) (*ReceiptResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "receivable", "verify_receipt")
	defer span.End()

	var receipt *finance.CustomerPaymentReceive
	var events []shared.DomainEvent
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		receipt, err = repos.ReceiptRepo().FindByIDForUpdate(ctx, receiptID)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if err := receipt.Verify(actor, now); err != nil {
			return err
		}
		if err := repos.ReceiptRepo().Save(ctx, receipt); err != nil {
			return err
		}
		// Verified money counts toward the customer's paid total.
		credit, err := recomputeCustomerCredit(ctx, repos, receipt.CustomerID, now)
		if err != nil {
			return err
		}
		events = shared.CollectEvents(receipt, credit)
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.logRejected(ctx, finance.SideReceivable, "verify receipt", err)
		return nil, err
	}

	s.publishDomainEvents(ctx, events)
	s.logger.Info("receipt verified", zap.String("receipt_number", receipt.ReceiptNumber))
	telemetry.SetOK(span)
	return toReceiptResponse(receipt, nil), nil
}

// CancelReceipt voids a receipt that has nothing applied. Pending allocations
// drawn from it are cancelled with it.
func (s *ReceivableAllocationService) CancelReceipt(ctx context.Context, actor, receiptID uuid.UUID, reason string) (*ReceiptResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "receivable", "cancel_receipt")
	defer span.End()

	var receipt *finance.CustomerPaymentReceive
	var allocs []*finance.CustomerPaymentAllocation
	var events []shared.DomainEvent
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		receipt, err = repos.ReceiptRepo().FindByIDForUpdate(ctx, receiptID)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		if err := receipt.Cancel(reason, now); err != nil {
			return err
		}
		allocs, err = repos.ReceiptAllocationRepo().FindByReceipt(ctx, receiptID)
		if err != nil {
			return err
		}
		for _, a := range allocs {
			if a.Status != finance.AllocationStatusPending {
				continue
			}
			if _, err := a.Cancel("receipt cancelled", now); err != nil {
				return err
			}
			if err := repos.ReceiptAllocationRepo().Save(ctx, a); err != nil {
				return err
			}
			events = append(events, shared.CollectEvents(a)...)
		}
		if err := repos.ReceiptRepo().Save(ctx, receipt); err != nil {
			return err
		}
		credit, err := recomputeCustomerCredit(ctx, repos, receipt.CustomerID, now)
		if err != nil {
			return err
		}
		events = append(events, shared.CollectEvents(receipt, credit)...)
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.logRejected(ctx, finance.SideReceivable, "cancel receipt", err)
		return nil, err
	}

	s.publishDomainEvents(ctx, events)
	s.logger.Info("receipt cancelled",
		zap.String("receipt_number", receipt.ReceiptNumber),
		zap.String("actor", actor.String()),
		zap.String("reason", reason),
	)
	telemetry.SetOK(span)
	return toReceiptResponse(receipt, allocs), nil
}

// ===================== Allocation =====================

// AllocateToSale applies part of a receipt to one sale. On any rule violation
// nothing is written.
func (s *ReceivableAllocationService) AllocateToSale(ctx context.Context, actor uuid.UUID, req AllocateToSaleRequest) (*AllocationResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "receivable", "allocate_to_sale")
	defer span.End()

	if err := validateRequest(req); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrPaymentID, req.ReceiptID.String(),
		telemetry.SpanAttrDocumentID, req.SaleID.String(),
		telemetry.SpanAttrAmount, req.Amount.String(),
	)

	lines := []finance.ManualLine{{TargetID: req.SaleID, Amount: req.Amount}}
	var result *AllocationResult
	err := s.runIdempotent(ctx, req.IdempotencyKey, func() error {
		var err error
		result, err = s.allocate(ctx, actor, req.ReceiptID, lines, req.Notes)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.logRejected(ctx, finance.SideReceivable, "allocate to sale", err)
		return nil, err
	}
	telemetry.SetOK(span)
	return result, nil
}

// AllocateManual applies a receipt to several named sales at once, all or nothing.
func (s *ReceivableAllocationService) AllocateManual(ctx context.Context, actor uuid.UUID, req ManualAllocationRequest) (*AllocationResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "receivable", "allocate_manual")
	defer span.End()

	if err := validateRequest(req); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrPaymentID, req.PaymentID.String(),
		"line_count", len(req.Lines),
	)

	var result *AllocationResult
	err := s.runIdempotent(ctx, req.IdempotencyKey, func() error {
		var err error
		result, err = s.allocate(ctx, actor, req.PaymentID, toManualLines(req.Lines), "")
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.logRejected(ctx, finance.SideReceivable, "manual allocation", err)
		return nil, err
	}
	telemetry.SetOK(span)
	return result, nil
}

// AutoAllocatePayments spreads the unallocated balance of a receipt across the
// customer's outstanding sales, oldest first. Runs under the customer's
// distributed lock so concurrent batch jobs do not interleave.
func (s *ReceivableAllocationService) AutoAllocatePayments(ctx context.Context, actor, receiptID uuid.UUID) (*AllocationResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "receivable", "auto_allocate")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrPaymentID, receiptID.String())

	customerID, err := s.receiptCustomer(ctx, receiptID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var result *AllocationResult
	err = s.withLock(ctx, receivableLockKey(customerID), func() error {
		var err error
		result, err = s.allocate(ctx, actor, receiptID, nil, "")
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.logRejected(ctx, finance.SideReceivable, "auto allocation", err)
		return nil, err
	}
	telemetry.SetAttributes(span, "allocation_count", len(result.Allocations))
	telemetry.SetOK(span)
	return result, nil
}

// PreviewAutoAllocation returns the waterfall plan for a receipt without writing anything.
func (s *ReceivableAllocationService) PreviewAutoAllocation(ctx context.Context, receiptID uuid.UUID) (*AllocationPreview, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "receivable", "preview_auto_allocation")
	defer span.End()

	var preview *AllocationPreview
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		receipt, err := repos.ReceiptRepo().FindByID(ctx, receiptID)
		if err != nil {
			return err
		}
		if err := receipt.CheckAllocatable(receipt.UnallocatedAmount); err != nil {
			return err
		}
		sales, err := repos.SaleRepo().FindOutstandingByCustomer(ctx, receipt.CustomerID)
		if err != nil {
			return err
		}
		plan, err := finance.NewWaterfallStrategy().Plan(receipt.UnallocatedMoney(), finance.TargetsFromLedger(sales))
		if err != nil {
			return err
		}
		preview = &AllocationPreview{
			PaymentID:            receipt.ID,
			Lines:                plan.Allocations,
			TotalAllocated:       plan.TotalAllocated,
			RemainingUnallocated: plan.RemainingAmount,
			FullyAllocated:       plan.FullyAllocated,
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetOK(span)
	return preview, nil
}

// allocate plans against the receipt's open sales and applies the plan in one
// transaction. Without lines the waterfall runs over every outstanding sale of
// the customer; with lines exactly those amounts go to the named sales.
func (s *ReceivableAllocationService) allocate(
	ctx context.Context,
	actor uuid.UUID,
	receiptID uuid.UUID,
	lines []finance.ManualLine,
	notes string,
) (*AllocationResult, error) {
	var strategy finance.AllocationStrategy = finance.NewWaterfallStrategy()
	var saleIDs []uuid.UUID
	if lines != nil {
		strategy = finance.NewManualStrategy(lines)
		for _, l := range lines {
			saleIDs = append(saleIDs, l.TargetID)
		}
	}

	var result *AllocationResult
	var created []*finance.CustomerPaymentAllocation
	var events []shared.DomainEvent

	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		receipt, err := repos.ReceiptRepo().FindByIDForUpdate(ctx, receiptID)
		if err != nil {
			return err
		}
		if err := receipt.CheckAllocatable(receipt.UnallocatedAmount); err != nil {
			return err
		}

		candidates, err := s.lockCandidateSales(ctx, repos, receipt.CustomerID, saleIDs)
		if err != nil {
			return err
		}
		salesByID := make(map[uuid.UUID]*trade.Sale, len(candidates))
		open := make([]*trade.Sale, 0, len(candidates))
		for _, sale := range candidates {
			salesByID[sale.ID] = sale
			if sale.CustomerID == receipt.CustomerID && sale.IsOutstanding() {
				open = append(open, sale)
			}
		}
		// Named sales get the domain's precise rejection before planning.
		for _, l := range lines {
			if err := receipt.CheckAllocation(salesByID[l.TargetID], l.Amount); err != nil {
				return err
			}
		}

		plan, err := strategy.Plan(receipt.UnallocatedMoney(), finance.TargetsFromLedger(open))
		if err != nil {
			return err
		}

		existing, err := repos.ReceiptAllocationRepo().FindByReceipt(ctx, receipt.ID)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		for _, line := range plan.Allocations {
			sale := salesByID[line.TargetID]
			alloc, err := finance.NewCustomerPaymentAllocation(receipt, sale, line.Amount, actor, now)
			if err != nil {
				return err
			}
			alloc.Notes = notes
			if err := alloc.Apply(&actor, now); err != nil {
				return err
			}
			if err := repos.ReceiptAllocationRepo().Save(ctx, alloc); err != nil {
				return fmt.Errorf("failed to save allocation: %w", err)
			}
			created = append(created, alloc)
			existing = append(existing, alloc)
			// Keep the in-memory split current so the next line is checked against it.
			receipt.UpdateAllocationAmounts(existing, now)

			if err := refreshSale(ctx, repos, sale, now); err != nil {
				return err
			}
		}
		if len(created) == 0 {
			result = &AllocationResult{
				PaymentID:            receipt.ID,
				Allocations:          []AllocationResponse{},
				TotalAllocated:       plan.TotalAllocated,
				RemainingUnallocated: receipt.UnallocatedAmount,
				DocumentsFullyPaid:   plan.TargetsFullyPaid,
			}
			return nil
		}

		if err := refreshReceipt(ctx, repos, receipt, now); err != nil {
			return err
		}
		credit, err := recomputeCustomerCredit(ctx, repos, receipt.CustomerID, now)
		if err != nil {
			return err
		}

		for _, a := range created {
			events = append(events, shared.CollectEvents(a)...)
		}
		events = append(events, shared.CollectEvents(receipt, credit)...)

		result = &AllocationResult{
			PaymentID:            receipt.ID,
			Allocations:          make([]AllocationResponse, 0, len(created)),
			TotalAllocated:       plan.TotalAllocated,
			RemainingUnallocated: receipt.UnallocatedAmount,
			FullyAllocated:       receipt.AllocationStatus == finance.AllocationStateFullyAllocated,
			DocumentsFullyPaid:   plan.TargetsFullyPaid,
		}
		for _, a := range created {
			result.Allocations = append(result.Allocations, toReceivableAllocationResponse(a))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, a := range created {
		s.metrics.RecordAllocationApplied(ctx, finance.SideReceivable, a.AllocatedAmount)
	}
	s.publishDomainEvents(ctx, events)
	s.logger.Info("receipt allocated",
		zap.String("receipt_id", receiptID.String()),
		zap.String("strategy", string(strategy.Type())),
		zap.Int("allocations", len(created)),
		zap.String("total_allocated", valueobject.FormatIDR(result.TotalAllocated)),
		zap.String("remaining", valueobject.FormatIDR(result.RemainingUnallocated)),
	)
	return result, nil
}

// lockCandidateSales locks the named sales, or every outstanding sale of the
// customer when none are named.
func (s *ReceivableAllocationService) lockCandidateSales(ctx context.Context, repos TransactionalRepositories, customerID uuid.UUID, saleIDs []uuid.UUID) ([]*trade.Sale, error) {
	if saleIDs == nil {
		sales, err := repos.SaleRepo().FindOutstandingByCustomerForUpdate(ctx, customerID)
		if err != nil {
			return nil, fmt.Errorf("failed to lock outstanding sales: %w", err)
		}
		return sales, nil
	}
	locked, err := lockSales(ctx, repos, saleIDs)
	if err != nil {
		return nil, err
	}
	sales := make([]*trade.Sale, 0, len(locked))
	for _, id := range sortedIDs(saleIDs) {
		sales = append(sales, locked[id])
	}
	return sales, nil
}

func (s *ReceivableAllocationService) receiptCustomer(ctx context.Context, receiptID uuid.UUID) (uuid.UUID, error) {
	var customerID uuid.UUID
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		receipt, err := repos.ReceiptRepo().FindByID(ctx, receiptID)
		if err != nil {
			return err
		}
		customerID = receipt.CustomerID
		return nil
	})
	return customerID, err
}

// ===================== Release =====================

// ReverseAllocation undoes an applied allocation; the sale gets the amount back.
func (s *ReceivableAllocationService) ReverseAllocation(ctx context.Context, actor uuid.UUID, req ReleaseAllocationRequest) (*AllocationResponse, error) {
	return s.release(ctx, "reverse_allocation", req, func(a *finance.CustomerPaymentAllocation, now time.Time) (bool, error) {
		if err := a.Reverse(actor, req.Reason, now); err != nil {
			return false, err
		}
		return true, nil
	})
}

// CancelAllocation cancels a pending or applied allocation. Cancelling an
// applied allocation runs the same cascade as a reversal.
func (s *ReceivableAllocationService) CancelAllocation(ctx context.Context, actor uuid.UUID, req ReleaseAllocationRequest) (*AllocationResponse, error) {
	return s.release(ctx, "cancel_allocation", req, func(a *finance.CustomerPaymentAllocation, now time.Time) (bool, error) {
		return a.Cancel(req.Reason, now)
	})
}

// DeleteAllocation soft-deletes an allocation. A deleted applied allocation
// leaves the balances the same way a reversal does.
func (s *ReceivableAllocationService) DeleteAllocation(ctx context.Context, actor, allocationID uuid.UUID) error {
	_, err := s.release(ctx, "delete_allocation", ReleaseAllocationRequest{AllocationID: allocationID}, func(a *finance.CustomerPaymentAllocation, now time.Time) (bool, error) {
		return a.SoftDelete(now)
	})
	return err
}

// release applies transition to an allocation under the lock order
// receipt, sale, allocation, then runs the cascade when transition reports
// that an applied amount left the balances.
func (s *ReceivableAllocationService) release(
	ctx context.Context,
	op string,
	req ReleaseAllocationRequest,
	transition func(a *finance.CustomerPaymentAllocation, now time.Time) (bool, error),
) (*AllocationResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "receivable", op)
	defer span.End()

	if err := validateRequest(req); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrAllocationID, req.AllocationID.String())

	var alloc *finance.CustomerPaymentAllocation
	var wasApplied bool
	var events []shared.DomainEvent
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		peek, err := repos.ReceiptAllocationRepo().FindByID(ctx, req.AllocationID)
		if err != nil {
			return err
		}
		receipt, err := repos.ReceiptRepo().FindByIDForUpdate(ctx, peek.PaymentReceiveID)
		if err != nil {
			return err
		}
		sale, err := repos.SaleRepo().FindByIDForUpdate(ctx, peek.SaleID)
		if err != nil {
			return err
		}
		alloc, err = repos.ReceiptAllocationRepo().FindByIDForUpdate(ctx, req.AllocationID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		wasApplied, err = transition(alloc, now)
		if err != nil {
			return err
		}
		if err := repos.ReceiptAllocationRepo().Save(ctx, alloc); err != nil {
			return fmt.Errorf("failed to save allocation: %w", err)
		}
		events = shared.CollectEvents(alloc)
		if !wasApplied {
			return nil
		}

		telemetry.AddEvent(span, "cascade", "receipt_id", receipt.ID.String(), "sale_id", sale.ID.String())
		if err := refreshReceipt(ctx, repos, receipt, now); err != nil {
			return err
		}
		if err := refreshSale(ctx, repos, sale, now); err != nil {
			return err
		}
		credit, err := recomputeCustomerCredit(ctx, repos, receipt.CustomerID, now)
		if err != nil {
			return err
		}
		events = append(events, shared.CollectEvents(receipt, credit)...)
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.logRejected(ctx, finance.SideReceivable, op, err)
		return nil, err
	}

	if wasApplied {
		s.metrics.RecordAllocationReleased(ctx, finance.SideReceivable, alloc.Status, alloc.AllocatedAmount)
	}
	s.publishDomainEvents(ctx, events)
	s.logger.Info("allocation released",
		zap.String("operation", op),
		zap.String("allocation_id", alloc.ID.String()),
		zap.String("status", string(alloc.Status)),
		zap.Bool("was_applied", wasApplied),
	)
	telemetry.SetOK(span)
	resp := toReceivableAllocationResponse(alloc)
	return &resp, nil
}
