package finance

import (
	"context"
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

// PayableAllocationService ties supplier payments to purchase orders.
// It mirrors ReceivableAllocationService on the payable side; the cascade
// ends in the supplier balance instead of the customer credit roll-up.
type PayableAllocationService struct {
	serviceSupport
}

// NewPayableAllocationService creates a new PayableAllocationService
func NewPayableAllocationService(scope TransactionScope, clock shared.Clock, logger *zap.Logger) *PayableAllocationService {
	return &PayableAllocationService{
		serviceSupport: newServiceSupport(scope, clock, logger.Named("payable")),
	}
}

// RecordPayment records a pending payment to a supplier
func (s *PayableAllocationService) RecordPayment(ctx context.Context, actor uuid.UUID, req RecordPurchasePaymentRequest) (*PurchasePaymentResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payable", "record_payment")
	defer span.End()

	if err := validateRequest(req); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrSupplierID, req.SupplierID.String(),
		telemetry.SpanAttrAmount, req.Amount.String(),
	)

	payment, err := finance.NewPurchasePayment(
		req.PaymentNumber,
		req.SupplierID,
		req.Amount,
		finance.PaymentMethod(req.PaymentMethod),
		req.PaymentDate,
		actor,
		s.clock.Now(),
	)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	payment.Reference = req.Reference
	payment.Notes = req.Notes

	if err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		return repos.PurchasePaymentRepo().Save(ctx, payment)
	}); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("purchase payment recorded",
		zap.String("payment_number", payment.PaymentNumber),
		zap.String("supplier_id", payment.SupplierID.String()),
		zap.String("amount", valueobject.FormatIDR(payment.Amount)),
	)
	telemetry.SetOK(span)
	return toPurchasePaymentResponse(payment, nil), nil
}

// GetPayment returns a supplier payment with its allocations
func (s *PayableAllocationService) GetPayment(ctx context.Context, paymentID uuid.UUID) (*PurchasePaymentResponse, error) {
	var resp *PurchasePaymentResponse
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		payment, err := repos.PurchasePaymentRepo().FindByID(ctx, paymentID)
		if err != nil {
			return err
		}
		allocs, err := repos.PurchaseAllocationRepo().FindByPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		resp = toPurchasePaymentResponse(payment, allocs)
		return nil
	})
	return resp, err
}

// CompletePayment marks a pending payment as settled with the bank.
// Completed payments count toward the supplier's paid and advance totals.
func (s *PayableAllocationService) CompletePayment(ctx context.Context, actor, paymentID uuid.UUID) (*PurchasePaymentResponse, error) {
	return s.settle(ctx, "complete_payment", actor, paymentID, func(repos TransactionalRepositories, p *finance.PurchasePayment, now time.Time) ([]shared.DomainEvent, error) {
		return nil, p.Complete(now)
	})
}

// FailPayment marks a pending payment as failed. Its allocations are released first.
func (s *PayableAllocationService) FailPayment(ctx context.Context, actor, paymentID uuid.UUID, reason string) (*PurchasePaymentResponse, error) {
	return s.settle(ctx, "fail_payment", actor, paymentID, func(repos TransactionalRepositories, p *finance.PurchasePayment, now time.Time) ([]shared.DomainEvent, error) {
		events, err := s.releaseAll(ctx, repos, p, actor, reason, now)
		if err != nil {
			return nil, err
		}
		return events, p.Fail(reason, now)
	})
}

// CancelPayment voids a pending payment. Its allocations are released first.
func (s *PayableAllocationService) CancelPayment(ctx context.Context, actor, paymentID uuid.UUID, reason string) (*PurchasePaymentResponse, error) {
	return s.settle(ctx, "cancel_payment", actor, paymentID, func(repos TransactionalRepositories, p *finance.PurchasePayment, now time.Time) ([]shared.DomainEvent, error) {
		events, err := s.releaseAll(ctx, repos, p, actor, reason, now)
		if err != nil {
			return nil, err
		}
		return events, p.Cancel(reason, now)
	})
}

// settle runs a status transition of a payment and recomputes the supplier balance.
func (s *PayableAllocationService) settle(
	ctx context.Context,
	op string,
	actor uuid.UUID,
	paymentID uuid.UUID,
	transition func(repos TransactionalRepositories, p *finance.PurchasePayment, now time.Time) ([]shared.DomainEvent, error),
) (*PurchasePaymentResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payable", op)
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrPaymentID, paymentID.String())

	var payment *finance.PurchasePayment
	var events []shared.DomainEvent
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		payment, err = repos.PurchasePaymentRepo().FindByIDForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		released, err := transition(repos, payment, now)
		if err != nil {
			return err
		}
		if err := repos.PurchasePaymentRepo().Save(ctx, payment); err != nil {
			return fmt.Errorf("failed to save payment: %w", err)
		}
		balance, err := recomputeSupplierBalance(ctx, repos, payment.SupplierID, now)
		if err != nil {
			return err
		}
		events = append(released, shared.CollectEvents(payment, balance)...)
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.logRejected(ctx, finance.SidePayable, op, err)
		return nil, err
	}

	s.publishDomainEvents(ctx, events)
	s.logger.Info("purchase payment settled",
		zap.String("payment_number", payment.PaymentNumber),
		zap.String("status", string(payment.Status)),
		zap.String("actor", actor.String()),
	)
	telemetry.SetOK(span)
	return toPurchasePaymentResponse(payment, nil), nil
}

// releaseAll reverses applied allocations and cancels pending ones, then
// refreshes the touched orders and the payment split. The payment is already locked.
func (s *PayableAllocationService) releaseAll(ctx context.Context, repos TransactionalRepositories, payment *finance.PurchasePayment, actor uuid.UUID, reason string, now time.Time) ([]shared.DomainEvent, error) {
	allocs, err := repos.PurchaseAllocationRepo().FindByPayment(ctx, payment.ID)
	if err != nil {
		return nil, err
	}
	var orderIDs []uuid.UUID
	for _, a := range allocs {
		if !a.Status.IsTerminal() {
			orderIDs = append(orderIDs, a.PurchaseOrderID)
		}
	}
	if len(orderIDs) == 0 {
		return nil, nil
	}
	orders, err := lockPurchaseOrders(ctx, repos, orderIDs)
	if err != nil {
		return nil, err
	}

	var events []shared.DomainEvent
	for _, a := range allocs {
		switch a.Status {
		case finance.AllocationStatusApplied:
			if err := a.Reverse(actor, reason, now); err != nil {
				return nil, err
			}
			s.metrics.RecordAllocationReleased(ctx, finance.SidePayable, a.Status, a.AllocatedAmount)
		case finance.AllocationStatusPending:
			if _, err := a.Cancel(reason, now); err != nil {
				return nil, err
			}
		default:
			continue
		}
		if err := repos.PurchaseAllocationRepo().Save(ctx, a); err != nil {
			return nil, fmt.Errorf("failed to save allocation: %w", err)
		}
		events = append(events, shared.CollectEvents(a)...)
	}
	for _, id := range sortedIDs(orderIDs) {
		if err := refreshPurchaseOrder(ctx, repos, orders[id], now); err != nil {
			return nil, err
		}
	}
	payment.UpdatePaymentType(allocs, now)
	return events, nil
}

// AllocateToPurchaseOrder applies part of a supplier payment to one order.
func (s *PayableAllocationService) AllocateToPurchaseOrder(ctx context.Context, actor uuid.UUID, req AllocateToPurchaseOrderRequest) (*AllocationResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payable", "allocate_to_purchase_order")
	defer span.End()

	if err := validateRequest(req); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrPaymentID, req.PaymentID.String(),
		telemetry.SpanAttrDocumentID, req.PurchaseOrderID.String(),
		telemetry.SpanAttrAmount, req.Amount.String(),
	)

	lines := []finance.ManualLine{{TargetID: req.PurchaseOrderID, Amount: req.Amount}}
	var result *AllocationResult
	err := s.runIdempotent(ctx, req.IdempotencyKey, func() error {
		var err error
		result, err = s.allocate(ctx, actor, req.PaymentID, lines, req.Notes)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.logRejected(ctx, finance.SidePayable, "allocate to purchase order", err)
		return nil, err
	}
	telemetry.SetOK(span)
	return result, nil
}

// AllocateManual applies a supplier payment to several named orders at once, all or nothing.
func (s *PayableAllocationService) AllocateManual(ctx context.Context, actor uuid.UUID, req ManualAllocationRequest) (*AllocationResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payable", "allocate_manual")
	defer span.End()

	if err := validateRequest(req); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var result *AllocationResult
	err := s.runIdempotent(ctx, req.IdempotencyKey, func() error {
		var err error
		result, err = s.allocate(ctx, actor, req.PaymentID, toManualLines(req.Lines), "")
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.logRejected(ctx, finance.SidePayable, "manual allocation", err)
		return nil, err
	}
	telemetry.SetOK(span)
	return result, nil
}

// AutoAllocatePurchasePayment spreads the unallocated part of a payment across
// the supplier's outstanding orders, oldest first, under the supplier's lock.
func (s *PayableAllocationService) AutoAllocatePurchasePayment(ctx context.Context, actor, paymentID uuid.UUID) (*AllocationResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payable", "auto_allocate")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrPaymentID, paymentID.String())

	var supplierID uuid.UUID
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		payment, err := repos.PurchasePaymentRepo().FindByID(ctx, paymentID)
		if err != nil {
			return err
		}
		supplierID = payment.SupplierID
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var result *AllocationResult
	err = s.withLock(ctx, payableLockKey(supplierID), func() error {
		var err error
		result, err = s.allocate(ctx, actor, paymentID, nil, "")
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.logRejected(ctx, finance.SidePayable, "auto allocation", err)
		return nil, err
	}
	telemetry.SetOK(span)
	return result, nil
}

// PreviewAutoAllocation returns the waterfall plan for a payment without writing anything.
func (s *PayableAllocationService) PreviewAutoAllocation(ctx context.Context, paymentID uuid.UUID) (*AllocationPreview, error) {
	var preview *AllocationPreview
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		payment, err := repos.PurchasePaymentRepo().FindByID(ctx, paymentID)
		if err != nil {
			return err
		}
		orders, err := repos.PurchaseOrderRepo().FindOutstandingBySupplier(ctx, payment.SupplierID)
		if err != nil {
			return err
		}
		plan, err := finance.NewWaterfallStrategy().Plan(valueobject.NewMoneyIDR(payment.UnallocatedAmount()), finance.TargetsFromLedger(orders))
		if err != nil {
			return err
		}
		preview = &AllocationPreview{
			PaymentID:            payment.ID,
			Lines:                plan.Allocations,
			TotalAllocated:       plan.TotalAllocated,
			RemainingUnallocated: plan.RemainingAmount,
			FullyAllocated:       plan.FullyAllocated,
		}
		return nil
	})
	return preview, err
}

// allocate is the payable twin of ReceivableAllocationService.allocate.
func (s *PayableAllocationService) allocate(ctx context.Context, actor, paymentID uuid.UUID, lines []finance.ManualLine, notes string) (*AllocationResult, error) {
	var strategy finance.AllocationStrategy = finance.NewWaterfallStrategy()
	if lines != nil {
		strategy = finance.NewManualStrategy(lines)
	}

	var result *AllocationResult
	var created []*finance.PurchasePaymentAllocation
	var events []shared.DomainEvent

	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		payment, err := repos.PurchasePaymentRepo().FindByIDForUpdate(ctx, paymentID)
		if err != nil {
			return err
		}

		var candidates []*trade.PurchaseOrder
		if lines == nil {
			candidates, err = repos.PurchaseOrderRepo().FindOutstandingBySupplierForUpdate(ctx, payment.SupplierID)
			if err != nil {
				return fmt.Errorf("failed to lock outstanding orders: %w", err)
			}
		} else {
			ids := make([]uuid.UUID, 0, len(lines))
			for _, l := range lines {
				ids = append(ids, l.TargetID)
			}
			locked, err := lockPurchaseOrders(ctx, repos, ids)
			if err != nil {
				return err
			}
			for _, id := range sortedIDs(ids) {
				candidates = append(candidates, locked[id])
			}
		}

		ordersByID := make(map[uuid.UUID]*trade.PurchaseOrder, len(candidates))
		open := make([]*trade.PurchaseOrder, 0, len(candidates))
		for _, o := range candidates {
			ordersByID[o.ID] = o
			if o.SupplierID == payment.SupplierID && o.IsOutstanding() {
				open = append(open, o)
			}
		}
		for _, l := range lines {
			if err := payment.CheckAllocation(ordersByID[l.TargetID], l.Amount); err != nil {
				return err
			}
		}

		unallocated := payment.UnallocatedAmount()
		if !unallocated.IsPositive() {
			return finance.ErrInsufficientUnallocated.WithMessage(fmt.Sprintf("Payment %s is fully allocated", payment.PaymentNumber))
		}
		plan, err := strategy.Plan(valueobject.NewMoneyIDR(unallocated), finance.TargetsFromLedger(open))
		if err != nil {
			return err
		}

		existing, err := repos.PurchaseAllocationRepo().FindByPayment(ctx, payment.ID)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		for _, line := range plan.Allocations {
			order := ordersByID[line.TargetID]
			alloc, err := finance.NewPurchasePaymentAllocation(payment, order, line.Amount, actor, now)
			if err != nil {
				return err
			}
			alloc.Notes = notes
			if err := alloc.Apply(&actor, now); err != nil {
				return err
			}
			if err := repos.PurchaseAllocationRepo().Save(ctx, alloc); err != nil {
				return fmt.Errorf("failed to save allocation: %w", err)
			}
			created = append(created, alloc)
			existing = append(existing, alloc)
			payment.UpdatePaymentType(existing, now)

			if err := refreshPurchaseOrder(ctx, repos, order, now); err != nil {
				return err
			}
		}

		result = &AllocationResult{
			PaymentID:          payment.ID,
			Allocations:        make([]AllocationResponse, 0, len(created)),
			TotalAllocated:     plan.TotalAllocated,
			DocumentsFullyPaid: plan.TargetsFullyPaid,
		}
		if len(created) > 0 {
			if err := refreshPurchasePayment(ctx, repos, payment, now); err != nil {
				return err
			}
			balance, err := recomputeSupplierBalance(ctx, repos, payment.SupplierID, now)
			if err != nil {
				return err
			}
			for _, a := range created {
				events = append(events, shared.CollectEvents(a)...)
				result.Allocations = append(result.Allocations, toPayableAllocationResponse(a))
			}
			events = append(events, shared.CollectEvents(payment, balance)...)
		}
		result.RemainingUnallocated = payment.UnallocatedAmount()
		result.FullyAllocated = result.RemainingUnallocated.IsZero()
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, a := range created {
		s.metrics.RecordAllocationApplied(ctx, finance.SidePayable, a.AllocatedAmount)
	}
	s.publishDomainEvents(ctx, events)
	s.logger.Info("purchase payment allocated",
		zap.String("payment_id", paymentID.String()),
		zap.String("strategy", string(strategy.Type())),
		zap.Int("allocations", len(created)),
		zap.String("total_allocated", valueobject.FormatIDR(result.TotalAllocated)),
	)
	return result, nil
}

// ReverseAllocation undoes an applied payable allocation.
func (s *PayableAllocationService) ReverseAllocation(ctx context.Context, actor uuid.UUID, req ReleaseAllocationRequest) (*AllocationResponse, error) {
	return s.release(ctx, "reverse_allocation", req, func(a *finance.PurchasePaymentAllocation, now time.Time) (bool, error) {
		if err := a.Reverse(actor, req.Reason, now); err != nil {
			return false, err
		}
		return true, nil
	})
}

// CancelAllocation cancels a pending or applied payable allocation.
func (s *PayableAllocationService) CancelAllocation(ctx context.Context, actor uuid.UUID, req ReleaseAllocationRequest) (*AllocationResponse, error) {
	return s.release(ctx, "cancel_allocation", req, func(a *finance.PurchasePaymentAllocation, now time.Time) (bool, error) {
		return a.Cancel(req.Reason, now)
	})
}

// DeleteAllocation soft-deletes a payable allocation.
func (s *PayableAllocationService) DeleteAllocation(ctx context.Context, actor, allocationID uuid.UUID) error {
	_, err := s.release(ctx, "delete_allocation", ReleaseAllocationRequest{AllocationID: allocationID}, func(a *finance.PurchasePaymentAllocation, now time.Time) (bool, error) {
		return a.SoftDelete(now)
	})
	return err
}

func (s *PayableAllocationService) release(
	ctx context.Context,
	op string,
	req ReleaseAllocationRequest,
	transition func(a *finance.PurchasePaymentAllocation, now time.Time) (bool, error),
) (*AllocationResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payable", op)
	defer span.End()

	if err := validateRequest(req); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrAllocationID, req.AllocationID.String())

	var alloc *finance.PurchasePaymentAllocation
	var wasApplied bool
	var events []shared.DomainEvent
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		peek, err := repos.PurchaseAllocationRepo().FindByID(ctx, req.AllocationID)
		if err != nil {
			return err
		}
		payment, err := repos.PurchasePaymentRepo().FindByIDForUpdate(ctx, peek.PurchasePaymentID)
		if err != nil {
			return err
		}
		order, err := repos.PurchaseOrderRepo().FindByIDForUpdate(ctx, peek.PurchaseOrderID)
		if err != nil {
			return err
		}
		alloc, err = repos.PurchaseAllocationRepo().FindByIDForUpdate(ctx, req.AllocationID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		wasApplied, err = transition(alloc, now)
		if err != nil {
			return err
		}
		if err := repos.PurchaseAllocationRepo().Save(ctx, alloc); err != nil {
			return fmt.Errorf("failed to save allocation: %w", err)
		}
		events = shared.CollectEvents(alloc)
		if !wasApplied {
			return nil
		}

		telemetry.AddEvent(span, "cascade", "payment_id", payment.ID.String(), "order_id", order.ID.String())
		if err := refreshPurchasePayment(ctx, repos, payment, now); err != nil {
			return err
		}
		if err := refreshPurchaseOrder(ctx, repos, order, now); err != nil {
			return err
		}
		balance, err := recomputeSupplierBalance(ctx, repos, payment.SupplierID, now)
		if err != nil {
			return err
		}
		events = append(events, shared.CollectEvents(payment, balance)...)
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.logRejected(ctx, finance.SidePayable, op, err)
		return nil, err
	}

	if wasApplied {
		s.metrics.RecordAllocationReleased(ctx, finance.SidePayable, alloc.Status, alloc.AllocatedAmount)
	}
	s.publishDomainEvents(ctx, events)
	s.logger.Info("allocation released",
		zap.String("operation", op),
		zap.String("allocation_id", alloc.ID.String()),
		zap.String("status", string(alloc.Status)),
		zap.Bool("was_applied", wasApplied),
	)
	telemetry.SetOK(span)
	resp := toPayableAllocationResponse(alloc)
	return &resp, nil
}
