package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/arap/internal/domain/finance"
	"github.com/erp/arap/internal/domain/shared"
	"github.com/erp/arap/internal/domain/shared/valueobject"
	"github.com/erp/arap/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ScheduleService manages customer installment plans. Schedules track
// payments on their own and never touch allocations or sales.
type ScheduleService struct {
	serviceSupport
}

// NewScheduleService creates a new ScheduleService
func NewScheduleService(scope TransactionScope, clock shared.Clock, logger *zap.Logger) *ScheduleService {
	return &ScheduleService{
		serviceSupport: newServiceSupport(scope, clock, logger.Named("schedule")),
	}
}

// Create opens an installment plan, optionally tied to one of the customer's sales.
func (s *ScheduleService) Create(ctx context.Context, actor uuid.UUID, req CreateScheduleRequest) (*ScheduleResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "schedule", "create")
	defer span.End()

	if err := validateRequest(req); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrCustomerID, req.CustomerID.String(),
		telemetry.SpanAttrAmount, req.TotalAmount.String(),
	)

	var schedule *finance.CustomerPaymentSchedule
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if req.SaleID != nil {
			sale, err := repos.SaleRepo().FindByID(ctx, *req.SaleID)
			if err != nil {
				return err
			}
			if sale.CustomerID != req.CustomerID {
				return finance.ErrPartyMismatch.WithMessage(fmt.Sprintf("Sale %s does not belong to the customer", sale.InvoiceNumber))
			}
		}

		var err error
		schedule, err = finance.NewCustomerPaymentSchedule(req.CustomerID, req.SaleID, finance.ScheduleTerms{
			TotalAmount:       req.TotalAmount,
			TotalInstallments: req.TotalInstallments,
			Frequency:         finance.Frequency(req.Frequency),
			CustomDays:        req.CustomDays,
			FirstPaymentDate:  req.FirstPaymentDate,
			GracePeriodDays:   req.GracePeriodDays,
			LateFeePercentage: req.LateFeePercentage,
			LateFeeAmount:     req.LateFeeAmount,
		}, actor, s.clock.Now())
		if err != nil {
			return err
		}
		return repos.ScheduleRepo().Save(ctx, schedule)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("payment schedule created",
		zap.String("schedule_id", schedule.ID.String()),
		zap.String("customer_id", schedule.CustomerID.String()),
		zap.String("total", valueobject.FormatIDR(schedule.TotalAmount)),
		zap.Int("installments", schedule.TotalInstallments),
	)
	telemetry.SetOK(span)
	resp := toScheduleResponse(schedule)
	return &resp, nil
}

// RecordPayment records one installment and returns the late fee charged, if any.
func (s *ScheduleService) RecordPayment(ctx context.Context, req RecordSchedulePaymentRequest) (*SchedulePaymentResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "schedule", "record_payment")
	defer span.End()

	if err := validateRequest(req); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrScheduleID, req.ScheduleID.String(),
		telemetry.SpanAttrAmount, req.Amount.String(),
	)

	var result *SchedulePaymentResult
	var events []shared.DomainEvent
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		schedule, err := repos.ScheduleRepo().FindByIDForUpdate(ctx, req.ScheduleID)
		if err != nil {
			return err
		}
		fee, err := schedule.ProcessPayment(req.Amount, req.Reference, s.clock.Now())
		if err != nil {
			return err
		}
		if err := repos.ScheduleRepo().Save(ctx, schedule); err != nil {
			return fmt.Errorf("failed to save schedule: %w", err)
		}
		events = shared.CollectEvents(schedule)
		result = &SchedulePaymentResult{Schedule: toScheduleResponse(schedule), LateFee: fee}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.publishDomainEvents(ctx, events)
	if result.LateFee.IsPositive() {
		s.logger.Warn("late installment",
			zap.String("schedule_id", req.ScheduleID.String()),
			zap.String("late_fee", valueobject.FormatIDR(result.LateFee)),
		)
	}
	telemetry.SetOK(span)
	return result, nil
}

// Suspend pauses an active schedule
func (s *ScheduleService) Suspend(ctx context.Context, scheduleID uuid.UUID, reason string) (*ScheduleResponse, error) {
	return s.transition(ctx, "suspend", scheduleID, func(sc *finance.CustomerPaymentSchedule, now time.Time) error {
		return sc.Suspend(reason, now)
	})
}

// Resume reactivates a suspended schedule
func (s *ScheduleService) Resume(ctx context.Context, scheduleID uuid.UUID) (*ScheduleResponse, error) {
	return s.transition(ctx, "resume", scheduleID, func(sc *finance.CustomerPaymentSchedule, now time.Time) error {
		return sc.Resume(now)
	})
}

// Cancel stops a schedule for good
func (s *ScheduleService) Cancel(ctx context.Context, scheduleID uuid.UUID, reason string) (*ScheduleResponse, error) {
	return s.transition(ctx, "cancel", scheduleID, func(sc *finance.CustomerPaymentSchedule, now time.Time) error {
		return sc.Cancel(reason, now)
	})
}

// MarkDefaulted closes a schedule the customer stopped paying
func (s *ScheduleService) MarkDefaulted(ctx context.Context, scheduleID uuid.UUID, reason string) (*ScheduleResponse, error) {
	return s.transition(ctx, "mark_defaulted", scheduleID, func(sc *finance.CustomerPaymentSchedule, now time.Time) error {
		return sc.MarkDefaulted(reason, now)
	})
}

func (s *ScheduleService) transition(ctx context.Context, op string, scheduleID uuid.UUID, fn func(sc *finance.CustomerPaymentSchedule, now time.Time) error) (*ScheduleResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "schedule", op)
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrScheduleID, scheduleID.String())

	var schedule *finance.CustomerPaymentSchedule
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		schedule, err = repos.ScheduleRepo().FindByIDForUpdate(ctx, scheduleID)
		if err != nil {
			return err
		}
		if err := fn(schedule, s.clock.Now()); err != nil {
			return err
		}
		return repos.ScheduleRepo().Save(ctx, schedule)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("payment schedule "+op,
		zap.String("schedule_id", scheduleID.String()),
		zap.String("status", string(schedule.Status)),
	)
	telemetry.SetOK(span)
	resp := toScheduleResponse(schedule)
	return &resp, nil
}

// Get returns a schedule by ID
func (s *ScheduleService) Get(ctx context.Context, scheduleID uuid.UUID) (*ScheduleResponse, error) {
	var resp *ScheduleResponse
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		schedule, err := repos.ScheduleRepo().FindByID(ctx, scheduleID)
		if err != nil {
			return err
		}
		r := toScheduleResponse(schedule)
		resp = &r
		return nil
	})
	return resp, err
}

// ListOverdue returns the customer's active schedules whose next installment is past due
func (s *ScheduleService) ListOverdue(ctx context.Context, customerID uuid.UUID) ([]ScheduleResponse, error) {
	var out []ScheduleResponse
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		schedules, err := repos.ScheduleRepo().FindActiveByCustomer(ctx, customerID)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		for _, sc := range schedules {
			if sc.IsOverdue(now) {
				out = append(out, toScheduleResponse(sc))
			}
		}
		return nil
	})
	return out, err
}
