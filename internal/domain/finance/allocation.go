package finance

import (
	"fmt"
	"time"

	"github.com/erp/arap/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AllocationStatus represents the lifecycle state of an allocation
type AllocationStatus string

const (
	AllocationStatusPending   AllocationStatus = "pending"
	AllocationStatusApplied   AllocationStatus = "applied"
	AllocationStatusReversed  AllocationStatus = "reversed"
	AllocationStatusCancelled AllocationStatus = "cancelled"
)

// IsValid checks if the status is valid
func (s AllocationStatus) IsValid() bool {
	switch s {
	case AllocationStatusPending, AllocationStatusApplied, AllocationStatusReversed, AllocationStatusCancelled:
		return true
	}
	return false
}

// IsTerminal returns true for reversed and cancelled
func (s AllocationStatus) IsTerminal() bool {
	return s == AllocationStatusReversed || s == AllocationStatusCancelled
}

func (s AllocationStatus) String() string {
	return string(s)
}

// AllocationLifecycle is the state machine shared by receivable and payable allocations:
//
//	pending -> applied -> reversed
//	pending|applied -> cancelled
//
// Transitions only mutate the allocation row. Recomputing the payment split,
// the document status and the balance aggregate is the caller's job, and must
// happen whenever a transition reports that an applied amount left the active set.
type AllocationLifecycle struct {
	AllocatedAmount    decimal.Decimal
	Status             AllocationStatus
	AppliedAt          *time.Time
	ApprovedBy         *uuid.UUID
	ApprovedAt         *time.Time
	ReversedBy         *uuid.UUID
	ReversedAt         *time.Time
	ReversalReason     string
	CancelledAt        *time.Time
	CancellationReason string
	DeletedAt          *time.Time
}

func newAllocationLifecycle(amount decimal.Decimal) AllocationLifecycle {
	return AllocationLifecycle{
		AllocatedAmount: valueobject.Round(amount),
		Status:          AllocationStatusPending,
	}
}

// GetAllocatedAmount returns the allocated amount
func (l *AllocationLifecycle) GetAllocatedAmount() decimal.Decimal {
	return l.AllocatedAmount
}

// CountsTowardBalance reports whether the allocation is part of the applied sums.
func (l *AllocationLifecycle) CountsTowardBalance() bool {
	return l.Status == AllocationStatusApplied && l.DeletedAt == nil
}

// IsDeleted reports whether the row was soft-deleted
func (l *AllocationLifecycle) IsDeleted() bool {
	return l.DeletedAt != nil
}

func (l *AllocationLifecycle) require(allowed ...AllocationStatus) error {
	if l.DeletedAt != nil {
		return ErrAlreadyTerminal.WithMessage("Allocation has been deleted")
	}
	if l.Status.IsTerminal() {
		return ErrAlreadyTerminal.WithMessage(fmt.Sprintf("Allocation is already %s", l.Status))
	}
	for _, s := range allowed {
		if l.Status == s {
			return nil
		}
	}
	return ErrWrongState.WithMessage(fmt.Sprintf("Allocation is %s, expected one of %v", l.Status, allowed))
}

func (l *AllocationLifecycle) apply(approver *uuid.UUID, now time.Time) error {
	if err := l.require(AllocationStatusPending); err != nil {
		return err
	}
	l.Status = AllocationStatusApplied
	appliedAt := now
	l.AppliedAt = &appliedAt
	if approver != nil && *approver != uuid.Nil {
		approvedBy := *approver
		approvedAt := now
		l.ApprovedBy = &approvedBy
		l.ApprovedAt = &approvedAt
	}
	return nil
}

func (l *AllocationLifecycle) reverse(reversedBy uuid.UUID, reason string, now time.Time) error {
	if err := l.require(AllocationStatusApplied); err != nil {
		return err
	}
	l.Status = AllocationStatusReversed
	by := reversedBy
	at := now
	l.ReversedBy = &by
	l.ReversedAt = &at
	l.ReversalReason = reason
	return nil
}

// cancel returns whether the allocation was applied before cancellation.
func (l *AllocationLifecycle) cancel(reason string, now time.Time) (bool, error) {
	if err := l.require(AllocationStatusPending, AllocationStatusApplied); err != nil {
		return false, err
	}
	wasApplied := l.Status == AllocationStatusApplied
	l.Status = AllocationStatusCancelled
	at := now
	l.CancelledAt = &at
	l.CancellationReason = reason
	return wasApplied, nil
}

// softDelete removes the row from the active set. Terminal rows may be deleted;
// deleting twice is rejected. Returns whether the row was counting toward balances.
func (l *AllocationLifecycle) softDelete(now time.Time) (bool, error) {
	if l.DeletedAt != nil {
		return false, ErrAlreadyTerminal.WithMessage("Allocation has already been deleted")
	}
	wasApplied := l.CountsTowardBalance()
	at := now
	l.DeletedAt = &at
	return wasApplied, nil
}

type appliedAmount interface {
	CountsTowardBalance() bool
	GetAllocatedAmount() decimal.Decimal
}

// SumApplied totals the applied, non-deleted allocations.
func SumApplied[A appliedAmount](allocs []A) decimal.Decimal {
	total := decimal.Zero
	for _, a := range allocs {
		if a.CountsTowardBalance() {
			total = total.Add(a.GetAllocatedAmount())
		}
	}
	return total
}

// checkCapacity validates amount, at money scale, against the payment's
// unallocated balance and the document's outstanding balance.
func checkCapacity(amount, unallocated, outstanding decimal.Decimal) error {
	amount = valueobject.Round(amount)
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	if amount.GreaterThan(unallocated) {
		return ErrInsufficientUnallocated.WithMessage(fmt.Sprintf("Amount %s exceeds unallocated balance %s", amount.StringFixed(2), unallocated.StringFixed(2)))
	}
	if amount.GreaterThan(outstanding) {
		return ErrExceedsLedgerTotal.WithMessage(fmt.Sprintf("Amount %s exceeds outstanding balance %s", amount.StringFixed(2), outstanding.StringFixed(2)))
	}
	return nil
}
