package finance

import (
	"fmt"
	"sort"
	"time"

	"github.com/erp/arap/internal/domain/shared/valueobject"
	"github.com/erp/arap/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StrategyType defines how a payment is spread across documents
type StrategyType string

const (
	StrategyTypeWaterfall StrategyType = "fifo"   // oldest debt first
	StrategyTypeManual    StrategyType = "manual" // caller names the documents and amounts
)

// IsValid checks if the strategy type is valid
func (t StrategyType) IsValid() bool {
	return t == StrategyTypeWaterfall || t == StrategyTypeManual
}

// AllocationTarget is one open document the strategy may allocate to.
// Sequence preserves the repository's row order for the final tie-break.
type AllocationTarget struct {
	ID                uuid.UUID
	Number            string
	OutstandingAmount decimal.Decimal
	DueDate           *time.Time
	DocumentDate      time.Time
	Sequence          int
}

// PlannedAllocation is a single line of a plan
type PlannedAllocation struct {
	TargetID     uuid.UUID
	TargetNumber string
	Amount       decimal.Decimal
}

// AllocationPlan is the outcome of a strategy run. Nothing is written until
// the plan is executed by the application layer.
type AllocationPlan struct {
	Allocations          []PlannedAllocation
	TotalAllocated       decimal.Decimal
	RemainingAmount      decimal.Decimal
	FullyAllocated       bool
	TargetsFullyPaid     []uuid.UUID
	TargetsPartiallyPaid []uuid.UUID
}

func emptyPlan(amount decimal.Decimal) *AllocationPlan {
	return &AllocationPlan{
		Allocations:          make([]PlannedAllocation, 0),
		TotalAllocated:       decimal.Zero,
		RemainingAmount:      amount,
		TargetsFullyPaid:     make([]uuid.UUID, 0),
		TargetsPartiallyPaid: make([]uuid.UUID, 0),
	}
}

func (p *AllocationPlan) add(target AllocationTarget, amount decimal.Decimal) {
	p.Allocations = append(p.Allocations, PlannedAllocation{
		TargetID:     target.ID,
		TargetNumber: target.Number,
		Amount:       amount,
	})
	p.TotalAllocated = p.TotalAllocated.Add(amount)
	p.RemainingAmount = p.RemainingAmount.Sub(amount)
	if amount.GreaterThanOrEqual(target.OutstandingAmount) {
		p.TargetsFullyPaid = append(p.TargetsFullyPaid, target.ID)
	} else {
		p.TargetsPartiallyPaid = append(p.TargetsPartiallyPaid, target.ID)
	}
	p.FullyAllocated = p.RemainingAmount.IsZero()
}

// AllocationStrategy plans how amount is spread across targets
type AllocationStrategy interface {
	Type() StrategyType
	Plan(amount valueobject.Money, targets []AllocationTarget) (*AllocationPlan, error)
}

// WaterfallStrategy is a single-pass greedy oldest-first allocation:
// due date ascending with undated documents last, then document date, then
// row order. Each document takes min(remaining, outstanding); there is no
// backtracking, so a later document is never touched while an earlier one
// is still under-allocated.
type WaterfallStrategy struct{}

// NewWaterfallStrategy creates the oldest-first strategy
func NewWaterfallStrategy() *WaterfallStrategy {
	return &WaterfallStrategy{}
}

func (s *WaterfallStrategy) Type() StrategyType {
	return StrategyTypeWaterfall
}

// Plan allocates amount across targets oldest first
func (s *WaterfallStrategy) Plan(amount valueobject.Money, targets []AllocationTarget) (*AllocationPlan, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	plan := emptyPlan(amount.Amount())

	ordered := make([]AllocationTarget, len(targets))
	copy(ordered, targets)
	SortWaterfall(ordered)

	for _, target := range ordered {
		if plan.RemainingAmount.IsZero() {
			break
		}
		if target.OutstandingAmount.LessThanOrEqual(decimal.Zero) {
			continue
		}
		plan.add(target, decimal.Min(plan.RemainingAmount, target.OutstandingAmount))
	}
	return plan, nil
}

// SortWaterfall orders targets in place by due date (nil last), document date, then sequence.
func SortWaterfall(targets []AllocationTarget) {
	sort.SliceStable(targets, func(i, j int) bool {
		a, b := targets[i], targets[j]
		switch {
		case a.DueDate != nil && b.DueDate != nil:
			if !a.DueDate.Equal(*b.DueDate) {
				return a.DueDate.Before(*b.DueDate)
			}
		case a.DueDate != nil:
			return true
		case b.DueDate != nil:
			return false
		}
		if !a.DocumentDate.Equal(b.DocumentDate) {
			return a.DocumentDate.Before(b.DocumentDate)
		}
		return a.Sequence < b.Sequence
	})
}

// ManualLine requests a specific amount for a specific document
type ManualLine struct {
	TargetID uuid.UUID
	Amount   decimal.Decimal
}

// ManualStrategy allocates exactly the requested lines or nothing at all.
type ManualStrategy struct {
	lines []ManualLine
}

// NewManualStrategy creates a strategy for the given lines
func NewManualStrategy(lines []ManualLine) *ManualStrategy {
	return &ManualStrategy{lines: lines}
}

func (s *ManualStrategy) Type() StrategyType {
	return StrategyTypeManual
}

// Plan validates every line before producing any allocation.
func (s *ManualStrategy) Plan(amount valueobject.Money, targets []AllocationTarget) (*AllocationPlan, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if len(s.lines) == 0 {
		return nil, ErrInvalidAmount.WithMessage("At least one allocation line is required")
	}
	byID := make(map[uuid.UUID]AllocationTarget, len(targets))
	for _, t := range targets {
		byID[t.ID] = t
	}

	requested := make(map[uuid.UUID]decimal.Decimal, len(s.lines))
	total := decimal.Zero
	lines := make([]ManualLine, len(s.lines))
	for i, line := range s.lines {
		line.Amount = valueobject.Round(line.Amount)
		if line.Amount.LessThanOrEqual(decimal.Zero) {
			return nil, ErrInvalidAmount.WithMessage(fmt.Sprintf("Amount for %s rounds to zero or less", line.TargetID))
		}
		lines[i] = line
		target, ok := byID[line.TargetID]
		if !ok {
			return nil, ErrPartyMismatch.WithMessage(fmt.Sprintf("Document %s is not an open document of this party", line.TargetID))
		}
		sum := requested[line.TargetID].Add(line.Amount)
		if sum.GreaterThan(target.OutstandingAmount) {
			return nil, ErrExceedsLedgerTotal.WithMessage(fmt.Sprintf("Amount %s exceeds outstanding balance %s of %s",
				sum.StringFixed(2), target.OutstandingAmount.StringFixed(2), target.Number))
		}
		requested[line.TargetID] = sum
		total = total.Add(line.Amount)
	}
	if total.GreaterThan(amount.Amount()) {
		return nil, ErrInsufficientUnallocated.WithMessage(fmt.Sprintf("Requested %s exceeds unallocated balance %s",
			total.StringFixed(2), amount.Amount().StringFixed(2)))
	}

	plan := emptyPlan(amount.Amount())
	for _, line := range lines {
		plan.add(byID[line.TargetID], line.Amount)
	}
	return plan, nil
}

// NewAllocationStrategy returns the strategy for t. Manual strategies need lines.
func NewAllocationStrategy(t StrategyType, lines []ManualLine) (AllocationStrategy, error) {
	switch t {
	case StrategyTypeWaterfall:
		return NewWaterfallStrategy(), nil
	case StrategyTypeManual:
		return NewManualStrategy(lines), nil
	}
	return nil, fmt.Errorf("unknown allocation strategy %q", t)
}

// TargetsFromLedger converts open documents to allocation targets, keeping their order as Sequence.
func TargetsFromLedger[E trade.LedgerEntity](entities []E) []AllocationTarget {
	targets := make([]AllocationTarget, 0, len(entities))
	for i, e := range entities {
		targets = append(targets, AllocationTarget{
			ID:                e.GetID(),
			Number:            e.DocumentNumber(),
			OutstandingAmount: e.GetOutstandingAmount(),
			DueDate:           e.GetDueDate(),
			DocumentDate:      e.DocumentDate(),
			Sequence:          i,
		})
	}
	return targets
}
