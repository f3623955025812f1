package finance

import "github.com/erp/arap/internal/domain/shared"

// Allocation rule violations. These are expected outcomes, returned (never
// panicked) by the domain, and matched with errors.Is by code.
var (
	// ErrWrongState: the operation's precondition on status is not met.
	ErrWrongState = shared.NewDomainError("WRONG_STATE", "Operation not allowed in the current status")
	// ErrAlreadyTerminal: the allocation is reversed, cancelled or deleted.
	ErrAlreadyTerminal = shared.NewDomainError("ALREADY_TERMINAL", "Allocation is already in a terminal state")
	// ErrInsufficientUnallocated: the payment does not have enough unallocated balance.
	ErrInsufficientUnallocated = shared.NewDomainError("INSUFFICIENT_UNALLOCATED", "Amount exceeds the unallocated balance of the payment")
	// ErrExceedsLedgerTotal: applying would push the document's applied sum past its total.
	ErrExceedsLedgerTotal = shared.NewDomainError("EXCEEDS_LEDGER_TOTAL", "Amount exceeds the outstanding balance of the document")
	// ErrPartyMismatch: payment and document belong to different customers or suppliers.
	ErrPartyMismatch = shared.NewDomainError("PARTY_MISMATCH", "Payment and document belong to different parties")
	ErrInvalidAmount = shared.NewDomainError("INVALID_AMOUNT", "Amount must be positive")
)
