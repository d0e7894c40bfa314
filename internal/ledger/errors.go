package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Sentinel errors for use with errors.Is(). The structured types below
// wrap these so callers can branch on category without losing detail.
var (
	// ErrInvalidAmount is returned when a procedure is invoked with a
	// zero or negative amount.
	ErrInvalidAmount = errors.New("amount must be greater than zero")

	// ErrInsufficientBalance is returned when a reservation exceeds the
	// available balance. Nothing is mutated.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidStatusTransition is returned when the requested transition
	// is not legal or the recorded state no longer matches oldStatus.
	// Nothing is mutated.
	ErrInvalidStatusTransition = errors.New("invalid status transition")

	// ErrDuplicateTransaction is returned when a ledger row already exists
	// for the same reference and type. This is expected behavior for
	// caller retries.
	ErrDuplicateTransaction = errors.New("duplicate transaction for reference")
)

// InsufficientBalanceError reports how short the account is.
type InsufficientBalanceError struct {
	UserID    string
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for user %s: available %s, requested %s",
		e.UserID, e.Available.String(), e.Requested.String())
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// InvalidStatusTransitionError reports a rejected state change. It is a
// structured failure, not an infrastructure fault, so callers can tell
// "nothing happened" apart from "the database broke".
type InvalidStatusTransitionError struct {
	ReferenceID string
	OldStatus   string
	NewStatus   string
	Reason      string
}

func (e *InvalidStatusTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition for %s: %s -> %s (%s)",
		e.ReferenceID, e.OldStatus, e.NewStatus, e.Reason)
}

func (e *InvalidStatusTransitionError) Unwrap() error {
	return ErrInvalidStatusTransition
}

// DatabaseError wraps a storage fault with the operation it interrupted.
// Every failure path rolls back, so the caller may retry if the operation
// is guarded by a stable reference ID.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database error during %s: %v", e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error {
	return e.Err
}

// IsClientError returns true if the error is a business-rule rejection
// rather than an infrastructure fault.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInvalidStatusTransition) ||
		errors.Is(err, ErrDuplicateTransaction)
}
