package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrAccountNotFound indicates the account does not exist or was soft-deleted.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountDeleted indicates the account exists but is soft-deleted.
	ErrAccountDeleted = errors.New("account deleted")
	// ErrMissingItems indicates a withdrawal request carried no items.
	ErrMissingItems = errors.New("withdrawal requires at least one item")
	// ErrInvalidAmount indicates a credit amount that is zero or negative.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrUnexpectedItems indicates a credit request carrying items.
	ErrUnexpectedItems = errors.New("credit must not carry items")
	// ErrConcurrencyConflict indicates conflicting concurrent updates exhausted retries.
	ErrConcurrencyConflict = errors.New("concurrent update conflict")
	// ErrTimeout indicates the posting deadline expired before commit.
	ErrTimeout = errors.New("transaction timed out")
)

// ItemNotFoundError reports a withdrawal referencing an unregistered UPC.
// Any unresolvable item aborts the whole withdrawal.
type ItemNotFoundError struct {
	UPC string
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("item %q not found", e.UPC)
}

// InsufficientStockError reports a withdrawal requesting more of an item
// than is on hand.
type InsufficientStockError struct {
	UPC       string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q: have %d, want %d", e.UPC, e.Available, e.Requested)
}

// InsufficientFundsError reports a withdrawal whose resolved total exceeds
// the account balance.
type InsufficientFundsError struct {
	Available Money
	Required  Money
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: have %s, need %s", e.Available, e.Required)
}

// PersistenceError wraps a storage failure during the committing phase.
// The atomic unit has been rolled back by the time it is returned.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure in %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
