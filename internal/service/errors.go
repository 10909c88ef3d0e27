package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientFunds is a permanent business rejection; nothing
	// was mutated.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrConflict means a concurrent mutation raced in between the
	// idempotency check and the ledger insert. Retryable.
	ErrConflict = errors.New("concurrent update conflict, retry the request")
)

// ValidationError is a non-retryable rejection of the request itself.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// NotActiveError rejects a transfer whose origin or destination
// account is BLOCKED or CLOSED.
type NotActiveError struct {
	Role   string
	Status string
}

func (e *NotActiveError) Error() string {
	return fmt.Sprintf("%s account is not ACTIVE (status=%s)", e.Role, e.Status)
}

// CurrencyMismatchError rejects a transfer whose source, destination
// and requested currencies do not all match.
type CurrencyMismatchError struct {
	From      string
	To        string
	Requested string
}

func (e *CurrencyMismatchError) Error() string {
	return fmt.Sprintf("currency mismatch (from=%s, to=%s, req=%s)", e.From, e.To, e.Requested)
}

// StorageError wraps infrastructure failures (transaction, lock
// timeout, unreachable collaborator). Retryable: idempotency makes
// resubmitting the same request safe.
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure: %v", e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
