package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"accountledger/internal/model"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	// ErrNegativeBalance rejects a balance write that would take the
	// account below zero; it fails the enclosing transaction.
	ErrNegativeBalance = errors.New("balance must not go negative")
	// ErrDuplicateEntry signals that a ledger entry with the same
	// (tx_id, direction) already exists.
	ErrDuplicateEntry = errors.New("ledger entry already exists for tx and direction")
	// ErrLockTimeout is returned when a row lock could not be acquired
	// within the configured wait; callers may retry with the same
	// request id.
	ErrLockTimeout = errors.New("timed out waiting for account lock")
)

// AccountFilter narrows ListAccounts.
type AccountFilter struct {
	Status model.AccountStatus
	Type   model.AccountType
	Offset int
	Limit  int
}

// EntryFilter narrows ListEntries. Zero-value fields are ignored.
type EntryFilter struct {
	FromDate  *time.Time
	ToDate    *time.Time
	MinAmount *decimal.Decimal
	MaxAmount *decimal.Decimal
	Direction model.Direction
	Offset    int
	Limit     int
}

// Tx is the handle passed to the function run by Atomically. All
// mutations of accounts and ledger entries happen through it, inside
// a single transaction.
type Tx interface {
	// LockAccounts acquires exclusive row locks on every given account
	// for the duration of the transaction. Locks are always taken in
	// ascending lexicographic order of the id string, regardless of
	// the order ids are passed in, so that concurrent transfers over
	// the same pair can never lock in reverse order.
	LockAccounts(ctx context.Context, ids ...uuid.UUID) (map[uuid.UUID]*model.Account, error)
	// UpdateBalance writes the new balance within the transaction.
	// Negative balances are rejected with ErrNegativeBalance.
	UpdateBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error
	// AppendEntry inserts a ledger entry. Insert-only; a duplicate
	// (tx_id, direction) pair returns ErrDuplicateEntry.
	AppendEntry(ctx context.Context, entry *model.LedgerEntry) error
	// EntriesByTx reads committed entries for an idempotency re-check
	// under the row locks.
	EntriesByTx(ctx context.Context, txID uuid.UUID) ([]model.LedgerEntry, error)
}

// Store is the persistence contract for accounts and ledger entries.
type Store interface {
	// Atomically runs fn inside one transaction. If fn returns an
	// error the transaction is rolled back and nothing is visible.
	Atomically(ctx context.Context, fn func(tx Tx) error) error

	CreateAccount(ctx context.Context, account *model.Account) error
	GetAccount(ctx context.Context, id uuid.UUID) (*model.Account, error)
	ListAccounts(ctx context.Context, filter AccountFilter) ([]model.Account, error)
	UpdateAccountStatus(ctx context.Context, id uuid.UUID, status model.AccountStatus, closedAt *time.Time) error

	EntriesByTx(ctx context.Context, txID uuid.UUID) ([]model.LedgerEntry, error)
	ListEntries(ctx context.Context, accountID uuid.UUID, filter EntryFilter) ([]model.LedgerEntry, error)
}
