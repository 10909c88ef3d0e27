package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"accountledger/internal/model"
	"accountledger/internal/storage"
)

// ErrAccountClosed guards the read path: closed accounts keep their
// history but are no longer queryable.
var ErrAccountClosed = errors.New("account is closed and cannot be queried")

// LedgerService is the read side of the ledger: chronological entry
// history with optional date, amount and direction filters.
type LedgerService struct {
	store storage.Store
}

func NewLedgerService(store storage.Store) *LedgerService {
	return &LedgerService{store: store}
}

func (s *LedgerService) List(ctx context.Context, accountID uuid.UUID, filter storage.EntryFilter) ([]model.LedgerEntry, error) {
	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			return nil, err
		}
		return nil, &StorageError{Err: err}
	}
	if account.Status == model.AccountStatusClosed {
		return nil, ErrAccountClosed
	}

	if filter.FromDate != nil && filter.ToDate != nil && filter.FromDate.After(*filter.ToDate) {
		return nil, &ValidationError{Reason: "invalid date range: from_date must be <= to_date"}
	}

	entries, err := s.store.ListEntries(ctx, accountID, filter)
	if err != nil {
		return nil, &StorageError{Err: err}
	}
	return entries, nil
}

// EntriesByTx exposes the audit view of one transfer: the DEBIT and
// CREDIT pair recorded under a tx id.
func (s *LedgerService) EntriesByTx(ctx context.Context, txID uuid.UUID) ([]model.LedgerEntry, error) {
	entries, err := s.store.EntriesByTx(ctx, txID)
	if err != nil {
		return nil, &StorageError{Err: err}
	}
	return entries, nil
}
