// Package memory implements storage.Store without a database. It is
// used for local runs and for the service tests; it keeps the same
// locking discipline as the Postgres backend: exclusive per-account
// locks taken in ascending id order, all writes staged until the
// transaction function returns nil.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"accountledger/internal/model"
	"accountledger/internal/storage"
)

type Store struct {
	mu        sync.RWMutex
	accounts  map[uuid.UUID]*model.Account
	entries   []model.LedgerEntry
	entryKeys map[string]struct{}

	locksMu  sync.Mutex
	rowLocks map[uuid.UUID]*sync.Mutex
}

func New() *Store {
	return &Store{
		accounts:  make(map[uuid.UUID]*model.Account),
		entryKeys: make(map[string]struct{}),
		rowLocks:  make(map[uuid.UUID]*sync.Mutex),
	}
}

func entryKey(txID uuid.UUID, direction model.Direction) string {
	return txID.String() + "|" + string(direction)
}

func (s *Store) rowLock(id uuid.UUID) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.rowLocks[id]
	if !ok {
		l = &sync.Mutex{}
		s.rowLocks[id] = l
	}
	return l
}

func (s *Store) Atomically(ctx context.Context, fn func(tx storage.Tx) error) error {
	tx := &Tx{
		store:    s,
		balances: make(map[uuid.UUID]decimal.Decimal),
	}
	defer tx.release()

	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (s *Store) CreateAccount(ctx context.Context, account *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *account
	s.accounts[cp.ID] = &cp
	return nil
}

func (s *Store) GetAccount(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[id]
	if !ok {
		return nil, storage.ErrAccountNotFound
	}
	cp := *account
	return &cp, nil
}

func (s *Store) ListAccounts(ctx context.Context, filter storage.AccountFilter) ([]model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var accounts []model.Account
	for _, account := range s.accounts {
		if filter.Status != "" && account.Status != filter.Status {
			continue
		}
		if filter.Type != "" && account.Type != filter.Type {
			continue
		}
		accounts = append(accounts, *account)
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].OpenedAt.Before(accounts[j].OpenedAt)
	})
	return paginate(accounts, filter.Offset, filter.Limit), nil
}

func (s *Store) UpdateAccountStatus(ctx context.Context, id uuid.UUID, status model.AccountStatus, closedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok {
		return storage.ErrAccountNotFound
	}
	account.Status = status
	if closedAt != nil {
		t := *closedAt
		account.ClosedAt = &t
	}
	account.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) EntriesByTx(ctx context.Context, txID uuid.UUID) ([]model.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entriesByTxLocked(txID), nil
}

func (s *Store) entriesByTxLocked(txID uuid.UUID) []model.LedgerEntry {
	var entries []model.LedgerEntry
	for _, entry := range s.entries {
		if entry.TxID == txID {
			entries = append(entries, entry)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Direction < entries[j].Direction
	})
	return entries
}

func (s *Store) ListEntries(ctx context.Context, accountID uuid.UUID, filter storage.EntryFilter) ([]model.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []model.LedgerEntry
	for _, entry := range s.entries {
		if entry.AccountID != accountID {
			continue
		}
		if filter.FromDate != nil && entry.CreatedAt.Before(*filter.FromDate) {
			continue
		}
		if filter.ToDate != nil && entry.CreatedAt.After(*filter.ToDate) {
			continue
		}
		if filter.MinAmount != nil && entry.Amount.LessThan(*filter.MinAmount) {
			continue
		}
		if filter.MaxAmount != nil && entry.Amount.GreaterThan(*filter.MaxAmount) {
			continue
		}
		if filter.Direction != "" && entry.Direction != filter.Direction {
			continue
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return paginate(entries, filter.Offset, filter.Limit), nil
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
