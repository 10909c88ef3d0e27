package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"accountledger/internal/model"
	"accountledger/internal/storage"
)

// Tx stages writes against the store. Nothing is visible to other
// transactions until commit; release drops the row locks whether or
// not the transaction committed.
type Tx struct {
	store    *Store
	locked   []uuid.UUID
	balances map[uuid.UUID]decimal.Decimal
	staged   []model.LedgerEntry
}

func (t *Tx) LockAccounts(ctx context.Context, ids ...uuid.UUID) (map[uuid.UUID]*model.Account, error) {
	ordered := dedupe(ids)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].String() < ordered[j].String()
	})

	for _, id := range ordered {
		t.store.rowLock(id).Lock()
		t.locked = append(t.locked, id)
	}

	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	accounts := make(map[uuid.UUID]*model.Account, len(ordered))
	for _, id := range ordered {
		account, ok := t.store.accounts[id]
		if !ok {
			return nil, storage.ErrAccountNotFound
		}
		cp := *account
		accounts[id] = &cp
	}
	return accounts, nil
}

func (t *Tx) UpdateBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error {
	if balance.IsNegative() {
		return storage.ErrNegativeBalance
	}

	t.store.mu.RLock()
	_, ok := t.store.accounts[id]
	t.store.mu.RUnlock()
	if !ok {
		return storage.ErrAccountNotFound
	}

	t.balances[id] = balance
	return nil
}

func (t *Tx) AppendEntry(ctx context.Context, entry *model.LedgerEntry) error {
	key := entryKey(entry.TxID, entry.Direction)

	t.store.mu.RLock()
	_, committed := t.store.entryKeys[key]
	t.store.mu.RUnlock()
	if committed {
		return storage.ErrDuplicateEntry
	}
	for _, staged := range t.staged {
		if entryKey(staged.TxID, staged.Direction) == key {
			return storage.ErrDuplicateEntry
		}
	}

	t.staged = append(t.staged, *entry)
	return nil
}

func (t *Tx) EntriesByTx(ctx context.Context, txID uuid.UUID) ([]model.LedgerEntry, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	return t.store.entriesByTxLocked(txID), nil
}

func (t *Tx) commit() {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	now := time.Now().UTC()
	for id, balance := range t.balances {
		account := t.store.accounts[id]
		account.Balance = balance
		account.UpdatedAt = now
	}
	for _, entry := range t.staged {
		t.store.entries = append(t.store.entries, entry)
		t.store.entryKeys[entryKey(entry.TxID, entry.Direction)] = struct{}{}
	}
}

// release unlocks in reverse acquisition order.
func (t *Tx) release() {
	for i := len(t.locked) - 1; i >= 0; i-- {
		t.store.rowLock(t.locked[i]).Unlock()
	}
	t.locked = nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
