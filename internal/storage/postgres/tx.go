package postgres

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"accountledger/internal/model"
	"accountledger/internal/storage"
)

// Tx wraps the transaction handle gorm passes into Transaction.
type Tx struct {
	db *gorm.DB
}

func (t *Tx) LockAccounts(ctx context.Context, ids ...uuid.UUID) (map[uuid.UUID]*model.Account, error) {
	ordered := make([]uuid.UUID, len(ids))
	copy(ordered, ids)
	// Ascending id order for every caller, whatever the from/to roles
	// are. Two transfers over the same pair always queue on the same
	// first lock instead of deadlocking on each other.
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].String() < ordered[j].String()
	})

	accounts := make(map[uuid.UUID]*model.Account, len(ordered))
	for _, id := range ordered {
		var account model.Account
		err := t.db.WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&account, "id = ?", id).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, storage.ErrAccountNotFound
			}
			return nil, translateErr(err)
		}
		accounts[account.ID] = &account
	}
	return accounts, nil
}

func (t *Tx) UpdateBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error {
	if balance.IsNegative() {
		return storage.ErrNegativeBalance
	}

	result := t.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ?", id).
		Update("balance", balance)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrAccountNotFound
	}
	return nil
}

func (t *Tx) AppendEntry(ctx context.Context, entry *model.LedgerEntry) error {
	err := t.db.WithContext(ctx).Create(entry).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return storage.ErrDuplicateEntry
	}
	return err
}

func (t *Tx) EntriesByTx(ctx context.Context, txID uuid.UUID) ([]model.LedgerEntry, error) {
	var entries []model.LedgerEntry
	err := t.db.WithContext(ctx).
		Where("tx_id = ?", txID).
		Order("direction ASC").
		Find(&entries).Error
	return entries, err
}
