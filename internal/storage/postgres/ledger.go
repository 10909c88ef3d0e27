package postgres

import (
	"context"

	"github.com/google/uuid"

	"accountledger/internal/model"
	"accountledger/internal/storage"
)

func (s *Store) EntriesByTx(ctx context.Context, txID uuid.UUID) ([]model.LedgerEntry, error) {
	var entries []model.LedgerEntry
	err := s.db.WithContext(ctx).
		Where("tx_id = ?", txID).
		Order("direction ASC").
		Find(&entries).Error
	return entries, err
}

func (s *Store) ListEntries(ctx context.Context, accountID uuid.UUID, filter storage.EntryFilter) ([]model.LedgerEntry, error) {
	query := s.db.WithContext(ctx).
		Model(&model.LedgerEntry{}).
		Where("account_id = ?", accountID)

	if filter.FromDate != nil {
		query = query.Where("created_at >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		query = query.Where("created_at <= ?", *filter.ToDate)
	}
	if filter.MinAmount != nil {
		query = query.Where("amount >= ?", *filter.MinAmount)
	}
	if filter.MaxAmount != nil {
		query = query.Where("amount <= ?", *filter.MaxAmount)
	}
	if filter.Direction != "" {
		query = query.Where("direction = ?", filter.Direction)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var entries []model.LedgerEntry
	err := query.Order("created_at DESC").Find(&entries).Error
	return entries, err
}
