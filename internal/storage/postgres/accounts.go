package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"gorm.io/gorm"

	"accountledger/internal/model"
	"accountledger/internal/storage"
)

func (s *Store) CreateAccount(ctx context.Context, account *model.Account) error {
	return s.db.WithContext(ctx).Create(account).Error
}

func (s *Store) GetAccount(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	var account model.Account
	err := s.db.WithContext(ctx).First(&account, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (s *Store) ListAccounts(ctx context.Context, filter storage.AccountFilter) ([]model.Account, error) {
	query := s.db.WithContext(ctx).Model(&model.Account{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var accounts []model.Account
	err := query.Order("opened_at ASC").Find(&accounts).Error
	return accounts, err
}

func (s *Store) UpdateAccountStatus(ctx context.Context, id uuid.UUID, status model.AccountStatus, closedAt *time.Time) error {
	updates := map[string]interface{}{"status": status}
	if closedAt != nil {
		updates["closed_at"] = *closedAt
	}

	result := s.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return storage.ErrAccountNotFound
	}
	return nil
}
