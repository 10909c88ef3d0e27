package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"accountledger/internal/storage"
)

// pgLockNotAvailable is the SQLSTATE raised when lock_timeout expires.
const pgLockNotAvailable = "55P03"

// Store implements storage.Store on top of gorm/Postgres. Row locks
// and the (tx_id, direction) unique index carry the concurrency
// guarantees; the check constraints on balance and amount are the
// defense-in-depth layer below the service validations.
type Store struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

func New(db *gorm.DB, lockTimeout time.Duration) *Store {
	return &Store{db: db, lockTimeout: lockTimeout}
}

func (s *Store) Atomically(ctx context.Context, fn func(tx storage.Tx) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if s.lockTimeout > 0 {
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}
		return fn(&Tx{db: tx})
	})
	return translateErr(err)
}

// translateErr maps driver-level failures onto the storage sentinels
// the service layer dispatches on. Business and sentinel errors pass
// through untouched.
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgLockNotAvailable {
		return fmt.Errorf("%w: %v", storage.ErrLockTimeout, err)
	}
	return err
}
