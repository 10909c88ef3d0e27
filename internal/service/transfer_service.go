package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"accountledger/internal/infrastructure/lock"
	"accountledger/internal/model"
	"accountledger/internal/storage"
)

// BalanceNotifier receives post-commit balance updates. Implementations
// must not block: delivery is fire-and-forget and never affects the
// transfer outcome.
type BalanceNotifier interface {
	Notify(accountID uuid.UUID, balance decimal.Decimal, currency string)
}

// TransferRequest is the already-validated, strongly-typed input to
// the coordinator. RequestID is the idempotency key and becomes the
// ledger tx_id.
type TransferRequest struct {
	RequestID   uuid.UUID
	FromAccount uuid.UUID
	ToAccount   uuid.UUID
	Amount      decimal.Decimal
	Currency    string
}

// TransferResult carries both new balances and the two entry ids.
// Replayed is set when the request had already been applied and the
// call was answered without mutating anything.
type TransferResult struct {
	DebitEntryID  uuid.UUID
	CreditEntryID uuid.UUID
	FromBalance   decimal.Decimal
	ToBalance     decimal.Decimal
	Replayed      bool
}

// TransferService applies atomic double-entry transfers between two
// accounts. Correctness is delegated to the store: row locks taken in
// deterministic order, a single all-or-nothing transaction, and the
// (tx_id, direction) uniqueness backstop.
type TransferService struct {
	store    storage.Store
	locks    *redis.Client
	notifier BalanceNotifier
	log      logrus.FieldLogger
}

// NewTransferService wires the coordinator. locks and notifier may be
// nil: the redis guard and the post-commit notification are both
// optional and neither participates in transfer correctness.
func NewTransferService(store storage.Store, locks *redis.Client, notifier BalanceNotifier, log logrus.FieldLogger) *TransferService {
	return &TransferService{
		store:    store,
		locks:    locks,
		notifier: notifier,
		log:      log,
	}
}

func (s *TransferService) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	if !req.Amount.IsPositive() {
		return nil, &ValidationError{Reason: "amount must be greater than zero"}
	}
	if req.FromAccount == req.ToAccount {
		return nil, &ValidationError{Reason: "origin and destination accounts must differ"}
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))

	// Replay fast path: a completed pair for this request id means the
	// transfer already committed. Answer without locking anything.
	if result, ok, err := s.replay(ctx, req); err != nil {
		return nil, err
	} else if ok {
		return result, nil
	}

	// Redis guard keyed by the request id collapses concurrent
	// duplicate submissions before they contend on row locks. The
	// unique ledger index stays the real guarantee.
	if s.locks != nil {
		guard := lock.NewTransferLock(s.locks, req.RequestID.String())
		if err := guard.Lock(ctx, 100*time.Millisecond, 30); err != nil {
			return nil, &StorageError{Err: err}
		}
		defer guard.Unlock(ctx)
	}

	var result TransferResult
	err := s.store.Atomically(ctx, func(tx storage.Tx) error {
		accounts, err := tx.LockAccounts(ctx, req.FromAccount, req.ToAccount)
		if err != nil {
			return err
		}
		from := accounts[req.FromAccount]
		to := accounts[req.ToAccount]

		// Re-check idempotency under the row locks: a concurrent retry
		// that committed first is observed here and answered as a
		// replay instead of posting twice.
		entries, err := tx.EntriesByTx(ctx, req.RequestID)
		if err != nil {
			return err
		}
		if debit, credit, ok := splitPair(entries); ok {
			result = TransferResult{
				DebitEntryID:  debit.ID,
				CreditEntryID: credit.ID,
				FromBalance:   from.Balance,
				ToBalance:     to.Balance,
				Replayed:      true,
			}
			return nil
		}

		if from.Status != model.AccountStatusActive {
			return &NotActiveError{Role: "Origin", Status: string(from.Status)}
		}
		if to.Status != model.AccountStatusActive {
			return &NotActiveError{Role: "Destination", Status: string(to.Status)}
		}
		if from.Currency != to.Currency || from.Currency != currency {
			return &CurrencyMismatchError{From: from.Currency, To: to.Currency, Requested: currency}
		}
		if from.Balance.LessThan(req.Amount) {
			return ErrInsufficientFunds
		}

		newFrom := from.Balance.Sub(req.Amount)
		newTo := to.Balance.Add(req.Amount)
		if err := tx.UpdateBalance(ctx, from.ID, newFrom); err != nil {
			return err
		}
		if err := tx.UpdateBalance(ctx, to.ID, newTo); err != nil {
			return err
		}

		debit := model.NewLedgerEntry(from.ID, req.RequestID, model.DirectionDebit, req.Amount)
		credit := model.NewLedgerEntry(to.ID, req.RequestID, model.DirectionCredit, req.Amount)
		if err := tx.AppendEntry(ctx, debit); err != nil {
			return err
		}
		if err := tx.AppendEntry(ctx, credit); err != nil {
			return err
		}

		result = TransferResult{
			DebitEntryID:  debit.ID,
			CreditEntryID: credit.ID,
			FromBalance:   newFrom,
			ToBalance:     newTo,
		}
		return nil
	})
	if err != nil {
		return nil, s.classify(err)
	}

	if result.Replayed {
		s.log.WithField("request_id", req.RequestID).Info("transfer replayed")
		return &result, nil
	}

	s.log.WithFields(logrus.Fields{
		"request_id": req.RequestID,
		"from":       req.FromAccount,
		"to":         req.ToAccount,
		"amount":     req.Amount.StringFixed(2),
		"currency":   currency,
	}).Info("transfer applied")

	// Post-commit, fire-and-forget. Emitter failures are logged by the
	// notifier and never surface here.
	if s.notifier != nil {
		s.notifier.Notify(req.FromAccount, result.FromBalance, currency)
		s.notifier.Notify(req.ToAccount, result.ToBalance, currency)
	}
	return &result, nil
}

// replay answers an already-committed request from the ledger plus the
// accounts' live balances, mutating nothing.
func (s *TransferService) replay(ctx context.Context, req TransferRequest) (*TransferResult, bool, error) {
	entries, err := s.store.EntriesByTx(ctx, req.RequestID)
	if err != nil {
		return nil, false, &StorageError{Err: err}
	}
	debit, credit, ok := splitPair(entries)
	if !ok {
		return nil, false, nil
	}

	from, err := s.store.GetAccount(ctx, req.FromAccount)
	if err != nil {
		return nil, false, s.classify(err)
	}
	to, err := s.store.GetAccount(ctx, req.ToAccount)
	if err != nil {
		return nil, false, s.classify(err)
	}

	return &TransferResult{
		DebitEntryID:  debit.ID,
		CreditEntryID: credit.ID,
		FromBalance:   from.Balance,
		ToBalance:     to.Balance,
		Replayed:      true,
	}, true, nil
}

// classify maps storage sentinels onto the caller-facing taxonomy;
// business rejections pass through untouched.
func (s *TransferService) classify(err error) error {
	var validation *ValidationError
	var notActive *NotActiveError
	var mismatch *CurrencyMismatchError
	switch {
	case errors.As(err, &validation), errors.As(err, &notActive), errors.As(err, &mismatch):
		return err
	case errors.Is(err, ErrInsufficientFunds), errors.Is(err, storage.ErrNegativeBalance):
		return ErrInsufficientFunds
	case errors.Is(err, storage.ErrAccountNotFound):
		return err
	case errors.Is(err, storage.ErrDuplicateEntry):
		return ErrConflict
	default:
		return &StorageError{Err: err}
	}
}

// splitPair extracts the committed DEBIT/CREDIT pair for a tx id, if
// the pair is complete.
func splitPair(entries []model.LedgerEntry) (debit, credit *model.LedgerEntry, ok bool) {
	for i := range entries {
		switch entries[i].Direction {
		case model.DirectionDebit:
			debit = &entries[i]
		case model.DirectionCredit:
			credit = &entries[i]
		}
	}
	return debit, credit, debit != nil && credit != nil
}
