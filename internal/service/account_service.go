package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"accountledger/internal/model"
	"accountledger/internal/storage"
)

// IdentityValidator checks that the referenced customer exists. It is
// consulted only at account creation, never during transfers.
type IdentityValidator interface {
	Exists(ctx context.Context, customerID uuid.UUID) (bool, error)
}

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

type CreateAccountRequest struct {
	CustomerID uuid.UUID
	Type       string
	Currency   string
}

type AccountService struct {
	store    storage.Store
	identity IdentityValidator
	log      logrus.FieldLogger
}

func NewAccountService(store storage.Store, identity IdentityValidator, log logrus.FieldLogger) *AccountService {
	return &AccountService{
		store:    store,
		identity: identity,
		log:      log,
	}
}

// Create opens an ACTIVE account with a zero balance. A confirmed
// missing customer is a permanent validation failure; an unreachable
// identity service is retryable.
func (s *AccountService) Create(ctx context.Context, req CreateAccountRequest) (*model.Account, error) {
	accountType := model.AccountType(strings.ToUpper(strings.TrimSpace(req.Type)))
	if !accountType.Valid() {
		return nil, &ValidationError{Reason: "type must be one of SAVINGS, CHECKING, BUSINESS"}
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if !currencyPattern.MatchString(currency) {
		return nil, &ValidationError{Reason: "currency must be a 3-letter ISO 4217 code"}
	}

	exists, err := s.identity.Exists(ctx, req.CustomerID)
	if err != nil {
		return nil, &StorageError{Err: err}
	}
	if !exists {
		return nil, &ValidationError{Reason: "customer does not exist"}
	}

	account := model.NewAccount(req.CustomerID, accountType, currency)
	if err := s.store.CreateAccount(ctx, account); err != nil {
		return nil, &StorageError{Err: err}
	}

	s.log.WithFields(logrus.Fields{
		"account_id":  account.ID,
		"customer_id": account.CustomerID,
		"type":        account.Type,
		"currency":    account.Currency,
	}).Info("account created")
	return account, nil
}

func (s *AccountService) Get(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	account, err := s.store.GetAccount(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			return nil, err
		}
		return nil, &StorageError{Err: err}
	}
	return account, nil
}

func (s *AccountService) List(ctx context.Context, filter storage.AccountFilter) ([]model.Account, error) {
	accounts, err := s.store.ListAccounts(ctx, filter)
	if err != nil {
		return nil, &StorageError{Err: err}
	}
	return accounts, nil
}

// UpdateStatus applies the account status machine: ACTIVE and BLOCKED
// are interchangeable, CLOSED is terminal and stamps closedAt exactly
// once.
func (s *AccountService) UpdateStatus(ctx context.Context, id uuid.UUID, next model.AccountStatus) (*model.Account, error) {
	if !next.Valid() {
		return nil, &ValidationError{Reason: "status must be one of ACTIVE, BLOCKED, CLOSED"}
	}

	account, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !account.Status.CanTransitionTo(next) {
		return nil, &ValidationError{
			Reason: "cannot transition account from " + string(account.Status) + " to " + string(next),
		}
	}

	var closedAt *time.Time
	if next == model.AccountStatusClosed {
		now := time.Now().UTC()
		closedAt = &now
	}
	if err := s.store.UpdateAccountStatus(ctx, id, next, closedAt); err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			return nil, err
		}
		return nil, &StorageError{Err: err}
	}

	account.Status = next
	account.ClosedAt = closedAt
	s.log.WithFields(logrus.Fields{
		"account_id": id,
		"status":     next,
	}).Info("account status updated")
	return account, nil
}
