package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AccountType string

const (
	AccountTypeSavings  AccountType = "SAVINGS"
	AccountTypeChecking AccountType = "CHECKING"
	AccountTypeBusiness AccountType = "BUSINESS"
)

func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeSavings, AccountTypeChecking, AccountTypeBusiness:
		return true
	}
	return false
}

type AccountStatus string

const (
	AccountStatusActive  AccountStatus = "ACTIVE"
	AccountStatusBlocked AccountStatus = "BLOCKED"
	AccountStatusClosed  AccountStatus = "CLOSED"
)

func (s AccountStatus) Valid() bool {
	switch s {
	case AccountStatusActive, AccountStatusBlocked, AccountStatusClosed:
		return true
	}
	return false
}

// CanTransitionTo reports whether the status change is allowed.
// ACTIVE and BLOCKED are interchangeable and either may be closed;
// CLOSED is terminal.
func (s AccountStatus) CanTransitionTo(next AccountStatus) bool {
	if !next.Valid() {
		return false
	}
	if s == AccountStatusClosed {
		return false
	}
	return s != next
}

// Account holds the single mutable balance column. All balance
// mutation goes through the transfer transaction; nothing else
// writes to it.
type Account struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	CustomerID uuid.UUID       `gorm:"type:uuid;index;not null" json:"customer_id"`
	Type       AccountType     `gorm:"type:varchar(20);not null" json:"type"`
	Status     AccountStatus   `gorm:"type:varchar(20);not null;default:ACTIVE" json:"status"`
	Currency   string          `gorm:"type:varchar(3);not null" json:"currency"`
	Balance    decimal.Decimal `gorm:"type:numeric(18,2);not null;check:chk_accounts_balance_non_negative,balance >= 0" json:"balance"`
	OpenedAt   time.Time       `gorm:"not null" json:"opened_at"`
	ClosedAt   *time.Time      `json:"closed_at,omitempty"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "accounts"
}

// NewAccount returns an ACTIVE account with a zero balance.
func NewAccount(customerID uuid.UUID, accountType AccountType, currency string) *Account {
	return &Account{
		ID:         uuid.New(),
		CustomerID: customerID,
		Type:       accountType,
		Status:     AccountStatusActive,
		Currency:   currency,
		Balance:    decimal.Zero,
		OpenedAt:   time.Now().UTC(),
	}
}
