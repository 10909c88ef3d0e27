package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Direction string

const (
	DirectionDebit  Direction = "DEBIT"
	DirectionCredit Direction = "CREDIT"
)

func (d Direction) Valid() bool {
	return d == DirectionDebit || d == DirectionCredit
}

// LedgerEntry records one half of a transfer. Entries are append-only:
// they are created inside the transfer transaction and never updated
// or deleted. The unique (tx_id, direction) index is the store-level
// backstop that keeps a retried request from posting twice.
type LedgerEntry struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	AccountID uuid.UUID       `gorm:"type:uuid;not null;index:idx_ledger_entries_account_created,priority:1" json:"account_id"`
	TxID      uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_ledger_entries_tx_direction,priority:1" json:"tx_id"`
	Direction Direction       `gorm:"type:varchar(6);not null;uniqueIndex:idx_ledger_entries_tx_direction,priority:2;check:chk_ledger_entries_direction,direction IN ('DEBIT','CREDIT')" json:"direction"`
	Amount    decimal.Decimal `gorm:"type:numeric(18,2);not null;check:chk_ledger_entries_amount_positive,amount > 0" json:"amount"`
	CreatedAt time.Time       `gorm:"not null;index:idx_ledger_entries_account_created,priority:2" json:"created_at"`
}

func (LedgerEntry) TableName() string {
	return "ledger_entries"
}

func NewLedgerEntry(accountID, txID uuid.UUID, direction Direction, amount decimal.Decimal) *LedgerEntry {
	return &LedgerEntry{
		ID:        uuid.New(),
		AccountID: accountID,
		TxID:      txID,
		Direction: direction,
		Amount:    amount,
		CreatedAt: time.Now().UTC(),
	}
}
