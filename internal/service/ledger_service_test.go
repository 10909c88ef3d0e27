package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accountledger/internal/model"
	"accountledger/internal/service"
	"accountledger/internal/storage"
	"accountledger/internal/storage/memory"
)

func seedLedgerHistory(t *testing.T, store *memory.Store) (source, sink *model.Account, txIDs []uuid.UUID) {
	t.Helper()
	svc := service.NewTransferService(store, nil, nil, testLogger())

	source = seedAccount(t, store, "1000.00", "PEN", model.AccountStatusActive)
	sink = seedAccount(t, store, "0.00", "PEN", model.AccountStatusActive)

	for _, amount := range []string{"10.00", "25.00", "100.00"} {
		requestID := uuid.New()
		_, err := svc.Transfer(context.Background(), service.TransferRequest{
			RequestID:   requestID,
			FromAccount: source.ID,
			ToAccount:   sink.ID,
			Amount:      dec(amount),
			Currency:    "PEN",
		})
		require.NoError(t, err)
		txIDs = append(txIDs, requestID)
	}
	return source, sink, txIDs
}

func TestLedgerListHistory(t *testing.T) {
	store := memory.New()
	source, sink, _ := seedLedgerHistory(t, store)
	svc := service.NewLedgerService(store)

	entries, err := svc.List(context.Background(), source.ID, storage.EntryFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for _, entry := range entries {
		assert.Equal(t, source.ID, entry.AccountID)
		assert.Equal(t, model.DirectionDebit, entry.Direction)
	}

	entries, err = svc.List(context.Background(), sink.ID, storage.EntryFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for _, entry := range entries {
		assert.Equal(t, model.DirectionCredit, entry.Direction)
	}
}

func TestLedgerListFilters(t *testing.T) {
	store := memory.New()
	source, _, _ := seedLedgerHistory(t, store)
	svc := service.NewLedgerService(store)
	ctx := context.Background()

	t.Run("amount range", func(t *testing.T) {
		min := dec("20.00")
		max := dec("50.00")
		entries, err := svc.List(ctx, source.ID, storage.EntryFilter{MinAmount: &min, MaxAmount: &max})
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.True(t, entries[0].Amount.Equal(dec("25.00")))
	})

	t.Run("direction", func(t *testing.T) {
		entries, err := svc.List(ctx, source.ID, storage.EntryFilter{Direction: model.DirectionCredit})
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("date window excludes everything", func(t *testing.T) {
		from := time.Now().UTC().Add(time.Hour)
		entries, err := svc.List(ctx, source.ID, storage.EntryFilter{FromDate: &from})
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("pagination", func(t *testing.T) {
		entries, err := svc.List(ctx, source.ID, storage.EntryFilter{Offset: 1, Limit: 1})
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})
}

func TestLedgerListInvalidDateRange(t *testing.T) {
	store := memory.New()
	source, _, _ := seedLedgerHistory(t, store)
	svc := service.NewLedgerService(store)

	to := time.Now().UTC()
	from := to.Add(time.Hour)
	_, err := svc.List(context.Background(), source.ID, storage.EntryFilter{FromDate: &from, ToDate: &to})
	var validation *service.ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestLedgerListClosedAccount(t *testing.T) {
	store := memory.New()
	source, _, _ := seedLedgerHistory(t, store)
	require.NoError(t, store.UpdateAccountStatus(context.Background(), source.ID, model.AccountStatusClosed, nil))

	svc := service.NewLedgerService(store)
	_, err := svc.List(context.Background(), source.ID, storage.EntryFilter{})
	require.ErrorIs(t, err, service.ErrAccountClosed)
}

func TestLedgerListUnknownAccount(t *testing.T) {
	svc := service.NewLedgerService(memory.New())
	_, err := svc.List(context.Background(), uuid.New(), storage.EntryFilter{})
	require.ErrorIs(t, err, storage.ErrAccountNotFound)
}

func TestLedgerEntriesByTx(t *testing.T) {
	store := memory.New()
	source, sink, txIDs := seedLedgerHistory(t, store)
	svc := service.NewLedgerService(store)

	entries, err := svc.EntriesByTx(context.Background(), txIDs[0])
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byDirection := map[model.Direction]uuid.UUID{}
	for _, entry := range entries {
		assert.True(t, entry.Amount.Equal(dec("10.00")))
		byDirection[entry.Direction] = entry.AccountID
	}
	assert.Equal(t, source.ID, byDirection[model.DirectionDebit])
	assert.Equal(t, sink.ID, byDirection[model.DirectionCredit])

	entries, err = svc.EntriesByTx(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, entries)
}
