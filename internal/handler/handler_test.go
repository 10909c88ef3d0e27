package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accountledger/internal/handler"
	"accountledger/internal/model"
	"accountledger/internal/service"
	"accountledger/internal/storage/memory"
)

const testServiceKey = "test-service-key"

type alwaysExists struct{}

func (alwaysExists) Exists(ctx context.Context, customerID uuid.UUID) (bool, error) {
	return true, nil
}

type testEnv struct {
	router *gin.Engine
	store  *memory.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	store := memory.New()
	accounts := service.NewAccountService(store, alwaysExists{}, log)
	ledger := service.NewLedgerService(store)
	transfers := service.NewTransferService(store, nil, nil, log)

	h := handler.NewHandler(accounts, ledger, transfers)
	return &testEnv{
		router: handler.SetupRouter(h, testServiceKey, log),
		store:  store,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) seedAccount(t *testing.T, balance, currency string, status model.AccountStatus) *model.Account {
	t.Helper()
	account := model.NewAccount(uuid.New(), model.AccountTypeChecking, currency)
	account.Balance = decimal.RequireFromString(balance)
	account.Status = status
	require.NoError(t, e.store.CreateAccount(context.Background(), account))
	return account
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestCreateAccountEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/accounts", gin.H{
		"customer_id": uuid.New(),
		"type":        "SAVINGS",
		"currency":    "PEN",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var account model.Account
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &account))
	assert.NotEqual(t, uuid.Nil, account.ID)
	assert.Equal(t, model.AccountStatusActive, account.Status)
	assert.Equal(t, "PEN", account.Currency)
}

func TestCreateAccountBadPayload(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/accounts", gin.H{"type": "SAVINGS"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/accounts", gin.H{
		"customer_id": uuid.New(),
		"type":        "GOLD",
		"currency":    "PEN",
	}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestGetAccountEndpoint(t *testing.T) {
	env := newTestEnv(t)
	account := env.seedAccount(t, "42.00", "PEN", model.AccountStatusActive)

	w := env.do(t, http.MethodGet, "/accounts/"+account.ID.String(), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/accounts/"+uuid.New().String(), nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/accounts/not-a-uuid", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateAccountStatusEndpoint(t *testing.T) {
	env := newTestEnv(t)
	account := env.seedAccount(t, "0.00", "PEN", model.AccountStatusActive)
	path := fmt.Sprintf("/accounts/%s/status", account.ID)

	w := env.do(t, http.MethodPut, path, gin.H{"status": "BLOCKED"}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPut, path, gin.H{"status": "CLOSED"}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// CLOSED is terminal.
	w = env.do(t, http.MethodPut, path, gin.H{"status": "ACTIVE"}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestGetBalanceEndpoint(t *testing.T) {
	env := newTestEnv(t)
	account := env.seedAccount(t, "77.50", "PEN", model.AccountStatusActive)

	w := env.do(t, http.MethodGet, fmt.Sprintf("/accounts/%s/balance", account.ID), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var data struct {
		AccountID string          `json:"account_id"`
		Balance   decimal.Decimal `json:"balance"`
		Currency  string          `json:"currency"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &data))
	assert.Equal(t, account.ID.String(), data.AccountID)
	assert.True(t, data.Balance.Equal(decimal.RequireFromString("77.50")))
	assert.Equal(t, "PEN", data.Currency)
}

func serviceKeyHeader() map[string]string {
	return map[string]string{"x-service-key": testServiceKey}
}

func transferBody(requestID uuid.UUID, from, to *model.Account, amount, currency string) gin.H {
	return gin.H{
		"requestId":   requestID,
		"fromAccount": from.ID,
		"toAccount":   to.ID,
		"amount":      amount,
		"currency":    currency,
	}
}

func TestTransferEndpointRequiresServiceKey(t *testing.T) {
	env := newTestEnv(t)
	a := env.seedAccount(t, "100.00", "PEN", model.AccountStatusActive)
	b := env.seedAccount(t, "0.00", "PEN", model.AccountStatusActive)
	body := transferBody(uuid.New(), a, b, "10.00", "PEN")

	w := env.do(t, http.MethodPost, "/internal/transfer", body, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPost, "/internal/transfer", body, map[string]string{"x-service-key": "wrong"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestTransferEndpoint(t *testing.T) {
	env := newTestEnv(t)
	a := env.seedAccount(t, "1000.00", "PEN", model.AccountStatusActive)
	b := env.seedAccount(t, "500.00", "PEN", model.AccountStatusActive)

	requestID := uuid.New()
	body := transferBody(requestID, a, b, "150.00", "PEN")

	w := env.do(t, http.MethodPost, "/internal/transfer", body, serviceKeyHeader())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var first handler.TransferResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
	assert.Equal(t, "OK", first.Status)
	assert.Equal(t, "Transfer applied", first.Message)
	assert.Equal(t, "850.00", first.Balances["from"])
	assert.Equal(t, "650.00", first.Balances["to"])
	assert.NotEqual(t, uuid.Nil, first.DebitEntryID)
	assert.NotEqual(t, uuid.Nil, first.CreditEntryID)

	// Replay returns the same entry ids and balances.
	w = env.do(t, http.MethodPost, "/internal/transfer", body, serviceKeyHeader())
	require.Equal(t, http.StatusOK, w.Code)

	var second handler.TransferResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	assert.Equal(t, "Idempotent replay", second.Message)
	assert.Equal(t, first.DebitEntryID, second.DebitEntryID)
	assert.Equal(t, first.CreditEntryID, second.CreditEntryID)
	assert.Equal(t, first.Balances, second.Balances)
}

func TestTransferEndpointRejections(t *testing.T) {
	env := newTestEnv(t)
	a := env.seedAccount(t, "20.00", "PEN", model.AccountStatusActive)
	b := env.seedAccount(t, "0.00", "PEN", model.AccountStatusActive)
	blocked := env.seedAccount(t, "50.00", "PEN", model.AccountStatusBlocked)

	t.Run("insufficient funds", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/internal/transfer",
			transferBody(uuid.New(), a, b, "100.00", "PEN"), serviceKeyHeader())
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Insufficient funds", decodeEnvelope(t, w).Message)
	})

	t.Run("currency mismatch", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/internal/transfer",
			transferBody(uuid.New(), a, b, "10.00", "USD"), serviceKeyHeader())
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("blocked account", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/internal/transfer",
			transferBody(uuid.New(), blocked, b, "10.00", "PEN"), serviceKeyHeader())
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("unknown account", func(t *testing.T) {
		ghost := &model.Account{ID: uuid.New()}
		w := env.do(t, http.MethodPost, "/internal/transfer",
			transferBody(uuid.New(), a, ghost, "10.00", "PEN"), serviceKeyHeader())
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("non-positive amount", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/internal/transfer",
			transferBody(uuid.New(), a, b, "-5.00", "PEN"), serviceKeyHeader())
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestListLedgerEntriesEndpoint(t *testing.T) {
	env := newTestEnv(t)
	a := env.seedAccount(t, "1000.00", "PEN", model.AccountStatusActive)
	b := env.seedAccount(t, "0.00", "PEN", model.AccountStatusActive)

	for i := 0; i < 3; i++ {
		w := env.do(t, http.MethodPost, "/internal/transfer",
			transferBody(uuid.New(), a, b, "10.00", "PEN"), serviceKeyHeader())
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := env.do(t, http.MethodGet, "/ledger/"+a.ID.String(), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var entries []model.LedgerEntry
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &entries))
	assert.Len(t, entries, 3)

	w = env.do(t, http.MethodGet, "/ledger/"+a.ID.String()+"?direction=SIDEWAYS", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/ledger/"+a.ID.String()+"?from_date=yesterday", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/ledger/"+uuid.New().String(), nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
