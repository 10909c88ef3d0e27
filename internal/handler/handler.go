package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"accountledger/internal/identity"
	"accountledger/internal/model"
	"accountledger/internal/service"
	"accountledger/internal/storage"
	"accountledger/pkg/response"
)

type Handler struct {
	accounts  *service.AccountService
	ledger    *service.LedgerService
	transfers *service.TransferService
}

func NewHandler(accounts *service.AccountService, ledger *service.LedgerService, transfers *service.TransferService) *Handler {
	return &Handler{
		accounts:  accounts,
		ledger:    ledger,
		transfers: transfers,
	}
}

// writeError maps the service error taxonomy onto HTTP statuses:
// validation 422, business rejection 400, not-found 404, closed-read
// 403, conflict 409, infrastructure 500/503.
func writeError(c *gin.Context, err error) {
	var validation *service.ValidationError
	var notActive *service.NotActiveError
	var mismatch *service.CurrencyMismatchError
	var storageErr *service.StorageError

	switch {
	case errors.Is(err, storage.ErrAccountNotFound):
		response.Error(c, http.StatusNotFound, "Account not found")
	case errors.Is(err, service.ErrInsufficientFunds):
		response.Error(c, http.StatusBadRequest, "Insufficient funds")
	case errors.Is(err, service.ErrAccountClosed):
		response.Error(c, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrConflict):
		response.Error(c, http.StatusConflict, err.Error())
	case errors.As(err, &validation), errors.As(err, &notActive), errors.As(err, &mismatch):
		response.Error(c, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &storageErr):
		if errors.Is(err, identity.ErrUnavailable) {
			response.Error(c, http.StatusServiceUnavailable, err.Error())
			return
		}
		response.Error(c, http.StatusInternalServerError, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, err.Error())
	}
}

// ============================================================
// Accounts
// ============================================================

type CreateAccountRequest struct {
	CustomerID uuid.UUID `json:"customer_id" binding:"required"`
	Type       string    `json:"type" binding:"required"`
	Currency   string    `json:"currency" binding:"required"`
}

// CreateAccount handles POST /accounts.
func (h *Handler) CreateAccount(c *gin.Context) {
	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload: "+err.Error())
		return
	}

	account, err := h.accounts.Create(c.Request.Context(), service.CreateAccountRequest{
		CustomerID: req.CustomerID,
		Type:       req.Type,
		Currency:   req.Currency,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.Created(c, account)
}

// ListAccounts handles GET /accounts?skip=&limit=&status=&type=.
func (h *Handler) ListAccounts(c *gin.Context) {
	skip, _ := strconv.Atoi(c.DefaultQuery("skip", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if limit < 1 || limit > 100 {
		limit = 10
	}

	accounts, err := h.accounts.List(c.Request.Context(), storage.AccountFilter{
		Status: model.AccountStatus(c.Query("status")),
		Type:   model.AccountType(c.Query("type")),
		Offset: skip,
		Limit:  limit,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, accounts)
}

// GetAccount handles GET /accounts/:id.
func (h *Handler) GetAccount(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid account id")
		return
	}

	account, err := h.accounts.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, account)
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateAccountStatus handles PUT /accounts/:id/status.
func (h *Handler) UpdateAccountStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid account id")
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload: "+err.Error())
		return
	}

	account, err := h.accounts.UpdateStatus(c.Request.Context(), id, model.AccountStatus(req.Status))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, account)
}

// GetBalance handles GET /accounts/:id/balance.
func (h *Handler) GetBalance(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid account id")
		return
	}

	account, err := h.accounts.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{
		"account_id": account.ID,
		"balance":    account.Balance,
		"currency":   account.Currency,
		"updated_at": account.UpdatedAt,
	})
}

// ============================================================
// Ledger
// ============================================================

// ListLedgerEntries handles GET /ledger/:account_id with pagination
// and optional date/amount/direction filters.
func (h *Handler) ListLedgerEntries(c *gin.Context) {
	accountID, err := uuid.Parse(c.Param("account_id"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid account id")
		return
	}

	filter, err := parseEntryFilter(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.ledger.List(c.Request.Context(), accountID, filter)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, entries)
}

func parseEntryFilter(c *gin.Context) (storage.EntryFilter, error) {
	skip, _ := strconv.Atoi(c.DefaultQuery("skip", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit < 1 || limit > 500 {
		limit = 50
	}
	filter := storage.EntryFilter{Offset: skip, Limit: limit}

	if v := c.Query("from_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errors.New("invalid from_date, expected RFC3339")
		}
		filter.FromDate = &t
	}
	if v := c.Query("to_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errors.New("invalid to_date, expected RFC3339")
		}
		filter.ToDate = &t
	}
	if v := c.Query("min_amount"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return filter, errors.New("invalid min_amount")
		}
		filter.MinAmount = &d
	}
	if v := c.Query("max_amount"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return filter, errors.New("invalid max_amount")
		}
		filter.MaxAmount = &d
	}
	if v := c.Query("direction"); v != "" {
		direction := model.Direction(v)
		if !direction.Valid() {
			return filter, errors.New("direction must be DEBIT or CREDIT")
		}
		filter.Direction = direction
	}
	return filter, nil
}

// ============================================================
// Internal transfer
// ============================================================

// TransferRequest keeps the wire contract of the transaction service:
// requestId doubles as the idempotency key and the ledger tx_id.
type TransferRequest struct {
	RequestID   uuid.UUID       `json:"requestId" binding:"required"`
	FromAccount uuid.UUID       `json:"fromAccount" binding:"required"`
	ToAccount   uuid.UUID       `json:"toAccount" binding:"required"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	Currency    string          `json:"currency" binding:"required"`
}

type TransferResponse struct {
	Status        string            `json:"status"`
	DebitEntryID  uuid.UUID         `json:"debitEntryId"`
	CreditEntryID uuid.UUID         `json:"creditEntryId"`
	Balances      map[string]string `json:"balances"`
	Message       string            `json:"message"`
}

// Transfer handles POST /internal/transfer.
func (h *Handler) Transfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid payload: "+err.Error())
		return
	}

	result, err := h.transfers.Transfer(c.Request.Context(), service.TransferRequest{
		RequestID:   req.RequestID,
		FromAccount: req.FromAccount,
		ToAccount:   req.ToAccount,
		Amount:      req.Amount,
		Currency:    req.Currency,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	message := "Transfer applied"
	if result.Replayed {
		message = "Idempotent replay"
	}
	c.JSON(http.StatusOK, TransferResponse{
		Status:        "OK",
		DebitEntryID:  result.DebitEntryID,
		CreditEntryID: result.CreditEntryID,
		Balances: map[string]string{
			"from": result.FromBalance.StringFixed(2),
			"to":   result.ToBalance.StringFixed(2),
		},
		Message: message,
	})
}
