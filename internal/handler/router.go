package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SetupRouter wires the HTTP surface: account CRUD, ledger reads, and
// the service-key-guarded internal transfer endpoint.
func SetupRouter(h *Handler, serviceKey string, log logrus.FieldLogger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(RecoveryMiddleware(log))
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware())

	accounts := r.Group("/accounts")
	{
		accounts.POST("", h.CreateAccount)
		accounts.GET("", h.ListAccounts)
		accounts.GET("/:id", h.GetAccount)
		accounts.PUT("/:id/status", h.UpdateAccountStatus)
		accounts.GET("/:id/balance", h.GetBalance)
	}

	ledger := r.Group("/ledger")
	{
		ledger.GET("/:account_id", h.ListLedgerEntries)
	}

	internal := r.Group("/internal", RequireServiceKey(serviceKey))
	{
		internal.POST("/transfer", h.Transfer)
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "account-ledger"})
	})

	return r
}
