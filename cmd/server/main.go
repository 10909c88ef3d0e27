package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"accountledger/internal/config"
	"accountledger/internal/handler"
	"accountledger/internal/identity"
	"accountledger/internal/infrastructure/cache"
	"accountledger/internal/infrastructure/database"
	"accountledger/internal/infrastructure/mq"
	"accountledger/internal/notifier"
	"accountledger/internal/service"
	"accountledger/internal/storage"
	"accountledger/internal/storage/memory"
	"accountledger/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("load config")
	}

	var store storage.Store
	switch cfg.Storage.Driver {
	case "memory":
		store = memory.New()
		log.Warn("using in-memory storage, data will not survive a restart")
	default:
		db, err := database.NewPostgres(&cfg.Postgres)
		if err != nil {
			log.WithError(err).Fatal("open postgres")
		}
		store = postgres.New(db, cfg.Storage.LockTimeout)
	}

	var locks *redis.Client
	if cfg.Redis.Enabled {
		locks, err = cache.NewRedis(&cfg.Redis)
		if err != nil {
			log.WithError(err).Fatal("open redis")
		}
		defer locks.Close()
	}

	var balanceNotifier service.BalanceNotifier
	if cfg.Notify.Enabled {
		producer, err := mq.NewProducer(cfg.Kafka.Brokers)
		if err != nil {
			log.WithError(err).Fatal("open kafka producer")
		}
		defer producer.Close()

		n := notifier.New(producer, cfg.Kafka.Topic.BalanceUpdated, cfg.Notify.Buffer, log)
		// Pending notifications are dropped on shutdown on purpose:
		// they are best-effort and must never delay it.
		defer n.Close()
		balanceNotifier = n
	}

	identityClient := identity.NewClient(&cfg.Identity)

	accountService := service.NewAccountService(store, identityClient, log)
	ledgerService := service.NewLedgerService(store)
	transferService := service.NewTransferService(store, locks, balanceNotifier, log)

	h := handler.NewHandler(accountService, ledgerService, transferService)
	router := handler.SetupRouter(h, cfg.Service.Key, log)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.WithField("port", cfg.Server.Port).Info("server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown incomplete")
	}
	log.Info("server stopped")
}
