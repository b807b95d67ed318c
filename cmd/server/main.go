package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cashledger/internal/config"
	"cashledger/internal/db"
	"cashledger/internal/handlers"
	"cashledger/internal/idempotency"
	"cashledger/internal/logging"
	"cashledger/internal/middleware"
	"cashledger/internal/services"
	"cashledger/internal/store"
	"cashledger/internal/websocket"

	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	logger, err := logging.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect database", zap.Error(err))
	}
	defer database.Close()

	users := store.NewUserStore(database)
	branches := store.NewBranchStore(database)
	accounts := store.NewAccountStore(database)
	audit := store.NewAuditStore(database)
	txRunner := db.NewTxRunner(database, logger)
	hub := websocket.NewHub()

	ledger := services.NewLedgerService(txRunner, database, services.Stores{
		Accounts:     accounts,
		Users:        users,
		Branches:     branches,
		Transactions: store.NewTransactionStore(database),
		Debts:        store.NewDebtStore(database),
		Closures:     store.NewClosureStore(database),
		CashCounts:   store.NewCashCountStore(database),
		Audit:        audit,
	}, hub, logger)

	// A nil interface, not a typed nil, keeps the middleware disabled.
	var cache middleware.IdempotencyStore
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		client, err := idempotency.Connect(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			logger.Fatal("failed to connect redis", zap.Error(err))
		}
		defer client.Close()
		cache = idempotency.NewStore(client, cfg.IdempotencyTTL)
		logger.Info("idempotency cache enabled", zap.Duration("ttl", cfg.IdempotencyTTL))
	}

	handler := handlers.New(handlers.Deps{
		TxRunner:    txRunner,
		Config:      cfg,
		Users:       users,
		Branches:    branches,
		Accounts:    accounts,
		Audit:       audit,
		Ledger:      ledger,
		Hub:         hub,
		Idempotency: cache,
		Logger:      logger,
	})
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("cash ledger API listening", zap.String("addr", server.Addr), zap.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}
