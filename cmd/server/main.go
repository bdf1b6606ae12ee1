/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the leave engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env + environment, routing table from YAML)
  2. Build the zap logger
  3. Initialize SQLite store
  4. Wire ledger, router, matcher, dispatcher and workflow service
  5. Configure HTTP router
  6. Start server with graceful shutdown

CONFIGURATION:
  All settings come from the environment (see config package):
    PORT, DB_PATH, LOG_LEVEL, LOG_FORMAT, ALLOWED_ORIGINS,
    PERIODS_PER_DAY, DEFAULT_ALLOTMENT, ROUTING_FILE
  Use DB_PATH=":memory:" for an in-memory database.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Drain pending notifications
  4. Close database connection
  5. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/campus/leave-engine/api"
	"github.com/campus/leave-engine/approval"
	"github.com/campus/leave-engine/config"
	"github.com/campus/leave-engine/leave"
	"github.com/campus/leave-engine/ledger"
	"github.com/campus/leave-engine/logging"
	"github.com/campus/leave-engine/notify"
	"github.com/campus/leave-engine/roster"
	"github.com/campus/leave-engine/store/sqlite"
	"github.com/campus/leave-engine/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer store.Close()

	// Wire the engine
	balances := ledger.New(store.Accounts())
	router := approval.NewRouter(cfg.Approval)
	matcher := roster.NewMatcher(store.Schedule(), store.Assignments())
	dispatcher := notify.NewAsync(logger, &notify.LogSink{Log: logger})

	service := workflow.NewService(
		leave.SystemClock{},
		store.Requests(),
		store.Directory(),
		balances,
		router,
		matcher,
		dispatcher,
		logger,
	)

	handler := api.NewHandler(service, balances, store.Directory(), store.Assignments(), store.Schedule(), api.Defaults{
		Allotment:     decimal.NewFromInt(int64(cfg.Ledger.DefaultAllotment)),
		PeriodsPerDay: cfg.Roster.PeriodsPerDay,
	})
	mux := api.NewRouter(handler, cfg.CORS.AllowedOrigins)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting",
			zap.Int("port", cfg.Port),
			zap.String("env", cfg.Env),
			zap.String("db", cfg.DBPath))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}
	dispatcher.Drain()

	logger.Info("server stopped")
}
