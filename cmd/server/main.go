/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the debt ledger server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env and environment, then parse command-line flags
  2. Open the store (and optional audit log / report archive)
  3. Create API handler with dependencies
  4. Start the reminder job
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: SERVER_PORT or 8080)
  -db      SQLite database path (default: SQLITE_PATH or ./data/ledger.db)
           Use ":memory:" for in-memory database
  -store   Store driver: sqlite, postgres, memory (default: STORE_DRIVER)

ENVIRONMENT:
  See config/config.go for the full list.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the reminder job (waits for the current run)
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connections
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/ledger.db"

  # Run against postgres
  STORE_DRIVER=postgres PG_HOST=db PG_PASSWORD=secret ./server

  # Run on different port
  ./server -port=3000

SEE ALSO:
  - app/app.go: Dependency wiring
  - api/server.go: Router configuration
  - api/scheduler.go: Reminder job
*/
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/debt-ledger/api"
	"github.com/warp/debt-ledger/app"
	"github.com/warp/debt-ledger/config"
	"github.com/warp/debt-ledger/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Flags override the environment
	flag.StringVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flag.StringVar(&cfg.SQLitePath, "db", cfg.SQLitePath, "SQLite database path")
	flag.StringVar(&cfg.StoreDriver, "store", cfg.StoreDriver, "Store driver: sqlite, postgres, memory")
	flag.Parse()

	logger := logging.Setup(cfg.LogLevel)

	a, err := app.Open(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	metrics := api.NewMetrics()
	a.Scheduler.Metrics = metrics

	// Initialize handler
	handler := api.NewHandler(a.Ledger, a.Scheduler, a.Reporter)
	handler.Audit = a.Audit
	handler.Store = a.Store
	handler.Archive = a.Archive
	handler.Logger = logger

	// Reminder job
	job := api.NewReminderJob(a.Ledger, a.Scheduler)
	job.Interval = cfg.ReminderInterval
	job.Enabled = cfg.ReminderEnabled
	job.Metrics = metrics
	job.Logger = logger
	job.Start()

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.NewRouter(handler, metrics),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "addr", "http://localhost:"+cfg.Port, "store", cfg.StoreDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	job.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server stopped")
}
