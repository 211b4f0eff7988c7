// Command remind runs the reminder pipeline once and exits: refresh debt
// statuses, create due reminders, send pending notifications. It is meant
// for cron when the server's built-in job is disabled.
//
//	remind              # run now
//	remind -dry-run     # refresh and scan, do not send
//	remind -timeout=2m
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/debt-ledger/api"
	"github.com/warp/debt-ledger/app"
	"github.com/warp/debt-ledger/config"
	"github.com/warp/debt-ledger/ledger"
	"github.com/warp/debt-ledger/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		return 1
	}

	dryRun := flag.Bool("dry-run", false, "refresh statuses and list reminders that would be created, without sending")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall deadline for the run")
	flag.StringVar(&cfg.SQLitePath, "db", cfg.SQLitePath, "SQLite database path")
	flag.StringVar(&cfg.StoreDriver, "store", cfg.StoreDriver, "Store driver: sqlite, postgres")
	flag.Parse()

	logger := logging.Setup(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		return 1
	}
	defer a.Close()

	if *dryRun {
		return dryRunReport(ctx, a, logger)
	}

	rep, err := api.NewReminderJob(a.Ledger, a.Scheduler).RunNow(ctx)
	json.NewEncoder(os.Stdout).Encode(rep)
	if err != nil {
		logger.Error("reminder run finished with errors", "error", err)
		return 1
	}
	return 0
}

// dryRunReport prints the debts a scan would remind today.
func dryRunReport(ctx context.Context, a *app.App, logger *slog.Logger) int {
	if _, err := a.Ledger.RefreshStatuses(ctx); err != nil {
		logger.Error("refresh statuses", "error", err)
		return 1
	}
	debts, err := a.Scheduler.DueReminders(ctx, ledger.Today(a.Clock))
	if err != nil {
		logger.Error("list due reminders", "error", err)
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	for _, d := range debts {
		enc.Encode(map[string]string{
			"debt_id":  string(d.ID),
			"client":   string(d.ClientID),
			"deadline": d.Deadline.String(),
		})
	}
	return 0
}
