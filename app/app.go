/*
app.go - Dependency wiring shared by the server and the reminder command

PURPOSE:
  Turns a config.Config into a running engine: opens the configured store,
  attaches the optional MongoDB audit log and S3 report archive, and builds
  the ledger, reminder scheduler and reporter around them.

STORES:
  sqlite    Single file, default. Also serves as the audit log.
  postgres  pgx pool. Also serves as the audit log.
  memory    Process-local, for demos. Also serves as the audit log.

  When MONGO_HOST is set the audit log moves to MongoDB regardless of the
  store driver.

USAGE:
  a, err := app.Open(ctx, cfg, logger)
  if err != nil { ... }
  defer a.Close()

SEE ALSO:
  - cmd/server/main.go: HTTP server
  - cmd/remind/main.go: One-shot reminder run
*/
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/warp/debt-ledger/config"
	"github.com/warp/debt-ledger/export"
	"github.com/warp/debt-ledger/ledger"
	"github.com/warp/debt-ledger/ledger/store"
	"github.com/warp/debt-ledger/mail"
	"github.com/warp/debt-ledger/store/mongo"
	"github.com/warp/debt-ledger/store/postgres"
	"github.com/warp/debt-ledger/store/sqlite"
)

// backend is what every store driver provides.
type backend interface {
	ledger.TxRepository
	ledger.AuditLog
	ledger.Resetter
}

// App holds the wired engine components.
type App struct {
	Config    config.Config
	Logger    *slog.Logger
	Clock     ledger.Clock
	Store     ledger.Resetter
	Audit     ledger.AuditLog
	Mailer    *mail.LogMailer
	Ledger    *ledger.Ledger
	Scheduler *ledger.ReminderScheduler
	Reporter  *ledger.Reporter
	Archive   *export.S3Archive // nil unless S3 is configured

	closers []func() error
}

// Open connects everything cfg asks for. On error, whatever was already
// opened is closed.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	a := &App{
		Config: cfg,
		Logger: logger,
		Clock:  ledger.SystemClock{Location: cfg.Location},
	}

	repo, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	a.Store = repo
	a.Audit = repo

	if cfg.Mongo.Enabled {
		audit, err := mongo.Connect(ctx, cfg.Mongo.URI(), cfg.Mongo.DB)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect mongo audit log: %w", err)
		}
		a.closers = append(a.closers, func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return audit.Close(ctx)
		})
		a.Audit = audit
		logger.Info("audit log on mongodb", "db", cfg.Mongo.DB, "collection", mongo.AuditCollection)
	}

	if cfg.S3.Enabled {
		archive, err := export.NewS3Archive(ctx, export.S3Info{
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Region:    cfg.S3.Region,
			Bucket:    cfg.S3.Bucket,
			Prefix:    cfg.S3.Prefix,
			UseSSL:    cfg.S3.UseSSL,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open report archive: %w", err)
		}
		a.Archive = archive
		logger.Info("report archive enabled", "bucket", cfg.S3.Bucket)
	}

	a.Mailer = mail.NewLogMailer(logger)

	a.Ledger = ledger.NewLedger(repo, a.Clock)
	a.Ledger.Audit = a.Audit
	a.Ledger.Logger = logger

	a.Scheduler = ledger.NewReminderScheduler(repo, a.Clock, a.Mailer, cfg.ReminderSender)
	a.Scheduler.Audit = a.Audit
	a.Scheduler.Logger = logger
	a.Scheduler.SendTimeout = cfg.MailTimeout
	a.Scheduler.Concurrency = cfg.SendConcurrency

	a.Reporter = ledger.NewReporter(repo, a.Clock)
	return a, nil
}

func (a *App) openStore(ctx context.Context) (backend, error) {
	switch a.Config.StoreDriver {
	case config.DriverMemory:
		a.Logger.Warn("using in-memory store, data is lost on exit")
		return store.NewMemory(), nil

	case config.DriverPostgres:
		s, err := postgres.New(ctx, a.Config.Postgres.DSN())
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		a.closers = append(a.closers, func() error { s.Close(); return nil })
		a.Logger.Info("store opened", "driver", "postgres", "host", a.Config.Postgres.Host, "db", a.Config.Postgres.DB)
		return s, nil

	default:
		path := a.Config.SQLitePath
		if path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
		s, err := sqlite.New(path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		a.closers = append(a.closers, s.Close)
		a.Logger.Info("store opened", "driver", "sqlite", "path", path)
		return s, nil
	}
}

// Close releases connections in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
