/*
scheduler.go - Automated reminder job

PURPOSE:
  Periodically brings the ledger up to date and works the reminder queue:
  re-derives debt statuses, schedules reminders for debts entering the
  reminder window, and sends every notification that has come due.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each tick is independent; a failing step is logged and the next step
    still runs
  - Safe to run next to manual API calls and other instances: reminder
    uniqueness and send claims are enforced by the store

CONFIGURATION:
  - Interval: How often to run (default: 1 hour)
  - Enabled:  Whether the job is active (default: true)

USAGE:
  job := NewReminderJob(ledger, scheduler)
  job.Start()
  // ... later
  job.Stop()

SEE ALSO:
  - handlers.go: create_reminders and send_pending endpoints (manual runs)
  - ledger/reminder.go: ReminderScheduler
*/
package api

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/debt-ledger/ledger"
)

// JobReport summarizes one run of the reminder job.
type JobReport struct {
	StartedAt        time.Time         `json:"started_at"`
	StatusesUpdated  int               `json:"statuses_updated"`
	RemindersCreated int               `json:"reminders_created"`
	Send             ledger.SendResult `json:"send"`
}

// ReminderJob runs the reminder pipeline on a ticker.
type ReminderJob struct {
	Ledger    *ledger.Ledger
	Scheduler *ledger.ReminderScheduler
	Interval  time.Duration
	Enabled   bool
	Timeout   time.Duration // per run, 0 = no limit
	Metrics   *Metrics      // optional
	Logger    *slog.Logger  // optional

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewReminderJob creates a job with the default one-hour interval.
func NewReminderJob(l *ledger.Ledger, s *ledger.ReminderScheduler) *ReminderJob {
	return &ReminderJob{
		Ledger:    l,
		Scheduler: s,
		Interval:  1 * time.Hour,
		Enabled:   true,
	}
}

func (j *ReminderJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

// Start begins the job. It runs once immediately, then every Interval.
func (j *ReminderJob) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.Enabled {
		j.logger().Info("reminder job disabled, not starting")
		return
	}
	if j.ticker != nil {
		return
	}

	j.ticker = time.NewTicker(j.Interval)
	j.stop = make(chan struct{})
	j.wg.Add(1)

	go j.run()

	j.logger().Info("reminder job started", "interval", j.Interval)
}

// Stop stops the job and waits for an in-progress run to finish.
func (j *ReminderJob) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.ticker != nil {
		j.ticker.Stop()
		close(j.stop)
		j.wg.Wait()
		j.ticker = nil
		j.logger().Info("reminder job stopped")
	}
}

func (j *ReminderJob) run() {
	defer j.wg.Done()

	j.tick()
	for {
		select {
		case <-j.ticker.C:
			j.tick()
		case <-j.stop:
			return
		}
	}
}

func (j *ReminderJob) tick() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-j.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	if _, err := j.RunNow(ctx); err != nil {
		j.logger().Warn("reminder job finished with errors", "error", err)
	}
}

// RunNow performs one run: refresh statuses, scan for reminders, send due.
func (j *ReminderJob) RunNow(ctx context.Context) (JobReport, error) {
	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}

	now := j.Ledger.Clock.Now()
	rep := JobReport{StartedAt: now}
	var errs []error

	changed, err := j.Ledger.RefreshStatuses(ctx)
	rep.StatusesUpdated = changed
	if err != nil {
		errs = append(errs, err)
	}

	created, err := j.Scheduler.ScanForReminders(ctx, ledger.DateOf(now), "")
	rep.RemindersCreated = len(created)
	if err != nil {
		errs = append(errs, err)
	}

	rep.Send, err = j.Scheduler.SendDue(ctx, now)
	if err != nil {
		errs = append(errs, err)
	}

	err = errors.Join(errs...)
	if j.Metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		j.Metrics.JobRun(outcome)
	}

	j.logger().Info("reminder job run",
		"statuses_updated", rep.StatusesUpdated,
		"reminders_created", rep.RemindersCreated,
		"sent", rep.Send.Sent,
		"failed", rep.Send.Failed,
		"skipped", rep.Send.Skipped)

	return rep, err
}
