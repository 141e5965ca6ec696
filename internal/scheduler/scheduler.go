package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/starland/ledger/internal/config"
	"github.com/starland/ledger/internal/domain/models"
	"github.com/starland/ledger/internal/service/outbox"
)

const jobTimeout = 2 * time.Minute

// Flusher pushes the local outbox to the remote store.
type Flusher interface {
	Flush(ctx context.Context) (outbox.Result, error)
}

// Snapshotter summarises one day.
type Snapshotter interface {
	Snapshot(ctx context.Context, day time.Time) (models.DailyReport, error)
}

// SnapshotStore keeps daily snapshots.
type SnapshotStore interface {
	SaveDailyReport(ctx context.Context, report models.DailyReport) error
}

// Notifier delivers the weekly summary.
type Notifier interface {
	SendWeekly(ctx context.Context) error
}

// Jobs are the optional collaborators. Nil members are not scheduled.
type Jobs struct {
	Outbox    Flusher
	Dashboard Snapshotter
	Snapshots SnapshotStore
	Notifier  Notifier
}

// Scheduler runs the periodic sync, snapshot and summary jobs.
type Scheduler struct {
	cron   *cron.Cron
	jobs   Jobs
	cfg    config.Config
	loc    *time.Location
	logger *zap.Logger
	now    func() time.Time
}

// NewScheduler creates a scheduler in the configured timezone.
func NewScheduler(cfg config.Config, jobs Jobs, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	loc, err := cfg.Reporting.Location()
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		cron:   cron.New(cron.WithLocation(loc)),
		jobs:   jobs,
		cfg:    cfg,
		loc:    loc,
		logger: logger.Named("scheduler"),
		now:    time.Now,
	}, nil
}

// Start registers every configured job and starts the cron loop.
func (s *Scheduler) Start() error {
	if err := s.register(); err != nil {
		return err
	}
	s.logger.Info("starting scheduler", zap.Int("jobs", len(s.cron.Entries())))
	s.cron.Start()
	return nil
}

func (s *Scheduler) register() error {
	if s.jobs.Outbox != nil {
		if _, err := s.cron.AddFunc(s.cfg.Sync.CronSchedule, s.flushOutbox); err != nil {
			return fmt.Errorf("schedule outbox flush %q: %w", s.cfg.Sync.CronSchedule, err)
		}
	}
	if s.jobs.Dashboard != nil && s.jobs.Snapshots != nil {
		if _, err := s.cron.AddFunc(s.cfg.Reporting.SnapshotCron, s.archiveSnapshot); err != nil {
			return fmt.Errorf("schedule daily snapshot %q: %w", s.cfg.Reporting.SnapshotCron, err)
		}
	}
	if s.jobs.Notifier != nil {
		if _, err := s.cron.AddFunc(s.cfg.Reporting.WeeklyCron, s.sendWeeklySummary); err != nil {
			return fmt.Errorf("schedule weekly summary %q: %w", s.cfg.Reporting.WeeklyCron, err)
		}
	}
	return nil
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) flushOutbox() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	res, err := s.jobs.Outbox.Flush(ctx)
	switch {
	case errors.Is(err, outbox.ErrFlushInProgress):
		s.logger.Debug("outbox flush skipped, already running")
	case err != nil:
		s.logger.Error("outbox flush failed", zap.Error(err))
	case res.Attempted > 0:
		s.logger.Info("outbox flushed",
			zap.Int("attempted", res.Attempted),
			zap.Int("synced", res.Synced),
			zap.Int("failed", res.Failed),
			zap.Int("parked", res.Parked),
		)
	}
}

func (s *Scheduler) archiveSnapshot() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	report, err := s.jobs.Dashboard.Snapshot(ctx, s.now().In(s.loc))
	if err != nil {
		s.logger.Error("failed to build daily snapshot", zap.Error(err))
		return
	}
	if err := s.jobs.Snapshots.SaveDailyReport(ctx, report); err != nil {
		s.logger.Error("failed to store daily snapshot", zap.String("date", report.Date), zap.Error(err))
		return
	}
	s.logger.Info("daily snapshot stored", zap.String("date", report.Date))
}

func (s *Scheduler) sendWeeklySummary() {
	s.logger.Info("generating weekly summary")
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if err := s.jobs.Notifier.SendWeekly(ctx); err != nil {
		s.logger.Error("failed to send weekly summary", zap.Error(err))
	}
}
