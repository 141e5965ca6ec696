package app

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/starland/ledger/internal/auth"
	"github.com/starland/ledger/internal/config"
	"github.com/starland/ledger/internal/events"
	"github.com/starland/ledger/internal/repository/local"
	"github.com/starland/ledger/internal/repository/mongodb"
	"github.com/starland/ledger/internal/repository/postgres"
	"github.com/starland/ledger/internal/repository/remote"
	"github.com/starland/ledger/internal/repository/sheets"
	"github.com/starland/ledger/internal/scheduler"
	"github.com/starland/ledger/internal/server/handlers"
	"github.com/starland/ledger/internal/server/router"
	"github.com/starland/ledger/internal/service/audit"
	"github.com/starland/ledger/internal/service/dashboard"
	"github.com/starland/ledger/internal/service/notify"
	"github.com/starland/ledger/internal/service/outbox"
	"github.com/starland/ledger/internal/service/records"
	"github.com/starland/ledger/internal/service/reporting"
	"github.com/starland/ledger/internal/service/users"
	"github.com/starland/ledger/pkg/clients/supabase"
	"github.com/starland/ledger/pkg/clients/whatsapp"
)

// App holds the wired services shared by the server and the CLI.
type App struct {
	Config    config.Config
	Policy    auth.Policy
	Location  *time.Location
	Store     *local.Store
	AuthAPI   *supabase.Client
	Resolver  *auth.Resolver
	Records   *records.Set
	Dashboard *dashboard.Service
	Reporting *reporting.Service
	Audit     *audit.Service
	Users     *users.Service
	Outbox    *outbox.Service
	// Optional integrations, nil when not configured.
	Snapshots *mongodb.MongoDBRepository
	Notifier  *notify.Service

	logger  *zap.Logger
	closers []func(context.Context) error
}

// Build opens every store and wires the services. Optional integrations that fail to start are logged and skipped.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	loc, err := cfg.Reporting.Location()
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Policy: auth.DefaultPolicy(), Location: loc, logger: logger}

	a.Store, err = local.Open(cfg.Store.LocalPath, logger.Named("repo.local"))
	if err != nil {
		return nil, err
	}
	a.onClose(func(context.Context) error { return a.Store.Close() })

	callerTables, serviceTables, err := a.openTables(ctx)
	if err != nil {
		_ = a.Close(ctx)
		return nil, err
	}

	publisher := a.openPublisher()

	a.AuthAPI = supabase.NewClient(cfg.Supabase)
	a.Resolver = auth.NewResolver(a.AuthAPI, callerTables, auth.NewTokenVerifier(cfg.Supabase.JWTSecret), logger.Named("auth"))
	a.Records = records.NewSet(callerTables, a.Store, publisher, logger.Named("svc.records"))
	a.Dashboard = dashboard.NewService(a.Records, logger.Named("svc.dashboard"))
	a.Reporting = reporting.NewService(a.Records, loc, logger.Named("svc.reporting"), a.openArchivers(ctx)...)
	a.Audit = audit.NewService(a.Store, logger.Named("svc.audit"))
	a.Users = users.NewService(a.AuthAPI, serviceTables, a.Store, logger.Named("svc.users"))
	a.Outbox = outbox.NewService(a.Store, serviceTables, publisher, cfg.Sync, logger.Named("svc"))

	if cfg.MongoDB.Enabled() {
		repo, err := mongodb.NewMongoDBRepository(ctx, cfg.MongoDB)
		if err != nil {
			logger.Warn("snapshot archive disabled", zap.Error(err))
		} else {
			a.Snapshots = repo
			a.onClose(repo.Close)
		}
	}

	if cfg.WhatsApp.Enabled() {
		sender := whatsapp.NewClient(cfg.WhatsApp)
		a.Notifier = notify.NewService(a.Dashboard, sender, cfg.WhatsApp.ReportRecipient, loc, logger.Named("svc"))
	}

	return a, nil
}

func (a *App) openTables(ctx context.Context) (remote.Tables, remote.Tables, error) {
	cfg := a.Config
	if cfg.Store.Driver == config.StoreDriverPostgres {
		pool, err := postgres.NewPool(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		a.onClose(func(context.Context) error { pool.Close(); return nil })
		tables := postgres.NewTables(pool, a.logger.Named("repo.postgres"))
		return tables, tables, nil
	}

	caller := remote.NewRESTTables(supabase.NewHTTPClient(cfg.Supabase.URL, cfg.Supabase.AnonKey), cfg.Supabase.AnonKey, a.logger.Named("repo.rest"))
	service := remote.NewRESTTables(supabase.NewHTTPClient(cfg.Supabase.URL, cfg.Supabase.ServiceKey), cfg.Supabase.ServiceKey, a.logger.Named("repo.rest"))
	return caller, service, nil
}

func (a *App) openPublisher() events.Publisher {
	if !a.Config.AMQP.Enabled() {
		return events.Nop{}
	}
	pub, err := events.NewAMQPPublisher(a.Config.AMQP, a.logger.Named("events"))
	if err != nil {
		a.logger.Warn("record events disabled", zap.Error(err))
		return events.Nop{}
	}
	a.onClose(func(context.Context) error { return pub.Close() })
	return pub
}

func (a *App) openArchivers(ctx context.Context) []reporting.Archiver {
	var archivers []reporting.Archiver
	if a.Config.S3.Enabled() {
		s3, err := reporting.NewS3Archiver(a.Config.S3)
		if err != nil {
			a.logger.Warn("s3 report archive disabled", zap.Error(err))
		} else {
			archivers = append(archivers, s3)
		}
	}
	if a.Config.Sheets.Enabled() {
		repo, err := sheets.NewGoogleSheetRepository(ctx, a.Config.Sheets, a.logger.Named("repo.sheets"))
		if err != nil {
			a.logger.Warn("sheets report archive disabled", zap.Error(err))
		} else {
			archivers = append(archivers, reporting.NewSheetsArchiver(repo))
		}
	}
	return archivers
}

// Engine builds the HTTP engine.
func (a *App) Engine() *gin.Engine {
	var snapshots handlers.SnapshotReader
	if a.Snapshots != nil {
		snapshots = a.Snapshots
	}

	return router.New(router.Deps{
		Policy:         a.Policy,
		Sessions:       a.Resolver,
		Audit:          a.Audit,
		Auth:           handlers.NewAuthHandler(a.AuthAPI, a.Resolver, a.Users, a.Policy, a.Config.Server.AllowRegistration, a.logger.Named("handlers.auth")),
		Records:        a.Records,
		Dashboard:      handlers.NewDashboardHandler(a.Dashboard, a.Records, snapshots, a.logger.Named("handlers.dashboard")),
		Reports:        handlers.NewReportHandler(a.Reporting, a.Audit, a.logger.Named("handlers.reports")),
		Admin:          handlers.NewAdminHandler(a.Users, a.Outbox, a.logger.Named("handlers.admin")),
		AllowedOrigins: a.Config.Server.AllowedOrigins,
		WebDir:         a.Config.Server.WebDir,
	}, a.logger.Named("router"))
}

// Scheduler builds the cron scheduler for the configured jobs.
func (a *App) Scheduler() (*scheduler.Scheduler, error) {
	jobs := scheduler.Jobs{Outbox: a.Outbox}
	if a.Snapshots != nil {
		jobs.Dashboard = a.Dashboard
		jobs.Snapshots = a.Snapshots
	}
	if a.Notifier != nil {
		jobs.Notifier = a.Notifier
	}
	return scheduler.NewScheduler(a.Config, jobs, a.logger)
}

func (a *App) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

// Close releases every store in reverse opening order.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
