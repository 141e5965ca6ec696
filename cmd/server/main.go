package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/starland/ledger/internal/app"
	"github.com/starland/ledger/internal/config"
	"github.com/starland/ledger/pkg/logger"
)

func main() {
	cfg, err := config.Load(os.Getenv("ENV_FILE"))
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.LogLevel))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ledger, err := app.Build(ctx, *cfg, baseLogger)
	if err != nil {
		baseLogger.Fatal("failed to wire services", zap.Error(err))
	}
	defer func() {
		if err := ledger.Close(context.Background()); err != nil {
			baseLogger.Error("failed to close stores", zap.Error(err))
		}
	}()

	sched, err := ledger.Scheduler()
	if err != nil {
		baseLogger.Fatal("failed to init scheduler", zap.Error(err))
	}
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to schedule jobs", zap.Error(err))
	}
	defer sched.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      ledger.Engine(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port), zap.String("store", cfg.Store.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}
