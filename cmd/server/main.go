package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"incidentwatch/api"
	"incidentwatch/app"
	"incidentwatch/config"
	"incidentwatch/logging"
)

const refreshTimeout = 10 * time.Minute

func main() {
	cfg, err := config.Load()
	logging.Init(cfg.LogLevel, nil)
	if err != nil {
		logging.Fatal("invalid configuration", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg)
	if err != nil {
		logging.Fatal("failed to start", "err", err)
	}
	defer a.Close()

	consumer, err := a.NewArticleConsumer()
	if err != nil {
		logging.Error("failed to create kafka consumer, queue input disabled", "err", err)
	} else if consumer != nil {
		if err := consumer.Start(ctx); err != nil {
			logging.Error("failed to start kafka consumer", "err", err)
		}
		defer consumer.Close()
	}

	if cfg.Schedule.RefreshCron != "" && len(a.SourceNames) > 0 {
		scheduler, err := app.NewScheduler(cfg.Schedule.RefreshCron, refreshTimeout, func(ctx context.Context) error {
			_, err := a.Pipeline.RunSources(ctx)
			return err
		})
		if err != nil {
			logging.Fatal("invalid refresh schedule", "err", err)
		}
		scheduler.Start()
		defer func() { <-scheduler.Stop().Done() }()
		logging.Info("refresh scheduled", "schedule", cfg.Schedule.RefreshCron, "sources", a.SourceNames)
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.NewRouter(a.Pipeline),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logging.Info("starting API server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logging.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error("shutdown error", "err", err)
	}
}
