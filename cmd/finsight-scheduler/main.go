package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"finsight/internal/cli"
	"finsight/internal/log"
	"finsight/internal/predictor"
	"finsight/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentScheduler)

	logger.Info("Starting finsight-scheduler")

	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	predictorClient := predictor.NewClient(cfg.PredictorBaseURL, cfg.PredictorTimeout)

	healthService := services.NewHealthService(repo, predictorClient)
	forecastService := services.NewForecastService(repo, predictorClient)
	goalService := services.NewGoalService(repo, predictorClient)
	scheduler := services.NewScheduler(repo, healthService, forecastService, goalService, cfg.ActiveOwnerWindow)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Sweeps configured",
		"health_interval", cfg.HealthInterval,
		"forecast_interval", cfg.ForecastInterval,
		"progress_interval", cfg.ProgressInterval,
		"active_owner_window", cfg.ActiveOwnerWindow)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runSweep(ctx, "health", cfg.HealthInterval, scheduler.RunHealthSweep)
	})
	g.Go(func() error {
		return runSweep(ctx, "forecast", cfg.ForecastInterval, scheduler.RunForecastSweep)
	})
	g.Go(func() error {
		return runSweep(ctx, "progress", cfg.ProgressInterval, scheduler.RunProgressSweep)
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		logger.Error("Scheduler stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("Scheduler shut down")
}

// runSweep runs one sweep immediately, then on every tick until ctx is
// cancelled. Sweep-level errors (listing owners/goals) are logged and
// retried on the next tick.
func runSweep(ctx context.Context, name string, interval time.Duration, sweep func(context.Context) (services.SweepResult, error)) error {
	run := func() {
		if _, err := sweep(ctx); err != nil && ctx.Err() == nil {
			slog.ErrorContext(ctx, "Sweep failed", "sweep", name, "error", err)
		}
	}

	run()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			run()
		}
	}
}
