package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"finsight/internal/amqp"
	"finsight/internal/cli"
	"finsight/internal/log"
	"finsight/internal/predictor"
	"finsight/internal/services"
	"finsight/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)

	logger.Info("Starting progress-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the progress worker")
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	predictorClient := predictor.NewClient(cfg.PredictorBaseURL, cfg.PredictorTimeout)
	goalService := services.NewGoalService(repo, predictorClient)
	progressWorker := worker.NewProgressWorker(repo, goalService)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dial := func() (*amqp.Client, error) {
		return amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	}
	handler := func(event *amqp.TransactionEvent) error {
		return progressWorker.HandleTransactionEvent(ctx, event)
	}

	if err := amqp.ConsumeForever(ctx, dial, handler); err != nil && ctx.Err() == nil {
		logger.Error("Worker stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker shut down")
}
