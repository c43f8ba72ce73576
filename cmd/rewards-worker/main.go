package main

import (
	"context"
	"errors"
	"os"
	"time"

	"rewards/internal/amqp"
	"rewards/internal/cli"
	"rewards/internal/config"
	applog "rewards/internal/log"
	gsheet "rewards/internal/sheets/google"
	"rewards/internal/sources/api"
	"rewards/internal/storage"
	"rewards/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg := cli.LoadAndValidateConfig(cli.SetupLogger(applog.ComponentWorker, 0), (*config.Config).ValidateExport)
	logger := cli.SetupLogger(applog.ComponentWorker, cfg.SlogLevel())
	logger.Info("Starting rewards-worker")

	exporter, err := gsheet.NewFromEnv(context.Background(), cfg.GoogleSpreadsheetID, cfg.GoogleReportSheetName, logger)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets export enabled",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", cfg.GoogleReportSheetName)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}

	var replica *storage.SQLiteRepository
	if cfg.ReplicaSyncInterval > 0 {
		replica, err = storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to initialize SQLite replica", applog.FieldError, err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if err := amqpClient.Close(); err != nil {
			logger.Warn("AMQP close error", applog.FieldError, err)
		}
		if replica != nil {
			if err := replica.Close(); err != nil {
				logger.Warn("Replica close error", applog.FieldError, err)
			}
		}
	})

	if replica != nil {
		upstream, err := api.New(cfg.RewardsAPIURL, cfg.RewardsAPITimeout)
		if err != nil {
			logger.Error("Failed to initialize rewards API client", applog.FieldError, err)
			os.Exit(1)
		}
		replicaSync := worker.NewReplicaSync(upstream, replica, logger)
		go replicaSync.Run(ctx, cfg.ReplicaSyncInterval)
		logger.Info("Replica sync enabled", "interval", cfg.ReplicaSyncInterval, "path", cfg.SQLiteDBPath)
	}

	exportWorker := worker.NewExportWorker(exporter, logger)
	go func() {
		if err := amqpClient.ConsumeReports(ctx, exportWorker.HandleReportMessage); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Report consumption failed", applog.FieldError, err)
			os.Exit(1)
		}
	}()

	logger.Info("Worker started, waiting for report events", "queue", cfg.AMQPQueue)
	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped", "exported", exportWorker.Exported())
}
