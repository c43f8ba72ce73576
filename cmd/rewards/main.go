package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"rewards/internal/amqp"
	"rewards/internal/backend"
	"rewards/internal/cli"
	"rewards/internal/core"
	apphttp "rewards/internal/http"
	applog "rewards/internal/log"
	"rewards/internal/services"
	"rewards/internal/sources/api"
)

func main() {
	cli.LoadEnvFile()

	cfg := cli.LoadAndValidateConfig(cli.SetupLogger(applog.ComponentApp, 0))
	logger := cli.SetupLogger(applog.ComponentApp, cfg.SlogLevel())

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", applog.FieldError, err, applog.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}

	opts := []services.Option{
		services.WithLogger(logger),
		services.WithFetchTimeout(cfg.FetchTimeout),
	}

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, report events disabled", applog.FieldError, err)
		} else {
			opts = append(opts, services.WithPublisher(amqpClient))
			logger.Info("Report events enabled", "exchange", cfg.AMQPExchange)
		}
	}

	reports := services.NewReportService(result.Source, opts...)

	serverOpts := apphttp.Options{
		WindowDays:         cfg.ReportWindowDays,
		RefreshesPerMinute: cfg.RefreshesPerMinute,
		Logger:             logger,
	}
	if client, ok := result.Source.(*api.Client); ok {
		serverOpts.Records = services.NewRecordService(client, logger)
		logger.Info("Record endpoints enabled", "record_cache_size", cfg.RecordCacheSize)
	}

	srv := apphttp.NewServer(":"+cfg.Port, reports, serverOpts)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = cfg.FetchTimeout + 10*time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", applog.FieldError, err)
			}
		}
		if result.Cleanup != nil {
			if err := result.Cleanup(); err != nil {
				logger.Warn("Backend cleanup error", applog.FieldError, err)
			}
		}
	})

	// Warm up so /readyz turns green without waiting for a visitor.
	go func() {
		window := core.LastDays(time.Now().UTC(), cfg.ReportWindowDays)
		if _, err := reports.Refresh(ctx, "startup", window); err != nil && !errors.Is(err, services.ErrSuperseded) {
			logger.Warn("Initial report refresh failed", applog.FieldError, err)
		}
	}()

	logger.Info("Starting rewards server", "port", cfg.Port, applog.FieldBackend, cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
