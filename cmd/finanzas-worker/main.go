package main

import (
	"context"
	"os"
	"time"

	"finanzas/internal/amqp"
	"finanzas/internal/backend"
	"finanzas/internal/cache"
	"finanzas/internal/cli"
	"finanzas/internal/log"
	"finanzas/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Stdout, log.ComponentWorker)
	logger.Info("Starting finanzas-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if err := cfg.ValidateMirror(); err != nil {
		logger.Error("Mirror configuration invalid", log.FieldError, err)
		os.Exit(1)
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	app, err := cli.OpenLedger(startCtx, cfg, logger, false)
	if err != nil {
		cancelStart()
		logger.Error("Failed to open primary store", log.FieldError, err, log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}
	target, err := backend.NewSheetsClient(startCtx, cfg.GoogleSpreadsheetID, backend.GoogleAuth(cfg))
	cancelStart()
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		_ = app.Close()
		os.Exit(1)
	}
	logger.Info("Google Sheets mirror initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	// Without a broker the worker still reconciles on every tick.
	var consumer worker.Consumer
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, running periodic reconcile only", log.FieldError, err)
		} else {
			consumer = amqpClient
		}
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if amqpClient != nil {
			_ = amqpClient.Close()
		}
		if err := app.Close(); err != nil {
			logger.Error("Failed to close primary store", log.FieldError, err)
		}
	})

	manager := cache.NewManager(logger)
	manager.Register(target.SheetIDCache())
	go manager.Run(ctx, time.Minute)

	w := worker.NewMirrorWorker(app.Backend.Table, target, app.Ledger.Schemas(), logger)
	if err := w.Run(ctx, consumer, cfg.MirrorInterval); err != nil {
		logger.Error("Mirror worker stopped", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
