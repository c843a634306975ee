package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"finanzas/internal/backend"
	"finanzas/internal/cache"
	"finanzas/internal/cli"
	apphttp "finanzas/internal/http"
	"finanzas/internal/log"
	gsheet "finanzas/internal/sheets/google"
)

const cacheSweepInterval = time.Minute

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Stdout, log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	app, err := cli.OpenLedger(context.Background(), cfg, logger, true)
	if err != nil {
		logger.Error("Failed to open ledger", log.FieldError, err, log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}

	var ready func(ctx context.Context) error
	if p, ok := app.Backend.Table.(backend.Pinger); ok {
		ready = p.Ping
	}

	srv := apphttp.NewServer(":"+cfg.Port, app.Ledger, apphttp.Options{
		RateLimit: cfg.RateLimit,
		Ready:     ready,
		Logger:    logger,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := app.Close(); err != nil {
			logger.Error("Failed to close backend", log.FieldError, err)
		}
	})

	if client, ok := app.Backend.Table.(*gsheet.Client); ok {
		manager := cache.NewManager(logger)
		manager.Register(client.SheetIDCache())
		go manager.Run(ctx, cacheSweepInterval)
	}

	logger.Info("Starting finanzas server",
		"port", cfg.Port,
		log.FieldBackend, cfg.DataBackend,
		log.FieldOperation, log.OpStartup)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
