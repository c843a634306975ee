// Package cli provides common process initialization shared by
// cmd/finanzas, cmd/finanzas-worker and cmd/finanzasctl.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finanzas/internal/backend"
	"finanzas/internal/config"
	"finanzas/internal/log"
	"finanzas/internal/services"

	"github.com/joho/godotenv"
)

// SetupLogger builds a text logger at LOG_LEVEL writing to out and makes
// it the slog default.
func SetupLogger(out io.Writer, component string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Output = out
	cfg.Component = component
	level, err := log.ParseLevel(os.Getenv("LOG_LEVEL"))
	cfg.Level = level
	logger := log.New(cfg)
	if err != nil {
		logger.Warn("Ignoring LOG_LEVEL", log.FieldError, err)
	}
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// SheetNames returns the configured tab names.
func SheetNames(cfg *config.Config) services.SheetNames {
	return services.SheetNames{
		Transactions: cfg.TransactionsSheet,
		Savings:      cfg.SavingsSheet,
		Goals:        cfg.GoalsSheet,
	}
}

// App is an opened ledger with everything it holds open.
type App struct {
	Ledger  *services.Ledger
	Backend *backend.BackendResult

	closePublisher backend.CleanupFunc
}

// Close releases the publisher and the backend.
func (a *App) Close() error {
	var errs []error
	if a.closePublisher != nil {
		errs = append(errs, a.closePublisher())
	}
	errs = append(errs, a.Backend.Close())
	return errors.Join(errs...)
}

// OpenLedger opens the configured backend, connects the change-event
// publisher when withEvents is set, and writes missing header rows.
func OpenLedger(ctx context.Context, cfg *config.Config, logger *log.Logger, withEvents bool) (*App, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	names := SheetNames(cfg)
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg, names.Schemas())
	if err != nil {
		return nil, err
	}
	app := &App{Backend: res}

	var publisher services.EventPublisher
	if withEvents {
		publisher, app.closePublisher = backend.NewPublisher(cfg, logger)
	}
	app.Ledger = services.NewLedger(res.Table, names, publisher, logger)

	if err := app.Ledger.Init(ctx); err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("initialize sheets: %w", err)
	}
	return app, nil
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String(), log.FieldOperation, log.OpShutdown)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
