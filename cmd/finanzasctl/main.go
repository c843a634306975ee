package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"finanzas/internal/cli"
	"finanzas/internal/commands"
	"finanzas/internal/config"
	"finanzas/internal/log"
	"finanzas/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Stderr, log.ComponentCLI)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	open := func(ctx context.Context) (*services.Ledger, func() error, error) {
		cfg := config.Load()
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
		app, err := cli.OpenLedger(ctx, cfg, logger, true)
		if err != nil {
			return nil, nil, err
		}
		return app.Ledger, app.Close, nil
	}

	root, release := commands.NewRootCmd(open)
	err := root.ExecuteContext(ctx)
	if cerr := release(); cerr != nil {
		logger.Warn("Failed to close ledger", log.FieldError, cerr)
	}
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", commands.Explain(err))
		os.Exit(1)
	}
}
