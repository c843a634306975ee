// Package commands implements the finanzasctl command tree.
package commands

import (
	"context"
	"errors"
	"fmt"

	"finanzas/internal/core"
	"finanzas/internal/services"

	"github.com/spf13/cobra"
)

// Opener opens the ledger for one command run. The returned func releases it.
type Opener func(ctx context.Context) (*services.Ledger, func() error, error)

type contextKey struct{}

// NewRootCmd builds finanzasctl. open runs once, before any subcommand;
// the returned func releases whatever it opened and is safe to call when
// nothing was.
func NewRootCmd(open Opener) (*cobra.Command, func() error) {
	var release func() error
	root := &cobra.Command{
		Use:           "finanzasctl",
		Short:         "Manage transactions, savings and goals kept in a spreadsheet",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			ledger, closeFn, err := open(cmd.Context())
			if err != nil {
				return fmt.Errorf("open ledger: %w", err)
			}
			release = closeFn
			cmd.SetContext(context.WithValue(cmd.Context(), contextKey{}, ledger))
			return nil
		},
	}
	root.AddCommand(transactionsCmd())
	root.AddCommand(savingsCmd())
	root.AddCommand(goalsCmd())
	root.AddCommand(summaryCmd())
	return root, func() error {
		if release == nil {
			return nil
		}
		return release()
	}
}

func ledgerFrom(cmd *cobra.Command) *services.Ledger {
	return cmd.Context().Value(contextKey{}).(*services.Ledger)
}

// Explain turns a ledger error into the message shown to the user.
func Explain(err error) string {
	switch {
	case err == nil:
		return ""
	case core.IsValidation(err):
		return "invalid record: " + err.Error()
	case errors.Is(err, core.ErrStaleSnapshot):
		return "the sheet changed while editing; run list again and retry"
	case errors.Is(err, core.ErrIndexOutOfRange):
		return "no record at that index; run list to see current indices"
	default:
		return err.Error()
	}
}
