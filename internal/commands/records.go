package commands

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"finanzas/internal/core"
	"finanzas/internal/services"

	"github.com/spf13/cobra"
)

func transactionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tx",
		Aliases: []string{"transactions"},
		Short:   "List and change transactions",
	}
	cmd.AddCommand(txListCmd())
	cmd.AddCommand(txAddCmd())
	cmd.AddCommand(editCmd("transaction", transactionsOf, &txFlags{}))
	cmd.AddCommand(removeCmd("transaction", transactionsOf))
	return cmd
}

func transactionsOf(l *services.Ledger) *services.Repository[core.Transaction] { return l.Transactions }
func savingsOf(l *services.Ledger) *services.Repository[core.SavingsEntry] { return l.Savings }
func goalsOf(l *services.Ledger) *services.Repository[core.SavingsGoal] { return l.Goals }

func txListCmd() *cobra.Command {
	var (
		year       int
		months     []string
		categories []string
		query      string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions, newest first, with their indices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			periods, err := periodsFlag(year, months)
			if err != nil {
				return err
			}
			snap, err := ledgerFrom(cmd).Transactions.LoadAll(cmd.Context())
			if err != nil {
				return err
			}
			var indices []int
			for i, t := range snap.Records {
				if year != 0 && t.Date.Year() != year {
					continue
				}
				if len(periods) > 0 && !slices.Contains(periods, t.MonthPeriod()) {
					continue
				}
				if len(categories) > 0 && len(core.FilterByCategories([]core.Transaction{t}, categories...)) == 0 {
					continue
				}
				if query != "" && len(core.SearchByName([]core.Transaction{t}, query)) == 0 {
					continue
				}
				indices = append(indices, i)
			}
			slices.SortStableFunc(indices, func(a, b int) int {
				return snap.Records[b].Date.Compare(snap.Records[a].Date.Time)
			})

			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "#\tDATE\tNAME\tAMOUNT\tCATEGORY")
			for _, i := range indices {
				t := snap.Records[i]
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i, t.Date, t.Name, core.FormatAmount(t.Amount), t.Category)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			printToken(cmd, snap.Token)
			return nil
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "only this year")
	cmd.Flags().StringSliceVar(&months, "month", nil, "only these months (1-12 or YYYY-MM), repeatable")
	cmd.Flags().StringSliceVar(&categories, "category", nil, "only these categories")
	cmd.Flags().StringVarP(&query, "query", "q", "", "name contains")
	return cmd
}

// recordFlags binds the flags of one record kind and copies the given
// ones onto a record.
type recordFlags[T any] interface {
	bind(cmd *cobra.Command)
	apply(cmd *cobra.Command, rec *T) error
}

type txFlags struct {
	date, name, amount, category string
}

func (f *txFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.date, "date", "", "date as YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&f.name, "name", "", "description")
	cmd.Flags().StringVar(&f.amount, "amount", "", "whole amount, e.g. 1500 or 1.500.000")
	cmd.Flags().StringVar(&f.category, "category", "", "category; "+core.IncomeCategory+" marks income")
}

// apply overwrites the fields of t whose flags were given.
func (f *txFlags) apply(cmd *cobra.Command, t *core.Transaction) error {
	if cmd.Flags().Changed("date") {
		d, err := core.ParseDate(f.date)
		if err != nil {
			return err
		}
		t.Date = d
	}
	if cmd.Flags().Changed("name") {
		t.Name = strings.TrimSpace(f.name)
	}
	if cmd.Flags().Changed("amount") {
		n, err := core.ParseAmount(f.amount)
		if err != nil {
			return err
		}
		t.Amount = n
	}
	if cmd.Flags().Changed("category") {
		t.Category = strings.TrimSpace(f.category)
	}
	return nil
}

type savingsFlags struct {
	date, amount, description string
}

func (f *savingsFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.date, "date", "", "date as YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&f.amount, "amount", "", "whole amount")
	cmd.Flags().StringVar(&f.description, "description", "", "note")
}

func (f *savingsFlags) apply(cmd *cobra.Command, e *core.SavingsEntry) error {
	if cmd.Flags().Changed("date") {
		d, err := core.ParseDate(f.date)
		if err != nil {
			return err
		}
		e.Date = d
	}
	if cmd.Flags().Changed("amount") {
		n, err := core.ParseAmount(f.amount)
		if err != nil {
			return err
		}
		e.Amount = n
	}
	if cmd.Flags().Changed("description") {
		e.Description = strings.TrimSpace(f.description)
	}
	return nil
}

type goalFlags struct {
	name, target, by, description string
}

func (f *goalFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "goal name")
	cmd.Flags().StringVar(&f.target, "target", "", "target amount")
	cmd.Flags().StringVar(&f.by, "by", "", "target date as YYYY-MM-DD")
	cmd.Flags().StringVar(&f.description, "description", "", "note")
}

func (f *goalFlags) apply(cmd *cobra.Command, g *core.SavingsGoal) error {
	if cmd.Flags().Changed("name") {
		g.Name = strings.TrimSpace(f.name)
	}
	if cmd.Flags().Changed("target") {
		n, err := core.ParseAmount(f.target)
		if err != nil {
			return err
		}
		g.TargetAmount = n
	}
	if cmd.Flags().Changed("by") {
		d, err := core.ParseDate(f.by)
		if err != nil {
			return err
		}
		g.TargetDate = d
	}
	if cmd.Flags().Changed("description") {
		g.Description = strings.TrimSpace(f.description)
	}
	return nil
}

func txAddCmd() *cobra.Command {
	var f txFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Append a transaction",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t := core.Transaction{Date: core.Today()}
			if err := f.apply(cmd, &t); err != nil {
				return err
			}
			if err := ledgerFrom(cmd).Transactions.Create(cmd.Context(), t); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s %s (%s)\n", t.Name, core.FormatAmount(t.Amount), t.Category)
			return nil
		},
	}
	f.bind(cmd)
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func savingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "savings",
		Short: "List and change savings entries",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List savings entries with their indices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, err := ledgerFrom(cmd).Savings.LoadAll(cmd.Context())
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "#\tDATE\tAMOUNT\tDESCRIPTION")
			for i, s := range snap.Records {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i, s.Date, core.FormatAmount(s.Amount), s.Description)
			}
			fmt.Fprintf(tw, "\tTOTAL\t%s\t\n", core.FormatAmount(core.TotalSaved(snap.Records)))
			if err := tw.Flush(); err != nil {
				return err
			}
			printToken(cmd, snap.Token)
			return nil
		},
	})

	var f savingsFlags
	add := &cobra.Command{
		Use:   "add",
		Short: "Append a savings entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := core.SavingsEntry{Date: core.Today()}
			if err := f.apply(cmd, &e); err != nil {
				return err
			}
			if err := ledgerFrom(cmd).Savings.Create(cmd.Context(), e); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s on %s\n", core.FormatAmount(e.Amount), e.Date)
			return nil
		},
	}
	f.bind(add)
	_ = add.MarkFlagRequired("amount")
	cmd.AddCommand(add)

	cmd.AddCommand(editCmd("savings entry", savingsOf, &savingsFlags{}))
	cmd.AddCommand(removeCmd("savings entry", savingsOf))
	return cmd
}

func goalsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "goals",
		Short: "List and change savings goals",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List goals with their progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			l := ledgerFrom(cmd)
			savings, err := l.Savings.LoadAll(cmd.Context())
			if err != nil {
				return err
			}
			goals, err := l.Goals.LoadAll(cmd.Context())
			if err != nil {
				return err
			}
			progress := core.BuildSavingsProgress(savings.Records, goals.Records)
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "#\tNAME\tTARGET\tBY\tPROGRESS\tREMAINING")
			for i, g := range progress.Goals {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s%%\t%s\n", i, g.Goal.Name,
					core.FormatAmount(g.Goal.TargetAmount), g.Goal.TargetDate,
					g.Percent.StringFixed(1), core.FormatAmount(g.Remaining))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			printToken(cmd, goals.Token)
			return nil
		},
	})

	var f goalFlags
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a savings goal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var g core.SavingsGoal
			if err := f.apply(cmd, &g); err != nil {
				return err
			}
			if err := ledgerFrom(cmd).Goals.Create(cmd.Context(), g); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added goal %s: %s by %s\n", g.Name, core.FormatAmount(g.TargetAmount), g.TargetDate)
			return nil
		},
	}
	f.bind(add)
	for _, name := range []string{"name", "target", "by"} {
		_ = add.MarkFlagRequired(name)
	}
	cmd.AddCommand(add)

	cmd.AddCommand(editCmd("goal", goalsOf, &goalFlags{}))
	cmd.AddCommand(removeCmd("goal", goalsOf))
	return cmd
}

// editCmd changes the fields given as flags on the record at index. With
// --token the edit only goes through if the sheet is still the one list
// printed.
func editCmd[T services.Record](what string, pick func(*services.Ledger) *services.Repository[T], f recordFlags[T]) *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "edit <index>",
		Short: "Change the fields given as flags on one " + what,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseIndexArg(args[0])
			if err != nil {
				return err
			}
			repo := pick(ledgerFrom(cmd))
			snap, err := repo.LoadAll(cmd.Context())
			if err != nil {
				return err
			}
			if err := checkToken(token, snap.Token); err != nil {
				return err
			}
			if index >= len(snap.Records) {
				return fmt.Errorf("%w: %d", core.ErrIndexOutOfRange, index)
			}
			rec := snap.Records[index]
			if err := f.apply(cmd, &rec); err != nil {
				return err
			}
			if err := repo.Update(cmd.Context(), snap.Token, index, rec); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s %d\n", what, index)
			return nil
		},
	}
	f.bind(cmd)
	bindToken(cmd, &token)
	return cmd
}

// removeCmd deletes the record at index, checked against --token when
// given and against a fresh reload otherwise.
func removeCmd[T services.Record](what string, pick func(*services.Ledger) *services.Repository[T]) *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "rm <index>",
		Short: "Remove the " + what + " at index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := parseIndexArg(args[0])
			if err != nil {
				return err
			}
			repo := pick(ledgerFrom(cmd))
			tok := token
			if tok == "" {
				snap, err := repo.LoadAll(cmd.Context())
				if err != nil {
					return err
				}
				tok = snap.Token
			}
			if err := repo.Delete(cmd.Context(), tok, index); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s %d\n", what, index)
			return nil
		},
	}
	bindToken(cmd, &token)
	return cmd
}

func bindToken(cmd *cobra.Command, token *string) {
	cmd.Flags().StringVar(token, "token", "", "snapshot token printed by list; fails if the sheet changed since")
}

func checkToken(given, current string) error {
	if given != "" && given != current {
		return core.ErrStaleSnapshot
	}
	return nil
}

func printToken(cmd *cobra.Command, token string) {
	fmt.Fprintf(cmd.OutOrStdout(), "token: %s\n", token)
}

func parseIndexArg(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("index must be a non-negative number, got %q", s)
	}
	return n, nil
}

// periodsFlag resolves every --month value, dropping repeats.
func periodsFlag(year int, months []string) ([]string, error) {
	var periods []string
	for _, m := range months {
		_, period, err := periodFlag(year, strings.TrimSpace(m))
		if err != nil {
			return nil, err
		}
		if period != "" && !slices.Contains(periods, period) {
			periods = append(periods, period)
		}
	}
	return periods, nil
}

// periodFlag resolves --year and --month. A "YYYY-MM" month supplies the
// year when --year is absent.
func periodFlag(year int, month string) (int, string, error) {
	if month == "" {
		return year, "", nil
	}
	if year == 0 {
		y, _, ok := strings.Cut(month, "-")
		if !ok {
			return 0, "", fmt.Errorf("--month %q needs --year", month)
		}
		n, err := strconv.Atoi(y)
		if err != nil {
			return 0, "", fmt.Errorf("invalid --month %q", month)
		}
		year = n
	}
	period, err := core.ParsePeriod(year, month)
	return year, period, err
}
