package commands

import (
	"fmt"
	"strings"

	"finanzas/internal/core"

	"github.com/spf13/cobra"
)

func summaryCmd() *cobra.Command {
	var (
		year  int
		month string
	)
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show balance, spending by category and the monthly pivot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			y, period, err := periodFlag(year, month)
			if err != nil {
				return err
			}
			d, err := ledgerFrom(cmd).Dashboard(cmd.Context(), y, period)
			if err != nil {
				return err
			}
			return writeSummary(cmd, d)
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "year to summarize (default latest with data)")
	cmd.Flags().StringVar(&month, "month", "", "narrow to one month (1-12 or YYYY-MM)")
	return cmd
}

func writeSummary(cmd *cobra.Command, d core.Dashboard) error {
	out := cmd.OutOrStdout()
	title := fmt.Sprintf("%d", d.Year)
	if d.Month != "" {
		title = d.Month
	}
	fmt.Fprintf(out, "Summary %s\n\n", title)

	tw := newTable(out)
	fmt.Fprintf(tw, "Income\t%s\n", core.FormatAmount(d.Balance.Income))
	fmt.Fprintf(tw, "Expenses\t%s\n", core.FormatAmount(d.Balance.Expense))
	fmt.Fprintf(tw, "Net\t%s\n", core.FormatAmount(d.Balance.Net))
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out)
	if !d.Categories.Defined {
		fmt.Fprintln(out, "No expenses in this period.")
	} else {
		tw = newTable(out)
		fmt.Fprintln(tw, "CATEGORY\tAMOUNT\tSHARE")
		for _, c := range d.Categories.ByAmountDesc() {
			fmt.Fprintf(tw, "%s\t%s\t%s%%\n", c.Name, core.FormatAmount(c.Amount), c.Percent.StringFixed(1))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if len(d.Pivot.Rows) == 0 {
		return nil
	}
	fmt.Fprintln(out)
	tw = newTable(out)
	fmt.Fprintf(tw, "MONTH\t%s\n", strings.Join(d.Pivot.Columns, "\t"))
	for _, r := range d.Pivot.Rows {
		cells := make([]string, len(r.Values))
		for i, v := range r.Values {
			cells[i] = core.FormatAmount(v)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Month, strings.Join(cells, "\t"), core.FormatAmount(r.Total))
	}
	return tw.Flush()
}
