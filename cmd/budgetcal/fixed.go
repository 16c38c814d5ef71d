package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"budgetcal/internal/core"
	"budgetcal/internal/services"
)

func fixedCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fixed",
		Short: "Manage recurring fixed expenses",
	}
	cmd.AddCommand(fixedApplyCmd(g), fixedShowCmd(g))
	return cmd
}

func fixedApplyCmd(g *globals) *cobra.Command {
	var (
		month string
		due   bool
	)
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Create the fixed expense transactions of a month",
		Long: "Creates one expense per non-zero fixed expense for --month (the current\n" +
			"month by default). Expenses that already exist that month are skipped.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, g)
			if err != nil {
				return err
			}
			defer a.Close()
			p := services.NewFixedProcessor(a.tx, a.backend.Store, g.cfg.FixedExpenseDay, g.logger.Slog())

			var created int
			if due {
				created, err = p.ProcessDue(ctx, time.Now())
			} else {
				now := time.Now()
				year, m := now.Year(), int(now.Month())
				if month != "" {
					if year, m, err = core.ParseMonthKey(month); err != nil {
						return fmt.Errorf("invalid --month %q: want YYYY-MM", month)
					}
				}
				created, err = p.ApplyMonth(ctx, year, m)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d dépenses fixes créées\n", created)
			return nil
		},
	}
	cmd.Flags().StringVarP(&month, "month", "m", "", "month as YYYY-MM")
	cmd.Flags().BoolVar(&due, "due", false, "apply only when the current month is due and not yet applied")
	return cmd
}

func fixedShowCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the configured fixed expenses and their total",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, g)
			if err != nil {
				return err
			}
			defer a.Close()
			fe, err := a.tx.FixedExpenses(ctx)
			if err != nil {
				return err
			}
			total, err := a.tx.FixedExpensesTotal(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, key := range core.FixedExpenseKeys {
				fmt.Fprintf(out, "%-10s %s\n", key, fe[key])
			}
			fmt.Fprintf(out, "%-10s %s\n", "total", total)
			return nil
		},
	}
}
