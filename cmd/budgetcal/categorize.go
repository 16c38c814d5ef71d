package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"budgetcal/internal/categorize"
	"budgetcal/internal/core"
)

func categorizeCmd(g *globals) *cobra.Command {
	var (
		amount string
		typ    string
		limit  int
		stats  bool
	)
	cmd := &cobra.Command{
		Use:   "categorize [LABEL]",
		Short: "Suggest categories for a label, or print learning statistics",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !stats && len(args) == 0 {
				return fmt.Errorf("a label is required unless --stats is set")
			}
			t := core.TransactionType(typ)
			if !t.IsValid() {
				return core.ErrInvalidType
			}

			ctx := cmd.Context()
			a, err := openApp(ctx, g)
			if err != nil {
				return err
			}
			defer a.Close()
			engine, err := categorize.NewEngine(ctx, a.backend.Store, a.tx, g.logger.Slog())
			if err != nil {
				return err
			}

			out := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer out.Flush()
			if stats {
				s := engine.Statistics()
				fmt.Fprintf(out, "Appris\t%d\n", s.TotalLearned)
				fmt.Fprintf(out, "Corrections\t%d\n", s.Corrections)
				fmt.Fprintf(out, "Précision\t%.1f%%\n", s.AccuracyRate)
				for _, c := range s.TopCategories {
					fmt.Fprintf(out, "  %s\t%d\n", c.Category, c.Count)
				}
				return nil
			}
			fmt.Fprintln(out, "CATÉGORIE\tCONFIANCE\tRAISON")
			for _, sg := range engine.Suggestions(ctx, args[0], core.ParseAmountOrZero(amount), t, limit) {
				fmt.Fprintf(out, "%s\t%.0f%%\t%s\n", sg.Category, sg.Confidence*100, sg.Reason)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&amount, "amount", "a", "", "transaction amount, e.g. 12,50")
	cmd.Flags().StringVarP(&typ, "type", "t", string(core.Expense), "income or expense")
	cmd.Flags().IntVarP(&limit, "limit", "n", 3, "number of suggestions")
	cmd.Flags().BoolVar(&stats, "stats", false, "print learning statistics instead")
	return cmd
}
