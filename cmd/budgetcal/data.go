package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"budgetcal/internal/backup"
	applog "budgetcal/internal/log"
)

func exportCmd(g *globals) *cobra.Command {
	var (
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a full backup of transactions, fixed expenses and theme",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := backup.ParseFormat(format)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := openApp(ctx, g)
			if err != nil {
				return err
			}
			defer a.Close()

			snap, err := a.tx.Export(ctx)
			if err != nil {
				return err
			}
			if output == "" {
				output = backup.FileName(time.Now(), f)
			}
			var w io.Writer = cmd.OutOrStdout()
			if output != "-" {
				file, err := os.Create(output)
				if err != nil {
					return err
				}
				defer file.Close()
				w = file
			}
			if err := backup.Encode(w, snap, f); err != nil {
				return err
			}
			fields := applog.NewFields().WithOperation(applog.OpExport)
			fields["file"] = output
			fields["count"] = len(snap.Transactions)
			g.logger.Info("Backup exported", fields.ToSlice()...)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "json or yaml")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, - for stdout (default budget_backup_<date>.<ext>)")
	return cmd
}

func importCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Restore a JSON or YAML backup, replacing the stored transactions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer file.Close()
			snap, err := backup.Decode(file, args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := openApp(ctx, g)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.tx.Restore(ctx, snap); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d transactions importées\n", len(snap.Transactions))
			return nil
		},
	}
}

func clearCmd(g *globals) *cobra.Command {
	var (
		all bool
		yes bool
	)
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every transaction, or all user data with --all",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("refusing to clear without --yes")
			}
			ctx := cmd.Context()
			a, err := openApp(ctx, g)
			if err != nil {
				return err
			}
			defer a.Close()
			if all {
				err = a.tx.ClearAll(ctx)
			} else {
				err = a.tx.Clear(ctx)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Données effacées")
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "also reset fixed expenses and the theme")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm the deletion")
	return cmd
}
