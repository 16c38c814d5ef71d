package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"budgetcal/internal/themes"
)

func themesCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "themes",
		Short: "List, apply, export or import colour themes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withThemes(cmd, g, func(tm *themes.Manager) error {
				current := tm.Current().Key
				out := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				defer out.Flush()
				for _, group := range tm.ByCategory() {
					for _, t := range group.Themes {
						mark := " "
						if t.Key == current {
							mark = "*"
						}
						fmt.Fprintf(out, "%s %s\t%s\t%s\n", mark, t.Key, t.Name, group.Category)
					}
				}
				return nil
			})
		},
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "apply KEY",
			Short: "Make KEY the current theme",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withThemes(cmd, g, func(tm *themes.Manager) error {
					t, err := tm.Apply(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Thème %s appliqué\n", t.Name)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "export",
			Short: "Print the theme configuration as JSON",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withThemes(cmd, g, func(tm *themes.Manager) error {
					data, err := tm.ExportConfig()
					if err != nil {
						return err
					}
					_, err = cmd.OutOrStdout().Write(append(data, '\n'))
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "import FILE",
			Short: "Apply the current theme of an exported configuration",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				data, err := os.ReadFile(args[0])
				if err != nil {
					return err
				}
				return withThemes(cmd, g, func(tm *themes.Manager) error {
					if err := tm.ImportConfig(cmd.Context(), data); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Thème %s appliqué\n", tm.Current().Name)
					return nil
				})
			},
		},
	)
	return cmd
}

func withThemes(cmd *cobra.Command, g *globals, fn func(*themes.Manager) error) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, g)
	if err != nil {
		return err
	}
	defer a.Close()
	tm, err := themes.NewManager(ctx, a.backend.Store, g.logger.Slog())
	if err != nil {
		return err
	}
	return fn(tm)
}
