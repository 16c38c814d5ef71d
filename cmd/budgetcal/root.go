package main

import (
	"github.com/spf13/cobra"

	"budgetcal/internal/cli"
	"budgetcal/internal/config"
	applog "budgetcal/internal/log"
)

// globals holds what PersistentPreRunE prepared for the subcommands.
type globals struct {
	envFile string
	cfg     *config.Config
	logger  *applog.Logger
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:          "budgetcal",
		Short:        "Personal budget tracker with calendar, charts and predictions",
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if g.envFile != "" {
				cli.LoadEnvFile(g.envFile)
			} else {
				cli.LoadEnvFile()
			}
			cfg, err := cli.LoadAndValidateConfig()
			if err != nil {
				return err
			}
			g.cfg = cfg
			g.logger = cli.SetupLogger(cfg, applog.ComponentApp)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&g.envFile, "env-file", "", "dotenv file to load (default .env)")

	cmd.AddCommand(
		serveCmd(g),
		exportCmd(g),
		importCmd(g),
		clearCmd(g),
		categorizeCmd(g),
		fixedCmd(g),
		themesCmd(g),
		migrateCmd(g),
	)
	return cmd
}
