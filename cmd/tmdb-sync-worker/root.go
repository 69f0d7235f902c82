package main

import (
	"github.com/spf13/cobra"

	"github.com/vipul43/tmdb-sync-worker/internal/config"
	"github.com/vipul43/tmdb-sync-worker/internal/logging"
)

// cli carries the configuration loaded before any subcommand runs
type cli struct {
	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:           "tmdb-sync-worker",
		Short:         "Mirror the TMDB popular movie catalog into Postgres",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logging.Setup(cfg.LogLevel, cfg.LogFormat)
			c.cfg = cfg
			return nil
		},
	}

	rootCmd.AddCommand(serveCmd(c))
	rootCmd.AddCommand(syncCmd(c))
	rootCmd.AddCommand(migrateCmd(c))
	return rootCmd
}
