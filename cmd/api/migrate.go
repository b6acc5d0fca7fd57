package main

import (
	"errors"

	"github.com/spf13/cobra"

	"tenanthooks/internal/logging"
	"tenanthooks/internal/store"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Run database migrations",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			action := "up"
			if len(args) > 0 {
				action = args[0]
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Database.URL == "" {
				return errors.New("DATABASE_URL is required for migrate")
			}
			if err := store.Migrate(cfg.Database.URL, action); err != nil {
				return err
			}
			logging.Info().Str("action", action).Msg("migrations applied")
			return nil
		},
	}

	return cmd
}
