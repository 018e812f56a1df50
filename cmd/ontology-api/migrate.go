package main

import (
	"fmt"

	"github.com/deppfellow/ontology-api/internal/config"
	"github.com/deppfellow/ontology-api/internal/database"
	"github.com/deppfellow/ontology-api/internal/logger"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	var target int32

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long: `Moves the database schema to --to, or to the latest version when
--to is negative. Lower targets roll migrations back.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			log := logger.NewLogger(cfg.Observability)
			return database.MigrateTo(cmd.Context(), &log, cfg, target)
		},
	}

	cmd.Flags().Int32Var(&target, "to", -1, "Target schema version (negative means latest)")

	return cmd
}
