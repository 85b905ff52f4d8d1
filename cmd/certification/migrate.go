package main

import (
	"fmt"

	"github.com/gartstein/certify/internal/certification/db"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(_ *cobra.Command, _ []string) error {
			logger := initLogger()
			defer syncLogger(logger)

			cfg, err := loadConfig(logger)
			if err != nil {
				return err
			}
			// Opening the repository migrates the schema.
			repo, err := db.NewRepository(cfg.Database())
			if err != nil {
				return fmt.Errorf("failed to migrate database: %w", err)
			}
			logger.Info("Schema migrated", zap.String("db_driver", cfg.DBDriver))
			return repo.Close()
		},
	}
}
