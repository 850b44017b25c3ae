package main

import (
	"codegen-app/internal/config"
	"codegen-app/internal/logger"
	"codegen-app/internal/repository/postgres"
	"fmt"

	"github.com/spf13/cobra"
)

func NewMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			database, err := postgres.NewPostgresDB(appConfig.Database)
			if err != nil {
				return err
			}
			defer database.Close()

			if err := database.RunMigrations(); err != nil {
				return err
			}
			logger.Log.Info("Migrations applied")
			return nil
		},
	}
}
