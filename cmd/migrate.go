package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/italosilva18/cte-mdfe-api-sub000/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			logrus.Fatalf("Failed to load configuration: %v", err)
		}

		db, err := database.Connect(cfg.Database)
		if err != nil {
			logrus.Fatalf("Failed to connect to database: %v", err)
		}

		logrus.Info("Running database migrations...")
		if err := database.Migrate(db); err != nil {
			logrus.Fatalf("Failed to run database migrations: %v", err)
		}

		logrus.Info("Database migrations completed successfully")
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
