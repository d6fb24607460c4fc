package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/italosilva18/cte-mdfe-api-sub000/config"
)

var (
	// Flags
	cfgPath string
	debug   bool

	// Root command
	rootCmd = &cobra.Command{
		Use:   "fiscal-service",
		Short: "Fiscal document ingestion service",
		Long: `Fiscal document ingestion service for CT-e and MDF-e XML files.

Functions:
- Accept batches of fiscal XML uploads over a REST HTTP server
- Classify, pair and normalize waybills, manifests and their events
- Persist normalized documents with full section replacement
- Retry documents whose normalization previously failed`,
	}
)

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", ".", "directory to search for config.yaml")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig loads configuration honoring the --config flag
func loadConfig() (config.Config, error) {
	return config.LoadConfig(cfgPath)
}

// newLogger builds the application logger from config and the --debug flag
func newLogger(cfg config.Config) *logrus.Logger {
	logger := logrus.New()

	if cfg.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	if debug {
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)

	return logger
}
