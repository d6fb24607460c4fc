package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/italosilva18/cte-mdfe-api-sub000/api"
	"github.com/italosilva18/cte-mdfe-api-sub000/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			logrus.Fatalf("Failed to load configuration: %v", err)
		}

		logger := newLogger(cfg)

		svc, _, err := buildService(cfg, logger)
		if err != nil {
			logger.Fatalf("Failed to initialize service: %v", err)
		}

		nrApp, err := telemetry.InitNewRelic(cfg.NewRelic)
		if err != nil {
			logger.WithError(err).Warn("Failed to initialize New Relic, continuing without tracing")
		}

		server := api.NewServer(&cfg, logger, nrApp, svc)

		go func() {
			if err := server.Start(); err != nil && err != http.ErrServerClosed {
				logger.Fatalf("Failed to start server: %v", err)
			}
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		logger.Info("Shutting down server...")
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Fatalf("Server shutdown failed: %v", err)
		}

		logger.Info("Server shutdown complete")
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
