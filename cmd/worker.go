package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background worker",
	Long:  `Start the background worker that periodically retries normalization of documents whose last attempt failed`,
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	svc, _, err := buildService(cfg, logger)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return err
		}

		_, err = scheduler.NewJob(
			gocron.DurationJob(cfg.Worker.ReprocessInterval),
			gocron.NewTask(func() {
				logger.Info("Running pending document reprocess job")
				count, err := svc.ReprocessPending(ctx, cfg.Worker.ReprocessLimit)
				if err != nil {
					logger.WithError(err).Error("Failed to reprocess pending documents")
					return
				}
				if count > 0 {
					logger.WithField("count", count).Info("Reprocessed pending documents")
				}
			}),
		)
		if err != nil {
			return err
		}

		scheduler.Start()
		logger.WithFields(logrus.Fields{
			"interval": cfg.Worker.ReprocessInterval,
			"limit":    cfg.Worker.ReprocessLimit,
		}).Info("Reprocess scheduler started")

		<-ctx.Done()
		return scheduler.Shutdown()
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("Worker error")
		return err
	}

	logger.Info("Worker shutting down gracefully")
	return nil
}
