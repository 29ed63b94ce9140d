package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"sjsage522/pricecompare/logger"
	"sjsage522/pricecompare/services/publisher"
	"sjsage522/pricecompare/services/worker"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Periodically re-check catalogued prices and publish drops",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		var pub publisher.Publisher
		if a.publisher != nil {
			pub = a.publisher
		}

		logger.Default.Info().
			Str("environment", cfg.Environment).
			Dur("check_interval", cfg.CheckInterval).
			Msg("Starting price watcher")

		w := worker.NewWorker(a.store, a.monitor, pub, cfg.CheckInterval, true)
		if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}

		logger.Default.Info().Msg("Shutting down gracefully...")
		return nil
	},
}
