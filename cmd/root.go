package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"sjsage522/pricecompare/config"
	"sjsage522/pricecompare/logger"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "pricecompare",
	Short:         "Search drugstore shops for products and track their prices",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Load environment variables
		godotenv.Load()

		// Initialize logger first
		logger.Init()

		cfg = config.LoadConfig()
		return cfg.Validate()
	},
}

func init() {
	rootCmd.AddCommand(crawlCmd, checkPricesCmd, watchCmd, productCmd)
}

// Execute runs the command line until it finishes or the process is interrupted
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if logger.Default == nil {
			logger.Init()
		}
		logger.Default.Error().Err(err).Msg("command failed")
		stop()
		os.Exit(1)
	}
}
