package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aegis-analytics/claimscreen/internal/config"
	"github.com/aegis-analytics/claimscreen/internal/pipeline"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "claimscreen",
	Short: "Screen claim billing patterns for statistical anomalies",
	Long: "Benchmarks each provider's price-weighted billing intensity against specialty peers, " +
		"adjusts for practice-profile covariates, reconciles outliers across eras, and scores " +
		"convergence with external risk signals.\n\n" + pipeline.Disclaimer,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("validate config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
