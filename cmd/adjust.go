package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/aegis-analytics/claimscreen/internal/pipeline"
)

var adjustCmd = &cobra.Command{
	Use:   "adjust",
	Short: "Re-score benchmark results against practice-profile covariates",
	Long: `Regresses each era's price-weighted index on peer cohort membership and
practice-profile covariates, re-benchmarks the residuals within cohort,
and classifies how each provider's outlier status moved. Requires the
per-era provider tables from the benchmark stage.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := pipeline.New(cfg).RunAdjust(ctx); err != nil {
			return eris.Wrap(err, "adjust")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(adjustCmd)
}
