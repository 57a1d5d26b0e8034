package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/aegis-analytics/claimscreen/internal/pipeline"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Identify outliers persisting across both eras",
	Long: `Intersects the outlier sets of the two eras and writes the cross-era
summary with each provider's worst z-score and total estimated excess per
era. Requires the per-era provider tables from the benchmark stage.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := pipeline.New(cfg).RunReconcile(ctx); err != nil {
			return eris.Wrap(err, "reconcile")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}
