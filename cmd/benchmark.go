package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/aegis-analytics/claimscreen/internal/pipeline"
)

var benchmarkCmd = &cobra.Command{
	Use:   "benchmark",
	Short: "Benchmark providers against specialty peers",
	Long: `Scans the claim snapshot, computes each provider's price-weighted index
per era and code family, benchmarks it within specialty peer cohorts, and
writes the per-era provider tables and rollups. Later stages read these
tables; run this first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := pipeline.New(cfg).RunBenchmark(ctx); err != nil {
			return eris.Wrap(err, "benchmark")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(benchmarkCmd)
}
