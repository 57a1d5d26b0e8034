package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/aegis-analytics/claimscreen/internal/pipeline"
)

var convergeXLSX bool

var convergeCmd = &cobra.Command{
	Use:   "converge",
	Short: "Score convergence of billing outliers with external signals",
	Long: `Joins the late-era outlier set (deduped against the early era) with the
external signal sets named in the signal catalog, counts independent
signal categories per provider, and ranks by how many distinct categories
converge. Requires the per-era provider tables; a missing cross-era
summary or signal file is skipped with a warning.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := pipeline.New(cfg).RunConverge(ctx, convergeXLSX); err != nil {
			return eris.Wrap(err, "converge")
		}
		return nil
	},
}

func init() {
	convergeCmd.Flags().BoolVar(&convergeXLSX, "xlsx", false, "also export the flagged convergence table as XLSX")
	rootCmd.AddCommand(convergeCmd)
}
