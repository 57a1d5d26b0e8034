package adjust

import (
	"github.com/aegis-analytics/claimscreen/internal/benchmark"
	"github.com/aegis-analytics/claimscreen/internal/model"
)

// rebenchmarkResiduals standardizes residuals within cohort exactly as the
// raw benchmarking stage does: median and sample std per cohort, peer
// floor applied, zero-variance cohorts produce a zero z-score. Providers
// in undersized cohorts are dropped.
func rebenchmarkResiduals(records []model.OutlierRecord, profiles []model.ProviderProfile, residuals []float64, cfg Config) []model.AdjustedRecord {
	byCohort := make(map[string][]float64)
	for i, rec := range records {
		byCohort[rec.Specialty] = append(byCohort[rec.Specialty], residuals[i])
	}

	type cohortStats struct {
		median float64
		std    float64
	}
	stats := make(map[string]cohortStats, len(byCohort))
	for specialty, res := range byCohort {
		if len(res) < cfg.MinPeers {
			continue
		}
		stats[specialty] = cohortStats{
			median: benchmark.Median(res),
			std:    benchmark.SampleStd(res),
		}
	}

	var out []model.AdjustedRecord
	for i, rec := range records {
		cs, ok := stats[rec.Specialty]
		if !ok {
			continue
		}

		adj := model.AdjustedRecord{
			OutlierRecord:   rec,
			ProviderProfile: profiles[i],
			Residual:        residuals[i],
		}
		if cs.std > 0 {
			adj.AdjZScore = (residuals[i] - cs.median) / cs.std
		}
		adj.AdjIsOutlier = adj.AdjZScore >= cfg.ZThreshold
		adj.Movement = model.ClassifyMovement(rec.IsOutlier, adj.AdjIsOutlier)

		out = append(out, adj)
	}
	return out
}
