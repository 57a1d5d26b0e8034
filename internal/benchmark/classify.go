package benchmark

import "github.com/aegis-analytics/claimscreen/internal/model"

// Classify derives the deviation metrics and outlier flag for one
// benchmarked provider.
//
// A zero-variance cohort cannot produce an outlier by definition, so the
// z-score is defined as zero rather than dividing by zero. The outlier
// flag requires both the z-threshold and the minimum absolute deviation;
// AboveP95 is an independent percentile signal not gated by either.
func Classify(ps model.ProviderStats, bm model.PeerBenchmark, th Thresholds) model.OutlierRecord {
	rec := model.OutlierRecord{
		ProviderStats: ps,
		PeerBenchmark: bm,
	}

	rec.AbsDeviation = ps.PWI - bm.MedianPWI
	if bm.StdPWI > 0 {
		rec.ZScore = rec.AbsDeviation / bm.StdPWI
	}

	// Signed excess: downcoders go negative. That is preserved for the
	// aggregate rollups; the clipped variant floors at zero for any
	// per-provider-facing report, since negative excess is not billing
	// harm.
	rec.EstExcess = rec.AbsDeviation * float64(ps.TotalClaims)
	rec.EstExcessClipped = rec.EstExcess
	if rec.EstExcessClipped < 0 {
		rec.EstExcessClipped = 0
	}

	rec.IsOutlier = rec.ZScore >= th.ZThreshold && rec.AbsDeviation >= th.MinAbsDeviation
	rec.AboveP95 = ps.PWI > bm.P95PWI

	return rec
}
