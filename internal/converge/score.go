package converge

import (
	"sort"

	"go.uber.org/zap"

	"github.com/aegis-analytics/claimscreen/internal/model"
)

// CrossEraSignal is the built-in persistence signal derived from the
// cross-era reconciliation. It shares methodology with the base outlier
// flag, so it counts toward the total signal count but belongs to no
// evidence category and never inflates the type count.
const CrossEraSignal = "cross_era"

// Score fuses the flagged providers of both eras with the loaded external
// signal sets.
//
// The base set is every provider flagged in either era: the late era is
// primary; early-era-only providers are appended. A provider flagged on
// both code families keeps the row with the higher clipped excess.
//
// Ranking is fully deterministic: signal type count descending (so one
// noisy category cannot dominate), then total signal count, then category
// counts in precedence order (strongest evidence first), then NPI.
func Score(early, late []model.OutlierRecord, crossEra []model.CrossEraRecord, signals []SignalSet, precedence []string) []model.ConvergenceRecord {
	base := baseSet(early, late)

	crossEraSet := make(map[string]bool, len(crossEra))
	for _, rec := range crossEra {
		crossEraSet[rec.NPI] = true
	}

	out := make([]model.ConvergenceRecord, 0, len(base))
	for _, rec := range base {
		rec.Signals = make(map[string]bool, len(signals)+1)
		rec.CategoryCounts = make(map[string]int, len(precedence))

		for _, sig := range signals {
			present := sig.Members[rec.NPI]
			rec.Signals[sig.Name] = present
			if present {
				rec.CategoryCounts[sig.Category]++
				rec.TotalSignalCount++
			}
		}

		if crossEraSet[rec.NPI] {
			rec.Signals[CrossEraSignal] = true
			rec.TotalSignalCount++
		} else {
			rec.Signals[CrossEraSignal] = false
		}

		for _, count := range rec.CategoryCounts {
			if count > 0 {
				rec.SignalTypeCount++
			}
		}

		out = append(out, rec)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.SignalTypeCount != b.SignalTypeCount {
			return a.SignalTypeCount > b.SignalTypeCount
		}
		if a.TotalSignalCount != b.TotalSignalCount {
			return a.TotalSignalCount > b.TotalSignalCount
		}
		for _, cat := range precedence {
			if a.CategoryCounts[cat] != b.CategoryCounts[cat] {
				return a.CategoryCounts[cat] > b.CategoryCounts[cat]
			}
		}
		return a.NPI < b.NPI
	})

	zap.L().Info("converge: scored",
		zap.Int("providers", len(out)),
		zap.Int("signals", len(signals)))

	return out
}

// Flagged returns the subset with any convergence beyond the base outlier
// flag itself.
func Flagged(records []model.ConvergenceRecord) []model.ConvergenceRecord {
	var out []model.ConvergenceRecord
	for _, rec := range records {
		if rec.TotalSignalCount > 0 {
			out = append(out, rec)
		}
	}
	return out
}

// baseSet dedupes the flagged providers of both eras into one row each,
// late era primary.
func baseSet(early, late []model.OutlierRecord) []model.ConvergenceRecord {
	seen := make(map[string]bool)
	var base []model.ConvergenceRecord

	for _, eraRecords := range [][]model.OutlierRecord{late, early} {
		best := make(map[string]model.OutlierRecord)
		for _, rec := range eraRecords {
			if !rec.IsOutlier || seen[rec.NPI] {
				continue
			}
			if cur, ok := best[rec.NPI]; !ok || rec.EstExcessClipped > cur.EstExcessClipped {
				best[rec.NPI] = rec
			}
		}

		npis := make([]string, 0, len(best))
		for npi := range best {
			npis = append(npis, npi)
		}
		sort.Strings(npis)

		for _, npi := range npis {
			rec := best[npi]
			seen[npi] = true
			base = append(base, model.ConvergenceRecord{
				Provider:       rec.Provider,
				PrimaryEra:     rec.Era,
				CodeFamily:     rec.CodeFamily,
				TotalClaims:    rec.TotalClaims,
				ZScore:         rec.ZScore,
				ExcessClipped:  rec.EstExcessClipped,
				BeneClaimRatio: rec.BeneClaimRatio,
			})
		}
	}
	return base
}
