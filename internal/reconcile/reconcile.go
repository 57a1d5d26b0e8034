// Package reconcile intersects the outlier sets of two independent eras.
// Temporal confirmation is a deliberately conservative persistence signal:
// it reduces false positives from any single era's modeling noise.
package reconcile

import (
	"sort"

	"go.uber.org/zap"

	"github.com/aegis-analytics/claimscreen/internal/model"
)

type eraSummary struct {
	name      string
	state     string
	specialty string
	maxZ      float64
	excess    float64
	claims    int64
}

// CrossEra retains only providers outlier-flagged in both eras. Per-era
// metrics aggregate across code-family splits: max z-score, sum of clipped
// excess, sum of claims. Output is sorted by the late era's excess
// descending, NPI ascending on ties.
func CrossEra(early, late []model.OutlierRecord) []model.CrossEraRecord {
	earlyAgg := aggregateOutliers(early)
	lateAgg := aggregateOutliers(late)

	var out []model.CrossEraRecord
	for npi, e := range earlyAgg {
		l, ok := lateAgg[npi]
		if !ok {
			continue
		}
		out = append(out, model.CrossEraRecord{
			NPI:         npi,
			Name:        e.name,
			State:       e.state,
			Specialty:   e.specialty,
			EarlyZScore: e.maxZ,
			EarlyExcess: e.excess,
			EarlyClaims: e.claims,
			LateZScore:  l.maxZ,
			LateExcess:  l.excess,
			LateClaims:  l.claims,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].LateExcess != out[j].LateExcess {
			return out[i].LateExcess > out[j].LateExcess
		}
		return out[i].NPI < out[j].NPI
	})

	zap.L().Info("reconcile: cross-era summary",
		zap.Int("early_outliers", len(earlyAgg)),
		zap.Int("late_outliers", len(lateAgg)),
		zap.Int("both_eras", len(out)))

	return out
}

func aggregateOutliers(records []model.OutlierRecord) map[string]*eraSummary {
	agg := make(map[string]*eraSummary)
	for _, rec := range records {
		if !rec.IsOutlier {
			continue
		}
		s, ok := agg[rec.NPI]
		if !ok {
			s = &eraSummary{
				name:      rec.Name,
				state:     rec.State,
				specialty: rec.Specialty,
			}
			agg[rec.NPI] = s
		}
		if rec.ZScore > s.maxZ {
			s.maxZ = rec.ZScore
		}
		s.excess += rec.EstExcessClipped
		s.claims += rec.TotalClaims
	}
	return agg
}
