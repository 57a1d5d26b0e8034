// Package rollup derives read-only aggregate views over the per-provider
// outlier tables: outlier rates and excess by cohort, state, and provider
// type. Aggregates use the unclipped signed excess so that downcoding
// offsets are visible at the population level.
package rollup

import (
	"sort"

	"github.com/aegis-analytics/claimscreen/internal/model"
)

// Row is one aggregate group.
type Row struct {
	Key            string
	ProviderCount  int
	AvgPWI         float64
	NetExcess      float64 // signed sum
	AvgExcess      float64
	OutlierCount   int
	OutlierPercent float64
}

type sums struct {
	count    int
	pwi      float64
	excess   float64
	outliers int
}

// BySpecialty aggregates by benchmark specialty, keeping groups with at
// least minProviders members, sorted by outlier rate descending. Dollar
// sums reflect payer composition more than billing behavior, so rate is
// the headline ordering.
func BySpecialty(records []model.OutlierRecord, minProviders int) []Row {
	return aggregate(records, func(r model.OutlierRecord) string { return r.Specialty },
		func(n int) bool { return n >= minProviders }, byOutlierRate)
}

// ByState aggregates by provider state, sorted by net excess descending.
func ByState(records []model.OutlierRecord) []Row {
	return aggregate(records, func(r model.OutlierRecord) string { return r.State },
		func(int) bool { return true }, byNetExcess)
}

// ByProviderType aggregates by taxonomy grouping, keeping groups with more
// than minProviders members, sorted by outlier rate descending.
func ByProviderType(records []model.OutlierRecord, minProviders int) []Row {
	return aggregate(records, func(r model.OutlierRecord) string { return r.ProviderType },
		func(n int) bool { return n > minProviders }, byOutlierRate)
}

type ordering func(a, b Row) bool

func byOutlierRate(a, b Row) bool {
	if a.OutlierPercent != b.OutlierPercent {
		return a.OutlierPercent > b.OutlierPercent
	}
	return a.Key < b.Key
}

func byNetExcess(a, b Row) bool {
	if a.NetExcess != b.NetExcess {
		return a.NetExcess > b.NetExcess
	}
	return a.Key < b.Key
}

func aggregate(records []model.OutlierRecord, key func(model.OutlierRecord) string, keep func(int) bool, less ordering) []Row {
	groups := make(map[string]*sums)
	for _, rec := range records {
		k := key(rec)
		s, ok := groups[k]
		if !ok {
			s = &sums{}
			groups[k] = s
		}
		s.count++
		s.pwi += rec.PWI
		s.excess += rec.EstExcess
		if rec.IsOutlier {
			s.outliers++
		}
	}

	rows := make([]Row, 0, len(groups))
	for k, s := range groups {
		if !keep(s.count) {
			continue
		}
		n := float64(s.count)
		rows = append(rows, Row{
			Key:            k,
			ProviderCount:  s.count,
			AvgPWI:         s.pwi / n,
			NetExcess:      s.excess,
			AvgExcess:      s.excess / n,
			OutlierCount:   s.outliers,
			OutlierPercent: float64(s.outliers) / n,
		})
	}

	sort.Slice(rows, func(i, j int) bool { return less(rows[i], rows[j]) })
	return rows
}
