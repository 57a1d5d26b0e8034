package benchmark

import (
	"sort"

	"go.uber.org/zap"

	"github.com/aegis-analytics/claimscreen/internal/model"
	"github.com/aegis-analytics/claimscreen/internal/registry"
)

// Thresholds are the screening gates applied during benchmarking and
// classification.
type Thresholds struct {
	MinClaims  int64   `yaml:"min_claims" mapstructure:"min_claims"`
	MinPeers   int     `yaml:"min_peers" mapstructure:"min_peers"`
	ZThreshold float64 `yaml:"z_threshold" mapstructure:"z_threshold"`
	// MinAbsDeviation prevents statistically significant but practically
	// negligible deviations (near-zero cohort variance) from flooding the
	// flagged set.
	MinAbsDeviation float64 `yaml:"min_abs_deviation" mapstructure:"min_abs_deviation"`
}

// Diagnostics counts what the engine excluded and why.
type Diagnostics struct {
	Providers          int
	Outliers           int
	ExcludedMinClaims  int
	ExcludedNoRegistry int
	SmallCohorts       int
	SmallCohortMembers int
}

type providerSums struct {
	codeClaims map[string]int64
	claims     int64
	paid       float64
	benes      int64
}

// Engine aggregates one era × code family of claim rows into provider
// stats, benchmarks the price-weighted index within peer cohorts, and
// classifies outliers.
type Engine struct {
	era    string
	family string
	codes  map[string]bool
	th     Thresholds
	sums   map[string]*providerSums
}

// NewEngine creates an engine for one era and code family.
func NewEngine(era, family string, codes []string, th Thresholds) *Engine {
	set := make(map[string]bool, len(codes))
	for _, c := range codes {
		set[c] = true
	}
	return &Engine{
		era:    era,
		family: family,
		codes:  set,
		th:     th,
		sums:   make(map[string]*providerSums),
	}
}

// Add accumulates one claim aggregate row. Rows outside the code family
// are ignored.
func (e *Engine) Add(row model.ClaimAggregate) {
	if !e.codes[row.Code] {
		return
	}
	s, ok := e.sums[row.NPI]
	if !ok {
		s = &providerSums{codeClaims: make(map[string]int64)}
		e.sums[row.NPI] = s
	}
	s.codeClaims[row.Code] += row.ClaimCount
	s.claims += row.ClaimCount
	s.paid += row.PaidAmount
	s.benes += row.BeneCount
}

// Results resolves providers against the registry, computes each
// provider's price-weighted index, benchmarks cohorts meeting the peer
// floor, and classifies every benchmarked provider. Output is sorted by
// estimated excess descending (NPI ascending on ties).
func (e *Engine) Results(reg *registry.Registry, prices *PriceIndex) ([]model.OutlierRecord, Diagnostics) {
	var diag Diagnostics

	// Fixed NPI and code order keeps every float accumulation identical
	// across runs, so an unchanged snapshot reproduces artifacts
	// byte for byte.
	npis := make([]string, 0, len(e.sums))
	for npi := range e.sums {
		npis = append(npis, npi)
	}
	sort.Strings(npis)

	stats := make([]model.ProviderStats, 0, len(e.sums))
	for _, npi := range npis {
		s := e.sums[npi]
		if s.claims < e.th.MinClaims {
			diag.ExcludedMinClaims++
			continue
		}
		provider, ok := reg.Resolve(npi)
		if !ok {
			diag.ExcludedNoRegistry++
			continue
		}

		codes := make([]string, 0, len(s.codeClaims))
		for code := range s.codeClaims {
			codes = append(codes, code)
		}
		sort.Strings(codes)

		var weighted float64
		for _, code := range codes {
			price, ok := prices.Price(code)
			if !ok {
				continue
			}
			weighted += float64(s.codeClaims[code]) * price
		}

		stats = append(stats, model.ProviderStats{
			Provider:       provider,
			Era:            e.era,
			CodeFamily:     e.family,
			TotalClaims:    s.claims,
			TotalPaid:      s.paid,
			TotalBenes:     s.benes,
			PWI:            weighted / float64(s.claims),
			BeneClaimRatio: float64(s.benes) / float64(s.claims),
		})
	}

	benchmarks := e.cohortBenchmarks(stats, &diag)

	var records []model.OutlierRecord
	for _, ps := range stats {
		bm, ok := benchmarks[ps.Specialty]
		if !ok {
			continue // cohort below the peer floor, already counted
		}
		rec := Classify(ps, bm, e.th)
		if rec.IsOutlier {
			diag.Outliers++
		}
		records = append(records, rec)
	}
	diag.Providers = len(records)

	sort.Slice(records, func(i, j int) bool {
		if records[i].EstExcess != records[j].EstExcess {
			return records[i].EstExcess > records[j].EstExcess
		}
		return records[i].NPI < records[j].NPI
	})

	zap.L().Info("benchmark: era family complete",
		zap.String("era", e.era),
		zap.String("family", e.family),
		zap.Int("providers", diag.Providers),
		zap.Int("outliers", diag.Outliers),
		zap.Int("excluded_min_claims", diag.ExcludedMinClaims),
		zap.Int("excluded_no_registry", diag.ExcludedNoRegistry),
		zap.Int("small_cohorts", diag.SmallCohorts))

	return records, diag
}

// cohortBenchmarks computes median, sample std, and the 95th percentile of
// PWI for every cohort with at least MinPeers members. Smaller cohorts
// produce no benchmark at all: their members cannot be fairly judged and
// are excluded downstream, never scored against a degenerate benchmark.
func (e *Engine) cohortBenchmarks(stats []model.ProviderStats, diag *Diagnostics) map[string]model.PeerBenchmark {
	byCohort := make(map[string][]float64)
	for _, ps := range stats {
		byCohort[ps.Specialty] = append(byCohort[ps.Specialty], ps.PWI)
	}

	benchmarks := make(map[string]model.PeerBenchmark, len(byCohort))
	for specialty, pwis := range byCohort {
		if len(pwis) < e.th.MinPeers {
			diag.SmallCohorts++
			diag.SmallCohortMembers += len(pwis)
			continue
		}
		benchmarks[specialty] = model.PeerBenchmark{
			Cohort:    specialty,
			MedianPWI: Median(pwis),
			StdPWI:    SampleStd(pwis),
			P95PWI:    Quantile(pwis, 0.95),
			PeerCount: len(pwis),
		}
	}
	return benchmarks
}
