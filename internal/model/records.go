package model

// Movement classifies how a provider's outlier flag moved between the raw
// and covariate-adjusted benchmarks.
type Movement string

const (
	// MovementPersistent: outlier under both the raw and adjusted benchmark.
	MovementPersistent Movement = "PERSISTENT"
	// MovementExplained: raw outlier absorbed by practice-profile covariates.
	MovementExplained Movement = "EXPLAINED"
	// MovementUnmasked: covariates reveal an outlier the raw benchmark missed.
	MovementUnmasked Movement = "UNMASKED"
	// MovementNormal: outlier under neither benchmark.
	MovementNormal Movement = "NORMAL"
)

// ClassifyMovement crosses the raw and adjusted flags. The four categories
// are total and mutually exclusive.
func ClassifyMovement(rawOutlier, adjOutlier bool) Movement {
	switch {
	case rawOutlier && adjOutlier:
		return MovementPersistent
	case rawOutlier:
		return MovementExplained
	case adjOutlier:
		return MovementUnmasked
	default:
		return MovementNormal
	}
}

// ProviderStats holds one provider's aggregated totals and price-weighted
// index for one era and code family.
type ProviderStats struct {
	Provider
	Era            string
	CodeFamily     string
	TotalClaims    int64
	TotalPaid      float64
	TotalBenes     int64
	PWI            float64 // price-weighted index, $ per encounter
	BeneClaimRatio float64
}

// PeerBenchmark is the central tendency and dispersion of PWI within one
// peer cohort. Only cohorts meeting the peer-count floor are ever
// materialized as benchmarks. Cohort repeats the specialty the benchmark
// was built over; the name differs from Provider.Specialty so embedding
// both in OutlierRecord keeps the provider field selectable.
type PeerBenchmark struct {
	Cohort    string
	MedianPWI float64
	StdPWI    float64
	P95PWI    float64
	PeerCount int
}

// OutlierRecord is a provider's stats joined to its cohort benchmark with
// the derived deviation metrics.
type OutlierRecord struct {
	ProviderStats
	PeerBenchmark

	ZScore       float64
	AbsDeviation float64 // signed $ per encounter
	// EstExcess is signed: downcoders carry negative excess, which feeds
	// cohort/state aggregates. EstExcessClipped floors it at zero for any
	// per-provider-facing report.
	EstExcess        float64
	EstExcessClipped float64
	IsOutlier        bool
	AboveP95         bool
}

// ProviderProfile holds the practice-profile covariates computed per
// provider per era from the full claim stream (not only the screened
// code families).
type ProviderProfile struct {
	NPI             string
	CodeDiversity   float64 // distinct billing codes in the era
	FamilyRatio     float64 // screened-family claims / all claims
	NewPatientRatio float64 // new-patient claims / screened-family claims
	LogVolume       float64 // log(total claims)
}

// AdjustedRecord is an OutlierRecord re-scored against the covariate model.
type AdjustedRecord struct {
	OutlierRecord
	ProviderProfile

	Residual     float64
	AdjZScore    float64
	AdjIsOutlier bool
	Movement     Movement
}

// CrossEraRecord summarizes a provider flagged as an outlier in both eras.
// Per-era metrics aggregate across code families: max z-score, sum of
// clipped excess, sum of claims.
type CrossEraRecord struct {
	NPI       string
	Name      string
	State     string
	Specialty string

	EarlyZScore float64
	EarlyExcess float64
	EarlyClaims int64
	LateZScore  float64
	LateExcess  float64
	LateClaims  int64
}

// ConvergenceRecord fuses a flagged provider with external signal tables.
type ConvergenceRecord struct {
	Provider
	PrimaryEra     string
	CodeFamily     string
	TotalClaims    int64
	ZScore         float64
	ExcessClipped  float64
	BeneClaimRatio float64

	// Signals maps catalog signal name to its membership boolean.
	Signals map[string]bool
	// CategoryCounts maps evidence category to the number of present
	// signals in that category.
	CategoryCounts map[string]int

	// SignalTypeCount counts categories with at least one present signal,
	// so one noisy category cannot dominate the score.
	SignalTypeCount int
	// TotalSignalCount sums every individual signal boolean.
	TotalSignalCount int
}
