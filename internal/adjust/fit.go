package adjust

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/aegis-analytics/claimscreen/internal/benchmark"
	"github.com/aegis-analytics/claimscreen/internal/model"
)

// Config holds the adjustment-stage parameters.
type Config struct {
	// Ridge is a fixed small diagonal term added to the normal-equations
	// matrix for numerical stability only, not a meaningful prior.
	Ridge      float64 `yaml:"ridge" mapstructure:"ridge"`
	ZThreshold float64 `yaml:"z_threshold" mapstructure:"z_threshold"`
	MinPeers   int     `yaml:"min_peers" mapstructure:"min_peers"`
}

// CovariateNames is the fixed covariate order of the model.
var CovariateNames = []string{"code_diversity", "family_ratio", "new_patient_ratio", "log_volume"}

// Coefficient is one fitted standardized covariate effect.
type Coefficient struct {
	Name  string
	Value float64
}

// Summary is the model diagnostic for one era's fit.
type Summary struct {
	Era          string
	Providers    int
	RSquared     float64
	Coefficients []Coefficient
	Imputed      int // providers whose covariates were median-imputed
}

// Fit regresses PWI on peer-cohort membership (one-hot, reference level
// dropped) plus standardized practice-profile covariates, then
// re-benchmarks the residuals within cohort and classifies movement.
//
// Records whose cohort falls below the peer floor among the fitted rows
// are dropped, mirroring the raw benchmarking stage. The absolute-
// deviation gate is not reapplied: residuals are not dollar-comparable
// with the raw deviation metric.
func Fit(records []model.OutlierRecord, profiles map[string]model.ProviderProfile, era string, cfg Config) ([]model.AdjustedRecord, Summary, error) {
	if len(records) == 0 {
		return nil, Summary{Era: era}, nil
	}

	joined, imputed := joinProfiles(records, profiles)

	y := make([]float64, len(records))
	for i, rec := range records {
		y[i] = rec.PWI
	}

	x, pCols := designMatrix(records, joined)

	beta, err := solveRidge(x, y, cfg.Ridge)
	if err != nil {
		return nil, Summary{}, eris.Wrapf(err, "adjust: fit era %s", era)
	}

	residuals, err := computeResiduals(x, y, beta)
	if err != nil {
		return nil, Summary{}, eris.Wrapf(err, "adjust: era %s", era)
	}

	summary := Summary{
		Era:       era,
		Providers: len(records),
		RSquared:  rSquared(y, residuals),
		Imputed:   imputed,
	}
	for i, name := range CovariateNames {
		summary.Coefficients = append(summary.Coefficients, Coefficient{
			Name:  name,
			Value: beta[pCols-len(CovariateNames)+i],
		})
	}

	zap.L().Info("adjust: model fitted",
		zap.String("era", era),
		zap.Int("providers", summary.Providers),
		zap.Float64("r_squared", summary.RSquared),
		zap.Int("imputed", summary.Imputed))

	adjusted := rebenchmarkResiduals(records, joined, residuals, cfg)

	sort.Slice(adjusted, func(i, j int) bool {
		if adjusted[i].AdjZScore != adjusted[j].AdjZScore {
			return adjusted[i].AdjZScore > adjusted[j].AdjZScore
		}
		if adjusted[i].NPI != adjusted[j].NPI {
			return adjusted[i].NPI < adjusted[j].NPI
		}
		return adjusted[i].CodeFamily < adjusted[j].CodeFamily
	})

	return adjusted, summary, nil
}

// joinProfiles attaches each record's covariates, imputing missing
// providers with the cohort-blind median of each covariate. Imputation is
// documented in the run diagnostics, never silent.
func joinProfiles(records []model.OutlierRecord, profiles map[string]model.ProviderProfile) ([]model.ProviderProfile, int) {
	present := make([]model.ProviderProfile, 0, len(records))
	for _, rec := range records {
		if p, ok := profiles[rec.NPI]; ok {
			present = append(present, p)
		}
	}

	med := model.ProviderProfile{}
	if len(present) > 0 {
		med.CodeDiversity = medianOf(present, func(p model.ProviderProfile) float64 { return p.CodeDiversity })
		med.FamilyRatio = medianOf(present, func(p model.ProviderProfile) float64 { return p.FamilyRatio })
		med.NewPatientRatio = medianOf(present, func(p model.ProviderProfile) float64 { return p.NewPatientRatio })
		med.LogVolume = medianOf(present, func(p model.ProviderProfile) float64 { return p.LogVolume })
	}

	joined := make([]model.ProviderProfile, len(records))
	imputed := 0
	for i, rec := range records {
		if p, ok := profiles[rec.NPI]; ok {
			joined[i] = p
			continue
		}
		filled := med
		filled.NPI = rec.NPI
		joined[i] = filled
		imputed++
	}
	return joined, imputed
}

func medianOf(profiles []model.ProviderProfile, get func(model.ProviderProfile) float64) float64 {
	xs := make([]float64, len(profiles))
	for i, p := range profiles {
		xs[i] = get(p)
	}
	return benchmark.Median(xs)
}

// designMatrix builds intercept + cohort dummies (first level dropped for
// identifiability) + standardized covariates. Returns the matrix and its
// column count.
func designMatrix(records []model.OutlierRecord, profiles []model.ProviderProfile) (*mat.Dense, int) {
	specialtySet := make(map[string]bool)
	for _, rec := range records {
		specialtySet[rec.Specialty] = true
	}
	specialties := make([]string, 0, len(specialtySet))
	for s := range specialtySet {
		specialties = append(specialties, s)
	}
	sort.Strings(specialties)

	specIdx := make(map[string]int, len(specialties))
	for i, s := range specialties {
		specIdx[s] = i
	}

	n := len(records)
	nDummies := len(specialties) - 1
	p := 1 + nDummies + len(CovariateNames)

	cov := make([][]float64, len(CovariateNames))
	for j := range cov {
		cov[j] = make([]float64, n)
	}
	for i, prof := range profiles {
		cov[0][i] = prof.CodeDiversity
		cov[1][i] = prof.FamilyRatio
		cov[2][i] = prof.NewPatientRatio
		cov[3][i] = prof.LogVolume
	}
	for j := range cov {
		standardize(cov[j])
	}

	x := mat.NewDense(n, p, nil)
	for i, rec := range records {
		x.Set(i, 0, 1)
		if si := specIdx[rec.Specialty]; si > 0 {
			x.Set(i, si, 1) // column 1..nDummies
		}
		for j := range cov {
			x.Set(i, 1+nDummies+j, cov[j][i])
		}
	}
	return x, p
}

// standardize centers and scales xs in place. Zero-variance columns are
// left centered only.
func standardize(xs []float64) {
	mean, std := stat.MeanStdDev(xs, nil)
	if math.IsNaN(std) || std == 0 {
		std = 1
	}
	for i := range xs {
		xs[i] = (xs[i] - mean) / std
	}
}

// solveRidge solves (XᵀX + λI)β = Xᵀy.
func solveRidge(x *mat.Dense, y []float64, ridge float64) ([]float64, error) {
	_, p := x.Dims()

	var xtx mat.Dense
	xtx.Mul(x.T(), x)
	for i := 0; i < p; i++ {
		xtx.Set(i, i, xtx.At(i, i)+ridge)
	}

	var xty mat.VecDense
	xty.MulVec(x.T(), mat.NewVecDense(len(y), y))

	var beta mat.VecDense
	if err := beta.SolveVec(&xtx, &xty); err != nil {
		return nil, eris.Wrap(err, "solve normal equations")
	}

	out := make([]float64, p)
	for i := 0; i < p; i++ {
		out[i] = beta.AtVec(i)
	}
	return out, nil
}

// computeResiduals returns y - Xβ, asserting every residual is finite
// before anything downstream can write it.
func computeResiduals(x *mat.Dense, y []float64, beta []float64) ([]float64, error) {
	n, _ := x.Dims()

	var pred mat.VecDense
	pred.MulVec(x, mat.NewVecDense(len(beta), beta))

	residuals := make([]float64, n)
	for i := 0; i < n; i++ {
		r := y[i] - pred.AtVec(i)
		if math.IsNaN(r) || math.IsInf(r, 0) {
			return nil, eris.Errorf("non-finite residual at row %d", i)
		}
		residuals[i] = r
	}
	return residuals, nil
}

func rSquared(y, residuals []float64) float64 {
	varY := stat.Variance(y, nil)
	if varY == 0 || math.IsNaN(varY) {
		return 0
	}
	return 1 - stat.Variance(residuals, nil)/varY
}
