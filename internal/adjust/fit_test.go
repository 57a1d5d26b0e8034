package adjust

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegis-analytics/claimscreen/internal/model"
)

var testConfig = Config{Ridge: 1e-8, ZThreshold: 2.5, MinPeers: 20}

func record(npi, specialty string, pwi float64, outlier bool) model.OutlierRecord {
	return model.OutlierRecord{
		ProviderStats: model.ProviderStats{
			Provider:    model.Provider{NPI: npi, Specialty: specialty},
			Era:         "pre",
			CodeFamily:  "est",
			PWI:         pwi,
			TotalClaims: 1000,
		},
		IsOutlier: outlier,
	}
}

func profile(npi string, diversity float64) model.ProviderProfile {
	return model.ProviderProfile{
		NPI:             npi,
		CodeDiversity:   diversity,
		FamilyRatio:     0.5,
		NewPatientRatio: 0.2,
		LogVolume:       math.Log(1000),
	}
}

// covariateScenario builds one cohort where PWI is 100 + 10*diversity with
// small alternating noise, plus two raw outliers: one whose PWI the
// covariate fully explains, one it does not.
func covariateScenario() ([]model.OutlierRecord, map[string]model.ProviderProfile) {
	var records []model.OutlierRecord
	profiles := make(map[string]model.ProviderProfile)

	for i := 0; i < 25; i++ {
		npi := fmt.Sprintf("10000000%02d", i+1)
		noise := 1.0
		if i%2 == 1 {
			noise = -1.0
		}
		records = append(records, record(npi, "IM", 100+10*float64(i)+noise, false))
		profiles[npi] = profile(npi, float64(i))
	}

	// Raw outlier whose profile predicts its PWI exactly.
	records = append(records, record("2000000001", "IM", 500, true))
	profiles["2000000001"] = profile("2000000001", 40)

	// Raw outlier with a mid-range profile: nothing to explain it.
	records = append(records, record("2000000002", "IM", 500, true))
	profiles["2000000002"] = profile("2000000002", 12)

	return records, profiles
}

func TestFit_ExplainedVersusPersistent(t *testing.T) {
	records, profiles := covariateScenario()

	adjusted, summary, err := Fit(records, profiles, "pre", testConfig)
	require.NoError(t, err)
	require.Len(t, adjusted, 27)

	assert.Equal(t, "pre", summary.Era)
	assert.Equal(t, 27, summary.Providers)
	assert.Equal(t, 0, summary.Imputed)
	assert.Len(t, summary.Coefficients, 4)

	byNPI := make(map[string]model.AdjustedRecord, len(adjusted))
	for _, a := range adjusted {
		byNPI[a.NPI] = a
	}

	explained := byNPI["2000000001"]
	assert.Less(t, explained.AdjZScore, 1.0)
	assert.Equal(t, model.MovementExplained, explained.Movement)

	persistent := byNPI["2000000002"]
	assert.Greater(t, persistent.AdjZScore, testConfig.ZThreshold)
	assert.Equal(t, model.MovementPersistent, persistent.Movement)

	for i := 0; i < 25; i++ {
		peer := byNPI[fmt.Sprintf("10000000%02d", i+1)]
		assert.Equal(t, model.MovementNormal, peer.Movement, "peer %d", i)
	}

	// Sorted by adjusted z-score descending: the unexplained outlier leads.
	assert.Equal(t, "2000000002", adjusted[0].NPI)
}

func TestFit_MissingProfileImputed(t *testing.T) {
	records, profiles := covariateScenario()
	delete(profiles, "1000000005")

	adjusted, summary, err := Fit(records, profiles, "pre", testConfig)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Imputed)
	require.Len(t, adjusted, 27)

	for _, a := range adjusted {
		if a.NPI == "1000000005" {
			// Imputed with the cohort-blind covariate medians, not zeros.
			assert.Greater(t, a.CodeDiversity, 0.0)
		}
	}
}

func TestFit_SmallCohortDropped(t *testing.T) {
	records, profiles := covariateScenario()
	// A second cohort below the peer floor.
	records = append(records, record("3000000001", "Pediatrics", 90, false))
	profiles["3000000001"] = profile("3000000001", 5)

	adjusted, _, err := Fit(records, profiles, "pre", testConfig)
	require.NoError(t, err)

	assert.Len(t, adjusted, 27)
	for _, a := range adjusted {
		assert.NotEqual(t, "Pediatrics", a.Specialty)
	}
}

func TestFit_Empty(t *testing.T) {
	adjusted, summary, err := Fit(nil, nil, "pre", testConfig)
	require.NoError(t, err)
	assert.Empty(t, adjusted)
	assert.Equal(t, "pre", summary.Era)
}

func TestFit_RSquaredHighWhenCovariateDrivesPWI(t *testing.T) {
	records, profiles := covariateScenario()
	_, summary, err := Fit(records, profiles, "pre", testConfig)
	require.NoError(t, err)

	// Diversity explains most PWI variance in this construction; the
	// unexplained outlier keeps it well below 1.
	assert.Greater(t, summary.RSquared, 0.6)
	assert.Less(t, summary.RSquared, 0.95)
}
