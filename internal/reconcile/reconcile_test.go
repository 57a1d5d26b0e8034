package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegis-analytics/claimscreen/internal/model"
)

func outlier(npi, family string, z, excess float64, claims int64, flagged bool) model.OutlierRecord {
	return model.OutlierRecord{
		ProviderStats: model.ProviderStats{
			Provider:    model.Provider{NPI: npi, Name: "Provider " + npi, State: "TX", Specialty: "IM"},
			CodeFamily:  family,
			TotalClaims: claims,
		},
		ZScore:           z,
		EstExcessClipped: excess,
		IsOutlier:        flagged,
	}
}

func TestCrossEra_IntersectionOnly(t *testing.T) {
	early := []model.OutlierRecord{
		outlier("1000000001", "est", 3.0, 10000, 500, true),
		outlier("1000000002", "est", 4.0, 20000, 600, true),
	}
	late := []model.OutlierRecord{
		outlier("1000000001", "est", 2.8, 8000, 450, true),
		outlier("1000000003", "est", 5.0, 90000, 900, true),
	}

	out := CrossEra(early, late)
	require.Len(t, out, 1)
	assert.Equal(t, "1000000001", out[0].NPI)
	assert.Equal(t, 3.0, out[0].EarlyZScore)
	assert.Equal(t, 2.8, out[0].LateZScore)
	assert.Equal(t, 8000.0, out[0].LateExcess)
	assert.Equal(t, int64(450), out[0].LateClaims)
}

func TestCrossEra_AggregatesAcrossFamilies(t *testing.T) {
	early := []model.OutlierRecord{
		outlier("1000000001", "new", 3.5, 5000, 200, true),
		outlier("1000000001", "est", 2.9, 12000, 700, true),
	}
	late := []model.OutlierRecord{
		outlier("1000000001", "est", 4.1, 30000, 800, true),
	}

	out := CrossEra(early, late)
	require.Len(t, out, 1)
	// One row per provider: worst z, summed excess and claims per era.
	assert.Equal(t, 3.5, out[0].EarlyZScore)
	assert.Equal(t, 17000.0, out[0].EarlyExcess)
	assert.Equal(t, int64(900), out[0].EarlyClaims)
}

func TestCrossEra_NonOutliersIgnored(t *testing.T) {
	early := []model.OutlierRecord{outlier("1000000001", "est", 1.0, 0, 500, false)}
	late := []model.OutlierRecord{outlier("1000000001", "est", 3.0, 9000, 500, true)}

	assert.Empty(t, CrossEra(early, late))
}

func TestCrossEra_SortedByLateExcess(t *testing.T) {
	early := []model.OutlierRecord{
		outlier("1000000001", "est", 3.0, 1000, 500, true),
		outlier("1000000002", "est", 3.0, 1000, 500, true),
		outlier("1000000003", "est", 3.0, 1000, 500, true),
	}
	late := []model.OutlierRecord{
		outlier("1000000001", "est", 3.0, 5000, 500, true),
		outlier("1000000002", "est", 3.0, 50000, 500, true),
		outlier("1000000003", "est", 3.0, 5000, 500, true),
	}

	out := CrossEra(early, late)
	require.Len(t, out, 3)
	assert.Equal(t, "1000000002", out[0].NPI)
	// Tie broken by NPI ascending.
	assert.Equal(t, "1000000001", out[1].NPI)
	assert.Equal(t, "1000000003", out[2].NPI)
}

func TestCrossEra_Empty(t *testing.T) {
	assert.Empty(t, CrossEra(nil, nil))
}
