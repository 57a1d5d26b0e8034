package converge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegis-analytics/claimscreen/internal/model"
)

func flagged(npi, era, family string, excess float64) model.OutlierRecord {
	return model.OutlierRecord{
		ProviderStats: model.ProviderStats{
			Provider:   model.Provider{NPI: npi},
			Era:        era,
			CodeFamily: family,
		},
		EstExcessClipped: excess,
		IsOutlier:        true,
	}
}

func signalSet(name, category string, npis ...string) SignalSet {
	members := make(map[string]bool, len(npis))
	for _, npi := range npis {
		members[npi] = true
	}
	return SignalSet{Signal: Signal{Name: name, Category: category}, Members: members}
}

func TestScore_TypeCountBeatsTotalCount(t *testing.T) {
	late := []model.OutlierRecord{
		flagged("1000000001", "post", "est", 100),
		flagged("1000000002", "post", "est", 100),
	}
	// Provider 1: three signals, all one category. Provider 2: two
	// signals in two categories.
	signals := []SignalSet{
		signalSet("a", "regulatory", "1000000001"),
		signalSet("b", "regulatory", "1000000001"),
		signalSet("c", "regulatory", "1000000001"),
		signalSet("d", "regulatory", "1000000002"),
		signalSet("e", "infrastructure", "1000000002"),
	}

	out := Score(nil, late, nil, signals, DefaultPrecedence)
	require.Len(t, out, 2)

	assert.Equal(t, "1000000002", out[0].NPI)
	assert.Equal(t, 2, out[0].SignalTypeCount)
	assert.Equal(t, 2, out[0].TotalSignalCount)

	assert.Equal(t, "1000000001", out[1].NPI)
	assert.Equal(t, 1, out[1].SignalTypeCount)
	assert.Equal(t, 3, out[1].TotalSignalCount)
}

func TestScore_CrossEraCountsTotalOnly(t *testing.T) {
	late := []model.OutlierRecord{flagged("1000000001", "post", "est", 100)}
	crossEra := []model.CrossEraRecord{{NPI: "1000000001"}}

	out := Score(nil, late, crossEra, nil, DefaultPrecedence)
	require.Len(t, out, 1)

	assert.True(t, out[0].Signals[CrossEraSignal])
	assert.Equal(t, 1, out[0].TotalSignalCount)
	// Persistence shares methodology with the base flag; it never adds an
	// independent evidence category.
	assert.Equal(t, 0, out[0].SignalTypeCount)
}

func TestScore_TypeCountNeverExceedsCategories(t *testing.T) {
	late := []model.OutlierRecord{flagged("1000000001", "post", "est", 100)}
	signals := []SignalSet{
		signalSet("a", "regulatory", "1000000001"),
		signalSet("b", "regulatory", "1000000001"),
		signalSet("c", "infrastructure", "1000000001"),
		signalSet("d", "temporal", "1000000001"),
	}

	out := Score(nil, late, nil, signals, DefaultPrecedence)
	require.Len(t, out, 1)
	assert.Equal(t, 3, out[0].SignalTypeCount)
	assert.Equal(t, 4, out[0].TotalSignalCount)
	assert.LessOrEqual(t, out[0].SignalTypeCount, len(DefaultPrecedence))
}

func TestScore_DedupeKeepsHigherExcessLateEraPrimary(t *testing.T) {
	early := []model.OutlierRecord{flagged("1000000001", "pre", "new", 99999)}
	late := []model.OutlierRecord{
		flagged("1000000001", "post", "new", 5000),
		flagged("1000000001", "post", "est", 20000),
	}

	out := Score(early, late, nil, nil, DefaultPrecedence)
	require.Len(t, out, 1)
	assert.Equal(t, "post", out[0].PrimaryEra)
	assert.Equal(t, "est", out[0].CodeFamily)
	assert.Equal(t, 20000.0, out[0].ExcessClipped)
}

func TestScore_EarlyOnlyProvidersIncluded(t *testing.T) {
	early := []model.OutlierRecord{flagged("1000000009", "pre", "est", 1000)}

	out := Score(early, nil, nil, nil, DefaultPrecedence)
	require.Len(t, out, 1)
	assert.Equal(t, "pre", out[0].PrimaryEra)
}

func TestScore_NonOutliersExcluded(t *testing.T) {
	rec := flagged("1000000001", "post", "est", 100)
	rec.IsOutlier = false

	out := Score(nil, []model.OutlierRecord{rec}, nil, nil, DefaultPrecedence)
	assert.Empty(t, out)
}

func TestScore_PrecedenceTieBreak(t *testing.T) {
	late := []model.OutlierRecord{
		flagged("1000000001", "post", "est", 100),
		flagged("1000000002", "post", "est", 100),
	}
	// Same type count and total count; regulatory evidence outranks
	// temporal.
	signals := []SignalSet{
		signalSet("a", "temporal", "1000000001"),
		signalSet("b", "regulatory", "1000000002"),
	}

	out := Score(nil, late, nil, signals, DefaultPrecedence)
	require.Len(t, out, 2)
	assert.Equal(t, "1000000002", out[0].NPI)
}

func TestFlagged_FiltersZeroSignal(t *testing.T) {
	records := []model.ConvergenceRecord{
		{Provider: model.Provider{NPI: "1"}, TotalSignalCount: 2},
		{Provider: model.Provider{NPI: "2"}, TotalSignalCount: 0},
	}
	out := Flagged(records)
	require.Len(t, out, 1)
	assert.Equal(t, "1", out[0].NPI)
}
