package benchmark

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegis-analytics/claimscreen/internal/model"
	"github.com/aegis-analytics/claimscreen/internal/registry"
)

// testRegistry builds a registry where every NPI maps to the same
// internal-medicine cohort.
func testRegistry(t *testing.T, npis ...string) *registry.Registry {
	t.Helper()
	dir := t.TempDir()

	regCSV := "npi,provider_name,entity_type,state,taxonomy_code\n"
	for _, npi := range npis {
		regCSV += fmt.Sprintf("%s,Provider %s,individual,TX,207R00000X\n", npi, npi)
	}
	regPath := filepath.Join(dir, "registry.csv")
	require.NoError(t, os.WriteFile(regPath, []byte(regCSV), 0o644))

	taxPath := filepath.Join(dir, "taxonomy.csv")
	taxCSV := "code,grouping,classification,specialization\n" +
		"207R00000X,Allopathic & Osteopathic Physicians,Internal Medicine,\n"
	require.NoError(t, os.WriteFile(taxPath, []byte(taxCSV), 0o644))

	reg, err := registry.Load(regPath, taxPath, "")
	require.NoError(t, err)
	return reg
}

// addProvider feeds claims split across two codes so the provider's PWI is
// lowPrice + mix*(highPrice-lowPrice), with payments consistent with the
// national prices.
func addProvider(engine *Engine, prices *PriceIndex, npi string, claims int64, mix float64) {
	high := int64(float64(claims) * mix)
	low := claims - high
	rows := []model.ClaimAggregate{
		{NPI: npi, Code: "99213", ClaimCount: low, PaidAmount: float64(low) * 50, BeneCount: low},
		{NPI: npi, Code: "99215", ClaimCount: high, PaidAmount: float64(high) * 150, BeneCount: high},
	}
	for _, row := range rows {
		engine.Add(row)
		prices.Add(row)
	}
}

func TestEngine_MinClaimsGate(t *testing.T) {
	th := Thresholds{MinClaims: 500, MinPeers: 2, ZThreshold: 2.5, MinAbsDeviation: 5}
	engine := NewEngine("pre", "est", []string{"99213", "99215"}, th)
	prices := NewPriceIndex([]string{"99213", "99215"})

	addProvider(engine, prices, "1000000001", 499, 0.5)
	addProvider(engine, prices, "1000000002", 500, 0.5)
	addProvider(engine, prices, "1000000003", 500, 0.5)

	reg := testRegistry(t, "1000000001", "1000000002", "1000000003")
	records, diag := engine.Results(reg, prices)

	assert.Len(t, records, 2)
	assert.Equal(t, 1, diag.ExcludedMinClaims)
	for _, rec := range records {
		assert.NotEqual(t, "1000000001", rec.NPI)
	}
}

func TestEngine_UnregisteredExcluded(t *testing.T) {
	th := Thresholds{MinClaims: 100, MinPeers: 2, ZThreshold: 2.5, MinAbsDeviation: 5}
	engine := NewEngine("pre", "est", []string{"99213", "99215"}, th)
	prices := NewPriceIndex([]string{"99213", "99215"})

	addProvider(engine, prices, "1000000001", 1000, 0.5)
	addProvider(engine, prices, "1000000002", 1000, 0.5)
	addProvider(engine, prices, "9999999999", 1000, 0.5) // not in registry

	reg := testRegistry(t, "1000000001", "1000000002")
	records, diag := engine.Results(reg, prices)

	assert.Len(t, records, 2)
	assert.Equal(t, 1, diag.ExcludedNoRegistry)
}

func TestEngine_SmallCohortProducesNoBenchmark(t *testing.T) {
	th := Thresholds{MinClaims: 100, MinPeers: 5, ZThreshold: 2.5, MinAbsDeviation: 5}
	engine := NewEngine("pre", "est", []string{"99213", "99215"}, th)
	prices := NewPriceIndex([]string{"99213", "99215"})

	addProvider(engine, prices, "1000000001", 1000, 0.3)
	addProvider(engine, prices, "1000000002", 1000, 0.7)

	reg := testRegistry(t, "1000000001", "1000000002")
	records, diag := engine.Results(reg, prices)

	assert.Empty(t, records)
	assert.Equal(t, 1, diag.SmallCohorts)
	assert.Equal(t, 2, diag.SmallCohortMembers)
}

func TestEngine_PWIAndOutlier(t *testing.T) {
	th := Thresholds{MinClaims: 100, MinPeers: 5, ZThreshold: 2.5, MinAbsDeviation: 5}
	engine := NewEngine("pre", "est", []string{"99213", "99215"}, th)
	prices := NewPriceIndex([]string{"99213", "99215"})

	// 24 peers cluster around a 50/50 mix; one provider bills almost all
	// top-level codes.
	var npis []string
	for i := 0; i < 24; i++ {
		mix := 0.48
		if i%2 == 1 {
			mix = 0.52
		}
		npi := fmt.Sprintf("10000000%02d", i+1)
		npis = append(npis, npi)
		addProvider(engine, prices, npi, 1000, mix)
	}
	addProvider(engine, prices, "1000000099", 1000, 0.95)
	npis = append(npis, "1000000099")

	reg := testRegistry(t, npis...)
	records, diag := engine.Results(reg, prices)

	require.Len(t, records, 25)
	assert.Equal(t, 25, diag.Providers)
	assert.Equal(t, 1, diag.Outliers)

	// Sorted by estimated excess descending; the heavy biller leads.
	top := records[0]
	assert.Equal(t, "1000000099", top.NPI)
	assert.True(t, top.IsOutlier)
	assert.True(t, top.AboveP95)
	// mix 0.95 of a $100 spread over the $50 base: PWI = 145.
	assert.InDelta(t, 145.0, top.PWI, 1e-9)
	assert.Equal(t, "pre", top.Era)
	assert.Equal(t, "est", top.CodeFamily)
	assert.Equal(t, "Internal Medicine", top.Specialty)
	assert.Equal(t, 25, top.PeerCount)
	// Cohort median is 102 (13th of 25 sorted PWIs), deviation 43.
	assert.InDelta(t, 43.0, top.AbsDeviation, 1e-9)
	assert.Greater(t, top.ZScore, th.ZThreshold)
	assert.InDelta(t, top.AbsDeviation*1000, top.EstExcess, 1e-6)
}

func TestEngine_IgnoresCodesOutsideFamily(t *testing.T) {
	th := Thresholds{MinClaims: 100, MinPeers: 2, ZThreshold: 2.5, MinAbsDeviation: 5}
	engine := NewEngine("pre", "new", []string{"99203"}, th)

	engine.Add(model.ClaimAggregate{NPI: "1000000001", Code: "99213", ClaimCount: 5000, PaidAmount: 250000})
	assert.Empty(t, engine.sums)
}
