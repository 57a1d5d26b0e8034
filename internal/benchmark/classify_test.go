package benchmark

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aegis-analytics/claimscreen/internal/model"
)

var testThresholds = Thresholds{
	MinClaims:       500,
	MinPeers:        20,
	ZThreshold:      2.5,
	MinAbsDeviation: 5.0,
}

func stats(pwi float64, claims int64) model.ProviderStats {
	return model.ProviderStats{
		Provider:    model.Provider{NPI: "1234567890"},
		PWI:         pwi,
		TotalClaims: claims,
	}
}

func TestClassify_ZeroVarianceCohortNeverFlags(t *testing.T) {
	bm := model.PeerBenchmark{MedianPWI: 100, StdPWI: 0, P95PWI: 100}
	rec := Classify(stats(150, 1000), bm, testThresholds)

	assert.Equal(t, 0.0, rec.ZScore)
	assert.False(t, rec.IsOutlier)
	assert.InDelta(t, 50.0, rec.AbsDeviation, 1e-12)
}

func TestClassify_RequiresBothGates(t *testing.T) {
	// High z but deviation under the dollar floor.
	bm := model.PeerBenchmark{MedianPWI: 100, StdPWI: 1, P95PWI: 101}
	rec := Classify(stats(104, 1000), bm, testThresholds)
	assert.InDelta(t, 4.0, rec.ZScore, 1e-12)
	assert.False(t, rec.IsOutlier)

	// Large deviation but modest z.
	bm = model.PeerBenchmark{MedianPWI: 100, StdPWI: 50, P95PWI: 190}
	rec = Classify(stats(120, 1000), bm, testThresholds)
	assert.InDelta(t, 0.4, rec.ZScore, 1e-12)
	assert.False(t, rec.IsOutlier)

	// Both gates met.
	bm = model.PeerBenchmark{MedianPWI: 100, StdPWI: 10, P95PWI: 118}
	rec = Classify(stats(130, 1000), bm, testThresholds)
	assert.InDelta(t, 3.0, rec.ZScore, 1e-12)
	assert.True(t, rec.IsOutlier)
}

func TestClassify_SignedAndClippedExcess(t *testing.T) {
	bm := model.PeerBenchmark{MedianPWI: 100, StdPWI: 10, P95PWI: 118}

	over := Classify(stats(130, 1000), bm, testThresholds)
	assert.InDelta(t, 30000.0, over.EstExcess, 1e-9)
	assert.InDelta(t, 30000.0, over.EstExcessClipped, 1e-9)

	under := Classify(stats(80, 1000), bm, testThresholds)
	assert.InDelta(t, -20000.0, under.EstExcess, 1e-9)
	assert.Equal(t, 0.0, under.EstExcessClipped)
	assert.False(t, under.IsOutlier)
}

func TestClassify_AboveP95Independent(t *testing.T) {
	bm := model.PeerBenchmark{MedianPWI: 100, StdPWI: 50, P95PWI: 110}
	rec := Classify(stats(115, 1000), bm, testThresholds)

	assert.True(t, rec.AboveP95)
	assert.False(t, rec.IsOutlier)

	atP95 := Classify(stats(110, 1000), bm, testThresholds)
	assert.False(t, atP95.AboveP95)
}
