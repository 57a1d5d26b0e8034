package benchmark

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMedian_Odd(t *testing.T) {
	assert.Equal(t, 3.0, Median([]float64{5, 1, 3}))
}

func TestMedian_Even(t *testing.T) {
	// (2+4)/2 = 3
	assert.Equal(t, 3.0, Median([]float64{4, 1, 2, 8}))
}

func TestMedian_Empty(t *testing.T) {
	assert.Equal(t, 0.0, Median(nil))
}

func TestMedian_DoesNotMutate(t *testing.T) {
	xs := []float64{3, 1, 2}
	Median(xs)
	assert.Equal(t, []float64{3, 1, 2}, xs)
}

func TestSampleStd_TooFew(t *testing.T) {
	assert.Equal(t, 0.0, SampleStd(nil))
	assert.Equal(t, 0.0, SampleStd([]float64{42}))
}

func TestSampleStd_KnownValue(t *testing.T) {
	// var = ((-2)^2 + 0 + 2^2) / (3-1) = 4, std = 2
	assert.InDelta(t, 2.0, SampleStd([]float64{2, 4, 6}), 1e-12)
}

func TestQuantile_Interpolates(t *testing.T) {
	xs := []float64{10, 20, 30, 40, 50}
	// pos = 0.95*4 = 3.8 -> 40 + 0.8*(50-40) = 48
	assert.InDelta(t, 48.0, Quantile(xs, 0.95), 1e-12)
}

func TestQuantile_Extremes(t *testing.T) {
	xs := []float64{3, 1, 2}
	assert.Equal(t, 1.0, Quantile(xs, 0))
	assert.Equal(t, 3.0, Quantile(xs, 1))
	assert.Equal(t, 7.0, Quantile([]float64{7}, 0.5))
	assert.Equal(t, 0.0, Quantile(nil, 0.5))
}
