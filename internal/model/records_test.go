package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyMovement_AllQuadrants(t *testing.T) {
	assert.Equal(t, MovementPersistent, ClassifyMovement(true, true))
	assert.Equal(t, MovementExplained, ClassifyMovement(true, false))
	assert.Equal(t, MovementUnmasked, ClassifyMovement(false, true))
	assert.Equal(t, MovementNormal, ClassifyMovement(false, false))
}

func TestBenchmarkSpecialty_Fallback(t *testing.T) {
	withSpec := TaxonomyEntry{Classification: "Internal Medicine", Specialization: "Cardiovascular Disease"}
	assert.Equal(t, "Cardiovascular Disease", withSpec.BenchmarkSpecialty())

	withoutSpec := TaxonomyEntry{Classification: "Internal Medicine"}
	assert.Equal(t, "Internal Medicine", withoutSpec.BenchmarkSpecialty())

	empty := TaxonomyEntry{}
	assert.Equal(t, "", empty.BenchmarkSpecialty())
}
